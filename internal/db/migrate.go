/*
Copyright (C) 2026 Ariacast

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/ariacast/aria_radio/internal/store"
)

// Migrate applies the schema using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		&store.AnnouncerPreferences{},
		&store.Subscription{},
		&store.OwnedTrack{},
		&store.PlayEvent{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}