/*
Copyright (C) 2026 Ariacast

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package queue merges owned and catalog tracks into a single
// priority-ordered queue honoring the subscription tier policy.
package queue

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/ariacast/aria_radio/internal/media"
)

// catalogBasePriority anchors synthetic priorities for catalog fills so
// earlier fetch results outrank later ones within the same call.
const catalogBasePriority = 30

// Source supplies catalog tracks for queue fills.
type Source interface {
	Fetch(ctx context.Context, count int) []media.Track
}

// Builder constructs and refills playback queues.
type Builder struct {
	source Source
	logger zerolog.Logger
}

// NewBuilder creates a queue builder.
func NewBuilder(source Source, logger zerolog.Logger) *Builder {
	return &Builder{
		source: source,
		logger: logger.With().Str("component", "queue").Logger(),
	}
}

// BuildInitial ranks the owned tracks for the tier. Earlier-supplied tracks
// rank higher within the owned set; the tier base priority determines their
// rank against catalog fills.
func (b *Builder) BuildInitial(owned []media.Track, tier media.Tier) []media.QueueItem {
	weights := media.WeightsFor(tier)

	items := make([]media.QueueItem, 0, len(owned))
	for i, track := range owned {
		track.Origin = media.OriginOwned
		items = append(items, media.QueueItem{
			Track:    track,
			Priority: weights.Owned + (len(owned) - i),
			Origin:   media.OriginOwned,
		})
	}
	return items
}

// Fill tops the queue up to targetSize with catalog tracks and re-sorts.
// A catalog failure leaves the input queue unmodified; the playback engine
// notices a low queue and retries later.
func (b *Builder) Fill(ctx context.Context, items []media.QueueItem, targetSize int) []media.QueueItem {
	added := b.CatalogItems(ctx, targetSize-len(items))
	if len(added) == 0 {
		return items
	}

	out := make([]media.QueueItem, len(items), len(items)+len(added))
	copy(out, items)
	out = append(out, added...)

	Sort(out)

	b.logger.Debug().Int("added", len(added)).Int("total", len(out)).Msg("queue filled")
	return out
}

// CatalogItems fetches count catalog tracks wrapped as queue items with a
// strictly descending synthetic priority, so earlier fetch results outrank
// later ones within the same call. Returns nil when nothing is available.
func (b *Builder) CatalogItems(ctx context.Context, count int) []media.QueueItem {
	if count <= 0 {
		return nil
	}

	fetched := b.source.Fetch(ctx, count)
	if len(fetched) == 0 {
		b.logger.Warn().Int("needed", count).Msg("no catalog tracks available for fill")
		return nil
	}

	items := make([]media.QueueItem, 0, len(fetched))
	for i, track := range fetched {
		items = append(items, media.QueueItem{
			Track:    track,
			Priority: catalogBasePriority - i,
			Origin:   media.OriginCatalog,
		})
	}
	return items
}

// Sort orders items descending by priority, stable on ties.
func Sort(items []media.QueueItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Priority > items[j].Priority
	})
}
