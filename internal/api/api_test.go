/*
Copyright (C) 2026 Ariacast

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ariacast/aria_radio/internal/announcer"
	"github.com/ariacast/aria_radio/internal/events"
	"github.com/ariacast/aria_radio/internal/media"
	"github.com/ariacast/aria_radio/internal/playback"
	"github.com/ariacast/aria_radio/internal/queue"
	"github.com/ariacast/aria_radio/internal/store"
)

// nullTransport satisfies playback.Transport with no-ops.
type nullTransport struct{}

func (nullTransport) Load(string)                        {}
func (nullTransport) Play() error                        { return nil }
func (nullTransport) Pause()                             {}
func (nullTransport) SetVolume(float64)                  {}
func (nullTransport) Volume() float64                    { return 0 }
func (nullTransport) Position() time.Duration            { return 0 }
func (nullTransport) Duration() time.Duration            { return 0 }
func (nullTransport) Buffered() time.Duration            { return 0 }
func (nullTransport) Ready() bool                        { return false }
func (nullTransport) SetEvents(playback.TransportEvents) {}

type staticSource struct{ tracks []media.Track }

func (s staticSource) Fetch(_ context.Context, count int) []media.Track {
	if count > len(s.tracks) {
		count = len(s.tracks)
	}
	return s.tracks[:count]
}

func catalogTracks(n int) []media.Track {
	tracks := make([]media.Track, n)
	for i := range tracks {
		tracks[i] = media.Track{
			ID:       "catalog_" + string(rune('a'+i)),
			Title:    "Track " + string(rune('A'+i)),
			Artist:   "Artist",
			AudioURL: "https://cdn.example.com/track.mp3",
			Origin:   media.OriginCatalog,
		}
	}
	return tracks
}

func newTestRouter(t *testing.T, initialize bool) (chi.Router, *playback.Engine, *announcer.Announcer) {
	t.Helper()
	logger := zerolog.Nop()
	bus := events.NewBus(logger)
	builder := queue.NewBuilder(staticSource{tracks: catalogTracks(10)}, logger)
	engine := playback.NewEngine(playback.Config{TargetSize: 5}, builder, bus, nullTransport{}, nullTransport{}, logger)
	t.Cleanup(engine.Close)

	if initialize {
		engine.Initialize(context.Background(), nil, media.TierFree)
	}

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&store.AnnouncerPreferences{}, &store.Subscription{}, &store.OwnedTrack{}, &store.PlayEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	svc := store.NewService(db, logger)

	ann := announcer.New(announcer.Config{Tick: time.Hour}, bus, engine, announcer.NewTemplateNarrator(1), logger)
	ann.Start()
	t.Cleanup(ann.Close)

	a := New(engine, ann, bus, svc, "user1", logger)
	r := chi.NewRouter()
	a.Routes(r)
	return r, engine, ann
}

func doRequest(t *testing.T, r chi.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	r, _, _ := newTestRouter(t, false)
	rec := doRequest(t, r, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestPlayWithoutTrackConflicts(t *testing.T) {
	r, _, _ := newTestRouter(t, false)
	rec := doRequest(t, r, http.MethodPost, "/api/v1/playback/play", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["error"] != "no_current_track" {
		t.Fatalf("error = %q, want no_current_track", resp["error"])
	}
}

func TestNowPlayingAndQueue(t *testing.T) {
	r, _, _ := newTestRouter(t, true)

	rec := doRequest(t, r, http.MethodGet, "/api/v1/now-playing", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("now-playing status = %d, want 200", rec.Code)
	}
	var snap events.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Current == nil {
		t.Fatal("snapshot should have a current track after initialize")
	}

	rec = doRequest(t, r, http.MethodGet, "/api/v1/queue", "")
	var items []media.QueueItem
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode queue: %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("queue length = %d, want 4", len(items))
	}
}

func TestVolumeEndpointClamps(t *testing.T) {
	r, engine, _ := newTestRouter(t, true)

	rec := doRequest(t, r, http.MethodPost, "/api/v1/playback/volume", `{"volume": 2.5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := engine.Volume(); got != 1 {
		t.Fatalf("volume = %v, want clamped 1", got)
	}

	rec = doRequest(t, r, http.MethodPost, "/api/v1/playback/volume", `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCrossfadeEndpointClamps(t *testing.T) {
	r, engine, _ := newTestRouter(t, true)

	rec := doRequest(t, r, http.MethodPost, "/api/v1/playback/crossfade", `{"enabled": true, "duration_ms": 15000}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	cfg := engine.State().Crossfade
	if !cfg.Enabled || cfg.DurationMS != 10000 {
		t.Fatalf("crossfade = %+v, want enabled with 10000ms", cfg)
	}
}

func TestSkipEndpoint(t *testing.T) {
	r, engine, _ := newTestRouter(t, true)

	target := engine.Queue()[1].Track
	rec := doRequest(t, r, http.MethodPost, "/api/v1/playback/skip", `{"index": 1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := engine.State().Current.Track.ID; got != target.ID {
		t.Fatalf("current = %q, want %q", got, target.ID)
	}

	// Out-of-bounds is silently ignored.
	rec = doRequest(t, r, http.MethodPost, "/api/v1/playback/skip", `{"index": 99}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for ignored skip", rec.Code)
	}
}

func TestLibraryAddAndList(t *testing.T) {
	r, _, _ := newTestRouter(t, false)

	rec := doRequest(t, r, http.MethodPost, "/api/v1/library", `{"title": "My Song", "artist": "Me", "file_url": "https://files.example.com/mine.mp3", "priority_level": 3}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d, want 201", rec.Code)
	}
	var entry store.OwnedTrack
	if err := json.Unmarshal(rec.Body.Bytes(), &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if entry.ID == "" || entry.Status != string(media.StatusPending) {
		t.Fatalf("new entry = %+v, want pending with an id", entry)
	}

	rec = doRequest(t, r, http.MethodPost, "/api/v1/library", `{"artist": "Me"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("add without title/url status = %d, want 400", rec.Code)
	}

	// Only approved entries are served; the fresh pending one is not.
	rec = doRequest(t, r, http.MethodGet, "/api/v1/library", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rec.Code)
	}
	var tracks []media.Track
	if err := json.Unmarshal(rec.Body.Bytes(), &tracks); err != nil {
		t.Fatalf("decode library: %v", err)
	}
	if len(tracks) != 0 {
		t.Fatalf("library length = %d, want 0 while pending", len(tracks))
	}
}

func TestAnnounceRequiresActiveAnnouncer(t *testing.T) {
	r, _, ann := newTestRouter(t, true)

	rec := doRequest(t, r, http.MethodPost, "/api/v1/announcer/announce", `{"text": "hello"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409 while inactive", rec.Code)
	}

	ann.Activate()
	rec = doRequest(t, r, http.MethodPost, "/api/v1/announcer/announce", `{"text": "hello"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}

	rec = doRequest(t, r, http.MethodPost, "/api/v1/announcer/announce", `{"text": ""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for empty text", rec.Code)
	}
}

func TestAnnouncerTogglePersists(t *testing.T) {
	r, _, ann := newTestRouter(t, true)

	rec := doRequest(t, r, http.MethodPost, "/api/v1/announcer/toggle", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !ann.Active() {
		t.Fatal("toggle should activate the announcer")
	}

	rec = doRequest(t, r, http.MethodGet, "/api/v1/preferences", "")
	var prefs preferencesPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &prefs); err != nil {
		t.Fatalf("decode preferences: %v", err)
	}
	if !prefs.Enabled {
		t.Fatal("toggle should persist enabled=true")
	}
}

func TestPreferencesRoundTrip(t *testing.T) {
	r, _, ann := newTestRouter(t, true)

	body := `{"enabled": true, "frequency": "high", "personality": "energetic", "voice": "aria", "intros": true, "outros": false}`
	rec := doRequest(t, r, http.MethodPut, "/api/v1/preferences", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d, want 200", rec.Code)
	}
	if !ann.Active() {
		t.Fatal("enabled preference should activate the announcer")
	}

	rec = doRequest(t, r, http.MethodGet, "/api/v1/preferences", "")
	var prefs preferencesPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &prefs); err != nil {
		t.Fatalf("decode preferences: %v", err)
	}
	if !prefs.Enabled || prefs.Frequency != "high" || prefs.Voice != "aria" || prefs.Outros {
		t.Fatalf("unexpected preferences after round trip: %+v", prefs)
	}
}