package cache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vkiragi/bet-tracker/internal/tracker/model"
)

func newTestCache(ttl time.Duration) *LeagueCache {
	return NewLeagueCache(nil, ttl, zap.NewNop())
}

func TestIsValid_TTLBoundary(t *testing.T) {
	const ttl = 5 * time.Minute
	c := newTestCache(ttl)

	base := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	entry := model.LeagueCacheEntry{LeagueID: "nfl", Timestamp: base}

	tests := []struct {
		name    string
		elapsed time.Duration
		want    bool
	}{
		{"fresh", 0, true},
		{"one ms before expiry", ttl - time.Millisecond, true},
		{"one ms after expiry", ttl + time.Millisecond, false},
		{"exactly at ttl", ttl, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c.now = func() time.Time { return base.Add(tt.elapsed) }
			if got := c.IsValid(entry); got != tt.want {
				t.Errorf("IsValid with elapsed=%v = %v, want %v", tt.elapsed, got, tt.want)
			}
		})
	}
}

func TestPut_ReplacesWholeEntry(t *testing.T) {
	c := newTestCache(5 * time.Minute)
	ctx := context.Background()

	first := []model.GameRecord{
		{EventID: "g1", HomeTeam: "Celtics", AwayTeam: "Warriors"},
		{EventID: "g2", HomeTeam: "Lakers", AwayTeam: "Nuggets"},
	}
	c.Put(ctx, "nba", first)

	second := []model.GameRecord{
		{EventID: "g3", HomeTeam: "Knicks", AwayTeam: "Heat"},
	}
	c.Put(ctx, "nba", second)

	e, ok := c.Get(ctx, "nba")
	if !ok {
		t.Fatal("expected entry after Put")
	}
	if len(e.Games) != 1 || e.Games[0].EventID != "g3" {
		t.Errorf("Put should replace the whole entry, got %d games", len(e.Games))
	}
}

func TestGet_MissWithoutRedis(t *testing.T) {
	c := newTestCache(time.Minute)
	if _, ok := c.Get(context.Background(), "mlb"); ok {
		t.Error("expected miss for unknown league")
	}
}

func TestView_LoadingFlag(t *testing.T) {
	c := newTestCache(time.Minute)
	ctx := context.Background()

	c.SetLoading("nhl", true)
	v := c.View(ctx, "nhl")
	if !v.Loading {
		t.Error("expected loading=true before refresh lands")
	}
	if v.Games != nil {
		t.Error("expected no games before first Put")
	}

	c.Put(ctx, "nhl", []model.GameRecord{{EventID: "g1", HomeTeam: "Bruins", AwayTeam: "Rangers"}})
	c.SetLoading("nhl", false)

	v = c.View(ctx, "nhl")
	if v.Loading {
		t.Error("expected loading=false after refresh")
	}
	if len(v.Games) != 1 || v.LastUpdated.IsZero() {
		t.Errorf("view should expose games and lastUpdated, got %+v", v)
	}
}
