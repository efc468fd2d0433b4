package refresh

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vkiragi/bet-tracker/internal/tracker/cache"
	"github.com/vkiragi/bet-tracker/internal/tracker/model"
)

// fakeFeed registra o instante de cada fetch e permite falhas por liga.
type fakeFeed struct {
	mu      sync.Mutex
	calls   map[string]time.Time
	failFor map[string]bool
	onCall  func(leagueID string)
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{calls: make(map[string]time.Time), failFor: make(map[string]bool)}
}

func (f *fakeFeed) FetchScores(_ context.Context, leagueID string, _ int, _ bool, _ string) ([]model.GameRecord, error) {
	f.mu.Lock()
	f.calls[leagueID] = time.Now()
	fail := f.failFor[leagueID]
	cb := f.onCall
	f.mu.Unlock()

	if cb != nil {
		cb(leagueID)
	}
	if fail {
		return nil, errors.New("feed unavailable")
	}
	return []model.GameRecord{{EventID: leagueID + "-g1", HomeTeam: "Home", AwayTeam: "Away"}}, nil
}

func (f *fakeFeed) callTimes() map[string]time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]time.Time, len(f.calls))
	for k, v := range f.calls {
		out[k] = v
	}
	return out
}

func newScheduler(feed ScoreFetcher, c *cache.LeagueCache, leagues []string) *BatchRefreshScheduler {
	return &BatchRefreshScheduler{
		Cache:      c,
		Feed:       feed,
		Log:        zap.NewNop(),
		Leagues:    leagues,
		BatchSize:  3,
		BatchDelay: 300 * time.Millisecond,
	}
}

func TestRefreshPass_LazyBatching(t *testing.T) {
	leagues := []string{"nfl", "nba", "mlb", "nhl", "epl", "ncaaf", "wnba"}
	c := cache.NewLeagueCache(nil, 5*time.Minute, zap.NewNop())
	ctx := context.Background()

	// Duas ligas já válidas no cache não entram no passe lazy
	c.Put(ctx, "nba", []model.GameRecord{{EventID: "x", HomeTeam: "a", AwayTeam: "b"}})
	c.Put(ctx, "epl", []model.GameRecord{{EventID: "y", HomeTeam: "a", AwayTeam: "b"}})

	feed := newFakeFeed()
	s := newScheduler(feed, c, leagues)

	s.RefreshPass(ctx, false)

	calls := feed.callTimes()
	if len(calls) != 5 {
		t.Fatalf("expected 5 stale leagues fetched, got %d: %v", len(calls), calls)
	}
	if _, ok := calls["nba"]; ok {
		t.Error("cache-valid league must not be fetched in lazy mode")
	}

	// Dois lotes (3 + 2) com >= 300ms entre os inícios
	var times []time.Time
	for _, ts := range calls {
		times = append(times, ts)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	gap := times[3].Sub(times[2])
	if gap < 300*time.Millisecond {
		t.Errorf("expected >= 300ms between batches, got %v", gap)
	}
}

func TestRefreshPass_ForcedIncludesValid(t *testing.T) {
	leagues := []string{"nfl", "nba"}
	c := cache.NewLeagueCache(nil, 5*time.Minute, zap.NewNop())
	ctx := context.Background()
	c.Put(ctx, "nba", []model.GameRecord{{EventID: "x", HomeTeam: "a", AwayTeam: "b"}})

	feed := newFakeFeed()
	s := newScheduler(feed, c, leagues)
	s.RefreshPass(ctx, true)

	if len(feed.callTimes()) != 2 {
		t.Fatalf("forced pass must include cache-valid leagues, got %v", feed.callTimes())
	}
}

func TestRefreshPass_FailureIsolation(t *testing.T) {
	leagues := []string{"nfl", "nba", "mlb"}
	c := cache.NewLeagueCache(nil, time.Nanosecond, zap.NewNop()) // tudo stale
	ctx := context.Background()

	// Entrada antiga da liga que vai falhar: precisa ficar intocada
	prior := c.Put(ctx, "nba", []model.GameRecord{{EventID: "old", HomeTeam: "a", AwayTeam: "b"}})

	feed := newFakeFeed()
	feed.failFor["nba"] = true
	s := newScheduler(feed, c, leagues)

	var failed []string
	s.OnError = func(id string) { failed = append(failed, id) }

	s.RefreshPass(ctx, false)

	if len(feed.callTimes()) != 3 {
		t.Fatalf("sibling fetches must not be aborted, got %d calls", len(feed.callTimes()))
	}
	if len(failed) != 1 || failed[0] != "nba" {
		t.Errorf("expected one failure for nba, got %v", failed)
	}

	e, ok := c.Get(ctx, "nba")
	if !ok || len(e.Games) != 1 || e.Games[0].EventID != "old" || !e.Timestamp.Equal(prior.Timestamp) {
		t.Error("failed fetch must leave previously cached data untouched")
	}

	if got, _ := c.Get(ctx, "nfl"); len(got.Games) != 1 {
		t.Error("successful sibling should have refreshed its entry")
	}

	v := c.View(ctx, "nba")
	if v.Loading {
		t.Error("loading flag must be cleared after a failed fetch")
	}
}

func TestRefreshPass_CancelStopsNextBatch(t *testing.T) {
	leagues := []string{"a", "b", "c", "d", "e"}
	c := cache.NewLeagueCache(nil, time.Minute, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())

	feed := newFakeFeed()
	feed.onCall = func(string) { cancel() } // sinal externo durante o primeiro lote

	s := newScheduler(feed, c, leagues)
	s.RefreshPass(ctx, false)

	// O lote corrente assenta (3 fetches completam); o seguinte nunca começa
	if n := len(feed.callTimes()); n != 3 {
		t.Fatalf("expected only the in-flight batch to complete, got %d calls", n)
	}
}
