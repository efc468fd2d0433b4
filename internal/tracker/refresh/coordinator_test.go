package refresh

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vkiragi/bet-tracker/internal/tracker/model"
)

type fakeBetSource struct {
	mu   sync.Mutex
	bets []model.Bet
}

func (s *fakeBetSource) ListPending(context.Context) ([]model.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Bet(nil), s.bets...), nil
}

type fakeRefresher struct {
	mu         sync.Mutex
	propIDs    [][]string
	parlayIDs  [][]string
	propResp   []model.PropLiveUpdate
	parlayResp []model.ParlayLegsUpdate
	propErr    error
	parlayErr  error
}

func (f *fakeRefresher) RefreshProps(_ context.Context, ids []string) ([]model.PropLiveUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.propIDs = append(f.propIDs, ids)
	if f.propErr != nil {
		return nil, f.propErr
	}
	return f.propResp, nil
}

func (f *fakeRefresher) RefreshParlayLegs(_ context.Context, ids []string) ([]model.ParlayLegsUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.parlayIDs = append(f.parlayIDs, ids)
	if f.parlayErr != nil {
		return nil, f.parlayErr
	}
	return f.parlayResp, nil
}

func line(v float64) *float64 { return &v }

func trackableBet(id string) model.Bet {
	return model.Bet{
		ID: id, Status: model.BetPending, Type: model.BetTypeProp,
		EventID: "401", PlayerName: "Player", MarketType: "points", Line: line(10.5),
	}
}

func trackableParlay(id string) model.Bet {
	return model.Bet{
		ID: id, Status: model.BetPending, Type: model.BetTypeParlay,
		Legs: []model.Leg{{EventID: "401"}},
	}
}

func TestRunCycle_IssuesBothBatchedCalls(t *testing.T) {
	src := &fakeBetSource{bets: []model.Bet{
		trackableBet("b1"),
		trackableBet("b2"),
		trackableParlay("p1"),
		{ID: "ignored", Status: model.BetWon, Type: model.BetTypeProp},
	}}
	feed := &fakeRefresher{
		propResp:   []model.PropLiveUpdate{{ID: "b1", PropStatus: "live_hit"}},
		parlayResp: []model.ParlayLegsUpdate{{ID: "p1", Legs: []model.Leg{{EventID: "401", PropStatus: model.StatusLiveMiss}}}},
	}

	c := NewCoordinator(feed, src, time.Minute, zap.NewNop())
	c.RunCycle(context.Background())

	if len(feed.propIDs) != 1 || len(feed.propIDs[0]) != 2 {
		t.Fatalf("expected one props call with 2 ids, got %v", feed.propIDs)
	}
	if len(feed.parlayIDs) != 1 || len(feed.parlayIDs[0]) != 1 || feed.parlayIDs[0][0] != "p1" {
		t.Fatalf("expected one parlay call with p1, got %v", feed.parlayIDs)
	}

	if u, ok := c.LiveFor("b1"); !ok || u.PropStatus != "live_hit" {
		t.Error("props merge should expose the update by id")
	}
	if legs, ok := c.LegsFor("p1"); !ok || len(legs) != 1 {
		t.Error("parlay merge should expose updated legs by id")
	}
}

func TestRunCycle_FailureDoesNotBlockSibling(t *testing.T) {
	src := &fakeBetSource{bets: []model.Bet{trackableBet("b1"), trackableParlay("p1")}}
	feed := &fakeRefresher{
		propErr:    errors.New("props endpoint down"),
		parlayResp: []model.ParlayLegsUpdate{{ID: "p1", Legs: []model.Leg{{EventID: "401"}}}},
	}

	c := NewCoordinator(feed, src, time.Minute, zap.NewNop())

	var stages []string
	var mu sync.Mutex
	c.OnError = func(stage string) {
		mu.Lock()
		stages = append(stages, stage)
		mu.Unlock()
	}

	c.RunCycle(context.Background())

	if _, ok := c.LegsFor("p1"); !ok {
		t.Error("parlay merge must land despite props failure")
	}
	if len(stages) != 1 || stages[0] != "props" {
		t.Errorf("expected a single props-stage error, got %v", stages)
	}
}

func TestRunCycle_PreservesUnrelatedIDs(t *testing.T) {
	src := &fakeBetSource{bets: []model.Bet{trackableBet("b1")}}
	feed := &fakeRefresher{propResp: []model.PropLiveUpdate{{ID: "b1", PropStatus: "live_hit"}}}

	c := NewCoordinator(feed, src, time.Minute, zap.NewNop())
	c.RunCycle(context.Background())

	// Ciclo seguinte responde só pra b2; b1 não pode ser apagado
	src.mu.Lock()
	src.bets = append(src.bets, trackableBet("b2"))
	src.mu.Unlock()
	feed.mu.Lock()
	feed.propResp = []model.PropLiveUpdate{{ID: "b2", PropStatus: "live_miss"}}
	feed.mu.Unlock()

	c.RunCycle(context.Background())

	if _, ok := c.LiveFor("b1"); !ok {
		t.Error("merge must not erase previously merged unrelated ids")
	}
	if _, ok := c.LiveFor("b2"); !ok {
		t.Error("new id should be merged")
	}
}

func TestMerge_DropsOutOfOrderCycle(t *testing.T) {
	src := &fakeBetSource{bets: []model.Bet{trackableBet("b1")}}
	feed := &fakeRefresher{propResp: []model.PropLiveUpdate{{ID: "b1", PropStatus: "won"}}}

	c := NewCoordinator(feed, src, time.Minute, zap.NewNop())
	ctx := context.Background()

	c.RunCycle(ctx) // ciclo 1
	c.RunCycle(ctx) // ciclo 2, lastProps = 2

	// Resposta atrasada do ciclo 1 com dado mais velho
	c.mergeProps(ctx, 1, []model.PropLiveUpdate{{ID: "b1", PropStatus: "live_hit"}})

	if u, _ := c.LiveFor("b1"); u.PropStatus != "won" {
		t.Errorf("stale cycle must be discarded, got %s", u.PropStatus)
	}
}

func TestMerge_DroppedAfterTeardown(t *testing.T) {
	src := &fakeBetSource{bets: []model.Bet{trackableBet("b1")}}
	feed := &fakeRefresher{}
	c := NewCoordinator(feed, src, time.Minute, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c.mergeProps(ctx, 1, []model.PropLiveUpdate{{ID: "b1", PropStatus: "won"}})
	if _, ok := c.LiveFor("b1"); ok {
		t.Error("late response after teardown must be dropped")
	}
}

func TestPoke_TriggersOnlyOnSizeChange(t *testing.T) {
	src := &fakeBetSource{bets: []model.Bet{trackableBet("b1")}}
	feed := &fakeRefresher{propResp: []model.PropLiveUpdate{{ID: "b1"}}}
	c := NewCoordinator(feed, src, time.Minute, zap.NewNop())
	ctx := context.Background()

	c.RunCycle(ctx)
	if c.sizesChanged(ctx) {
		t.Error("unchanged collection should not trigger an immediate cycle")
	}

	src.mu.Lock()
	src.bets = append(src.bets, trackableBet("b2"))
	src.mu.Unlock()
	if !c.sizesChanged(ctx) {
		t.Error("trackable-set growth should trigger an immediate cycle")
	}
}
