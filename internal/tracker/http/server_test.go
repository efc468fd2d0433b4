package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vkiragi/bet-tracker/internal/tracker/cache"
	"github.com/vkiragi/bet-tracker/internal/tracker/model"
	"github.com/vkiragi/bet-tracker/internal/tracker/resolver"
	"github.com/vkiragi/bet-tracker/internal/tracker/service"
)

type stubStore struct{ pending []model.Bet }

func (s *stubStore) ListByUser(context.Context, string) ([]model.Bet, error) { return s.pending, nil }
func (s *stubStore) ListPending(context.Context) ([]model.Bet, error)        { return s.pending, nil }
func (s *stubStore) Create(_ context.Context, b *model.Bet) (string, error)  { return b.ID, nil }
func (s *stubStore) Delete(context.Context, string, string) (bool, error)    { return true, nil }
func (s *stubStore) ResolveAll(context.Context) (int64, error)               { return int64(len(s.pending)), nil }

type stubLive struct{}

func (stubLive) LiveFor(string) (model.PropLiveUpdate, bool) { return model.PropLiveUpdate{}, false }
func (stubLive) LegsFor(string) ([]model.Leg, bool)          { return nil, false }

func newTestAPI(pending []model.Bet) *API {
	svc := &service.Service{
		Store:    &stubStore{pending: pending},
		Cache:    cache.NewLeagueCache(nil, 5*time.Minute, zap.NewNop()),
		Live:     stubLive{},
		Resolver: resolver.New(zap.NewNop()),
		Log:      zap.NewNop(),
	}
	return &API{Svc: svc, Log: zap.NewNop()}
}

func TestResolveEndpoint_ConflictWhenGateClosed(t *testing.T) {
	api := newTestAPI([]model.Bet{
		{ID: "a", Status: model.BetPending, GameState: model.GameStateIn, PropStatus: model.StatusLiveHit},
	})
	srv := httptest.NewServer(api.Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/bets/resolve", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 while a bet is still open, got %d", resp.StatusCode)
	}
}

func TestResolveEndpoint_OKWhenGateOpen(t *testing.T) {
	api := newTestAPI([]model.Bet{
		{ID: "a", Status: model.BetPending, GameState: model.GameStatePost, PropStatus: model.StatusWon},
	})
	srv := httptest.NewServer(api.Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/bets/resolve", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with every bet settled, got %d", resp.StatusCode)
	}
}

func TestListBets_RequiresUserID(t *testing.T) {
	api := newTestAPI(nil)
	srv := httptest.NewServer(api.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/bets")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without user_id, got %d", resp.StatusCode)
	}
}

func TestForceRefresh_AcceptedAndDelegated(t *testing.T) {
	api := newTestAPI(nil)
	var forced, poked bool
	api.ForceRefresh = func() { forced = true }
	api.PokeProps = func() { poked = true }

	srv := httptest.NewServer(api.Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/refresh", "application/json", strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	if !forced || !poked {
		t.Error("refresh must delegate to scheduler and coordinator")
	}
}
