package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/vkiragi/bet-tracker/internal/shared/config"
	"github.com/vkiragi/bet-tracker/internal/shared/logger"
	"github.com/vkiragi/bet-tracker/internal/shared/metrics"
	"github.com/vkiragi/bet-tracker/internal/tracker/model"
)

var (
	// Catálogo fixo de confrontos simulados por liga
	leagueCatalog = map[string][][2]string{
		"nba": {
			{"Boston Celtics", "Golden State Warriors"},
			{"Los Angeles Lakers", "Denver Nuggets"},
			{"Milwaukee Bucks", "Miami Heat"},
		},
		"nfl": {
			{"Kansas City Chiefs", "Buffalo Bills"},
			{"Philadelphia Eagles", "Dallas Cowboys"},
		},
		"mlb": {
			{"New York Yankees", "Boston Red Sox"},
			{"Los Angeles Dodgers", "San Diego Padres"},
		},
		"nhl": {
			{"Colorado Avalanche", "Vegas Golden Knights"},
			{"Toronto Maple Leafs", "Boston Bruins"},
		},
	}

	// Métricas Prometheus do simulador
	scoreRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_score_requests_total",
		Help: "Requisições de placares por liga",
	}, []string{"league"})
	refreshRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_refresh_requests_total",
		Help: "Requisições de refresh por tipo (props, parlays)",
	}, []string{"kind"})
)

// simulator gera estados pseudo-ao-vivo determinísticos por minuto:
// o mesmo eventID no mesmo minuto responde sempre o mesmo placar.
type simulator struct {
	log *zap.Logger

	mu sync.Mutex
	// ids já vistos nos refreshes, pra manter a progressão de status
	seen map[string]int
}

func newSimulator(log *zap.Logger) *simulator {
	return &simulator{log: log, seen: make(map[string]int)}
}

// seededRand deriva um gerador estável de uma chave + janela de tempo
func seededRand(key string) *rand.Rand {
	var h int64
	for _, c := range key {
		h = h*31 + int64(c)
	}
	h += time.Now().Unix() / 60
	return rand.New(rand.NewSource(h))
}

// gamesFor monta os jogos de uma liga com placares em progressão
func (s *simulator) gamesFor(league string, limit int, live bool) []model.GameRecord {
	catalog, ok := leagueCatalog[league]
	if !ok {
		return []model.GameRecord{}
	}

	out := make([]model.GameRecord, 0, len(catalog))
	for i, teams := range catalog {
		if limit > 0 && i >= limit {
			break
		}
		eventID := fmt.Sprintf("%s-%03d", league, i+1)
		rng := seededRand(eventID)

		state := model.GameStateIn
		period := 1 + rng.Intn(4)
		if !live && rng.Intn(3) == 0 {
			state = model.GameStatePost
			period = 4
		}

		home := model.FlexScore(40 + rng.Intn(60))
		away := model.FlexScore(40 + rng.Intn(60))
		clock := fmt.Sprintf("%d:%02d", rng.Intn(12), rng.Intn(60))
		if state == model.GameStatePost {
			clock = "0:00"
		}

		out = append(out, model.GameRecord{
			EventID:      eventID,
			HomeTeam:     teams[0],
			AwayTeam:     teams[1],
			HomeScore:    home,
			AwayScore:    away,
			State:        state,
			Period:       period,
			DisplayClock: clock,
			Date:         time.Now().Format("2006-01-02"),
		})
	}
	return out
}

// propUpdate gera o estado ao vivo de uma aposta, avançando o status
// a cada chamada: pending -> live -> terminal, nunca de volta.
func (s *simulator) propUpdate(betID string) model.PropLiveUpdate {
	s.mu.Lock()
	s.seen[betID]++
	calls := s.seen[betID]
	s.mu.Unlock()

	rng := seededRand(betID)
	value := 5 + rng.Float64()*30

	status := "live_miss"
	gameState := model.GameStateIn
	statusText := fmt.Sprintf("%d:%02d - Q%d", rng.Intn(12), rng.Intn(60), 1+rng.Intn(4))
	if rng.Intn(2) == 0 {
		status = "live_hit"
	}
	// Depois de algumas chamadas o jogo encerra e o status vira terminal
	if calls > 4 {
		gameState = model.GameStatePost
		statusText = "Final"
		if status == "live_hit" {
			status = "won"
		} else {
			status = "lost"
		}
	}

	return model.PropLiveUpdate{
		ID:              betID,
		CurrentValue:    &value,
		CurrentValueStr: strconv.FormatFloat(value, 'f', 1, 64),
		GameState:       gameState,
		GameStatusText:  statusText,
		PropStatus:      status,
		LastPlay:        "Jump shot made",
	}
}

func (s *simulator) scoresHandler(w http.ResponseWriter, r *http.Request) {
	league := r.URL.Query().Get("league")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	live := r.URL.Query().Get("live") == "true"
	scoreRequests.WithLabelValues(league).Inc()

	writeJSON(w, http.StatusOK, map[string]any{"games": s.gamesFor(league, limit, live)})
}

func (s *simulator) scheduleHandler(w http.ResponseWriter, r *http.Request) {
	league := r.URL.Query().Get("league")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	scoreRequests.WithLabelValues(league).Inc()

	games := s.gamesFor(league, limit, false)
	for i := range games {
		games[i].State = model.GameStatePre
		games[i].HomeScore = 0
		games[i].AwayScore = 0
		games[i].DisplayClock = ""
	}
	writeJSON(w, http.StatusOK, map[string]any{"games": games})
}

func (s *simulator) refreshPropsHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	refreshRequests.WithLabelValues("props").Inc()

	var ids []string
	if err := json.NewDecoder(r.Body).Decode(&ids); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request"})
		return
	}

	bets := make([]model.PropLiveUpdate, 0, len(ids))
	for _, id := range ids {
		bets = append(bets, s.propUpdate(id))
	}
	writeJSON(w, http.StatusOK, map[string]any{"bets": bets})
}

func (s *simulator) refreshParlayLegsHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	refreshRequests.WithLabelValues("parlays").Inc()

	var ids []string
	if err := json.NewDecoder(r.Body).Decode(&ids); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request"})
		return
	}

	parlays := make([]model.ParlayLegsUpdate, 0, len(ids))
	for _, id := range ids {
		u := s.propUpdate(id + "-leg1")
		leg := model.Leg{
			EventID:         "nba-001",
			Selection:       "Boston Celtics",
			CurrentValue:    u.CurrentValue,
			CurrentValueStr: u.CurrentValueStr,
			GameState:       u.GameState,
			GameStatusText:  u.GameStatusText,
			PropStatus:      model.PropStatus(u.PropStatus),
			LastPlay:        u.LastPlay,
		}
		parlays = append(parlays, model.ParlayLegsUpdate{ID: id, Legs: []model.Leg{leg}})
	}
	writeJSON(w, http.StatusOK, map[string]any{"parlays": parlays})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	prometheus.MustRegister(scoreRequests, refreshRequests)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sim := newSimulator(log)

	r := chi.NewRouter()
	r.Get("/v1/scores", sim.scoresHandler)
	r.Get("/v1/schedule", sim.scheduleHandler)
	r.Post("/v1/bets/refresh-props", sim.refreshPropsHandler)
	r.Post("/v1/bets/refresh-parlay-legs", sim.refreshParlayLegsHandler)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: r,
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(context.Context) error { return nil })

	go func() {
		log.Info("feed-simulator listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}
