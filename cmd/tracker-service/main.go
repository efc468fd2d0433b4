package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vkiragi/bet-tracker/internal/shared/cache"
	"github.com/vkiragi/bet-tracker/internal/shared/config"
	"github.com/vkiragi/bet-tracker/internal/shared/db"
	"github.com/vkiragi/bet-tracker/internal/shared/kafka"
	"github.com/vkiragi/bet-tracker/internal/shared/logger"
	"github.com/vkiragi/bet-tracker/internal/shared/metrics"
	lcache "github.com/vkiragi/bet-tracker/internal/tracker/cache"
	"github.com/vkiragi/bet-tracker/internal/tracker/feed"
	httpapi "github.com/vkiragi/bet-tracker/internal/tracker/http"
	"github.com/vkiragi/bet-tracker/internal/tracker/model"
	"github.com/vkiragi/bet-tracker/internal/tracker/refresh"
	"github.com/vkiragi/bet-tracker/internal/tracker/resolver"
	"github.com/vkiragi/bet-tracker/internal/tracker/service"
	"github.com/vkiragi/bet-tracker/internal/tracker/store"
	"github.com/vkiragi/bet-tracker/internal/tracker/ws"
	ev "github.com/vkiragi/bet-tracker/pkg/contracts/events"
)

// Métricas Prometheus do engine de reconciliação
var (
	leagueFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_league_fetches_total",
		Help: "Fetches de placares por liga",
	}, []string{"league"})
	leagueFetchErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_league_fetch_errors_total",
		Help: "Falhas de fetch de placares por liga",
	}, []string{"league"})
	propCycles = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_prop_refresh_cycles_total",
		Help: "Ciclos do coordinator de refresh de props",
	})
	propCycleErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_prop_refresh_errors_total",
		Help: "Falhas do coordinator por etapa (list, props, parlays)",
	}, []string{"stage"})
	trackableGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tracker_trackable_bets",
		Help: "Apostas rastreáveis no último ciclo",
	}, []string{"kind"})
	statusEvents = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_status_events_published_total",
		Help: "Eventos bet_status_changed publicados no Kafka",
	})
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	prometheus.MustRegister(leagueFetches, leagueFetchErrors, propCycles,
		propCycleErrors, trackableGauge, statusEvents)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()

	// Redis
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka writer (topic bet_status_changed)
	writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetStatusChanged)
	defer writer.Close()

	// deps
	repository := store.NewPostgres(pg)
	feedClient := feed.New(cfg.FeedBaseURL, log)
	leagueCache := lcache.NewLeagueCache(rdb, cfg.CacheTTL, log)

	// Scheduler de placares por liga
	scheduler := &refresh.BatchRefreshScheduler{
		Cache:      leagueCache,
		Feed:       feedClient,
		Log:        log,
		Leagues:    cfg.Leagues,
		BatchSize:  cfg.RefreshBatchSize,
		BatchDelay: cfg.RefreshBatchDelay,
		GameLimit:  25,
		OnFetch:    func(id string) { leagueFetches.WithLabelValues(id).Inc() },
		OnError:    func(id string) { leagueFetchErrors.WithLabelValues(id).Inc() },
	}

	// Coordinator de refresh remoto de props/parlays
	coord := refresh.NewCoordinator(feedClient, repository, cfg.PropRefreshInterval, log)
	coord.OnCycle = propCycles.Inc
	coord.OnError = func(stage string) { propCycleErrors.WithLabelValues(stage).Inc() }
	coord.OnTrackableSize = func(bets, parlays int) {
		trackableGauge.WithLabelValues("bets").Set(float64(bets))
		trackableGauge.WithLabelValues("parlays").Set(float64(parlays))
	}
	coord.OnPropsApplied = func(updates []model.PropLiveUpdate) {
		applyProps(ctx, log, cfg, repository, writer, rdb.Publish, updates)
	}
	coord.OnLegsApplied = func(updates []model.ParlayLegsUpdate) {
		applyLegs(ctx, log, cfg, repository, rdb.Publish, updates)
	}

	svc := &service.Service{
		Store:    repository,
		Cache:    leagueCache,
		Live:     coord,
		Resolver: resolver.New(log),
		Log:      log,
	}

	// WebSocket hub alimentado pelo Pub/Sub do Redis
	hub := ws.NewHub(func(*http.Request) bool { return true })
	ws.StartRedisSubscriber(ctx, rdb, hub, log)

	api := &httpapi.API{
		Svc:          svc,
		Log:          log,
		ForceRefresh: func() { go scheduler.RefreshPass(ctx, true) },
		PokeProps:    coord.Poke,
		Schedule: func(ctx context.Context, leagueID string) ([]model.GameRecord, error) {
			return feedClient.FetchSchedule(ctx, leagueID, 25, "")
		},
		HandleWS: hub.HandleWS,
	}
	apiSrv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: api.Router(),
	}

	// metrics/health
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		return rdb.Ping(ctx).Err()
	})

	// loops de background
	go scheduler.Run(ctx, cfg.SchedulerInterval)
	go coord.Run(ctx)

	go func() {
		log.Info("tracker-service listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("api", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = apiSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}

type redisPublish = func(ctx context.Context, channel string, message interface{}) *redis.IntCmd

// applyProps persiste cada atualização remota, publica o evento Kafka
// quando o status vira terminal e repassa o payload pro canal de broadcast.
func applyProps(
	ctx context.Context,
	log *zap.Logger,
	cfg config.Config,
	repository *store.Postgres,
	writer *kafka.Writer,
	publish redisPublish,
	updates []model.PropLiveUpdate,
) {
	for _, u := range updates {
		prior, err := repository.GetByID(ctx, u.ID)
		if err != nil {
			log.Warn("live update load", zap.String("bet_id", u.ID), zap.Error(err))
			continue
		}

		// A tabela de transição vale também na persistência: um status
		// remoto que regrediria mantém o já gravado.
		u = u.GatedBy(prior.PropStatus)
		if err := repository.ApplyLiveUpdate(ctx, u); err != nil {
			log.Error("live update persist", zap.String("bet_id", u.ID), zap.Error(err))
			continue
		}

		newStatus := model.PropStatus(u.PropStatus)
		if newStatus.IsTerminal() && prior.PropStatus != newStatus {
			evt := ev.BetStatusChanged{
				BetID:     u.ID,
				UserID:    prior.UserID,
				BetType:   prior.Type,
				OldStatus: string(prior.PropStatus),
				NewStatus: string(newStatus),
				EventID:   prior.EventID,
				Ts:        time.Now(),
			}
			if u.CurrentValue != nil {
				evt.FinalValue = *u.CurrentValue
			}
			payload, _ := json.Marshal(evt)
			if err := kafka.WriteJSON(ctx, writer, u.ID, payload); err != nil {
				log.Error("publish bet_status_changed", zap.String("bet_id", u.ID), zap.Error(err))
			} else {
				statusEvents.Inc()
			}
		}

		broadcast(ctx, log, cfg, publish, u.ID, u)
	}
}

// applyLegs substitui as legs persistidas de cada parlay e faz broadcast.
func applyLegs(
	ctx context.Context,
	log *zap.Logger,
	cfg config.Config,
	repository *store.Postgres,
	publish redisPublish,
	updates []model.ParlayLegsUpdate,
) {
	for _, u := range updates {
		prior, err := repository.GetByID(ctx, u.ID)
		if err != nil {
			log.Warn("parlay legs load", zap.String("parlay_id", u.ID), zap.Error(err))
			continue
		}

		u.Legs = model.GateLegStatuses(prior.Legs, u.Legs)
		if err := repository.ReplaceLegs(ctx, u.ID, u.Legs); err != nil {
			log.Error("parlay legs persist", zap.String("parlay_id", u.ID), zap.Error(err))
			continue
		}
		broadcast(ctx, log, cfg, publish, u.ID, u)
	}
}

func broadcast(ctx context.Context, log *zap.Logger, cfg config.Config, publish redisPublish, betID string, payload any) {
	msg, _ := json.Marshal(ws.BetUpdate{BetID: betID, Payload: payload})
	if err := publish(ctx, cfg.RedisPubSubChannel, msg).Err(); err != nil {
		log.Warn("pubsub publish", zap.String("bet_id", betID), zap.Error(err))
	}
}
