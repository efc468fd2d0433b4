package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/vkiragi/bet-tracker/internal/shared/config"
	"github.com/vkiragi/bet-tracker/internal/shared/db"
	"github.com/vkiragi/bet-tracker/internal/shared/kafka"
	"github.com/vkiragi/bet-tracker/internal/shared/logger"
	"github.com/vkiragi/bet-tracker/internal/shared/metrics"
	"github.com/vkiragi/bet-tracker/internal/tracker/store"
	ev "github.com/vkiragi/bet-tracker/pkg/contracts/events"
)

var (
	settled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_processed_total",
		Help: "Eventos bet_status_changed liquidados",
	}, []string{"status"})
	settleErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_errors_total",
		Help: "Falhas de processamento de liquidação",
	})
	dlqMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_dlq_total",
		Help: "Eventos enviados pra DLQ",
	})
)

// statusFor mapeia o prop_status terminal pro status persistido da aposta.
func statusFor(propStatus string) (string, bool) {
	switch propStatus {
	case "won":
		return "Won", true
	case "lost":
		return "Lost", true
	case "push":
		return "Push", true
	}
	return "", false
}

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	prometheus.MustRegister(settled, settleErrors, dlqMessages)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Conexão com banco de dados Postgres para liquidação das apostas
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()
	repository := store.NewPostgres(pg)

	// Kafka consumer: consome eventos bet_status_changed
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicBetStatusChanged, "settlement-worker")
	defer reader.Close()

	// Producer da DLQ para eventos que não puderam ser processados
	var dlqWriter *kafkago.Writer
	if cfg.TopicBetStatusChangedDLQ != "" {
		dlqWriter = kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetStatusChangedDLQ)
		defer dlqWriter.Close()
	}

	// Servidor HTTP para métricas Prometheus e healthcheck
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		return nil
	})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	log.Info("settlement-worker started", zap.String("consume", cfg.TopicBetStatusChanged))

	// Loop principal: consome eventos do Kafka e liquida cada aposta
	for {
		_, value, err := kafka.ReadNext(ctx, reader)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("shutting down")
				return
			}
			log.Warn("kafka read", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		var evt ev.BetStatusChanged
		if jerr := json.Unmarshal(value, &evt); jerr != nil {
			log.Error("unmarshal bet_status_changed", zap.Error(jerr))
			settleErrors.Inc()
			continue
		}

		if err := settleOne(ctx, log, repository, &evt); err != nil {
			log.Error("settle bet", zap.String("bet_id", evt.BetID), zap.Error(err))
			settleErrors.Inc()
			if dlqWriter != nil {
				if derr := kafka.WriteJSON(ctx, dlqWriter, evt.BetID, value); derr != nil {
					log.Error("dlq publish", zap.Error(derr))
				} else {
					dlqMessages.Inc()
				}
			}
			// Backoff simples para evitar flood em caso de erro
			time.Sleep(500 * time.Millisecond)
		}
	}
}

// settleOne executa o fluxo de liquidação de uma aposta:
// 1. Mapeia o prop_status terminal pro status final
// 2. Atualiza o status da aposta no banco
// 3. Grava a linha de auditoria em bet_settlements
func settleOne(ctx context.Context, log *zap.Logger, repository *store.Postgres, evt *ev.BetStatusChanged) error {
	status, ok := statusFor(evt.NewStatus)
	if !ok {
		// Eventos não-terminais não deveriam chegar aqui; só registra
		log.Warn("non-terminal status ignored",
			zap.String("bet_id", evt.BetID), zap.String("status", evt.NewStatus))
		return nil
	}

	// Retry simples: a liquidação é idempotente (UPDATE por id)
	var err error
	for i := 0; i < 3; i++ {
		if err = repository.UpdateStatus(ctx, evt.BetID, status); err == nil {
			break
		}
		time.Sleep(time.Duration(300*(i+1)) * time.Millisecond)
	}
	if err != nil {
		return err
	}

	// Auditoria é best-effort; a liquidação em si já está persistida
	if err := repository.InsertSettlement(ctx, evt.BetID, evt.OldStatus, evt.NewStatus, evt.Ts); err != nil {
		log.Warn("settlement audit insert", zap.Error(err))
	}

	settled.WithLabelValues(evt.NewStatus).Inc()
	log.Info("bet settled",
		zap.String("bet_id", evt.BetID),
		zap.String("status", status),
	)
	return nil
}
