package refresh

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vkiragi/bet-tracker/internal/tracker/cache"
	"github.com/vkiragi/bet-tracker/internal/tracker/model"
)

// ScoreFetcher é o subconjunto do feed usado pelo scheduler.
type ScoreFetcher interface {
	FetchScores(ctx context.Context, leagueID string, limit int, live bool, date string) ([]model.GameRecord, error)
}

// BatchRefreshScheduler mantém o cache de ligas aquecido: agrupa as ligas
// em lotes sequenciais de BatchSize, faz fan-out concorrente dentro do
// lote e espera BatchDelay entre lotes. Falha de uma liga é logada sem
// abortar as irmãs do lote nem os lotes seguintes.
type BatchRefreshScheduler struct {
	Cache *cache.LeagueCache
	Feed  ScoreFetcher
	Log   *zap.Logger

	Leagues    []string // ordem de refresh
	BatchSize  int
	BatchDelay time.Duration
	GameLimit  int // jogos por liga pedidos ao feed

	OnFetch func(leagueID string) // métricas
	OnError func(leagueID string) // métricas
}

// RefreshPass executa um passe completo sobre as ligas habilitadas.
// Em modo lazy (force=false) só ligas com entrada inválida são buscadas;
// em modo forçado, todas. Com o ctx cancelado, nenhum lote novo começa
// depois que o corrente assentar; fetches em voo terminam normalmente.
func (s *BatchRefreshScheduler) RefreshPass(ctx context.Context, force bool) {
	stale := s.staleLeagues(ctx, force)
	if len(stale) == 0 {
		return
	}

	size := s.BatchSize
	if size <= 0 {
		size = 3
	}

	for start := 0; start < len(stale); start += size {
		if ctx.Err() != nil {
			s.Log.Info("refresh pass canceled", zap.Int("remaining", len(stale)-start))
			return
		}
		if start > 0 {
			if !sleepCtx(ctx, s.BatchDelay) {
				return
			}
		}

		end := start + size
		if end > len(stale) {
			end = len(stale)
		}
		s.refreshBatch(ctx, stale[start:end])
	}
}

// Run roda o loop periódico: um passe lazy imediato e depois passes
// forçados a cada interval, até o cancelamento do contexto.
func (s *BatchRefreshScheduler) Run(ctx context.Context, interval time.Duration) {
	s.RefreshPass(ctx, false)

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Log.Info("scheduler stopped")
			return
		case <-t.C:
			s.RefreshPass(ctx, true)
		}
	}
}

// staleLeagues filtra as ligas que precisam de fetch neste passe.
func (s *BatchRefreshScheduler) staleLeagues(ctx context.Context, force bool) []string {
	if force {
		return s.Leagues
	}
	var stale []string
	for _, id := range s.Leagues {
		e, ok := s.Cache.Get(ctx, id)
		if ok && s.Cache.IsValid(e) {
			continue
		}
		stale = append(stale, id)
	}
	return stale
}

// refreshBatch faz o fan-out/fan-in de um lote de ligas.
func (s *BatchRefreshScheduler) refreshBatch(ctx context.Context, leagues []string) {
	// Fetches em voo completam mesmo com o sinal de parada do scheduler
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for _, id := range leagues {
		s.Cache.SetLoading(id, true)

		wg.Add(1)
		go func(leagueID string) {
			defer wg.Done()
			defer s.Cache.SetLoading(leagueID, false)

			limit := s.GameLimit
			if limit <= 0 {
				limit = 15
			}
			games, err := s.Feed.FetchScores(fetchCtx, leagueID, limit, true, "")
			if err != nil {
				// Dados previamente cacheados da liga ficam intocados
				s.Log.Warn("league fetch failed", zap.String("league", leagueID), zap.Error(err))
				if s.OnError != nil {
					s.OnError(leagueID)
				}
				return
			}

			s.Cache.Put(fetchCtx, leagueID, games)
			if s.OnFetch != nil {
				s.OnFetch(leagueID)
			}
		}(id)
	}
	wg.Wait()
}

// sleepCtx espera d respeitando cancelamento; false se o ctx encerrou.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
