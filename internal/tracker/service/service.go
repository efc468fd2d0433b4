package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/vkiragi/bet-tracker/internal/tracker/cache"
	"github.com/vkiragi/bet-tracker/internal/tracker/matcher"
	"github.com/vkiragi/bet-tracker/internal/tracker/model"
	"github.com/vkiragi/bet-tracker/internal/tracker/resolver"
)

// ErrNotResolvable indica que o gate de resolução em lote está fechado.
var ErrNotResolvable = errors.New("pending bets not all resolvable")

// BetStore é o subconjunto da persistência usado pelo service.
type BetStore interface {
	ListByUser(ctx context.Context, userID string) ([]model.Bet, error)
	ListPending(ctx context.Context) ([]model.Bet, error)
	Create(ctx context.Context, b *model.Bet) (string, error)
	Delete(ctx context.Context, betID, userID string) (bool, error)
	ResolveAll(ctx context.Context) (int64, error)
}

// LiveSource expõe os resultados merged do coordinator.
type LiveSource interface {
	LiveFor(betID string) (model.PropLiveUpdate, bool)
	LegsFor(parlayID string) ([]model.Leg, bool)
}

// Service monta os view models por aposta: campos originais + jogo
// casado no cache + override remoto, na ordem de precedência do resolver.
type Service struct {
	Store    BetStore
	Cache    *cache.LeagueCache
	Live     LiveSource
	Resolver *resolver.Resolver
	Log      *zap.Logger
}

// BetViews resolve e retorna as apostas de um usuário como view models.
func (s *Service) BetViews(ctx context.Context, userID string) ([]model.Bet, error) {
	bets, err := s.Store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.resolveAll(ctx, bets), nil
}

// PendingViews resolve as apostas pendentes (entrada do gate).
func (s *Service) PendingViews(ctx context.Context) ([]model.Bet, error) {
	bets, err := s.Store.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	return s.resolveAll(ctx, bets), nil
}

func (s *Service) resolveAll(ctx context.Context, bets []model.Bet) []model.Bet {
	out := make([]model.Bet, 0, len(bets))
	for i := range bets {
		out = append(out, s.resolveOne(ctx, bets[i]))
	}
	return out
}

// resolveOne aplica o pipeline de reconciliação a uma aposta.
func (s *Service) resolveOne(ctx context.Context, bet model.Bet) model.Bet {
	if bet.IsParlay() {
		return s.resolveParlay(ctx, bet)
	}

	var remote *model.PropLiveUpdate
	if u, ok := s.Live.LiveFor(bet.ID); ok {
		remote = &u
	}

	game := s.matchGame(ctx, bet.Sport, bet.Matchup, bet.Selection)
	return s.Resolver.Resolve(bet, game, remote)
}

// resolveParlay troca as legs pelo retorno remoto quando existir;
// sem dado remoto, cada leg é anotada localmente contra o cache.
func (s *Service) resolveParlay(ctx context.Context, bet model.Bet) model.Bet {
	out := bet
	if legs, ok := s.Live.LegsFor(bet.ID); ok {
		out.Legs = legs
		return out
	}

	resolved := make([]model.Leg, 0, len(out.Legs))
	for i := range out.Legs {
		leg := out.Legs[i]
		game := s.matchGame(ctx, leg.Sport, leg.Matchup, leg.Selection)
		resolved = append(resolved, s.Resolver.ResolveLeg(leg, game))
	}
	out.Legs = resolved
	return out
}

// matchGame busca os candidatos da liga no cache e aplica o matcher.
func (s *Service) matchGame(ctx context.Context, league, matchup, selection string) *model.GameRecord {
	if league == "" {
		return nil
	}
	entry, ok := s.Cache.Get(ctx, league)
	if !ok {
		return nil
	}
	g, ok := matcher.Match(matchup, selection, entry.Games)
	if !ok {
		return nil
	}
	return &g
}

// CreateBet registra uma aposta nova (status Pending, prop_status pending).
func (s *Service) CreateBet(ctx context.Context, b *model.Bet) (string, error) {
	return s.Store.Create(ctx, b)
}

// DeleteBet remove uma aposta do usuário. Retorna false se não existia.
func (s *Service) DeleteBet(ctx context.Context, betID, userID string) (bool, error) {
	return s.Store.Delete(ctx, betID, userID)
}

// LeagueGames entrega a visão {games, loading, lastUpdated} de uma liga.
func (s *Service) LeagueGames(ctx context.Context, leagueID string) cache.LeagueView {
	return s.Cache.View(ctx, leagueID)
}

// CanResolveAll avalia o gate sobre o agregado de view models pendentes.
func (s *Service) CanResolveAll(ctx context.Context) (bool, error) {
	views, err := s.PendingViews(ctx)
	if err != nil {
		return false, err
	}
	return resolver.CanResolveAll(views), nil
}

// ResolveAll liquida em lote as pendentes; falha se o gate está fechado.
func (s *Service) ResolveAll(ctx context.Context) (int64, error) {
	ok, err := s.CanResolveAll(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrNotResolvable
	}
	return s.Store.ResolveAll(ctx)
}
