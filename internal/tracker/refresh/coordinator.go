package refresh

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vkiragi/bet-tracker/internal/tracker/model"
)

// PropRefresher é o subconjunto do feed usado pelo coordinator.
type PropRefresher interface {
	RefreshProps(ctx context.Context, betIDs []string) ([]model.PropLiveUpdate, error)
	RefreshParlayLegs(ctx context.Context, parlayIDs []string) ([]model.ParlayLegsUpdate, error)
}

// BetSource entrega a coleção corrente de apostas do usuário.
type BetSource interface {
	ListPending(ctx context.Context) ([]model.Bet, error)
}

// PropRefreshCoordinator agrupa as apostas/parlays rastreáveis em duas
// chamadas remotas em lote, disparadas em paralelo a cada ciclo, e faz o
// merge dos resultados num mapa em memória por id (substituição integral
// por id, nunca merge parcial entre ciclos).
//
// Cada ciclo carrega um id monotônico; um merge de ciclo mais antigo que
// o último aplicado é descartado, evitando que uma resposta lenta
// sobrescreva dados mais frescos. Falha de uma chamada não bloqueia nem
// desfaz o merge da outra e não apaga resultados de ids não relacionados.
type PropRefreshCoordinator struct {
	Feed     PropRefresher
	Bets     BetSource
	Log      *zap.Logger
	Interval time.Duration

	OnCycle         func()             // métricas
	OnError         func(stage string) // métricas por chamada
	OnPropsApplied  func([]model.PropLiveUpdate)
	OnLegsApplied   func([]model.ParlayLegsUpdate)
	OnTrackableSize func(bets, parlays int) // métricas (gauge)

	mu           sync.RWMutex
	liveByID     map[string]model.PropLiveUpdate
	legsByParlay map[string][]model.Leg
	lastProps    uint64 // guard de ordenação por tipo de chamada
	lastParlays  uint64

	cycleMu   sync.Mutex
	cycleSeq  uint64
	lastBets  int
	lastPlays int
	sawSizes  bool

	trigger chan struct{}
}

func NewCoordinator(feed PropRefresher, bets BetSource, interval time.Duration, log *zap.Logger) *PropRefreshCoordinator {
	return &PropRefreshCoordinator{
		Feed:         feed,
		Bets:         bets,
		Log:          log,
		Interval:     interval,
		liveByID:     make(map[string]model.PropLiveUpdate),
		legsByParlay: make(map[string][]model.Leg),
		trigger:      make(chan struct{}, 1),
	}
}

// Poke sinaliza que a coleção de apostas mudou; o loop dispara um ciclo
// imediato se o tamanho dos conjuntos rastreáveis tiver mudado.
func (c *PropRefreshCoordinator) Poke() {
	select {
	case c.trigger <- struct{}{}:
	default: // ciclo já sinalizado
	}
}

// Run roda o loop de ciclos: imediato no trigger, periódico no interval.
// Respostas que chegarem depois do cancelamento são descartadas.
func (c *PropRefreshCoordinator) Run(ctx context.Context) {
	c.RunCycle(ctx)

	t := time.NewTicker(c.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			c.Log.Info("prop refresh coordinator stopped")
			return
		case <-c.trigger:
			if c.sizesChanged(ctx) {
				c.RunCycle(ctx)
			}
		case <-t.C:
			c.RunCycle(ctx)
		}
	}
}

// TrackableBets filtra as apostas com campos suficientes pro refresh remoto.
func TrackableBets(bets []model.Bet) []model.Bet {
	var out []model.Bet
	for i := range bets {
		if bets[i].Trackable() {
			out = append(out, bets[i])
		}
	}
	return out
}

// TrackableParlays filtra parlays pendentes com ao menos uma leg com event_id.
func TrackableParlays(bets []model.Bet) []model.Bet {
	var out []model.Bet
	for i := range bets {
		if bets[i].TrackableParlay() {
			out = append(out, bets[i])
		}
	}
	return out
}

// RunCycle executa um ciclo completo: recomputa os conjuntos rastreáveis
// e dispara as duas chamadas em paralelo, cada uma com merge independente.
func (c *PropRefreshCoordinator) RunCycle(ctx context.Context) {
	bets, err := c.Bets.ListPending(ctx)
	if err != nil {
		c.Log.Warn("list pending bets failed", zap.Error(err))
		if c.OnError != nil {
			c.OnError("list")
		}
		return
	}

	betIDs := ids(TrackableBets(bets))
	parlayIDs := ids(TrackableParlays(bets))

	c.cycleMu.Lock()
	c.cycleSeq++
	cycle := c.cycleSeq
	c.lastBets = len(betIDs)
	c.lastPlays = len(parlayIDs)
	c.sawSizes = true
	c.cycleMu.Unlock()

	if c.OnTrackableSize != nil {
		c.OnTrackableSize(len(betIDs), len(parlayIDs))
	}
	if len(betIDs) == 0 && len(parlayIDs) == 0 {
		return
	}
	if c.OnCycle != nil {
		c.OnCycle()
	}

	var wg sync.WaitGroup
	if len(betIDs) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			updates, err := c.Feed.RefreshProps(ctx, betIDs)
			if err != nil {
				c.Log.Warn("refresh props failed", zap.Uint64("cycle", cycle), zap.Error(err))
				if c.OnError != nil {
					c.OnError("props")
				}
				return
			}
			c.mergeProps(ctx, cycle, updates)
		}()
	}
	if len(parlayIDs) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			updates, err := c.Feed.RefreshParlayLegs(ctx, parlayIDs)
			if err != nil {
				c.Log.Warn("refresh parlay legs failed", zap.Uint64("cycle", cycle), zap.Error(err))
				if c.OnError != nil {
					c.OnError("parlays")
				}
				return
			}
			c.mergeParlays(ctx, cycle, updates)
		}()
	}
	wg.Wait()
}

// mergeProps aplica os updates de props no mapa por id.
// Ciclos fora de ordem e respostas pós-teardown são descartados.
func (c *PropRefreshCoordinator) mergeProps(ctx context.Context, cycle uint64, updates []model.PropLiveUpdate) {
	if ctx.Err() != nil {
		return
	}

	c.mu.Lock()
	if cycle < c.lastProps {
		c.mu.Unlock()
		c.Log.Debug("dropped out-of-order props merge", zap.Uint64("cycle", cycle), zap.Uint64("last", c.lastProps))
		return
	}
	c.lastProps = cycle
	for i := range updates {
		c.liveByID[updates[i].ID] = updates[i]
	}
	c.mu.Unlock()

	if c.OnPropsApplied != nil {
		c.OnPropsApplied(updates)
	}
}

// mergeParlays aplica os updates de legs de parlay no mapa por id.
func (c *PropRefreshCoordinator) mergeParlays(ctx context.Context, cycle uint64, updates []model.ParlayLegsUpdate) {
	if ctx.Err() != nil {
		return
	}

	c.mu.Lock()
	if cycle < c.lastParlays {
		c.mu.Unlock()
		c.Log.Debug("dropped out-of-order parlay merge", zap.Uint64("cycle", cycle), zap.Uint64("last", c.lastParlays))
		return
	}
	c.lastParlays = cycle
	for i := range updates {
		c.legsByParlay[updates[i].ID] = updates[i].Legs
	}
	c.mu.Unlock()

	if c.OnLegsApplied != nil {
		c.OnLegsApplied(updates)
	}
}

// LiveFor devolve o registro remoto autoritativo de uma aposta, se houver.
func (c *PropRefreshCoordinator) LiveFor(betID string) (model.PropLiveUpdate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.liveByID[betID]
	return u, ok
}

// LegsFor devolve as legs remotas atualizadas de um parlay, se houver.
func (c *PropRefreshCoordinator) LegsFor(parlayID string) ([]model.Leg, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	legs, ok := c.legsByParlay[parlayID]
	return legs, ok
}

// sizesChanged recomputa os conjuntos rastreáveis e compara com o último
// ciclo; mudança de tamanho justifica um ciclo imediato.
func (c *PropRefreshCoordinator) sizesChanged(ctx context.Context) bool {
	bets, err := c.Bets.ListPending(ctx)
	if err != nil {
		return false
	}
	nb := len(TrackableBets(bets))
	np := len(TrackableParlays(bets))

	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()
	if !c.sawSizes {
		return true
	}
	return nb != c.lastBets || np != c.lastPlays
}

func ids(bets []model.Bet) []string {
	out := make([]string, 0, len(bets))
	for i := range bets {
		out = append(out, bets[i].ID)
	}
	return out
}
