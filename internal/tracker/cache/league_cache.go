package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vkiragi/bet-tracker/internal/tracker/model"
)

// key gera a chave Redis da entrada de cache de uma liga
func key(leagueID string) string { return "briefing:leaguecache:" + leagueID }

// LeagueCache é o cache TTL de jogos por liga. A memória é a fonte de
// leitura; o Redis é persistência best-effort (falhas viram cache miss,
// nunca erro pro chamador). Escritas substituem a entrada inteira.
type LeagueCache struct {
	mu      sync.RWMutex
	entries map[string]model.LeagueCacheEntry
	loading map[string]bool

	TTL time.Duration
	rdb *redis.Client // opcional; nil desabilita persistência
	log *zap.Logger
	now func() time.Time
}

// LeagueView é a visão por liga entregue à camada de apresentação.
type LeagueView struct {
	Games       []model.GameRecord `json:"games"`
	Loading     bool               `json:"loading"`
	LastUpdated time.Time          `json:"last_updated"`
}

func NewLeagueCache(rdb *redis.Client, ttl time.Duration, log *zap.Logger) *LeagueCache {
	return &LeagueCache{
		entries: make(map[string]model.LeagueCacheEntry),
		loading: make(map[string]bool),
		TTL:     ttl,
		rdb:     rdb,
		log:     log,
		now:     time.Now,
	}
}

// Get retorna a entrada da liga, se existir. Num miss de memória tenta
// hidratar do Redis; qualquer falha de leitura/parse vira ausência.
func (c *LeagueCache) Get(ctx context.Context, leagueID string) (model.LeagueCacheEntry, bool) {
	c.mu.RLock()
	e, ok := c.entries[leagueID]
	c.mu.RUnlock()
	if ok {
		return e, true
	}

	if c.rdb == nil {
		return model.LeagueCacheEntry{}, false
	}

	b, err := c.rdb.Get(ctx, key(leagueID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Debug("league cache redis read failed", zap.String("league", leagueID), zap.Error(err))
		}
		return model.LeagueCacheEntry{}, false
	}
	var stored model.LeagueCacheEntry
	if err := json.Unmarshal(b, &stored); err != nil {
		c.log.Debug("league cache redis parse failed", zap.String("league", leagueID), zap.Error(err))
		return model.LeagueCacheEntry{}, false
	}

	c.mu.Lock()
	c.entries[leagueID] = stored
	c.mu.Unlock()
	return stored, true
}

// Put substitui atomicamente a entrada da liga com timestamp = now.
// A persistência em Redis é best-effort; falha de escrita só gera log.
func (c *LeagueCache) Put(ctx context.Context, leagueID string, games []model.GameRecord) model.LeagueCacheEntry {
	e := model.LeagueCacheEntry{
		LeagueID:  leagueID,
		Games:     games,
		Timestamp: c.now(),
	}

	c.mu.Lock()
	c.entries[leagueID] = e
	c.mu.Unlock()

	if c.rdb != nil {
		if b, err := json.Marshal(e); err == nil {
			if err := c.rdb.Set(ctx, key(leagueID), b, c.TTL).Err(); err != nil {
				c.log.Debug("league cache redis write failed", zap.String("league", leagueID), zap.Error(err))
			}
		}
	}
	return e
}

// IsValid aplica o invariante de TTL: válida sse now - timestamp < TTL.
func (c *LeagueCache) IsValid(e model.LeagueCacheEntry) bool {
	return c.now().Sub(e.Timestamp) < c.TTL
}

// SetLoading marca/desmarca o flag de carregamento exposto na view.
func (c *LeagueCache) SetLoading(leagueID string, loading bool) {
	c.mu.Lock()
	c.loading[leagueID] = loading
	c.mu.Unlock()
}

// View monta a visão {games, loading, lastUpdated} de uma liga.
func (c *LeagueCache) View(ctx context.Context, leagueID string) LeagueView {
	e, ok := c.Get(ctx, leagueID)

	c.mu.RLock()
	loading := c.loading[leagueID]
	c.mu.RUnlock()

	v := LeagueView{Loading: loading}
	if ok {
		v.Games = e.Games
		v.LastUpdated = e.Timestamp
	}
	return v
}
