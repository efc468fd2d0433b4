package model

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Estados de jogo reportados pelo feed esportivo.
const (
	GameStatePre     = "pre"
	GameStateIn      = "in"
	GameStatePost    = "post"
	GameStateUnknown = "unknown"
)

// FlexScore aceita placares numéricos ou string numérica no JSON do feed
// ("21" e 21 são equivalentes). Valores não parseáveis viram 0.
type FlexScore float64

func (s *FlexScore) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" || raw == `""` {
		*s = 0
		return nil
	}
	raw = strings.Trim(raw, `"`)
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*s = 0
		return nil
	}
	*s = FlexScore(f)
	return nil
}

func (s FlexScore) Int() int { return int(s) }

// GameRecord é um registro de jogo vindo do feed; nunca é mutado pelo
// engine, apenas substituído por inteiro a cada refresh de liga.
type GameRecord struct {
	EventID      string    `json:"event_id"`
	HomeTeam     string    `json:"home_team"`
	AwayTeam     string    `json:"away_team"`
	HomeScore    FlexScore `json:"home_score"`
	AwayScore    FlexScore `json:"away_score"`
	State        string    `json:"state"` // pre / in / post
	Period       int       `json:"period"`
	DisplayClock string    `json:"display_clock"`
	Date         string    `json:"date"`
}

// LiveSituation carrega dados ricos de jogo ao vivo repassados como estão
// ao view model (posse, down, jogadores em base, etc.)
type LiveSituation = json.RawMessage

// LeagueCacheEntry é a unidade de cache por liga: lista ordenada de jogos
// e o instante do fetch. Válida enquanto now - Timestamp < TTL.
type LeagueCacheEntry struct {
	LeagueID  string       `json:"league_id"`
	Games     []GameRecord `json:"games"`
	Timestamp time.Time    `json:"timestamp"`
}
