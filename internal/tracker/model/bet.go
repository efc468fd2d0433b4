package model

import "time"

// Tipos de aposta suportados pelo engine. Os sub-mercados (1st Half,
// 1st Quarter, Team Total) são rastreáveis como props regulares.
const (
	BetTypeProp         = "Prop"
	BetTypeMoneyline    = "Moneyline"
	BetTypeSpread       = "Spread"
	BetTypeTotal        = "Total"
	BetTypeParlay       = "Parlay"
	BetTypeFirstHalf    = "1st Half"
	BetTypeFirstQuarter = "1st Quarter"
	BetTypeTeamTotal    = "Team Total"
)

// Status persistido da aposta (resultado liquidado), distinto do
// PropStatus derivado ao vivo.
const (
	BetPending = "Pending"
	BetWon     = "Won"
	BetLost    = "Lost"
	BetPush    = "Push"
)

// Lados de uma aposta de linha.
const (
	SideOver  = "over"
	SideUnder = "under"
)

// CombinedPlayer é um componente de prop combinada
// (ex: "Smith + Barkley + Brown Over 4 TDs Combined").
type CombinedPlayer struct {
	PlayerName   string   `json:"player_name"`
	TeamName     string   `json:"team_name,omitempty"`
	EventID      string   `json:"event_id,omitempty"`
	CurrentValue *float64 `json:"current_value,omitempty"`
	GameState    string   `json:"game_state,omitempty"`
}

// Leg é um componente de parlay; mesmo shape de aposta, escopado a um
// jogo, matched e resolvido independentemente.
type Leg struct {
	Sport           string           `json:"sport,omitempty"`
	Type            string           `json:"type,omitempty"`
	Matchup         string           `json:"matchup,omitempty"`
	Selection       string           `json:"selection,omitempty"`
	PlayerName      string           `json:"player_name,omitempty"`
	TeamName        string           `json:"team_name,omitempty"`
	IsCombined      bool             `json:"is_combined,omitempty"`
	CombinedPlayers []CombinedPlayer `json:"combined_players,omitempty"`
	MarketType      string           `json:"market_type,omitempty"`
	Line            *float64         `json:"line,omitempty"`
	Side            string           `json:"side,omitempty"`
	EventID         string           `json:"event_id,omitempty"`
	Odds            *float64         `json:"odds,omitempty"`

	// Campos derivados ao vivo
	CurrentValue    *float64      `json:"current_value,omitempty"`
	CurrentValueStr string        `json:"current_value_str,omitempty"`
	GameState       string        `json:"game_state,omitempty"`
	GameStatusText  string        `json:"game_status_text,omitempty"`
	PropStatus      PropStatus    `json:"prop_status,omitempty"`
	LastPlay        string        `json:"last_play,omitempty"`
	LiveSituation   LiveSituation `json:"live_situation,omitempty"`
}

// Bet é uma aposta do usuário. Criada na entrada (fora deste engine);
// este engine só muta os campos derivados e aplica o refresh remoto.
type Bet struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Sport     string `json:"sport"`
	Type      string `json:"type"`
	Status    string `json:"status"` // Pending / Won / Lost / Push
	Matchup   string `json:"matchup"`
	Selection string `json:"selection"`

	PlayerName      string           `json:"player_name,omitempty"`
	TeamName        string           `json:"team_name,omitempty"`
	IsCombined      bool             `json:"is_combined,omitempty"`
	CombinedPlayers []CombinedPlayer `json:"combined_players,omitempty"`
	MarketType      string           `json:"market_type,omitempty"`
	Line            *float64         `json:"line,omitempty"`
	Side            string           `json:"side,omitempty"`
	EventID         string           `json:"event_id,omitempty"`
	Stake           *float64         `json:"stake,omitempty"`
	Odds            *float64         `json:"odds,omitempty"`

	Legs []Leg `json:"legs,omitempty"`

	// Campos derivados ao vivo (memória + refresh remoto)
	CurrentValue    *float64      `json:"current_value,omitempty"`
	CurrentValueStr string        `json:"current_value_str,omitempty"`
	GameState       string        `json:"game_state,omitempty"`
	GameStatusText  string        `json:"game_status_text,omitempty"`
	PropStatus      PropStatus    `json:"prop_status,omitempty"`
	LastPlay        string        `json:"last_play,omitempty"`
	LiveSituation   LiveSituation `json:"live_situation,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// IsParlay indica aposta de múltiplas legs.
func (b *Bet) IsParlay() bool { return b.Type == BetTypeParlay }

// Trackable indica se a aposta tem campos suficientes pra pedir update
// remoto ao vivo: pendente, de tipo rastreável, com event_id, identidade
// de jogador, mercado e linha, sem status terminal e sem jogo encerrado.
func (b *Bet) Trackable() bool {
	if b.Status != BetPending {
		return false
	}
	switch b.Type {
	case BetTypeProp, BetTypeMoneyline, BetTypeSpread, BetTypeTotal,
		BetTypeFirstHalf, BetTypeFirstQuarter, BetTypeTeamTotal:
	default:
		return false
	}
	if b.EventID == "" {
		return false
	}
	if b.PlayerName == "" && len(b.CombinedPlayers) == 0 {
		return false
	}
	if b.MarketType == "" || b.Line == nil {
		return false
	}
	if b.PropStatus.IsTerminal() {
		return false
	}
	if b.GameState == GameStatePost {
		return false
	}
	return true
}

// TrackableParlay indica parlay pendente com pelo menos uma leg com event_id.
func (b *Bet) TrackableParlay() bool {
	if b.Status != BetPending || !b.IsParlay() {
		return false
	}
	for i := range b.Legs {
		if b.Legs[i].EventID != "" {
			return true
		}
	}
	return false
}
