package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/vkiragi/bet-tracker/internal/tracker/model"
)

// Postgres implementa a persistência de apostas do usuário.
// Este engine só muta os campos derivados e o status liquidado;
// criação/remoção acontecem na entrada de apostas (fora daqui).
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

const betColumns = `
	id, user_id, sport, type, status, matchup, selection,
	player_name, team_name, is_combined, combined_players,
	market_type, line, side, event_id, stake, odds, legs,
	current_value, current_value_str, game_state, game_status_text,
	prop_status, last_play, live_situation, created_at, updated_at`

// Create insere uma aposta nova com status Pending.
func (p *Postgres) Create(ctx context.Context, b *model.Bet) (string, error) {
	id := uuid.NewString()
	combined, _ := json.Marshal(b.CombinedPlayers)
	legs, _ := json.Marshal(b.Legs)

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO bets
		  (id, user_id, sport, type, status, matchup, selection,
		   player_name, team_name, is_combined, combined_players,
		   market_type, line, side, event_id, stake, odds, legs,
		   prop_status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,'Pending',$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,'pending',NOW(),NOW())`,
		id, b.UserID, b.Sport, b.Type, b.Matchup, b.Selection,
		b.PlayerName, b.TeamName, b.IsCombined, combined,
		b.MarketType, b.Line, b.Side, b.EventID, b.Stake, b.Odds, legs,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// ListPending retorna as apostas pendentes de todos os usuários,
// na ordem de criação (entrada do coordinator).
func (p *Postgres) ListPending(ctx context.Context) ([]model.Bet, error) {
	return p.list(ctx, `SELECT `+betColumns+` FROM bets WHERE status='Pending' ORDER BY created_at`)
}

// ListByUser retorna todas as apostas de um usuário.
func (p *Postgres) ListByUser(ctx context.Context, userID string) ([]model.Bet, error) {
	return p.list(ctx, `SELECT `+betColumns+` FROM bets WHERE user_id=$1 ORDER BY created_at DESC`, userID)
}

func (p *Postgres) list(ctx context.Context, q string, args ...any) ([]model.Bet, error) {
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBet(rows *sql.Rows) (model.Bet, error) {
	var b model.Bet
	var combined, legs, liveSituation []byte
	var teamName, marketType, side, eventID sql.NullString
	var valueStr, gameState, statusText, propStatus, lastPlay sql.NullString
	var playerName, matchup, selection sql.NullString
	var line, stake, odds, currentValue sql.NullFloat64

	err := rows.Scan(
		&b.ID, &b.UserID, &b.Sport, &b.Type, &b.Status, &matchup, &selection,
		&playerName, &teamName, &b.IsCombined, &combined,
		&marketType, &line, &side, &eventID, &stake, &odds, &legs,
		&currentValue, &valueStr, &gameState, &statusText,
		&propStatus, &lastPlay, &liveSituation, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return b, err
	}

	b.Matchup = matchup.String
	b.Selection = selection.String
	b.PlayerName = playerName.String
	b.TeamName = teamName.String
	b.MarketType = marketType.String
	b.Side = side.String
	b.EventID = eventID.String
	b.CurrentValueStr = valueStr.String
	b.GameState = gameState.String
	b.GameStatusText = statusText.String
	b.PropStatus = model.PropStatus(propStatus.String)
	b.LastPlay = lastPlay.String

	if line.Valid {
		b.Line = &line.Float64
	}
	if stake.Valid {
		b.Stake = &stake.Float64
	}
	if odds.Valid {
		b.Odds = &odds.Float64
	}
	if currentValue.Valid {
		b.CurrentValue = &currentValue.Float64
	}
	if len(combined) > 0 {
		_ = json.Unmarshal(combined, &b.CombinedPlayers)
	}
	if len(legs) > 0 {
		_ = json.Unmarshal(legs, &b.Legs)
	}
	if len(liveSituation) > 0 {
		b.LiveSituation = liveSituation
	}
	return b, nil
}

// GetByID retorna uma aposta específica, ou sql.ErrNoRows.
func (p *Postgres) GetByID(ctx context.Context, betID string) (model.Bet, error) {
	bets, err := p.list(ctx, `SELECT `+betColumns+` FROM bets WHERE id=$1`, betID)
	if err != nil {
		return model.Bet{}, err
	}
	if len(bets) == 0 {
		return model.Bet{}, sql.ErrNoRows
	}
	return bets[0], nil
}

// ApplyLiveUpdate persiste os campos derivados de um refresh remoto.
// Substituição integral dos campos ao vivo pro id, nunca merge parcial.
func (p *Postgres) ApplyLiveUpdate(ctx context.Context, u model.PropLiveUpdate) error {
	combined, _ := json.Marshal(u.CombinedPlayers)
	_, err := p.db.ExecContext(ctx, `
		UPDATE bets SET
		  current_value=$1, current_value_str=$2, game_state=$3,
		  game_status_text=$4, prop_status=$5, last_play=$6,
		  live_situation=$7, combined_players=COALESCE(NULLIF($8::jsonb,'null'::jsonb), combined_players),
		  updated_at=NOW()
		WHERE id=$9`,
		u.CurrentValue, u.CurrentValueStr, u.GameState,
		u.GameStatusText, u.PropStatus, u.LastPlay,
		[]byte(u.LiveSituation), combined, u.ID,
	)
	return err
}

// ReplaceLegs substitui por inteiro as legs de um parlay.
func (p *Postgres) ReplaceLegs(ctx context.Context, parlayID string, legs []model.Leg) error {
	b, err := json.Marshal(legs)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx,
		`UPDATE bets SET legs=$1, updated_at=NOW() WHERE id=$2`, b, parlayID)
	return err
}

// ResolveAll liquida em lote as apostas pendentes com prop_status
// terminal, mapeando won/lost/push pro status persistido. Apostas com
// jogo encerrado mas sem desfecho derivado ficam pra ajuste manual.
func (p *Postgres) ResolveAll(ctx context.Context) (int64, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE bets SET
		  status = CASE prop_status
		    WHEN 'won'  THEN 'Won'
		    WHEN 'lost' THEN 'Lost'
		    WHEN 'push' THEN 'Push'
		  END,
		  updated_at = NOW()
		WHERE status='Pending' AND prop_status IN ('won','lost','push')`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateStatus liquida uma aposta individual (settlement-worker).
func (p *Postgres) UpdateStatus(ctx context.Context, betID, status string) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE bets SET status=$1, updated_at=NOW() WHERE id=$2`, status, betID)
	return err
}

// InsertSettlement grava a linha de auditoria de uma liquidação.
func (p *Postgres) InsertSettlement(ctx context.Context, betID, oldStatus, newStatus string, ts time.Time) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO bet_settlements (bet_id, old_status, new_status, created_at)
		VALUES ($1,$2,$3,$4)`, betID, oldStatus, newStatus, ts)
	return err
}

// Delete remove uma aposta do usuário. Retorna false se não existia.
func (p *Postgres) Delete(ctx context.Context, betID, userID string) (bool, error) {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM bets WHERE id=$1 AND user_id=$2`, betID, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
