package events

import "time"

// Evento publicado no tópico "bet_status_changed" quando uma aposta
// atinge status terminal (won/lost/push) durante a reconciliação.
type BetStatusChanged struct {
	BetID      string    `json:"bet_id"`
	UserID     string    `json:"user_id"`
	BetType    string    `json:"bet_type"`
	OldStatus  string    `json:"old_status"`
	NewStatus  string    `json:"new_status"` // "won" | "lost" | "push"
	EventID    string    `json:"event_id,omitempty"`
	FinalValue float64   `json:"final_value,omitempty"`
	Ts         time.Time `json:"ts"`
}
