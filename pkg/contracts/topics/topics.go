package topics

const (
	// Bets
	BetStatusChanged = "bet_status_changed"

	// DLQs
	BetStatusChangedDLQ = "bet_status_changed_dlq"
)
