package model

// PropStatus é o status semântico de uma aposta (ou leg) ao longo do jogo.
// A progressão é monotônica: pending → estados live → terminal.
// Nunca regride para pending nem sai de um estado terminal.
type PropStatus string

const (
	StatusPending     PropStatus = "pending"
	StatusLiveHit     PropStatus = "live_hit"
	StatusLiveMiss    PropStatus = "live_miss"
	StatusLivePush    PropStatus = "live_push"
	StatusUnavailable PropStatus = "unavailable"
	StatusWon         PropStatus = "won"
	StatusLost        PropStatus = "lost"
	StatusPush        PropStatus = "push"
)

// IsTerminal indica se o status encerra o ciclo de vida da aposta.
func (s PropStatus) IsTerminal() bool {
	return s == StatusWon || s == StatusLost || s == StatusPush
}

// IsLive indica um status intermediário de jogo em andamento.
func (s PropStatus) IsLive() bool {
	return s == StatusLiveHit || s == StatusLiveMiss || s == StatusLivePush
}

// ParsePropStatus valida um status vindo do feed remoto.
// Strings desconhecidas são rejeitadas na borda de decode.
func ParsePropStatus(raw string) (PropStatus, bool) {
	switch PropStatus(raw) {
	case StatusPending, StatusLiveHit, StatusLiveMiss, StatusLivePush,
		StatusUnavailable, StatusWon, StatusLost, StatusPush:
		return PropStatus(raw), true
	}
	return "", false
}

// CanTransition aplica a tabela de transições do ciclo de vida:
//   - qualquer status pode permanecer onde está
//   - pending avança para qualquer estado
//   - estados live/unavailable avançam entre si e para terminais
//   - terminais não saem; nada volta para pending
func CanTransition(from, to PropStatus) bool {
	if from == to {
		return true
	}
	if from.IsTerminal() {
		return false
	}
	if to == StatusPending {
		return false
	}
	return true
}

// Advance retorna o próximo status respeitando a tabela de transições;
// transições inválidas mantêm o status atual.
func Advance(from, to PropStatus) PropStatus {
	if CanTransition(from, to) {
		return to
	}
	return from
}
