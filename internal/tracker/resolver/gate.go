package resolver

import "github.com/vkiragi/bet-tracker/internal/tracker/model"

// CanResolveAll é o gate da resolução em lote: true sse o conjunto é
// não-vazio e toda aposta tem prop_status terminal OU jogo encerrado.
// Predicado puro, sem efeito colateral.
func CanResolveAll(pending []model.Bet) bool {
	if len(pending) == 0 {
		return false
	}
	for i := range pending {
		b := &pending[i]
		if b.PropStatus.IsTerminal() {
			continue
		}
		if b.GameState == model.GameStatePost {
			continue
		}
		return false
	}
	return true
}
