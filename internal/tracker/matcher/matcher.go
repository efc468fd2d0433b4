package matcher

import (
	"strings"

	"github.com/vkiragi/bet-tracker/internal/tracker/model"
)

// Match liga o texto livre de uma aposta (matchup/selection) a um jogo do
// cache. Função determinística e total: avalia as regras em ordem de
// prioridade contra o primeiro candidato (na ordem de entrada) que
// satisfizer alguma; sem candidato, retorna ausência em vez de erro.
//
// Regras, em ordem:
//  1. matchup contém o nome do time da casa ou visitante
//  2. matchup "Away @ Home" com substring mútua em cada lado
//  3. selection contra home/away com substring mútua (fallback pra
//     moneyline sem matchup de dois lados)
func Match(matchup, selection string, candidates []model.GameRecord) (model.GameRecord, bool) {
	m := strings.ToLower(strings.TrimSpace(matchup))
	sel := strings.ToLower(strings.TrimSpace(selection))

	for i := range candidates {
		g := &candidates[i]
		home := strings.ToLower(g.HomeTeam)
		away := strings.ToLower(g.AwayTeam)

		// Regra 1: containment direto do nome do time no matchup
		if m != "" && home != "" && away != "" {
			if strings.Contains(m, home) || strings.Contains(m, away) {
				return *g, true
			}
		}

		// Regra 2: split em "@" com substring mútua lado a lado
		if awayPart, homePart, ok := splitMatchup(m); ok {
			if mutualContains(away, awayPart) && mutualContains(home, homePart) {
				return *g, true
			}
		}

		// Regra 3: fallback pela selection contra qualquer um dos times
		if sel != "" {
			if mutualContains(sel, home) || mutualContains(sel, away) {
				return *g, true
			}
		}
	}

	return model.GameRecord{}, false
}

// splitMatchup separa "Away @ Home" nas duas metades normalizadas.
func splitMatchup(m string) (awayPart, homePart string, ok bool) {
	before, after, found := strings.Cut(m, "@")
	if !found {
		return "", "", false
	}
	awayPart = strings.TrimSpace(before)
	homePart = strings.TrimSpace(after)
	return awayPart, homePart, awayPart != "" && homePart != ""
}

// mutualContains verifica substring mútua entre dois textos já
// normalizados ("Warriors" casa com "Golden State Warriors").
func mutualContains(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
