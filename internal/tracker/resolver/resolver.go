package resolver

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/vkiragi/bet-tracker/internal/tracker/model"
)

// Resolver deriva o status ao vivo / final de apostas a partir do jogo
// casado no cache e/ou do registro autoritativo do refresh remoto.
//
// Regra de precedência: existindo registro remoto pro id, ele sobrescreve
// por inteiro a derivação local naquele passe; a derivação local é só
// fallback enquanto nenhum dado remoto chegou. Em ambos os caminhos o
// prop_status passa pela tabela de transições e nunca regride.
type Resolver struct {
	Log *zap.Logger
}

func New(log *zap.Logger) *Resolver { return &Resolver{Log: log} }

// Resolve retorna a aposta com os campos derivados atualizados.
// game e remote são opcionais (nil = sem jogo casado / sem dado remoto).
func (r *Resolver) Resolve(bet model.Bet, game *model.GameRecord, remote *model.PropLiveUpdate) model.Bet {
	out := bet
	if out.PropStatus == "" {
		out.PropStatus = model.StatusPending
	}

	if remote != nil {
		r.applyRemote(&out, remote)
		return out
	}

	if out.IsParlay() {
		// Agregado de parlay nunca é derivado localmente; as legs são
		// resolvidas uma a uma via ResolveLeg pelo chamador.
		return out
	}

	d := deriveLocal(out.Type, out.Selection, out.Side, game)
	applyDerived(&out.CurrentValue, &out.CurrentValueStr, &out.GameState, &out.GameStatusText, &out.PropStatus, d)
	return out
}

// ResolveLeg aplica as mesmas regras de derivação a uma leg de parlay,
// independente das demais. Só anotação de display + status da leg.
func (r *Resolver) ResolveLeg(leg model.Leg, game *model.GameRecord) model.Leg {
	out := leg
	if out.PropStatus == "" {
		out.PropStatus = model.StatusPending
	}

	d := deriveLocal(out.Type, out.Selection, out.Side, game)
	applyDerived(&out.CurrentValue, &out.CurrentValueStr, &out.GameState, &out.GameStatusText, &out.PropStatus, d)
	return out
}

// applyRemote sobrescreve os campos derivados com o registro remoto
// (substituição integral por id, sem merge parcial). O status passa pelo
// guard monotônico: um terminal já atingido não volta pra estado live.
func (r *Resolver) applyRemote(bet *model.Bet, u *model.PropLiveUpdate) {
	bet.CurrentValue = u.CurrentValue
	if u.CurrentValueStr != "" {
		bet.CurrentValueStr = u.CurrentValueStr
	}
	if u.GameState != "" {
		bet.GameState = u.GameState
	}
	bet.GameStatusText = u.GameStatusText
	bet.LastPlay = u.LastPlay
	bet.LiveSituation = u.LiveSituation
	if len(u.CombinedPlayers) > 0 {
		bet.CombinedPlayers = u.CombinedPlayers
	}

	if u.PropStatus == "" {
		return
	}
	next, ok := model.ParsePropStatus(u.PropStatus)
	if !ok {
		return
	}
	prev := bet.PropStatus
	bet.PropStatus = model.Advance(prev, next)
	if bet.PropStatus != next {
		r.Log.Debug("refused status regression from remote",
			zap.String("bet_id", bet.ID),
			zap.String("from", string(prev)),
			zap.String("to", string(next)),
		)
	}
}

// derived acumula o resultado da derivação local de um passe.
type derived struct {
	hasValue bool
	value    float64
	valueStr string

	gameState  string
	statusText string

	status    model.PropStatus // proposta; aplicada via Advance
	hasStatus bool
}

// deriveLocal aplica as regras locais por tipo de aposta. Usada apenas
// na ausência de registro remoto pro id.
func deriveLocal(betType, selection, side string, game *model.GameRecord) derived {
	var d derived
	if game == nil {
		return d
	}

	d.gameState = game.State
	d.statusText = statusText(game)

	home := float64(game.HomeScore)
	away := float64(game.AwayScore)

	switch betType {
	case model.BetTypeMoneyline:
		homeSide, ok := resolveSide(selection, side, game)
		if !ok {
			// Seleção ambígua: status fica indeterminado neste passe
			return d
		}
		margin := home - away
		if !homeSide {
			margin = away - home
		}
		d.hasValue = true
		d.value = margin
		d.valueStr = fmt.Sprintf("%+d (%d-%d)", int(margin), game.AwayScore.Int(), game.HomeScore.Int())

		switch game.State {
		case model.GameStateIn:
			d.hasStatus = true
			if margin > 0 {
				d.status = model.StatusLiveHit
			} else {
				d.status = model.StatusLiveMiss
			}
		case model.GameStatePost:
			// Empate no placar final não tem política definida:
			// não chuta resultado, segue indeterminado
			if margin > 0 {
				d.hasStatus = true
				d.status = model.StatusWon
			} else if margin < 0 {
				d.hasStatus = true
				d.status = model.StatusLost
			}
		}

	case model.BetTypeTotal:
		// Só acompanha o total corrente; a comparação contra a linha é
		// decisão de pontuação diferida ao refresh remoto autoritativo
		if game.State != model.GameStatePre {
			total := home + away
			d.hasValue = true
			d.value = total
			d.valueStr = fmt.Sprintf("%d (%d-%d)", int(total), game.AwayScore.Int(), game.HomeScore.Int())
		}

	default:
		// Prop, Spread e sub-mercados: estatística de jogador/mercado não
		// existe no feed de placar; derivação local é só contexto de display
	}

	return d
}

// applyDerived transfere o resultado da derivação pros campos da aposta,
// respeitando a tabela de transições de status.
func applyDerived(value **float64, valueStr *string, gameState, statusText *string, status *model.PropStatus, d derived) {
	if d.hasValue {
		v := d.value
		*value = &v
		*valueStr = d.valueStr
	}
	if d.gameState != "" {
		*gameState = d.gameState
	}
	if d.statusText != "" {
		*statusText = d.statusText
	}
	if d.hasStatus {
		*status = model.Advance(*status, d.status)
	}
}

// resolveSide decide se a aposta é no time da casa, por substring mútua
// da selection (ou do side, que guarda o nome do time em moneyline)
// contra os nomes dos times. Ambíguo quando casa com ambos ou nenhum.
func resolveSide(selection, side string, game *model.GameRecord) (homeSide bool, ok bool) {
	text := strings.ToLower(strings.TrimSpace(selection))
	if text == "" {
		text = strings.ToLower(strings.TrimSpace(side))
	}
	if text == "" {
		return false, false
	}

	home := strings.ToLower(game.HomeTeam)
	away := strings.ToLower(game.AwayTeam)

	matchesHome := mutualContains(text, home)
	matchesAway := mutualContains(text, away)
	if matchesHome == matchesAway {
		return false, false
	}
	return matchesHome, true
}

func mutualContains(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// statusText monta o texto humano de situação do jogo ("5:09 - Q2").
func statusText(g *model.GameRecord) string {
	switch g.State {
	case model.GameStateIn:
		if g.DisplayClock != "" {
			return fmt.Sprintf("%s - Q%d", g.DisplayClock, g.Period)
		}
		return fmt.Sprintf("Q%d", g.Period)
	case model.GameStatePost:
		return "Final"
	case model.GameStatePre:
		return g.Date
	}
	return ""
}
