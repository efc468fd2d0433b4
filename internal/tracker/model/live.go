package model

// PropLiveUpdate é o registro autoritativo do refresh remoto para uma
// aposta rastreável. Quando presente, sobrescreve por inteiro os campos
// derivados localmente para aquele id no ciclo corrente.
type PropLiveUpdate struct {
	ID              string           `json:"id"`
	CurrentValue    *float64         `json:"current_value,omitempty"`
	CurrentValueStr string           `json:"current_value_str,omitempty"`
	GameState       string           `json:"game_state,omitempty"`
	GameStatusText  string           `json:"game_status_text,omitempty"`
	PropStatus      string           `json:"prop_status,omitempty"`
	LastPlay        string           `json:"last_play,omitempty"`
	LiveSituation   LiveSituation    `json:"live_situation,omitempty"`
	CombinedPlayers []CombinedPlayer `json:"combined_players,omitempty"`
}

// Valid é a validação de borda: registros sem id ou com status
// desconhecido são colocados em quarentena (descartados com log) em vez
// de propagar campos indefinidos.
func (u *PropLiveUpdate) Valid() bool {
	if u.ID == "" {
		return false
	}
	if u.PropStatus != "" {
		if _, ok := ParsePropStatus(u.PropStatus); !ok {
			return false
		}
	}
	return true
}

// GatedBy aplica a tabela de transição ao prop_status remoto contra o
// status já persistido, antes de o update ir pro banco: um status que
// regrediria (terminal de volta a live/pending) mantém o persistido.
func (u PropLiveUpdate) GatedBy(prior PropStatus) PropLiveUpdate {
	if u.PropStatus == "" {
		u.PropStatus = string(prior)
		return u
	}
	u.PropStatus = string(Advance(prior, PropStatus(u.PropStatus)))
	return u
}

// ParlayLegsUpdate é o retorno do refresh remoto para um parlay: a lista
// completa de legs atualizadas, substituída por inteiro por id.
type ParlayLegsUpdate struct {
	ID   string `json:"id"`
	Legs []Leg  `json:"legs"`
}

func (u *ParlayLegsUpdate) Valid() bool {
	return u.ID != "" && len(u.Legs) > 0
}

// GateLegStatuses aplica a tabela de transição por leg antes da
// substituição integral. As legs remotas chegam no mesmo shape e ordem
// do parlay persistido; pareia por posição e, onde houver event_id dos
// dois lados, exige que ele confira antes de usar o status anterior.
func GateLegStatuses(prior, next []Leg) []Leg {
	for i := range next {
		if i >= len(prior) {
			break
		}
		if next[i].EventID != "" && prior[i].EventID != "" && next[i].EventID != prior[i].EventID {
			continue
		}
		next[i].PropStatus = Advance(prior[i].PropStatus, next[i].PropStatus)
	}
	return next
}
