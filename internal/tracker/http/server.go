package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/vkiragi/bet-tracker/internal/tracker/model"
	"github.com/vkiragi/bet-tracker/internal/tracker/service"
)

// API expõe os endpoints REST de acompanhamento de apostas
// Consulta o service de reconciliação e dispara refreshes sob demanda
type API struct {
	Svc *service.Service
	Log *zap.Logger

	// ForceRefresh dispara um passe forçado do scheduler de placares
	ForceRefresh func()
	// PokeProps acorda o coordinator de props fora do intervalo
	PokeProps func()
	// Schedule busca no feed os jogos agendados de uma liga
	Schedule func(ctx context.Context, leagueID string) ([]model.GameRecord, error)
	// HandleWS delega o upgrade WebSocket pro hub
	HandleWS http.HandlerFunc
}

// Router retorna o roteador HTTP com os endpoints REST
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/leagues/{id}/games", a.leagueGames)       // Placares de uma liga (cache)
	r.Get("/v1/leagues/{id}/schedule", a.leagueSchedule) // Agenda de uma liga (feed)
	r.Get("/v1/bets", a.listBets)                  // Apostas do usuário, já reconciliadas
	r.Post("/v1/bets", a.createBet)                // Registra uma aposta nova
	r.Delete("/v1/bets/{id}", a.deleteBet)         // Remove uma aposta do usuário
	r.Get("/v1/bets/resolvable", a.resolvable)     // Estado do gate de liquidação
	r.Post("/v1/bets/resolve", a.resolveAll)       // Liquidação em lote (gate)
	r.Post("/v1/refresh", a.forceRefresh)          // Refresh forçado de placares + props
	if a.HandleWS != nil {
		r.Get("/ws", a.HandleWS)
	}
	return r
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// leagueGames retorna os jogos em cache de uma liga com o estado de loading
func (a *API) leagueGames(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	writeJSON(w, http.StatusOK, a.Svc.LeagueGames(r.Context(), id))
}

// leagueSchedule consulta o feed pelos jogos agendados de uma liga
func (a *API) leagueSchedule(w http.ResponseWriter, r *http.Request) {
	if a.Schedule == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	games, err := a.Schedule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.Log.Warn("schedule fetch", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "feed unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"games": games})
}

// listBets retorna as apostas do usuário como view models reconciliados
func (a *API) listBets(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}
	bets, err := a.Svc.BetViews(r.Context(), userID)
	if err != nil {
		a.Log.Error("list bets failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if bets == nil {
		bets = []model.Bet{}
	}
	writeJSON(w, http.StatusOK, bets)
}

// createBet registra uma aposta nova e acorda o coordinator de props
func (a *API) createBet(w http.ResponseWriter, r *http.Request) {
	var b model.Bet
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if b.UserID == "" || b.Type == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id and type are required"})
		return
	}
	id, err := a.Svc.CreateBet(r.Context(), &b)
	if err != nil {
		a.Log.Error("create bet failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if a.PokeProps != nil {
		a.PokeProps()
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// deleteBet remove uma aposta do usuário
func (a *API) deleteBet(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}
	ok, err := a.Svc.DeleteBet(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if a.PokeProps != nil {
		a.PokeProps()
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// resolvable informa se o gate de liquidação em lote está aberto
func (a *API) resolvable(w http.ResponseWriter, r *http.Request) {
	ok, err := a.Svc.CanResolveAll(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"can_resolve_all": ok})
}

// resolveAll liquida todas as pendentes; 409 quando o gate está fechado
func (a *API) resolveAll(w http.ResponseWriter, r *http.Request) {
	n, err := a.Svc.ResolveAll(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrNotResolvable) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "pending bets not all resolvable"})
			return
		}
		a.Log.Error("bulk resolve failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"resolved": n})
}

// forceRefresh dispara um passe forçado de placares e um ciclo de props.
// Responde 202 de imediato; o trabalho roda em background.
func (a *API) forceRefresh(w http.ResponseWriter, _ *http.Request) {
	if a.ForceRefresh != nil {
		a.ForceRefresh()
	}
	if a.PokeProps != nil {
		a.PokeProps()
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refresh scheduled"})
}
