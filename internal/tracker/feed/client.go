package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/vkiragi/bet-tracker/internal/tracker/model"
)

// Client é o cliente HTTP do serviço de dados esportivos remoto.
// Todas as chamadas são best-effort: o chamador decide como degradar.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Log     *zap.Logger
}

func New(base string, log *zap.Logger) *Client {
	return &Client{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		Log:     log,
	}
}

type scoresResponse struct {
	Games []model.GameRecord `json:"games"`
}

type propsResponse struct {
	Bets []model.PropLiveUpdate `json:"bets"`
}

type parlaysResponse struct {
	Parlays []model.ParlayLegsUpdate `json:"parlays"`
}

// FetchScores busca jogos ao vivo (ou do dia) de uma liga.
func (c *Client) FetchScores(ctx context.Context, leagueID string, limit int, live bool, date string) ([]model.GameRecord, error) {
	q := url.Values{}
	q.Set("league", leagueID)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("live", strconv.FormatBool(live))
	if date != "" {
		q.Set("date", date)
	}

	var out scoresResponse
	if err := c.getJSON(ctx, "/v1/scores?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return c.quarantineGames(out.Games), nil
}

// FetchSchedule busca jogos agendados de uma liga.
func (c *Client) FetchSchedule(ctx context.Context, leagueID string, limit int, date string) ([]model.GameRecord, error) {
	q := url.Values{}
	q.Set("league", leagueID)
	q.Set("limit", strconv.Itoa(limit))
	if date != "" {
		q.Set("date", date)
	}

	var out scoresResponse
	if err := c.getJSON(ctx, "/v1/schedule?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return c.quarantineGames(out.Games), nil
}

// RefreshProps pede ao feed o estado ao vivo de um lote de apostas
// rastreáveis. Registros malformados são descartados na borda.
func (c *Client) RefreshProps(ctx context.Context, betIDs []string) ([]model.PropLiveUpdate, error) {
	var out propsResponse
	if err := c.postJSON(ctx, "/v1/bets/refresh-props", betIDs, &out); err != nil {
		return nil, err
	}

	valid := out.Bets[:0]
	for i := range out.Bets {
		if !out.Bets[i].Valid() {
			c.Log.Warn("quarantined malformed prop update", zap.String("bet_id", out.Bets[i].ID))
			continue
		}
		valid = append(valid, out.Bets[i])
	}
	return valid, nil
}

// RefreshParlayLegs pede ao feed as legs atualizadas de um lote de parlays.
func (c *Client) RefreshParlayLegs(ctx context.Context, parlayIDs []string) ([]model.ParlayLegsUpdate, error) {
	var out parlaysResponse
	if err := c.postJSON(ctx, "/v1/bets/refresh-parlay-legs", parlayIDs, &out); err != nil {
		return nil, err
	}

	valid := out.Parlays[:0]
	for i := range out.Parlays {
		if !out.Parlays[i].Valid() {
			c.Log.Warn("quarantined malformed parlay update", zap.String("parlay_id", out.Parlays[i].ID))
			continue
		}
		valid = append(valid, out.Parlays[i])
	}
	return valid, nil
}

// quarantineGames remove registros de jogo sem event_id ou sem times.
func (c *Client) quarantineGames(games []model.GameRecord) []model.GameRecord {
	valid := games[:0]
	for i := range games {
		g := games[i]
		if g.EventID == "" || (g.HomeTeam == "" && g.AwayTeam == "") {
			c.Log.Warn("quarantined malformed game record", zap.String("event_id", g.EventID))
			continue
		}
		valid = append(valid, g)
	}
	return valid
}

func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, dst)
}

func (c *Client) postJSON(ctx context.Context, path string, body any, dst any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, dst)
}

func (c *Client) do(req *http.Request, dst any) error {
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("feed http %d: %s", res.StatusCode, req.URL.Path)
	}
	return json.NewDecoder(res.Body).Decode(dst)
}
