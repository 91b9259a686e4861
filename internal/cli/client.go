package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fridge/internal/board"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type LeaderboardResponse struct {
	Leaderboard []board.LeaderboardRow `json:"leaderboard"`
	Timestamp   string                 `json:"timestamp"`
}

type UserResponse struct {
	Status  string         `json:"status"`
	User    board.UserView `json:"user"`
	Message string         `json:"message"`
}

type LiveWinsResponse struct {
	RecentTrades []board.TradeEntry             `json:"recent_trades"`
	Summary      map[string]*board.TradeSummary `json:"summary"`
	Timestamp    string                         `json:"timestamp"`
}

type WinnersResponse struct {
	Month   string                `json:"month"`
	Winners *board.PodiumSnapshot `json:"winners"`
}

type AllWinnersResponse struct {
	Latest         *string                          `json:"latest"`
	Winners        *board.PodiumSnapshot            `json:"winners"`
	MonthlyWinners map[string]*board.PodiumSnapshot `json:"monthly_winners"`
}

func (c *Client) Leaderboard(ctx context.Context, limit int) (LeaderboardResponse, error) {
	var out LeaderboardResponse
	err := c.jsonRequest(ctx, http.MethodGet, "/api/leaderboard?limit="+strconv.Itoa(limit), nil, &out, "")
	return out, err
}

func (c *Client) User(ctx context.Context, userID string) (board.UserView, error) {
	var out board.UserView
	err := c.jsonRequest(ctx, http.MethodGet, "/api/user/"+url.PathEscape(userID), nil, &out, "")
	return out, err
}

func (c *Client) UpdateUser(ctx context.Context, userID string, body map[string]any, idem string) (UserResponse, error) {
	var out UserResponse
	err := c.jsonRequest(ctx, http.MethodPost, "/api/user/"+url.PathEscape(userID), body, &out, idem)
	return out, err
}

func (c *Client) Trade(ctx context.Context, userID, result string, amount *float64, nickname, idem string) (UserResponse, error) {
	body := map[string]any{"result": result}
	if amount != nil {
		body["amount"] = *amount
	}
	if nickname != "" {
		body["nickname"] = nickname
	}
	var out UserResponse
	err := c.jsonRequest(ctx, http.MethodPost, "/api/user/"+url.PathEscape(userID)+"/trade", body, &out, idem)
	return out, err
}

func (c *Client) LiveWins(ctx context.Context, limit int, minutes *int, nickname string) (LiveWinsResponse, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	if minutes != nil {
		params.Set("minutes", strconv.Itoa(*minutes))
	}
	if nickname != "" {
		params.Set("nickname", nickname)
	}
	var out LiveWinsResponse
	err := c.jsonRequest(ctx, http.MethodGet, "/api/live-wins?"+params.Encode(), nil, &out, "")
	return out, err
}

func (c *Client) CloseMonth(ctx context.Context, idem string) (board.CloseResult, error) {
	var out board.CloseResult
	err := c.jsonRequest(ctx, http.MethodPost, "/api/close_month", nil, &out, idem)
	return out, err
}

func (c *Client) Winners(ctx context.Context, month string) (WinnersResponse, error) {
	var out WinnersResponse
	err := c.jsonRequest(ctx, http.MethodGet, "/api/winners/"+url.PathEscape(month), nil, &out, "")
	return out, err
}

func (c *Client) AllWinners(ctx context.Context) (AllWinnersResponse, error) {
	var out AllWinnersResponse
	err := c.jsonRequest(ctx, http.MethodGet, "/api/winners", nil, &out, "")
	return out, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, body any, out any, idem string) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idem != "" {
		req.Header.Set("Idempotency-Key", idem)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("api %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("api %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}
