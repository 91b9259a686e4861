package board

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
)

// Document is the entire persisted state. It is read, mutated, and written
// back as a whole under the service mutex.
type Document struct {
	Users           map[string]*UserRecord     `json:"users"`
	MonthlyWinners  map[string]*PodiumSnapshot `json:"monthly_winners"`
	LastMonthClosed string                     `json:"last_month_closed"`
	RecentTrades    []TradeEntry               `json:"recent_trades"`

	// IdempotencyKeys maps each claimed write key to its claim timestamp.
	// Additive field; documents written before it existed decode fine.
	IdempotencyKeys map[string]string `json:"idempotency_keys,omitempty"`
}

// NewDocument returns the default empty state.
func NewDocument() *Document {
	return &Document{
		Users:           map[string]*UserRecord{},
		MonthlyWinners:  map[string]*PodiumSnapshot{},
		RecentTrades:    []TradeEntry{},
		IdempotencyKeys: map[string]string{},
	}
}

// Normalize repairs nil containers after decoding an external document.
func (d *Document) Normalize() {
	if d.Users == nil {
		d.Users = map[string]*UserRecord{}
	}
	if d.MonthlyWinners == nil {
		d.MonthlyWinners = map[string]*PodiumSnapshot{}
	}
	if d.RecentTrades == nil {
		d.RecentTrades = []TradeEntry{}
	}
	if d.IdempotencyKeys == nil {
		d.IdempotencyKeys = map[string]string{}
	}
}

type UserRecord struct {
	Nickname           string  `json:"nickname"`
	Balance            float64 `json:"balance"`
	LastUpdate         string  `json:"last_update"`
	Trades             int     `json:"trades"`
	Wins               int     `json:"wins"`
	PeriodStartBalance float64 `json:"period_start_balance"`
}

// TradeEntry is one event in the newest-first feed. Immutable after creation
// except for Nickname, which is rewritten when the user renames.
type TradeEntry struct {
	ID       string  `json:"id"`
	TS       string  `json:"ts"`
	UserID   string  `json:"user_id"`
	Nickname string  `json:"nickname"`
	Result   string  `json:"result"`
	Amount   float64 `json:"amount"`
}

type PodiumSnapshot struct {
	Podium   []PodiumEntry `json:"podium"`
	ClosedAt string        `json:"closed_at"`
}

type PodiumEntry struct {
	Position int     `json:"position"`
	UserID   string  `json:"user_id"`
	Nickname string  `json:"nickname"`
	Balance  float64 `json:"balance"`
}

// LoadResult tags a loaded document with whether the store fell back to the
// default state because the backing data was unreadable. The HTTP surface
// never exposes this; tests and callers can assert on it.
type LoadResult struct {
	Doc       *Document
	Recovered bool
}

// Store abstracts document persistence. Implementations must make Save as
// atomic as their medium allows; the service holds its own mutex, so stores
// need no internal serialization.
type Store interface {
	Load(ctx context.Context) (LoadResult, error)
	Save(ctx context.Context, doc *Document) error
}

// FlexFloat decodes a JSON number or a numeric string. Anything else leaves
// OK false without failing the decode; callers apply their documented
// fallback instead of surfacing an error.
type FlexFloat struct {
	Value float64
	OK    bool
}

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	*f = FlexFloat{}
	if string(data) == "null" {
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		f.Value, f.OK = n, true
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			f.Value, f.OK = n, true
		}
	}
	return nil
}

// FlexInt is FlexFloat's integer counterpart; fractional numbers truncate.
type FlexInt struct {
	Value int
	OK    bool
}

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	*f = FlexInt{}
	if string(data) == "null" {
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		f.Value, f.OK = int(n), true
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		s = strings.TrimSpace(s)
		if n, err := strconv.Atoi(s); err == nil {
			f.Value, f.OK = n, true
		} else if fl, err := strconv.ParseFloat(s, 64); err == nil {
			f.Value, f.OK = int(fl), true
		}
	}
	return nil
}

// UpdateInput is a partial user update; nil fields are left untouched.
// IdempotencyKey comes from the transport layer, never the request body.
type UpdateInput struct {
	Nickname           *string    `json:"nickname"`
	Balance            *FlexFloat `json:"balance"`
	Trades             *FlexInt   `json:"trades"`
	Wins               *FlexInt   `json:"wins"`
	PeriodStartBalance *FlexFloat `json:"period_start_balance"`

	IdempotencyKey string `json:"-"`
}

// TradeInput records one trade outcome. Amount is optional: when absent, the
// counters move but the balance does not.
type TradeInput struct {
	Result   string     `json:"result"`
	Amount   *FlexFloat `json:"amount"`
	Nickname *string    `json:"nickname"`

	IdempotencyKey string `json:"-"`
}

// RecentQuery filters the trade feed. Minutes is nil when no recency cutoff
// was requested.
type RecentQuery struct {
	Limit    int
	Minutes  *int
	Nickname string
}

// TradeSummary aggregates the filtered feed per nickname.
type TradeSummary struct {
	Net    float64 `json:"net"`
	Wins   int     `json:"wins"`
	Losses int     `json:"losses"`
	Trades int     `json:"trades"`
}

// UserView is the full per-user response shape.
type UserView struct {
	UserID             string  `json:"user_id"`
	Nickname           string  `json:"nickname"`
	Balance            float64 `json:"balance"`
	Performance        float64 `json:"performance"`
	WinRate            float64 `json:"win_rate"`
	TradesThisPeriod   int     `json:"trades_this_period"`
	Wins               int     `json:"wins"`
	PeriodStartBalance float64 `json:"period_start_balance"`
	LastUpdate         string  `json:"last_update"`
}

// LeaderboardRow is the per-user summary on the ranked board.
type LeaderboardRow struct {
	UserID           string  `json:"user_id"`
	Nickname         string  `json:"nickname"`
	Balance          float64 `json:"balance"`
	Performance      float64 `json:"performance"`
	WinRate          float64 `json:"win_rate"`
	TradesThisPeriod int     `json:"trades_this_period"`
}

// CloseResult reports a month-close attempt. Podium is non-nil (possibly
// empty) when a close happened and nil when the month was already closed; the
// HTTP layer relies on that distinction for the response shape.
type CloseResult struct {
	Status string        `json:"status"`
	Month  string        `json:"month"`
	Podium []PodiumEntry `json:"podium"`
}

const (
	CloseStatusClosed        = "closed"
	CloseStatusAlreadyClosed = "already_closed"
)
