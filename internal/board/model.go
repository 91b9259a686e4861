package board

import (
	"errors"
	"math"
	"strings"
	"time"
)

const (
	// StartBalance is assigned to new users and restored on every period reset.
	StartBalance = 5000.0

	MaxRecentTrades = 500
	MaxNicknameLen  = 40
	PodiumSize      = 3

	// MaxIdempotencyKeys caps the claimed-key set kept in the document; the
	// oldest claims are evicted past it.
	MaxIdempotencyKeys = 1000

	// AnonNickname buckets blank nicknames in trade summaries.
	AnonNickname = "Anon"

	monthKeyLayout = "2006-01"
)

const (
	ResultWin  = "win"
	ResultLose = "lose"
)

var (
	ErrInvalidResult        = errors.New(`result must be "win" or "lose"`)
	ErrInvalidLimit         = errors.New("limit must be > 0")
	ErrInvalidMinutes       = errors.New("invalid minutes parameter")
	ErrMonthNotFound        = errors.New("no winners for that month")
	ErrDuplicateIdempotency = errors.New("duplicate idempotency key")
)

// Round2 rounds to two decimal places, half away from zero. Applied whenever a
// monetary or percentage value is stored or surfaced, never to intermediates.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// NormalizeResult lowercases a trade result and checks it against the two
// accepted outcomes.
func NormalizeResult(result string) (string, error) {
	res := strings.ToLower(strings.TrimSpace(result))
	if res != ResultWin && res != ResultLose {
		return "", ErrInvalidResult
	}
	return res, nil
}

// CleanNickname trims whitespace and truncates to MaxNicknameLen characters.
// Truncation counts runes, not bytes, so multi-byte names are never cut
// mid-sequence.
func CleanNickname(nick string) string {
	nick = strings.TrimSpace(nick)
	if r := []rune(nick); len(r) > MaxNicknameLen {
		nick = string(r[:MaxNicknameLen])
	}
	return nick
}

// MonthKey formats t as a "YYYY-MM" key in UTC.
func MonthKey(t time.Time) string {
	return t.UTC().Format(monthKeyLayout)
}

// PrevMonthKey returns the month key for the calendar month preceding t:
// first of the current month minus one day.
func PrevMonthKey(t time.Time) string {
	at := t.UTC()
	first := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, 0, -1).Format(monthKeyLayout)
}

// Timestamp renders t in the feed/document timestamp format.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTimestamp parses a feed timestamp. The second return is false for
// missing or malformed values; callers drop such entries when a recency
// cutoff is active.
func ParseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
