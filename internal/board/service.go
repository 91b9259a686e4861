package board

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Service owns every read-modify-write cycle against the document. A single
// mutex serializes operations end to end (load, mutate, save), so the store
// never sees interleaved writers from this process. Multi-process deployments
// need a store with its own locking (see store.PgStore).
type Service struct {
	store Store
	log   *slog.Logger
	mu    sync.Mutex
	now   func() time.Time
}

func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store: store,
		log:   logger,
		now:   time.Now,
	}
}

// SetClock overrides the service clock. Tests only.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) load(ctx context.Context) (*Document, error) {
	res, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if res.Recovered {
		s.log.Warn("document recovered from unreadable backing data, starting empty")
	}
	res.Doc.Normalize()
	return res.Doc, nil
}

func (s *Service) save(ctx context.Context, doc *Document) error {
	if err := s.store.Save(ctx, doc); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

// getOrCreate synthesizes a default record on first reference. Persistence
// happens at the end of the enclosing operation, never here.
func getOrCreate(doc *Document, userID string) *UserRecord {
	if u, ok := doc.Users[userID]; ok {
		return u
	}
	u := &UserRecord{
		Balance:            StartBalance,
		PeriodStartBalance: StartBalance,
	}
	doc.Users[userID] = u
	return u
}

func userView(userID string, u *UserRecord) UserView {
	m := ComputeMetrics(u)
	return UserView{
		UserID:             userID,
		Nickname:           u.Nickname,
		Balance:            m.Balance,
		Performance:        m.Performance,
		WinRate:            m.WinRate,
		TradesThisPeriod:   m.Trades,
		Wins:               m.Wins,
		PeriodStartBalance: m.PeriodStartBalance,
		LastUpdate:         u.LastUpdate,
	}
}

// GetUser returns the stored record, or the synthetic defaults when the user
// has never been written. Read-only: an absent user is not persisted.
func (s *Service) GetUser(ctx context.Context, userID string) (UserView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return UserView{}, err
	}
	if u, ok := doc.Users[userID]; ok {
		return userView(userID, u), nil
	}
	return UserView{
		UserID:             userID,
		Balance:            Round2(StartBalance),
		PeriodStartBalance: Round2(StartBalance),
	}, nil
}

// claimIdempotency records a write key on the document, rejecting keys seen
// before. Empty keys skip the claim. The claim only persists when the
// enclosing operation saves, so a rejected write never consumes its key.
func claimIdempotency(doc *Document, key string, now time.Time) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	if _, ok := doc.IdempotencyKeys[key]; ok {
		return ErrDuplicateIdempotency
	}
	doc.IdempotencyKeys[key] = Timestamp(now)
	for len(doc.IdempotencyKeys) > MaxIdempotencyKeys {
		oldestKey := ""
		var oldestAt time.Time
		for k, v := range doc.IdempotencyKeys {
			at, ok := ParseTimestamp(v)
			if !ok {
				oldestKey = k
				break
			}
			if oldestKey == "" || at.Before(oldestAt) {
				oldestKey, oldestAt = k, at
			}
		}
		delete(doc.IdempotencyKeys, oldestKey)
	}
	return nil
}

// applyNickname cleans the candidate, and when it differs from the stored
// value updates the record and rewrites the nickname on every feed entry
// belonging to the user. Returns the new nickname, or "" when unchanged.
func applyNickname(doc *Document, userID string, u *UserRecord, nickname string) string {
	n := CleanNickname(nickname)
	if n == u.Nickname {
		return ""
	}
	u.Nickname = n
	for i := range doc.RecentTrades {
		if doc.RecentTrades[i].UserID == userID {
			doc.RecentTrades[i].Nickname = n
		}
	}
	return n
}

// UpdateUser applies a partial update. Unparseable numeric inputs are
// absorbed silently: balance and period_start_balance fall back to
// StartBalance, trades and wins keep their previous value. The asymmetry is
// deliberate and load-bearing for compatibility.
func (s *Service) UpdateUser(ctx context.Context, userID string, upd UpdateInput) (UserView, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return UserView{}, "", err
	}
	if err := claimIdempotency(doc, upd.IdempotencyKey, s.now()); err != nil {
		return UserView{}, "", err
	}
	u := getOrCreate(doc, userID)

	changedNick := ""
	if upd.Nickname != nil {
		changedNick = applyNickname(doc, userID, u, *upd.Nickname)
	}
	if upd.Balance != nil {
		if upd.Balance.OK {
			u.Balance = Round2(upd.Balance.Value)
		} else {
			u.Balance = StartBalance
		}
	}
	if upd.Trades != nil && upd.Trades.OK {
		u.Trades = upd.Trades.Value
	}
	if upd.Wins != nil && upd.Wins.OK {
		u.Wins = upd.Wins.Value
	}
	if upd.PeriodStartBalance != nil {
		if upd.PeriodStartBalance.OK {
			u.PeriodStartBalance = Round2(upd.PeriodStartBalance.Value)
		} else {
			u.PeriodStartBalance = StartBalance
		}
	}
	u.LastUpdate = Timestamp(s.now())

	if err := s.save(ctx, doc); err != nil {
		return UserView{}, "", err
	}
	if changedNick != "" {
		s.log.Info("nickname changed", "user_id", userID, "nickname", changedNick)
	}
	return userView(userID, u), changedNick, nil
}

// RecordTrade runs the full trade transition: counters, optional balance
// adjustment, feed prepend, truncation, persist. An invalid result aborts
// before anything is saved, so the stored document is untouched.
func (s *Service) RecordTrade(ctx context.Context, userID string, in TradeInput) (UserView, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return UserView{}, "", err
	}
	if err := claimIdempotency(doc, in.IdempotencyKey, s.now()); err != nil {
		return UserView{}, "", err
	}
	u := getOrCreate(doc, userID)

	changedNick := ""
	if in.Nickname != nil {
		changedNick = applyNickname(doc, userID, u, *in.Nickname)
	}

	res, err := NormalizeResult(in.Result)
	if err != nil {
		return UserView{}, "", err
	}

	u.Trades++
	if res == ResultWin {
		u.Wins++
	}

	amt := 0.0
	if in.Amount != nil {
		if in.Amount.OK {
			amt = in.Amount.Value
		}
		// Amount present: move the balance even when coercion fell back to 0.
		if res == ResultWin {
			u.Balance = Round2(u.Balance + amt)
		} else {
			u.Balance = Round2(u.Balance - amt)
		}
	}
	u.LastUpdate = Timestamp(s.now())

	entry := TradeEntry{
		ID:       uuid.NewString(),
		TS:       u.LastUpdate,
		UserID:   userID,
		Nickname: u.Nickname,
		Result:   res,
		Amount:   Round2(amt),
	}
	doc.RecentTrades = append([]TradeEntry{entry}, doc.RecentTrades...)
	if len(doc.RecentTrades) > MaxRecentTrades {
		doc.RecentTrades = doc.RecentTrades[:MaxRecentTrades]
	}

	if err := s.save(ctx, doc); err != nil {
		return UserView{}, "", err
	}
	s.log.Info("trade recorded", "user_id", userID, "result", res, "amount", entry.Amount)
	return userView(userID, u), changedNick, nil
}

// Leaderboard returns all users as ranked rows, balance descending, sliced to
// limit clamped to [0, 1000].
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]LeaderboardRow, 0, len(doc.Users))
	for uid, u := range doc.Users {
		m := ComputeMetrics(u)
		rows = append(rows, LeaderboardRow{
			UserID:           uid,
			Nickname:         u.Nickname,
			Balance:          m.Balance,
			Performance:      m.Performance,
			WinRate:          m.WinRate,
			TradesThisPeriod: m.Trades,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Balance != rows[j].Balance {
			return rows[i].Balance > rows[j].Balance
		}
		return rows[i].UserID < rows[j].UserID
	})
	if limit < 0 {
		limit = 0
	}
	if limit > 1000 {
		limit = 1000
	}
	if limit < len(rows) {
		rows = rows[:limit]
	}
	return rows, nil
}

// RecentTrades filters the feed newest to oldest, stopping once limit entries
// match, and summarizes the selected entries per nickname.
func (s *Service) RecentTrades(ctx context.Context, q RecentQuery) ([]TradeEntry, map[string]*TradeSummary, error) {
	if q.Limit <= 0 {
		return nil, nil, ErrInvalidLimit
	}
	limit := q.Limit
	if limit > MaxRecentTrades {
		limit = MaxRecentTrades
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return nil, nil, err
	}

	var cutoff time.Time
	hasCutoff := false
	if q.Minutes != nil {
		cutoff = s.now().UTC().Add(-time.Duration(*q.Minutes) * time.Minute)
		hasCutoff = true
	}
	nickFilter := strings.ToLower(strings.TrimSpace(q.Nickname))

	filtered := make([]TradeEntry, 0, limit)
	for _, e := range doc.RecentTrades {
		if hasCutoff {
			ts, ok := ParseTimestamp(e.TS)
			if !ok || ts.Before(cutoff) {
				continue
			}
		}
		if nickFilter != "" && strings.ToLower(strings.TrimSpace(e.Nickname)) != nickFilter {
			continue
		}
		filtered = append(filtered, e)
		if len(filtered) >= limit {
			break
		}
	}

	summary := make(map[string]*TradeSummary)
	for _, e := range filtered {
		nick := e.Nickname
		if r := []rune(nick); len(r) > MaxNicknameLen {
			nick = string(r[:MaxNicknameLen])
		}
		key := nick
		if strings.TrimSpace(key) == "" {
			key = AnonNickname
		}
		agg, ok := summary[key]
		if !ok {
			agg = &TradeSummary{}
			summary[key] = agg
		}
		if e.Result == ResultWin {
			agg.Net = Round2(agg.Net + e.Amount)
			agg.Wins++
		} else {
			agg.Net = Round2(agg.Net - e.Amount)
			agg.Losses++
		}
		agg.Trades++
	}
	return filtered, summary, nil
}

// CloseMonth snapshots the top-of-board podium under the previous month key,
// then resets every user for the new period. Idempotent per month key: a
// repeat close is a no-op that recomputes and rewrites nothing.
func (s *Service) CloseMonth(ctx context.Context, idemKey string) (CloseResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return CloseResult{}, err
	}

	now := s.now()
	if err := claimIdempotency(doc, idemKey, now); err != nil {
		return CloseResult{}, err
	}
	prevMonth := PrevMonthKey(now)
	if _, ok := doc.MonthlyWinners[prevMonth]; ok {
		return CloseResult{Status: CloseStatusAlreadyClosed, Month: prevMonth}, nil
	}

	podium := ComputePodium(doc.Users, PodiumSize)
	doc.MonthlyWinners[prevMonth] = &PodiumSnapshot{
		Podium:   podium,
		ClosedAt: Timestamp(now),
	}
	// Historical quirk, kept for compatibility: the snapshot is keyed by the
	// previous month, but last_month_closed records the month the close ran in.
	doc.LastMonthClosed = MonthKey(now)

	stamp := Timestamp(now)
	for _, u := range doc.Users {
		u.Balance = Round2(StartBalance)
		u.PeriodStartBalance = Round2(StartBalance)
		u.Trades = 0
		u.Wins = 0
		u.LastUpdate = stamp
	}

	if err := s.save(ctx, doc); err != nil {
		return CloseResult{}, err
	}
	s.log.Info("month closed", "month", prevMonth, "podium_size", len(podium), "users_reset", len(doc.Users))
	return CloseResult{Status: CloseStatusClosed, Month: prevMonth, Podium: podium}, nil
}

// Winners returns the podium snapshot for one month key.
func (s *Service) Winners(ctx context.Context, month string) (*PodiumSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	snap, ok := doc.MonthlyWinners[month]
	if !ok {
		return nil, ErrMonthNotFound
	}
	return snap, nil
}

// AllWinners returns every archived podium plus the latest month key, or ""
// when nothing has been archived yet.
func (s *Service) AllWinners(ctx context.Context) (string, map[string]*PodiumSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return "", nil, err
	}
	latest := ""
	for month := range doc.MonthlyWinners {
		if month > latest {
			latest = month
		}
	}
	return latest, doc.MonthlyWinners, nil
}
