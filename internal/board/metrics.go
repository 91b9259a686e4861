package board

import "sort"

// Metrics is derived from a user record at the point of output. Inputs are
// the already-rounded stored values; outputs are rounded again here.
type Metrics struct {
	Performance        float64
	WinRate            float64
	Balance            float64
	PeriodStartBalance float64
	Trades             int
	Wins               int
}

// Performance returns the percent gain over the period baseline. A zero
// baseline yields 0 rather than a division error; not a meaningful rate at
// that boundary, but the stable documented behavior.
func Performance(balance, periodStart float64) float64 {
	if periodStart == 0 {
		return 0
	}
	return Round2((balance - periodStart) / periodStart * 100)
}

// WinRate returns wins as a percentage of trades, 0 when no trades exist.
func WinRate(wins, trades int) float64 {
	if trades <= 0 {
		return 0
	}
	return Round2(float64(wins) / float64(trades) * 100)
}

// ComputeMetrics derives the full metric set for one record.
func ComputeMetrics(u *UserRecord) Metrics {
	return Metrics{
		Performance:        Performance(u.Balance, u.PeriodStartBalance),
		WinRate:            WinRate(u.Wins, u.Trades),
		Balance:            Round2(u.Balance),
		PeriodStartBalance: Round2(u.PeriodStartBalance),
		Trades:             u.Trades,
		Wins:               u.Wins,
	}
}

// ComputePodium ranks users by balance descending and returns the top topN
// with 1-based positions. Ties break on ascending user ID so repeated closes
// over the same balances produce the same podium.
func ComputePodium(users map[string]*UserRecord, topN int) []PodiumEntry {
	type ranked struct {
		userID   string
		nickname string
		balance  float64
	}
	arr := make([]ranked, 0, len(users))
	for uid, u := range users {
		arr = append(arr, ranked{userID: uid, nickname: u.Nickname, balance: u.Balance})
	}
	sort.Slice(arr, func(i, j int) bool {
		if arr[i].balance != arr[j].balance {
			return arr[i].balance > arr[j].balance
		}
		return arr[i].userID < arr[j].userID
	})
	if topN > len(arr) {
		topN = len(arr)
	}
	podium := make([]PodiumEntry, 0, topN)
	for i := 0; i < topN; i++ {
		podium = append(podium, PodiumEntry{
			Position: i + 1,
			UserID:   arr[i].userID,
			Nickname: arr[i].nickname,
			Balance:  Round2(arr[i].balance),
		})
	}
	return podium
}
