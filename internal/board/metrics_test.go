package board

import "testing"

func TestPerformance(t *testing.T) {
	tests := []struct {
		balance float64
		start   float64
		want    float64
	}{
		{balance: 5100, start: 5000, want: 2.0},
		{balance: 5050, start: 5000, want: 1.0},
		{balance: 4500, start: 5000, want: -10.0},
		{balance: 5000, start: 5000, want: 0},
		{balance: 1234, start: 0, want: 0},
	}
	for _, tc := range tests {
		if got := Performance(tc.balance, tc.start); got != tc.want {
			t.Fatalf("Performance(%v, %v) = %v, want %v", tc.balance, tc.start, got, tc.want)
		}
	}
}

func TestWinRate(t *testing.T) {
	tests := []struct {
		wins   int
		trades int
		want   float64
	}{
		{wins: 1, trades: 2, want: 50.0},
		{wins: 2, trades: 3, want: 66.67},
		{wins: 0, trades: 0, want: 0},
		{wins: 5, trades: 5, want: 100.0},
	}
	for _, tc := range tests {
		if got := WinRate(tc.wins, tc.trades); got != tc.want {
			t.Fatalf("WinRate(%d, %d) = %v, want %v", tc.wins, tc.trades, got, tc.want)
		}
	}
}

func TestComputePodiumOrdering(t *testing.T) {
	users := map[string]*UserRecord{
		"u1": {Nickname: "mid", Balance: 5000, PeriodStartBalance: 5000},
		"u2": {Nickname: "top", Balance: 6000, PeriodStartBalance: 5000},
		"u3": {Nickname: "low", Balance: 4000, PeriodStartBalance: 5000},
		"u4": {Nickname: "out", Balance: 3000, PeriodStartBalance: 5000},
	}
	podium := ComputePodium(users, 3)
	if len(podium) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(podium))
	}
	wantOrder := []string{"u2", "u1", "u3"}
	for i, want := range wantOrder {
		if podium[i].UserID != want {
			t.Fatalf("position %d = %s, want %s", i+1, podium[i].UserID, want)
		}
		if podium[i].Position != i+1 {
			t.Fatalf("position field = %d, want %d", podium[i].Position, i+1)
		}
	}
}

func TestComputePodiumTiesBreakOnUserID(t *testing.T) {
	users := map[string]*UserRecord{
		"zeta":  {Balance: 5000},
		"alpha": {Balance: 5000},
		"mike":  {Balance: 5000},
	}
	podium := ComputePodium(users, 3)
	want := []string{"alpha", "mike", "zeta"}
	for i, id := range want {
		if podium[i].UserID != id {
			t.Fatalf("tie order: position %d = %s, want %s", i+1, podium[i].UserID, id)
		}
	}
}

func TestComputePodiumFewerUsersThanSlots(t *testing.T) {
	users := map[string]*UserRecord{
		"solo": {Nickname: "only", Balance: 5555.559},
	}
	podium := ComputePodium(users, 3)
	if len(podium) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(podium))
	}
	if podium[0].Balance != 5555.56 {
		t.Fatalf("expected rounded balance, got %v", podium[0].Balance)
	}
}

func TestComputeMetricsFromStoredValues(t *testing.T) {
	u := &UserRecord{Balance: 5100, PeriodStartBalance: 5000, Trades: 2, Wins: 1}
	m := ComputeMetrics(u)
	if m.Performance != 2.0 || m.WinRate != 50.0 || m.Balance != 5100 || m.Trades != 2 || m.Wins != 1 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
}
