package main

import (
	"fmt"
	"sort"

	"fridge/internal/board"

	"github.com/fatih/color"
)

var (
	accent  = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen, color.Bold)
	warn    = color.New(color.FgYellow, color.Bold)
	danger  = color.New(color.FgRed, color.Bold)
	neutral = color.New(color.FgHiWhite)
)

func printSuccess(format string, args ...any) {
	success.Printf(format+"\n", args...)
}

func printInfo(format string, args ...any) {
	neutral.Printf(format+"\n", args...)
}

func printWarn(format string, args ...any) {
	warn.Printf(format+"\n", args...)
}

func displayName(nickname, userID string) string {
	if nickname != "" {
		return nickname
	}
	return userID
}

func renderLeaderboard(rows []board.LeaderboardRow) {
	if len(rows) == 0 {
		printWarn("The board is empty.")
		return
	}
	accent.Println("  #  PLAYER                     BALANCE      PERF%   WINRATE%  TRADES")
	for i, row := range rows {
		line := fmt.Sprintf("%3d  %-24s %10.2f  %8.2f  %8.2f  %6d",
			i+1, displayName(row.Nickname, row.UserID), row.Balance, row.Performance, row.WinRate, row.TradesThisPeriod)
		switch {
		case row.Performance > 0:
			success.Println(line)
		case row.Performance < 0:
			danger.Println(line)
		default:
			neutral.Println(line)
		}
	}
}

func renderUser(v board.UserView) {
	accent.Printf("%s\n", displayName(v.Nickname, v.UserID))
	neutral.Printf("  balance:      %.2f\n", v.Balance)
	neutral.Printf("  performance:  %.2f%%\n", v.Performance)
	neutral.Printf("  win rate:     %.2f%%\n", v.WinRate)
	neutral.Printf("  trades:       %d (wins %d)\n", v.TradesThisPeriod, v.Wins)
	neutral.Printf("  period start: %.2f\n", v.PeriodStartBalance)
	if v.LastUpdate != "" {
		neutral.Printf("  last update:  %s\n", v.LastUpdate)
	}
}

func renderFeed(entries []board.TradeEntry, summary map[string]*board.TradeSummary) {
	if len(entries) == 0 {
		printWarn("No trades match.")
		return
	}
	for _, e := range entries {
		name := displayName(e.Nickname, e.UserID)
		if e.Result == board.ResultWin {
			success.Printf("%s  %-20s  WIN   +%.2f\n", e.TS, name, e.Amount)
		} else {
			danger.Printf("%s  %-20s  LOSE  -%.2f\n", e.TS, name, e.Amount)
		}
	}
	if len(summary) == 0 {
		return
	}
	nicks := make([]string, 0, len(summary))
	for nick := range summary {
		nicks = append(nicks, nick)
	}
	sort.Strings(nicks)
	accent.Println("\nSUMMARY")
	for _, nick := range nicks {
		s := summary[nick]
		neutral.Printf("  %-20s net %+.2f  (%dW/%dL, %d trades)\n", nick, s.Net, s.Wins, s.Losses, s.Trades)
	}
}

func renderCloseResult(r board.CloseResult) {
	if r.Status == board.CloseStatusAlreadyClosed {
		printWarn("Month %s was already closed.", r.Month)
		return
	}
	printSuccess("Month %s closed.", r.Month)
	renderPodium(r.Month, &board.PodiumSnapshot{Podium: r.Podium})
}

func renderPodium(month string, snap *board.PodiumSnapshot) {
	accent.Printf("Podium for %s\n", month)
	if snap == nil || len(snap.Podium) == 0 {
		printWarn("  (empty)")
		return
	}
	for _, e := range snap.Podium {
		neutral.Printf("  %d. %-24s %10.2f\n", e.Position, displayName(e.Nickname, e.UserID), e.Balance)
	}
	if snap.ClosedAt != "" {
		neutral.Printf("  closed at %s\n", snap.ClosedAt)
	}
}
