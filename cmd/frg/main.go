package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	cl "fridge/internal/cli"
	"fridge/internal/config"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "frg",
		Short:        "Kenzies Fridge leaderboard client",
		SilenceUsage: true,
	}

	root.AddCommand(
		newUseCmd(),
		newWhoamiCmd(),
		newBoardCmd(&apiBase),
		newUserCmd(&apiBase),
		newSetNickCmd(&apiBase),
		newTradeCmd(&apiBase),
		newRecentCmd(&apiBase),
		newCloseMonthCmd(&apiBase),
		newWinnersCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

func cmdContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 30*time.Second)
}

// resolveUser prefers an explicit --user flag over the saved profile.
func resolveUser(flag string) (string, error) {
	if strings.TrimSpace(flag) != "" {
		return strings.TrimSpace(flag), nil
	}
	p, err := cl.LoadProfile()
	if err != nil {
		return "", err
	}
	return p.UserID, nil
}

func newUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <user_id> [nickname]",
		Short: "Set the active board user for later commands",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := cl.Profile{UserID: args[0]}
			if len(args) == 2 {
				p.Nickname = args[1]
			}
			if err := cl.SaveProfile(p); err != nil {
				return err
			}
			printSuccess("Active user set to %s", p.UserID)
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the active board user",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := cl.LoadProfile()
			if err != nil {
				return err
			}
			if p.Nickname != "" {
				printInfo("%s (%s)", p.UserID, p.Nickname)
			} else {
				printInfo("%s", p.UserID)
			}
			return nil
		},
	}
}

func newBoardCmd(apiBase *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show the leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).Leaderboard(ctx, limit)
			if err != nil {
				return err
			}
			renderLeaderboard(out.Leaderboard)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "max rows")
	return cmd
}

func newUserCmd(apiBase *string) *cobra.Command {
	var userFlag string
	cmd := &cobra.Command{
		Use:   "user [user_id]",
		Short: "Show one user's record",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid := userFlag
			if len(args) == 1 {
				uid = args[0]
			}
			uid, err := resolveUser(uid)
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			view, err := newClient(apiBase).User(ctx, uid)
			if err != nil {
				return err
			}
			renderUser(view)
			return nil
		},
	}
	cmd.Flags().StringVar(&userFlag, "user", "", "user id (defaults to active profile)")
	return cmd
}

func newSetNickCmd(apiBase *string) *cobra.Command {
	var userFlag string
	cmd := &cobra.Command{
		Use:   "set-nick <nickname>",
		Short: "Change the display name, rewriting feed history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := resolveUser(userFlag)
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).UpdateUser(ctx, uid, map[string]any{"nickname": args[0]}, uuid.NewString())
			if err != nil {
				return err
			}
			if out.Message != "" {
				printSuccess("%s", out.Message)
			} else {
				printInfo("Nickname unchanged.")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&userFlag, "user", "", "user id (defaults to active profile)")
	return cmd
}

func newTradeCmd(apiBase *string) *cobra.Command {
	var userFlag, nickFlag string
	cmd := &cobra.Command{
		Use:   "trade <win|lose> [amount]",
		Short: "Record one trade outcome",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := resolveUser(userFlag)
			if err != nil {
				return err
			}
			var amount *float64
			if len(args) == 2 {
				v, err := strconv.ParseFloat(args[1], 64)
				if err != nil {
					return fmt.Errorf("invalid amount %q", args[1])
				}
				amount = &v
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).Trade(ctx, uid, args[0], amount, nickFlag, uuid.NewString())
			if err != nil {
				return err
			}
			printSuccess("Trade recorded.")
			renderUser(out.User)
			if out.Message != "" {
				printInfo("%s", out.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&userFlag, "user", "", "user id (defaults to active profile)")
	cmd.Flags().StringVar(&nickFlag, "nick", "", "update nickname along with the trade")
	return cmd
}

func newRecentCmd(apiBase *string) *cobra.Command {
	var limit, minutes int
	var nick string
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Show the recent trade feed with per-nickname summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			var mins *int
			if cmd.Flags().Changed("minutes") {
				mins = &minutes
			}
			out, err := newClient(apiBase).LiveWins(ctx, limit, mins, nick)
			if err != nil {
				return err
			}
			renderFeed(out.RecentTrades, out.Summary)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "max entries")
	cmd.Flags().IntVar(&minutes, "minutes", 0, "only entries from the last N minutes")
	cmd.Flags().StringVar(&nick, "nick", "", "filter by nickname (exact, case-insensitive)")
	return cmd
}

func newCloseMonthCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "close-month",
		Short: "Archive the previous month's podium and reset the board",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).CloseMonth(ctx, uuid.NewString())
			if err != nil {
				return err
			}
			renderCloseResult(out)
			return nil
		},
	}
}

func newWinnersCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "winners [month]",
		Short: "Show an archived podium (latest when no month given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			client := newClient(apiBase)
			if len(args) == 1 {
				out, err := client.Winners(ctx, args[0])
				if err != nil {
					return err
				}
				renderPodium(out.Month, out.Winners)
				return nil
			}
			out, err := client.AllWinners(ctx)
			if err != nil {
				return err
			}
			if out.Latest == nil {
				printWarn("No months have been closed yet.")
				return nil
			}
			renderPodium(*out.Latest, out.Winners)
			return nil
		},
	}
}
