package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/hivekit/internal/account"
	"github.com/vietddude/hivekit/internal/core/domain"
	"github.com/vietddude/hivekit/internal/infra/chain/hive"
)

var manaCmd = &cobra.Command{
	Use:   "mana [account...]",
	Short: "Show voting, downvote and RC mana for accounts",
	Args:  cobra.MinimumNArgs(1),
	Run:   runMana,
}

func init() {
	rootCmd.AddCommand(manaCmd)
}

func runMana(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := connect(ctx, cfg)
	if err != nil {
		slog.Error("Failed to connect", "error", err)
		os.Exit(1)
	}
	defer s.Close()

	client, err := hive.ClientFromState(s.GetState())
	if err != nil {
		slog.Error("No chain client", "error", err)
		os.Exit(1)
	}

	result, err := account.NewService().Fetch(ctx, client, args)
	if err != nil {
		slog.Error("Failed to fetch mana", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ACCOUNT\tVOTING\tFULL IN\tDOWNVOTE\tFULL IN\tRC\tFULL IN")
	for _, m := range result {
		rc, rcFull := "-", "-"
		if m.HasRC {
			rc, rcFull = formatPct(m.RC), formatCooldown(m.RC)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			m.Username,
			formatPct(m.Voting), formatCooldown(m.Voting),
			formatPct(m.Downvote), formatCooldown(m.Downvote),
			rc, rcFull,
		)
	}
	_ = w.Flush()

	if len(result) < len(args) {
		fmt.Fprintf(os.Stderr, "%d of %d accounts not found\n", len(args)-len(result), len(args))
	}
}

func formatPct(r domain.ManabarResult) string {
	return fmt.Sprintf("%.2f%%", r.Percentage)
}

func formatCooldown(r domain.ManabarResult) string {
	if r.CooldownSeconds == 0 {
		return "full"
	}
	return (time.Duration(r.CooldownSeconds) * time.Second).String()
}
