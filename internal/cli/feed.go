package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/hivekit/internal/control"
	"github.com/vietddude/hivekit/internal/feed"
)

var (
	feedSort  string
	feedTag   string
	feedPages int
	feedLimit int
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Page through a ranked post feed",
	Run:   runFeed,
}

func init() {
	feedCmd.Flags().StringVar(&feedSort, "sort", "trending", "trending, hot, created, promoted, payout, payout_comments or muted")
	feedCmd.Flags().StringVar(&feedTag, "tag", "", "tag or community to filter by")
	feedCmd.Flags().IntVar(&feedPages, "pages", 1, "number of pages to fetch")
	feedCmd.Flags().IntVar(&feedLimit, "limit", 0, "posts per page (max 20, default from config)")
	rootCmd.AddCommand(feedCmd)
}

func runFeed(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	sort, err := feed.ParseSort(feedSort)
	if err != nil {
		slog.Error("Invalid sort", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	s, err := connect(ctx, cfg)
	if err != nil {
		slog.Error("Failed to connect", "error", err)
		os.Exit(1)
	}
	defer s.Close()

	limit := feedLimit
	if limit == 0 {
		limit = cfg.Feed.PageLimit
	}
	p, err := feed.NewPaginator(control.FetcherSource(s), sort, feedTag, limit)
	if err != nil {
		slog.Error("Failed to create paginator", "error", err)
		os.Exit(1)
	}
	defer p.Close()

	if err := p.Load(ctx); err != nil {
		slog.Error("Failed to load feed", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "PAGE\tAUTHOR\tPERMLINK\tVOTES\tREPLIES\tPAYOUT\tTITLE")
	for {
		page, _ := p.CurrentPage()
		for _, post := range page.Posts {
			_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\t%s\n",
				p.PageNumber(), post.Author, post.Permlink, post.NetVotes, post.Children, post.PayoutValue, post.Title)
		}
		if p.PageNumber() >= feedPages || !p.HasNext() {
			break
		}
		if err := p.Next(ctx); err != nil {
			_ = w.Flush()
			slog.Error("Failed to fetch next page", "page", p.PageNumber()+1, "error", err)
			os.Exit(1)
		}
	}
	_ = w.Flush()
}
