package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/hivekit/internal/control"
	"github.com/vietddude/hivekit/internal/core/connection"
	"github.com/vietddude/hivekit/internal/core/domain"
	redisclient "github.com/vietddude/hivekit/internal/infra/redis"
)

var statusCached bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe every endpoint and show the connection status",
	Run:   runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusCached, "cached", false, "read the state cached in Redis by a running server")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if statusCached {
		if cfg.Redis.URL == "" {
			slog.Error("Redis is not configured")
			os.Exit(1)
		}
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer client.Close()

		snap, endpoints, found, err := client.LoadState(ctx)
		if err != nil {
			slog.Error("Failed to read cached state", "error", err)
			os.Exit(1)
		}
		if !found {
			fmt.Println("No cached state")
			return
		}
		sort.Slice(endpoints, func(i, j int) bool { return endpoints[i].URL < endpoints[j].URL })
		printStatus(os.Stdout, snap.Status, snap.Endpoint, snap.Error, endpoints)
		return
	}

	s, err := control.NewStore(cfg)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer s.Close()

	if err := s.RefreshEndpoints(ctx); err != nil {
		slog.Error("Sweep failed", "error", err)
		os.Exit(1)
	}

	state := s.GetState()
	printStatus(os.Stdout, state.Status, state.Endpoint, state.Error, state.Endpoints)
	if !state.IsConnected() {
		os.Exit(2)
	}
}

func printStatus(out io.Writer, status domain.Status, endpoint, errMsg string, endpoints []domain.EndpointStatus) {
	_, _ = fmt.Fprintf(out, "Status:   %s\n", status)
	_, _ = fmt.Fprintf(out, "          %s\n", connection.StateDescription(status))
	if endpoint != "" {
		_, _ = fmt.Fprintf(out, "Endpoint: %s\n", endpoint)
	}
	if errMsg != "" {
		_, _ = fmt.Fprintf(out, "Error:    %s\n", errMsg)
	}
	_, _ = fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ENDPOINT\tHEALTHY\tLATENCY\tFAILURES\tERROR")
	for _, ep := range endpoints {
		latency := "-"
		if ep.LastCheck != nil {
			latency = ep.Latency.Round(time.Millisecond).String()
		}
		_, _ = fmt.Fprintf(w, "%s\t%t\t%s\t%d\t%s\n", ep.URL, ep.Healthy, latency, ep.ConsecutiveFailures, ep.LastError)
	}
	_ = w.Flush()
}
