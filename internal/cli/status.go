package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/rotator/internal/core/domain"
	"github.com/vietddude/rotator/internal/infra/rpc/provider"
	"github.com/vietddude/rotator/internal/infra/rpc/routing"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe every configured endpoint once and show the result",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)

	monitor := provider.NewMonitor()
	transport := provider.NewHTTPTransport(cfg.RPC.ProbeTimeout, monitor)
	defer func() {
		_ = transport.Close()
	}()
	prober := routing.NewTransportProber(transport, monitor)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ENDPOINT\tSTATUS\tBLOCK\tLATENCY\tERROR")

	for _, raw := range cfg.RPC.Endpoints {
		e := domain.Endpoint(raw)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.RPC.ProbeTimeout)
		start := time.Now()
		err := prober.Probe(ctx, e)
		latency := time.Since(start)
		cancel()

		status, errText := "ok", ""
		if err != nil {
			status, errText = "failed", err.Error()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			e, status, monitor.Stats(e).BlockHeight, latency.Round(time.Millisecond), errText)
	}
	_ = w.Flush()
}
