package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/rotator/internal/infra/rpc"
)

var callRetries int

var callCmd = &cobra.Command{
	Use:   "call <method> [params-json]",
	Short: "Perform a single JSON-RPC call through the endpoint pool",
	Example: `  rotator call eth_blockNumber
  rotator call eth_getBalance '["0x0000000000000000000000000000000000000000","latest"]'`,
	Args: cobra.RangeArgs(1, 2),
	Run:  runCall,
}

func init() {
	callCmd.Flags().IntVar(&callRetries, "retries", 0, "endpoints to try (default from config)")
	rootCmd.AddCommand(callCmd)
}

func runCall(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)

	params, err := parseParams(args[1:])
	if err != nil {
		slog.Error("Invalid params", "error", err)
		os.Exit(1)
	}

	client, err := rpc.NewClient(cfg.RPC)
	if err != nil {
		slog.Error("Failed to create RPC client", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = client.Close()
	}()

	attempts := max(cfg.RPC.MaxRetries, callRetries, 1)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.RPC.AttemptTimeout*time.Duration(attempts))
	defer cancel()

	result, err := client.CallWithRetries(ctx, args[0], params, callRetries)
	if err != nil {
		slog.Error("RPC call failed", "method", args[0], "error", err)
		os.Exit(1)
	}

	_, _ = fmt.Fprintln(os.Stdout, string(result))
}

// parseParams decodes an optional JSON array of positional params.
func parseParams(args []string) ([]any, error) {
	if len(args) == 0 || args[0] == "" {
		return nil, nil
	}
	var params []any
	if err := json.Unmarshal([]byte(args[0]), &params); err != nil {
		return nil, fmt.Errorf("params must be a JSON array: %w", err)
	}
	return params, nil
}
