package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/sbar/config"
)

const triggerTimeout = 5 * time.Second

// triggerCmd asks a running bar to recompute the items bound to a signal.
var triggerCmd = &cobra.Command{
	Use:   "trigger <signal>",
	Short: "Recompute the items bound to a signal",
	Long: `Ask a running bar to recompute the items bound to a signal, through its
status server. This is the same as sending the signal to the process, but
works across users, containers and machines.

The address is taken from --addr, or from the http setting of the config.

Example:
  sbar trigger 46
  sbar trigger 46 --addr 127.0.0.1:7777`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runTrigger,
}

func init() {
	rootCmd.AddCommand(triggerCmd)

	triggerCmd.Flags().String("addr", "", "status server address (default: http from config)")
}

// triggerResult is the status server's answer.
type triggerResult struct {
	ID      int    `json:"id"`
	Signal  string `json:"signal"`
	Matched bool   `json:"matched"`
}

func runTrigger(cmd *cobra.Command, args []string) error {
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("signal must be a number, got %q", args[0])
	}

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		configFile, _ := cmd.Flags().GetString("config")
		cfg, _, err := config.LoadOrDefault(configFile, nil)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		addr = cfg.HTTP
	}
	if addr == "" {
		return fmt.Errorf("no status server address: set http in the config or pass --addr")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), triggerTimeout)
	defer cancel()

	res, err := postTrigger(ctx, addr, id)
	if err != nil {
		return err
	}

	if res.Matched {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: items recomputed\n", res.Signal)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: no item is bound to this signal\n", res.Signal)
	}
	return nil
}

func postTrigger(ctx context.Context, addr string, id int) (triggerResult, error) {
	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/api/trigger/%d", base, id), nil)
	if err != nil {
		return triggerResult{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return triggerResult{}, fmt.Errorf("trigger request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return triggerResult{}, fmt.Errorf("trigger rejected (%s): %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var res triggerResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return triggerResult{}, fmt.Errorf("decode trigger response: %w", err)
	}
	return res, nil
}
