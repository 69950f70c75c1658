package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aki/fujita/internal/cli/ui"
	"github.com/aki/fujita/internal/instance"
	"github.com/aki/fujita/internal/server"
)

const statusTimeout = 5 * time.Second

func newStatusCmd(global *globalOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of a running fujita server",
		Long: `Query GET /api/state of a running server. Without --addr the address is
read from the runtime file that serve writes next to the configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := resolveServer(global, addr)
			if err != nil {
				return err
			}

			state, err := fetchState(cmd.Context(), base)
			if err != nil {
				return err
			}

			if ui.GlobalFormatter.IsJSON() {
				return ui.GlobalFormatter.Output(state)
			}
			printState(state)
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Server address (host:port or URL)")
	return cmd
}

// resolveServer returns the base URL of the server for the current config,
// preferring an explicit address.
func resolveServer(global *globalOptions, addr string) (string, error) {
	if addr != "" {
		return baseURL(addr), nil
	}
	info, err := instance.ReadInfo(global.configPath)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("no server is running for %s", global.configPath)
	}
	if err != nil {
		return "", err
	}
	return baseURL(info.Listen), nil
}

// baseURL turns a listen address into something an HTTP client can dial.
func baseURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimSuffix(addr, "/")
	}
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	if strings.HasPrefix(addr, "0.0.0.0:") {
		addr = "127.0.0.1" + strings.TrimPrefix(addr, "0.0.0.0")
	}
	return "http://" + addr
}

func fetchState(ctx context.Context, base string) (*server.StateResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/state", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %s", resp.Status)
	}

	var state server.StateResponse
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}
	return &state, nil
}

func printState(state *server.StateResponse) {
	name := state.Name
	if name == "" {
		name = "-"
	}
	action := state.Action
	if action == "" {
		action = "-"
	}

	ui.OutputLine("%s %s", ui.StatusLabel(state.Code), state.Status)
	ui.OutputLine("  Command:  %s", name)
	ui.OutputLine("  Action:   %s", action)
	ui.OutputLine("  Commands: %s", strings.Join(state.Commands, ", "))
	ui.OutputLine("  Actions:  %s", strings.Join(state.Actions, ", "))
}
