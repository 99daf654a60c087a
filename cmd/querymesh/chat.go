package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"querymesh/internal/config"
	"querymesh/internal/rpc"
)

func chatCmd() *cobra.Command {
	var serverURL string
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat against a running mesh",
		Long: `Connects to the chat agent of a running mesh and relays messages.
Tag a data source with @sink:<id> to run queries against it.
/history shows the session, /reset clears it, /quit leaves.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if serverURL == "" {
				cfg, err := config.Load(resolveConfigPath())
				if err != nil {
					return fmt.Errorf("load config (or pass --server): %w", err)
				}
				serverURL = cfg.Server.BaseURL
				if serverURL == "" {
					serverURL = "http://" + cfg.Server.Bind
				}
			}
			return runChat(serverURL, sessionID)
		},
	}

	cmd.Flags().StringVarP(&serverURL, "server", "s", "", "base URL of a running mesh (default from config)")
	cmd.Flags().StringVar(&sessionID, "session", "cli", "session id to chat under")
	return cmd
}

func runChat(serverURL, sessionID string) error {
	ctx := context.Background()
	client := rpc.NewClient(30*time.Second, logger)
	url := rpc.EnvelopeURL(serverURL, "chat_agent")

	fmt.Printf("Connected to %s (session %q). Ctrl+D or /quit leaves.\n", serverURL, sessionID)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/quit", "/exit":
			return nil
		case "/reset":
			if _, err := client.Call(ctx, url, "reset_session", map[string]any{"session_id": sessionID}, nil); err != nil {
				fmt.Printf("mesh> reset failed: %v\n", err)
			} else {
				fmt.Println("mesh> session reset")
			}
			continue
		case "/history":
			result, err := client.Call(ctx, url, "get_history", map[string]any{"session_id": sessionID}, nil)
			if err != nil {
				fmt.Printf("mesh> history failed: %v\n", err)
				continue
			}
			printHistory(result)
			continue
		}

		result, err := client.Call(ctx, url, "process_message", map[string]any{
			"session_id": sessionID,
			"message":    line,
		}, nil)
		if err != nil {
			fmt.Printf("mesh> %v\n", err)
			continue
		}
		fmt.Printf("mesh> %s\n", replyText(result))
	}
}

// replyText digs the reply string out of a process_message result.
// Anything unexpected is shown raw rather than swallowed.
func replyText(result any) string {
	if m, ok := result.(map[string]any); ok {
		if reply, ok := m["reply"].(string); ok {
			return reply
		}
	}
	data, _ := json.Marshal(result)
	return string(data)
}

func printHistory(result any) {
	m, ok := result.(map[string]any)
	if !ok {
		fmt.Printf("mesh> %v\n", result)
		return
	}
	entries, _ := m["messages"].([]any)
	if len(entries) == 0 {
		fmt.Println("mesh> (empty session)")
		return
	}
	for _, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		fmt.Printf("  [%v] %v\n", entry["role"], entry["content"])
	}
}
