package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

func buildMessageCmd() *cobra.Command {
	var (
		addr      string
		sessionID string
		userID    string
		text      string
		voice     bool
	)

	cmd := &cobra.Command{
		Use:   "message",
		Short: "Send one turn to a running agent execution core and print the reply",
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionID == "" || userID == "" || text == "" {
				return fmt.Errorf("--session, --user, and --text are required")
			}
			modality := "text"
			if voice {
				modality = "voice"
			}
			return sendTurn(addr, sessionID, userID, text, modality)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "http://127.0.0.1:8080", "Base URL of a running agentcore serve instance")
	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID")
	cmd.Flags().StringVar(&userID, "user", "", "User ID")
	cmd.Flags().StringVar(&text, "text", "", "Utterance text")
	cmd.Flags().BoolVar(&voice, "voice", false, "Mark this turn as voice modality")
	return cmd
}

func sendTurn(addr, sessionID, userID, text, modality string) error {
	body, err := json.Marshal(map[string]string{
		"session_id": sessionID,
		"user_id":    userID,
		"content":    text,
		"modality":   modality,
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	client := &http.Client{Timeout: 305 * time.Second}
	resp, err := client.Post(addr+"/v1/turns", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post turn: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s: %s", resp.Status, string(raw))
	}

	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		fmt.Println(string(raw))
		return nil
	}
	fmt.Println(out["assistant_text"])
	return nil
}
