package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/accessgate/internal/model"
)

func newEventsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Follow the directive stream sent to the game host",
		Long: `Connect to the sidecar's directive stream and print directives as they
are sent. This subscribes alongside the game host; it does not take
directives away from it.

Events include:
  - connected: Subscription established
  - disconnect: The host should remove an actor
  - message: The host should show text to an actor

Press Ctrl+C to disconnect.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return streamEvents(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output events as JSON lines")

	return cmd
}

// SSEEvent is one event read from the directive stream
type SSEEvent struct {
	Time      time.Time        `json:"time"`
	Event     string           `json:"event"`
	Directive *model.Directive `json:"directive,omitempty"`
	Data      string           `json:"data,omitempty"`
}

func streamEvents(jsonOutput bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	url := strings.TrimSuffix(cfg.ServerURL, "/") + "/api/v1/events"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if cfg.Key != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Key)
	}

	// The stream stays open until interrupted
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if !jsonOutput {
		fmt.Printf("Connected to %s\n", cfg.ServerURL)
	}

	scanner := bufio.NewScanner(resp.Body)
	var currentEvent string
	var dataLines []string

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			currentEvent = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
		case line == "":
			if currentEvent != "" {
				printEvent(parseEvent(currentEvent, strings.Join(dataLines, "\n")), jsonOutput)
			}
			currentEvent = ""
			dataLines = nil
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stream error: %w", err)
	}
	if !jsonOutput {
		fmt.Println("Disconnected")
	}
	return nil
}

// parseEvent decodes directive payloads; other events keep their raw data
func parseEvent(event, data string) SSEEvent {
	evt := SSEEvent{Time: time.Now(), Event: event}
	switch model.DirectiveType(event) {
	case model.DirectiveDisconnect, model.DirectiveMessage:
		var d model.Directive
		if err := json.Unmarshal([]byte(data), &d); err == nil {
			evt.Directive = &d
			return evt
		}
	}
	evt.Data = data
	return evt
}

func printEvent(evt SSEEvent, jsonOutput bool) {
	if jsonOutput {
		line, _ := json.Marshal(evt)
		fmt.Println(string(line))
		return
	}

	timestamp := evt.Time.Format("2006-01-02 15:04:05")
	d := evt.Directive
	switch {
	case d == nil:
		fmt.Printf("[%s] %s: %s\n", timestamp, evt.Event, strings.ReplaceAll(evt.Data, "\n", " "))
	case d.Type == model.DirectiveDisconnect:
		fmt.Printf("[%s] disconnect %s (%s): %s\n", timestamp, d.ActorID, d.Reason, d.Text)
	default:
		fmt.Printf("[%s] message %s: %s\n", timestamp, d.ActorID, d.Text)
	}
}
