package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/model8cli/m8cli/engine"
)

// RegisterNostr adds a read-only nostr relay feed tool.
func RegisterNostr(r *engine.Registry) {
	r.Register(engine.ToolSpec{
		Name:        "nostr_fetch_notes",
		Description: "Fetch recent text notes from a nostr relay",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"relay": {"type": "string", "description": "Relay websocket URL, e.g. wss://relay.damus.io"},
				"limit": {"type": "integer", "description": "Number of notes, defaults to 10, max 50"}
			},
			"required": ["relay"]
		}`),
		Safety: engine.Safe,
	}, nostrFetchNotes)
}

func nostrFetchNotes(ctx context.Context, args string) (string, error) {
	var p struct {
		Relay string `json:"relay"`
		Limit int    `json:"limit"`
	}
	if err := json.Unmarshal([]byte(args), &p); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if p.Limit <= 0 {
		p.Limit = 10
	}
	if p.Limit > 50 {
		p.Limit = 50
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	relay, err := nostr.RelayConnect(ctx, p.Relay)
	if err != nil {
		return "", fmt.Errorf("connecting to relay: %w", err)
	}
	defer relay.Close()

	sub, err := relay.Subscribe(ctx, nostr.Filters{{
		Kinds: []int{nostr.KindTextNote},
		Limit: p.Limit,
	}})
	if err != nil {
		return "", fmt.Errorf("subscribing: %w", err)
	}
	defer sub.Unsub()

	var events []*nostr.Event
loop:
	for {
		select {
		case ev, ok := <-sub.Events:
			if !ok {
				break loop
			}
			events = append(events, ev)
		case <-sub.EndOfStoredEvents:
			break loop
		case <-ctx.Done():
			break loop
		}
	}

	return formatNotes(events), nil
}

func formatNotes(events []*nostr.Event) string {
	if len(events) == 0 {
		return "No events found."
	}

	var sb strings.Builder
	for i, ev := range events {
		t := ev.CreatedAt.Time().Format("2006-01-02 15:04:05")
		content := ev.Content
		if len(content) > 200 {
			content = content[:200] + "..."
		}
		// Relays are untrusted; don't assume a well-formed 64-char pubkey.
		author := ev.PubKey
		if len(author) > 12 {
			author = author[:12]
		}
		fmt.Fprintf(&sb, "[%d] %s (by %s...)\n%s\n\n", i+1, t, author, content)
	}
	return sb.String()
}
