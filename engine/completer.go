package engine

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

// StreamCompleter implements Completer over an OpenAI-compatible streaming
// endpoint. Streamed deltas are buffered until the stream ends; a partially
// received response is never surfaced as a completion.
type StreamCompleter struct {
	mu     sync.Mutex
	client *openai.Client
	model  string

	// OnDelta observes content fragments as they arrive, for live output.
	OnDelta func(text string)
	// OnReasoning observes reasoning fragments from models that emit them.
	OnReasoning func(text string)
}

func NewStreamCompleter(client *openai.Client, model string) *StreamCompleter {
	return &StreamCompleter{client: client, model: model}
}

func (c *StreamCompleter) SetModel(model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = model
}

func (c *StreamCompleter) Model() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}

func (c *StreamCompleter) SetClient(client *openai.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.client = client
}

func (c *StreamCompleter) Complete(ctx context.Context, messages []openai.ChatCompletionMessage, tools []openai.Tool) (Completion, error) {
	c.mu.Lock()
	client := c.client
	model := c.model
	c.mu.Unlock()

	stream, err := client.CreateChatCompletionStream(
		ctx,
		openai.ChatCompletionRequest{
			Model:    model,
			Messages: messages,
			Tools:    tools,
		},
	)
	if err != nil {
		return Completion{}, err
	}
	defer stream.Close()

	return c.drain(stream)
}

// drain accumulates a streamed response. Tool call fragments are merged by
// index; tool calls are only reported when the provider finishes with the
// tool-calls reason, so a truncated stream yields plain content or an error.
func (c *StreamCompleter) drain(stream *openai.ChatCompletionStream) (Completion, error) {
	var fullContent strings.Builder
	toolCallsMap := make(map[int]*openai.ToolCall)
	var finishReason openai.FinishReason

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Completion{}, err
		}

		if len(resp.Choices) == 0 {
			continue
		}

		choice := resp.Choices[0]
		finishReason = choice.FinishReason

		if reasoning := choice.Delta.ReasoningContent; reasoning != "" && c.OnReasoning != nil {
			c.OnReasoning(reasoning)
		}

		if content := choice.Delta.Content; content != "" {
			if c.OnDelta != nil {
				c.OnDelta(content)
			}
			fullContent.WriteString(content)
		}

		for _, tc := range choice.Delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			existing, ok := toolCallsMap[idx]
			if !ok {
				existing = &openai.ToolCall{
					ID:   tc.ID,
					Type: tc.Type,
				}
				existing.Function.Name = tc.Function.Name
				toolCallsMap[idx] = existing
			} else {
				if tc.ID != "" {
					existing.ID = tc.ID
				}
				if tc.Function.Name != "" {
					existing.Function.Name += tc.Function.Name
				}
			}
			existing.Function.Arguments += tc.Function.Arguments
		}
	}

	comp := Completion{Content: fullContent.String()}
	if finishReason == openai.FinishReasonToolCalls && len(toolCallsMap) > 0 {
		comp.ToolCalls = make([]openai.ToolCall, 0, len(toolCallsMap))
		for i := 0; i < len(toolCallsMap); i++ {
			if tc, ok := toolCallsMap[i]; ok {
				comp.ToolCalls = append(comp.ToolCalls, *tc)
			}
		}
	}
	return comp, nil
}
