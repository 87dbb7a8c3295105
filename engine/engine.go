// Package engine implements the agentic tool-calling loop: it alternates
// model completions with local tool execution until the model produces a
// final text answer, a step budget is exhausted, or the caller cancels.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
)

// SafetyClass classifies how a tool may be dispatched.
type SafetyClass int

const (
	// Safe tools run without interaction.
	Safe SafetyClass = iota
	// Confirm tools require explicit approval before every run.
	Confirm
	// Blocked tools are registered but never executed.
	Blocked
)

func (c SafetyClass) String() string {
	switch c {
	case Safe:
		return "safe"
	case Confirm:
		return "confirm"
	case Blocked:
		return "blocked"
	}
	return "unknown"
}

// Verdict is the safety gate's decision for a single tool call.
type Verdict int

const (
	Allow Verdict = iota
	RequireConfirmation
	Deny
)

// ToolFunc executes a tool. Arguments arrive as the raw JSON string produced
// by the model.
type ToolFunc func(ctx context.Context, args string) (string, error)

// ToolSpec describes a callable tool as declared to the model.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  json.RawMessage
	Safety      SafetyClass
}

// ToolResult correlates an executed call back to the request that issued it.
type ToolResult struct {
	ID     string
	Name   string
	OK     bool
	Output string
}

// Gate validates a tool call before execution. Implementations inspect the
// rendered arguments, not just the tool name.
type Gate interface {
	Check(spec ToolSpec, args string) Verdict
}

// Approver obtains external approval for confirm-class tool calls.
type Approver interface {
	Approve(ctx context.Context, toolName, args string) (bool, error)
}

// Completion is one model gateway response: either final text or a list of
// requested tool calls.
type Completion struct {
	Content   string
	ToolCalls []openai.ToolCall
}

// Completer sends a transcript plus tool declarations to an inference
// provider. One call is one attempt; the engine handles retries.
type Completer interface {
	Complete(ctx context.Context, messages []openai.ChatCompletionMessage, tools []openai.Tool) (Completion, error)
}

var (
	// ErrUnknownTool indicates a tool name with no registered implementation.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrBudgetExceeded indicates the session hit its step ceiling.
	ErrBudgetExceeded = errors.New("step budget exceeded")
)

// ProviderError wraps a gateway failure that survived the retry ceiling.
type ProviderError struct {
	Attempts int
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// State is the loop's position in its lifecycle.
type State int

const (
	StateAwaitingModel State = iota
	StateExecutingTools
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAwaitingModel:
		return "awaiting-model"
	case StateExecutingTools:
		return "executing-tools"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Session holds one conversation's append-only transcript and step budget.
// Sessions are not safe for concurrent use; run one step at a time.
type Session struct {
	ID       string
	Messages []openai.ChatCompletionMessage
	Steps    int
	MaxSteps int
	State    State
}

// NewSession seeds a session with the user's request.
func NewSession(request string, maxSteps int) *Session {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	return &Session{
		ID: uuid.NewString(),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: request},
		},
		MaxSteps: maxSteps,
		State:    StateAwaitingModel,
	}
}

// ResumeSession rebuilds a session from a persisted transcript.
func ResumeSession(messages []openai.ChatCompletionMessage, maxSteps int) *Session {
	s := NewSession("", maxSteps)
	s.Messages = messages
	return s
}

// Append adds a user turn to the transcript.
func (s *Session) Append(content string) {
	s.Messages = append(s.Messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: content,
	})
}

const (
	DefaultMaxSteps   = 10
	DefaultMaxRetries = 3
	DefaultRetryBase  = time.Second
)

// Config wires an Engine's collaborators.
type Config struct {
	Completer Completer
	Registry  *Registry
	Gate      Gate
	Approver  Approver

	SystemMessage func() string

	MaxRetries int
	RetryBase  time.Duration
}

// Options carries per-run observer hooks. All hooks are optional.
type Options struct {
	OnToolCall   func(name, args string)
	OnToolResult func(res ToolResult)
}

type Engine struct {
	completer Completer
	registry  *Registry
	gate      Gate
	approver  Approver

	systemMessage func() string

	maxRetries int
	retryBase  time.Duration
}

func New(cfg Config) *Engine {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	retryBase := cfg.RetryBase
	if retryBase <= 0 {
		retryBase = DefaultRetryBase
	}
	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	return &Engine{
		completer:     cfg.Completer,
		registry:      registry,
		gate:          cfg.Gate,
		approver:      cfg.Approver,
		systemMessage: cfg.SystemMessage,
		maxRetries:    maxRetries,
		retryBase:     retryBase,
	}
}

func (e *Engine) Registry() *Registry { return e.registry }

// Run drives the session until the model produces a final answer or the
// session fails. The transcript is preserved in either case.
func (e *Engine) Run(ctx context.Context, s *Session, opts Options) (string, error) {
	for {
		if s.Steps >= s.MaxSteps {
			s.State = StateFailed
			return "", ErrBudgetExceeded
		}
		s.Steps++
		s.State = StateAwaitingModel

		comp, err := e.complete(ctx, s.Messages)
		if err != nil {
			s.State = StateFailed
			return "", err
		}

		if len(comp.ToolCalls) == 0 {
			s.Messages = append(s.Messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: comp.Content,
			})
			s.State = StateDone
			return comp.Content, nil
		}

		s.State = StateExecutingTools
		s.Messages = append(s.Messages, openai.ChatCompletionMessage{
			Role:      openai.ChatMessageRoleAssistant,
			ToolCalls: comp.ToolCalls,
		})

		// Calls run sequentially in the order received; results are
		// appended in that same order so correlation by ID stays
		// unambiguous and write-then-read tool sequences behave.
		for _, tc := range comp.ToolCalls {
			if opts.OnToolCall != nil {
				opts.OnToolCall(tc.Function.Name, tc.Function.Arguments)
			}
			res, err := e.dispatch(ctx, tc)
			if err != nil {
				s.State = StateFailed
				return "", err
			}
			if opts.OnToolResult != nil {
				opts.OnToolResult(res)
			}
			s.Messages = append(s.Messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    res.Output,
				ToolCallID: res.ID,
			})
		}
	}
}

// dispatch runs one tool call through the safety gate and registry. Tool
// failures come back as failed results, never as errors; only an unknown
// tool name aborts the session.
func (e *Engine) dispatch(ctx context.Context, tc openai.ToolCall) (ToolResult, error) {
	name := tc.Function.Name
	args := tc.Function.Arguments

	spec, err := e.registry.Resolve(name)
	if err != nil {
		return ToolResult{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	res := ToolResult{ID: tc.ID, Name: name}

	verdict := Allow
	switch {
	case e.gate != nil:
		verdict = e.gate.Check(spec, args)
	case spec.Safety == Blocked:
		verdict = Deny
	case spec.Safety == Confirm:
		verdict = RequireConfirmation
	}

	switch verdict {
	case Deny:
		res.Output = "Error: blocked pattern"
		return res, nil
	case RequireConfirmation:
		if e.approver == nil {
			res.Output = "Error: user declined"
			return res, nil
		}
		approved, err := e.approver.Approve(ctx, name, args)
		if err != nil {
			res.Output = fmt.Sprintf("Error: approval failed: %v", err)
			return res, nil
		}
		if !approved {
			res.Output = "Error: user declined"
			return res, nil
		}
	}

	return e.registry.Execute(ctx, tc)
}

// complete calls the gateway with exponential backoff. Delays are strictly
// increasing; after the ceiling the last error surfaces as a ProviderError.
func (e *Engine) complete(ctx context.Context, messages []openai.ChatCompletionMessage) (Completion, error) {
	msgs := messages
	if e.systemMessage != nil {
		if sys := e.systemMessage(); sys != "" && (len(msgs) == 0 || msgs[0].Role != openai.ChatMessageRoleSystem) {
			msgs = append([]openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: sys},
			}, msgs...)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoffDelay(e.retryBase, attempt)):
			case <-ctx.Done():
				return Completion{}, ctx.Err()
			}
		}

		comp, err := e.completer.Complete(ctx, msgs, e.registry.Tools())
		if err != nil {
			if ctx.Err() != nil {
				return Completion{}, ctx.Err()
			}
			lastErr = err
			continue
		}
		return comp, nil
	}

	return Completion{}, &ProviderError{Attempts: e.maxRetries + 1, Err: lastErr}
}

// backoffDelay returns base << (attempt-1): 1x, 2x, 4x, ...
func backoffDelay(base time.Duration, attempt int) time.Duration {
	return base << uint(attempt-1)
}
