package main

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const maxSessionMessages = 100

// SessionStore persists conversation transcripts, one file per working
// directory, so an interrupted chat can be resumed where it ran.
type SessionStore struct {
	dir string
}

func NewSessionStore(configDir string) *SessionStore {
	return &SessionStore{dir: filepath.Join(configDir, "sessions")}
}

type sessionFile struct {
	SessionID string                         `json:"session_id"`
	Dir       string                         `json:"dir"`
	UpdatedAt string                         `json:"updated_at"`
	Messages  []openai.ChatCompletionMessage `json:"messages"`
}

func (s *SessionStore) filePath(workDir string) string {
	h := sha256.Sum256([]byte(workDir))
	return filepath.Join(s.dir, fmt.Sprintf("%x.json", h[:16]))
}

// Save writes the transcript for workDir. System turns are dropped (they
// are rebuilt on load) and the tail is capped at maxSessionMessages.
func (s *SessionStore) Save(workDir, sessionID string, messages []openai.ChatCompletionMessage) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}

	filtered := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == openai.ChatMessageRoleSystem {
			continue
		}
		filtered = append(filtered, m)
	}
	if len(filtered) == 0 {
		return nil
	}
	filtered = truncateMessages(filtered, maxSessionMessages)

	sf := sessionFile{
		SessionID: sessionID,
		Dir:       workDir,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
		Messages:  filtered,
	}
	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.filePath(workDir), data, 0o600)
}

// Load returns the persisted transcript for workDir, or nil if none exists.
func (s *SessionStore) Load(workDir string) ([]openai.ChatCompletionMessage, error) {
	data, err := os.ReadFile(s.filePath(workDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var sf sessionFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, err
	}
	return sf.Messages, nil
}

func (s *SessionStore) Clear(workDir string) error {
	err := os.Remove(s.filePath(workDir))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// truncateMessages keeps the newest max messages, then drops leading turns
// until the transcript starts at a user turn so the provider sees a valid
// conversation shape.
func truncateMessages(msgs []openai.ChatCompletionMessage, max int) []openai.ChatCompletionMessage {
	if len(msgs) <= max {
		return msgs
	}
	msgs = msgs[len(msgs)-max:]
	for len(msgs) > 0 && msgs[0].Role != openai.ChatMessageRoleUser {
		msgs = msgs[1:]
	}
	return msgs
}
