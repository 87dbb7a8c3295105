package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/model8cli/m8cli/engine"
)

// MemoryStore is a persistent key-value store the model can read and write
// across sessions. Its contents are appended to the system message so
// learned facts survive restarts.
type MemoryStore struct {
	mu   sync.RWMutex
	path string
	data map[string]string
}

func OpenMemory(configDir string) (*MemoryStore, error) {
	m := &MemoryStore{
		path: filepath.Join(configDir, "memory.json"),
		data: map[string]string{},
	}
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, &m.data); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MemoryStore) save() error {
	m.mu.RLock()
	data, err := json.MarshalIndent(m.data, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0o600)
}

func (m *MemoryStore) Get(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data[key]
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()
	return m.save()
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return m.save()
}

func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Markdown renders the store for inclusion in the system message.
func (m *MemoryStore) Markdown() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.data) == 0 {
		return ""
	}

	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("\n---\n## Learned Information\n")
	for _, k := range keys {
		fmt.Fprintf(&sb, "- %s: %s\n", k, m.data[k])
	}
	return sb.String()
}

// RegisterTools exposes the store to the model.
func (m *MemoryStore) RegisterTools(r *engine.Registry) {
	keyParams := json.RawMessage(`{
		"type": "object",
		"properties": {
			"key": {"type": "string", "description": "Memory key"}
		},
		"required": ["key"]
	}`)

	r.Register(engine.ToolSpec{
		Name:        "save_memory",
		Description: "Remember a fact under a key for future sessions",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"key": {"type": "string", "description": "Memory key"},
				"value": {"type": "string", "description": "Fact to remember"}
			},
			"required": ["key", "value"]
		}`),
		Safety: engine.Safe,
	}, func(_ context.Context, args string) (string, error) {
		var p struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		}
		if err := json.Unmarshal([]byte(args), &p); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
		if p.Key == "" {
			return "", fmt.Errorf("key is required")
		}
		if err := m.Set(p.Key, p.Value); err != nil {
			return "", err
		}
		return fmt.Sprintf("Remembered %s", p.Key), nil
	})

	r.Register(engine.ToolSpec{
		Name:        "get_memory",
		Description: "Recall a remembered fact by key",
		Parameters:  keyParams,
		Safety:      engine.Safe,
	}, func(_ context.Context, args string) (string, error) {
		var p struct {
			Key string `json:"key"`
		}
		if err := json.Unmarshal([]byte(args), &p); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
		value := m.Get(p.Key)
		if value == "" {
			return fmt.Sprintf("No memory for %s", p.Key), nil
		}
		return value, nil
	})

	r.Register(engine.ToolSpec{
		Name:        "delete_memory",
		Description: "Forget a remembered fact",
		Parameters:  keyParams,
		Safety:      engine.Safe,
	}, func(_ context.Context, args string) (string, error) {
		var p struct {
			Key string `json:"key"`
		}
		if err := json.Unmarshal([]byte(args), &p); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
		if err := m.Delete(p.Key); err != nil {
			return "", err
		}
		return fmt.Sprintf("Forgot %s", p.Key), nil
	})

	r.Register(engine.ToolSpec{
		Name:        "list_memory",
		Description: "List all remembered keys",
		Safety:      engine.Safe,
	}, func(_ context.Context, _ string) (string, error) {
		keys := m.Keys()
		if len(keys) == 0 {
			return "No memories stored.", nil
		}
		return strings.Join(keys, "\n"), nil
	})
}
