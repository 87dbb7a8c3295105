// Package provider maps provider names to OpenAI-compatible endpoints and
// builds clients for them. Every supported provider speaks the chat
// completions wire format, so one client type covers all of them.
package provider

import (
	"encoding/json"
	"os"
	"path/filepath"

	openai "github.com/sashabaranov/go-openai"
)

type Provider struct {
	Name   string `json:"name"`
	APIURL string `json:"apiurl"`
	EnvKey string `json:"envKey,omitempty"`
	Model  string `json:"model,omitempty"`
	// Local providers accept any key; no credential is required.
	Local bool `json:"local,omitempty"`
}

var Defaults = []Provider{
	{
		Name:   "openrouter",
		APIURL: "https://openrouter.ai/api/v1",
		EnvKey: "OPENROUTER_API_KEY",
		Model:  "deepseek/deepseek-chat-v3-0324:free",
	},
	{
		Name:   "groq",
		APIURL: "https://api.groq.com/openai/v1",
		EnvKey: "GROQ_API_KEY",
		Model:  "llama-3.3-70b-versatile",
	},
	{
		Name:   "ollama",
		APIURL: "http://localhost:11434/v1",
		Model:  "llama3.1",
		Local:  true,
	},
	{
		Name:   "openai",
		APIURL: "https://api.openai.com/v1",
		EnvKey: "OPENAI_API_KEY",
		Model:  "gpt-4o-mini",
	},
	{
		Name:   "deepseek",
		APIURL: "https://api.deepseek.com/v1",
		EnvKey: "DEEPSEEK_API_KEY",
		Model:  "deepseek-chat",
	},
	{
		Name:   "mistral",
		APIURL: "https://api.mistral.ai/v1",
		EnvKey: "MISTRAL_API_KEY",
		Model:  "mistral-large-latest",
	},
	{
		Name:   "together",
		APIURL: "https://api.together.xyz/v1",
		EnvKey: "TOGETHER_API_KEY",
		Model:  "meta-llama/Llama-3.3-70B-Instruct-Turbo",
	},
	{
		Name:   "fireworks",
		APIURL: "https://api.fireworks.ai/inference/v1",
		EnvKey: "FIREWORKS_API_KEY",
		Model:  "accounts/fireworks/models/llama-v3p1-70b-instruct",
	},
	{
		Name:   "cerebras",
		APIURL: "https://api.cerebras.ai/v1",
		EnvKey: "CEREBRAS_API_KEY",
		Model:  "llama-3.3-70b",
	},
}

// Find returns the named provider, or nil.
func Find(name string, providers []Provider) *Provider {
	for i := range providers {
		if providers[i].Name == name {
			return &providers[i]
		}
	}
	return nil
}

// NewClient builds a chat client against the provider's endpoint.
func NewClient(p *Provider, apiKey string) *openai.Client {
	if p.Local && apiKey == "" {
		apiKey = "unused"
	}
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = p.APIURL
	return openai.NewClientWithConfig(config)
}

// LoadExtra prepends user-defined providers from providers.json in the
// config directory. User entries shadow defaults of the same name because
// Find scans front to back.
func LoadExtra(configDir string) ([]Provider, error) {
	path := filepath.Join(configDir, "providers.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Defaults, nil
		}
		return nil, err
	}
	var extra []Provider
	if err := json.Unmarshal(data, &extra); err != nil {
		return nil, err
	}
	return append(extra, Defaults...), nil
}
