package prefs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// Bounds for validated numeric preferences. Out-of-range stored values fall
// back to the default instead of erroring.
const (
	MinWindowPercent     = 30
	MaxWindowPercent     = 100
	DefaultWindowPercent = 66

	MinQuickTestQuestions     = 5
	MaxQuickTestQuestions     = 100
	DefaultQuickTestQuestions = 20
)

const (
	DefaultLLMProvider   = "groq"
	DefaultImageProvider = "wikimedia"
)

// UI holds front-end sizing and behavior settings.
type UI struct {
	MainWindowWidthPercent   int    `json:"main_window_width_percent"`
	MainWindowHeightPercent  int    `json:"main_window_height_percent"`
	ExplanationWidthPercent  int    `json:"explanation_width_percent"`
	ExplanationHeightPercent int    `json:"explanation_height_percent"`
	ExplanationLinksBehavior string `json:"explanation_links_behavior"`
	QuickTestQuestions       int    `json:"quick_test_questions"`
}

// LLM holds the explanation-client settings: active provider, per-provider
// keys and models, and the prompt pair.
type LLM struct {
	Provider       string            `json:"provider"`
	APIKeys        map[string]string `json:"api_keys"`
	Models         map[string]string `json:"models"`
	PromptTemplate string            `json:"prompt_template"`
	SystemPrompt   string            `json:"system_prompt"`
}

// Preferences is the persisted settings document.
type Preferences struct {
	LastGiftFile  string `json:"last_gift_file"`
	Theme         string `json:"theme"`
	UI            UI     `json:"ui"`
	LLM           LLM    `json:"llm"`
	ImageProvider string `json:"image_provider"`
}

// Defaults returns a fully populated settings document.
func Defaults() Preferences {
	return Preferences{
		Theme: "default",
		UI: UI{
			MainWindowWidthPercent:   DefaultWindowPercent,
			MainWindowHeightPercent:  DefaultWindowPercent,
			ExplanationWidthPercent:  DefaultWindowPercent,
			ExplanationHeightPercent: DefaultWindowPercent,
			ExplanationLinksBehavior: "browser",
			QuickTestQuestions:       DefaultQuickTestQuestions,
		},
		LLM: LLM{
			Provider: DefaultLLMProvider,
			APIKeys: map[string]string{
				"groq": "", "huggingface": "", "gemini": "", "mistral": "",
				"perplexity": "", "openrouter": "", "cloudflare": "",
			},
			Models: map[string]string{
				"groq":        "llama-3.3-70b-versatile",
				"huggingface": "meta-llama/Llama-3.1-8B-Instruct",
				"gemini":      "gemini-1.5-flash",
				"mistral":     "mistral-small-latest",
				"perplexity":  "sonar-pro",
				"openrouter":  "meta-llama/Meta-Llama-3.1-8B-Instruct",
				"cloudflare":  "@cf/meta/llama-3-8b-instruct",
			},
			PromptTemplate: "Explain rigorously why the correct answer to the question below is right and why each other option is wrong.\n" +
				"Use HTML formatting (<p>, <strong>, <ul>, <li>, <a href='...'>) to structure the answer, including clickable links where relevant.",
			SystemPrompt: "You are a university-level teacher",
		},
		ImageProvider: DefaultImageProvider,
	}
}

// Manager persists a Preferences document in one JSON file, rewritten
// wholesale on every setter. Reads are lenient: a missing or corrupt file or
// missing keys yield defaults.
type Manager struct {
	mu   sync.Mutex
	path string
}

func NewManager(path string) (*Manager, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	m := &Manager{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := m.write(Defaults()); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Get returns the stored preferences with defaults filled in for missing or
// out-of-range values.
func (m *Manager) Get() Preferences {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.read()
}

// Put replaces the whole document.
func (m *Manager) Put(p Preferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.write(normalize(p))
}

// Update applies fn to the current document and writes the result back.
func (m *Manager) Update(fn func(*Preferences)) (Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.read()
	fn(&p)
	p = normalize(p)
	if err := m.write(p); err != nil {
		return Preferences{}, err
	}
	return p, nil
}

// LastGiftFile returns the stored path only when the file still exists.
func (m *Manager) LastGiftFile() string {
	p := m.Get()
	if p.LastGiftFile == "" {
		return ""
	}
	if _, err := os.Stat(p.LastGiftFile); err != nil {
		return ""
	}
	return p.LastGiftFile
}

func (m *Manager) SetLastGiftFile(path string) error {
	_, err := m.Update(func(p *Preferences) { p.LastGiftFile = path })
	return err
}

// APIKey returns the stored key for a provider, empty if unset.
func (m *Manager) APIKey(provider string) string {
	return m.Get().LLM.APIKeys[provider]
}

func (m *Manager) SetAPIKey(provider, key string) error {
	_, err := m.Update(func(p *Preferences) {
		if p.LLM.APIKeys == nil {
			p.LLM.APIKeys = map[string]string{}
		}
		p.LLM.APIKeys[provider] = key
	})
	return err
}

// Model returns the stored model for a provider, empty if unset.
func (m *Manager) Model(provider string) string {
	return m.Get().LLM.Models[provider]
}

func (m *Manager) SetModel(provider, model string) error {
	_, err := m.Update(func(p *Preferences) {
		if p.LLM.Models == nil {
			p.LLM.Models = map[string]string{}
		}
		p.LLM.Models[provider] = model
	})
	return err
}

func (m *Manager) read() Preferences {
	p := Defaults()
	b, err := os.ReadFile(m.path)
	if err != nil {
		return p
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return Defaults()
	}
	return normalize(p)
}

func (m *Manager) write(p Preferences) error {
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, b, 0o644)
}

func normalize(p Preferences) Preferences {
	d := Defaults()
	p.UI.MainWindowWidthPercent = clampOr(p.UI.MainWindowWidthPercent, MinWindowPercent, MaxWindowPercent, DefaultWindowPercent)
	p.UI.MainWindowHeightPercent = clampOr(p.UI.MainWindowHeightPercent, MinWindowPercent, MaxWindowPercent, DefaultWindowPercent)
	p.UI.ExplanationWidthPercent = clampOr(p.UI.ExplanationWidthPercent, MinWindowPercent, MaxWindowPercent, DefaultWindowPercent)
	p.UI.ExplanationHeightPercent = clampOr(p.UI.ExplanationHeightPercent, MinWindowPercent, MaxWindowPercent, DefaultWindowPercent)
	p.UI.QuickTestQuestions = clampOr(p.UI.QuickTestQuestions, MinQuickTestQuestions, MaxQuickTestQuestions, DefaultQuickTestQuestions)
	if p.UI.ExplanationLinksBehavior == "" {
		p.UI.ExplanationLinksBehavior = d.UI.ExplanationLinksBehavior
	}
	if p.Theme == "" {
		p.Theme = d.Theme
	}
	if p.LLM.Provider == "" {
		p.LLM.Provider = d.LLM.Provider
	}
	if p.LLM.APIKeys == nil {
		p.LLM.APIKeys = d.LLM.APIKeys
	}
	if p.LLM.Models == nil {
		p.LLM.Models = d.LLM.Models
	}
	if p.LLM.PromptTemplate == "" {
		p.LLM.PromptTemplate = d.LLM.PromptTemplate
	}
	if p.LLM.SystemPrompt == "" {
		p.LLM.SystemPrompt = d.LLM.SystemPrompt
	}
	if p.ImageProvider == "" {
		p.ImageProvider = d.ImageProvider
	}
	return p
}

func clampOr(v, min, max, def int) int {
	if v < min || v > max {
		return def
	}
	return v
}
