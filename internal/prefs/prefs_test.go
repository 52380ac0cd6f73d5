package prefs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gift-practice/giftpractice/internal/prefs"
)

func newManager(t *testing.T) (*prefs.Manager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "preferences.json")
	m, err := prefs.NewManager(path)
	if err != nil {
		t.Fatal(err)
	}
	return m, path
}

func TestNewManagerWritesDefaults(t *testing.T) {
	m, path := newManager(t)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("preferences file not created: %v", err)
	}
	p := m.Get()
	if p.LLM.Provider != prefs.DefaultLLMProvider {
		t.Fatalf("provider = %q", p.LLM.Provider)
	}
	if p.UI.QuickTestQuestions != prefs.DefaultQuickTestQuestions {
		t.Fatalf("quick test = %d", p.UI.QuickTestQuestions)
	}
	if p.ImageProvider != prefs.DefaultImageProvider {
		t.Fatalf("image provider = %q", p.ImageProvider)
	}
}

func TestSettersPersist(t *testing.T) {
	m, path := newManager(t)
	if err := m.SetAPIKey("groq", "gsk_test"); err != nil {
		t.Fatal(err)
	}
	if err := m.SetModel("gemini", "gemini-2.0-flash"); err != nil {
		t.Fatal(err)
	}

	m2, err := prefs.NewManager(path)
	if err != nil {
		t.Fatal(err)
	}
	if m2.APIKey("groq") != "gsk_test" {
		t.Fatalf("api key = %q", m2.APIKey("groq"))
	}
	if m2.Model("gemini") != "gemini-2.0-flash" {
		t.Fatalf("model = %q", m2.Model("gemini"))
	}
	// Untouched fields keep their defaults after the rewrite.
	if m2.Get().LLM.Provider != prefs.DefaultLLMProvider {
		t.Fatalf("provider = %q", m2.Get().LLM.Provider)
	}
}

func TestCorruptFileReadsAsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preferences.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := prefs.NewManager(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := m.Get().LLM.Provider; got != prefs.DefaultLLMProvider {
		t.Fatalf("provider = %q", got)
	}
}

func TestOutOfRangeValuesFallBack(t *testing.T) {
	m, _ := newManager(t)
	p, err := m.Update(func(p *prefs.Preferences) {
		p.UI.QuickTestQuestions = 10000
		p.UI.MainWindowWidthPercent = 5
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.UI.QuickTestQuestions != prefs.DefaultQuickTestQuestions {
		t.Fatalf("quick test = %d", p.UI.QuickTestQuestions)
	}
	if p.UI.MainWindowWidthPercent != prefs.DefaultWindowPercent {
		t.Fatalf("width = %d", p.UI.MainWindowWidthPercent)
	}
}

func TestLastGiftFileChecksExistence(t *testing.T) {
	m, _ := newManager(t)
	dir := t.TempDir()
	real := filepath.Join(dir, "quiz.gift")
	if err := os.WriteFile(real, []byte("::Q1::x?{\n= a\n~ b\n}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := m.SetLastGiftFile(real); err != nil {
		t.Fatal(err)
	}
	if m.LastGiftFile() != real {
		t.Fatalf("last file = %q", m.LastGiftFile())
	}
	if err := m.SetLastGiftFile(filepath.Join(dir, "gone.gift")); err != nil {
		t.Fatal(err)
	}
	if m.LastGiftFile() != "" {
		t.Fatalf("missing file should read as empty, got %q", m.LastGiftFile())
	}
}
