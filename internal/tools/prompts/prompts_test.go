package prompts

import (
	"strings"
	"testing"
	"time"
)

func TestEmbeddedCatalogLoadsEveryRequiredPrompt(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, name := range Required {
		if _, ok := c.entries[name]; !ok {
			t.Fatalf("missing %s", name)
		}
	}
}

func TestRequestRendersTemplateAndLimits(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	req, err := c.Request("quiz", struct {
		K          int
		Difficulty string
		Text       string
	}{K: 3, Difficulty: "hard", Text: "Photosynthesis converts light."})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if !strings.Contains(req.User, "up to 3 high-quality") || !strings.Contains(req.User, "difficulty = 'hard'") {
		t.Fatalf("user prompt not rendered: %q", req.User)
	}
	if !strings.HasSuffix(req.User, "Photosynthesis converts light.") {
		t.Fatalf("text should close the prompt: %q", req.User)
	}
	if req.MaxTokens != 800 || req.Timeout != 45*time.Second {
		t.Fatalf("limits: max_tokens=%d timeout=%s", req.MaxTokens, req.Timeout)
	}
}

func TestRequestFailsOnMissingField(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := c.Request("quiz", map[string]any{"Text": "x"}); err == nil {
		t.Fatalf("expected error for missing K")
	}
	if _, err := c.Request("nope", nil); err == nil {
		t.Fatalf("expected error for unknown prompt")
	}
}

func TestParseRejectsIncompleteCatalog(t *testing.T) {
	_, err := Parse([]byte("prompts:\n  quiz:\n    system: s\n    user: u\n"))
	if err == nil || !strings.Contains(err.Error(), "missing prompt") {
		t.Fatalf("expected missing prompt error, got %v", err)
	}
}

func TestCatalogPathOverride(t *testing.T) {
	t.Setenv(catalogEnv, "/nonexistent/catalog.yaml")
	if _, err := Load(); err == nil {
		t.Fatalf("expected read error for override path")
	}
}
