package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/scoolish-backend/internal/platform/llm"
)

const catalogEnv = "PROMPT_CATALOG_YAML"

//go:embed catalog.yaml
var catalogFS embed.FS

// Required lists every prompt a running service looks up.
var Required = []string{
	"chronology",
	"sentiment",
	"segmenter",
	"topics",
	"quiz",
	"creative_prompts",
	"summarizer",
	"doc_analysis",
	"doc_mind_map",
	"timeline",
	"visual_guide",
	"math_visualizer",
	"scrape_summary",
}

type yamlCatalog struct {
	Catalog string                `yaml:"catalog"`
	Version int                   `yaml:"version"`
	Prompts map[string]yamlPrompt `yaml:"prompts"`
}

type yamlPrompt struct {
	System         string  `yaml:"system"`
	User           string  `yaml:"user"`
	Temperature    float32 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

type entry struct {
	def  yamlPrompt
	user *template.Template
}

// Catalog renders tool prompts into llm requests.
type Catalog struct {
	version int
	entries map[string]*entry
}

var funcs = template.FuncMap{
	"join": strings.Join,
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// Default returns the process-wide catalog, loading it on first use.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = Load()
	})
	return defaultCat, defaultErr
}

// Load reads the catalog from PROMPT_CATALOG_YAML when set, otherwise from
// the embedded copy.
func Load() (*Catalog, error) {
	data, err := readCatalog()
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func readCatalog() ([]byte, error) {
	if path := strings.TrimSpace(os.Getenv(catalogEnv)); path != "" {
		return os.ReadFile(path)
	}
	return catalogFS.ReadFile("catalog.yaml")
}

func Parse(data []byte) (*Catalog, error) {
	var raw yamlCatalog
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("prompt catalog: %w", err)
	}
	if err := validate(&raw); err != nil {
		return nil, fmt.Errorf("prompt catalog: %w", err)
	}
	c := &Catalog{version: raw.Version, entries: make(map[string]*entry, len(raw.Prompts))}
	for name, p := range raw.Prompts {
		t, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(p.User)
		if err != nil {
			return nil, fmt.Errorf("prompt catalog: %s: %w", name, err)
		}
		c.entries[name] = &entry{def: p, user: t}
	}
	return c, nil
}

func validate(raw *yamlCatalog) error {
	if raw == nil || len(raw.Prompts) == 0 {
		return errors.New("no prompts defined")
	}
	for _, name := range Required {
		p, ok := raw.Prompts[name]
		if !ok {
			return fmt.Errorf("missing prompt %s", name)
		}
		if strings.TrimSpace(p.System) == "" || strings.TrimSpace(p.User) == "" {
			return fmt.Errorf("prompt %s: system and user are required", name)
		}
		if p.MaxTokens < 0 || p.TimeoutSeconds < 0 {
			return fmt.Errorf("prompt %s: negative limits", name)
		}
	}
	return nil
}

func (c *Catalog) Version() int { return c.version }

// Request renders the named prompt with data and copies its sampling limits.
func (c *Catalog) Request(name string, data any) (llm.Request, error) {
	e, ok := c.entries[name]
	if !ok {
		return llm.Request{}, fmt.Errorf("unknown prompt %q", name)
	}
	var buf bytes.Buffer
	if err := e.user.Execute(&buf, data); err != nil {
		return llm.Request{}, fmt.Errorf("render prompt %s: %w", name, err)
	}
	return llm.Request{
		System:      strings.TrimSpace(e.def.System),
		User:        strings.TrimSpace(buf.String()),
		Temperature: e.def.Temperature,
		MaxTokens:   e.def.MaxTokens,
		Timeout:     time.Duration(e.def.TimeoutSeconds) * time.Second,
	}, nil
}
