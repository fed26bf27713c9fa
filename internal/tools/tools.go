package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/yungbote/scoolish-backend/internal/platform/llm"
	"github.com/yungbote/scoolish-backend/internal/tools/prompts"
)

// ErrUnknownTool is returned by a Registry lookup for an unregistered name.
var ErrUnknownTool = errors.New("unknown tool")

// Options are the caller-supplied knobs shared by page tools.
type Options struct {
	N          int    `json:"n,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
	MindMap    bool   `json:"mind_map,omitempty"`
}

// PageInput is one page handed to a tool during fan-out.
type PageInput struct {
	Number  int
	Text    string
	Total   int
	Options Options
}

// Page is a stored page with its text and, when already analyzed, the
// tool's per-page result.
type Page struct {
	Number int
	Text   string
	Result json.RawMessage
}

// PageTool analyzes a single page at a time and later merges the stored
// per-page results into a document view.
type PageTool interface {
	Name() string
	AnalyzePage(ctx context.Context, in PageInput) (any, error)
	Results(ctx context.Context, fileID string, pages []Page, opts Options) (map[string]any, error)
}

// Base carries the LLM client and prompt catalog every tool needs.
type Base struct {
	LLM     llm.Chatter
	Prompts *prompts.Catalog
}

// Ask renders the named prompt and returns the trimmed reply.
func (b Base) Ask(ctx context.Context, prompt string, data any) (string, error) {
	if b.LLM == nil || b.Prompts == nil {
		return "", fmt.Errorf("%s: tool not configured", prompt)
	}
	req, err := b.Prompts.Request(prompt, data)
	if err != nil {
		return "", err
	}
	return b.LLM.Chat(ctx, req)
}

// TextData is the template input for prompts that take a page and a count.
type TextData struct {
	K    int
	K2   int
	Text string
}

// Registry maps tool names to page tools.
type Registry struct {
	tools map[string]PageTool
	order []string
}

func NewRegistry(ts ...PageTool) *Registry {
	r := &Registry{tools: map[string]PageTool{}}
	for _, t := range ts {
		if t == nil {
			continue
		}
		if _, dup := r.tools[t.Name()]; !dup {
			r.order = append(r.order, t.Name())
		}
		r.tools[t.Name()] = t
	}
	return r
}

func (r *Registry) Get(name string) (PageTool, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return t, nil
}

func (r *Registry) Names() []string { return append([]string(nil), r.order...) }

// DecodeStored unmarshals the stored per-page results of pages into T,
// leaving zero values for pages that have none.
func DecodeStored[T any](pages []Page) []T {
	out := make([]T, len(pages))
	for i, p := range pages {
		if len(p.Result) == 0 {
			continue
		}
		_ = json.Unmarshal(p.Result, &out[i])
	}
	return out
}

// Str renders a loosely-typed JSON value as text. nil becomes "".
func Str(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

// Int coerces a JSON number or numeric string, falling back to def.
func Int(v any, def int) int {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return def
		}
		return int(x)
	case int:
		return x
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(x)); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return int(f)
		}
	}
	return def
}

// Float coerces a JSON number or numeric string.
func Float(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, !math.IsNaN(x) && !math.IsInf(x, 0)
	case int:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	return 0, false
}

// StrList accepts an array or a scalar and returns the non-empty string
// forms of its items.
func StrList(v any) []string {
	var items []any
	switch x := v.(type) {
	case nil:
		return []string{}
	case []any:
		items = x
	case []string:
		for _, s := range x {
			items = append(items, s)
		}
	default:
		items = []any{x}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s := Str(it); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Objects keeps the object entries of a JSON array.
func Objects(v any) []map[string]any {
	arr, _ := v.([]any)
	out := make([]map[string]any, 0, len(arr))
	for _, it := range arr {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// Lines splits a free-text reply into bullet-stripped, non-empty lines.
func Lines(raw string) []string {
	out := []string{}
	for _, ln := range strings.Split(raw, "\n") {
		ln = strings.Trim(ln, "-•* \t\r")
		if ln != "" {
			out = append(out, ln)
		}
	}
	return out
}

func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// AddPage appends page to pages unless it is already present.
func AddPage(pages []int, page int) []int {
	for _, p := range pages {
		if p == page {
			return pages
		}
	}
	return append(pages, page)
}
