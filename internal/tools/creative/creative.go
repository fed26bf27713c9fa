package creative

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/yungbote/scoolish-backend/internal/platform/llm"
	"github.com/yungbote/scoolish-backend/internal/tools"
)

const (
	Name      = "creative_prompts"
	perPageK  = 10
	maxTags   = 6
	maxPrompt = 220
)

var (
	tagUnsafe = regexp.MustCompile(`[^a-z0-9\- ]+`)
	spaces    = regexp.MustCompile(`\s+`)
)

type Prompt struct {
	Prompt string   `json:"prompt"`
	Genre  *string  `json:"genre"`
	Tone   *string  `json:"tone"`
	Tags   []string `json:"tags"`
}

type MergedPrompt struct {
	Prompt
	Pages []int `json:"pages"`
}

type PagePrompts struct {
	Page    int      `json:"page"`
	Prompts []Prompt `json:"prompts"`
}

type Service struct{ tools.Base }

func New(base tools.Base) *Service { return &Service{Base: base} }

func (s *Service) Name() string { return Name }

func (s *Service) AnalyzePage(ctx context.Context, in tools.PageInput) (any, error) {
	return s.Generate(ctx, in.Text)
}

func (s *Service) Generate(ctx context.Context, text string) ([]Prompt, error) {
	if strings.TrimSpace(text) == "" {
		return []Prompt{}, nil
	}
	raw, err := s.Ask(ctx, Name, tools.TextData{K: perPageK, Text: llm.Clip(text)})
	if err != nil {
		return nil, err
	}
	return ParsePrompts(raw), nil
}

// ParsePrompts reads a JSON array of prompt objects, falling back to one
// prompt per reply line.
func ParsePrompts(raw string) []Prompt {
	var arr []any
	if err := llm.DecodeJSON(raw, &arr); err == nil {
		out := []Prompt{}
		for _, m := range tools.Objects(arr) {
			out = append(out, normalize(tools.Str(m["prompt"]), tools.Str(m["genre"]), tools.Str(m["tone"]), tools.StrList(m["tags"])))
		}
		return out
	}
	out := []Prompt{}
	for _, line := range tools.Lines(raw) {
		out = append(out, normalize(line, "", "", nil))
	}
	return out
}

func optional(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}

func normalize(prompt, genre, tone string, tags []string) Prompt {
	return Prompt{
		Prompt: llm.Truncate(prompt, maxPrompt),
		Genre:  optional(genre),
		Tone:   optional(tone),
		Tags:   CleanTags(tags),
	}
}

// CleanTags lowercases tags, drops anything outside [a-z0-9- ], turns
// whitespace runs into dashes and keeps the first six distinct results.
func CleanTags(tags []string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, t := range tags {
		t = tagUnsafe.ReplaceAllString(strings.ToLower(strings.TrimSpace(t)), "")
		t = strings.Trim(spaces.ReplaceAllString(t, "-"), "-")
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		if len(out) == maxTags {
			break
		}
	}
	return out
}

// Merge dedupes prompts by lowercase text, collecting pages, sorted by
// prompt text.
func Merge(perPage []PagePrompts) []MergedPrompt {
	index := map[string]int{}
	out := []MergedPrompt{}
	for _, pp := range perPage {
		for _, p := range pp.Prompts {
			k := strings.ToLower(strings.TrimSpace(p.Prompt))
			if k == "" {
				continue
			}
			if i, ok := index[k]; ok {
				out[i].Pages = tools.AddPage(out[i].Pages, pp.Page)
				continue
			}
			if len(p.Tags) > maxTags {
				p.Tags = p.Tags[:maxTags]
			}
			index[k] = len(out)
			out = append(out, MergedPrompt{Prompt: p, Pages: []int{pp.Page}})
		}
	}
	for i := range out {
		sort.Ints(out[i].Pages)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Prompt.Prompt < out[j].Prompt.Prompt })
	return out
}

func (s *Service) Results(_ context.Context, fileID string, pages []tools.Page, _ tools.Options) (map[string]any, error) {
	stored := tools.DecodeStored[[]Prompt](pages)
	perPage := make([]PagePrompts, len(pages))
	for i, p := range pages {
		ps := stored[i]
		if ps == nil {
			ps = []Prompt{}
		}
		perPage[i] = PagePrompts{Page: p.Number, Prompts: ps}
	}
	return map[string]any{
		"file_id":  fileID,
		"per_page": perPage,
		"merged":   Merge(perPage),
	}, nil
}
