package webnotes

import (
	"context"
	"strings"

	"github.com/yungbote/scoolish-backend/internal/platform/llm"
	"github.com/yungbote/scoolish-backend/internal/tools"
)

const Name = "scrape_summary"

// Notes is the structured summary kept on a knowledge item.
type Notes struct {
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
	Tags      []string `json:"tags"`
}

type promptData struct {
	URL   string
	Title string
	Text  string
}

type Service struct{ tools.Base }

func New(base tools.Base) *Service { return &Service{Base: base} }

func (s *Service) Summarize(ctx context.Context, url, title, text string) (Notes, error) {
	if strings.TrimSpace(text) == "" {
		return Notes{Title: title, KeyPoints: []string{}, Tags: []string{}}, nil
	}
	raw, err := s.Ask(ctx, Name, promptData{URL: url, Title: title, Text: llm.Clip(text)})
	if err != nil {
		return Notes{}, err
	}
	return Parse(raw, title), nil
}

// Parse reads the model's JSON notes. A reply that is not an object keeps
// the page title and uses the raw reply as the summary.
func Parse(raw, pageTitle string) Notes {
	var m map[string]any
	if err := llm.DecodeJSON(raw, &m); err != nil || m == nil {
		return Notes{Title: pageTitle, Summary: strings.TrimSpace(raw), KeyPoints: []string{}, Tags: []string{}}
	}
	n := Notes{
		Title:     llm.Truncate(tools.Str(m["title"]), 300),
		Summary:   tools.Str(m["summary"]),
		KeyPoints: capList(tools.StrList(m["key_points"]), 12, 300),
		Tags:      capList(tools.StrList(m["tags"]), 10, 40),
	}
	if n.Title == "" {
		n.Title = pageTitle
	}
	return n
}

func capList(in []string, max, width int) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if len(out) == max {
			break
		}
		out = append(out, llm.Truncate(s, width))
	}
	return out
}
