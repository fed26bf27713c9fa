package topics

import (
	"context"
	"sort"
	"strings"

	"github.com/yungbote/scoolish-backend/internal/platform/llm"
	"github.com/yungbote/scoolish-backend/internal/tools"
)

const (
	Name = "topics"
	topK = 8
)

type Topic struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
	Pages []int  `json:"pages"`
}

type PageTopics struct {
	Page   int      `json:"page"`
	Topics []string `json:"topics"`
}

type Service struct{ tools.Base }

func New(base tools.Base) *Service { return &Service{Base: base} }

func (s *Service) Name() string { return Name }

func (s *Service) AnalyzePage(ctx context.Context, in tools.PageInput) (any, error) {
	return s.Extract(ctx, in.Text)
}

func (s *Service) Extract(ctx context.Context, text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return []string{}, nil
	}
	raw, err := s.Ask(ctx, Name, tools.TextData{K: topK, Text: llm.Clip(text)})
	if err != nil {
		return nil, err
	}
	return ParseTopics(raw), nil
}

// ParseTopics reads a JSON string array, falling back to a comma or
// newline separated list.
func ParseTopics(raw string) []string {
	var arr []any
	if err := llm.DecodeJSON(raw, &arr); err == nil {
		out := []string{}
		for _, t := range tools.StrList(arr) {
			out = append(out, llm.Truncate(t, 80))
		}
		return out
	}
	out := []string{}
	for _, p := range strings.Split(strings.ReplaceAll(raw, "\n", ","), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
		if len(out) == topK {
			break
		}
	}
	return out
}

// Merge counts each topic (case-insensitive) across pages, most frequent
// first.
func Merge(perPage []PageTopics) []Topic {
	index := map[string]int{}
	out := []Topic{}
	for _, pp := range perPage {
		for _, t := range pp.Topics {
			k := strings.ToLower(strings.TrimSpace(t))
			if k == "" {
				continue
			}
			if i, ok := index[k]; ok {
				out[i].Count++
				out[i].Pages = tools.AddPage(out[i].Pages, pp.Page)
				continue
			}
			index[k] = len(out)
			out = append(out, Topic{Topic: strings.TrimSpace(t), Count: 1, Pages: []int{pp.Page}})
		}
	}
	for i := range out {
		sort.Ints(out[i].Pages)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Topic < out[j].Topic
	})
	return out
}

func (s *Service) Results(_ context.Context, fileID string, pages []tools.Page, _ tools.Options) (map[string]any, error) {
	stored := tools.DecodeStored[[]string](pages)
	perPage := make([]PageTopics, len(pages))
	for i, p := range pages {
		ts := stored[i]
		if ts == nil {
			ts = []string{}
		}
		perPage[i] = PageTopics{Page: p.Number, Topics: ts}
	}
	return map[string]any{
		"file_id":  fileID,
		"per_page": perPage,
		"topics":   Merge(perPage),
	}, nil
}
