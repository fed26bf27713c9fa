package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/scoolish-backend/internal/platform/llm"
	"github.com/yungbote/scoolish-backend/internal/tools"
)

const Name = "summarizer"

type PageSummary struct {
	Summary string `json:"summary"`
}

type PageResult struct {
	Page    int    `json:"page"`
	Summary string `json:"summary"`
}

type Service struct{ tools.Base }

func New(base tools.Base) *Service { return &Service{Base: base} }

func (s *Service) Name() string { return Name }

func (s *Service) AnalyzePage(ctx context.Context, in tools.PageInput) (any, error) {
	sum, err := s.Summarize(ctx, in.Text)
	if err != nil {
		return nil, err
	}
	return PageSummary{Summary: sum}, nil
}

func (s *Service) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	return s.Ask(ctx, Name, tools.TextData{Text: llm.Clip(text)})
}

// TOC labels each section with the first 30 characters of its text.
func TOC(sections []string) []string {
	out := make([]string, len(sections))
	for i, sec := range sections {
		head := []rune(sec)
		if len(head) > 30 {
			head = head[:30]
		}
		out[i] = fmt.Sprintf("Section %d: %s...", i+1, string(head))
	}
	return out
}

func (s *Service) Results(_ context.Context, fileID string, pages []tools.Page, _ tools.Options) (map[string]any, error) {
	stored := tools.DecodeStored[PageSummary](pages)
	perPage := make([]PageResult, len(pages))
	texts := make([]string, len(pages))
	summaries := make([]string, len(pages))
	for i, p := range pages {
		perPage[i] = PageResult{Page: p.Number, Summary: stored[i].Summary}
		texts[i] = p.Text
		summaries[i] = stored[i].Summary
	}
	return map[string]any{
		"file_id":  fileID,
		"per_page": perPage,
		"toc":      TOC(texts),
		"summary":  summaries,
	}, nil
}
