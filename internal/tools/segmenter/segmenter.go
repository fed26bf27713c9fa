package segmenter

import (
	"context"
	"sort"
	"strings"

	"github.com/yungbote/scoolish-backend/internal/platform/llm"
	"github.com/yungbote/scoolish-backend/internal/tools"
)

// Name is the route name; the prompt is keyed as "segmenter".
const (
	Name        = "segments"
	maxSegments = 10
)

type Segment struct {
	Heading string   `json:"heading"`
	Level   int      `json:"level"`
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
}

type OutlineItem struct {
	Segment
	Pages []int `json:"pages"`
}

type PageSegments struct {
	Page     int       `json:"page"`
	Segments []Segment `json:"segments"`
}

type Service struct{ tools.Base }

func New(base tools.Base) *Service { return &Service{Base: base} }

func (s *Service) Name() string { return Name }

func (s *Service) AnalyzePage(ctx context.Context, in tools.PageInput) (any, error) {
	return s.Segment(ctx, in.Text)
}

func (s *Service) Segment(ctx context.Context, text string) ([]Segment, error) {
	if strings.TrimSpace(text) == "" {
		return []Segment{}, nil
	}
	raw, err := s.Ask(ctx, "segmenter", tools.TextData{K: maxSegments, Text: llm.Clip(text)})
	if err != nil {
		return nil, err
	}
	return ParseSegments(raw), nil
}

// ParseSegments reads a JSON array of segments, falling back to
// "heading: summary" lines at level 2.
func ParseSegments(raw string) []Segment {
	var arr []any
	if err := llm.DecodeJSON(raw, &arr); err == nil {
		out := []Segment{}
		for _, m := range tools.Objects(arr) {
			out = append(out, normalize(tools.Str(m["heading"]), tools.Int(m["level"], 2), tools.Str(m["summary"]), tools.StrList(m["tags"])))
		}
		return out
	}
	out := []Segment{}
	for _, line := range tools.Lines(raw) {
		heading, summary, _ := strings.Cut(line, ":")
		out = append(out, normalize(llm.Truncate(heading, 80), 2, llm.Truncate(summary, 300), nil))
	}
	return out
}

func normalize(heading string, level int, summary string, tags []string) Segment {
	clean := []string{}
	for _, t := range tags {
		if len(clean) == 5 {
			break
		}
		if t = llm.Truncate(t, 32); t != "" {
			clean = append(clean, t)
		}
	}
	return Segment{
		Heading: llm.Truncate(heading, 120),
		Level:   tools.Clamp(level, 1, 4),
		Summary: llm.Truncate(summary, 500),
		Tags:    clean,
	}
}

// Outline dedupes headings by (lowercase heading, level), keeping the first
// summary and collecting every page the heading appears on. Items are
// ordered by level, then first page.
func Outline(perPage []PageSegments) []OutlineItem {
	type key struct {
		heading string
		level   int
	}
	index := map[key]int{}
	out := []OutlineItem{}
	for _, pp := range perPage {
		for _, seg := range pp.Segments {
			k := key{strings.ToLower(strings.TrimSpace(seg.Heading)), seg.Level}
			if i, ok := index[k]; ok {
				out[i].Pages = tools.AddPage(out[i].Pages, pp.Page)
				continue
			}
			index[k] = len(out)
			out = append(out, OutlineItem{Segment: seg, Pages: []int{pp.Page}})
		}
	}
	for i := range out {
		sort.Ints(out[i].Pages)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level < out[j].Level
		}
		return out[i].Pages[0] < out[j].Pages[0]
	})
	return out
}

func (s *Service) Results(_ context.Context, fileID string, pages []tools.Page, _ tools.Options) (map[string]any, error) {
	stored := tools.DecodeStored[[]Segment](pages)
	perPage := make([]PageSegments, len(pages))
	for i, p := range pages {
		segs := stored[i]
		if segs == nil {
			segs = []Segment{}
		}
		perPage[i] = PageSegments{Page: p.Number, Segments: segs}
	}
	return map[string]any{
		"file_id":  fileID,
		"per_page": perPage,
		"outline":  Outline(perPage),
	}, nil
}
