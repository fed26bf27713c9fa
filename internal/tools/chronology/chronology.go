package chronology

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/yungbote/scoolish-backend/internal/platform/llm"
	"github.com/yungbote/scoolish-backend/internal/tools"
)

const (
	Name        = "chronology"
	eventsPerPg = 10
)

var (
	dateRx      = regexp.MustCompile(`^\d{4}(-\d{2}){0,2}$`)
	leadingDate = regexp.MustCompile(`^(\d{4}(?:-\d{2}){0,2})\s*(.+)$`)
)

// Event is one dated (or undated) happening on a page. Date is nil when
// unknown or not ISO-shaped.
type Event struct {
	Date  *string `json:"date"`
	Title string  `json:"title"`
	Desc  string  `json:"desc"`
}

type MergedEvent struct {
	Event
	Pages []int `json:"pages"`
}

type Service struct{ tools.Base }

func New(base tools.Base) *Service { return &Service{Base: base} }

func (s *Service) Name() string { return Name }

func (s *Service) AnalyzePage(ctx context.Context, in tools.PageInput) (any, error) {
	return s.Extract(ctx, in.Text)
}

// Extract asks for up to ten events on one page of text.
func (s *Service) Extract(ctx context.Context, text string) ([]Event, error) {
	if strings.TrimSpace(text) == "" {
		return []Event{}, nil
	}
	raw, err := s.Ask(ctx, Name, tools.TextData{K: eventsPerPg, Text: llm.Clip(text)})
	if err != nil {
		return nil, err
	}
	return ParseEvents(raw), nil
}

// ParseEvents reads a JSON array of events, falling back to "title: desc"
// lines with an optional leading date.
func ParseEvents(raw string) []Event {
	var arr []any
	if err := llm.DecodeJSON(raw, &arr); err == nil {
		out := []Event{}
		for _, m := range tools.Objects(arr) {
			out = append(out, normalize(m["date"], tools.Str(m["title"]), tools.Str(m["desc"])))
		}
		return out
	}

	out := []Event{}
	for _, line := range tools.Lines(raw) {
		title, desc, _ := strings.Cut(line, ":")
		title = llm.Truncate(title, 120)
		desc = llm.Truncate(desc, 240)
		var date any
		if m := leadingDate.FindStringSubmatch(title); m != nil {
			if dateRx.MatchString(m[1]) {
				date = m[1]
			}
			if rest := strings.TrimSpace(m[2]); rest != "" {
				title = rest
			}
		}
		out = append(out, normalize(date, title, desc))
	}
	return out
}

func normalize(date any, title, desc string) Event {
	ev := Event{Title: llm.Truncate(title, 160), Desc: llm.Truncate(desc, 400)}
	if d, ok := date.(string); ok {
		d = strings.TrimSpace(d)
		if dateRx.MatchString(d) {
			ev.Date = &d
		}
	}
	return ev
}

// PageEvents pairs a page number with its events.
type PageEvents struct {
	Page   int     `json:"page"`
	Events []Event `json:"events"`
}

// Merge dedupes events by (date, lowercase title) across pages and orders
// them by padded date, undated events last, then title.
func Merge(perPage []PageEvents) []MergedEvent {
	type key struct{ date, title string }
	index := map[key]int{}
	merged := []MergedEvent{}
	for _, pp := range perPage {
		for _, ev := range pp.Events {
			k := key{title: strings.ToLower(ev.Title)}
			if ev.Date != nil {
				k.date = *ev.Date
			}
			if i, ok := index[k]; ok {
				merged[i].Pages = tools.AddPage(merged[i].Pages, pp.Page)
				continue
			}
			index[k] = len(merged)
			merged = append(merged, MergedEvent{Event: ev, Pages: []int{pp.Page}})
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		a, b := sortKey(merged[i].Date), sortKey(merged[j].Date)
		if a != b {
			return a < b
		}
		return merged[i].Title < merged[j].Title
	})
	for i := range merged {
		sort.Ints(merged[i].Pages)
	}
	return merged
}

// sortKey pads a partial date to YYYYMMDD. A missing month counts as 12, a
// missing day as 31, and an undated or impossible date sorts last.
func sortKey(date *string) int {
	const last = 99999999
	if date == nil || *date == "" {
		return last
	}
	parts := strings.Split(*date, "-")
	y, _ := strconv.Atoi(parts[0])
	m, d := 12, 31
	if len(parts) > 1 {
		m, _ = strconv.Atoi(parts[1])
	}
	if len(parts) > 2 {
		d, _ = strconv.Atoi(parts[2])
	}
	if y < 1 || m < 1 || m > 12 || d < 1 || d > 31 {
		return last
	}
	return y*10000 + m*100 + d
}

func (s *Service) Results(_ context.Context, fileID string, pages []tools.Page, _ tools.Options) (map[string]any, error) {
	stored := tools.DecodeStored[[]Event](pages)
	perPage := make([]PageEvents, len(pages))
	for i, p := range pages {
		evs := stored[i]
		if evs == nil {
			evs = []Event{}
		}
		perPage[i] = PageEvents{Page: p.Number, Events: evs}
	}
	return map[string]any{
		"file_id":  fileID,
		"per_page": perPage,
		"merged":   Merge(perPage),
	}, nil
}
