package timeline

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/yungbote/scoolish-backend/internal/platform/llm"
	"github.com/yungbote/scoolish-backend/internal/tools"
)

const (
	Name       = "timeline"
	maxEvents  = 40
	maxContent = 24000
	unknownYr  = 1_000_000_000
)

var leadingYear = regexp.MustCompile(`^\s*(\d{1,4})`)

type Event struct {
	Date        string `json:"date"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type Result struct {
	Timeline []Event `json:"timeline"`
}

type Service struct{ tools.Base }

func New(base tools.Base) *Service { return &Service{Base: base} }

func (s *Service) Name() string { return Name }

func (s *Service) Validate(req *tools.DocRequest) error {
	req.Method = strings.ToLower(strings.TrimSpace(req.Method))
	if req.Method == "" {
		req.Method = tools.MethodCategory
	}
	switch req.Method {
	case tools.MethodCategory:
		if req.Category = strings.TrimSpace(req.Category); req.Category == "" {
			return fmt.Errorf("%w: Missing category", tools.ErrInvalidRequest)
		}
	case tools.MethodText:
		if req.Text = strings.TrimSpace(req.Text); req.Text == "" {
			return fmt.Errorf("%w: Missing text", tools.ErrInvalidRequest)
		}
	case tools.MethodDocument:
		if strings.TrimSpace(req.FileID) == "" && strings.TrimSpace(req.Filename) == "" {
			return fmt.Errorf("%w: Missing filename for document", tools.ErrInvalidRequest)
		}
	default:
		return fmt.Errorf("%w: Invalid method", tools.ErrInvalidRequest)
	}
	return nil
}

func (s *Service) Run(ctx context.Context, req tools.DocRequest) (any, error) {
	seed := strings.TrimSpace(req.Text)
	if req.Method == tools.MethodCategory {
		seed = "TOPIC: " + strings.TrimSpace(req.Category)
	}
	if strings.TrimSpace(strings.TrimPrefix(seed, "TOPIC:")) == "" {
		return Result{Timeline: []Event{}}, nil
	}
	raw, err := s.Ask(ctx, Name, tools.TextData{Text: llm.Truncate(seed, maxContent)})
	if err != nil {
		return nil, err
	}
	return Parse(raw), nil
}

// Parse keeps titled events, orders them by leading year (unknown years
// last) and caps the list at 40.
func Parse(raw string) Result {
	var m map[string]any
	_ = llm.DecodeJSON(raw, &m)
	out := []Event{}
	for _, e := range tools.Objects(m["timeline"]) {
		title := llm.Truncate(tools.Str(e["title"]), 140)
		if title == "" {
			continue
		}
		out = append(out, Event{
			Date:        llm.Truncate(tools.Str(e["date"]), 40),
			Title:       title,
			Description: tools.Str(e["description"]),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return Year(out[i].Date) < Year(out[j].Date) })
	if len(out) > maxEvents {
		out = out[:maxEvents]
	}
	return Result{Timeline: out}
}

// Year reads the leading 1-4 digit year of a date string.
func Year(date string) int {
	m := leadingYear.FindStringSubmatch(date)
	if m == nil {
		return unknownYr
	}
	y, err := strconv.Atoi(m[1])
	if err != nil {
		return unknownYr
	}
	return y
}
