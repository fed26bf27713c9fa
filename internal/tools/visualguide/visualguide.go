package visualguide

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/yungbote/scoolish-backend/internal/platform/llm"
	"github.com/yungbote/scoolish-backend/internal/tools"
)

const (
	Name       = "visual_guide"
	maxTopics  = 12
	maxContent = 24000
)

type Topic struct {
	Name        string   `json:"name"`
	StudyMethod string   `json:"study_method"`
	Time        *int     `json:"time"`
	Order       int      `json:"order"`
	Resources   []string `json:"resources"`
}

type Guide struct {
	Summary string  `json:"summary"`
	Topics  []Topic `json:"topics"`
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
		if c := strings.TrimSpace(req.Category); c != "" {
			seed = "TOPIC: " + c
		}
	}
	if seed == "" {
		return Guide{Topics: []Topic{}}, nil
	}
	raw, err := s.Ask(ctx, Name, tools.TextData{Text: llm.Truncate(seed, maxContent)})
	if err != nil {
		return nil, err
	}
	return Parse(raw), nil
}

// Parse normalizes the guide. Bare strings in topics become named topics,
// the first twelve are kept and they are ordered by their order field.
func Parse(raw string) Guide {
	var m map[string]any
	_ = llm.DecodeJSON(raw, &m)
	g := Guide{Summary: tools.Str(m["summary"]), Topics: []Topic{}}
	items, _ := m["topics"].([]any)
	for i, it := range items {
		pos := i + 1
		obj, ok := it.(map[string]any)
		if !ok {
			if name := llm.Truncate(tools.Str(it), 80); name != "" {
				g.Topics = append(g.Topics, Topic{Name: name, Order: pos})
			}
			continue
		}
		name := llm.Truncate(tools.Str(obj["name"]), 120)
		if name == "" {
			continue
		}
		t := Topic{
			Name:        name,
			StudyMethod: tools.Str(obj["study_method"]),
			Order:       tools.Int(obj["order"], pos),
		}
		if v, ok := obj["time"]; ok && v != nil {
			if mins := tools.Int(v, -1); mins >= 0 {
				t.Time = &mins
			}
		}
		for _, r := range tools.StrList(obj["resources"]) {
			if len(t.Resources) == 8 {
				break
			}
			t.Resources = append(t.Resources, llm.Truncate(r, 60))
		}
		g.Topics = append(g.Topics, t)
	}
	if len(g.Topics) > maxTopics {
		g.Topics = g.Topics[:maxTopics]
	}
	sort.SliceStable(g.Topics, func(i, j int) bool { return g.Topics[i].Order < g.Topics[j].Order })
	return g
}
