package mathviz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/scoolish-backend/internal/platform/llm"
	"github.com/yungbote/scoolish-backend/internal/tools"
)

const (
	Name                 = "math_visualizer"
	maxProblemChars      = 120000
	defaultPracticeCount = 3
)

var ErrNoJSON = errors.New("model did not return valid JSON")

var defaultVisualizeTypes = []string{"graph", "number_line", "geometry"}

type Step struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	Hint    string `json:"hint"`
	Detail  string `json:"detail"`
	Formula string `json:"formula"`
}

type Plot struct {
	X           []float64 `json:"x"`
	Y           []float64 `json:"y"`
	SeriesLabel string    `json:"series_label"`
	XLabel      string    `json:"x_label"`
	YLabel      string    `json:"y_label"`
}

type Diagram struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	SVG   string `json:"svg"`
	Plot  *Plot  `json:"plot"`
}

type Practice struct {
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Difficulty string `json:"difficulty"`
}

type Latex struct {
	Problem string `json:"problem"`
	Answer  string `json:"answer"`
}

type Solution struct {
	Problem        string         `json:"problem"`
	Interpretation string         `json:"interpretation"`
	FinalAnswer    string         `json:"final_answer"`
	Checks         []string       `json:"checks"`
	Formulas       []string       `json:"formulas"`
	Steps          []Step         `json:"steps"`
	Diagrams       []Diagram      `json:"diagrams"`
	Alternates     []string       `json:"alternates"`
	Practice       []Practice     `json:"practice"`
	Latex          Latex          `json:"latex"`
	Meta           map[string]any `json:"meta"`
}

type promptData struct {
	Text           string
	Level          string
	Difficulty     string
	ShowHints      bool
	PracticeCount  int
	VisualizeTypes []string
}

type Service struct{ tools.Base }

func New(base tools.Base) *Service { return &Service{Base: base} }

func (s *Service) Name() string { return Name }

// Validate accepts text (at least five characters) or a stored document
// and clamps practice_count to [0, 10].
func (s *Service) Validate(req *tools.DocRequest) error {
	req.Method = strings.ToLower(strings.TrimSpace(req.Method))
	switch req.Method {
	case tools.MethodText:
		if len([]rune(strings.TrimSpace(req.Text))) < 5 {
			return fmt.Errorf("%w: Provide a math problem (min 5 characters).", tools.ErrInvalidRequest)
		}
	case tools.MethodDocument:
		if strings.TrimSpace(req.FileID) == "" && strings.TrimSpace(req.Filename) == "" {
			return fmt.Errorf("%w: Please upload a document.", tools.ErrInvalidRequest)
		}
	default:
		return fmt.Errorf("%w: Invalid method. Use 'text' or 'document'.", tools.ErrInvalidRequest)
	}
	pc := defaultPracticeCount
	if req.PracticeCount != nil {
		pc = tools.Clamp(*req.PracticeCount, 0, 10)
	}
	req.PracticeCount = &pc
	return nil
}

func (s *Service) Run(ctx context.Context, req tools.DocRequest) (any, error) {
	return s.Solve(ctx, req)
}

func (s *Service) Solve(ctx context.Context, req tools.DocRequest) (Solution, error) {
	if err := s.Validate(&req); err != nil {
		return Solution{}, err
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return Solution{}, fmt.Errorf("%w: Could not extract text from the uploaded file.", tools.ErrInvalidRequest)
	}
	meta := map[string]any{"method": tools.MethodText, "length": len([]rune(text))}
	if req.Method == tools.MethodDocument {
		meta = map[string]any{"method": tools.MethodDocument, "filename": req.Filename}
	}

	data := promptData{
		Text:           llm.Truncate(text, maxProblemChars),
		Level:          orDefault(req.Level, "school"),
		Difficulty:     orDefault(req.Difficulty, "intermediate"),
		ShowHints:      req.ShowHints == nil || *req.ShowHints,
		PracticeCount:  *req.PracticeCount,
		VisualizeTypes: req.VisualizeTypes,
	}
	if len(data.VisualizeTypes) == 0 {
		data.VisualizeTypes = defaultVisualizeTypes
	}
	raw, err := s.Ask(ctx, Name, data)
	if err != nil {
		return Solution{}, err
	}
	var m map[string]any
	if err := llm.DecodeJSON(raw, &m); err != nil || m == nil {
		return Solution{}, ErrNoJSON
	}
	return Normalize(m, meta), nil
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}

func capList(v any, n int) []string {
	out := tools.StrList(v)
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func numbers(v any) []float64 {
	arr, _ := v.([]any)
	out := []float64{}
	for _, x := range arr {
		if f, ok := x.(float64); ok {
			out = append(out, f)
		}
	}
	return out
}

// Normalize coerces the model reply into a Solution with bounded lists.
// Diagrams keep a plot only when it carries numeric x or y values.
func Normalize(raw map[string]any, meta map[string]any) Solution {
	str := func(v any) string {
		s, _ := v.(string)
		return s
	}
	latex, _ := raw["latex"].(map[string]any)
	out := Solution{
		Problem:        str(raw["problem"]),
		Interpretation: str(raw["interpretation"]),
		FinalAnswer:    str(raw["final_answer"]),
		Checks:         capList(raw["checks"], 5),
		Formulas:       capList(raw["formulas"], 12),
		Steps:          []Step{},
		Diagrams:       []Diagram{},
		Alternates:     capList(raw["alternates"], 5),
		Practice:       []Practice{},
		Latex:          Latex{Problem: str(latex["problem"]), Answer: str(latex["answer"])},
		Meta:           meta,
	}
	for i, st := range tools.Objects(raw["steps"]) {
		pos := i + 1
		id := tools.Int(st["id"], pos)
		if id == 0 {
			id = pos
		}
		title := str(st["title"])
		if title == "" {
			title = fmt.Sprintf("Step %d", pos)
		}
		out.Steps = append(out.Steps, Step{
			ID:      id,
			Title:   title,
			Hint:    str(st["hint"]),
			Detail:  str(st["detail"]),
			Formula: str(st["formula"]),
		})
	}
	for _, d := range tools.Objects(raw["diagrams"]) {
		if len(out.Diagrams) == 6 {
			break
		}
		diag := Diagram{Type: str(d["type"]), Title: str(d["title"]), SVG: str(d["svg"])}
		plot, _ := d["plot"].(map[string]any)
		px, py := numbers(plot["x"]), numbers(plot["y"])
		if len(px) > 0 || len(py) > 0 {
			diag.Plot = &Plot{
				X:           px,
				Y:           py,
				SeriesLabel: str(plot["series_label"]),
				XLabel:      str(plot["x_label"]),
				YLabel:      str(plot["y_label"]),
			}
		}
		out.Diagrams = append(out.Diagrams, diag)
	}
	for _, p := range tools.Objects(raw["practice"]) {
		if len(out.Practice) == 10 {
			break
		}
		out.Practice = append(out.Practice, Practice{
			Question:   str(p["question"]),
			Answer:     str(p["answer"]),
			Difficulty: str(p["difficulty"]),
		})
	}
	return out
}
