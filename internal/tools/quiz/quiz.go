package quiz

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/scoolish-backend/internal/platform/llm"
	"github.com/yungbote/scoolish-backend/internal/tools"
)

const (
	Name     = "quiz"
	DefaultN = 10
)

type Question struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	Explanation  string   `json:"explanation"`
}

type PageQuestions struct {
	Page      int        `json:"page"`
	Questions []Question `json:"questions"`
}

type Quiz struct {
	Title      string     `json:"title"`
	Difficulty string     `json:"difficulty"`
	Questions  []Question `json:"questions"`
}

type Service struct{ tools.Base }

func New(base tools.Base) *Service { return &Service{Base: base} }

func (s *Service) Name() string { return Name }

// Difficulty lowercases d and falls back to "medium" for unknown values.
func Difficulty(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	switch d {
	case "easy", "medium", "hard":
		return d
	}
	return "medium"
}

// PerPage spreads n questions over total pages: ceil(n/total) clamped to
// [1, 6].
func PerPage(n, total int) int {
	if n < 1 {
		n = 1
	}
	if total < 1 {
		total = 1
	}
	return tools.Clamp((n+total-1)/total, 1, 6)
}

func (s *Service) AnalyzePage(ctx context.Context, in tools.PageInput) (any, error) {
	n := in.Options.N
	if n <= 0 {
		n = DefaultN
	}
	return s.Generate(ctx, in.Text, PerPage(n, in.Total), in.Options.Difficulty)
}

// Generate asks for up to k multiple-choice questions on text.
func (s *Service) Generate(ctx context.Context, text string, k int, difficulty string) ([]Question, error) {
	if strings.TrimSpace(text) == "" {
		return []Question{}, nil
	}
	k = tools.Clamp(k, 1, 6)
	raw, err := s.Ask(ctx, Name, struct {
		K          int
		Difficulty string
		Text       string
	}{K: k, Difficulty: Difficulty(difficulty), Text: llm.Clip(text)})
	if err != nil {
		return nil, err
	}
	return ParseQuestions(raw, k), nil
}

// ParseQuestions reads a JSON array of questions. Without one, up to k
// reply lines become True/False/Not Given stubs.
func ParseQuestions(raw string, k int) []Question {
	var arr []any
	if err := llm.DecodeJSON(raw, &arr); err == nil {
		out := []Question{}
		for _, m := range tools.Objects(arr) {
			out = append(out, normalize(tools.Str(m["question"]), tools.StrList(m["options"]), tools.Int(m["correctIndex"], 0), tools.Str(m["explanation"])))
		}
		return out
	}
	out := []Question{}
	for _, line := range tools.Lines(raw) {
		if len(out) == k {
			break
		}
		out = append(out, normalize(line, []string{"True", "False", "Not Given"}, 0, ""))
	}
	return out
}

func normalize(q string, opts []string, correct int, explanation string) Question {
	if len(opts) < 2 {
		opts = []string{"True", "False"}
	}
	if len(opts) > 6 {
		opts = opts[:6]
	}
	return Question{
		Question:     llm.Truncate(q, 240),
		Options:      opts,
		CorrectIndex: tools.Clamp(correct, 0, len(opts)-1),
		Explanation:  llm.Truncate(explanation, 400),
	}
}

// Assemble flattens per-page questions, dropping repeats of the same
// question text, and keeps the first max(1, n).
func Assemble(fileID string, perPage []PageQuestions, n int, difficulty string) Quiz {
	if n < 1 {
		n = 1
	}
	seen := map[string]bool{}
	flat := []Question{}
	for _, pp := range perPage {
		for _, q := range pp.Questions {
			k := strings.ToLower(strings.TrimSpace(q.Question))
			if k == "" || seen[k] {
				continue
			}
			seen[k] = true
			flat = append(flat, q)
		}
	}
	if len(flat) > n {
		flat = flat[:n]
	}
	short := fileID
	if r := []rune(short); len(r) > 6 {
		short = string(r[:6])
	}
	return Quiz{
		Title:      fmt.Sprintf("Quiz from file %s…", short),
		Difficulty: Difficulty(difficulty),
		Questions:  flat,
	}
}

func (s *Service) Results(_ context.Context, fileID string, pages []tools.Page, opts tools.Options) (map[string]any, error) {
	n := opts.N
	if n <= 0 {
		n = DefaultN
	}
	stored := tools.DecodeStored[[]Question](pages)
	perPage := make([]PageQuestions, len(pages))
	for i, p := range pages {
		qs := stored[i]
		if qs == nil {
			qs = []Question{}
		}
		perPage[i] = PageQuestions{Page: p.Number, Questions: qs}
	}
	return map[string]any{
		"file_id":  fileID,
		"per_page": perPage,
		"quiz":     Assemble(fileID, perPage, n, opts.Difficulty),
	}, nil
}
