package sentiment

import (
	"context"
	"math"
	"strings"

	"github.com/yungbote/scoolish-backend/internal/platform/llm"
	"github.com/yungbote/scoolish-backend/internal/tools"
)

const Name = "sentiment"

// Labels in ascending polarity. Dominant-label ties go to the earlier one.
var Labels = []string{"very_negative", "negative", "neutral", "positive", "very_positive"}

type Result struct {
	Label     string  `json:"label"`
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale"`
}

type Summary struct {
	AvgScore      float64        `json:"avg_score"`
	LabelHist     map[string]int `json:"label_hist"`
	DominantLabel string         `json:"dominant_label"`
}

type PageSentiment struct {
	Page      int    `json:"page"`
	Sentiment Result `json:"sentiment"`
}

type Service struct{ tools.Base }

func New(base tools.Base) *Service { return &Service{Base: base} }

func (s *Service) Name() string { return Name }

func (s *Service) AnalyzePage(ctx context.Context, in tools.PageInput) (any, error) {
	return s.Analyze(ctx, in.Text)
}

func (s *Service) Analyze(ctx context.Context, text string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return neutral(""), nil
	}
	raw, err := s.Ask(ctx, Name, tools.TextData{Text: llm.Clip(text)})
	if err != nil {
		return Result{}, err
	}
	return Parse(raw), nil
}

func neutral(rationale string) Result {
	return Result{Label: "neutral", Score: 0, Rationale: rationale}
}

func validLabel(l string) bool {
	for _, x := range Labels {
		if x == l {
			return true
		}
	}
	return false
}

// Parse reads {label, score, rationale}. A reply that is not a JSON object
// becomes neutral with the raw text as rationale.
func Parse(raw string) Result {
	var m map[string]any
	if err := llm.DecodeJSON(raw, &m); err != nil || m == nil {
		return neutral(llm.Truncate(raw, 500))
	}
	label := tools.Str(m["label"])
	if !validLabel(label) {
		label = "neutral"
	}
	score, ok := tools.Float(m["score"])
	if !ok {
		score = 0
	}
	return Result{
		Label:     label,
		Score:     math.Max(-1, math.Min(1, score)),
		Rationale: llm.Truncate(tools.Str(m["rationale"]), 500),
	}
}

// Aggregate averages page scores and counts labels. Unknown labels count
// as neutral.
func Aggregate(perPage []PageSentiment) Summary {
	hist := make(map[string]int, len(Labels))
	for _, l := range Labels {
		hist[l] = 0
	}
	sum := 0.0
	for _, pp := range perPage {
		if validLabel(pp.Sentiment.Label) {
			hist[pp.Sentiment.Label]++
		} else {
			hist["neutral"]++
		}
		sum += pp.Sentiment.Score
	}
	avg := 0.0
	if len(perPage) > 0 {
		avg = sum / float64(len(perPage))
	}
	dominant, best := "neutral", -1
	for _, l := range Labels {
		if hist[l] > best {
			dominant, best = l, hist[l]
		}
	}
	return Summary{
		AvgScore:      math.Round(avg*10000) / 10000,
		LabelHist:     hist,
		DominantLabel: dominant,
	}
}

func (s *Service) Results(_ context.Context, fileID string, pages []tools.Page, _ tools.Options) (map[string]any, error) {
	perPage := make([]PageSentiment, len(pages))
	for i, p := range pages {
		r := neutral("")
		if len(p.Result) > 0 {
			r = tools.DecodeStored[Result](pages[i : i+1])[0]
		}
		perPage[i] = PageSentiment{Page: p.Number, Sentiment: r}
	}
	return map[string]any{
		"file_id":  fileID,
		"per_page": perPage,
		"doc":      Aggregate(perPage),
	}, nil
}
