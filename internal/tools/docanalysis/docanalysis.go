package docanalysis

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/yungbote/scoolish-backend/internal/platform/llm"
	"github.com/yungbote/scoolish-backend/internal/tools"
)

const (
	Name        = "doc_analysis"
	tagTopK     = 8
	entityTopK  = 15
	topTagLimit = 30
	mindMapText = 24000
)

// EntityTypes are the accepted entity labels; anything else becomes MISC.
var EntityTypes = []string{"PERSON", "ORG", "GPE", "LOC", "DATE", "EVENT", "WORK", "PRODUCT", "LAW", "NORP", "MISC"}

var (
	wordRx    = regexp.MustCompile(`\w+`)
	longWord  = regexp.MustCompile(`[A-Za-z][A-Za-z\-]{5,}`)
	entitySet = func() map[string]bool {
		m := map[string]bool{}
		for _, t := range EntityTypes {
			m[t] = true
		}
		return m
	}()
)

type Entity struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

type Length struct {
	Chars        int `json:"chars"`
	Words        int `json:"words"`
	ApproxTokens int `json:"approx_tokens"`
}

type Analysis struct {
	Tags     []string `json:"tags"`
	Entities []Entity `json:"entities"`
	Length   Length   `json:"length"`
}

type PageAnalysis struct {
	Page     int      `json:"page"`
	Analysis Analysis `json:"analysis"`
}

type Totals struct {
	Pages        int `json:"pages"`
	Words        int `json:"words"`
	Chars        int `json:"chars"`
	ApproxTokens int `json:"approx_tokens"`
}

type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
	Pages []int  `json:"pages"`
}

type EntityCount struct {
	Text  string `json:"text"`
	Type  string `json:"type"`
	Count int    `json:"count"`
	Pages []int  `json:"pages"`
}

type Summary struct {
	Totals         Totals                   `json:"totals"`
	TopTags        []TagCount               `json:"top_tags"`
	EntitiesByType map[string][]EntityCount `json:"entities_by_type"`
}

type Node struct {
	ID string `json:"id"`
}

type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
}

type MindMap struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

type Service struct{ tools.Base }

func New(base tools.Base) *Service { return &Service{Base: base} }

func (s *Service) Name() string { return Name }

func (s *Service) AnalyzePage(ctx context.Context, in tools.PageInput) (any, error) {
	return s.Analyze(ctx, in.Text)
}

// Measure counts characters, \w+ words and an approximate token count
// (words * 1.33).
func Measure(text string) Length {
	words := len(wordRx.FindAllStringIndex(text, -1))
	return Length{
		Chars:        len([]rune(text)),
		Words:        words,
		ApproxTokens: int(float64(words) * 1.33),
	}
}

func (s *Service) Analyze(ctx context.Context, text string) (Analysis, error) {
	if strings.TrimSpace(text) == "" {
		return Analysis{Tags: []string{}, Entities: []Entity{}}, nil
	}
	raw, err := s.Ask(ctx, Name, tools.TextData{K: tagTopK, K2: entityTopK, Text: llm.Clip(text)})
	if err != nil {
		return Analysis{}, err
	}
	return Parse(raw, text), nil
}

// Parse reads {tags, entities}. When the reply is not a JSON object, tags
// fall back to the most frequent words of six or more letters in text.
func Parse(raw, text string) Analysis {
	a := Analysis{Tags: []string{}, Entities: []Entity{}, Length: Measure(text)}
	var m map[string]any
	if err := llm.DecodeJSON(raw, &m); err != nil || m == nil {
		a.Tags = frequentWords(text, tagTopK)
		return a
	}
	for _, t := range tools.StrList(m["tags"]) {
		if len(a.Tags) == tagTopK {
			break
		}
		a.Tags = append(a.Tags, llm.Truncate(t, 32))
	}
	for _, e := range tools.Objects(m["entities"]) {
		if len(a.Entities) == entityTopK {
			break
		}
		txt := tools.Str(e["text"])
		if txt == "" {
			continue
		}
		ty := strings.ToUpper(tools.Str(e["type"]))
		if !entitySet[ty] {
			ty = "MISC"
		}
		a.Entities = append(a.Entities, Entity{Text: llm.Truncate(txt, 120), Type: ty})
	}
	return a
}

func frequentWords(text string, k int) []string {
	freq := map[string]int{}
	order := []string{}
	for _, w := range longWord.FindAllString(text, -1) {
		w = strings.ToLower(w)
		if freq[w] == 0 {
			order = append(order, w)
		}
		freq[w]++
	}
	sort.SliceStable(order, func(i, j int) bool { return freq[order[i]] > freq[order[j]] })
	if len(order) > k {
		order = order[:k]
	}
	return order
}

// Aggregate sums page lengths, counts tags and groups entities by type.
func Aggregate(perPage []PageAnalysis) Summary {
	sum := Summary{Totals: Totals{Pages: len(perPage)}, EntitiesByType: map[string][]EntityCount{}}
	tagIdx := map[string]int{}
	tags := []TagCount{}
	type ekey struct{ typ, text string }
	entIdx := map[ekey]int{}
	ents := []EntityCount{}

	for _, pp := range perPage {
		a := pp.Analysis
		sum.Totals.Words += a.Length.Words
		sum.Totals.Chars += a.Length.Chars
		sum.Totals.ApproxTokens += a.Length.ApproxTokens

		for _, t := range a.Tags {
			k := strings.ToLower(t)
			if i, ok := tagIdx[k]; ok {
				tags[i].Count++
				tags[i].Pages = tools.AddPage(tags[i].Pages, pp.Page)
				continue
			}
			tagIdx[k] = len(tags)
			tags = append(tags, TagCount{Tag: t, Count: 1, Pages: []int{pp.Page}})
		}
		for _, e := range a.Entities {
			ty := strings.ToUpper(e.Type)
			if ty == "" {
				ty = "MISC"
			}
			k := ekey{ty, strings.ToLower(e.Text)}
			if i, ok := entIdx[k]; ok {
				ents[i].Count++
				ents[i].Pages = tools.AddPage(ents[i].Pages, pp.Page)
				continue
			}
			entIdx[k] = len(ents)
			ents = append(ents, EntityCount{Text: e.Text, Type: ty, Count: 1, Pages: []int{pp.Page}})
		}
	}

	sort.SliceStable(tags, func(i, j int) bool {
		if tags[i].Count != tags[j].Count {
			return tags[i].Count > tags[j].Count
		}
		return tags[i].Tag < tags[j].Tag
	})
	if len(tags) > topTagLimit {
		tags = tags[:topTagLimit]
	}
	sum.TopTags = tags

	for _, e := range ents {
		sum.EntitiesByType[e.Type] = append(sum.EntitiesByType[e.Type], e)
	}
	for ty, list := range sum.EntitiesByType {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].Count != list[j].Count {
				return list[i].Count > list[j].Count
			}
			return list[i].Text < list[j].Text
		})
		sum.EntitiesByType[ty] = list
	}
	return sum
}

// BuildMindMap asks for a topic graph over the whole document.
func (s *Service) BuildMindMap(ctx context.Context, fullText string) (MindMap, error) {
	if strings.TrimSpace(fullText) == "" {
		return MindMap{Nodes: []Node{}, Edges: []Edge{}}, nil
	}
	raw, err := s.Ask(ctx, "doc_mind_map", tools.TextData{Text: llm.Truncate(fullText, mindMapText)})
	if err != nil {
		return MindMap{}, err
	}
	return ParseMindMap(raw), nil
}

// ParseMindMap accepts nodes as objects with an id or as bare strings, and
// edges with a source and target. At most 20 nodes and 30 edges are kept.
func ParseMindMap(raw string) MindMap {
	mm := MindMap{Nodes: []Node{}, Edges: []Edge{}}
	var m map[string]any
	if err := llm.DecodeJSON(raw, &m); err != nil || m == nil {
		return mm
	}
	nodes, _ := m["nodes"].([]any)
	for _, n := range nodes {
		if len(mm.Nodes) == 20 {
			break
		}
		var id string
		switch x := n.(type) {
		case map[string]any:
			id = tools.Str(x["id"])
		case string:
			id = strings.TrimSpace(x)
		}
		if id != "" {
			mm.Nodes = append(mm.Nodes, Node{ID: llm.Truncate(id, 64)})
		}
	}
	for _, e := range tools.Objects(m["edges"]) {
		if len(mm.Edges) == 30 {
			break
		}
		src, dst := tools.Str(e["source"]), tools.Str(e["target"])
		if src == "" || dst == "" {
			continue
		}
		mm.Edges = append(mm.Edges, Edge{
			Source: llm.Truncate(src, 64),
			Target: llm.Truncate(dst, 64),
			Label:  llm.Truncate(tools.Str(e["label"]), 48),
		})
	}
	return mm
}

func (s *Service) Results(ctx context.Context, fileID string, pages []tools.Page, opts tools.Options) (map[string]any, error) {
	stored := tools.DecodeStored[Analysis](pages)
	perPage := make([]PageAnalysis, len(pages))
	texts := make([]string, len(pages))
	for i, p := range pages {
		a := stored[i]
		if len(p.Result) == 0 {
			a = Analysis{Tags: []string{}, Entities: []Entity{}, Length: Measure(p.Text)}
		}
		perPage[i] = PageAnalysis{Page: p.Number, Analysis: a}
		texts[i] = p.Text
	}
	out := map[string]any{
		"file_id":  fileID,
		"per_page": perPage,
		"doc":      Aggregate(perPage),
	}
	if opts.MindMap {
		mm, err := s.BuildMindMap(ctx, strings.Join(texts, " "))
		if err != nil {
			return nil, err
		}
		out["mind_map"] = mm
	}
	return out, nil
}
