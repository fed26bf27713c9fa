package tools

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

type namedTool struct{ name string }

func (n namedTool) Name() string { return n.name }
func (namedTool) AnalyzePage(context.Context, PageInput) (any, error) {
	return nil, nil
}
func (namedTool) Results(context.Context, string, []Page, Options) (map[string]any, error) {
	return nil, nil
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry(namedTool{"topics"}, namedTool{"quiz"}, nil)
	if _, err := r.Get("quiz"); err != nil {
		t.Fatalf("Get quiz: %v", err)
	}
	if _, err := r.Get("art"); !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("want ErrUnknownTool, got %v", err)
	}
	if got := r.Names(); !reflect.DeepEqual(got, []string{"topics", "quiz"}) {
		t.Fatalf("Names: %v", got)
	}
}

func TestCoercions(t *testing.T) {
	if Int("3", 0) != 3 || Int(2.9, 0) != 2 || Int("x", 7) != 7 || Int(nil, 5) != 5 {
		t.Fatalf("Int coercion mismatch")
	}
	if f, ok := Float("-0.5"); !ok || f != -0.5 {
		t.Fatalf("Float: %v %v", f, ok)
	}
	if _, ok := Float("nope"); ok {
		t.Fatalf("Float should reject text")
	}
	if got := StrList("solo"); !reflect.DeepEqual(got, []string{"solo"}) {
		t.Fatalf("StrList scalar: %v", got)
	}
	if got := StrList([]any{" a ", "", 3.0, nil}); !reflect.DeepEqual(got, []string{"a", "3"}) {
		t.Fatalf("StrList array: %v", got)
	}
	if got := Lines("- one\n\n* two \n•three"); !reflect.DeepEqual(got, []string{"one", "two", "three"}) {
		t.Fatalf("Lines: %v", got)
	}
}

func TestDecodeStoredSkipsMissing(t *testing.T) {
	pages := []Page{
		{Number: 1, Result: json.RawMessage(`["a","b"]`)},
		{Number: 2},
	}
	got := DecodeStored[[]string](pages)
	if len(got) != 2 || len(got[0]) != 2 || got[1] != nil {
		t.Fatalf("DecodeStored: %#v", got)
	}
}
