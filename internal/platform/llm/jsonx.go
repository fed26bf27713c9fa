package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var ErrNoJSON = errors.New("reply contains no JSON")

// DecodeJSON parses a model reply into v. It accepts a bare JSON document,
// one wrapped in a markdown fence, or JSON embedded in prose (the outermost
// object or array span is used).
func DecodeJSON(raw string, v any) error {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ErrNoJSON
	}
	if json.Unmarshal([]byte(s), v) == nil {
		return nil
	}
	if fenced := stripFence(s); fenced != s {
		if json.Unmarshal([]byte(fenced), v) == nil {
			return nil
		}
		s = fenced
	}
	span := outerSpan(s)
	if span == "" {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(span), v); err != nil {
		return fmt.Errorf("%w: %v", ErrNoJSON, err)
	}
	return nil
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	body := s[3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	}
	body = strings.TrimSpace(body)
	body = strings.TrimSuffix(body, "```")
	return strings.TrimSpace(body)
}

func outerSpan(s string) string {
	obj := strings.IndexByte(s, '{')
	arr := strings.IndexByte(s, '[')
	open, closeCh := obj, byte('}')
	if obj < 0 || (arr >= 0 && arr < obj) {
		open, closeCh = arr, ']'
	}
	if open < 0 {
		return ""
	}
	end := strings.LastIndexByte(s, closeCh)
	if end <= open {
		return ""
	}
	return s[open : end+1]
}

// Truncate cuts s to at most n runes after trimming surrounding space.
func Truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n]))
}

// MaxPromptChars bounds the text placed into a single prompt.
const MaxPromptChars = 12000

// Clip trims document text to what a single prompt may carry.
func Clip(text string) string {
	if utf8.RuneCountInString(text) <= MaxPromptChars {
		return text
	}
	return string([]rune(text)[:MaxPromptChars])
}
