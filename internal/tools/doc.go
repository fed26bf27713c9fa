package tools

import (
	"context"
	"errors"
)

// ErrInvalidRequest marks caller mistakes in a document tool request.
var ErrInvalidRequest = errors.New("invalid document tool request")

const (
	MethodCategory = "category"
	MethodText     = "text"
	MethodDocument = "document"
)

// DocRequest is the input of a single-shot document tool. For the
// document method, Text is filled from the stored pages before Run.
type DocRequest struct {
	Method   string `json:"method"`
	Category string `json:"category,omitempty"`
	Text     string `json:"text,omitempty"`
	FileID   string `json:"file_id,omitempty"`
	Filename string `json:"filename,omitempty"`

	Difficulty     string   `json:"difficulty,omitempty"`
	Level          string   `json:"level,omitempty"`
	ShowHints      *bool    `json:"show_hints,omitempty"`
	PracticeCount  *int     `json:"practice_count,omitempty"`
	VisualizeTypes []string `json:"visualize_types,omitempty"`
}

// DocTool turns a category, free text or a stored document into one JSON
// result.
type DocTool interface {
	Name() string
	// Validate normalizes req in place and rejects unusable input before a
	// job is queued.
	Validate(req *DocRequest) error
	Run(ctx context.Context, req DocRequest) (any, error)
}
