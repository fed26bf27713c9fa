package gcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"

	"github.com/yungbote/scoolish-backend/internal/platform/ctxutil"
	"github.com/yungbote/scoolish-backend/internal/platform/envutil"
	"github.com/yungbote/scoolish-backend/internal/platform/logger"
)

// Document runs a Document AI OCR processor over raw bytes and returns one
// text per page. It is the fallback for scanned PDFs with no text layer.
type Document interface {
	OCRPages(ctx context.Context, data []byte, mimeType string) ([]string, error)
	Close() error
}

type DocumentConfig struct {
	ProjectID        string
	Location         string
	ProcessorID      string
	ProcessorVersion string
}

// DocumentConfigFromEnv reports ok=false when no processor is configured.
func DocumentConfigFromEnv() (DocumentConfig, bool) {
	cfg := DocumentConfig{
		ProjectID:        envutil.String("DOCUMENTAI_PROJECT_ID", ""),
		Location:         envutil.String("DOCUMENTAI_LOCATION", "us"),
		ProcessorID:      envutil.String("DOCUMENTAI_PROCESSOR_ID", ""),
		ProcessorVersion: envutil.String("DOCUMENTAI_PROCESSOR_VERSION", ""),
	}
	return cfg, cfg.ProjectID != "" && cfg.ProcessorID != ""
}

func (c DocumentConfig) ProcessorName() string {
	name := fmt.Sprintf("projects/%s/locations/%s/processors/%s", c.ProjectID, c.Location, c.ProcessorID)
	if strings.TrimSpace(c.ProcessorVersion) != "" {
		name += "/processorVersions/" + c.ProcessorVersion
	}
	return name
}

type documentService struct {
	log        *logger.Logger
	client     *documentai.DocumentProcessorClient
	cfg        DocumentConfig
	maxRetries int
}

func NewDocument(log *logger.Logger, cfg DocumentConfig) (Document, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)
	opts := append([]option.ClientOption{option.WithEndpoint(endpoint)}, ClientOptionsFromEnv()...)
	c, err := documentai.NewDocumentProcessorClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("documentai client: %w", err)
	}
	slog := log.With("service", "gcp.Document")
	slog.Info("Document AI initialized", "endpoint", endpoint, "processor", cfg.ProcessorName())
	return &documentService{log: slog, client: c, cfg: cfg, maxRetries: 3}, nil
}

func (s *documentService) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *documentService) OCRPages(ctx context.Context, data []byte, mimeType string) ([]string, error) {
	if len(data) == 0 {
		return []string{}, nil
	}
	if mimeType == "" {
		mimeType = "application/pdf"
	}
	ctx = ctxutil.Default(ctx)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	req := &documentaipb.ProcessRequest{
		Name: s.cfg.ProcessorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{Content: data, MimeType: mimeType},
		},
	}
	resp, err := retryTransient(ctx, s.maxRetries, func() (*documentaipb.ProcessResponse, error) {
		return s.client.ProcessDocument(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("documentai ProcessDocument: %w", err)
	}
	if resp == nil {
		return []string{}, nil
	}
	return documentPages(resp.Document), nil
}

// documentPages joins each page's paragraphs. When the processor returned
// text without page layout the whole text becomes a single page.
func documentPages(doc *documentaipb.Document) []string {
	if doc == nil {
		return []string{}
	}
	out := make([]string, 0, len(doc.Pages))
	for _, p := range doc.Pages {
		if p == nil {
			continue
		}
		var b strings.Builder
		for _, para := range p.Paragraphs {
			if para == nil || para.Layout == nil {
				continue
			}
			if t := strings.TrimSpace(textFromAnchor(doc.Text, para.Layout.TextAnchor)); t != "" {
				b.WriteString(t)
				b.WriteString("\n")
			}
		}
		out = append(out, strings.TrimSpace(b.String()))
	}
	if len(out) == 0 && strings.TrimSpace(doc.Text) != "" {
		out = append(out, strings.TrimSpace(doc.Text))
	}
	return out
}

func textFromAnchor(full string, anchor *documentaipb.Document_TextAnchor) string {
	if anchor == nil || len(anchor.TextSegments) == 0 || full == "" {
		return ""
	}
	var b strings.Builder
	for _, seg := range anchor.TextSegments {
		if seg == nil {
			continue
		}
		start := int(seg.StartIndex)
		end := int(seg.EndIndex)
		if start < 0 {
			start = 0
		}
		if end > len(full) {
			end = len(full)
		}
		if start >= end {
			continue
		}
		b.WriteString(full[start:end])
	}
	return b.String()
}
