package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	types "github.com/yungbote/scoolish-backend/internal/domain"
	"github.com/yungbote/scoolish-backend/internal/platform/gcp"
	"github.com/yungbote/scoolish-backend/internal/platform/logger"
)

// ErrUnsupported is returned for uploads whose kind has no extraction path.
var ErrUnsupported = errors.New("unsupported file kind")

// Result is the page text produced for one upload.
type Result struct {
	Kind        string         `json:"kind"`
	Pages       []string       `json:"-"`
	Warnings    []string       `json:"warnings,omitempty"`
	Diagnostics map[string]any `json:"diagnostics,omitempty"`
}

/*
Extractor turns a stored upload into page texts.

Native parsing handles PDF, DOCX and plain text. Media goes to the Google
APIs: Speech-to-Text for audio, Video Intelligence for video and Vision
for images, all reading the object straight from the bucket. Document AI
is an optional OCR fallback for PDFs without a text layer. Any of the
Google clients may be nil, in which case that path reports ErrUnsupported
or skips the fallback.
*/
type Extractor struct {
	Log *logger.Logger

	Bucket  gcp.BucketService
	DocAI   gcp.Document
	Vision  gcp.Vision
	Speech  gcp.Speech
	VideoAI gcp.Video

	MaxBytesDownload int64
	PageChars        int
}

func New(log *logger.Logger, bucket gcp.BucketService, docai gcp.Document, vision gcp.Vision, speech gcp.Speech, videoAI gcp.Video) *Extractor {
	return &Extractor{
		Log:              log.With("component", "Extractor"),
		Bucket:           bucket,
		DocAI:            docai,
		Vision:           vision,
		Speech:           speech,
		VideoAI:          videoAI,
		MaxBytesDownload: 200 * 1024 * 1024,
		PageChars:        DefaultPageChars,
	}
}

func (e *Extractor) Extract(ctx context.Context, f *types.UploadedFile) (*Result, error) {
	kind := ClassifyKind(f.OriginalFileName, f.MimeType)
	res := &Result{Kind: kind, Diagnostics: map[string]any{"kind": kind}}

	switch kind {
	case KindAudio:
		return e.transcribe(ctx, f, res, e.Speech != nil, func(uri string) (string, error) {
			return e.Speech.TranscribeGCS(ctx, uri)
		})
	case KindVideo:
		return e.transcribe(ctx, f, res, e.VideoAI != nil, func(uri string) (string, error) {
			return e.VideoAI.TranscribeGCS(ctx, uri)
		})
	case KindUnknown:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, f.OriginalFileName)
	}

	data, err := e.download(ctx, f.FilePath)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindPDF:
		pages, err := PDFPages(data)
		if err != nil {
			res.Warnings = append(res.Warnings, "native pdf parse failed: "+err.Error())
			res.Diagnostics["pdf_error"] = err.Error()
		}
		if allBlank(pages) {
			pages = e.ocrFallback(ctx, data, res, len(pages))
		}
		res.Pages = pages
	case KindDOCX:
		text, err := DOCXText(data)
		if err != nil {
			return nil, fmt.Errorf("docx: %w", err)
		}
		res.Pages = SplitPages(text, e.pageChars())
	case KindText:
		res.Pages = SplitPages(sanitizeUTF8(string(data)), e.pageChars())
	case KindImage:
		if e.Vision == nil {
			return nil, fmt.Errorf("%w: image OCR is not configured", ErrUnsupported)
		}
		text, err := e.Vision.DetectText(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("vision: %w", err)
		}
		res.Pages = []string{strings.TrimSpace(text)}
	}

	res.Pages = normalizePages(res.Pages)
	res.Diagnostics["pages"] = len(res.Pages)
	return res, nil
}

func (e *Extractor) transcribe(ctx context.Context, f *types.UploadedFile, res *Result, ok bool, run func(uri string) (string, error)) (*Result, error) {
	if !ok || e.Bucket == nil {
		return nil, fmt.Errorf("%w: %s transcription is not configured", ErrUnsupported, res.Kind)
	}
	text, err := run(e.Bucket.URI(f.FilePath))
	if err != nil {
		return nil, fmt.Errorf("%s transcription: %w", res.Kind, err)
	}
	res.Pages = normalizePages(SplitPages(text, e.pageChars()))
	res.Diagnostics["pages"] = len(res.Pages)
	return res, nil
}

// ocrFallback runs Document AI when the PDF had no text layer. Without a
// configured processor the blank pages are kept and a warning recorded.
func (e *Extractor) ocrFallback(ctx context.Context, data []byte, res *Result, nativePages int) []string {
	blank := make([]string, nativePages)
	if e.DocAI == nil {
		res.Warnings = append(res.Warnings, "pdf has no text layer and Document AI is not configured")
		return blank
	}
	pages, err := e.DocAI.OCRPages(ctx, data, "application/pdf")
	if err != nil {
		e.Log.Warn("Document AI OCR failed", "error", err)
		res.Warnings = append(res.Warnings, "docai failed: "+err.Error())
		res.Diagnostics["docai_error"] = err.Error()
		return blank
	}
	res.Diagnostics["ocr"] = "docai"
	return pages
}

func (e *Extractor) download(ctx context.Context, key string) ([]byte, error) {
	if e.Bucket == nil {
		return nil, fmt.Errorf("bucket not configured")
	}
	rc, err := e.Bucket.Download(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", key, err)
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(rc, e.MaxBytesDownload)); err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return buf.Bytes(), nil
}

func (e *Extractor) pageChars() int {
	if e.PageChars <= 0 {
		return DefaultPageChars
	}
	return e.PageChars
}

func allBlank(pages []string) bool {
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			return false
		}
	}
	return true
}
