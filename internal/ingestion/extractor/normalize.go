package extractor

import (
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const (
	KindPDF     = "pdf"
	KindDOCX    = "docx"
	KindText    = "text"
	KindAudio   = "audio"
	KindVideo   = "video"
	KindImage   = "image"
	KindUnknown = "unknown"
)

// DefaultPageChars is the target page size for sources with no native
// pagination.
const DefaultPageChars = 3000

func ClassifyKind(name, mime string) string {
	m := strings.ToLower(strings.TrimSpace(mime))
	ext := strings.ToLower(filepath.Ext(name))

	switch {
	case strings.HasPrefix(m, "video/") || ext == ".mp4" || ext == ".mov" || ext == ".avi":
		return KindVideo
	case strings.HasPrefix(m, "audio/") || ext == ".mp3" || ext == ".wav" || ext == ".m4a":
		return KindAudio
	case strings.HasPrefix(m, "image/") || ext == ".png" || ext == ".jpg" || ext == ".jpeg":
		return KindImage
	case m == "application/pdf" || ext == ".pdf":
		return KindPDF
	case ext == ".docx" || strings.Contains(m, "wordprocessingml"):
		return KindDOCX
	case strings.HasPrefix(m, "text/") || ext == ".txt":
		return KindText
	}
	return KindUnknown
}

/*
SplitPages cuts text into pages of roughly size characters. Breaks fall on
paragraph boundaries (blank lines); a single paragraph longer than size is
cut on the last whitespace before the limit, or hard-cut when it has none.
A hard cut never splits a rune and keeps at least one per page.
*/
func SplitPages(text string, size int) []string {
	if size <= 0 {
		size = DefaultPageChars
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var pages []string
	var cur strings.Builder
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			pages = append(pages, s)
		}
		cur.Reset()
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if cur.Len() > 0 && cur.Len()+2+len(para) > size {
			flush()
		}
		for len(para) > size {
			cut := strings.LastIndexAny(para[:size], " \n\t")
			if cut <= 0 {
				cut = size
				for cut > 0 && !utf8.RuneStart(para[cut]) {
					cut--
				}
				if cut == 0 {
					_, cut = utf8.DecodeRuneInString(para)
				}
			}
			if cur.Len() > 0 {
				flush()
			}
			pages = append(pages, strings.TrimSpace(para[:cut]))
			para = strings.TrimSpace(para[cut:])
		}
		if para == "" {
			continue
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(para)
	}
	flush()
	return pages
}

func normalizePages(in []string) []string {
	out := make([]string, len(in))
	for i, p := range in {
		out[i] = strings.TrimSpace(sanitizeUTF8(strings.ReplaceAll(p, "\x00", "")))
	}
	return out
}

func sanitizeUTF8(s string) string {
	if s == "" || utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, " ")
}
