package webfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/yungbote/scoolish-backend/internal/platform/envutil"
)

const defaultUserAgent = "ScoolishBot/1.0 (+https://scoolish.app)"

// Page is a fetched document reduced to what the scraper stores.
type Page struct {
	URL   string
	Title string
	HTML  []byte
	Text  string
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

type Client struct {
	http      *http.Client
	userAgent string
	maxBytes  int64
}

func New(hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: envutil.Duration("SCRAPER_TIMEOUT", 30*time.Second, time.Second)}
	}
	return &Client{
		http:      hc,
		userAgent: envutil.String("SCRAPER_UA", defaultUserAgent),
		maxBytes:  int64(envutil.Int("SCRAPER_MAX_BYTES", 5*1024*1024)),
	}
}

func (c *Client) Fetch(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("fetch %s returned %d: %s", url, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	title, text, err := Extract(strings.NewReader(string(raw)))
	if err != nil {
		return nil, err
	}
	return &Page{URL: url, Title: title, HTML: raw, Text: text}, nil
}

var skipped = map[string]bool{"script": true, "style": true, "noscript": true, "template": true}

var blocks = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "header": true, "footer": true,
}

// Extract returns the document title and its visible text, one line per
// block element.
func Extract(r io.Reader) (string, string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", "", fmt.Errorf("parse html: %w", err)
	}
	var title string
	var b strings.Builder
	var walk func(n *html.Node, inHead bool)
	walk = func(n *html.Node, inHead bool) {
		if n.Type == html.ElementNode {
			if skipped[n.Data] {
				return
			}
			if n.Data == "title" && title == "" && n.FirstChild != nil {
				title = strings.Join(strings.Fields(n.FirstChild.Data), " ")
				return
			}
			if n.Data == "head" {
				inHead = true
			}
		}
		if n.Type == html.TextNode && !inHead {
			if s := strings.Join(strings.Fields(n.Data), " "); s != "" {
				if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
					b.WriteByte(' ')
				}
				b.WriteString(s)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inHead)
		}
		if n.Type == html.ElementNode && blocks[n.Data] && b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteByte('\n')
		}
	}
	walk(doc, false)
	return title, strings.TrimSpace(b.String()), nil
}
