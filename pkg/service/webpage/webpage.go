package webpage

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tedbrain/pkg/domain/interfaces"
	"github.com/secmon-lab/tedbrain/pkg/domain/model"
	"github.com/secmon-lab/tedbrain/pkg/utils/safe"
	"golang.org/x/net/html"
)

const (
	DefaultTimeout = 10 * time.Second
	DefaultMaxText = 5000

	maxBodyBytes = 5 << 20
	userAgent    = "Mozilla/5.0 (compatible; tedbrain/1.0)"
)

// Fetcher downloads a page and extracts its title, description and text
type Fetcher struct {
	client  *http.Client
	maxText int
}

var _ interfaces.PageFetcher = &Fetcher{}

type Option func(*Fetcher)

func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.client.Timeout = d
		}
	}
}

// WithMaxText sets how many characters of body text are kept
func WithMaxText(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxText = n
		}
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:  &http.Client{Timeout: DefaultTimeout},
		maxText: DefaultMaxText,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*model.WebPage, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, goerr.Wrap(model.ErrInvalidInput, "invalid URL", goerr.V("url", rawURL))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request", goerr.V("url", rawURL))
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch page", goerr.V("url", rawURL))
	}
	defer safe.Close(ctx, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, goerr.New("unexpected status code",
			goerr.V("url", rawURL), goerr.V("status", resp.StatusCode))
	}

	page, err := Parse(io.LimitReader(resp.Body, maxBodyBytes), f.maxText)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse page", goerr.V("url", rawURL))
	}
	page.URL = rawURL
	page.Domain = u.Host
	page.ExtractedAt = time.Now().UTC()
	return page, nil
}

// Parse extracts metadata from an HTML document. Text is whitespace
// collapsed and cut to maxText characters with a trailing "...".
func Parse(r io.Reader, maxText int) (*model.WebPage, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse html")
	}

	var (
		page          model.WebPage
		ogDescription string
		text          strings.Builder
	)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			case "title":
				if page.Title == "" && n.FirstChild != nil {
					page.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "meta":
				name := strings.ToLower(attr(n, "name"))
				property := strings.ToLower(attr(n, "property"))
				content := strings.TrimSpace(attr(n, "content"))
				switch {
				case name == "description" && page.Description == "":
					page.Description = content
				case property == "og:description" && ogDescription == "":
					ogDescription = content
				}
			}
		}
		if n.Type == html.TextNode && inBody(n) {
			if s := strings.Join(strings.Fields(n.Data), " "); s != "" {
				if text.Len() > 0 {
					text.WriteByte(' ')
				}
				text.WriteString(s)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if page.Description == "" {
		page.Description = ogDescription
	}
	page.Text = truncate(text.String(), maxText)
	return &page, nil
}

// EnrichedContent is the item content stored for a URL whose title and
// description could both be extracted
func EnrichedContent(page *model.WebPage) string {
	return "Title: " + page.Title + "\n\nDescription: " + page.Description + "\n\nURL: " + page.URL
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func inBody(n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == "body" {
			return true
		}
	}
	return false
}

func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}
