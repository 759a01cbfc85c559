package affluence

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"golang.org/x/net/html"

	"github.com/me/affluence/pkg/session"
)

// BaseSource yields a candidate API base URL. An empty result means the
// source has no opinion.
type BaseSource func(ctx context.Context) (string, error)

// ResolveBaseURL returns the first non-empty base from sources, in order,
// with any trailing slash removed. Failing sources are logged and skipped.
// DefaultBaseURL is returned when no source yields a value.
func ResolveBaseURL(ctx context.Context, logger *slog.Logger, sources ...BaseSource) string {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	for i, src := range sources {
		if src == nil {
			continue
		}
		v, err := src(ctx)
		if err != nil {
			logger.Warn("api base source failed", "source", i, "error", err)
			continue
		}
		v = strings.TrimSpace(v)
		if v != "" {
			logger.Debug("api base resolved", "source", i, "base", v)
			return strings.TrimRight(v, "/")
		}
	}
	return DefaultBaseURL
}

// StaticSource returns a fixed override, e.g. from a flag or environment
// variable.
func StaticSource(v string) BaseSource {
	return func(context.Context) (string, error) {
		return v, nil
	}
}

// StoreSource reads the persisted override from the session store.
func StoreSource(m *session.Manager) BaseSource {
	return func(ctx context.Context) (string, error) {
		if m == nil {
			return "", nil
		}
		return m.StoredBaseURL(ctx)
	}
}

// MetaTagSource reads the content of <meta name="api-base"> from the HTML
// document returned by open.
func MetaTagSource(open func(ctx context.Context) (io.ReadCloser, error)) BaseSource {
	return func(ctx context.Context) (string, error) {
		rc, err := open(ctx)
		if err != nil {
			return "", err
		}
		defer rc.Close()
		return MetaContent(rc, "api-base")
	}
}

// MetaTagFile reads the api-base meta tag from an HTML file. An empty path
// disables the source.
func MetaTagFile(path string) BaseSource {
	if path == "" {
		return nil
	}
	return MetaTagSource(func(context.Context) (io.ReadCloser, error) {
		return os.Open(path)
	})
}

// MetaTagURL fetches an HTML page and reads its api-base meta tag.
func MetaTagURL(hc *http.Client, pageURL string) BaseSource {
	if pageURL == "" {
		return nil
	}
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	return MetaTagSource(func(ctx context.Context) (io.ReadCloser, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := hc.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("fetch %s: HTTP %d", pageURL, resp.StatusCode)
		}
		return resp.Body, nil
	})
}

// MetaTag picks MetaTagURL for http(s) locations and MetaTagFile otherwise.
func MetaTag(hc *http.Client, location string) BaseSource {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return MetaTagURL(hc, location)
	}
	return MetaTagFile(location)
}

// MetaContent returns the content attribute of the first <meta> element
// whose name equals name, or "" when there is none.
func MetaContent(r io.Reader, name string) (string, error) {
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return "", nil
			}
			return "", fmt.Errorf("parse html: %w", z.Err())
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.Data != "meta" {
				continue
			}
			var metaName, content string
			for _, a := range tok.Attr {
				switch strings.ToLower(a.Key) {
				case "name":
					metaName = a.Val
				case "content":
					content = a.Val
				}
			}
			if strings.EqualFold(metaName, name) && content != "" {
				return content, nil
			}
		}
	}
}
