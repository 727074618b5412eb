// Package preview turns generated markup into a standalone HTML document and serves it
// inside a sandbox.
package preview

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
)

// ContentSecurityPolicy makes the preview an opaque origin that may run scripts but cannot
// touch the host page's storage, submit forms, open popups or navigate the top frame.
const ContentSecurityPolicy = "sandbox allow-scripts"

// IframeSandbox is the sandbox attribute front-ends put on the embedding iframe.
const IframeSandbox = "allow-scripts"

const placeholder = "{{CODE}}"

const wrapper = `<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <style>
      body {
        font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, Cantarell, 'Open Sans', 'Helvetica Neue', sans-serif;
        margin: 0;
        padding: 20px;
        display: flex;
        justify-content: center;
        align-items: center;
        min-height: calc(100vh - 40px);
      }

      .preview-container {
        display: flex;
        flex-direction: column;
        align-items: center;
        justify-content: center;
        width: 100%;
      }
    </style>
  </head>
  <body>
    <div class="preview-container">
{{CODE}}
    </div>
  </body>
</html>
`

// IsFullDocument reports whether code already is a complete page: its first significant
// token is a doctype or an <html> element.
func IsFullDocument(code string) bool {
	z := html.NewTokenizer(strings.NewReader(code))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return false
		case html.CommentToken:
			continue
		case html.TextToken:
			if strings.TrimSpace(string(z.Text())) == "" {
				continue
			}
			return false
		case html.DoctypeToken:
			return true
		case html.StartTagToken:
			name, _ := z.TagName()
			return string(name) == "html"
		default:
			return false
		}
	}
}

// Document returns a self-contained page for code. Complete documents are returned as-is;
// fragments are centered inside the standard preview wrapper.
func Document(code string) string {
	if IsFullDocument(code) {
		return code
	}
	return strings.Replace(wrapper, placeholder, code, 1)
}

// Blank is the document shown while nothing has been generated.
func Blank() string {
	return Document("")
}

// WriteFile writes the preview document for code to path.
func WriteFile(path, code string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create preview dir: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(Document(code)), 0o644); err != nil {
		return fmt.Errorf("write preview: %w", err)
	}
	return nil
}

// SetHeaders applies the sandbox policy to a preview response.
func SetHeaders(h http.Header) {
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("Content-Security-Policy", ContentSecurityPolicy)
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Cache-Control", "no-store")
	h.Set("Referrer-Policy", "no-referrer")
}

// Handler serves the preview for whatever code returns at request time.
func Handler(code func() string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		SetHeaders(w.Header())
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write([]byte(Document(code())))
	})
}
