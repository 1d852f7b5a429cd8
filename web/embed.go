// Package web embeds the console's HTML templates and static assets.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"time"

	"github.com/ashureev/bot-console/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Page names accepted by Renderer.Render.
const (
	PageDashboard = "dashboard"
	PageLogs      = "logs"
	PageStats     = "stats"
	PageChat      = "chat"
	PageLogin     = "login"
)

// Page is the data every template renders from.
type Page struct {
	Title      string
	ActivePage string
	BotOnline  bool
	UserID     string

	Errors           []domain.ErrorLogRecord
	Stats            *domain.ErrorStats
	StoreUnavailable bool

	LoginError    string
	Username      string
	NeedsPassword bool
}

// Renderer executes the embedded page templates.
type Renderer struct {
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"timestamp": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.UTC().Format("2006-01-02 15:04:05 UTC")
	},
	"rawjson": func(b []byte) string { return string(b) },
}

// NewRenderer parses every page together with the shared layout.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, name := range []string{PageDashboard, PageLogs, PageStats, PageChat, PageLogin} {
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Render writes the named page. Output is buffered so a template error never
// leaves a half-written page.
func (r *Renderer) Render(w io.Writer, name string, page Page) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", page); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// StaticHandler serves the embedded assets. Mount it under /static/.
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic("web: failed to create sub filesystem: " + err.Error())
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}
