package builder

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aj-en/mcp-sim/internal/render"
)

// Handler serves the site. Requests outside the base URL and unknown
// routes get the not-found page with status 404. A request for "/" is
// redirected to the base URL when the site doesn't live at the root.
func (b *Builder) Handler() http.Handler {
	base := b.cfg.BaseURL
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}

		p := r.URL.Path
		if base != "/" && (p == "/" || p+"/" == base) {
			http.Redirect(w, r, base, http.StatusFound)
			return
		}
		if !strings.HasPrefix(p, base) {
			b.servePage(w, r, http.StatusNotFound, b.notFound)
			return
		}

		route := normalizeRoute("/" + strings.TrimPrefix(p, base))
		if route == "" {
			route = "/"
		}
		if page, ok := b.pages[route]; ok {
			b.servePage(w, r, http.StatusOK, page)
			return
		}
		name := strings.TrimPrefix(route, "/")
		if data, ok := b.generated[name]; ok {
			http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(data))
			return
		}
		if b.exists(route) {
			http.ServeFileFS(w, r, b.static, name)
			return
		}
		b.servePage(w, r, http.StatusNotFound, b.notFound)
	})
}

func (b *Builder) servePage(w http.ResponseWriter, r *http.Request, status int, page render.Page) {
	ctx := render.WithLogger(r.Context(), b.logger.With(zap.String("path", r.URL.Path)))
	var buf bytes.Buffer
	if err := render.Render(ctx, &buf, b.site, page); err != nil {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := buf.WriteTo(w); err != nil {
		b.logger.Warn("write page", zap.String("path", r.URL.Path), zap.Error(err))
	}
}
