// Package web serves the reader page: a server-rendered two-page spread
// that a small script keeps live over the API and WebSocket. Every action
// also works as a plain form post.
package web

import (
	"crypto/rand"
	"embed"
	"encoding/hex"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/FocuswithJustin/JuniperReader/core/nav"
	"github.com/FocuswithJustin/JuniperReader/core/ref"
	"github.com/FocuswithJustin/JuniperReader/internal/api"
	"github.com/FocuswithJustin/JuniperReader/internal/logging"
	"github.com/FocuswithJustin/JuniperReader/internal/narration"
	"github.com/FocuswithJustin/JuniperReader/internal/reader"
	"github.com/FocuswithJustin/JuniperReader/internal/server"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templateFuncs = template.FuncMap{
	"pageClass": func(transitioning bool, dir string) string {
		if !transitioning {
			return "spread"
		}
		return "spread turning turning-" + dir
	},
}

// Handler serves the reader page, its assets and the form fallbacks.
type Handler struct {
	app  *reader.App
	tmpl *template.Template
	log  *slog.Logger
	mux  *http.ServeMux
}

// New parses the embedded templates and builds the routes.
func New(app *reader.App) (*Handler, error) {
	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	h := &Handler{app: app, tmpl: tmpl, log: app.Log, mux: http.NewServeMux()}
	h.mux.HandleFunc("GET /{$}", h.handleIndex)
	h.mux.HandleFunc("GET /static/{name}", handleStatic)
	h.mux.HandleFunc("POST /turn", h.handleTurn)
	h.mux.HandleFunc("POST /jump", h.handleJump)
	h.mux.HandleFunc("POST /dismiss", h.handleDismiss)
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

type pageData struct {
	Title        string
	Spread       api.SpreadView
	Illustration api.IllustrationView
	Narration    narration.State
	CSRFToken    string
	Search       bool
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := h.app.Navigator.Snapshot()
	key, img := h.app.Display.Current()

	data := pageData{
		Title:        snap.Spread.Left.String(),
		Spread:       api.NewSpreadView(snap, h.app.Notes),
		Illustration: api.NewIllustrationView(key, img),
		Narration:    h.app.Narration.State(),
		CSRFToken:    getOrCreateCSRFToken(w, r),
		Search:       h.app.Assist != nil,
	}
	if snap.Spread.Right != nil {
		data.Title += " and " + snap.Spread.Right.String()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := h.tmpl.ExecuteTemplate(w, "reader.html", data); err != nil {
		h.log.Error("template rendering failed",
			"template", "reader.html",
			"error", err)
	}
}

// redirectHome sends the browser back to the page at the current spread.
func (h *Handler) redirectHome(w http.ResponseWriter, r *http.Request) {
	target := "/" + nav.Fragment(h.app.Navigator.State().Current)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) checkForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 4096)
	if err := r.ParseForm(); err != nil {
		httpError(w, h.log, err, http.StatusBadRequest)
		return false
	}
	if !validateCSRFToken(r) {
		logging.SecurityEvent("csrf_rejected", "web", "path", r.URL.Path)
		httpError(w, h.log, fmt.Errorf("csrf token mismatch"), http.StatusForbidden)
		return false
	}
	return true
}

func (h *Handler) handleTurn(w http.ResponseWriter, r *http.Request) {
	if !h.checkForm(w, r) {
		return
	}
	dir, err := ref.ParseDirection(r.FormValue("dir"))
	if err != nil {
		httpError(w, h.log, err, http.StatusBadRequest)
		return
	}
	// Failures surface as the navigator's notice on the next render.
	h.app.Navigator.Navigate(dir)
	h.redirectHome(w, r)
}

func (h *Handler) handleJump(w http.ResponseWriter, r *http.Request) {
	if !h.checkForm(w, r) {
		return
	}
	query := server.LimitStringLength(server.SanitizeUserInput(r.FormValue("q")), 200)
	h.app.Navigator.JumpTo(r.Context(), query)
	h.redirectHome(w, r)
}

func (h *Handler) handleDismiss(w http.ResponseWriter, r *http.Request) {
	if !h.checkForm(w, r) {
		return
	}
	h.app.Navigator.DismissNotice()
	h.redirectHome(w, r)
}

// httpError logs err with a short correlation ID and sends only the ID to
// the client.
func httpError(w http.ResponseWriter, log *slog.Logger, err error, statusCode int) {
	errID := generateErrorID()
	log.Warn("http_error",
		"error_id", errID,
		"status_code", statusCode,
		"error", err)
	http.Error(w, fmt.Sprintf("%s (ref: %s)", http.StatusText(statusCode), errID), statusCode)
}

func generateErrorID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(b)
}
