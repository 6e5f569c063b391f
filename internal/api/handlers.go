package api

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/FocuswithJustin/JuniperReader/core/errors"
	"github.com/FocuswithJustin/JuniperReader/core/ref"
	"github.com/FocuswithJustin/JuniperReader/core/sqlite"
	"github.com/FocuswithJustin/JuniperReader/internal/annotations"
	"github.com/FocuswithJustin/JuniperReader/internal/illustration"
	"github.com/FocuswithJustin/JuniperReader/internal/server"
)

const (
	maxBodyBytes     = 64 << 10
	maxNoteRunes     = 2000
	maxTestimonyRune = 10000
)

var jsonTypes = []string{"application/json"}

// decodeJSON reads a JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if !server.ValidateContentType(r.Header.Get("Content-Type"), jsonTypes) {
		return errors.NewValidation("content_type", "request body must be JSON")
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &errors.ValidationError{Field: "body", Message: "malformed request body", Err: err}
	}
	return nil
}

func (s *Server) spreadView() SpreadView {
	return NewSpreadView(s.app.Navigator.Snapshot(), s.app.Notes)
}

// TurnResult answers navigate and jump requests. Started is false when the
// request was dropped because a page turn was already in progress.
type TurnResult struct {
	Started bool       `json:"started"`
	Spread  SpreadView `json:"spread"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"books":   s.app.Index.Len(),
		"clients": s.hub.ClientCount(),
		"sqlite":  sqlite.GetInfo(),
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	s.hub.serveWS(s.upgrader, w, r, Event{Type: EventSpread, Data: s.spreadView()})
}

func (s *Server) handleSpread(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, s.spreadView())
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	dir, err := ref.ParseDirection(r.URL.Query().Get("dir"))
	if err != nil || dir == ref.None {
		respondErr(w, errors.NewValidation("dir", "direction must be next or prev"))
		return
	}
	started, err := s.app.Navigator.Navigate(dir)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, TurnResult{Started: started, Spread: s.spreadView()})
}

// JumpRequest is the body of POST /api/jump.
type JumpRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleJump(w http.ResponseWriter, r *http.Request) {
	var req JumpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, err)
		return
	}
	query := server.LimitStringLength(server.SanitizeUserInput(req.Query), 200)
	started, err := s.app.Navigator.JumpTo(r.Context(), query)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, TurnResult{Started: started, Spread: s.spreadView()})
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	s.app.Navigator.DismissNotice()
	respond(w, http.StatusOK, s.spreadView())
}

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request) {
	books := bookViews(s.app.Index)
	respondMeta(w, http.StatusOK, books, len(books))
}

// NoteView is one saved note.
type NoteView struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	keys := s.app.Notes.Keys()
	notes := make([]NoteView, 0, len(keys))
	for _, k := range keys {
		notes = append(notes, NoteView{Key: k, Text: s.app.Notes.Get(k)})
	}
	respondMeta(w, http.StatusOK, notes, len(notes))
}

// noteKey validates the {key} path value against the corpus.
func (s *Server) noteKey(r *http.Request) (string, error) {
	key := r.PathValue("key")
	book, chapter, _, err := annotations.ParseKey(key)
	if err != nil {
		return "", err
	}
	if _, err := s.app.Index.Lookup(book, chapter); err != nil {
		return "", err
	}
	return key, nil
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	key, err := s.noteKey(r)
	if err != nil {
		respondErr(w, err)
		return
	}
	text := s.app.Notes.Get(key)
	if text == "" {
		respondErr(w, errors.NewNotFound("note", key))
		return
	}
	respond(w, http.StatusOK, NoteView{Key: key, Text: text})
}

// TextRequest is the body of note and testimony updates.
type TextRequest struct {
	Text string `json:"text"`
}

func (s *Server) handlePutNote(w http.ResponseWriter, r *http.Request) {
	key, err := s.noteKey(r)
	if err != nil {
		respondErr(w, err)
		return
	}
	var req TextRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, err)
		return
	}
	text := server.LimitStringLength(server.SanitizeUserInput(req.Text), maxNoteRunes)
	s.app.Notes.Set(r.Context(), key, text)
	s.broadcastSpread()
	respond(w, http.StatusOK, NoteView{Key: key, Text: s.app.Notes.Get(key)})
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	key, err := s.noteKey(r)
	if err != nil {
		respondErr(w, err)
		return
	}
	s.app.Notes.Delete(r.Context(), key)
	s.broadcastSpread()
	w.WriteHeader(http.StatusNoContent)
}

// broadcastSpread pushes the current spread so other clients see note
// changes.
func (s *Server) broadcastSpread() {
	s.hub.Broadcast(Event{Type: EventSpread, Data: s.spreadView()})
}

// IllustrationView describes the image shown for a chapter.
type IllustrationView struct {
	Key   string `json:"key"`
	Shown bool   `json:"shown"`
	MIME  string `json:"mime,omitempty"`
	ETag  string `json:"etag,omitempty"`
	URL   string `json:"url,omitempty"`
}

// NewIllustrationView describes img as shown for key. img may be nil.
func NewIllustrationView(key string, img *illustration.Image) IllustrationView {
	v := IllustrationView{Key: key}
	if img != nil {
		v.Shown = true
		v.MIME = img.MIME
		v.ETag = img.ETag
		v.URL = "/api/illustration/" + url.PathEscape(key)
	}
	return v
}

func (s *Server) handleIllustrate(w http.ResponseWriter, r *http.Request) {
	img, shown, err := s.app.Illustrate(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	v := NewIllustrationView(img.Key, img)
	v.Shown = shown
	respond(w, http.StatusOK, v)
}

func (s *Server) handleIllustrationImage(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	img, ok := s.app.Illustrations.Peek(key)
	if !ok {
		respondErr(w, errors.NewNotFound("illustration", key))
		return
	}
	w.Header().Set("ETag", img.ETag)
	w.Header().Set("Cache-Control", "private, max-age=86400")
	if r.Header.Get("If-None-Match") == img.ETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", img.MIME)
	w.WriteHeader(http.StatusOK)
	w.Write(img.Data)
}

func (s *Server) handleNarrationState(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, s.app.Narration.State())
}

func (s *Server) handleNarration(w http.ResponseWriter, r *http.Request) {
	var err error
	switch action := r.PathValue("action"); action {
	case "play":
		err = s.app.NarrateCurrent()
	case "pause":
		err = s.app.Narration.Pause()
	case "resume":
		err = s.app.Narration.Resume()
	case "stop":
		s.app.Narration.Cancel()
	default:
		err = &errors.ValidationError{Field: "action", Value: action, Message: "unknown narration action"}
	}
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, s.app.Narration.State())
}

func (s *Server) handleGetTestimony(w http.ResponseWriter, r *http.Request) {
	text, err := s.app.Notes.Testimony(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, TextRequest{Text: text})
}

func (s *Server) handlePutTestimony(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, err)
		return
	}
	text := server.LimitStringLength(server.SanitizeUserInput(req.Text), maxTestimonyRune)
	if err := s.app.Notes.SaveTestimony(r.Context(), text); err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, TextRequest{Text: text})
}
