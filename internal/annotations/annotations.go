// Package annotations keeps per-verse notes and the reader's testimony in a
// key-value store.
//
// Notes live in memory and the whole map is written back as one JSON object
// after every change. Storage failures are logged and otherwise ignored:
// notes are a convenience, not a record.
package annotations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/maruel/natural"

	apperrors "github.com/FocuswithJustin/JuniperReader/core/errors"
	"github.com/FocuswithJustin/JuniperReader/internal/kvstore"
	"github.com/FocuswithJustin/JuniperReader/internal/logging"
)

// Storage keys.
const (
	NotesKey     = "bible-notes"
	TestimonyKey = "user_testimony"
)

// Store holds the annotation map.
type Store struct {
	kv  kvstore.Store
	log *slog.Logger

	mu    sync.RWMutex
	notes map[string]string
}

// Open loads the notes saved in kv. Missing or malformed data yields an
// empty map.
func Open(ctx context.Context, kv kvstore.Store, log *slog.Logger) *Store {
	if log == nil {
		log = logging.GetLogger()
	}
	s := &Store{kv: kv, log: log, notes: make(map[string]string)}

	raw, err := kv.Get(ctx, NotesKey)
	switch {
	case errors.Is(err, kvstore.ErrNotFound):
	case err != nil:
		logging.ExternalCallFailed(log, "storage", "load notes", err)
	default:
		if err := json.Unmarshal([]byte(raw), &s.notes); err != nil || s.notes == nil {
			log.Warn("discarding malformed notes", "error", err)
			s.notes = make(map[string]string)
		}
	}
	return s
}

// Key builds the "{book}-{chapter}-{verse}" key of a verse.
func Key(book string, chapter, verse int) string {
	return fmt.Sprintf("%s-%d-%d", book, chapter, verse)
}

// ParseKey splits a key built by Key. Book names may contain hyphens.
func ParseKey(key string) (book string, chapter, verse int, err error) {
	i := strings.LastIndexByte(key, '-')
	if i <= 0 {
		return "", 0, 0, apperrors.NewValidation("key", fmt.Sprintf("malformed note key %q", key))
	}
	j := strings.LastIndexByte(key[:i], '-')
	if j <= 0 {
		return "", 0, 0, apperrors.NewValidation("key", fmt.Sprintf("malformed note key %q", key))
	}
	chapter, err1 := strconv.Atoi(key[j+1 : i])
	verse, err2 := strconv.Atoi(key[i+1:])
	if err1 != nil || err2 != nil || chapter < 1 || verse < 1 {
		return "", 0, 0, apperrors.NewValidation("key", fmt.Sprintf("malformed note key %q", key))
	}
	return key[:j], chapter, verse, nil
}

// Get returns the note for key, or "" if there is none.
func (s *Store) Get(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notes[key]
}

// Set stores a note. Blank text deletes the note instead.
func (s *Store) Set(ctx context.Context, key, text string) {
	if strings.TrimSpace(text) == "" {
		s.Delete(ctx, key)
		return
	}

	s.mu.Lock()
	s.notes[key] = text
	data, err := json.Marshal(s.notes)
	s.mu.Unlock()

	s.persist(ctx, data, err)
}

// Delete removes a note. Deleting a missing note does nothing.
func (s *Store) Delete(ctx context.Context, key string) {
	s.mu.Lock()
	if _, ok := s.notes[key]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.notes, key)
	data, err := json.Marshal(s.notes)
	s.mu.Unlock()

	s.persist(ctx, data, err)
}

func (s *Store) persist(ctx context.Context, data []byte, err error) {
	if err == nil {
		err = s.kv.Set(ctx, NotesKey, string(data))
	}
	if err != nil {
		logging.ExternalCallFailed(s.log, "storage", "save notes", err)
	}
}

// All returns a copy of every note.
func (s *Store) All() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.notes))
	for k, v := range s.notes {
		out[k] = v
	}
	return out
}

// Keys returns the note keys in natural order ("Genesis-1-2" before
// "Genesis-1-10").
func (s *Store) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.notes))
	for k := range s.notes {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	sort.Sort(natural.StringSlice(keys))
	return keys
}

// Len returns the number of notes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notes)
}

// ForChapter returns the notes of one chapter keyed by verse number.
func (s *Store) ForChapter(book string, chapter int) map[int]string {
	prefix := fmt.Sprintf("%s-%d-", book, chapter)

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int]string)
	for k, v := range s.notes {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if b, c, verse, err := ParseKey(k); err == nil && b == book && c == chapter {
			out[verse] = v
		}
	}
	return out
}

// SaveTestimony stores the reader's testimony. Blank text is rejected.
func (s *Store) SaveTestimony(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return apperrors.NewValidation("testimony", "must not be empty")
	}
	if err := s.kv.Set(ctx, TestimonyKey, text); err != nil {
		return apperrors.NewExternal("storage", "save testimony", err)
	}
	return nil
}

// Testimony returns the saved testimony, or "" if none was saved.
func (s *Store) Testimony(ctx context.Context) (string, error) {
	text, err := s.kv.Get(ctx, TestimonyKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", apperrors.NewExternal("storage", "load testimony", err)
	}
	return text, nil
}
