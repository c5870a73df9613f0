package media

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Handle is an addressable copy of user supplied bytes (or of a produced
// file). It stays valid until revoked; revoking removes the bytes.
type Handle struct {
	ID       string
	Name     string // user facing name, e.g. the original file name
	MimeType string
	Path     string
}

func (h *Handle) Ext() string {
	return strings.ToLower(filepath.Ext(h.Name))
}

type Handles struct {
	mu   sync.Mutex
	dir  string
	live map[string]*Handle
}

func NewHandles(dir string) (h *Handles, err error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err = os.MkdirAll(dir, 0755); err != nil {
		return
	}
	h = &Handles{dir: dir, live: make(map[string]*Handle)}
	return
}

// Create copies r into a fresh handle.
func (hs *Handles) Create(name, mime string, r io.Reader) (h *Handle, err error) {
	h = &Handle{
		ID:       uuid.NewString(),
		Name:     name,
		MimeType: mime,
	}
	h.Path = filepath.Join(hs.dir, h.ID+strings.ToLower(filepath.Ext(name)))

	f, err := os.Create(h.Path)
	if err != nil {
		return nil, err
	}
	if _, err = io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(h.Path)
		return nil, fmt.Errorf("copy %s: %w", name, err)
	}
	if err = f.Close(); err != nil {
		os.Remove(h.Path)
		return nil, err
	}

	hs.mu.Lock()
	hs.live[h.ID] = h
	hs.mu.Unlock()
	return
}

// Adopt registers an existing file, which is removed on revoke.
func (hs *Handles) Adopt(name, mime, path string) *Handle {
	h := &Handle{
		ID:       uuid.NewString(),
		Name:     name,
		MimeType: mime,
		Path:     path,
	}
	hs.mu.Lock()
	hs.live[h.ID] = h
	hs.mu.Unlock()
	return h
}

// Revoke releases h. Only the first call for a handle does anything.
func (hs *Handles) Revoke(h *Handle) bool {
	if h == nil {
		return false
	}
	hs.mu.Lock()
	_, ok := hs.live[h.ID]
	delete(hs.live, h.ID)
	hs.mu.Unlock()

	if !ok {
		return false
	}
	if err := os.Remove(h.Path); err != nil && !os.IsNotExist(err) {
		hs.Println("revoke", h.Name, err)
	}
	return true
}

func (hs *Handles) RevokeAll() (n int) {
	hs.mu.Lock()
	all := make([]*Handle, 0, len(hs.live))
	for _, h := range hs.live {
		all = append(all, h)
	}
	hs.mu.Unlock()

	for _, h := range all {
		if hs.Revoke(h) {
			n++
		}
	}
	return
}

func (hs *Handles) Live() int {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	return len(hs.live)
}

func (hs *Handles) Dir() string {
	return hs.dir
}

func (hs *Handles) Println(i ...interface{}) {
	log.Println("handles", i)
}
