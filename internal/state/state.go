package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	stateFileName = "uploads.json"
	hashBytes     = 8192 // First 8KB for content hash
	maxEntries    = 100
)

// Entry records one successful upload. File contents are never stored.
type Entry struct {
	Hash       string    `json:"hash"`
	Name       string    `json:"name"`
	Items      int       `json:"items"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// History keeps the most recent successful uploads, newest last.
type History struct {
	path    string
	entries []Entry
	mu      sync.RWMutex
}

// NewHistory creates or loads history from XDG_STATE_HOME/pdfjson/
func NewHistory() (*History, error) {
	dir := getStateDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	h := &History{path: filepath.Join(dir, stateFileName)}
	if err := h.load(); err != nil {
		// Non-fatal - start with empty history
		h.entries = nil
	}
	return h, nil
}

// getStateDir returns XDG_STATE_HOME/pdfjson or ~/.local/state/pdfjson
func getStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "pdfjson")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", "pdfjson")
}

// ComputeHash generates a content hash for file identity
func ComputeHash(data []byte) string {
	if len(data) > hashBytes {
		data = data[:hashBytes]
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16]) // First 16 bytes = 32 hex chars
}

// Record appends an entry, replacing an older one with the same hash.
func (h *History) Record(e Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	kept := h.entries[:0]
	for _, old := range h.entries {
		if old.Hash != e.Hash {
			kept = append(kept, old)
		}
	}
	h.entries = append(kept, e)
	if len(h.entries) > maxEntries {
		h.entries = h.entries[len(h.entries)-maxEntries:]
	}
	return h.save()
}

// Last returns the most recent entry.
func (h *History) Last() (Entry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.entries) == 0 {
		return Entry{}, false
	}
	return h.entries[len(h.entries)-1], true
}

// Get returns the entry for a hash.
func (h *History) Get(hash string) (Entry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, e := range h.entries {
		if e.Hash == hash {
			return e, true
		}
	}
	return Entry{}, false
}

// Clear removes all entries
func (h *History) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
	return h.save()
}

func (h *History) load() error {
	data, err := os.ReadFile(h.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &h.entries)
}

func (h *History) save() error {
	data, err := json.MarshalIndent(h.entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(h.path, data, 0644)
}
