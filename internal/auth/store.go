package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	authFileName = "auth.json"
	filePerms    = 0600 // Owner read/write only
)

// ErrNotLoggedIn is returned when no cookie is stored for a server.
var ErrNotLoggedIn = errors.New("not logged in")

// Credential is the session cookie obtained by logging in to one server.
type Credential struct {
	Username string    `json:"username"`
	Cookie   string    `json:"cookie"`
	SavedAt  time.Time `json:"saved_at"`
}

// AuthData is the structure of auth.json
type AuthData struct {
	Version int                   `json:"version"`
	Servers map[string]Credential `json:"servers"`
}

// Store keeps login cookies per server URL.
type Store struct {
	mu       sync.RWMutex
	filePath string
	data     *AuthData
}

// NewStore creates a new credential store
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store := &Store{
		filePath: filepath.Join(dataDir, authFileName),
		data: &AuthData{
			Version: 1,
			Servers: make(map[string]Credential),
		},
	}

	if err := store.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load auth data: %w", err)
	}

	return store, nil
}

// serverKey normalizes a server URL so "http://host/" and "http://host" share
// one entry.
func serverKey(server string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(server), "/"))
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var authData AuthData
	if err := json.Unmarshal(data, &authData); err != nil {
		return fmt.Errorf("failed to parse auth file: %w", err)
	}
	// Servers is never nil, even for a hand-edited file.
	if authData.Servers == nil {
		authData.Servers = make(map[string]Credential)
	}

	s.data = &authData
	return nil
}

// save writes the auth file to disk with secure permissions
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal auth data: %w", err)
	}

	// Write to temp file first, then rename (atomic)
	tmpPath := s.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, filePerms); err != nil {
		return fmt.Errorf("failed to write auth file: %w", err)
	}

	if err := os.Rename(tmpPath, s.filePath); err != nil {
		_ = os.Remove(tmpPath) // Best-effort cleanup of temp file
		return fmt.Errorf("failed to save auth file: %w", err)
	}

	return nil
}

// Get returns the credential stored for server.
func (s *Store) Get(server string) (Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.data.Servers[serverKey(server)]
	if !ok || cred.Cookie == "" {
		return Credential{}, fmt.Errorf("%w to %s", ErrNotLoggedIn, server)
	}
	return cred, nil
}

// Cookie returns the stored cookie for server, or "" when there is none.
func (s *Store) Cookie(server string) string {
	cred, err := s.Get(server)
	if err != nil {
		return ""
	}
	return cred.Cookie
}

// Set stores the credential for server.
func (s *Store) Set(server string, cred Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cred.SavedAt.IsZero() {
		cred.SavedAt = time.Now().UTC()
	}
	s.data.Servers[serverKey(server)] = cred
	return s.save()
}

// Remove forgets the credential for server.
func (s *Store) Remove(server string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data.Servers, serverKey(server))
	return s.save()
}

// Servers returns every server with a stored credential, sorted.
func (s *Store) Servers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.data.Servers))
	for k := range s.data.Servers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
