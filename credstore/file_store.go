package credstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

const sessionFileName = "session"

// FileStore keeps the session record in a single obfuscated file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore persisting to path. The parent directory
// is created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath returns the session file location under the user's
// configuration directory.
func DefaultPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "gradcert", sessionFileName), nil
}

// Set replaces the stored record. The write goes to a temporary file which
// is renamed into place, so a concurrent Get sees either the old record or
// the new one, never a partial write.
func (s *FileStore) Set(record Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.write(record)
}

// Get returns the stored record, or nil if absent or corrupt.
func (s *FileStore) Get() *Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Remove deletes the stored record. Idempotent.
func (s *FileStore) Remove() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", s.path).Msg("failed to remove session file")
	}
}

// UpdateTokens replaces the token pair, preserving the user profile.
func (s *FileStore) UpdateTokens(access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record := s.read()
	if record == nil {
		return
	}
	record.AccessToken = access
	record.RefreshToken = refresh
	s.write(*record)
}

// UpdateUser replaces the user profile, preserving the token pair.
func (s *FileStore) UpdateUser(user User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record := s.read()
	if record == nil {
		return
	}
	record.User = user
	s.write(*record)
}

// AccessToken returns the stored access token, or "".
func (s *FileStore) AccessToken() string {
	if record := s.Get(); record != nil {
		return record.AccessToken
	}
	return ""
}

// RefreshToken returns the stored refresh token, or "".
func (s *FileStore) RefreshToken() string {
	if record := s.Get(); record != nil {
		return record.RefreshToken
	}
	return ""
}

func (s *FileStore) read() *Record {
	encoded, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", s.path).Msg("failed to read session file")
		}
		return nil
	}
	decoded := Decode(string(encoded))
	if decoded == "" {
		return nil
	}
	var record Record
	if err := json.Unmarshal([]byte(decoded), &record); err != nil {
		return nil
	}
	return &record
}

func (s *FileStore) write(record Record) {
	data, err := json.Marshal(record)
	if err != nil {
		log.Warn().Err(err).Msg("failed to serialize session record")
		return
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("failed to create session directory")
		return
	}
	tmp, err := os.CreateTemp(dir, sessionFileName+".*")
	if err != nil {
		log.Warn().Err(err).Msg("failed to create temporary session file")
		return
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(Encode(string(data))); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		log.Warn().Err(err).Msg("failed to write session file")
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		log.Warn().Err(err).Msg("failed to close session file")
		return
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		log.Warn().Err(err).Msg("failed to restrict session file permissions")
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		log.Warn().Err(err).Str("path", s.path).Msg("failed to replace session file")
	}
}
