// Package memory provides an in-memory [authgate.UserStore] for tests and
// single-node deployments without durability requirements.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/authgate"
)

// Store implements [authgate.UserStore] with mutex-guarded maps. Safe for
// concurrent use. All data is lost on process exit.
type Store struct {
	mu          sync.RWMutex
	usersByID   map[string]authgate.UserRecord
	idByName    map[string]string
	credentials map[string]authgate.CredentialRecord
}

func New() *Store {
	return &Store{
		usersByID:   make(map[string]authgate.UserRecord),
		idByName:    make(map[string]string),
		credentials: make(map[string]authgate.CredentialRecord),
	}
}

func (s *Store) FindUser(_ context.Context, username string) (authgate.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.idByName[username]
	if !ok {
		return authgate.UserRecord{}, authgate.ErrUserNotFound
	}
	return s.usersByID[id], nil
}

func (s *Store) FindUserByID(_ context.Context, userID string) (authgate.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.usersByID[userID]
	if !ok {
		return authgate.UserRecord{}, authgate.ErrUserNotFound
	}
	return rec, nil
}

func (s *Store) CreateUser(_ context.Context, input authgate.CreateUserInput) (authgate.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.idByName[input.Username]; taken {
		return authgate.UserRecord{}, authgate.ErrUserExists
	}

	rec := authgate.UserRecord{
		UserID:       input.UserID,
		Username:     input.Username,
		DisplayName:  input.DisplayName,
		PasswordHash: input.PasswordHash,
		CreatedAt:    time.Now().UTC(),
	}
	s.usersByID[rec.UserID] = rec
	s.idByName[rec.Username] = rec.UserID

	return rec, nil
}

func (s *Store) UpdatePasswordHash(_ context.Context, userID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.usersByID[userID]
	if !ok {
		return authgate.ErrUserNotFound
	}
	rec.PasswordHash = passwordHash
	s.usersByID[userID] = rec

	return nil
}

func (s *Store) ListCredentials(_ context.Context, userID string) ([]authgate.CredentialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []authgate.CredentialRecord
	for _, cred := range s.credentials {
		if cred.UserID == userID {
			cred.Data = append([]byte(nil), cred.Data...)
			out = append(out, cred)
		}
	}

	return out, nil
}

func (s *Store) UpsertCredential(_ context.Context, rec authgate.CredentialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.credentials[rec.CredentialID]; ok && existing.UserID != rec.UserID {
		return authgate.ErrCredentialBound
	}

	rec.Data = append([]byte(nil), rec.Data...)
	s.credentials[rec.CredentialID] = rec

	return nil
}

func (s *Store) UpdateSignatureCounter(_ context.Context, credentialID string, newCount uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.credentials[credentialID]
	if !ok {
		return authgate.ErrCredentialNotFound
	}
	if newCount <= cred.SignCount {
		return authgate.ErrStaleCounter
	}

	cred.SignCount = newCount
	cred.LastUsedAt = time.Now().UTC()
	s.credentials[credentialID] = cred

	return nil
}

// SignCount exposes the stored counter for a credential. Test helper.
func (s *Store) SignCount(credentialID string) (uint32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.credentials[credentialID]
	if !ok {
		return 0, false
	}
	return cred.SignCount, true
}
