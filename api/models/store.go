package models

import (
	"sync"
	"time"

	ttlworker "github.com/FloatTech/ttl"

	"github.com/nimbusdrive/nimbus-go/tool"
	"github.com/nimbusdrive/nimbus-go/types"
)

// Token lifetimes. The short access TTL is what makes the dev backend useful:
// a long-running client genuinely hits 401 and exercises the refresh protocol.
var (
	AccessTokenTTL  = 15 * time.Minute
	RefreshTokenTTL = 30 * 24 * time.Hour
)

// Session identifies the signed-in user behind a token.
type Session struct {
	Username string
}

// Store is the in-memory stand-in for the production identity provider and
// metadata store. Tokens expire via TTL caches; file records live for the
// process lifetime.
type Store struct {
	mu           sync.RWMutex
	files        map[string]*types.FileRecord
	access       *ttlworker.Cache[string, Session]
	refresh      *ttlworker.Cache[string, Session]
	issuedAccess []string
}

func NewStore() *Store {
	return &Store{
		files:   make(map[string]*types.FileRecord),
		access:  ttlworker.NewCache[string, Session](AccessTokenTTL),
		refresh: ttlworker.NewCache[string, Session](RefreshTokenTTL),
	}
}

// IssueTokens creates a fresh access/refresh token pair for username.
func (s *Store) IssueTokens(username string) (accessToken, refreshToken string) {
	accessToken = tool.NewID()
	refreshToken = tool.NewID()
	s.access.Set(accessToken, Session{Username: username})
	s.refresh.Set(refreshToken, Session{Username: username})
	s.mu.Lock()
	s.issuedAccess = append(s.issuedAccess, accessToken)
	s.mu.Unlock()
	return accessToken, refreshToken
}

// RefreshAccess exchanges a live refresh token for a new access token.
func (s *Store) RefreshAccess(refreshToken string) (string, bool) {
	sess := s.refresh.Get(refreshToken)
	if sess.Username == "" {
		return "", false
	}
	accessToken := tool.NewID()
	s.access.Set(accessToken, sess)
	s.mu.Lock()
	s.issuedAccess = append(s.issuedAccess, accessToken)
	s.mu.Unlock()
	return accessToken, true
}

// LookupAccess resolves a live access token.
func (s *Store) LookupAccess(accessToken string) (Session, bool) {
	sess := s.access.Get(accessToken)
	return sess, sess.Username != ""
}

// Revoke drops both tokens, ending the session server-side.
func (s *Store) Revoke(accessToken, refreshToken string) {
	if accessToken != "" {
		s.access.Delete(accessToken)
	}
	if refreshToken != "" {
		s.refresh.Delete(refreshToken)
	}
}

// ExpireAllAccess drops every issued access token, as if the access TTL had
// run out. Test hook for forcing 401s without waiting.
func (s *Store) ExpireAllAccess() {
	s.mu.Lock()
	tokens := s.issuedAccess
	s.issuedAccess = nil
	s.mu.Unlock()
	for _, t := range tokens {
		s.access.Delete(t)
	}
}

// AddFile stores a new file record.
func (s *Store) AddFile(rec *types.FileRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[rec.FileID] = rec
}

// GetFile returns a copy of one record.
func (s *Store) GetFile(fileID string) (types.FileRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.files[fileID]; ok {
		return *rec, true
	}
	return types.FileRecord{}, false
}

// ListFiles returns the live (non-deleted) records.
func (s *Store) ListFiles() []types.FileRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.FileRecord, 0, len(s.files))
	for _, rec := range s.files {
		if !rec.IsDeleted {
			out = append(out, *rec)
		}
	}
	return out
}

// ListDeleted returns the soft-deleted records as recycle-bin entries.
func (s *Store) ListDeleted() []types.DeletedRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.DeletedRecord, 0)
	for _, rec := range s.files {
		if rec.IsDeleted && rec.DeletedAt != nil {
			out = append(out, types.DeletedRecord{
				FileID:    rec.FileID,
				FileName:  rec.FileName,
				FileType:  rec.FileType,
				FileSize:  rec.FileSize,
				DeletedAt: *rec.DeletedAt,
			})
		}
	}
	return out
}

// SoftDelete marks a record deleted. Reports false when the record is unknown.
func (s *Store) SoftDelete(fileID string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.files[fileID]
	if !ok {
		return false
	}
	rec.IsDeleted = true
	rec.DeletedAt = &now
	return true
}

// Restore un-deletes a record. Reports whether the record existed and whether
// it was actually in the bin.
func (s *Store) Restore(fileID string) (found, wasDeleted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.files[fileID]
	if !ok {
		return false, false
	}
	if !rec.IsDeleted {
		return true, false
	}
	rec.IsDeleted = false
	rec.DeletedAt = nil
	return true, true
}

// Purge permanently removes a soft-deleted record. Reports found / was-deleted
// the same way as Restore so the handler can distinguish 404 from 400.
func (s *Store) Purge(fileID string) (found, wasDeleted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.files[fileID]
	if !ok {
		return false, false
	}
	if !rec.IsDeleted {
		return true, false
	}
	delete(s.files, fileID)
	return true, true
}
