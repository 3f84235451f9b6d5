package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
)

// CredentialStore reads and writes the two flow records over a RecordStore.
// Reads never fail: backend errors and malformed payloads both mean "no
// record".
type CredentialStore struct {
	records RecordStore
	logger  Logger
}

func NewCredentialStore(records RecordStore, logger Logger) *CredentialStore {
	if records == nil {
		records = NewMemoryRecordStore()
	}
	return &CredentialStore{
		records: records,
		logger:  glog.Ensure(logger),
	}
}

// Load decodes the record stored under key.
func Load[T any](ctx context.Context, s *CredentialStore, key string) (T, bool) {
	var zero T
	if s == nil || s.records == nil {
		return zero, false
	}
	raw, ok, err := s.records.Get(ctx, key)
	if err != nil {
		s.logger.Debug("record read failed, treating as absent", "key", key, "error", err)
		return zero, false
	}
	if !ok {
		return zero, false
	}
	decoded, ok := DecodeRecord[T](raw)
	if !ok {
		s.logger.Debug("record payload malformed, treating as absent", "key", key)
		return zero, false
	}
	return decoded, true
}

func (s *CredentialStore) Save(ctx context.Context, key string, value any) error {
	if s == nil || s.records == nil {
		return fmt.Errorf("core: credential store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("core: record key is required")
	}
	encoded, err := EncodeRecord(value)
	if err != nil {
		return err
	}
	return s.records.Put(ctx, key, encoded)
}

func (s *CredentialStore) Clear(ctx context.Context, key string) error {
	if s == nil || s.records == nil {
		return fmt.Errorf("core: credential store is not configured")
	}
	return s.records.Delete(ctx, strings.TrimSpace(key))
}

func (s *CredentialStore) LoadToken(ctx context.Context) (OAuthToken, bool) {
	token, ok := Load[OAuthToken](ctx, s, RecordKeyOAuthToken)
	if !ok || !token.Valid() {
		return OAuthToken{}, false
	}
	return token, true
}

func (s *CredentialStore) SaveToken(ctx context.Context, token OAuthToken) error {
	if !token.Valid() {
		return fmt.Errorf("core: access_token is required")
	}
	return s.Save(ctx, RecordKeyOAuthToken, token)
}

func (s *CredentialStore) LoadCredentials(ctx context.Context) (ServiceCredentials, bool) {
	creds, ok := Load[ServiceCredentials](ctx, s, RecordKeyServiceCredentials)
	if !ok || !creds.Usable() {
		return ServiceCredentials{}, false
	}
	return creds, true
}

func (s *CredentialStore) SaveCredentials(ctx context.Context, creds ServiceCredentials) error {
	if !creds.Usable() {
		return fmt.Errorf("core: credentials clientId and accessToken are required")
	}
	return s.Save(ctx, RecordKeyServiceCredentials, creds)
}

// ClearAll removes both flow records, credentials first.
func (s *CredentialStore) ClearAll(ctx context.Context) error {
	var errs []error
	for _, key := range []string{RecordKeyServiceCredentials, RecordKeyOAuthToken} {
		if err := s.Clear(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("core: clear %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}
