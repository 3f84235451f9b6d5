package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-hawkauth/core"
	glog "github.com/goliatone/go-logger/glog"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const DefaultNamespace = "default"

type keyMetadata interface {
	Metadata() (string, int)
}

type rotationChecker interface {
	NeedsRotation(ciphertext []byte) bool
}

// RecordStore keeps flow records in the hawkauth_records table, one row per
// (namespace, record_key). Payloads are sealed when a secret provider is set.
type RecordStore struct {
	db        *bun.DB
	repo      repository.Repository[*authRecord]
	namespace string
	secrets   core.SecretProvider
	logger    core.Logger
	now       func() time.Time
}

type RecordStoreOption func(*RecordStore)

func WithNamespace(namespace string) RecordStoreOption {
	return func(s *RecordStore) {
		if trimmed := strings.TrimSpace(namespace); trimmed != "" {
			s.namespace = trimmed
		}
	}
}

func WithSecretProvider(provider core.SecretProvider) RecordStoreOption {
	return func(s *RecordStore) {
		s.secrets = provider
	}
}

func WithLogger(logger core.Logger) RecordStoreOption {
	return func(s *RecordStore) {
		s.logger = glog.Ensure(logger)
	}
}

func NewRecordStore(db *bun.DB, opts ...RecordStoreOption) (*RecordStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*authRecord](db, authRecordHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid record repository wiring: %w", err)
		}
	}
	store := &RecordStore{
		db:        db,
		repo:      repo,
		namespace: DefaultNamespace,
		logger:    glog.Nop(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(store)
	}
	return store, nil
}

func (s *RecordStore) Namespace() string {
	if s == nil {
		return ""
	}
	return s.namespace
}

func (s *RecordStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s == nil || s.repo == nil {
		return "", false, fmt.Errorf("sqlstore: record store is not configured")
	}
	record, ok, err := s.find(ctx, s.db, key)
	if err != nil || !ok {
		return "", false, err
	}
	if record.PayloadFormat != payloadFormatEncrypted {
		return record.Payload, true, nil
	}
	if s.secrets == nil {
		return "", false, fmt.Errorf("sqlstore: record %q is encrypted but no secret provider is configured", record.RecordKey)
	}
	plaintext, err := s.secrets.Decrypt(ctx, []byte(record.Payload))
	if err != nil {
		return "", false, fmt.Errorf("sqlstore: decrypt record %q: %w", record.RecordKey, err)
	}
	if checker, ok := s.secrets.(rotationChecker); ok && checker.NeedsRotation([]byte(record.Payload)) {
		if err := s.Put(ctx, record.RecordKey, string(plaintext)); err != nil {
			s.logger.Warn("record re-seal failed", "key", record.RecordKey, "error", err)
		} else {
			s.logger.Debug("record re-sealed with active key", "key", record.RecordKey)
		}
	}
	return string(plaintext), true, nil
}

func (s *RecordStore) Put(ctx context.Context, key string, value string) error {
	if s == nil || s.repo == nil || s.db == nil {
		return fmt.Errorf("sqlstore: record store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("sqlstore: record key is required")
	}

	payload, format, keyID, keyVersion, err := s.seal(ctx, value)
	if err != nil {
		return err
	}
	now := s.now()

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, exists, findErr := s.find(ctx, tx, key)
		if findErr != nil {
			return findErr
		}
		if exists {
			_, updateErr := tx.NewUpdate().
				Model((*authRecord)(nil)).
				Set("payload = ?", payload).
				Set("payload_format = ?", format).
				Set("encryption_key_id = ?", keyID).
				Set("encryption_version = ?", keyVersion).
				Set("updated_at = ?", now).
				Where("namespace = ?", s.namespace).
				Where("record_key = ?", key).
				Exec(ctx)
			return updateErr
		}
		_, createErr := s.repo.CreateTx(ctx, tx, &authRecord{
			ID:                uuid.NewString(),
			Namespace:         s.namespace,
			RecordKey:         key,
			Payload:           payload,
			PayloadFormat:     format,
			EncryptionKeyID:   keyID,
			EncryptionVersion: keyVersion,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
		return createErr
	})
}

// Delete removes the record; deleting a missing key is a no-op.
func (s *RecordStore) Delete(ctx context.Context, key string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: record store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*authRecord)(nil)).
		Where("namespace = ?", s.namespace).
		Where("record_key = ?", strings.TrimSpace(key)).
		Exec(ctx)
	return err
}

func (s *RecordStore) find(ctx context.Context, idb bun.IDB, key string) (*authRecord, bool, error) {
	record := &authRecord{}
	err := idb.NewSelect().
		Model(record).
		Where("namespace = ?", s.namespace).
		Where("record_key = ?", strings.TrimSpace(key)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return record, true, nil
}

// Keys lists the record keys held in the store's namespace.
func (s *RecordStore) Keys(ctx context.Context) ([]string, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: record store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("namespace", "=", s.namespace),
		repository.OrderBy("record_key ASC"),
	)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(records))
	for _, record := range records {
		keys = append(keys, record.RecordKey)
	}
	return keys, nil
}

func (s *RecordStore) seal(ctx context.Context, value string) (string, string, string, int, error) {
	if s.secrets == nil {
		return value, payloadFormatJSON, "", 0, nil
	}
	ciphertext, err := s.secrets.Encrypt(ctx, []byte(value))
	if err != nil {
		return "", "", "", 0, fmt.Errorf("sqlstore: encrypt record: %w", err)
	}
	keyID, keyVersion := "", 0
	if meta, ok := s.secrets.(keyMetadata); ok {
		keyID, keyVersion = meta.Metadata()
	}
	return string(ciphertext), payloadFormatEncrypted, keyID, keyVersion, nil
}
