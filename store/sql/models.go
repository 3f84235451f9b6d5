package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	payloadFormatJSON      = "json"
	payloadFormatEncrypted = "encrypted"
)

type authRecord struct {
	bun.BaseModel `bun:"table:hawkauth_records,alias:har"`

	ID                string    `bun:"id,pk"`
	Namespace         string    `bun:"namespace,notnull"`
	RecordKey         string    `bun:"record_key,notnull"`
	Payload           string    `bun:"payload,notnull"`
	PayloadFormat     string    `bun:"payload_format,notnull"`
	EncryptionKeyID   string    `bun:"encryption_key_id,notnull"`
	EncryptionVersion int       `bun:"encryption_version,notnull"`
	CreatedAt         time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
