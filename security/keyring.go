package security

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-hawkauth/core"
)

// KeyRing encrypts with the active key and decrypts with whichever known key
// sealed the envelope, so records written before a key rotation stay
// readable.
type KeyRing struct {
	active  *AppKeySecretProvider
	retired map[string]*AppKeySecretProvider
}

func NewKeyRing(active *AppKeySecretProvider, retired ...*AppKeySecretProvider) (*KeyRing, error) {
	if active == nil {
		return nil, fmt.Errorf("security: active key is required")
	}
	ring := &KeyRing{
		active:  active,
		retired: map[string]*AppKeySecretProvider{},
	}
	for _, provider := range retired {
		if provider == nil {
			continue
		}
		ref := keyRef(provider.KeyID(), provider.Version())
		if ref == keyRef(active.KeyID(), active.Version()) {
			return nil, fmt.Errorf("security: retired key %s duplicates the active key", ref)
		}
		ring.retired[ref] = provider
	}
	return ring, nil
}

func (r *KeyRing) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	if r == nil || r.active == nil {
		return nil, fmt.Errorf("security: key ring is not configured")
	}
	return r.active.Encrypt(ctx, plaintext)
}

func (r *KeyRing) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if r == nil || r.active == nil {
		return nil, fmt.Errorf("security: key ring is not configured")
	}
	meta, err := ParseEnvelopeMetadata(ciphertext)
	if err != nil {
		return nil, err
	}
	ref := keyRef(meta.KeyID, meta.Version)
	if ref == keyRef(r.active.KeyID(), r.active.Version()) {
		return r.active.Decrypt(ctx, ciphertext)
	}
	if provider, ok := r.retired[ref]; ok {
		return provider.Decrypt(ctx, ciphertext)
	}
	return nil, fmt.Errorf("security: no key for envelope %s", ref)
}

func (r *KeyRing) Metadata() (string, int) {
	if r == nil {
		return "", 0
	}
	return r.active.Metadata()
}

// NeedsRotation reports whether ciphertext was sealed by a key other than the
// active one.
func (r *KeyRing) NeedsRotation(ciphertext []byte) bool {
	if r == nil || r.active == nil {
		return false
	}
	meta, err := ParseEnvelopeMetadata(ciphertext)
	if err != nil {
		return false
	}
	return keyRef(meta.KeyID, meta.Version) != keyRef(r.active.KeyID(), r.active.Version())
}

func keyRef(keyID string, version int) string {
	return fmt.Sprintf("%s:%d", strings.TrimSpace(keyID), version)
}

var _ core.SecretProvider = (*KeyRing)(nil)
