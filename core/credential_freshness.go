package core

import (
	"time"
)

const DefaultExpiringSoonWindow = 5 * time.Minute

// CredentialState captures expiry state derived from service credentials.
type CredentialState struct {
	Expires        time.Time
	ExpiresIn      time.Duration
	HasMaterial    bool
	HasCertificate bool
	IsExpired      bool
	IsExpiringSoon bool
}

// IsExpired reports whether credentials are past their expiry at now.
// Credentials without an expiry are treated as expired.
func IsExpired(creds ServiceCredentials, now time.Time) bool {
	if creds.Expires.IsZero() {
		return true
	}
	return !creds.Expires.After(now)
}

// ResolveCredentialState evaluates expiry flags for credentials.
func ResolveCredentialState(now time.Time, creds ServiceCredentials, expiringSoonWindow time.Duration) CredentialState {
	if now.IsZero() {
		now = time.Now().UTC()
	} else {
		now = now.UTC()
	}
	if expiringSoonWindow <= 0 {
		expiringSoonWindow = DefaultExpiringSoonWindow
	}

	state := CredentialState{
		Expires:        creds.Expires.UTC(),
		HasMaterial:    creds.Usable(),
		HasCertificate: creds.HasCertificate(),
	}
	if IsExpired(creds, now) {
		state.IsExpired = true
		return state
	}
	state.ExpiresIn = creds.Expires.Sub(now)
	state.IsExpiringSoon = !creds.Expires.After(now.Add(expiringSoonWindow))
	return state
}
