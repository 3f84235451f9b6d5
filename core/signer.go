package core

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	hawk "github.com/tent/hawk-go"
)

const (
	HawkAlgorithmSHA256 = "sha256"
	defaultNonceBytes   = 8
)

type SignerOption func(*HawkSigner)

func WithSignerClock(clock Clock) SignerOption {
	return func(s *HawkSigner) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithNonceSource(source NonceSource) SignerOption {
	return func(s *HawkSigner) {
		if source != nil {
			s.nonce = source
		}
	}
}

// HawkSigner signs requests with the Hawk HMAC-SHA256 scheme. Timestamp and
// nonce are drawn per call, so repeated calls never share a header.
type HawkSigner struct {
	clock Clock
	nonce NonceSource
}

func NewHawkSigner(opts ...SignerOption) *HawkSigner {
	signer := &HawkSigner{
		clock: systemClock,
		nonce: RandomNonce,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(signer)
	}
	return signer
}

// Sign returns the Authorization header value for url/method. Missing
// credentials yield an empty header and no error.
func (s *HawkSigner) Sign(creds *ServiceCredentials, rawURL string, method string) (SignedHeader, error) {
	if creds == nil || !creds.Usable() {
		return SignedHeader{}, nil
	}
	if s == nil {
		s = NewHawkSigner()
	}

	ext, err := BuildExt(creds.Credentials.Certificate)
	if err != nil {
		return SignedHeader{}, err
	}
	return s.signWithExt(creds, rawURL, method, ext)
}

func (s *HawkSigner) signWithExt(creds *ServiceCredentials, rawURL string, method string, ext string) (SignedHeader, error) {
	auth, err := newHawkAuth(rawURL, method, creds)
	if err != nil {
		return SignedHeader{}, err
	}
	nonce, err := s.nonce()
	if err != nil {
		return SignedHeader{}, fmt.Errorf("core: generate hawk nonce: %w", err)
	}
	auth.Nonce = nonce
	auth.Timestamp = s.clock()
	auth.Ext = ext

	return SignedHeader{Field: auth.RequestHeader()}, nil
}

func (s *HawkSigner) SignRequest(_ context.Context, req *http.Request, creds *ServiceCredentials) error {
	if req == nil || req.URL == nil {
		return fmt.Errorf("core: http request is required")
	}
	header, err := s.Sign(creds, req.URL.String(), req.Method)
	if err != nil {
		return err
	}
	if header.Empty() {
		return nil
	}
	req.Header.Set("Authorization", header.Field)
	return nil
}

// BuildExt encodes the delegation certificate as the Hawk ext payload:
// base64(json({"certificate": <certificate>})). The certificate is embedded
// as issued, without reordering keys or escaping HTML characters. It returns
// "" when there is no certificate.
func BuildExt(certificate string) (string, error) {
	raw, err := DecodeCertificate(certificate)
	if err != nil {
		return "", err
	}
	if raw == nil {
		return "", nil
	}
	var payload bytes.Buffer
	encoder := json.NewEncoder(&payload)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(struct {
		Certificate json.RawMessage `json:"certificate"`
	}{Certificate: raw}); err != nil {
		return "", fmt.Errorf("core: encode hawk ext: %w", err)
	}
	return base64.StdEncoding.EncodeToString(bytes.TrimRight(payload.Bytes(), "\n")), nil
}

// VerifyHeader checks a Hawk header against credentials for url/method, with
// timestamp skew measured from now.
func VerifyHeader(header string, creds ServiceCredentials, rawURL string, method string, now time.Time) error {
	if strings.TrimSpace(header) == "" {
		return fmt.Errorf("core: hawk header is required")
	}
	auth, err := newHawkAuth(rawURL, method, &creds)
	if err != nil {
		return err
	}
	if err := auth.ParseHeader(header, hawk.AuthHeader); err != nil {
		return fmt.Errorf("core: parse hawk header: %w", err)
	}
	if auth.Credentials.ID != creds.ClientID() {
		return fmt.Errorf("core: hawk id mismatch: got %q want %q", auth.Credentials.ID, creds.ClientID())
	}
	auth.Credentials = hawkCredentials(&creds)
	if now.IsZero() {
		now = time.Now()
	}
	auth.ActualTimestamp = now
	if err := auth.Valid(); err != nil {
		return fmt.Errorf("core: invalid hawk header: %w", err)
	}
	return nil
}

// RandomNonce returns a fresh url-safe nonce.
func RandomNonce() (string, error) {
	raw := make([]byte, defaultNonceBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func newHawkAuth(rawURL string, method string, creds *ServiceCredentials) (*hawk.Auth, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("core: invalid request url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("core: request url must be absolute: %q", rawURL)
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}
	host, port := hostPort(parsed)
	return &hawk.Auth{
		Credentials: hawkCredentials(creds),
		Method:      method,
		RequestURI:  parsed.RequestURI(),
		Host:        host,
		Port:        port,
	}, nil
}

func hawkCredentials(creds *ServiceCredentials) hawk.Credentials {
	return hawk.Credentials{
		ID:   strings.TrimSpace(creds.Credentials.ClientID),
		Key:  strings.TrimSpace(creds.Credentials.AccessToken),
		Hash: sha256.New,
	}
}

func hostPort(u *url.URL) (string, string) {
	host := u.Hostname()
	port := u.Port()
	if port != "" {
		return host, port
	}
	if strings.EqualFold(u.Scheme, "https") {
		return host, "443"
	}
	return host, "80"
}

var _ RequestSigner = (*HawkSigner)(nil)
