// Package session stores an access.Session in a signed cookie.
//
// The cookie value is an HS256 JWT. Profile fields ride in plain claims; the
// backend bearer token is sealed with AES-256-GCM so it never appears in
// readable form on the client.
package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"github.com/ssc-dashboards/portal/internal/access"
)

const (
	issuer        = "portal"
	keySize       = 32
	minSecretSize = 16

	DefaultMaxAge = 30 * 24 * time.Hour
)

// ErrInvalidToken is returned for any token that fails signature, claim or
// decryption checks.
var ErrInvalidToken = errors.New("invalid session token")

// Token is a decoded session cookie.
type Token struct {
	ID        string
	ExpiresAt time.Time
	Session   *access.Session
}

type claims struct {
	Role         string `json:"role"`
	Status       string `json:"status,omitempty"`
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	Image        string `json:"image,omitempty"`
	Address      string `json:"address,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Organization string `json:"org,omitempty"`
	Sealed       string `json:"tok,omitempty"`
	jwt.RegisteredClaims
}

// Manager issues and parses session tokens.
type Manager struct {
	signKey []byte
	aead    cipher.AEAD
	maxAge  time.Duration
	now     func() time.Time
}

type Option func(*Manager)

// WithMaxAge sets how long an issued token stays valid.
func WithMaxAge(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.maxAge = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager derives the signing and encryption keys from secret.
func NewManager(secret string, opts ...Option) (*Manager, error) {
	secret = strings.TrimSpace(secret)
	if len(secret) < minSecretSize {
		return nil, fmt.Errorf("session secret must be at least %d bytes", minSecretSize)
	}

	signKey, err := deriveKey(secret, "portal session signing")
	if err != nil {
		return nil, err
	}
	encKey, err := deriveKey(secret, "portal session encryption")
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	m := &Manager{
		signKey: signKey,
		aead:    aead,
		maxAge:  DefaultMaxAge,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func deriveKey(secret, info string) ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// MaxAge reports the lifetime given to issued tokens.
func (m *Manager) MaxAge() time.Duration {
	return m.maxAge
}

// Issue signs a new token for s. The returned Token carries a copy of s with
// ExpiresAt set to the token's expiry.
func (m *Manager) Issue(s access.Session) (string, *Token, error) {
	if s.Status == access.StatusMissing {
		return "", nil, errors.New("issue session: status is required")
	}

	now := m.now().UTC()
	id := uuid.NewString()
	exp := now.Add(m.maxAge).Truncate(time.Second)

	sealed, err := m.seal(s.AccessToken, id)
	if err != nil {
		return "", nil, err
	}

	c := claims{
		Role:         s.Role.String(),
		Status:       s.Status.String(),
		Name:         s.Name,
		Email:        s.Email,
		Image:        s.Image,
		Address:      s.Address,
		Phone:        s.Phone,
		Organization: s.Organization,
		Sealed:       sealed,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   s.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        id,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.signKey)
	if err != nil {
		return "", nil, fmt.Errorf("sign session: %w", err)
	}

	s.ExpiresAt = exp
	return signed, &Token{ID: id, ExpiresAt: exp, Session: &s}, nil
}

// Parse verifies raw and decodes the session it carries.
func (m *Manager) Parse(raw string) (*Token, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidToken
	}

	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return m.signKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidToken)
	}

	accessToken, err := m.open(c.Sealed, c.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	exp := c.ExpiresAt.Time.UTC()
	s := &access.Session{
		UserID:       c.Subject,
		Role:         access.ParseRole(c.Role),
		Status:       access.ParseStatus(c.Status),
		Name:         c.Name,
		Email:        c.Email,
		Image:        c.Image,
		Address:      c.Address,
		Phone:        c.Phone,
		Organization: c.Organization,
		AccessToken:  accessToken,
		ExpiresAt:    exp,
	}
	return &Token{ID: c.ID, ExpiresAt: exp, Session: s}, nil
}

// seal encrypts plaintext bound to the token id.
// Layout: base64url([12-byte nonce][ciphertext]).
func (m *Manager) seal(plaintext, id string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, m.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	out := m.aead.Seal(nonce, nonce, []byte(plaintext), []byte(id))
	return base64.RawURLEncoding.EncodeToString(out), nil
}

func (m *Manager) open(sealed, id string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	data, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("decode sealed token: %w", err)
	}
	ns := m.aead.NonceSize()
	if len(data) < ns {
		return "", errors.New("sealed token too small")
	}
	plaintext, err := m.aead.Open(nil, data[:ns], data[ns:], []byte(id))
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}
