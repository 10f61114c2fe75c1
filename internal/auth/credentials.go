package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/jwt"
)

var (
	// ErrNoCredential means no stored token could be found. This is a fatal
	// precondition: callers abort, nothing retries it.
	ErrNoCredential        = errors.New("no stored driver credential")
	ErrCredentialExpired   = errors.New("stored driver credential is expired")
	ErrCredentialNoSubject = errors.New("stored driver credential has no subject")
)

// EnvToken is consulted when no token file is configured.
const EnvToken = "DRYJETS_DRIVER_TOKEN"

// Credentials is the driver's stored bearer token plus the claims the client
// can read from it. The client never verifies the signature (it does not
// hold the server secret); it only checks expiry and subject locally so a
// dead token fails fast instead of on the first network call.
type Credentials struct {
	raw       string
	driverID  string
	expiresAt time.Time
}

// Load reads the token from tokenFile, or from the DRYJETS_DRIVER_TOKEN
// environment variable when tokenFile is empty.
func Load(tokenFile string) (*Credentials, error) {
	var raw string

	if strings.TrimSpace(tokenFile) != "" {
		b, err := os.ReadFile(tokenFile)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, ErrNoCredential
			}
			return nil, fmt.Errorf("read token file: %w", err)
		}
		raw = string(b)
	} else {
		raw = os.Getenv(EnvToken)
	}

	return Parse(raw)
}

// Parse builds Credentials from a raw bearer token string.
func Parse(raw string) (*Credentials, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "Bearer "))
	if raw == "" {
		return nil, ErrNoCredential
	}

	claims := &jwt.Claims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("malformed driver credential: %w", err)
	}

	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return nil, ErrCredentialNoSubject
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
		if time.Now().After(expiresAt) {
			return nil, ErrCredentialExpired
		}
	}

	return &Credentials{raw: raw, driverID: sub, expiresAt: expiresAt}, nil
}

// Token returns the raw bearer token.
func (c *Credentials) Token() string { return c.raw }

// DriverID returns the token subject.
func (c *Credentials) DriverID() string { return c.driverID }

// ExpiresAt returns the token expiry (zero when the token carries none).
func (c *Credentials) ExpiresAt() time.Time { return c.expiresAt }
