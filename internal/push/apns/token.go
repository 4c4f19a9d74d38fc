package apns

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Apple rejects provider tokens older than an hour; re-sign comfortably before that.
const tokenLifetime = 50 * time.Minute

// ProviderToken signs and caches the JWT bearer token used to authenticate
// against the APNS HTTP/2 API.
type ProviderToken struct {
	keyID  string
	teamID string
	key    interface{}

	mu       sync.Mutex
	bearer   string
	signedAt time.Time
}

// NewProviderToken parses the .p8 signing key and returns a token source.
func NewProviderToken(p8 []byte, keyID, teamID string) (*ProviderToken, error) {
	key, err := jwt.ParseECPrivateKeyFromPEM(p8)
	if err != nil {
		return nil, fmt.Errorf("parsing apns signing key: %w", err)
	}

	return &ProviderToken{
		keyID:  keyID,
		teamID: teamID,
		key:    key,
	}, nil
}

// Bearer returns a current provider token, re-signing when the cached one is
// near expiry.
func (t *ProviderToken) Bearer() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if t.bearer != "" && now.Sub(t.signedAt) < tokenLifetime {
		return t.bearer, nil
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"iss": t.teamID,
		"iat": now.Unix(),
	})
	token.Header["kid"] = t.keyID

	signed, err := token.SignedString(t.key)
	if err != nil {
		return "", fmt.Errorf("signing apns provider token: %w", err)
	}

	t.bearer = signed
	t.signedAt = now
	return signed, nil
}
