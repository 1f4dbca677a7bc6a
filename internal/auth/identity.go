package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrExpired = errors.New("credential expired")

// Identity is the authenticated participant a credential belongs to.
type Identity struct {
	UserID   string
	Username string
}

// ParseIdentity reads the identity out of a bearer credential without
// checking its signature. The server verifies the signature on connect; the
// client only needs to know who it is.
func ParseIdentity(credential string) (Identity, error) {
	credential = strings.TrimSpace(strings.TrimPrefix(credential, "Bearer "))
	if credential == "" {
		return Identity{}, errors.New("empty credential")
	}

	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(credential, &claims); err != nil {
		return Identity{}, fmt.Errorf("parse credential: %w", err)
	}
	if claims.UserID == "" {
		return Identity{}, errors.New("parse credential: missing user_id claim")
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return Identity{}, ErrExpired
	}
	return Identity{UserID: claims.UserID, Username: claims.Username}, nil
}
