package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// AnonymousUsername identifies a shopper without a verified identity. It is also the value
// written to payment intent metadata for anonymous checkouts.
const AnonymousUsername = "AnonymousUser"

// IdentityClaims is the bearer token issued by the identity provider.
type IdentityClaims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// ResolvedUsername returns the username claim, falling back to the subject.
func (c *IdentityClaims) ResolvedUsername() string {
	if c == nil {
		return ""
	}
	if name := strings.TrimSpace(c.Username); name != "" {
		return name
	}
	return strings.TrimSpace(c.Subject)
}

// IsAnonymous reports whether username denotes the anonymous shopper.
func IsAnonymous(username string) bool {
	name := strings.TrimSpace(username)
	return name == "" || name == AnonymousUsername
}
