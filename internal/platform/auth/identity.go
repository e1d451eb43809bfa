package auth

import (
	"context"
	"strings"

	firebaseauth "firebase.google.com/go/v4/auth"
)

// Roles recognised in the Firebase "role" custom claim.
const (
	RoleViewer = "viewer"
	RoleEditor = "editor"
	RoleAdmin  = "admin"
)

// Identity is the administrator authenticated from a Firebase ID token.
type Identity struct {
	UID   string
	Email string
	Name  string
	Roles []string

	token *firebaseauth.Token
}

// Token exposes the decoded Firebase ID token.
func (i *Identity) Token() *firebaseauth.Token {
	if i == nil {
		return nil
	}
	return i.token
}

// HasRole reports whether the identity carries role (case-insensitive).
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	role = normaliseRole(role)
	for _, r := range i.Roles {
		if r == role && role != "" {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the identity includes any of roles.
func (i *Identity) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if i.HasRole(role) {
			return true
		}
	}
	return false
}

// Actor returns the most descriptive label for audit fields.
func (i *Identity) Actor() string {
	if i == nil {
		return ""
	}
	if i.Email != "" {
		return i.Email
	}
	return i.UID
}

type identityKey struct{}

// WithIdentity stores the identity within the context.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext retrieves the identity previously stored in context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}

func normaliseRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
