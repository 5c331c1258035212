// Package auth resolves request identities from bearer tokens and holds the
// access policies for initiative operations.
package auth

import (
	"net/http"
	"strings"

	"github.com/citylab/agora/internal/models"
	"github.com/citylab/agora/internal/storage"
)

// Identity is the resolved caller of a request. Anonymous identities have no
// other fields set.
type Identity struct {
	ID        string
	Email     string
	Role      string
	Anonymous bool
}

// Anonymous is the identity of an unauthenticated request.
var Anonymous = Identity{Anonymous: true}

// IsAdmin reports whether the identity is a signed-in administrator.
func (id Identity) IsAdmin() bool {
	return !id.Anonymous && id.Role == models.RoleAdmin
}

// Authenticator resolves the identity behind a request.
type Authenticator interface {
	CurrentUser(r *http.Request) Identity
}

// TokenAuthenticator authenticates bearer tokens against the users table.
// Unknown or missing tokens resolve to Anonymous; they are never an error.
type TokenAuthenticator struct {
	store storage.Store
}

// NewTokenAuthenticator creates an authenticator backed by the given store.
func NewTokenAuthenticator(store storage.Store) *TokenAuthenticator {
	return &TokenAuthenticator{store: store}
}

// CurrentUser extracts the bearer token and looks up the owning user.
func (a *TokenAuthenticator) CurrentUser(r *http.Request) Identity {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return Anonymous
	}
	u, err := a.store.GetUserByToken(r.Context(), strings.TrimSpace(token))
	if err != nil {
		// Unknown tokens and lookup failures both degrade to anonymous;
		// the policy check decides whether that matters.
		return Anonymous
	}
	return Identity{ID: u.ID, Email: u.Email, Role: u.Role}
}

// CanReindex reports whether id may trigger a reindex of the initiative:
// its author or an administrator.
func CanReindex(id Identity, in *models.Initiative) bool {
	if id.Anonymous {
		return false
	}
	return id.IsAdmin() || id.ID == in.AuthorID
}

// CanManageAttachments mirrors CanReindex: the author or an administrator
// may upload and delete attachments.
func CanManageAttachments(id Identity, in *models.Initiative) bool {
	return CanReindex(id, in)
}
