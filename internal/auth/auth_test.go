package auth

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/citylab/agora/internal/models"
	"github.com/citylab/agora/internal/storage"
)

func newTestAuth(t *testing.T) (*TokenAuthenticator, *storage.SQLiteStore) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "agora.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return NewTokenAuthenticator(store), store
}

func TestCurrentUser(t *testing.T) {
	a, store := newTestAuth(t)
	u := &models.User{ID: "u1", Email: "u1@example.com", Role: models.RoleAdmin, APIToken: "secret-token"}
	if err := store.CreateUser(context.Background(), u); err != nil {
		t.Fatal(err)
	}

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer secret-token")
	id := a.CurrentUser(r)
	if id.Anonymous || id.ID != "u1" || !id.IsAdmin() {
		t.Errorf("got %+v", id)
	}

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic secret-token"},
		{"empty token", "Bearer   "},
		{"unknown token", "Bearer nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if id := a.CurrentUser(r); !id.Anonymous {
				t.Errorf("got %+v", id)
			}
		})
	}
}

func TestCanReindex(t *testing.T) {
	in := &models.Initiative{ID: "i1", AuthorID: "u1"}

	author := Identity{ID: "u1", Role: models.RoleUser}
	admin := Identity{ID: "u2", Role: models.RoleAdmin}
	other := Identity{ID: "u3", Role: models.RoleUser}

	if !CanReindex(author, in) {
		t.Error("author denied")
	}
	if !CanReindex(admin, in) {
		t.Error("admin denied")
	}
	if CanReindex(other, in) {
		t.Error("unrelated user allowed")
	}
	if CanReindex(Anonymous, in) {
		t.Error("anonymous allowed")
	}
	if !CanManageAttachments(author, in) || CanManageAttachments(other, in) {
		t.Error("attachment policy diverged from reindex policy")
	}
}
