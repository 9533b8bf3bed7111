package testsupport

import (
	"context"
	"testing"

	"ddexer/internal/config"
	"ddexer/internal/store"
	"ddexer/internal/users"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// AddUser registers an account for tests.
func AddUser(t testing.TB, st *store.Store, apiKey, id, name string) users.Entry {
	t.Helper()

	entry := users.Entry{APIKey: apiKey, ID: id, Handle: id, Name: name}
	if err := st.AddUser(context.Background(), entry); err != nil {
		t.Fatalf("store.AddUser: %v", err)
	}
	return entry
}
