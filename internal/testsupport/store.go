package testsupport

import (
	"context"
	"testing"

	"splintarr/internal/config"
	"splintarr/internal/credentials"
	"splintarr/internal/searchmeta"
	"splintarr/internal/store"
)

// MustOpenStore opens the database described by cfg and closes it when the
// test finishes.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	s, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

// MustCipher builds a credential cipher from the config secret.
func MustCipher(t testing.TB, cfg *config.Config) *credentials.Cipher {
	t.Helper()

	c, err := credentials.NewCipher(cfg.Security.SecretKey)
	if err != nil {
		t.Fatalf("credentials.NewCipher: %v", err)
	}
	return c
}

// SeedInstance stores an instance whose API key is encrypted with cipher.
// Passing a nil cipher stores apiKey verbatim, which cannot be decrypted.
func SeedInstance(t testing.TB, s *store.Store, cipher *credentials.Cipher, kind store.InstanceType, url, apiKey string) *store.Instance {
	t.Helper()

	stored := apiKey
	if cipher != nil {
		sealed, err := cipher.Encrypt(apiKey)
		if err != nil {
			t.Fatalf("encrypt api key: %v", err)
		}
		stored = sealed
	}
	inst, err := s.CreateInstance(context.Background(), &store.Instance{
		Name:      "Test " + string(kind),
		Type:      kind,
		URL:       url,
		APIKey:    stored,
		VerifySSL: true,
	})
	if err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}
	return inst
}

// SeedSearchRun stores a run for instanceID with the given raw metadata blob.
func SeedSearchRun(t testing.TB, s *store.Store, instanceID int64, metadata string) *store.SearchRun {
	t.Helper()

	run, err := s.CreateSearchRun(context.Background(), &store.SearchRun{
		InstanceID:        instanceID,
		Name:              "Test Search",
		Strategy:          "missing",
		Status:            "success",
		ItemsSearched:     1,
		ItemsFound:        1,
		SearchesTriggered: 1,
		Metadata:          metadata,
	})
	if err != nil {
		t.Fatalf("CreateSearchRun: %v", err)
	}
	return run
}

// SeedEntries serializes entries and stores them as a new run.
func SeedEntries(t testing.TB, s *store.Store, instanceID int64, entries []searchmeta.Entry) *store.SearchRun {
	t.Helper()

	raw, err := searchmeta.Serialize(entries)
	if err != nil {
		t.Fatalf("serialize entries: %v", err)
	}
	return SeedSearchRun(t, s, instanceID, raw)
}

// SeedLibraryItem stores a library item with sync-style counters.
func SeedLibraryItem(t testing.TB, s *store.Store, instanceID int64, contentType store.ContentType, externalID int64, title string) *store.LibraryItem {
	t.Helper()

	item, err := s.UpsertLibraryItem(context.Background(), &store.LibraryItem{
		InstanceID:   instanceID,
		ContentType:  contentType,
		ExternalID:   externalID,
		Title:        title,
		EpisodeCount: 10,
		EpisodeHave:  5,
	})
	if err != nil {
		t.Fatalf("UpsertLibraryItem: %v", err)
	}
	return item
}
