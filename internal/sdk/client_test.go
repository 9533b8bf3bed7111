package sdk_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ddexer/internal/config"
	"ddexer/internal/sdk"
)

func TestUploadTrackSendsMultipart(t *testing.T) {
	var (
		gotPath     string
		gotKey      string
		gotMetadata sdk.TrackMetadata
		gotAudio    string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		gotKey = r.Header.Get("X-API-Key")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = json.Unmarshal([]byte(r.FormValue("metadata")), &gotMetadata)
		f, _, err := r.FormFile("audio")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(f)
		gotAudio = string(data)
		_, _ = w.Write([]byte(`{"data":{"id":"t1","block_hash":"0xabc","block_number":42}}`))
	}))
	defer srv.Close()

	c := sdk.NewClient(srv.URL, "key", "secret")
	res, err := c.UploadTrack(context.Background(), sdk.UploadTrackRequest{
		UserID:   "u1",
		Metadata: sdk.TrackMetadata{Title: "Example Song", Genre: "Electronic"},
		Audio:    sdk.File{Name: "track1.flac", Data: []byte("flac")},
		Cover:    sdk.File{Name: "cover.jpg", Data: []byte("jpg")},
	})
	if err != nil {
		t.Fatalf("UploadTrack: %v", err)
	}
	if res.ID != "t1" || res.BlockHash != "0xabc" || res.BlockNumber != 42 {
		t.Fatalf("result = %+v", res)
	}
	if gotPath != "POST /v1/users/u1/tracks" || gotKey != "key" {
		t.Fatalf("request = %s key=%s", gotPath, gotKey)
	}
	if gotMetadata.Title != "Example Song" || gotAudio != "flac" {
		t.Fatalf("metadata=%+v audio=%q", gotMetadata, gotAudio)
	}
}

func TestDeleteAlbumUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/v1/users/u1/albums/a1" {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "chain unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := sdk.NewClient(srv.URL, "key", "secret").DeleteAlbum(context.Background(), "u1", "a1")
	if !errors.Is(err, sdk.ErrUnexpectedStatus) {
		t.Fatalf("expected ErrUnexpectedStatus, got %v", err)
	}
	if !strings.Contains(err.Error(), "503") || !strings.Contains(err.Error(), "chain unavailable") {
		t.Fatalf("error lacks status detail: %v", err)
	}
}

func TestUpdateTrackSendsJSON(t *testing.T) {
	var got sdk.TrackMetadata
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.Header.Get("Content-Type") != "application/json" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"data":{"id":"t9"}}`))
	}))
	defer srv.Close()

	res, err := sdk.NewClient(srv.URL, "k", "s").UpdateTrack(context.Background(), sdk.UpdateTrackRequest{
		UserID: "u1", TrackID: "t9", Metadata: sdk.TrackMetadata{Title: "Updated Example Song"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.ID != "t9" || got.Title != "Updated Example Song" {
		t.Fatalf("res=%+v got=%+v", res, got)
	}
}

func TestPoolReusesClients(t *testing.T) {
	pool := sdk.NewPool()
	cfg := config.SDK{APIKey: "k", APISecret: "s", Endpoint: "http://localhost"}
	a, err := pool.Platform(cfg)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := pool.Platform(cfg)
	if a != b {
		t.Fatal("expected the same client for identical credentials")
	}
	if _, err := pool.Platform(config.SDK{APIKey: "k"}); err == nil {
		t.Fatal("expected error without secret")
	}
}
