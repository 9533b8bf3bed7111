package ingest_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"ddexer/internal/config"
	"ddexer/internal/ddex"
	"ddexer/internal/ingest"
	"ddexer/internal/parser"
	"ddexer/internal/store"
	"ddexer/internal/testsupport"
)

var (
	t0  = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	t1  = t0.Add(24 * time.Hour)
	now = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
)

type env struct {
	cfg *config.Config
	st  *store.Store
	src config.Source
	ing *ingest.Ingester
}

func newEnv(t *testing.T) env {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithSource(config.Source{Name: "sony"}))
	st := testsupport.MustOpenStore(t, cfg)
	ing := ingest.New(cfg, st, nil)
	ing.SetClock(func() time.Time { return now })
	src, _ := cfg.SourceByName("sony")
	return env{cfg: cfg, st: st, src: src, ing: ing}
}

func (e env) row(t *testing.T, key string) *store.ReleaseRow {
	t.Helper()
	row, err := e.st.GetRelease(context.Background(), key)
	if err != nil || row == nil {
		t.Fatalf("GetRelease(%s) = %v, %v", key, row, err)
	}
	return row
}

func TestIngestTitleUpdate(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	testsupport.AddUser(t, e.st, e.src.SDK.APIKey, "u1", "Example Artist")

	first := testsupport.SingleTrackERN(t0, "USABC2400001", "Example Song").XML()
	res, err := e.ing.IngestDocument(ctx, e.src, "s3://drop/20240301/release.xml", first)
	if err != nil {
		t.Fatalf("IngestDocument: %v", err)
	}
	if res.Kind != parser.KindNewRelease || !res.Logged || res.Count(store.ActionReplace) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if row := e.row(t, "USABC2400001"); row.Status != store.StatusPublishPending || row.Release.AudiusUser != "u1" {
		t.Fatalf("status=%s user=%s problems=%v", row.Status, row.Release.AudiusUser, row.Release.Problems)
	}

	update := testsupport.SingleTrackERN(t1, "USABC2400001", "Updated Example Song").XML()
	if _, err := e.ing.IngestDocument(ctx, e.src, "s3://drop/20240302/release.xml", update); err != nil {
		t.Fatal(err)
	}
	row := e.row(t, "USABC2400001")
	if row.Release.Title != "Updated Example Song" || row.XMLURL != "s3://drop/20240302/release.xml" {
		t.Fatalf("title=%q xml=%s", row.Release.Title, row.XMLURL)
	}

	res, err = e.ing.IngestDocument(ctx, e.src, "s3://drop/20240301/release.xml", first)
	if err != nil {
		t.Fatal(err)
	}
	if res.Logged || res.Count(store.ActionIgnore) != 1 {
		t.Fatalf("replay of older delivery: %+v", res)
	}
	if row := e.row(t, "USABC2400001"); row.Release.Title != "Updated Example Song" {
		t.Fatalf("older delivery won: %q", row.Release.Title)
	}
}

func TestReparseAfterUserRegistered(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	doc := testsupport.SingleTrackERN(t0, "USABC2400001", "Example Song").XML()
	if _, err := e.ing.IngestDocument(ctx, e.src, "s3://drop/20240301/release.xml", doc); err != nil {
		t.Fatal(err)
	}
	row := e.row(t, "USABC2400001")
	if row.Status != store.StatusBlocked || !row.Release.HasProblem(ddex.ProblemNoUser) {
		t.Fatalf("expected NoUser block, got %s %v", row.Status, row.Release.Problems)
	}

	testsupport.AddUser(t, e.st, e.src.SDK.APIKey, "u1", "Example Artist")
	n, err := e.ing.Reparse(ctx, "")
	if err != nil {
		t.Fatalf("Reparse: %v", err)
	}
	if n != 1 {
		t.Fatalf("replayed %d documents", n)
	}
	row = e.row(t, "USABC2400001")
	if row.Status != store.StatusPublishPending || row.Release.AudiusUser != "u1" {
		t.Fatalf("after reparse status=%s user=%q", row.Status, row.Release.AudiusUser)
	}
	list, _ := e.st.ListXML(ctx, store.XMLFilter{})
	if len(list) != 1 {
		t.Fatalf("reparse appended documents: %d", len(list))
	}
}

func TestIngestUnparseableDocumentIsLogged(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.ing.IngestDocument(ctx, e.src, "s3://drop/x/bad.xml", []byte("<CatalogListMessage/>"))
	if !errors.Is(err, parser.ErrUnsupportedMessage) {
		t.Fatalf("expected ErrUnsupportedMessage, got %v", err)
	}
	var parseErr *ingest.ParseError
	if !errors.As(err, &parseErr) || parseErr.XMLURL != "s3://drop/x/bad.xml" {
		t.Fatalf("expected ParseError, got %T", err)
	}
	rec, err := e.st.GetXML(ctx, "s3://drop/x/bad.xml")
	if err != nil || rec == nil {
		t.Fatalf("document not logged: %v", err)
	}
	if rec.MessageTimestamp != nil {
		t.Fatalf("unparseable document has timestamp %v", rec.MessageTimestamp)
	}
}

func TestIngestPurge(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	testsupport.AddUser(t, e.st, e.src.SDK.APIKey, "u1", "Example Artist")

	res, err := e.ing.IngestDocument(ctx, e.src, "p0", testsupport.PurgeXML(t1, "USABC2400001", ""))
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != parser.KindPurge || res.Count(store.ActionIgnore) != 1 {
		t.Fatalf("purge of unknown release: %+v", res)
	}
	if row, _ := e.st.GetRelease(ctx, "USABC2400001"); row != nil {
		t.Fatal("purge created a row")
	}

	if _, err := e.ing.IngestDocument(ctx, e.src, "r0", testsupport.SingleTrackERN(t0, "USABC2400001", "Example Song").XML()); err != nil {
		t.Fatal(err)
	}
	if _, err := e.ing.IngestDocument(ctx, e.src, "p0", testsupport.PurgeXML(t1, "USABC2400001", "")); err != nil {
		t.Fatal(err)
	}
	if row := e.row(t, "USABC2400001"); row.Status != store.StatusDeletePending {
		t.Fatalf("status = %s", row.Status)
	}
}

func TestIngestPathWalksDirectory(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	base := e.src.LocalDir
	testsupport.WriteFile(t, filepath.Join(base, "20240301", "a.xml"), testsupport.SingleTrackERN(t0, "USABC2400001", "One").XML())
	testsupport.WriteFile(t, filepath.Join(base, "20240302", "b.XML"), testsupport.SingleTrackERN(t0, "USABC2400002", "Two").XML())
	testsupport.WriteFile(t, filepath.Join(base, "20240302", "broken.xml"), []byte("<nope"))
	testsupport.WriteFile(t, filepath.Join(base, "20240302", "resources", "cover.jpg"), []byte("jpg"))

	n, err := e.ing.IngestPath(ctx, e.src, base)
	if err != nil {
		t.Fatalf("IngestPath: %v", err)
	}
	if n != 2 {
		t.Fatalf("ingested %d documents", n)
	}
	row := e.row(t, "USABC2400002")
	if row.XMLURL != filepath.Join(base, "20240302", "b.XML") {
		t.Fatalf("xml url = %s", row.XMLURL)
	}
}

func TestSimulateIngestsForRegisteredArtist(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	testsupport.AddUser(t, e.st, e.src.SDK.APIKey, "u7", "Simulated Artist")

	sim, err := e.ing.Simulate(ctx, e.src, "Simulated Artist")
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if filepath.Dir(filepath.Dir(sim.XMLURL)) != filepath.Join(e.cfg.Paths.DataDir, "simulated") {
		t.Fatalf("unexpected xml url %s", sim.XMLURL)
	}
	row := e.row(t, sim.ISRC)
	if row.Status != store.StatusPublishPending || row.Release.AudiusUser != "u7" {
		t.Fatalf("simulated release status=%s user=%q problems=%v", row.Status, row.Release.AudiusUser, row.Release.Problems)
	}

	if _, err := e.ing.Simulate(ctx, e.src, "  "); err == nil {
		t.Fatal("expected error for empty artist")
	}
}
