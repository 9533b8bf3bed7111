package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ddexer/internal/ddex"
	"ddexer/internal/store"
	"ddexer/internal/testsupport"
	"ddexer/internal/users"
)

var (
	t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Hour)
	t2 = t0.Add(2 * time.Hour)
)

func release(isrc, title string, problems ...ddex.Problem) *ddex.Release {
	return &ddex.Release{
		Ref:      "R0",
		IDs:      ddex.ReleaseIDs{ISRC: isrc},
		Title:    title,
		Deals:    []ddex.Deal{{Type: ddex.DealFree, ForStream: true}},
		Problems: append([]ddex.Problem{}, problems...),
	}
}

func upsert(t *testing.T, st *store.Store, ts time.Time, rel *ddex.Release) store.Decision {
	t.Helper()
	d, err := st.Upsert(context.Background(), store.UpsertInput{
		Source: "sony", XMLURL: "s3://bucket/" + ts.Format("150405") + "/release.xml", MessageTimestamp: ts, Release: rel,
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	return d
}

func mustGet(t *testing.T, st *store.Store, key string) *store.ReleaseRow {
	t.Helper()
	row, err := st.GetRelease(context.Background(), key)
	if err != nil {
		t.Fatalf("GetRelease: %v", err)
	}
	if row == nil {
		t.Fatalf("release %s not found", key)
	}
	return row
}

func TestOpenCreatesSchemaAndReopens(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if st.Path() != cfg.DatabasePath() {
		t.Fatalf("path = %s", st.Path())
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}
	st, err = store.Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_ = st.Close()

	var nilStore *store.Store
	if err := nilStore.Close(); err != nil {
		t.Fatalf("nil Close: %v", err)
	}
}

func TestUpsertLaterTimestampWinsRegardlessOfOrder(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	if d := upsert(t, st, t1, release("USABC2400001", "Updated Example Song")); d.Action != store.ActionReplace {
		t.Fatalf("first upsert = %s", d.Action)
	}
	if d := upsert(t, st, t0, release("USABC2400001", "Example Song")); d.Action != store.ActionIgnore {
		t.Fatalf("older upsert = %s", d.Action)
	}
	row := mustGet(t, st, "USABC2400001")
	if row.Release.Title != "Updated Example Song" || !row.MessageTimestamp.Equal(t1) {
		t.Fatalf("stale delivery overwrote row: title=%q ts=%s", row.Release.Title, row.MessageTimestamp)
	}
	if row.Status != store.StatusPublishPending {
		t.Fatalf("status = %s", row.Status)
	}
}

func TestUpsertReplayIsNoop(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	rel := release("USABC2400001", "Example Song")
	upsert(t, st, t0, rel)
	if err := st.RecordSuccess(context.Background(), "USABC2400001", store.EntityRef{Type: store.EntityTrack, ID: "e1"}); err != nil {
		t.Fatal(err)
	}
	if d := upsert(t, st, t0, rel); d.Action != store.ActionIgnore {
		t.Fatalf("replay = %s", d.Action)
	}
	if row := mustGet(t, st, "USABC2400001"); row.Status != store.StatusPublished {
		t.Fatalf("replay changed status to %s", row.Status)
	}
}

func TestUpsertProblemsBlock(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	rel := release("USABC2400001", "Example Song", ddex.ProblemNoDeal)
	rel.Deals = []ddex.Deal{}
	upsert(t, st, t0, rel)

	row := mustGet(t, st, "USABC2400001")
	if row.Status != store.StatusBlocked {
		t.Fatalf("status = %s, want Blocked", row.Status)
	}
	pending, err := st.ListPendingWork(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Fatalf("blocked release listed as pending: %d", len(pending))
	}
}

func TestUpsertPublishedWithoutDealsIsTakedown(t *testing.T) {
	ctx := context.Background()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	upsert(t, st, t0, release("USABC2400001", "Example Song"))
	if err := st.RecordSuccess(ctx, "USABC2400001", store.EntityRef{Type: store.EntityTrack, ID: "e1", BlockHash: "0xabc", BlockNumber: 7}); err != nil {
		t.Fatal(err)
	}

	rel := release("USABC2400001", "Example Song", ddex.ProblemNoDeal)
	rel.Deals = []ddex.Deal{}
	if d := upsert(t, st, t1, rel); d.Action != store.ActionMarkDelete {
		t.Fatalf("deal-less update = %s", d.Action)
	}
	row := mustGet(t, st, "USABC2400001")
	if row.Status != store.StatusDeletePending || row.EntityID != "e1" {
		t.Fatalf("unexpected row after takedown: status=%s entity=%s", row.Status, row.EntityID)
	}
}

func TestReplaceOfDeletedClearsEntity(t *testing.T) {
	ctx := context.Background()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	upsert(t, st, t0, release("USABC2400001", "Example Song"))
	if err := st.RecordSuccess(ctx, "USABC2400001", store.EntityRef{Type: store.EntityTrack, ID: "e1"}); err != nil {
		t.Fatal(err)
	}
	if err := st.RecordDeleted(ctx, "USABC2400001", nil); err != nil {
		t.Fatal(err)
	}
	upsert(t, st, t1, release("USABC2400001", "Example Song (Reissue)"))
	row := mustGet(t, st, "USABC2400001")
	if row.EntityID != "" || row.PublishedAt != nil || row.Status != store.StatusPublishPending {
		t.Fatalf("expected fresh row, got status=%s entity=%q", row.Status, row.EntityID)
	}
}

func TestMarkForDelete(t *testing.T) {
	ctx := context.Background()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	key, d, err := st.MarkForDelete(ctx, store.PurgeInput{Source: "sony", XMLURL: "p", MessageTimestamp: t1, IDs: ddex.ReleaseIDs{ISRC: "USABC2400009"}})
	if err != nil {
		t.Fatal(err)
	}
	if key != "USABC2400009" || d.Action != store.ActionIgnore {
		t.Fatalf("purge of unknown key = %s %s", key, d.Action)
	}
	if row, _ := st.GetRelease(ctx, key); row != nil {
		t.Fatal("purge of unknown key created a row")
	}

	upsert(t, st, t1, release("USABC2400001", "Example Song"))
	if _, d, _ = st.MarkForDelete(ctx, store.PurgeInput{MessageTimestamp: t0, IDs: ddex.ReleaseIDs{ISRC: "USABC2400001"}}); d.Action != store.ActionIgnore {
		t.Fatalf("stale purge = %s", d.Action)
	}
	if _, d, _ = st.MarkForDelete(ctx, store.PurgeInput{MessageTimestamp: t2, IDs: ddex.ReleaseIDs{ISRC: "USABC2400001"}}); d.Action != store.ActionMarkDelete {
		t.Fatalf("purge = %s", d.Action)
	}
	row := mustGet(t, st, "USABC2400001")
	if row.Status != store.StatusDeletePending || !row.MessageTimestamp.Equal(t2) {
		t.Fatalf("unexpected row: status=%s ts=%s", row.Status, row.MessageTimestamp)
	}
}

func TestFailuresStopAtCeiling(t *testing.T) {
	ctx := context.Background()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	upsert(t, st, t0, release("USABC2400001", "Example Song"))

	for i := 1; i <= store.MaxPublishErrors; i++ {
		pending, err := st.ListPendingWork(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(pending) != 1 {
			t.Fatalf("attempt %d: expected release pending, got %d", i, len(pending))
		}
		if err := st.RecordFailure(ctx, "USABC2400001", "boom"); err != nil {
			t.Fatal(err)
		}
	}

	pending, err := st.ListPendingWork(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Fatalf("release still pending after %d failures", store.MaxPublishErrors)
	}
	row := mustGet(t, st, "USABC2400001")
	if row.Status != store.StatusFailed || row.PublishErrorCount != store.MaxPublishErrors || row.LastPublishError != "boom" {
		t.Fatalf("unexpected failure bookkeeping: %+v", row)
	}

	n, err := st.ResetPublishErrors(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("reset %d rows", n)
	}
	if row := mustGet(t, st, "USABC2400001"); row.Status != store.StatusPublishPending || row.PublishErrorCount != 0 {
		t.Fatalf("reset left status=%s count=%d", row.Status, row.PublishErrorCount)
	}
}

func TestFailedDeleteStaysDeletePending(t *testing.T) {
	ctx := context.Background()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	upsert(t, st, t0, release("USABC2400001", "Example Song"))
	if _, _, err := st.MarkForDelete(ctx, store.PurgeInput{MessageTimestamp: t1, IDs: ddex.ReleaseIDs{ISRC: "USABC2400001"}}); err != nil {
		t.Fatal(err)
	}
	if err := st.RecordFailure(ctx, "USABC2400001", "timeout"); err != nil {
		t.Fatal(err)
	}
	if row := mustGet(t, st, "USABC2400001"); row.Status != store.StatusDeletePending || row.PublishErrorCount != 1 {
		t.Fatalf("status=%s count=%d", row.Status, row.PublishErrorCount)
	}
}

func TestRecordOperationsRequireRow(t *testing.T) {
	ctx := context.Background()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	if err := st.RecordFailure(ctx, "missing", "x"); !errors.Is(err, store.ErrReleaseNotFound) {
		t.Fatalf("expected ErrReleaseNotFound, got %v", err)
	}
}

func TestListPendingWorkOrder(t *testing.T) {
	ctx := context.Background()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	for _, in := range []store.UpsertInput{
		{XMLURL: "s3://b/2/a.xml", MessageTimestamp: t0, Release: &ddex.Release{Ref: "R1", IDs: ddex.ReleaseIDs{ISRC: "K3"}, Deals: []ddex.Deal{{Type: ddex.DealFree}}}},
		{XMLURL: "s3://b/1/a.xml", MessageTimestamp: t0, Release: &ddex.Release{Ref: "R2", IDs: ddex.ReleaseIDs{ISRC: "K2"}, Deals: []ddex.Deal{{Type: ddex.DealFree}}}},
		{XMLURL: "s3://b/1/a.xml", MessageTimestamp: t0, Release: &ddex.Release{Ref: "R1", IDs: ddex.ReleaseIDs{ISRC: "K1"}, Deals: []ddex.Deal{{Type: ddex.DealFree}}}},
	} {
		if _, err := st.Upsert(ctx, in); err != nil {
			t.Fatal(err)
		}
	}
	pending, err := st.ListPendingWork(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var keys []string
	for _, row := range pending {
		keys = append(keys, row.Key)
	}
	if len(keys) != 3 || keys[0] != "K1" || keys[1] != "K2" || keys[2] != "K3" {
		t.Fatalf("order = %v", keys)
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats[store.StatusPublishPending] != 3 {
		t.Fatalf("stats = %v", stats)
	}
	rows, err := st.ListReleases(ctx, store.ReleaseFilter{Statuses: []store.Status{store.StatusBlocked}})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Fatalf("unexpected blocked rows: %d", len(rows))
	}
}

func TestConcurrentUpsertsKeepNewest(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ts := t0.Add(time.Duration(i) * time.Minute)
			_, err := st.Upsert(context.Background(), store.UpsertInput{
				Source: "sony", XMLURL: "u", MessageTimestamp: ts, Release: release("USABC2400001", ts.Format(time.RFC3339)),
			})
			if err != nil {
				t.Errorf("Upsert: %v", err)
			}
		}(i)
	}
	wg.Wait()
	want := t0.Add(9 * time.Minute)
	row := mustGet(t, st, "USABC2400001")
	if !row.MessageTimestamp.Equal(want) || row.Release.Title != want.Format(time.RFC3339) {
		t.Fatalf("newest delivery lost: ts=%s title=%s", row.MessageTimestamp, row.Release.Title)
	}
}

func TestXMLLog(t *testing.T) {
	ctx := context.Background()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	doc := []byte("<NewReleaseMessage>hello</NewReleaseMessage>")

	inserted, err := st.AppendXML(ctx, store.XMLRecord{Source: "sony", XMLURL: "s3://b/1/a.xml", XML: doc, MessageTimestamp: &t0})
	if err != nil || !inserted {
		t.Fatalf("AppendXML = %v, %v", inserted, err)
	}
	inserted, err = st.AppendXML(ctx, store.XMLRecord{Source: "sony", XMLURL: "s3://b/1/a.xml", XML: doc})
	if err != nil || inserted {
		t.Fatalf("duplicate AppendXML = %v, %v", inserted, err)
	}

	rec, err := st.GetXML(ctx, "s3://b/1/a.xml")
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil || string(rec.XML) != string(doc) || rec.MessageTimestamp == nil || !rec.MessageTimestamp.Equal(t0) {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if missing, err := st.GetXML(ctx, "nope"); err != nil || missing != nil {
		t.Fatalf("GetXML(missing) = %v, %v", missing, err)
	}

	list, err := st.ListXML(ctx, store.XMLFilter{Source: "sony"})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].XML != nil || list[0].Size != int64(len(doc)) {
		t.Fatalf("unexpected listing: %+v", list)
	}
}

func TestMarkersAdvanceMonotonically(t *testing.T) {
	ctx := context.Background()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	if m, err := st.GetMarker(ctx, "bucket"); err != nil || m != "" {
		t.Fatalf("initial marker = %q, %v", m, err)
	}
	if moved, err := st.AdvanceMarker(ctx, "bucket", "20240102/"); err != nil || !moved {
		t.Fatalf("advance = %v, %v", moved, err)
	}
	if moved, err := st.AdvanceMarker(ctx, "bucket", "20240101/"); err != nil || moved {
		t.Fatalf("rewind = %v, %v", moved, err)
	}
	if m, _ := st.GetMarker(ctx, "bucket"); m != "20240102/" {
		t.Fatalf("marker = %q", m)
	}
	if err := st.ResetMarker(ctx, "bucket"); err != nil {
		t.Fatal(err)
	}
	if m, _ := st.GetMarker(ctx, "bucket"); m != "" {
		t.Fatalf("marker after reset = %q", m)
	}
}

func TestUsersAndKV(t *testing.T) {
	ctx := context.Background()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	testsupport.AddUser(t, st, "k1", "u1", "Example Artist")
	testsupport.AddUser(t, st, "k2", "u2", "Other")
	if err := st.AddUser(ctx, users.Entry{APIKey: "k1", ID: "u1", Handle: "ex", Name: "Example Artist Renamed"}); err != nil {
		t.Fatal(err)
	}
	dir, err := st.ListUsers(ctx, "k1")
	if err != nil {
		t.Fatal(err)
	}
	if len(dir) != 1 || dir[0].Name != "Example Artist Renamed" {
		t.Fatalf("directory = %+v", dir)
	}
	if removed, err := st.RemoveUser(ctx, "k2", "u2"); err != nil || !removed {
		t.Fatalf("RemoveUser = %v, %v", removed, err)
	}

	if _, ok, err := st.KVGet(ctx, "k"); err != nil || ok {
		t.Fatalf("KVGet on missing key = %v %v", ok, err)
	}
	if err := st.KVSet(ctx, "k", "v"); err != nil {
		t.Fatal(err)
	}
	if v, ok, err := st.KVGet(ctx, "k"); err != nil || !ok || v != "v" {
		t.Fatalf("KVGet = %q %v %v", v, ok, err)
	}
}
