package prune

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/tberndt/dbprune/pkg/blob"
	"github.com/tberndt/dbprune/pkg/db"
	"github.com/tberndt/dbprune/pkg/models"
)

type testSink struct {
	infos   []string
	headers []string
	details []string
}

func (s *testSink) Info(msg string)    { s.infos = append(s.infos, msg) }
func (s *testSink) Header(name string) { s.headers = append(s.headers, name) }
func (s *testSink) Detail(name, value string) {
	s.details = append(s.details, name+" | "+value)
}

type testEvents struct {
	starting [][]string
	pruned   []string
	finished [][]string
}

func (e *testEvents) events() Events {
	return Events{
		Starting: func(names []string) { e.starting = append(e.starting, names) },
		Pruned: func(model string, count int64) {
			e.pruned = append(e.pruned, fmt.Sprintf("%s=%d", model, count))
		},
		Finished: func(names []string) { e.finished = append(e.finished, names) },
	}
}

type fakeStore struct {
	keys []string
	fail bool
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	if f.fail {
		return errors.New("blob store unavailable")
	}
	f.keys = append(f.keys, key)
	return nil
}

func newRunDB(t *testing.T) *db.DB {
	t.Helper()

	conn, err := db.NewDB(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	// an in-memory database exists per connection
	conn.SetMaxOpenConns(1)

	if err := conn.InitDB(); err != nil {
		t.Fatalf("init database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func newRunRegistry(t *testing.T, store *fakeStore) *models.Registry {
	t.Helper()
	var deleter blob.Deleter
	if store != nil {
		deleter = store
	}
	reg, err := models.DefaultRegistry(models.Config{}, deleter)
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func seedSession(t *testing.T, conn *db.DB, expires time.Time) {
	t.Helper()
	_, err := conn.Exec(
		`INSERT INTO sessions (token, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		"tok", 1, time.Now().UTC(), expires.UTC(),
	)
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}
}

func seedAuditEvent(t *testing.T, conn *db.DB, occurred time.Time) {
	t.Helper()
	_, err := conn.Exec(
		`INSERT INTO audit_events (actor, action, occurred_at) VALUES (?, ?, ?)`,
		"tester", "login", occurred.UTC(),
	)
	if err != nil {
		t.Fatalf("seed audit event: %v", err)
	}
}

func seedUpload(t *testing.T, conn *db.DB, key string, expires time.Time, trashed bool) {
	t.Helper()
	var deleted any
	if trashed {
		deleted = time.Now().UTC()
	}
	_, err := conn.Exec(
		`INSERT INTO uploads (object_key, size_bytes, created_at, expires_at, deleted_at) VALUES (?, ?, ?, ?, ?)`,
		key, 2048, time.Now().UTC(), expires.UTC(), deleted,
	)
	if err != nil {
		t.Fatalf("seed upload: %v", err)
	}
}

func countRows(t *testing.T, conn *db.DB, table string) int64 {
	t.Helper()
	n, err := conn.CountWhere(context.Background(), table, "1=1")
	if err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestRunEmptyCandidatesShortCircuits(t *testing.T) {
	conn := newRunDB(t)
	reg := newRunRegistry(t, nil)
	sink := &testSink{}
	ev := &testEvents{}

	opts := Options{Dir: filepath.Join(t.TempDir(), "missing")}
	if err := Run(context.Background(), conn, reg, opts, sink, ev.events()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(sink.infos) != 1 || sink.infos[0] != "No prunable models found." {
		t.Fatalf("unexpected output: %v", sink.infos)
	}
	if len(ev.starting) != 0 || len(ev.finished) != 0 {
		t.Fatalf("expected no broadcasts for an empty candidate set")
	}
}

func TestRunPrunesScannedModelEndToEnd(t *testing.T) {
	conn := newRunDB(t)
	reg := newRunRegistry(t, nil)
	sink := &testSink{}
	ev := &testEvents{}

	dir := t.TempDir()
	writeModelFile(t, dir, "sessions.sql")

	now := time.Now()
	seedSession(t, conn, now.Add(-time.Hour))
	seedSession(t, conn, now.Add(-time.Hour))
	seedSession(t, conn, now.Add(-time.Hour))
	seedSession(t, conn, now.Add(time.Hour))

	opts := Options{Dir: dir, Chunk: 1000}
	if err := Run(context.Background(), conn, reg, opts, sink, ev.events()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if left := countRows(t, conn, "sessions"); left != 1 {
		t.Fatalf("expected 1 remaining session, got %d", left)
	}
	if len(sink.headers) != 1 || sink.headers[0] != "sessions" {
		t.Fatalf("unexpected headers: %v", sink.headers)
	}
	if len(sink.details) != 1 || sink.details[0] != "sessions | 3 records" {
		t.Fatalf("unexpected details: %v", sink.details)
	}
	if len(ev.starting) != 1 || len(ev.starting[0]) != 1 || ev.starting[0][0] != "sessions" {
		t.Fatalf("unexpected starting broadcast: %v", ev.starting)
	}
	if len(ev.finished) != 1 || len(ev.finished[0]) != 1 || ev.finished[0][0] != "sessions" {
		t.Fatalf("unexpected finished broadcast: %v", ev.finished)
	}
	if len(ev.pruned) != 1 || ev.pruned[0] != "sessions=3" {
		t.Fatalf("unexpected pruned events: %v", ev.pruned)
	}
}

func TestRunDescriptorChunkOverridesGlobal(t *testing.T) {
	conn := newRunDB(t)
	reg := newRunRegistry(t, nil)
	sink := &testSink{}
	ev := &testEvents{}

	now := time.Now()
	for i := 0; i < 600; i++ {
		seedSession(t, conn, now.Add(-time.Hour))
	}

	// sessions declares a chunk override of 500; a tiny global chunk
	// must not shrink its batches.
	opts := Options{Models: []string{"sessions"}, Chunk: 10}
	if err := Run(context.Background(), conn, reg, opts, sink, ev.events()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(ev.pruned) != 2 || ev.pruned[0] != "sessions=500" || ev.pruned[1] != "sessions=100" {
		t.Fatalf("unexpected batches: %v", ev.pruned)
	}
	if left := countRows(t, conn, "sessions"); left != 0 {
		t.Fatalf("expected all sessions pruned, got %d left", left)
	}
}

func TestRunGlobalChunkAndSingleHeader(t *testing.T) {
	conn := newRunDB(t)
	reg := newRunRegistry(t, nil)
	sink := &testSink{}
	ev := &testEvents{}

	now := time.Now()
	for i := 0; i < 5; i++ {
		seedAuditEvent(t, conn, now.Add(-100*24*time.Hour))
	}

	opts := Options{Models: []string{"audit_events"}, Chunk: 2}
	if err := Run(context.Background(), conn, reg, opts, sink, ev.events()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(sink.headers) != 1 || sink.headers[0] != "audit_events" {
		t.Fatalf("expected a single header, got %v", sink.headers)
	}
	if len(sink.details) != 3 {
		t.Fatalf("expected 3 detail lines, got %v", sink.details)
	}
	if len(ev.pruned) != 3 || ev.pruned[0] != "audit_events=2" || ev.pruned[2] != "audit_events=1" {
		t.Fatalf("unexpected batches: %v", ev.pruned)
	}
}

func TestRunReportsZeroDeletions(t *testing.T) {
	conn := newRunDB(t)
	reg := newRunRegistry(t, nil)
	sink := &testSink{}

	seedSession(t, conn, time.Now().Add(time.Hour))

	opts := Options{Models: []string{"sessions", "monthly_rollups"}}
	if err := Run(context.Background(), conn, reg, opts, sink, Events{}); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(sink.headers) != 0 {
		t.Fatalf("expected no headers, got %v", sink.headers)
	}
	want := []string{
		"No prunable sessions records found.",
		"No prunable monthly_rollups records found.",
	}
	if len(sink.infos) != 2 || sink.infos[0] != want[0] || sink.infos[1] != want[1] {
		t.Fatalf("unexpected output: %v", sink.infos)
	}
}

func TestRunFailFastSkipsRemainingModels(t *testing.T) {
	conn := newRunDB(t)
	store := &fakeStore{fail: true}
	reg := newRunRegistry(t, store)
	sink := &testSink{}
	ev := &testEvents{}

	now := time.Now()
	seedUpload(t, conn, "a.bin", now.Add(-time.Hour), false)
	seedSession(t, conn, now.Add(-time.Hour))

	opts := Options{Models: []string{"uploads", "sessions"}}
	err := Run(context.Background(), conn, reg, opts, sink, ev.events())
	if err == nil {
		t.Fatalf("expected blob failure to abort the run")
	}

	if left := countRows(t, conn, "sessions"); left != 1 {
		t.Fatalf("expected later models untouched, %d sessions left", left)
	}
	if len(ev.finished) != 0 {
		t.Fatalf("expected no finished broadcast after a failure")
	}
}

func TestRunUploadsDeletesBlobsAndSkipsTrashed(t *testing.T) {
	conn := newRunDB(t)
	store := &fakeStore{}
	reg := newRunRegistry(t, store)
	sink := &testSink{}

	now := time.Now()
	seedUpload(t, conn, "live.bin", now.Add(-time.Hour), false)
	seedUpload(t, conn, "trashed.bin", now.Add(-time.Hour), true)

	opts := Options{Models: []string{"uploads"}}
	if err := Run(context.Background(), conn, reg, opts, sink, Events{}); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(store.keys) != 1 || store.keys[0] != "live.bin" {
		t.Fatalf("unexpected blob deletions: %v", store.keys)
	}
	if left := countRows(t, conn, "uploads"); left != 1 {
		t.Fatalf("expected the soft-deleted row to survive, %d rows left", left)
	}
	if len(sink.details) != 1 || sink.details[0] != "uploads | 1 records" {
		t.Fatalf("unexpected details: %v", sink.details)
	}
}

func TestPretendCountsWithoutDeleting(t *testing.T) {
	conn := newRunDB(t)
	store := &fakeStore{}
	reg := newRunRegistry(t, store)
	sink := &testSink{}
	ev := &testEvents{}

	now := time.Now()
	seedUpload(t, conn, "live.bin", now.Add(-time.Hour), false)
	seedUpload(t, conn, "trashed.bin", now.Add(-time.Hour), true)
	seedUpload(t, conn, "fresh.bin", now.Add(time.Hour), false)

	opts := Options{Models: []string{"uploads"}, Pretend: true}
	if err := Run(context.Background(), conn, reg, opts, sink, ev.events()); err != nil {
		t.Fatalf("run: %v", err)
	}

	// Soft-deleted rows count toward the pretend total.
	if len(sink.infos) != 1 || sink.infos[0] != "2 uploads records will be pruned." {
		t.Fatalf("unexpected output: %v", sink.infos)
	}
	if left := countRows(t, conn, "uploads"); left != 3 {
		t.Fatalf("expected no deletions in pretend mode, %d rows left", left)
	}
	if len(store.keys) != 0 {
		t.Fatalf("expected no blob deletions in pretend mode, got %v", store.keys)
	}
	if len(ev.starting) != 0 || len(ev.finished) != 0 {
		t.Fatalf("expected no broadcasts in pretend mode")
	}
}

func TestPretendReportsZero(t *testing.T) {
	conn := newRunDB(t)
	reg := newRunRegistry(t, nil)
	sink := &testSink{}

	opts := Options{Models: []string{"sessions"}, Pretend: true}
	if err := Run(context.Background(), conn, reg, opts, sink, Events{}); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(sink.infos) != 1 || sink.infos[0] != "No prunable sessions records found." {
		t.Fatalf("unexpected output: %v", sink.infos)
	}
}
