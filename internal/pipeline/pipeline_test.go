package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"majdl/internal/config"
	"majdl/internal/ledger"
	"majdl/internal/lobby"
	"majdl/internal/logging"
	"majdl/internal/recordstore"
	"majdl/internal/services"
	"majdl/internal/testsupport"
)

type stubSession struct {
	ids       []string
	blob      []byte
	fetchErr  map[string]error
	listCalls [][2]int
	fetched   []string
	closed    bool
}

func (s *stubSession) ListRecords(_ context.Context, start, count int) ([]string, error) {
	s.listCalls = append(s.listCalls, [2]int{start, count})
	from := start - 1
	if from >= len(s.ids) {
		return nil, nil
	}
	to := min(from+count, len(s.ids))
	return append([]string(nil), s.ids[from:to]...), nil
}

func (s *stubSession) FetchRecord(_ context.Context, id string) (lobby.GameRecord, error) {
	s.fetched = append(s.fetched, id)
	if err := s.fetchErr[id]; err != nil {
		return lobby.GameRecord{}, err
	}
	body := fmt.Sprintf(`{"head":{"uuid":%q,"startTime":1700000000},"data":%q}`, id, base64.StdEncoding.EncodeToString(s.blob))
	return lobby.GameRecord{ID: id, JSON: []byte(body), Raw: []byte("raw-" + id)}, nil
}

func (s *stubSession) Close() error {
	s.closed = true
	return nil
}

func recordIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("231001-%04d", i)
	}
	return ids
}

func newTestPipeline(t *testing.T, cfg *config.Config) (*Pipeline, *recordstore.Store) {
	t.Helper()

	store, err := recordstore.New(cfg.Paths.OutputDir, cfg.Paths.RawDir)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	p, err := New(Options{
		Store:    store,
		Ledger:   ledger.New(cfg.Paths.MemoizeFile, logging.NewNop()),
		Logger:   logging.NewNop(),
		PageSize: cfg.Download.PageSize,
		Start:    cfg.Download.Start,
	})
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	return p, store
}

func TestRunPaginatesUntilShortPage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	p, store := newTestPipeline(t, cfg)
	session := &stubSession{ids: recordIDs(42), blob: testsupport.DetailBlob(t, testsupport.SampleActions()...)}

	report, err := p.Run(context.Background(), session)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if diff := cmp.Diff([][2]int{{1, 30}, {31, 30}}, session.listCalls); diff != "" {
		t.Fatalf("list calls (-want +got):\n%s", diff)
	}
	if report.Pages != 2 || report.Listed != 42 || report.Fetched != 42 || report.Decoded != 42 {
		t.Fatalf("unexpected report %+v", report)
	}
	if !session.closed {
		t.Fatal("session not closed")
	}
	ids, err := store.IDs()
	if err != nil {
		t.Fatalf("ids: %v", err)
	}
	if len(ids) != 42 {
		t.Fatalf("stored %d documents, want 42", len(ids))
	}

	doc := testsupport.ReadDocument(t, cfg.Paths.OutputDir, ids[0])
	details, ok := doc["details"].([]any)
	if !ok || len(details) != len(testsupport.SampleActions()) {
		t.Fatalf("details = %#v", doc["details"])
	}
	first := details[0].(map[string]any)
	if first["@type"] != "RecordNewRound" {
		t.Fatalf("first entry type = %v", first["@type"])
	}
}

func TestRunFullPageThenEmptyPage(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPageSize(5))
	p, _ := newTestPipeline(t, cfg)
	session := &stubSession{ids: recordIDs(10), blob: testsupport.DetailBlob(t)}

	report, err := p.Run(context.Background(), session)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(session.listCalls) != 3 || report.Listed != 10 {
		t.Fatalf("list calls %v, listed %d", session.listCalls, report.Listed)
	}
}

func TestRunNeverFetchesMemoizedRecords(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMemoizeFile())
	if err := os.WriteFile(cfg.Paths.MemoizeFile, []byte("231001-0001\n"), 0o644); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}
	p, store := newTestPipeline(t, cfg)
	session := &stubSession{ids: recordIDs(3), blob: testsupport.DetailBlob(t, testsupport.SampleActions()...)}

	report, err := p.Run(context.Background(), session)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, id := range session.fetched {
		if id == "231001-0001" {
			t.Fatal("memoized record was fetched")
		}
	}
	if store.Exists("231001-0001") {
		t.Fatal("memoized record should stay absent")
	}
	if report.SkippedMemoized != 1 || report.Fetched != 2 || report.Failed() != 0 {
		t.Fatalf("unexpected report %+v", report)
	}

	data := string(testsupport.ReadBytes(t, cfg.Paths.MemoizeFile))
	if data != "231001-0001\n231001-0000\n231001-0002\n" {
		t.Fatalf("ledger contents = %q", data)
	}
}

func TestRunSkipsExistingDocuments(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := testsupport.WriteDocument(t, cfg.Paths.OutputDir, "231001-0000", map[string]any{"head": map[string]any{"uuid": "231001-0000"}})
	p, _ := newTestPipeline(t, cfg)
	session := &stubSession{ids: recordIDs(1), blob: testsupport.DetailBlob(t)}

	report, err := p.Run(context.Background(), session)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(session.fetched) != 0 || report.SkippedExisting != 1 {
		t.Fatalf("existing document refetched: %v", session.fetched)
	}
	if report.MissingSource != 1 {
		t.Fatalf("missing source = %d, want 1", report.MissingSource)
	}
	if _, ok := testsupport.ReadDocument(t, cfg.Paths.OutputDir, "231001-0000")["data"]; ok {
		t.Fatalf("document %s gained data without a source", path)
	}
}

func TestRunWritesRawDumps(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRawDir())
	p, _ := newTestPipeline(t, cfg)
	session := &stubSession{ids: recordIDs(1), blob: testsupport.DetailBlob(t)}

	if _, err := p.Run(context.Background(), session); err != nil {
		t.Fatalf("run: %v", err)
	}
	raw := testsupport.ReadBytes(t, filepath.Join(cfg.Paths.RawDir, "231001-0000.pb"))
	if string(raw) != "raw-231001-0000" {
		t.Fatalf("raw dump = %q", raw)
	}
}

func TestRunTransportFailureHalts(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMemoizeFile())
	p, store := newTestPipeline(t, cfg)
	ids := recordIDs(3)
	session := &stubSession{
		ids:  ids,
		blob: testsupport.DetailBlob(t),
		fetchErr: map[string]error{
			ids[1]: services.Wrap(services.ErrTransport, "rpc", "fetchGameRecord", "connection reset", nil),
		},
	}

	_, err := p.Run(context.Background(), session)
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if diff := cmp.Diff(ids[:2], session.fetched); diff != "" {
		t.Fatalf("fetched (-want +got):\n%s", diff)
	}
	if !store.Exists(ids[0]) || store.Exists(ids[1]) {
		t.Fatal("completed record should persist and the failed one should not")
	}
	if !session.closed {
		t.Fatal("session should be closed after a halt")
	}
	if got := string(testsupport.ReadBytes(t, cfg.Paths.MemoizeFile)); got != ids[0]+"\n" {
		t.Fatalf("ledger = %q", got)
	}
}

func TestRunReportsInvalidListedIDOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	p, store := newTestPipeline(t, cfg)
	ids := recordIDs(2)
	session := &stubSession{
		ids:  []string{ids[0], "../escape", ids[1]},
		blob: testsupport.DetailBlob(t, testsupport.SampleActions()...),
	}

	report, err := p.Run(context.Background(), session)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if report.Failed() != 1 {
		t.Fatalf("failures = %v, want exactly one", report.Failures)
	}
	if got := report.Failures[0]; got.ID != "../escape" || got.Stage != recordstore.StageListed {
		t.Fatalf("failure = %+v", got)
	}
	if diff := cmp.Diff(ids, session.fetched); diff != "" {
		t.Fatalf("fetched (-want +got):\n%s", diff)
	}
	if report.Listed != 2 || report.Fetched != 2 || report.Decoded != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	stored, err := store.IDs()
	if err != nil {
		t.Fatalf("ids: %v", err)
	}
	if diff := cmp.Diff(ids, stored); diff != "" {
		t.Fatalf("stored ids (-want +got):\n%s", diff)
	}
}

func TestDecodeExistingFetchesDataURL(t *testing.T) {
	blob := testsupport.DetailBlob(t, testsupport.SampleActions()...)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(blob)
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t)
	url := srv.URL + "/detail/abc"
	testsupport.WriteDocument(t, cfg.Paths.OutputDir, "abc", map[string]any{"dataUrl": url})
	p, _ := newTestPipeline(t, cfg)

	report, err := p.DecodeExisting(context.Background())
	if err != nil {
		t.Fatalf("decode existing: %v", err)
	}
	if report.Detailed != 1 || report.Decoded != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	doc := testsupport.ReadDocument(t, cfg.Paths.OutputDir, "abc")
	if doc["data"] != base64.StdEncoding.EncodeToString(blob) {
		t.Fatalf("data = %v", doc["data"])
	}
	if doc["dataUrl"] != url {
		t.Fatalf("dataUrl should be kept, got %v", doc["dataUrl"])
	}
	if _, ok := doc["details"]; !ok {
		t.Fatal("details missing")
	}
}

func TestDecodeExistingEnvelopeMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	blob := testsupport.ContainerBlob(t, ".lq.WrongType")
	testsupport.WriteDocument(t, cfg.Paths.OutputDir, "bad", map[string]any{"data": base64.StdEncoding.EncodeToString(blob)})
	testsupport.WriteDocument(t, cfg.Paths.OutputDir, "good", map[string]any{
		"data": base64.StdEncoding.EncodeToString(testsupport.DetailBlob(t, testsupport.SampleActions()...)),
	})
	p, _ := newTestPipeline(t, cfg)

	report, err := p.DecodeExisting(context.Background())
	if !errors.Is(err, services.ErrEnvelopeMismatch) {
		t.Fatalf("expected envelope mismatch, got %v", err)
	}
	if report.Failed() != 1 || report.Failures[0].ID != "bad" || report.Decoded != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if _, ok := testsupport.ReadDocument(t, cfg.Paths.OutputDir, "bad")["details"]; ok {
		t.Fatal("details written for mismatched envelope")
	}
}

func TestDecodeExistingIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := testsupport.WriteDocument(t, cfg.Paths.OutputDir, "abc", map[string]any{
		"head": map[string]any{"uuid": "abc"},
		"data": base64.StdEncoding.EncodeToString(testsupport.DetailBlob(t, testsupport.SampleActions()...)),
	})
	p, _ := newTestPipeline(t, cfg)

	if _, err := p.DecodeExisting(context.Background()); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	first := testsupport.ReadBytes(t, path)
	report, err := p.DecodeExisting(context.Background())
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if report.AlreadyDecoded != 1 || report.Decoded != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if diff := cmp.Diff(string(first), string(testsupport.ReadBytes(t, path))); diff != "" {
		t.Fatalf("second pass changed the document (-first +second):\n%s", diff)
	}
}

func TestDecodeExistingInvalidBase64(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteDocument(t, cfg.Paths.OutputDir, "abc", map[string]any{"data": "%%%"})
	p, _ := newTestPipeline(t, cfg)

	report, err := p.DecodeExisting(context.Background())
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if report.Failed() != 1 {
		t.Fatalf("failed = %d", report.Failed())
	}
}

func TestRunLockRejectsConcurrentRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	lock, err := AcquireLock(cfg.Paths.OutputDir)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer lock.Release()

	p, _ := newTestPipeline(t, cfg)
	if _, err := p.DecodeExisting(context.Background()); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	if _, err := New(Options{PageSize: 30}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("missing store: %v", err)
	}
	store, err := recordstore.New(t.TempDir(), "")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, err := New(Options{Store: store}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("zero page size: %v", err)
	}
}
