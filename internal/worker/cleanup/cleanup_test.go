package cleanup

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeResult struct {
	rowsAffected int64
	err          error
}

func (r *fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r *fakeResult) RowsAffected() (int64, error) { return r.rowsAffected, r.err }

// mockExecutor は実行されたクエリを記録し、呼び出し順に結果を返す。
type mockExecutor struct {
	mu      sync.Mutex
	queries []string
	results []sql.Result
	errs    []error
}

func (m *mockExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := len(m.queries)
	m.queries = append(m.queries, query)

	var err error
	if i < len(m.errs) {
		err = m.errs[i]
	}
	if err != nil {
		return nil, err
	}
	if i < len(m.results) {
		return m.results[i], nil
	}
	return &fakeResult{}, nil
}

func (m *mockExecutor) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queries)
}

type recordingMetrics struct {
	calls      int
	orphanTags int64
	categories int64
}

func (r *recordingMetrics) RecordCleanup(orphanTags, danglingCategories int64) {
	r.calls++
	r.orphanTags = orphanTags
	r.categories = danglingCategories
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestOrphanCleanupJob_Run_ExecutesBothStatements(t *testing.T) {
	var buf bytes.Buffer
	db := &mockExecutor{
		results: []sql.Result{&fakeResult{rowsAffected: 3}, &fakeResult{rowsAffected: 2}},
	}
	metrics := &recordingMetrics{}
	job := NewOrphanCleanupJob(db, metrics, newTestLogger(&buf))

	res, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	if len(db.queries) != 2 {
		t.Fatalf("queries = %d, want 2", len(db.queries))
	}
	if !strings.Contains(db.queries[0], "DELETE FROM blog_post_tags") {
		t.Errorf("first query should delete orphan tag rows: %s", db.queries[0])
	}
	if !strings.Contains(db.queries[1], "SET category_id = NULL") {
		t.Errorf("second query should clear dangling categories: %s", db.queries[1])
	}

	if res.OrphanPostTags != 3 || res.DanglingCategories != 2 {
		t.Errorf("result = %+v, want 3/2", res)
	}
	if metrics.calls != 1 || metrics.orphanTags != 3 || metrics.categories != 2 {
		t.Errorf("metrics = %+v", metrics)
	}
}

func TestOrphanCleanupJob_Run_LogsCounts(t *testing.T) {
	var buf bytes.Buffer
	db := &mockExecutor{
		results: []sql.Result{&fakeResult{rowsAffected: 7}, &fakeResult{rowsAffected: 0}},
	}
	job := NewOrphanCleanupJob(db, nil, newTestLogger(&buf))

	if _, err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	found := false
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if entry["orphan_post_tags"] == float64(7) && entry["dangling_categories"] == float64(0) {
			found = true
		}
	}
	if !found {
		t.Errorf("completion log not found: %s", buf.String())
	}
}

func TestOrphanCleanupJob_Run_IdempotentWhenNothingToClean(t *testing.T) {
	var buf bytes.Buffer
	db := &mockExecutor{}
	metrics := &recordingMetrics{}
	job := NewOrphanCleanupJob(db, metrics, newTestLogger(&buf))

	for i := 0; i < 2; i++ {
		res, err := job.Run(context.Background())
		if err != nil {
			t.Fatalf("run %d returned error: %v", i, err)
		}
		if res != (Result{}) {
			t.Errorf("run %d: result = %+v, want zero", i, res)
		}
	}
	if metrics.calls != 2 {
		t.Errorf("metrics calls = %d, want 2", metrics.calls)
	}
}

func TestOrphanCleanupJob_Run_StopsOnFirstFailure(t *testing.T) {
	var buf bytes.Buffer
	db := &mockExecutor{errs: []error{sql.ErrConnDone}}
	metrics := &recordingMetrics{}
	job := NewOrphanCleanupJob(db, metrics, newTestLogger(&buf))

	_, err := job.Run(context.Background())
	if !errors.Is(err, sql.ErrConnDone) {
		t.Fatalf("err = %v, want wrapped sql.ErrConnDone", err)
	}
	if len(db.queries) != 1 {
		t.Errorf("queries = %d, want 1", len(db.queries))
	}
	if metrics.calls != 0 {
		t.Error("metrics should not be recorded on failure")
	}
	if !strings.Contains(buf.String(), `"level":"ERROR"`) {
		t.Errorf("expected error log: %s", buf.String())
	}
}

func TestOrphanCleanupJob_Run_CategoryFailureKeepsTagCount(t *testing.T) {
	var buf bytes.Buffer
	db := &mockExecutor{
		results: []sql.Result{&fakeResult{rowsAffected: 4}},
		errs:    []error{nil, errors.New("permission denied")},
	}
	job := NewOrphanCleanupJob(db, nil, newTestLogger(&buf))

	res, err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if res.OrphanPostTags != 4 {
		t.Errorf("OrphanPostTags = %d, want 4", res.OrphanPostTags)
	}
}

func TestOrphanCleanupJob_Run_RowsAffectedFailure(t *testing.T) {
	var buf bytes.Buffer
	db := &mockExecutor{
		results: []sql.Result{&fakeResult{err: errors.New("driver does not support RowsAffected")}},
	}
	job := NewOrphanCleanupJob(db, nil, newTestLogger(&buf))

	if _, err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestOrphanCleanupJob_Start_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	db := &mockExecutor{}
	job := NewOrphanCleanupJob(db, nil, slog.New(slog.NewJSONHandler(&buf, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, time.Hour)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for db.calls() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if db.calls() < 2 {
		t.Fatalf("initial run did not execute both statements: %d", db.calls())
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
