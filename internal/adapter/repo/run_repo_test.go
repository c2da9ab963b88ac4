package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"expressionpanel/internal/domain"
	"expressionpanel/internal/sqlinline"
)

type execCall struct {
	query string
	args  []any
}

type stubExecutor struct {
	execs   []execCall
	execTag pgconn.CommandTag
	execErr error
	row     pgx.Row
	rows    pgx.Rows
	queries []execCall
}

func (s *stubExecutor) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.execs = append(s.execs, execCall{query: query, args: args})
	return s.execTag, s.execErr
}

func (s *stubExecutor) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	s.queries = append(s.queries, execCall{query: query, args: args})
	return s.row
}

func (s *stubExecutor) Query(_ context.Context, query string, args ...any) (pgx.Rows, error) {
	s.queries = append(s.queries, execCall{query: query, args: args})
	return s.rows, nil
}

type rowFunc func(dest ...any) error

func (f rowFunc) Scan(dest ...any) error { return f(dest...) }

// runValues fills Scan destinations in the column order of the run queries.
func runValues(id string, status string, output string, completed *time.Time) rowFunc {
	return func(dest ...any) error {
		if len(dest) != 10 {
			return fmt.Errorf("scan: got %d destinations", len(dest))
		}
		*dest[0].(*string) = id
		*dest[1].(*string) = "pred-" + id[:4]
		*dest[2].(*string) = status
		*dest[3].(*[]byte) = []byte(`{"image":"x"}`)
		*dest[4].(*[]byte) = []byte(output)
		*dest[5].(*string) = ""
		*dest[6].(*string) = ""
		*dest[7].(*int) = 3
		*dest[8].(*time.Time) = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
		*dest[9].(**time.Time) = completed
		return nil
	}
}

type fakeRows struct {
	rows []rowFunc
	idx  int
	err  error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, errors.New("not supported") }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	return r.rows[r.idx-1](dest...)
}

func TestCreateAssignsDefaults(t *testing.T) {
	db := &stubExecutor{execTag: pgconn.NewCommandTag("INSERT 0 1")}
	repo := NewRunRepository(db)

	run := &domain.Run{Input: []byte(`{"image":"https://a/b.png"}`)}
	if err := repo.Create(context.Background(), run); err != nil {
		t.Fatalf("create: %v", err)
	}
	if run.ID == "" || run.CreatedAt.IsZero() || run.Status != domain.RunStatusSubmitted {
		t.Fatalf("defaults not applied: %+v", run)
	}
	if len(db.execs) != 1 || db.execs[0].query != sqlinline.QRunInsert {
		t.Fatalf("unexpected exec calls: %+v", db.execs)
	}
	if got := db.execs[0].args[3]; got != `{"image":"https://a/b.png"}` {
		t.Fatalf("input arg = %v", got)
	}
}

func TestCreateNilInputIsNull(t *testing.T) {
	db := &stubExecutor{}
	if err := NewRunRepository(db).Create(context.Background(), &domain.Run{}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if db.execs[0].args[3] != nil {
		t.Fatalf("empty input should be sent as NULL")
	}
}

func TestCompleteMissingRun(t *testing.T) {
	db := &stubExecutor{execTag: pgconn.NewCommandTag("UPDATE 0")}
	err := NewRunRepository(db).Complete(context.Background(), &domain.Run{ID: "7a0c2b52-0c4e-4f43-8a4d-2f3c1a9f8e11", Status: domain.RunStatusFailed})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCompleteSetsCompletedAt(t *testing.T) {
	db := &stubExecutor{execTag: pgconn.NewCommandTag("UPDATE 1")}
	run := &domain.Run{ID: "7a0c2b52-0c4e-4f43-8a4d-2f3c1a9f8e11", Status: domain.RunStatusSucceeded, Output: []byte(`"x"`), Polls: 2}
	if err := NewRunRepository(db).Complete(context.Background(), run); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if run.CompletedAt == nil {
		t.Fatalf("completed_at not set")
	}
	call := db.execs[0]
	if call.query != sqlinline.QRunComplete || call.args[1] != "succeeded" || call.args[3] != `"x"` || call.args[6] != 2 {
		t.Fatalf("unexpected complete call: %+v", call)
	}
}

func TestGet(t *testing.T) {
	id := "7a0c2b52-0c4e-4f43-8a4d-2f3c1a9f8e11"
	done := time.Date(2024, 5, 1, 10, 0, 5, 0, time.UTC)
	db := &stubExecutor{row: runValues(id, "succeeded", `["https://a/1.png"]`, &done)}

	run, err := NewRunRepository(db).Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if run.ID != id || run.Status != domain.RunStatusSucceeded || run.Polls != 3 {
		t.Fatalf("unexpected run: %+v", run)
	}
	if string(run.Output) != `["https://a/1.png"]` || run.CompletedAt == nil || !run.CompletedAt.Equal(done) {
		t.Fatalf("unexpected output/completion: %s %v", run.Output, run.CompletedAt)
	}
}

func TestGetNotFound(t *testing.T) {
	db := &stubExecutor{row: rowFunc(func(...any) error { return pgx.ErrNoRows })}
	repo := NewRunRepository(db)
	if _, err := repo.Get(context.Background(), "7a0c2b52-0c4e-4f43-8a4d-2f3c1a9f8e11"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := repo.Get(context.Background(), "not-a-uuid"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound for malformed id", err)
	}
	if len(db.queries) != 1 {
		t.Fatalf("malformed id should not reach the database")
	}
}

func TestListClampsLimit(t *testing.T) {
	rows := &fakeRows{rows: []rowFunc{
		runValues("11111111-1111-4111-8111-111111111111", "succeeded", `"a"`, nil),
		runValues("22222222-2222-4222-8222-222222222222", "failed", `null`, nil),
	}}
	db := &stubExecutor{rows: rows}

	runs, err := NewRunRepository(db).List(context.Background(), 500, -3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 || runs[1].Status != domain.RunStatusFailed {
		t.Fatalf("unexpected runs: %+v", runs)
	}
	args := db.queries[0].args
	if args[0] != maxListLimit || args[1] != 0 {
		t.Fatalf("limit/offset = %v/%v", args[0], args[1])
	}
}

func TestEnsureSchema(t *testing.T) {
	db := &stubExecutor{}
	if err := NewRunRepository(db).EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if len(db.execs) != 2 || !strings.Contains(db.execs[0].query, "create table if not exists prediction_runs") {
		t.Fatalf("unexpected schema statements: %+v", db.execs)
	}

	db = &stubExecutor{execErr: errors.New("permission denied")}
	if err := NewRunRepository(db).EnsureSchema(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}
