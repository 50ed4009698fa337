package history

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/teslashibe/go-kiosk/pkg/facetrack"
	"github.com/teslashibe/go-kiosk/pkg/recognition"
)

type execCall struct {
	sql  string
	args []any
}

type fakeDB struct {
	calls []execCall
	err   error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func TestRecord(t *testing.T) {
	db := &fakeDB{}
	s := &Store{db: db}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	err := s.Record(context.Background(), recognition.Transition{
		Kind:      recognition.KindRecognized,
		MemberID:  "abc",
		RequestID: "req-1",
		Level:     facetrack.LevelClose,
		IsNew:     true,
		At:        at,
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	if len(db.calls) != 1 || !strings.Contains(db.calls[0].sql, "INSERT INTO identity_transitions") {
		t.Fatalf("calls = %+v", db.calls)
	}
	args := db.calls[0].args
	if args[0] != "recognized" || *args[1].(*string) != "abc" || *args[2].(*string) != "req-1" {
		t.Errorf("args = %v", args)
	}
	if args[3] != "CLOSE" || args[4] != true || args[5] != at {
		t.Errorf("args = %v", args)
	}
}

func TestRecord_EmptyIDsAreNull(t *testing.T) {
	db := &fakeDB{}
	s := &Store{db: db}

	if err := s.Record(context.Background(), recognition.Transition{Kind: recognition.KindCleared}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	args := db.calls[0].args
	if args[1].(*string) != nil || args[2].(*string) != nil {
		t.Errorf("empty ids should be NULL, got %v %v", args[1], args[2])
	}
	if args[3] != "NONE" {
		t.Errorf("level = %v, want NONE", args[3])
	}
	if args[5].(time.Time).IsZero() {
		t.Error("zero At should default to now")
	}
}

func TestRecord_Error(t *testing.T) {
	s := &Store{db: &fakeDB{err: errors.New("connection reset")}}
	err := s.Record(context.Background(), recognition.Transition{Kind: recognition.KindCleared})
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Errorf("err = %v", err)
	}
}

func TestMigrate(t *testing.T) {
	db := &fakeDB{}
	if err := migrate(context.Background(), db); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(db.calls[0].sql, "CREATE TABLE IF NOT EXISTS identity_transitions") {
		t.Errorf("migration sql = %s", db.calls[0].sql)
	}
}

// TestStore_Postgres runs against a real database when KIOSK_TEST_DATABASE_URL is set.
func TestStore_Postgres(t *testing.T) {
	url := os.Getenv("KIOSK_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("KIOSK_TEST_DATABASE_URL not set, skipping test")
	}

	ctx := context.Background()
	s, err := Open(ctx, url, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	member := "test-" + time.Now().Format("150405.000000")
	for _, k := range []recognition.Kind{recognition.KindRecognized, recognition.KindCleared} {
		tr := recognition.Transition{Kind: k, Level: facetrack.LevelNear}
		if k == recognition.KindRecognized {
			tr.MemberID = member
		}
		if err := s.Record(ctx, tr); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	entries, err := s.Recent(ctx, 10, member)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 || entries[0].Kind != "recognized" || entries[0].Level != "NEAR" {
		t.Errorf("entries = %+v", entries)
	}
}
