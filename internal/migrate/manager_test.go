package migrate

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestSplitStatements(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"single", "create table t (id int);", []string{"create table t (id int);"}},
		{
			"two statements",
			"create table a (id int);\ncreate table b (id int);",
			[]string{"create table a (id int);", "create table b (id int);"},
		},
		{
			"semicolon inside string literal",
			"insert into t (v) values ('a;b');",
			[]string{"insert into t (v) values ('a;b');"},
		},
		{
			"doubled quote stays inside the string",
			"insert into t (v) values ('it''s; fine'); select 1;",
			[]string{"insert into t (v) values ('it''s; fine');", "select 1;"},
		},
		{
			"trailing statement without semicolon",
			"select 1; select 2",
			[]string{"select 1;", "select 2"},
		},
	}
	for _, tc := range cases {
		got := splitStatements(tc.input)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestListSQLOrdersByNameAndSkipsDirs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_b.up.sql", "0001_a.up.sql", "0001_a.down.sql"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("select 1;"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "seeds"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	names, err := listSQL(dir, upSuffix)
	if err != nil {
		t.Fatalf("listSQL: %v", err)
	}
	want := []string{"0001_a.up.sql", "0002_b.up.sql"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("got %q, want %q", names, want)
	}
}

func TestListSQLMissingDirIsEmpty(t *testing.T) {
	names, err := listSQL(filepath.Join(t.TempDir(), "nope"), seedSuffix)
	if err != nil || names != nil {
		t.Fatalf("missing dir: names=%q err=%v", names, err)
	}
}

func TestUpAppliesOnlyPending(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"0001_init.up.sql":  "create table a (id int);",
		"0002_extra.up.sql": "create table b (id int);\ncreate index b_idx on b (id);",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`create table if not exists schema_migrations`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`create table if not exists schema_seeds`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`select name from schema_migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_init.up.sql"))

	// Only the second file is pending; both of its statements run in one
	// transaction before the journal records it.
	mock.ExpectBegin()
	mock.ExpectExec(`create table b`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`create index b_idx`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectExec(`insert into schema_migrations`).
		WithArgs("0002_extra.up.sql").
		WillReturnResult(sqlmock.NewResult(0, 1))

	mgr := NewManager(db, dir, "")
	applied, err := mgr.Up(context.Background())
	if err != nil {
		t.Fatalf("Up: %v", err)
	}
	if !reflect.DeepEqual(applied, []string{"0002_extra.up.sql"}) {
		t.Fatalf("unexpected applied set: %q", applied)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
