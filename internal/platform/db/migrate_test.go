package db

import (
	"testing"
	"testing/fstest"
)

func TestPendingOrdersAndSkipsApplied(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/0002_jobs.sql":    {Data: []byte("CREATE TABLE b ();")},
		"migrations/0001_journal.sql": {Data: []byte("CREATE TABLE a ();")},
		"migrations/0003_index.sql":   {Data: []byte("CREATE INDEX c ON b ();")},
		"migrations/README.md":        {Data: []byte("notes")},
	}
	todo, err := pending(fsys, "migrations", map[string]bool{"0002_jobs": true})
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(todo) != 2 || todo[0].version != "0001_journal" || todo[1].version != "0003_index" {
		t.Fatalf("unexpected plan %+v", todo)
	}
}

func TestPendingRejectsEmptyFile(t *testing.T) {
	fsys := fstest.MapFS{"migrations/0001_blank.sql": {Data: []byte("  \n")}}
	if _, err := pending(fsys, "migrations", nil); err == nil {
		t.Fatal("expected an error for an empty migration")
	}
}
