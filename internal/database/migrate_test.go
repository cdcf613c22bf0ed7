package database

import (
	"testing"
	"testing/fstest"
)

func TestSplitStatements(t *testing.T) {
	content := `-- employees
CREATE TABLE a (
    id INT
);

CREATE INDEX idx ON a(id);
INSERT INTO a VALUES (1)`

	stmts := SplitStatements(content)
	if len(stmts) != 3 {
		t.Fatalf("expected 3 statements, got %d: %q", len(stmts), stmts)
	}
	if stmts[0] != "CREATE TABLE a (\n    id INT\n);" {
		t.Errorf("unexpected first statement %q", stmts[0])
	}
	if stmts[2] != "INSERT INTO a VALUES (1)" {
		t.Errorf("unterminated trailing statement should be kept, got %q", stmts[2])
	}
}

func TestSplitStatements_Empty(t *testing.T) {
	if stmts := SplitStatements("-- nothing\n\n"); len(stmts) != 0 {
		t.Errorf("expected no statements, got %q", stmts)
	}
}

func TestPendingFiles(t *testing.T) {
	source := fstest.MapFS{
		"002_report.sql": {Data: []byte("SELECT 1;")},
		"001_init.sql":   {Data: []byte("SELECT 1;")},
		"README.md":      {Data: []byte("docs")},
		"003_more.sql":   {Data: []byte("SELECT 1;")},
	}

	files, err := pendingFiles(source, map[string]bool{"002_report.sql": true})
	if err != nil {
		t.Fatalf("pendingFiles() error: %v", err)
	}
	want := []string{"001_init.sql", "003_more.sql"}
	if len(files) != len(want) {
		t.Fatalf("expected %v, got %v", want, files)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %s, want %s", i, files[i], want[i])
		}
	}
}
