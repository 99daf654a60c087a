package adapter

import (
	"reflect"
	"testing"
)

func TestIsReadOnly_AcceptsSelections(t *testing.T) {
	queries := []string{
		"SELECT * FROM candidates",
		"select id, name from candidates where title = :title",
		"  SELECT COUNT(*) FROM candidates  ",
		"WITH ranked AS (SELECT * FROM candidates) SELECT * FROM ranked",
		"SELECT 'INSERT INTO literal' AS note FROM candidates",
		`SELECT "deleted_at" FROM audit`,
		"SELECT `update_count` FROM `stats.daily`",
		"SELECT updated_at, created_by FROM candidates -- DROP nothing",
		"/* UPDATE in a comment */ SELECT 1",
		"SELECT deleted, inserted FROM change_summary",
	}
	for _, q := range queries {
		if ok, reason := IsReadOnly(q); !ok {
			t.Errorf("rejected a valid selection %q: %s", q, reason)
		}
	}
}

func TestIsReadOnly_RejectsMutations(t *testing.T) {
	queries := []string{
		"INSERT INTO candidates (name) VALUES ('x')",
		"insert into candidates values (1)",
		"UPDATE candidates SET name = 'y'",
		"DELETE FROM candidates",
		"DROP TABLE candidates",
		"TRUNCATE TABLE candidates",
		"CREATE TABLE pwned (id int)",
		"ALTER TABLE candidates ADD COLUMN x int",
		"MERGE INTO candidates USING src ON 1=1",
		"REPLACE INTO candidates VALUES (1)",
		"GRANT ALL ON candidates TO joe",
		"PRAGMA journal_mode = DELETE",
		"VACUUM",
		"ATTACH DATABASE '/tmp/evil.db' AS evil",
		"CALL cleanup_everything()",
	}
	for _, q := range queries {
		if ok, _ := IsReadOnly(q); ok {
			t.Errorf("accepted a mutating statement: %q", q)
		}
	}
}

func TestIsReadOnly_RejectsSmuggledKeywords(t *testing.T) {
	queries := []string{
		// Leading comment must not mask what follows.
		"-- harmless\nDELETE FROM candidates",
		"/* c */ INSERT INTO candidates VALUES (1)",
		// Mutating keyword after a valid opening.
		"SELECT * FROM candidates; DELETE FROM candidates",
		"WITH x AS (SELECT 1) INSERT INTO t SELECT * FROM x",
		// SELECT INTO writes a table.
		"SELECT * INTO backup FROM candidates",
	}
	for _, q := range queries {
		if ok, _ := IsReadOnly(q); ok {
			t.Errorf("accepted a smuggled mutation: %q", q)
		}
	}
}

func TestIsReadOnly_RejectsNonSelections(t *testing.T) {
	for _, q := range []string{"", "   ", "\n\t", "-- only a comment", "EXPLAIN SELECT 1", "SHOW TABLES"} {
		if ok, _ := IsReadOnly(q); ok {
			t.Errorf("accepted a non-selection: %q", q)
		}
	}
}

func TestIsReadOnly_IdentifiersContainingKeywords(t *testing.T) {
	// Words that merely contain a forbidden keyword must pass; this is
	// exactly where substring scanning over-rejects.
	queries := []string{
		"SELECT update_count FROM stats",
		"SELECT * FROM deleted_items",
		"SELECT dropout_rate FROM cohorts",
		"SELECT created_at, insertion_order FROM events",
	}
	for _, q := range queries {
		if ok, reason := IsReadOnly(q); !ok {
			t.Errorf("over-rejected %q: %s", q, reason)
		}
	}
}

func TestStatementTokens(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{
			name:  "plain selection",
			query: "SELECT id FROM candidates",
			want:  []string{"SELECT", "ID", "FROM", "CANDIDATES"},
		},
		{
			name:  "literals stripped",
			query: "SELECT 'DROP TABLE x' FROM t",
			want:  []string{"SELECT", "FROM", "T"},
		},
		{
			name:  "escaped quote inside literal",
			query: "SELECT 'it''s fine' FROM t",
			want:  []string{"SELECT", "FROM", "T"},
		},
		{
			name:  "quoted identifiers stripped",
			query: `SELECT "weird name", ` + "`another`" + ` FROM t`,
			want:  []string{"SELECT", "FROM", "T"},
		},
		{
			name:  "comments stripped",
			query: "SELECT 1 -- DELETE\n FROM /* UPDATE */ t",
			want:  []string{"SELECT", "FROM", "T"},
		},
		{
			name:  "unterminated block comment",
			query: "SELECT 1 /* runs forever",
			want:  []string{"SELECT"},
		},
		{
			name:  "punctuation separates tokens",
			query: "SELECT a,b FROM t WHERE a=:a",
			want:  []string{"SELECT", "A", "B", "FROM", "T", "WHERE", "A", "A"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StatementTokens(tt.query)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("StatementTokens(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}
