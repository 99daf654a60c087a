package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "modernc.org/sqlite"

	"querymesh/internal/domain"
)

// SQLiteAdapter serves read-only queries over an embedded single-file
// database. The file belongs to whoever produces it (the records agent,
// an export job); this adapter never creates or alters it, so connect
// requires the file to already exist.
type SQLiteAdapter struct {
	db     *sql.DB
	dbPath string
	logger *slog.Logger
}

var _ domain.Adapter = (*SQLiteAdapter)(nil)

func NewSQLiteAdapter(logger *slog.Logger) *SQLiteAdapter {
	return &SQLiteAdapter{logger: logger.With("adapter", "sqlite")}
}

// Connect opens the database named by connection_ref.database_file_path.
func (a *SQLiteAdapter) Connect(ctx context.Context, config map[string]any) error {
	dbPath, _ := config["database_file_path"].(string)
	if dbPath == "" {
		return domain.ConfigurationError("sqlite connection_ref missing 'database_file_path'")
	}
	a.dbPath = dbPath

	if dbPath != ":memory:" {
		if _, err := os.Stat(dbPath); err != nil {
			return domain.ConnectionError(fmt.Sprintf("sqlite database file not found at %s", dbPath), err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return domain.ConnectionError(fmt.Sprintf("cannot open sqlite database %s", dbPath), err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return domain.ConnectionError(fmt.Sprintf("cannot connect to sqlite database %s", dbPath), err)
	}

	a.db = db
	a.logger.Debug("sqlite adapter connected", "path", dbPath)
	return nil
}

// Disconnect closes the connection. Calling it without an active
// connection is a no-op.
func (a *SQLiteAdapter) Disconnect() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	if err != nil {
		return domain.ConnectionError("error closing sqlite connection", err)
	}
	a.logger.Debug("sqlite adapter disconnected", "path", a.dbPath)
	return nil
}

// ExecuteQuery runs a read-only selection. Anything the classifier
// rejects fails before touching the database.
func (a *SQLiteAdapter) ExecuteQuery(ctx context.Context, q domain.QueryObject) (domain.QueryResult, error) {
	if a.db == nil {
		return domain.QueryResult{}, domain.ConnectionError("not connected to sqlite, call connect first", nil)
	}

	if reason := readOnlyViolation(q.QueryString); reason != "" {
		return domain.QueryResult{}, domain.QueryExecutionError("query rejected: "+reason, nil)
	}

	args := make([]any, 0, len(q.Parameters))
	for name, value := range q.Parameters {
		args = append(args, sql.Named(name, value))
	}

	a.logger.Debug("executing sqlite query", "query", q.QueryString, "params", len(args))

	rows, err := a.db.QueryContext(ctx, q.QueryString, args...)
	if err != nil {
		return domain.QueryResult{}, domain.QueryExecutionError("sqlite execution error", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return domain.QueryResult{}, domain.QueryExecutionError("sqlite execution error", err)
	}

	var result []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return domain.QueryResult{}, domain.QueryExecutionError("sqlite row scan error", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return domain.QueryResult{}, domain.QueryExecutionError("sqlite execution error", err)
	}

	if result == nil {
		result = []map[string]any{}
	}
	return domain.QueryResult{
		Success:  true,
		Columns:  columns,
		Rows:     result,
		RowCount: len(result),
	}, nil
}

// GetSchemaInformation describes tables through sqlite_master and
// PRAGMA table_info. With no entity it enumerates all user tables;
// internal sqlite_* tables are never reported.
func (a *SQLiteAdapter) GetSchemaInformation(ctx context.Context, entity string) (domain.SchemaInfo, error) {
	if a.db == nil {
		return domain.SchemaInfo{}, domain.ConnectionError("not connected to sqlite, call connect first", nil)
	}

	var tables []string
	if entity != "" {
		var name string
		err := a.db.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, entity,
		).Scan(&name)
		if err == sql.ErrNoRows {
			return domain.SchemaInfo{}, domain.SchemaError(fmt.Sprintf("table %q not found in the database", entity), nil)
		}
		if err != nil {
			return domain.SchemaInfo{}, domain.SchemaError("sqlite schema retrieval error", err)
		}
		tables = append(tables, name)
	} else {
		rows, err := a.db.QueryContext(ctx,
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
		if err != nil {
			return domain.SchemaInfo{}, domain.SchemaError("sqlite schema retrieval error", err)
		}
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				rows.Close()
				return domain.SchemaInfo{}, domain.SchemaError("sqlite schema retrieval error", err)
			}
			tables = append(tables, name)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return domain.SchemaInfo{}, domain.SchemaError("sqlite schema retrieval error", err)
		}
	}

	info := domain.SchemaInfo{Tables: []domain.TableSchema{}}
	for _, table := range tables {
		schema, err := a.tableSchema(ctx, table)
		if err != nil {
			return domain.SchemaInfo{}, err
		}
		info.Tables = append(info.Tables, schema)
	}

	if len(info.Tables) == 0 {
		info.ErrorMessage = "no tables found in the database"
	}
	return info, nil
}

func (a *SQLiteAdapter) tableSchema(ctx context.Context, table string) (domain.TableSchema, error) {
	// PRAGMA cannot bind parameters; quote the identifier instead.
	quoted := `"` + strings.ReplaceAll(table, `"`, `""`) + `"`
	rows, err := a.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoted))
	if err != nil {
		return domain.TableSchema{}, domain.SchemaError(fmt.Sprintf("cannot describe table %q", table), err)
	}
	defer rows.Close()

	schema := domain.TableSchema{TableName: table}
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return domain.TableSchema{}, domain.SchemaError(fmt.Sprintf("cannot describe table %q", table), err)
		}
		schema.Columns = append(schema.Columns, domain.SchemaColumn{
			Name:     name,
			Type:     typ,
			Required: notNull != 0,
			PK:       pk != 0,
		})
	}
	if err := rows.Err(); err != nil {
		return domain.TableSchema{}, domain.SchemaError(fmt.Sprintf("cannot describe table %q", table), err)
	}
	return schema, nil
}

// normalizeValue converts driver-specific scan results into the plain
// JSON-friendly forms the QueryResult contract promises.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	default:
		return v
	}
}
