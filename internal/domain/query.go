package domain

// QueryType tags the statement family of a QueryObject. Adapters only
// ever execute read-only selections; the tag exists so rejected intents
// can say what they were.
type QueryType string

const (
	QuerySelect QueryType = "select"
	QueryInsert QueryType = "insert"
	QueryUpdate QueryType = "update"
	QueryDelete QueryType = "delete"
)

// QueryObject is one executable query. Constructed fresh per request,
// never persisted.
type QueryObject struct {
	QueryString string         `json:"query_string"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	QueryType   QueryType      `json:"query_type"`
}

// QueryResult is the single result shape every backend normalizes to.
// Success=false implies ErrorMessage is set and Rows/Columns are empty;
// Success=true implies ErrorMessage is empty.
type QueryResult struct {
	Success      bool             `json:"success"`
	Columns      []string         `json:"columns,omitempty"`
	Rows         []map[string]any `json:"rows,omitempty"`
	RowCount     int              `json:"row_count"`
	ErrorMessage string           `json:"error_message,omitempty"`
	Metadata     map[string]any   `json:"metadata,omitempty"`
}

// FailedResult builds the canonical failure shape.
func FailedResult(msg string) QueryResult {
	return QueryResult{Success: false, ErrorMessage: msg}
}

// SchemaColumn describes one column of a table.
type SchemaColumn struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required,omitempty"`
	PK       bool   `json:"pk,omitempty"`
}

// TableSchema describes one table or table-like entity.
type TableSchema struct {
	TableName   string         `json:"table_name"`
	Columns     []SchemaColumn `json:"columns"`
	Description string         `json:"description,omitempty"`
}

// SchemaInfo is the result of a schema inquiry. A partially failed
// fetch may carry both tables and an error message.
type SchemaInfo struct {
	Tables       []TableSchema `json:"tables"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

// Table returns the named table's schema, or nil when absent.
func (s *SchemaInfo) Table(name string) *TableSchema {
	for i := range s.Tables {
		if s.Tables[i].TableName == name {
			return &s.Tables[i]
		}
	}
	return nil
}
