package front

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"querymesh/internal/domain"
)

// previewRows caps the table preview in a chat reply.
const previewRows = 10

// decodeResult rebuilds the QueryResult from the decoded envelope
// payload the client hands back.
func decodeResult(v any) (domain.QueryResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return domain.QueryResult{}, err
	}
	var result domain.QueryResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return domain.QueryResult{}, err
	}
	return result, nil
}

// renderResult turns a QueryResult into a chat reply: the error text on
// failure, a row-count line plus a small pipe table otherwise.
func renderResult(sinkID string, result domain.QueryResult) string {
	if !result.Success {
		return fmt.Sprintf("Query against %s failed: %s", sinkID, result.ErrorMessage)
	}
	if len(result.Rows) == 0 {
		return fmt.Sprintf("Query against %s matched no rows.", sinkID)
	}

	cols := result.Columns
	if len(cols) == 0 {
		cols = columnsFromRows(result.Rows)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d row(s) from %s:\n", result.RowCount, sinkID)
	b.WriteString(strings.Join(cols, " | "))
	b.WriteByte('\n')

	shown := len(result.Rows)
	if shown > previewRows {
		shown = previewRows
	}
	for _, row := range result.Rows[:shown] {
		cells := make([]string, len(cols))
		for i, col := range cols {
			cells[i] = fmt.Sprintf("%v", row[col])
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteByte('\n')
	}
	if len(result.Rows) > previewRows {
		fmt.Fprintf(&b, "... and %d more row(s)", len(result.Rows)-previewRows)
	}
	return strings.TrimRight(b.String(), "\n")
}

func columnsFromRows(rows []map[string]any) []string {
	cols := make([]string, 0, len(rows[0]))
	for col := range rows[0] {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}
