package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"querymesh/internal/domain"
)

// BigQueryAdapter serves read-only queries against a managed warehouse.
// It satisfies the same contract as the embedded adapter, including the
// identical rejection behavior, over typed scalar/array parameters
// instead of positional binding.
type BigQueryAdapter struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	location  string
	logger    *slog.Logger
}

var _ domain.Adapter = (*BigQueryAdapter)(nil)

func NewBigQueryAdapter(logger *slog.Logger) *BigQueryAdapter {
	return &BigQueryAdapter{logger: logger.With("adapter", "bigquery")}
}

// Connect builds the client from connection_ref: project_id (or the
// GCP_PROJECT_ID env var), optional dataset_id default scope, optional
// location, optional credentials_file for a service-account file.
// The new client is smoke-tested by listing at most one dataset so a
// bad project or credential fails here, not mid-query.
func (a *BigQueryAdapter) Connect(ctx context.Context, config map[string]any) error {
	projectID, _ := config["project_id"].(string)
	if projectID == "" {
		projectID = os.Getenv("GCP_PROJECT_ID")
	}
	if projectID == "" {
		return domain.ConfigurationError("bigquery connection_ref missing 'project_id' and GCP_PROJECT_ID is not set")
	}
	a.projectID = projectID
	a.datasetID, _ = config["dataset_id"].(string)
	a.location, _ = config["location"].(string)

	var opts []option.ClientOption
	if credentialsFile, _ := config["credentials_file"].(string); credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return domain.ConnectionError(fmt.Sprintf("cannot create bigquery client for project %s", projectID), err)
	}

	it := client.Datasets(ctx)
	if _, err := it.Next(); err != nil && err != iterator.Done {
		client.Close()
		return domain.ConnectionError(fmt.Sprintf("cannot connect to bigquery project %s", projectID), err)
	}

	a.client = client
	a.logger.Debug("bigquery adapter connected", "project", projectID, "dataset", a.datasetID)
	return nil
}

// Disconnect releases the client. Calling it without an active client
// is a no-op.
func (a *BigQueryAdapter) Disconnect() error {
	if a.client == nil {
		return nil
	}
	err := a.client.Close()
	a.client = nil
	if err != nil {
		return domain.ConnectionError("error closing bigquery client", err)
	}
	a.logger.Debug("bigquery adapter disconnected", "project", a.projectID)
	return nil
}

// ExecuteQuery runs a read-only selection as a parameterized job.
func (a *BigQueryAdapter) ExecuteQuery(ctx context.Context, q domain.QueryObject) (domain.QueryResult, error) {
	if a.client == nil {
		return domain.QueryResult{}, domain.ConnectionError("not connected to bigquery, call connect first", nil)
	}

	if reason := readOnlyViolation(q.QueryString); reason != "" {
		return domain.QueryResult{}, domain.QueryExecutionError("query rejected: "+reason, nil)
	}

	query := a.client.Query(q.QueryString)
	query.DefaultDatasetID = a.datasetID
	if a.location != "" {
		query.Location = a.location
	}
	query.Parameters = queryParameters(q.Parameters)

	a.logger.Debug("executing bigquery query", "query", q.QueryString, "params", len(query.Parameters))

	job, err := query.Run(ctx)
	if err != nil {
		return domain.QueryResult{}, domain.QueryExecutionError("bigquery job submission failed", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return domain.QueryResult{}, domain.QueryExecutionError("bigquery job failed", err)
	}
	if err := status.Err(); err != nil {
		return domain.QueryResult{}, domain.QueryExecutionError("bigquery job failed", err)
	}

	it, err := job.Read(ctx)
	if err != nil {
		return domain.QueryResult{}, domain.QueryExecutionError("bigquery result read failed", err)
	}

	rows := []map[string]any{}
	for {
		var row map[string]bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return domain.QueryResult{}, domain.QueryExecutionError("bigquery row iteration failed", err)
		}
		converted := make(map[string]any, len(row))
		for k, v := range row {
			converted[k] = v
		}
		rows = append(rows, converted)
	}

	var columns []string
	for _, field := range it.Schema {
		columns = append(columns, field.Name)
	}

	rowCount := len(rows)
	if it.TotalRows > 0 {
		rowCount = int(it.TotalRows)
	}

	metadata := map[string]any{
		"job_id":   job.ID(),
		"location": job.Location(),
	}
	if stats, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
		metadata["bytes_billed"] = stats.TotalBytesBilled
		metadata["cache_hit"] = stats.CacheHit
	}

	return domain.QueryResult{
		Success:  true,
		Columns:  columns,
		Rows:     rows,
		RowCount: rowCount,
		Metadata: metadata,
	}, nil
}

// GetSchemaInformation describes one entity, or every table under the
// default dataset when no entity is given.
func (a *BigQueryAdapter) GetSchemaInformation(ctx context.Context, entity string) (domain.SchemaInfo, error) {
	if a.client == nil {
		return domain.SchemaInfo{}, domain.ConnectionError("not connected to bigquery, call connect first", nil)
	}

	if entity != "" {
		datasetID, tableID, err := a.resolveEntity(entity)
		if err != nil {
			return domain.SchemaInfo{}, err
		}
		table, err := a.tableSchema(ctx, datasetID, tableID)
		if err != nil {
			return domain.SchemaInfo{}, err
		}
		return domain.SchemaInfo{Tables: []domain.TableSchema{table}}, nil
	}

	if a.datasetID == "" {
		return domain.SchemaInfo{
			ErrorMessage: "cannot list tables without a default dataset_id or an entity name",
		}, nil
	}

	info := domain.SchemaInfo{Tables: []domain.TableSchema{}}
	it := a.client.Dataset(a.datasetID).Tables(ctx)
	for {
		t, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return domain.SchemaInfo{}, domain.SchemaError(fmt.Sprintf("cannot list tables of dataset %s", a.datasetID), err)
		}
		table, err := a.tableSchema(ctx, t.DatasetID, t.TableID)
		if err != nil {
			return domain.SchemaInfo{}, err
		}
		info.Tables = append(info.Tables, table)
	}

	if len(info.Tables) == 0 {
		info.ErrorMessage = fmt.Sprintf("no tables found in dataset %s", a.datasetID)
	}
	return info, nil
}

// resolveEntity maps an entity name onto dataset and table. A bare
// table name needs the default dataset; qualified names carry their
// own. Anything unresolvable fails fast rather than guessing.
func (a *BigQueryAdapter) resolveEntity(entity string) (string, string, error) {
	parts := strings.Split(entity, ".")
	switch {
	case len(parts) == 2:
		return parts[0], parts[1], nil
	case len(parts) == 1 && a.datasetID != "":
		return a.datasetID, parts[0], nil
	case len(parts) >= 3:
		return parts[len(parts)-2], parts[len(parts)-1], nil
	}
	return "", "", domain.SchemaError(
		fmt.Sprintf("cannot determine dataset for table %q: provide dataset.table or configure dataset_id", entity), nil)
}

func (a *BigQueryAdapter) tableSchema(ctx context.Context, datasetID, tableID string) (domain.TableSchema, error) {
	md, err := a.client.Dataset(datasetID).Table(tableID).Metadata(ctx)
	if err != nil {
		return domain.TableSchema{}, domain.SchemaError(
			fmt.Sprintf("cannot retrieve schema for bigquery table %s.%s", datasetID, tableID), err)
	}

	schema := domain.TableSchema{
		TableName:   datasetID + "." + tableID,
		Description: md.Description,
	}
	for _, field := range md.Schema {
		schema.Columns = append(schema.Columns, domain.SchemaColumn{
			Name:     field.Name,
			Type:     string(field.Type),
			Required: field.Required,
		})
	}
	return schema, nil
}

// queryParameters converts the named parameter map into typed BigQuery
// parameters. JSON arrays arrive as []any and must become concretely
// typed slices; the element type is inferred from the first element.
func queryParameters(params map[string]any) []bigquery.QueryParameter {
	if len(params) == 0 {
		return nil
	}
	out := make([]bigquery.QueryParameter, 0, len(params))
	for name, value := range params {
		out = append(out, bigquery.QueryParameter{Name: name, Value: typedValue(value)})
	}
	return out
}

func typedValue(value any) any {
	list, ok := value.([]any)
	if !ok {
		return value
	}
	if len(list) == 0 {
		return []string{}
	}
	switch list[0].(type) {
	case bool:
		typed := make([]bool, 0, len(list))
		for _, v := range list {
			b, _ := v.(bool)
			typed = append(typed, b)
		}
		return typed
	case float64:
		typed := make([]float64, 0, len(list))
		for _, v := range list {
			f, _ := v.(float64)
			typed = append(typed, f)
		}
		return typed
	case int:
		typed := make([]int64, 0, len(list))
		for _, v := range list {
			n, _ := v.(int)
			typed = append(typed, int64(n))
		}
		return typed
	default:
		typed := make([]string, 0, len(list))
		for _, v := range list {
			typed = append(typed, fmt.Sprint(v))
		}
		return typed
	}
}
