// Package planner runs the query pipeline: resolve a sink, connect its
// adapter, synthesize or describe, execute, and always disconnect. Data
// access failures come back as QueryResult{success:false}; only defects
// outside the data path surface as errors.
package planner

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"querymesh/internal/adapter"
	"querymesh/internal/bus"
	"querymesh/internal/domain"
)

const defaultRowLimit = "20"

// Planner owns the pipeline. Collaborators are injected so tests can
// count adapter constructions and substitute synthesizers.
type Planner struct {
	sinks   domain.SinkStore
	factory domain.AdapterFactory
	synth   domain.Synthesizer
	logger  *slog.Logger
	events  *bus.EventBus
}

type Config struct {
	Sinks   domain.SinkStore
	Factory domain.AdapterFactory
	Synth   domain.Synthesizer
	Logger  *slog.Logger
	Events  *bus.EventBus
}

func New(cfg Config) *Planner {
	return &Planner{
		sinks:   cfg.Sinks,
		factory: cfg.Factory,
		synth:   cfg.Synth,
		logger:  cfg.Logger.With("component", "planner"),
		events:  cfg.Events,
	}
}

// Options tune one pipeline run. SchemaOnly forces the schema branch
// even when the intent does not ask for it; Entity narrows a schema
// inquiry to one table; Hints are passed through to the synthesizer.
type Options struct {
	SchemaOnly bool
	Entity     string
	Hints      map[string]string
}

// PlanAndExecute runs the full pipeline for one intent against one
// sink. Every DataAccessError becomes a failed QueryResult; a non-nil
// error means something outside the data path broke and belongs in the
// envelope's internal band.
func (p *Planner) PlanAndExecute(ctx context.Context, intent, sinkID string, opts Options) (domain.QueryResult, error) {
	start := time.Now()
	result, outcome, err := p.run(ctx, intent, sinkID, opts)
	if p.events != nil {
		p.events.EmitAsync(bus.PlanFinished(sinkID, err == nil && result.Success, outcome, time.Since(start)))
	}
	return result, err
}

// GetSinkSchema answers the schema-only operation: describe the named
// entity, or everything the sink exposes when entity is empty.
func (p *Planner) GetSinkSchema(ctx context.Context, sinkID, entity string) (domain.QueryResult, error) {
	return p.PlanAndExecute(ctx, "", sinkID, Options{SchemaOnly: true, Entity: entity})
}

func (p *Planner) run(ctx context.Context, intent, sinkID string, opts Options) (domain.QueryResult, string, error) {
	logger := p.logger.With("sink_id", sinkID)

	sink, err := p.resolveSink(sinkID)
	if err != nil {
		return convert(err, "resolve_sink")
	}

	backend, err := p.connect(ctx, sink)
	if err != nil {
		return convert(err, "connect")
	}
	defer func() {
		if err := backend.Disconnect(); err != nil {
			logger.Warn("adapter disconnect failed", "error", err)
		}
	}()

	if opts.SchemaOnly || wantsSchema(intent) || opts.Hints["operation"] == "get_schema" {
		entity := opts.Entity
		if entity == "" {
			entity = schemaEntity(intent)
		}
		result, err := p.describeSchema(ctx, backend, entity)
		if err != nil {
			return convert(err, "schema")
		}
		return result, "schema", nil
	}

	q, err := p.plan(ctx, backend, intent, opts, logger)
	if err != nil {
		return convert(err, "plan")
	}

	result, err := backend.ExecuteQuery(ctx, q)
	if err != nil {
		return convert(err, "execute")
	}
	logger.Info("query executed",
		"rows", result.RowCount,
		"success", result.Success,
	)
	return result, "done", nil
}

func (p *Planner) resolveSink(sinkID string) (*domain.SinkDescriptor, error) {
	if sinkID == "" {
		return nil, domain.ConfigurationError("sink_id is required")
	}
	sink, err := p.sinks.Get(sinkID)
	if err != nil {
		return nil, domain.ConfigurationError("sink catalogue unavailable: %v", err)
	}
	if sink == nil {
		return nil, domain.ConfigurationError("sink %q is not registered", sinkID)
	}
	return sink, nil
}

func (p *Planner) connect(ctx context.Context, sink *domain.SinkDescriptor) (domain.Adapter, error) {
	backend, err := p.factory.New(sink.SinkType)
	if err != nil {
		return nil, err
	}
	if err := backend.Connect(ctx, sink.ConnectionRef); err != nil {
		return nil, err
	}
	return backend, nil
}

// plan fetches whatever schema is available, asks the synthesizer for a
// candidate, and re-validates it with the same classifier adapters use.
// Trusting the synthesizer would let a confused provider smuggle a
// mutation past the pipeline.
func (p *Planner) plan(ctx context.Context, backend domain.Adapter, intent string, opts Options, logger *slog.Logger) (domain.QueryObject, error) {
	var schemaDesc string
	if info, err := backend.GetSchemaInformation(ctx, ""); err != nil {
		logger.Warn("schema fetch failed, planning without it", "error", err)
	} else {
		schemaDesc = FormatSchemaDescription(info)
	}

	candidate, err := p.synth.Synthesize(ctx, domain.SynthRequest{
		Intent:            intent,
		SchemaDescription: schemaDesc,
		Hints:             opts.Hints,
	})
	if err != nil {
		return domain.QueryObject{}, domain.QueryExecutionError("query synthesis failed", err)
	}

	if ok, reason := adapter.IsReadOnly(candidate.QueryString); !ok {
		return domain.QueryObject{}, domain.QueryExecutionError("synthesized query rejected: "+reason, nil)
	}

	return domain.QueryObject{
		QueryString: ensureLimit(candidate.QueryString),
		Parameters:  candidate.Parameters,
		QueryType:   domain.QuerySelect,
	}, nil
}

// schemaColumns is the fixed column set of a schema-inquiry result.
var schemaColumns = []string{"table_name", "column_name", "column_type", "is_primary_key", "is_required", "table_description"}

// describeSchema flattens SchemaInfo into one row per column so schema
// inquiries come back in the same QueryResult shape as data queries.
func (p *Planner) describeSchema(ctx context.Context, backend domain.Adapter, entity string) (domain.QueryResult, error) {
	info, err := backend.GetSchemaInformation(ctx, entity)
	if err != nil {
		return domain.QueryResult{}, err
	}
	if len(info.Tables) == 0 && info.ErrorMessage != "" {
		return domain.FailedResult(info.ErrorMessage), nil
	}

	rows := make([]map[string]any, 0)
	for _, table := range info.Tables {
		for _, col := range table.Columns {
			rows = append(rows, map[string]any{
				"table_name":        table.TableName,
				"column_name":       col.Name,
				"column_type":       col.Type,
				"is_primary_key":    col.PK,
				"is_required":       col.Required,
				"table_description": table.Description,
			})
		}
	}
	return domain.QueryResult{
		Success:  true,
		Columns:  schemaColumns,
		Rows:     rows,
		RowCount: len(rows),
	}, nil
}

// convert maps a pipeline failure onto the planner contract: data
// access errors become failed results, anything else stays an error.
func convert(err error, outcome string) (domain.QueryResult, string, error) {
	var dae *domain.DataAccessError
	if errors.As(err, &dae) {
		return domain.FailedResult(dae.Message()), outcome, nil
	}
	return domain.QueryResult{}, outcome, err
}

var schemaEntityRe = regexp.MustCompile(`(?i)\bschema\s+(?:for|of)\s+(?:the\s+)?(?:table\s+)?([A-Za-z_][A-Za-z0-9_.]*)`)

func wantsSchema(intent string) bool {
	lower := strings.ToLower(intent)
	for _, marker := range []string{"schema for", "schema of", "get schema", "show schema"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func schemaEntity(intent string) string {
	if m := schemaEntityRe.FindStringSubmatch(intent); m != nil {
		return strings.TrimSuffix(m[1], ".")
	}
	return ""
}

// ensureLimit appends the default LIMIT to unbounded row queries.
// Aggregate COUNT queries return one row and are left alone. The check
// runs on classifier tokens, so a LIMIT inside a string literal does
// not count. The clause goes on its own line: a query ending in a
// "--" line comment would otherwise swallow it.
func ensureLimit(query string) string {
	tokens := adapter.StatementTokens(query)
	if len(tokens) >= 2 && tokens[0] == "SELECT" && tokens[1] == "COUNT" {
		return query
	}
	for _, tok := range tokens {
		if tok == "LIMIT" {
			return query
		}
	}
	return query + "\nLIMIT " + defaultRowLimit
}

// FormatSchemaDescription renders SchemaInfo as one "table: ..." line
// per table. The rule synthesizer parses this exact shape; LLM
// providers just paste it into the prompt.
func FormatSchemaDescription(info domain.SchemaInfo) string {
	var b strings.Builder
	for i, table := range info.Tables {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("table: ")
		b.WriteString(table.TableName)
		b.WriteString(" (")
		for j, col := range table.Columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(col.Name)
			if col.Type != "" {
				b.WriteByte(' ')
				b.WriteString(col.Type)
			}
			var flags []string
			if col.PK {
				flags = append(flags, "pk")
			}
			if col.Required {
				flags = append(flags, "required")
			}
			if len(flags) > 0 {
				b.WriteString(" [")
				b.WriteString(strings.Join(flags, ","))
				b.WriteByte(']')
			}
		}
		b.WriteByte(')')
	}
	return b.String()
}
