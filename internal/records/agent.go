package records

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"querymesh/internal/bus"
	"querymesh/internal/domain"
	"querymesh/internal/rpc"
)

// Agent exposes the record store over the envelope.
type Agent struct {
	store  *Store
	logger *slog.Logger
}

func NewAgent(store *Store, logger *slog.Logger) *Agent {
	return &Agent{
		store:  store,
		logger: logger.With("agent", "records_agent"),
	}
}

// Dispatcher mounts the records methods.
func (a *Agent) Dispatcher(events *bus.EventBus) *rpc.Dispatcher {
	d := rpc.NewDispatcher("records_agent", a.logger, events)
	d.Handle("create_record", a.createRecord)
	d.Handle("get_record", a.getRecord)
	d.Handle("list_records", a.listRecords)
	d.Handle("execute_query", a.executeQuery)
	d.Handle("get_schema", a.getSchema)
	return d
}

func (a *Agent) createRecord(ctx context.Context, params rpc.Params) (any, error) {
	name, rpcErr := params.RequiredString("name")
	if rpcErr != nil {
		return nil, rpcErr
	}
	title, rpcErr := params.RequiredString("title")
	if rpcErr != nil {
		return nil, rpcErr
	}
	skills, rpcErr := skillsParam(params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	id, err := a.store.Create(name, title, skills)
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": "saved", "id": id}, nil
}

func (a *Agent) getRecord(ctx context.Context, params rpc.Params) (any, error) {
	id, ok := params.Int("id")
	if !ok {
		return nil, rpc.InvalidParams("missing required parameter: id")
	}

	rec, err := a.store.Get(int64(id))
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return map[string]any{"record": nil, "found": false}, nil
	}
	return map[string]any{"record": recordView(*rec), "found": true}, nil
}

func (a *Agent) listRecords(ctx context.Context, params rpc.Params) (any, error) {
	recs, err := a.store.List(params.IntDefault("limit", 0))
	if err != nil {
		return nil, err
	}
	views := make([]map[string]any, 0, len(recs))
	for _, r := range recs {
		views = append(views, recordView(r))
	}
	return views, nil
}

// executeQuery is the downstream read-only surface. Data access
// failures come back as QueryResult{success:false} values, never as
// envelope errors, matching the planner's contract for this shape.
func (a *Agent) executeQuery(ctx context.Context, params rpc.Params) (any, error) {
	query, rpcErr := params.RequiredString("query")
	if rpcErr != nil {
		return nil, rpcErr
	}
	q := domain.QueryObject{QueryString: query, QueryType: domain.QuerySelect}
	if p, ok := params.Map("parameters"); ok {
		q.Parameters = p
	}

	result, err := a.store.Query(ctx, q)
	if err != nil {
		var dae *domain.DataAccessError
		if errors.As(err, &dae) {
			return domain.FailedResult(dae.Message()), nil
		}
		return nil, err
	}
	return result, nil
}

func (a *Agent) getSchema(ctx context.Context, params rpc.Params) (any, error) {
	info, err := a.store.Schema(ctx, params.StringDefault("entity", ""))
	if err != nil {
		return nil, err
	}
	return info, nil
}

// skillsParam accepts skills as an array of strings or one
// comma-separated string.
func skillsParam(params rpc.Params) (string, *rpc.Error) {
	v, ok := params["skills"]
	if !ok {
		return "", rpc.InvalidParams("missing required parameter: skills")
	}
	switch skills := v.(type) {
	case string:
		return skills, nil
	case []string:
		return strings.Join(skills, ","), nil
	case []any:
		parts := make([]string, 0, len(skills))
		for _, item := range skills {
			s, ok := item.(string)
			if !ok {
				return "", rpc.InvalidParams("parameter skills must be an array of strings")
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), nil
	}
	return "", rpc.InvalidParams("parameter skills must be an array of strings")
}

// recordView is the wire shape of a record: skills as a list.
func recordView(r Record) map[string]any {
	return map[string]any{
		"id":         r.ID,
		"name":       r.Name,
		"title":      r.Title,
		"skills":     splitSkills(r.Skills),
		"created_at": r.CreatedAt,
	}
}

func splitSkills(skills string) []string {
	if skills == "" {
		return []string{}
	}
	parts := strings.Split(skills, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
