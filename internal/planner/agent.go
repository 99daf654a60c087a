package planner

import (
	"context"
	"log/slog"

	"querymesh/internal/bus"
	"querymesh/internal/rpc"
)

// Agent exposes the planner over the envelope.
type Agent struct {
	planner *Planner
	logger  *slog.Logger
}

func NewAgent(p *Planner, logger *slog.Logger) *Agent {
	return &Agent{
		planner: p,
		logger:  logger.With("agent", "query_planner"),
	}
}

// Dispatcher mounts the planner methods.
func (a *Agent) Dispatcher(events *bus.EventBus) *rpc.Dispatcher {
	d := rpc.NewDispatcher("query_planner", a.logger, events)
	d.Handle("plan_and_execute_query", a.planAndExecute)
	d.Handle("get_sink_schema", a.getSinkSchema)
	return d
}

func (a *Agent) planAndExecute(ctx context.Context, params rpc.Params) (any, error) {
	intent, rpcErr := params.RequiredString("intent")
	if rpcErr != nil {
		return nil, rpcErr
	}
	sinkID, rpcErr := params.RequiredString("sink_id")
	if rpcErr != nil {
		return nil, rpcErr
	}

	var opts Options
	if o, ok := params.Map("options"); ok {
		if b, ok := o["schema_only"].(bool); ok {
			opts.SchemaOnly = b
		}
		if s, ok := o["entity_name"].(string); ok {
			opts.Entity = s
		}
		if h, ok := o["hints"].(map[string]any); ok {
			opts.Hints = make(map[string]string, len(h))
			for k, v := range h {
				if s, ok := v.(string); ok {
					opts.Hints[k] = s
				}
			}
		}
	}

	return a.planner.PlanAndExecute(ctx, intent, sinkID, opts)
}

func (a *Agent) getSinkSchema(ctx context.Context, params rpc.Params) (any, error) {
	sinkID, rpcErr := params.RequiredString("sink_id")
	if rpcErr != nil {
		return nil, rpcErr
	}
	entity := params.StringDefault("entity_name", "")

	return a.planner.GetSinkSchema(ctx, sinkID, entity)
}
