package sink

import (
	"context"
	"log/slog"
	"strings"

	"querymesh/internal/bus"
	"querymesh/internal/domain"
	"querymesh/internal/rpc"
)

// Agent serves the sink catalogue over the call envelope.
type Agent struct {
	store  domain.SinkStore
	logger *slog.Logger
}

func NewAgent(store domain.SinkStore, logger *slog.Logger) *Agent {
	return &Agent{store: store, logger: logger.With("agent", "sink_registry")}
}

func (a *Agent) Dispatcher(events *bus.EventBus) *rpc.Dispatcher {
	d := rpc.NewDispatcher("sink_registry", a.logger, events)
	d.Handle("register_sink", a.registerSink)
	d.Handle("get_sink_details", a.getSinkDetails)
	d.Handle("list_sinks", a.listSinks)
	d.Handle("delete_sink", a.deleteSink)
	return d
}

func (a *Agent) registerSink(ctx context.Context, params rpc.Params) (any, error) {
	var sink domain.SinkDescriptor
	if errp := params.Bind(&sink); errp != nil {
		return nil, errp
	}

	var missing []string
	if sink.SinkID == "" {
		missing = append(missing, "sink_id")
	}
	if sink.Name == "" {
		missing = append(missing, "name")
	}
	if sink.SinkType == "" {
		missing = append(missing, "sink_type")
	}
	if len(sink.ConnectionRef) == 0 {
		missing = append(missing, "connection_ref")
	}
	if len(missing) > 0 {
		return nil, rpc.InvalidParams("missing required parameters: %s", strings.Join(missing, ", "))
	}

	if err := a.store.Register(sink); err != nil {
		return nil, err
	}
	return map[string]any{"status": "registered", "sink_id": sink.SinkID}, nil
}

func (a *Agent) getSinkDetails(ctx context.Context, params rpc.Params) (any, error) {
	sinkID, errp := params.RequiredString("sink_id")
	if errp != nil {
		return nil, errp
	}
	sink, err := a.store.Get(sinkID)
	if err != nil {
		return nil, err
	}
	if sink == nil {
		return map[string]any{"sink": nil, "found": false}, nil
	}
	return map[string]any{"sink": sink, "found": true}, nil
}

func (a *Agent) listSinks(ctx context.Context, params rpc.Params) (any, error) {
	sinks, err := a.store.List()
	if err != nil {
		return nil, err
	}
	return map[string]any{"sinks": sinks, "count": len(sinks)}, nil
}

func (a *Agent) deleteSink(ctx context.Context, params rpc.Params) (any, error) {
	sinkID, errp := params.RequiredString("sink_id")
	if errp != nil {
		return nil, errp
	}
	removed, err := a.store.Delete(sinkID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"removed": removed}, nil
}
