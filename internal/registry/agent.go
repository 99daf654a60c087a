package registry

import (
	"context"
	"log/slog"

	"querymesh/internal/bus"
	"querymesh/internal/domain"
	"querymesh/internal/rpc"
)

// Agent serves the registry over the call envelope.
type Agent struct {
	store  domain.Registry
	logger *slog.Logger
}

func NewAgent(store domain.Registry, logger *slog.Logger) *Agent {
	return &Agent{store: store, logger: logger.With("agent", "agent_registry")}
}

// Dispatcher mounts the registry methods.
func (a *Agent) Dispatcher(events *bus.EventBus) *rpc.Dispatcher {
	d := rpc.NewDispatcher("agent_registry", a.logger, events)
	d.Handle("register_agent", a.registerAgent)
	d.Handle("get_agent", a.getAgent)
	d.Handle("list_agents", a.listAgents)
	d.Handle("get_method_details", a.getMethodDetails)
	return d
}

func (a *Agent) registerAgent(ctx context.Context, params rpc.Params) (any, error) {
	var card domain.AgentDescriptor
	if errp := params.BindKey("agent_card", &card); errp != nil {
		return nil, errp
	}
	if card.Name == "" {
		return nil, rpc.InvalidParams("agent_card must include a name")
	}
	if err := a.store.Register(card); err != nil {
		return nil, err
	}
	return map[string]any{"status": "registered", "name": card.Name}, nil
}

func (a *Agent) getAgent(ctx context.Context, params rpc.Params) (any, error) {
	name, errp := params.RequiredString("agent_name")
	if errp != nil {
		return nil, errp
	}
	card, err := a.store.GetAgent(name)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return map[string]any{"agent": nil, "found": false}, nil
	}
	return map[string]any{"agent": card, "found": true}, nil
}

func (a *Agent) listAgents(ctx context.Context, params rpc.Params) (any, error) {
	cards, err := a.store.ListAgents()
	if err != nil {
		return nil, err
	}
	if cards == nil {
		cards = []domain.AgentDescriptor{}
	}
	return map[string]any{"agents": cards, "count": len(cards)}, nil
}

func (a *Agent) getMethodDetails(ctx context.Context, params rpc.Params) (any, error) {
	agentName, errp := params.RequiredString("agent_name")
	if errp != nil {
		return nil, errp
	}
	methodName, errp := params.RequiredString("method_name")
	if errp != nil {
		return nil, errp
	}
	method, err := a.store.GetMethodDetails(agentName, methodName)
	if err != nil {
		return nil, err
	}
	if method == nil {
		return map[string]any{"method": nil, "found": false}, nil
	}
	return map[string]any{"method": method, "found": true}, nil
}
