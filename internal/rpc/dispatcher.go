package rpc

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"querymesh/internal/bus"
	"querymesh/internal/domain"
)

// Handler serves one method. It returns the result value or an error;
// *Error values keep their envelope code, *domain.DataAccessError values
// map into the domain band, anything else becomes an internal error.
type Handler func(ctx context.Context, params Params) (any, error)

// Dispatcher is one agent's method table. Handlers are registered once
// at construction time; dispatch is a map lookup, never reflection.
// Dispatch itself is stateless per call; whatever state an agent keeps
// (token sets, session histories) lives in the handlers' receivers.
type Dispatcher struct {
	agent    string
	handlers map[string]Handler
	logger   *slog.Logger
	events   *bus.EventBus
}

// NewDispatcher creates the method table for one agent. events may be
// nil when no lifecycle consumers exist (tests, CLI tools).
func NewDispatcher(agent string, logger *slog.Logger, events *bus.EventBus) *Dispatcher {
	return &Dispatcher{
		agent:    agent,
		handlers: make(map[string]Handler),
		logger:   logger.With("agent", agent),
		events:   events,
	}
}

// Agent returns the agent name this dispatcher serves.
func (d *Dispatcher) Agent() string { return d.agent }

// Handle registers a method. Registering the same name twice replaces
// the earlier handler; registration is not safe for concurrent use and
// happens before the dispatcher is mounted.
func (d *Dispatcher) Handle(method string, h Handler) {
	d.handlers[method] = h
}

// Methods lists registered method names, sorted.
func (d *Dispatcher) Methods() []string {
	out := make([]string, 0, len(d.handlers))
	for m := range d.handlers {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Dispatch answers one decoded request. It always produces exactly one
// response: unknown methods get the method-not-found band, handler
// failures are caught here and mapped to their band, and a panicking
// handler is recovered into an internal error rather than killing the
// process.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	start := time.Now()

	handler, ok := d.handlers[req.Method]
	if !ok {
		resp := Failure(req.ID, MethodNotFound(req.Method))
		d.finish(req.Method, start, resp)
		return resp
	}

	result, err := d.invoke(ctx, handler, Params(req.Params))
	var resp Response
	switch {
	case err == nil:
		resp = Result(req.ID, result)
	default:
		resp = Failure(req.ID, toEnvelopeError(err))
	}
	d.finish(req.Method, start, resp)
	return resp
}

// invoke runs the handler with panic containment.
func (d *Dispatcher) invoke(ctx context.Context, h Handler, params Params) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("handler panic", "panic", r)
			result = nil
			err = InternalError("internal error")
		}
	}()
	return h(ctx, params)
}

// toEnvelopeError maps a handler failure onto the envelope bands.
func toEnvelopeError(err error) *Error {
	var envErr *Error
	if errors.As(err, &envErr) {
		return envErr
	}
	var dae *domain.DataAccessError
	if errors.As(err, &dae) {
		return &Error{Code: CodeDomainError, Message: dae.Error(), Data: map[string]any{"kind": string(dae.Kind)}}
	}
	return InternalError("%v", err)
}

func (d *Dispatcher) finish(method string, start time.Time, resp Response) {
	duration := time.Since(start)
	errClass := ""
	if resp.Error != nil {
		errClass = resp.Error.Class()
		d.logger.Warn("call failed", "method", method, "code", resp.Error.Code, "error", resp.Error.Message, "duration", duration)
	} else {
		d.logger.Debug("call served", "method", method, "duration", duration)
	}
	if d.events != nil {
		d.events.EmitAsync(bus.CallFinished(d.agent, method, duration, errClass))
	}
}
