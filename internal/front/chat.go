package front

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"querymesh/internal/bus"
	"querymesh/internal/domain"
	"querymesh/internal/rpc"
)

// Agent is the orchestrating front door. It owns the session
// transcripts and reaches the rest of the mesh strictly through the
// registry and the envelope client, the same way an external caller
// would.
type Agent struct {
	history  *History
	caller   *rpc.Caller
	registry domain.Registry
	sinks    domain.SinkStore
	router   *Router
	timeout  time.Duration
	logger   *slog.Logger
}

// Config wires the front door. Timeout bounds each planner call; <= 0
// selects 10s.
type Config struct {
	History  *History
	Caller   *rpc.Caller
	Registry domain.Registry
	Sinks    domain.SinkStore
	Timeout  time.Duration
	Logger   *slog.Logger
}

func New(cfg Config) *Agent {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := cfg.Logger.With("agent", "chat_agent")
	return &Agent{
		history:  cfg.History,
		caller:   cfg.Caller,
		registry: cfg.Registry,
		sinks:    cfg.Sinks,
		router:   NewRouter(logger),
		timeout:  timeout,
		logger:   logger,
	}
}

// Dispatcher mounts the chat agent's method table.
func (a *Agent) Dispatcher(events *bus.EventBus) *rpc.Dispatcher {
	d := rpc.NewDispatcher("chat_agent", a.logger, events)
	d.Handle("process_message", a.processMessage)
	d.Handle("get_history", a.getHistory)
	d.Handle("reset_session", a.resetSession)
	return d
}

func (a *Agent) processMessage(ctx context.Context, params rpc.Params) (any, error) {
	message, err := params.RequiredString("message")
	if err != nil {
		return nil, err
	}
	sessionID := params.StringDefault("session_id", "default")
	sinkID := params.StringDefault("sink_id", "")

	reply := a.ProcessMessage(ctx, sessionID, message, sinkID)
	return map[string]any{"reply": reply, "session_id": sessionID}, nil
}

// ProcessMessage runs one chat turn and returns the reply. Exported for
// transports that sit in-process next to the agent (Telegram). History
// trouble degrades to a logged warning so the conversation stays up.
func (a *Agent) ProcessMessage(ctx context.Context, sessionID, message, sinkID string) string {
	tagSink, intent := splitSinkTag(message)
	if sinkID == "" {
		sinkID = tagSink
	}

	if err := a.history.Append(ctx, sessionID, "user", message); err != nil {
		a.logger.Warn("cannot append to history", "session", sessionID, "error", err)
	}

	var reply string
	if sinkID != "" {
		reply = a.handleDataQuery(ctx, intent, sinkID)
	} else {
		reply = a.handleChat(intent)
	}

	if err := a.history.Append(ctx, sessionID, "assistant", reply); err != nil {
		a.logger.Warn("cannot append to history", "session", sessionID, "error", err)
	}
	return reply
}

func (a *Agent) getHistory(ctx context.Context, params rpc.Params) (any, error) {
	sessionID, err := params.RequiredString("session_id")
	if err != nil {
		return nil, err
	}
	entries, histErr := a.history.Messages(ctx, sessionID)
	if histErr != nil {
		return nil, histErr
	}
	return map[string]any{"session_id": sessionID, "messages": entries}, nil
}

func (a *Agent) resetSession(ctx context.Context, params rpc.Params) (any, error) {
	sessionID, err := params.RequiredString("session_id")
	if err != nil {
		return nil, err
	}
	if err := a.history.Reset(ctx, sessionID); err != nil {
		return nil, err
	}
	a.logger.Info("session reset", "session", sessionID)
	return map[string]any{"session_id": sessionID, "reset": true}, nil
}

// handleDataQuery sends the intent to the planner and renders whatever
// comes back. Planner trouble is rendered into the reply; the front
// door never turns a downstream failure into its own envelope error.
func (a *Agent) handleDataQuery(ctx context.Context, intent, sinkID string) string {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	params := map[string]any{"intent": intent, "sink_id": sinkID}
	if options := preliminaryOptions(intent); len(options) > 0 {
		params["options"] = options
	}

	raw, err := a.caller.CallAgent(ctx, "query_planner", "plan_and_execute_query", params)
	if err != nil {
		var envErr *rpc.Error
		if errors.As(err, &envErr) {
			a.logger.Warn("planner rejected request", "sink_id", sinkID, "code", envErr.Code, "error", envErr.Message)
			return fmt.Sprintf("Query failed: %s", envErr.Message)
		}
		a.logger.Warn("planner unreachable", "sink_id", sinkID, "error", err)
		return "The query planner is unreachable right now, try again shortly."
	}

	result, err := decodeResult(raw)
	if err != nil {
		a.logger.Warn("planner returned an unexpected shape", "error", err)
		return "The query planner returned something I could not read."
	}
	return renderResult(sinkID, result)
}

// handleChat answers a message that names no sink: local intents get
// real answers, everything else the pointer at the query syntax.
func (a *Agent) handleChat(message string) string {
	switch a.router.Route(message) {
	case intentHelp:
		return helpReply
	case intentStatus:
		return a.statusReply()
	case intentAgents:
		return a.agentsReply()
	case intentSinks:
		return a.sinksReply()
	}
	return fmt.Sprintf("You said: %q. Tag a data source with @sink:<id> (or pass sink_id) to run a query against it, or ask for help.", message)
}

const helpReply = `I answer questions about the data sinks registered on this mesh.

Run a query:      describe what you want and tag the sink, e.g.
                  "show all engineers with 5+ years @sink:hrdb"
Inspect a schema: "get schema @sink:hrdb" or "schema for table candidates @sink:hrdb"
Look around:      "list sinks", "list agents", "status"`

func (a *Agent) statusReply() string {
	agents, err := a.registry.ListAgents()
	if err != nil {
		return fmt.Sprintf("Registry unavailable: %v", err)
	}
	sinks, err := a.sinks.List()
	if err != nil {
		return fmt.Sprintf("%d agent(s) registered; sink catalogue unavailable: %v", len(agents), err)
	}
	return fmt.Sprintf("Mesh is up: %d agent(s) registered, %d sink(s) catalogued.", len(agents), len(sinks))
}

func (a *Agent) agentsReply() string {
	agents, err := a.registry.ListAgents()
	if err != nil {
		return fmt.Sprintf("Registry unavailable: %v", err)
	}
	if len(agents) == 0 {
		return "No agents are registered yet."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d agent(s) registered:\n", len(agents))
	for _, card := range agents {
		fmt.Fprintf(&b, "- %s", card.Name)
		if card.Description != "" {
			fmt.Fprintf(&b, ": %s", card.Description)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func (a *Agent) sinksReply() string {
	sinks, err := a.sinks.List()
	if err != nil {
		return fmt.Sprintf("Sink catalogue unavailable: %v", err)
	}
	if len(sinks) == 0 {
		return "No sinks are catalogued yet. Register one through the sink registry."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d sink(s) catalogued:\n", len(sinks))
	for _, sink := range sinks {
		fmt.Fprintf(&b, "- %s (%s)", sink.SinkID, sink.SinkType)
		if sink.Name != "" {
			fmt.Fprintf(&b, ": %s", sink.Name)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

var sinkTagRe = regexp.MustCompile(`@sink:([A-Za-z0-9_.-]+)`)

// splitSinkTag extracts an @sink:<id> tag. The tag is removed from the
// returned text so the planner sees only the intent.
func splitSinkTag(message string) (string, string) {
	m := sinkTagRe.FindStringSubmatch(message)
	if m == nil {
		return "", message
	}
	cleaned := strings.Join(strings.Fields(sinkTagRe.ReplaceAllString(message, " ")), " ")
	return m[1], cleaned
}

var schemaEntityRe = regexp.MustCompile(`schema\s+(?:for|of)\s+(?:the\s+)?(?:table\s+)?([a-z_][a-z0-9_.]*)`)

// preliminaryOptions is the shallow pre-analysis handed to the planner
// as routing hints: schema questions are flagged and the entity carried
// over when one follows the marker.
func preliminaryOptions(intent string) map[string]any {
	lower := strings.ToLower(intent)
	if !strings.Contains(lower, "schema for") &&
		!strings.Contains(lower, "schema of") &&
		!strings.Contains(lower, "get schema") &&
		!strings.Contains(lower, "show schema") {
		return nil
	}

	options := map[string]any{"hints": map[string]any{"operation": "get_schema"}}
	if m := schemaEntityRe.FindStringSubmatch(lower); m != nil {
		options["entity_name"] = m[1]
	}
	return options
}
