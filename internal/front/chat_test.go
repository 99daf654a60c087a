package front

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"querymesh/internal/domain"
	"querymesh/internal/rpc"
	"querymesh/internal/sink"
)

type stubRegistry struct {
	cards map[string]domain.AgentDescriptor
}

func (s *stubRegistry) Register(domain.AgentDescriptor) error { return nil }
func (s *stubRegistry) GetAgent(name string) (*domain.AgentDescriptor, error) {
	card, ok := s.cards[name]
	if !ok {
		return nil, nil
	}
	return &card, nil
}
func (s *stubRegistry) ListAgents() ([]domain.AgentDescriptor, error) {
	out := make([]domain.AgentDescriptor, 0, len(s.cards))
	for _, card := range s.cards {
		out = append(out, card)
	}
	return out, nil
}
func (s *stubRegistry) GetMethodDetails(string, string) (*domain.Capability, error) {
	return nil, nil
}

type plannerStub struct {
	result     domain.QueryResult
	err        error
	calls      int
	lastParams rpc.Params
}

func (p *plannerStub) handle(_ context.Context, params rpc.Params) (any, error) {
	p.calls++
	p.lastParams = params
	if p.err != nil {
		return nil, p.err
	}
	return p.result, nil
}

// testFront hosts a stub planner behind a real envelope server so the
// front door's mesh path is exercised end to end.
func testFront(t *testing.T, planner *plannerStub) *Agent {
	t.Helper()

	d := rpc.NewDispatcher("query_planner", testLogger(), nil)
	d.Handle("plan_and_execute_query", planner.handle)
	srv := rpc.NewServer(rpc.ServerConfig{Logger: testLogger()})
	srv.Mount(d)
	web := httptest.NewServer(srv.Handler())
	t.Cleanup(web.Close)

	reg := &stubRegistry{cards: map[string]domain.AgentDescriptor{
		"query_planner": {Name: "query_planner", Description: "plans and executes data queries", InternalAddress: web.URL},
		"chat_agent":    {Name: "chat_agent", Description: "orchestrating front door", InternalAddress: web.URL},
	}}

	sinks, err := sink.NewFileStore(filepath.Join(t.TempDir(), "sinks.json"), testLogger())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := sinks.Register(domain.SinkDescriptor{
		SinkID:        "hrdb",
		Name:          "HR database",
		SinkType:      "sqlite",
		ConnectionRef: map[string]any{"database_file_path": "unused"},
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	history, err := NewHistory(filepath.Join(t.TempDir(), "sessions.db"), testLogger())
	if err != nil {
		t.Fatalf("NewHistory: %v", err)
	}
	t.Cleanup(func() { history.Close() })

	return New(Config{
		History:  history,
		Caller:   rpc.NewCaller(reg, rpc.NewClient(2*time.Second, testLogger())),
		Registry: reg,
		Sinks:    sinks,
		Logger:   testLogger(),
	})
}

func dispatch(t *testing.T, d *rpc.Dispatcher, method string, params rpc.Params) rpc.Response {
	t.Helper()
	return d.Dispatch(context.Background(), rpc.Request{
		ProtocolVersion: rpc.ProtocolVersion,
		Method:          method,
		Params:          params,
		ID:              1,
	})
}

func TestAgent_DataQueryOverTheMesh(t *testing.T) {
	planner := &plannerStub{result: domain.QueryResult{
		Success:  true,
		Columns:  []string{"name"},
		Rows:     []map[string]any{{"name": "Ada"}},
		RowCount: 1,
	}}
	agent := testFront(t, planner)
	d := agent.Dispatcher(nil)

	resp := dispatch(t, d, "process_message", rpc.Params{
		"session_id": "s1",
		"message":    "show all candidates @sink:hrdb",
	})
	if resp.Error != nil {
		t.Fatalf("process_message failed: %v", resp.Error)
	}
	result := resp.Result.(map[string]any)
	if result["session_id"] != "s1" {
		t.Errorf("session_id = %v", result["session_id"])
	}
	reply := result["reply"].(string)
	if !strings.Contains(reply, "1 row(s) from hrdb") || !strings.Contains(reply, "Ada") {
		t.Errorf("reply = %q", reply)
	}

	if planner.calls != 1 {
		t.Fatalf("planner called %d times", planner.calls)
	}
	if intent, _ := planner.lastParams.String("intent"); intent != "show all candidates" {
		t.Errorf("intent = %q, want the tag stripped", intent)
	}
	if sinkID, _ := planner.lastParams.String("sink_id"); sinkID != "hrdb" {
		t.Errorf("sink_id = %q", sinkID)
	}

	entries, err := agent.history.Messages(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("history holds %d entries, want 2", len(entries))
	}
	if entries[0].Content != "show all candidates @sink:hrdb" {
		t.Errorf("user entry = %q, want the original message", entries[0].Content)
	}
	if entries[1].Role != "assistant" || entries[1].Content != reply {
		t.Errorf("assistant entry = %+v", entries[1])
	}
}

func TestAgent_SinkIDParamWinsOverTag(t *testing.T) {
	planner := &plannerStub{result: domain.QueryResult{Success: true, RowCount: 0}}
	agent := testFront(t, planner)

	agent.ProcessMessage(context.Background(), "s1", "count candidates @sink:ignored", "hrdb")

	if sinkID, _ := planner.lastParams.String("sink_id"); sinkID != "hrdb" {
		t.Errorf("sink_id = %q, want the explicit parameter", sinkID)
	}
}

func TestAgent_SchemaHintsForwarded(t *testing.T) {
	planner := &plannerStub{result: domain.QueryResult{Success: true, RowCount: 0}}
	agent := testFront(t, planner)

	agent.ProcessMessage(context.Background(), "s1", "get schema for table candidates @sink:hrdb", "")

	options, ok := planner.lastParams.Map("options")
	if !ok {
		t.Fatalf("planner got no options: %v", planner.lastParams)
	}
	if options["entity_name"] != "candidates" {
		t.Errorf("entity_name = %v", options["entity_name"])
	}
	hints, _ := options["hints"].(map[string]any)
	if hints["operation"] != "get_schema" {
		t.Errorf("hints = %v", hints)
	}
}

func TestAgent_PlannerEnvelopeErrorBecomesReply(t *testing.T) {
	planner := &plannerStub{err: rpc.Errorf(rpc.CodeInternalError, "planner exploded")}
	agent := testFront(t, planner)
	d := agent.Dispatcher(nil)

	resp := dispatch(t, d, "process_message", rpc.Params{
		"message": "anything @sink:hrdb",
	})
	if resp.Error != nil {
		t.Fatalf("front door must not propagate downstream envelope errors, got %v", resp.Error)
	}
	reply := resp.Result.(map[string]any)["reply"].(string)
	if !strings.Contains(reply, "Query failed") || !strings.Contains(reply, "planner exploded") {
		t.Errorf("reply = %q", reply)
	}
}

func TestAgent_PlannerUnreachableBecomesReply(t *testing.T) {
	planner := &plannerStub{result: domain.QueryResult{Success: true}}
	agent := testFront(t, planner)
	agent.caller = rpc.NewCaller(&stubRegistry{cards: map[string]domain.AgentDescriptor{
		"query_planner": {Name: "query_planner", InternalAddress: "http://127.0.0.1:1"},
	}}, rpc.NewClient(time.Second, testLogger()))

	reply := agent.ProcessMessage(context.Background(), "s1", "anything @sink:hrdb", "")
	if !strings.Contains(reply, "unreachable") {
		t.Errorf("reply = %q", reply)
	}
	if planner.calls != 0 {
		t.Errorf("stub planner was reached %d times", planner.calls)
	}
}

func TestAgent_LocalIntents(t *testing.T) {
	agent := testFront(t, &plannerStub{})

	reply := agent.ProcessMessage(context.Background(), "s1", "list sinks", "")
	if !strings.Contains(reply, "hrdb") || !strings.Contains(reply, "sqlite") {
		t.Errorf("sinks reply = %q", reply)
	}

	reply = agent.ProcessMessage(context.Background(), "s1", "list agents", "")
	if !strings.Contains(reply, "query_planner") {
		t.Errorf("agents reply = %q", reply)
	}

	reply = agent.ProcessMessage(context.Background(), "s1", "help", "")
	if !strings.Contains(reply, "@sink:") {
		t.Errorf("help reply = %q", reply)
	}

	reply = agent.ProcessMessage(context.Background(), "s1", "status", "")
	if !strings.Contains(reply, "2 agent(s)") || !strings.Contains(reply, "1 sink(s)") {
		t.Errorf("status reply = %q", reply)
	}

	reply = agent.ProcessMessage(context.Background(), "s1", "good morning", "")
	if !strings.Contains(reply, "You said") {
		t.Errorf("default reply = %q", reply)
	}
}

func TestAgent_GetHistoryAndResetOverEnvelope(t *testing.T) {
	agent := testFront(t, &plannerStub{result: domain.QueryResult{Success: true}})
	d := agent.Dispatcher(nil)

	dispatch(t, d, "process_message", rpc.Params{"session_id": "s9", "message": "hello there"})

	resp := dispatch(t, d, "get_history", rpc.Params{"session_id": "s9"})
	if resp.Error != nil {
		t.Fatalf("get_history failed: %v", resp.Error)
	}
	messages := resp.Result.(map[string]any)["messages"].([]Entry)
	if len(messages) != 2 {
		t.Fatalf("history = %+v", messages)
	}

	resp = dispatch(t, d, "reset_session", rpc.Params{"session_id": "s9"})
	if resp.Error != nil {
		t.Fatalf("reset_session failed: %v", resp.Error)
	}
	if resp.Result.(map[string]any)["reset"] != true {
		t.Errorf("reset result = %+v", resp.Result)
	}

	resp = dispatch(t, d, "get_history", rpc.Params{"session_id": "s9"})
	if got := resp.Result.(map[string]any)["messages"].([]Entry); len(got) != 0 {
		t.Errorf("history after reset = %+v", got)
	}
}

func TestAgent_MissingMessageIsInvalidParams(t *testing.T) {
	agent := testFront(t, &plannerStub{})
	d := agent.Dispatcher(nil)

	resp := dispatch(t, d, "process_message", rpc.Params{"session_id": "s1"})
	if resp.Error == nil || resp.Error.Code != rpc.CodeInvalidParams {
		t.Errorf("error = %+v, want invalid-params", resp.Error)
	}
}

func TestSplitSinkTag(t *testing.T) {
	tests := []struct {
		message    string
		wantSink   string
		wantIntent string
	}{
		{"show all candidates @sink:hrdb", "hrdb", "show all candidates"},
		{"@sink:warehouse-1 count rows", "warehouse-1", "count rows"},
		{"no tag here", "", "no tag here"},
		{"@sink:a.b_c", "a.b_c", ""},
	}
	for _, tt := range tests {
		sinkID, intent := splitSinkTag(tt.message)
		if sinkID != tt.wantSink || intent != tt.wantIntent {
			t.Errorf("splitSinkTag(%q) = (%q, %q), want (%q, %q)",
				tt.message, sinkID, intent, tt.wantSink, tt.wantIntent)
		}
	}
}

func TestPreliminaryOptions(t *testing.T) {
	if options := preliminaryOptions("show all engineers"); options != nil {
		t.Errorf("plain intent produced options %v", options)
	}

	options := preliminaryOptions("get schema")
	if options == nil {
		t.Fatal("schema intent produced no options")
	}
	if _, ok := options["entity_name"]; ok {
		t.Errorf("bare schema request guessed an entity: %v", options)
	}

	options = preliminaryOptions("schema for table candidates please")
	if options["entity_name"] != "candidates" {
		t.Errorf("entity_name = %v", options["entity_name"])
	}
}
