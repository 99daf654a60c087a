package registry

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDefaultCards_RegisterCleanly(t *testing.T) {
	store := testStore(t)
	cards := DefaultCards("http://127.0.0.1:8700", "")

	if err := Seed(store, cards, testLogger()); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	listed, err := store.ListAgents()
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != len(cards) {
		t.Fatalf("expected %d agents, got %d", len(cards), len(listed))
	}

	// Every default card points at the envelope path for its own name.
	for _, card := range cards {
		want := "http://127.0.0.1:8700/agents/" + card.Name + "/a2a"
		if card.InternalAddress != want {
			t.Errorf("%s: internal address %q, want %q", card.Name, card.InternalAddress, want)
		}
		if card.ExternalAddress != "" {
			t.Errorf("%s: external address should be empty without an external base", card.Name)
		}
	}
}

func TestDefaultCards_CoreMethodsPresent(t *testing.T) {
	cards := DefaultCards("http://localhost:1", "http://mesh.example.com")

	byName := map[string][]string{}
	for _, card := range cards {
		for _, cap := range card.Capabilities {
			byName[card.Name] = append(byName[card.Name], cap.Name)
		}
	}

	checks := map[string][]string{
		"agent_registry": {"register_agent", "get_agent", "list_agents", "get_method_details"},
		"sink_registry":  {"register_sink", "get_sink_details", "list_sinks", "delete_sink"},
		"query_planner":  {"plan_and_execute_query", "get_sink_schema"},
		"records_agent":  {"execute_query", "get_schema"},
		"chat_agent":     {"process_message", "get_history", "reset_session"},
	}
	for agent, methods := range checks {
		have, ok := byName[agent]
		if !ok {
			t.Errorf("default cards missing agent %s", agent)
			continue
		}
		for _, m := range methods {
			found := false
			for _, h := range have {
				if h == m {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("agent %s missing method %s", agent, m)
			}
		}
	}
}

func TestManifest_EncodeLoadRoundTrip(t *testing.T) {
	cards := DefaultCards("http://127.0.0.1:8700", "")[:3]

	data, err := EncodeManifest(cards)
	if err != nil {
		t.Fatalf("EncodeManifest failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "agents.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadManifest(path, testLogger())
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}
	if !reflect.DeepEqual(loaded, cards) {
		t.Errorf("manifest round trip changed the cards:\n got  %+v\n want %+v", loaded, cards)
	}
}

func TestLoadManifest_MissingFileIsEmpty(t *testing.T) {
	cards, err := LoadManifest(filepath.Join(t.TempDir(), "absent.yaml"), testLogger())
	if err != nil {
		t.Fatalf("missing manifest must not be an error: %v", err)
	}
	if cards != nil {
		t.Errorf("expected no cards, got %d", len(cards))
	}
}

func TestLoadManifest_ExpandsEnvVars(t *testing.T) {
	t.Setenv("MESH_BASE", "http://10.1.2.3:8700")

	manifest := `
agents:
  - name: remote_agent
    internal_address: ${MESH_BASE}/agents/remote_agent/a2a
    description: lives ${MESH_REGION:-nowhere} in particular
`
	path := filepath.Join(t.TempDir(), "agents.yaml")
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	cards, err := LoadManifest(path, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if len(cards) != 1 {
		t.Fatalf("expected 1 card, got %d", len(cards))
	}
	if cards[0].InternalAddress != "http://10.1.2.3:8700/agents/remote_agent/a2a" {
		t.Errorf("env var not expanded: %s", cards[0].InternalAddress)
	}
	if cards[0].Description != "lives nowhere in particular" {
		t.Errorf("default expansion failed: %s", cards[0].Description)
	}
}

func TestLoadManifest_BadYAMLIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	if err := os.WriteFile(path, []byte("agents: [not: closed"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadManifest(path, testLogger()); err == nil {
		t.Fatal("expected a parse error")
	}
}
