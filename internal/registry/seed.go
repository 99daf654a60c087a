package registry

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"querymesh/internal/config"
	"querymesh/internal/domain"
)

// Manifest is the YAML seed file listing agent cards to register at
// startup. Environment references in the file (${VAR}, ${VAR:-def})
// are expanded before parsing so addresses can follow the deployment.
type Manifest struct {
	Agents []domain.AgentDescriptor `yaml:"agents"`
}

// LoadManifest reads a seed manifest. A missing file is not an error;
// it just means there is nothing beyond the built-in cards.
func LoadManifest(path string, logger *slog.Logger) ([]domain.AgentDescriptor, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Debug("seed manifest does not exist, skipping", "path", path)
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal([]byte(config.ExpandEnvVars(string(data))), &manifest); err != nil {
		return nil, fmt.Errorf("parse seed manifest %s: %w", path, err)
	}

	return manifest.Agents, nil
}

// EncodeManifest renders cards as a seed manifest document.
func EncodeManifest(cards []domain.AgentDescriptor) ([]byte, error) {
	return yaml.Marshal(Manifest{Agents: cards})
}

// Seed registers every card, replacing whatever was stored before
// under the same name.
func Seed(store domain.Registry, cards []domain.AgentDescriptor, logger *slog.Logger) error {
	for _, card := range cards {
		if err := store.Register(card); err != nil {
			return fmt.Errorf("seed agent %s: %w", card.Name, err)
		}
	}
	logger.Info("registry seeded", "agents", len(cards))
	return nil
}

func envelopeAddr(base, agent string) string {
	if base == "" {
		return ""
	}
	return base + "/agents/" + agent + "/a2a"
}

// DefaultCards describes the agents this process hosts. internalBase
// is the address agents use to reach each other; externalBase, when
// set, is the address advertised to callers outside the mesh.
func DefaultCards(internalBase, externalBase string) []domain.AgentDescriptor {
	card := func(name, description string, caps ...domain.Capability) domain.AgentDescriptor {
		return domain.AgentDescriptor{
			Name:            name,
			Description:     description,
			InternalAddress: envelopeAddr(internalBase, name),
			ExternalAddress: envelopeAddr(externalBase, name),
			Capabilities:    caps,
		}
	}

	return []domain.AgentDescriptor{
		card("agent_registry",
			"Central directory of agent cards. Register, look up and introspect agents.",
			domain.Capability{
				Name:        "register_agent",
				Description: "Register or fully replace an agent card by name.",
				Params: []domain.ParamSpec{
					{Name: "agent_card", Type: "object", Required: true, Description: "Complete agent card to store"},
				},
				Returns: []domain.ReturnSpec{
					{Name: "status", Type: "string", Description: "'registered' on success"},
					{Name: "name", Type: "string", Description: "Name the card was stored under"},
				},
			},
			domain.Capability{
				Name:        "get_agent",
				Description: "Retrieve a registered agent's card by name.",
				Params: []domain.ParamSpec{
					{Name: "agent_name", Type: "string", Required: true, Description: "Name of the agent to retrieve"},
				},
				Returns: []domain.ReturnSpec{
					{Name: "agent", Type: "object", Description: "Agent card, or null when not registered"},
					{Name: "found", Type: "boolean", Description: "False when the agent is not registered"},
				},
			},
			domain.Capability{
				Name:        "list_agents",
				Description: "List all registered agent cards ordered by name.",
				Returns: []domain.ReturnSpec{
					{Name: "agents", Type: "array[object]", Description: "All registered agent cards"},
					{Name: "count", Type: "integer", Description: "Number of registered agents"},
				},
			},
			domain.Capability{
				Name:        "get_method_details",
				Description: "Retrieve metadata for one method of a registered agent.",
				Params: []domain.ParamSpec{
					{Name: "agent_name", Type: "string", Required: true, Description: "Name of the agent"},
					{Name: "method_name", Type: "string", Required: true, Description: "Name of the method"},
				},
				Returns: []domain.ReturnSpec{
					{Name: "method", Type: "object", Description: "Method metadata, or null when agent or method is unknown"},
					{Name: "found", Type: "boolean", Description: "False when agent or method is unknown"},
				},
			},
		),

		card("auth_agent",
			"Issues and verifies session tokens backed by the credential service.",
			domain.Capability{
				Name:        "login",
				Description: "Validate credentials and issue a session token.",
				Params: []domain.ParamSpec{
					{Name: "username", Type: "string", Required: true, Description: "User's login name"},
					{Name: "password", Type: "string", Required: true, Description: "User's password (secret)"},
				},
				Returns: []domain.ReturnSpec{
					{Name: "success", Type: "boolean", Description: "Indicates if login succeeded"},
					{Name: "token", Type: "string", Description: "Authentication token if successful (UUID string)"},
					{Name: "error", Type: "string", Description: "Error message if failed"},
				},
			},
			domain.Capability{
				Name:        "verify_token",
				Description: "Check whether a previously issued token is still valid.",
				Params: []domain.ParamSpec{
					{Name: "token", Type: "string", Required: true, Description: "Token to verify"},
				},
				Returns: []domain.ReturnSpec{
					{Name: "valid", Type: "boolean", Description: "True if the token is valid and unexpired"},
					{Name: "subject", Type: "string", Description: "Username the token was issued to, when valid"},
				},
			},
			domain.Capability{
				Name:        "logout",
				Description: "Revoke a token. Revoking an unknown token is a no-op.",
				Params: []domain.ParamSpec{
					{Name: "token", Type: "string", Required: true, Description: "Token to revoke"},
				},
				Returns: []domain.ReturnSpec{
					{Name: "revoked", Type: "boolean", Description: "True if the token existed and was removed"},
				},
			},
		),

		card("credential_service",
			"Validates username/password pairs against the account table. Auth backend boundary.",
			domain.Capability{
				Name:        "validate_credentials",
				Description: "Check a username/password pair.",
				Params: []domain.ParamSpec{
					{Name: "username", Type: "string", Required: true, Description: "Username"},
					{Name: "password", Type: "string", Required: true, Description: "Password"},
				},
				Returns: []domain.ReturnSpec{
					{Name: "$result", Type: "boolean", Description: "True if credentials are valid, false otherwise"},
				},
			},
		),

		card("search_agent",
			"Finds candidates matching a query by delegating to the crawler agent.",
			domain.Capability{
				Name:        "search_candidates",
				Description: "Search for candidates matching a free-text query.",
				Params: []domain.ParamSpec{
					{Name: "query", Type: "string", Required: true, Description: "Free-text search query (title, skills)"},
					{Name: "limit", Type: "integer", Required: false, Description: "Maximum candidates to return (default 5)"},
				},
				Returns: []domain.ReturnSpec{
					{Name: "candidates", Type: "array[object]", Description: "Candidate objects (id, name, title, skills, experience)"},
					{Name: "source", Type: "string", Description: "Agent that produced the data"},
				},
			},
		),

		card("crawler_agent",
			"Produces candidate leads, generated or scraped from a configured source page.",
			domain.Capability{
				Name:        "crawl_candidates",
				Description: "Generate candidate leads for a query.",
				Params: []domain.ParamSpec{
					{Name: "query", Type: "string", Required: true, Description: "Search query the candidates should match"},
					{Name: "limit", Type: "integer", Required: false, Description: "Maximum candidates to return (default 5)"},
				},
				Returns: []domain.ReturnSpec{
					{Name: "$result", Type: "array[object]", Description: "Candidate objects (id, name, title, skills list, experience string)"},
				},
			},
			domain.Capability{
				Name:        "fetch_page_titles",
				Description: "Drive a headless browser to extract the title and link texts of a page.",
				Params: []domain.ParamSpec{
					{Name: "url", Type: "string", Required: false, Description: "Page to fetch; defaults to the configured source URL"},
				},
				Returns: []domain.ReturnSpec{
					{Name: "title", Type: "string", Description: "Page title"},
					{Name: "links", Type: "array[string]", Description: "Anchor texts found on the page"},
				},
			},
		),

		card("records_agent",
			"Owns the candidate records database and serves read-only queries over it.",
			domain.Capability{
				Name:        "create_record",
				Description: "Store a candidate record.",
				Params: []domain.ParamSpec{
					{Name: "name", Type: "string", Required: true, Description: "Candidate's full name"},
					{Name: "title", Type: "string", Required: true, Description: "Candidate's job title"},
					{Name: "skills", Type: "array[string]", Required: true, Description: "List of candidate's skills"},
				},
				Returns: []domain.ReturnSpec{
					{Name: "status", Type: "string", Description: "'saved' on success"},
					{Name: "id", Type: "integer", Description: "Assigned record id"},
				},
			},
			domain.Capability{
				Name:        "get_record",
				Description: "Retrieve one candidate record by id.",
				Params: []domain.ParamSpec{
					{Name: "id", Type: "integer", Required: true, Description: "ID of the record to retrieve"},
				},
				Returns: []domain.ReturnSpec{
					{Name: "record", Type: "object", Description: "Candidate record, or null when not found"},
					{Name: "found", Type: "boolean", Description: "False when the record does not exist"},
				},
			},
			domain.Capability{
				Name:        "list_records",
				Description: "List stored candidate records.",
				Params: []domain.ParamSpec{
					{Name: "limit", Type: "integer", Required: false, Description: "Maximum records to return"},
				},
				Returns: []domain.ReturnSpec{
					{Name: "$result", Type: "array[object]", Description: "Candidate records (id, name, title, skills list)"},
				},
			},
			domain.Capability{
				Name:        "execute_query",
				Description: "Execute a read-only SELECT over the records database.",
				Params: []domain.ParamSpec{
					{Name: "query", Type: "string", Required: true, Description: "SELECT statement; anything else is rejected"},
					{Name: "parameters", Type: "object", Required: false, Description: "Named parameter values"},
				},
				Returns: []domain.ReturnSpec{
					{Name: "$result", Type: "object", Description: "Query result: success, columns, rows, row_count, error_message"},
				},
			},
			domain.Capability{
				Name:        "get_schema",
				Description: "Describe the tables of the records database.",
				Params: []domain.ParamSpec{
					{Name: "entity", Type: "string", Required: false, Description: "Table name; all tables when omitted"},
				},
				Returns: []domain.ReturnSpec{
					{Name: "$result", Type: "object", Description: "Schema information: tables with typed columns"},
				},
			},
		),

		card("sink_registry",
			"Catalogue of data sinks: identifiers mapped to backend type and connection details.",
			domain.Capability{
				Name:        "register_sink",
				Description: "Register or fully replace a sink descriptor by sink_id.",
				Params: []domain.ParamSpec{
					{Name: "sink_id", Type: "string", Required: true, Description: "Unique sink identifier"},
					{Name: "name", Type: "string", Required: true, Description: "Human-readable sink name"},
					{Name: "description", Type: "string", Required: false, Description: "What the sink contains"},
					{Name: "sink_type", Type: "string", Required: true, Description: "Backend type, e.g. 'sqlite' or 'bigquery'"},
					{Name: "connection_ref", Type: "object", Required: true, Description: "Connection parameters for the adapter"},
					{Name: "schema_definition", Type: "object", Required: false, Description: "Optional descriptive schema hint"},
				},
				Returns: []domain.ReturnSpec{
					{Name: "status", Type: "string", Description: "'registered' on success"},
					{Name: "sink_id", Type: "string", Description: "Identifier the sink was stored under"},
				},
			},
			domain.Capability{
				Name:        "get_sink_details",
				Description: "Retrieve one sink descriptor.",
				Params: []domain.ParamSpec{
					{Name: "sink_id", Type: "string", Required: true, Description: "Sink identifier"},
				},
				Returns: []domain.ReturnSpec{
					{Name: "sink", Type: "object", Description: "Sink descriptor, or null when not registered"},
					{Name: "found", Type: "boolean", Description: "False when the sink is not registered"},
				},
			},
			domain.Capability{
				Name:        "list_sinks",
				Description: "List all sink descriptors ordered by sink_id.",
				Returns: []domain.ReturnSpec{
					{Name: "sinks", Type: "array[object]", Description: "All registered sink descriptors"},
					{Name: "count", Type: "integer", Description: "Number of registered sinks"},
				},
			},
			domain.Capability{
				Name:        "delete_sink",
				Description: "Remove a sink. Deleting an unknown sink is a no-op.",
				Params: []domain.ParamSpec{
					{Name: "sink_id", Type: "string", Required: true, Description: "Sink identifier"},
				},
				Returns: []domain.ReturnSpec{
					{Name: "removed", Type: "boolean", Description: "True if the sink existed and was removed"},
				},
			},
		),

		card("query_planner",
			"Plans and executes read-only queries against registered sinks from a natural-language intent.",
			domain.Capability{
				Name:        "plan_and_execute_query",
				Description: "Resolve a sink, synthesize a query from the intent, validate and execute it.",
				Params: []domain.ParamSpec{
					{Name: "intent", Type: "string", Required: true, Description: "Natural language or structured query intent"},
					{Name: "sink_id", Type: "string", Required: true, Description: "Identifier of the target data sink"},
					{Name: "options", Type: "object", Required: false, Description: "Planner options, e.g. {\"schema_only\": true}"},
				},
				Returns: []domain.ReturnSpec{
					{Name: "success", Type: "boolean", Description: "True if the query succeeded"},
					{Name: "columns", Type: "array[string]", Description: "Column names if applicable"},
					{Name: "rows", Type: "array[object]", Description: "Data rows if applicable"},
					{Name: "row_count", Type: "integer", Description: "Number of rows returned"},
					{Name: "error_message", Type: "string", Description: "Error message if failed"},
					{Name: "metadata", Type: "object", Description: "Additional execution metadata"},
				},
			},
			domain.Capability{
				Name:        "get_sink_schema",
				Description: "Retrieve a sink's schema as a normal query result.",
				Params: []domain.ParamSpec{
					{Name: "sink_id", Type: "string", Required: true, Description: "Identifier of the target data sink"},
					{Name: "entity_name", Type: "string", Required: false, Description: "Single entity to describe; all entities when omitted"},
				},
				Returns: []domain.ReturnSpec{
					{Name: "$result", Type: "object", Description: "Query result whose rows are schema tuples"},
				},
			},
		),

		card("chat_agent",
			"Chat-style entry point. Routes user messages to the planner or answers them locally.",
			domain.Capability{
				Name:        "process_message",
				Description: "Handle one user message inside a session.",
				Params: []domain.ParamSpec{
					{Name: "message", Type: "string", Required: true, Description: "The user's message"},
					{Name: "session_id", Type: "string", Required: false, Description: "Session to continue; 'default' when omitted"},
					{Name: "sink_id", Type: "string", Required: false, Description: "Target sink; may also be given inline as @sink:<id>"},
				},
				Returns: []domain.ReturnSpec{
					{Name: "reply", Type: "string", Description: "Rendered reply text"},
					{Name: "session_id", Type: "string", Description: "Session the exchange was recorded under"},
				},
			},
			domain.Capability{
				Name:        "get_history",
				Description: "Return the recorded exchanges of a session, oldest first.",
				Params: []domain.ParamSpec{
					{Name: "session_id", Type: "string", Required: true, Description: "Session identifier"},
				},
				Returns: []domain.ReturnSpec{
					{Name: "session_id", Type: "string", Description: "Echoed session identifier"},
					{Name: "messages", Type: "array[object]", Description: "History entries (role, content, created_at)"},
				},
			},
			domain.Capability{
				Name:        "reset_session",
				Description: "Forget a session's history.",
				Params: []domain.ParamSpec{
					{Name: "session_id", Type: "string", Required: true, Description: "Session identifier"},
				},
				Returns: []domain.ReturnSpec{
					{Name: "session_id", Type: "string", Description: "Echoed session identifier"},
					{Name: "reset", Type: "boolean", Description: "True once the history is gone"},
				},
			},
		),
	}
}
