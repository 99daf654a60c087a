package auth

import (
	"context"
	"fmt"
	"log/slog"

	"querymesh/internal/bus"
	"querymesh/internal/config"
	"querymesh/internal/rpc"
)

// CredentialChecker answers whether a username/password pair is good.
// The auth agent talks to this boundary only, so the backend can be the
// in-process table or a proxy to the credential service agent.
type CredentialChecker interface {
	Check(ctx context.Context, username, password string) (bool, error)
}

// Credentials is the account table behind login. A real deployment
// would put an identity provider here; this one serves the configured
// static accounts and falls back to the built-in demo pair.
type Credentials struct {
	accounts map[string]string
	logger   *slog.Logger
}

// NewCredentials builds the account table from config. An empty table
// gets the demo accounts.
func NewCredentials(accounts []config.Account, logger *slog.Logger) *Credentials {
	table := make(map[string]string, len(accounts))
	for _, account := range accounts {
		if account.Username == "" {
			continue
		}
		table[account.Username] = account.Password
	}
	if len(table) == 0 {
		table["admin"] = "secret"
		table["user"] = "pass"
	}
	return &Credentials{
		accounts: table,
		logger:   logger.With("component", "credentials"),
	}
}

// Check validates one username/password pair against the table.
func (c *Credentials) Check(_ context.Context, username, password string) (bool, error) {
	want, known := c.accounts[username]
	if !known || want != password {
		c.logger.Warn("credential check failed", "username", username)
		return false, nil
	}
	return true, nil
}

// Dispatcher serves the credential service over the envelope. The
// validate_credentials result is a bare boolean.
func (c *Credentials) Dispatcher(events *bus.EventBus) *rpc.Dispatcher {
	d := rpc.NewDispatcher("credential_service", c.logger, events)
	d.Handle("validate_credentials", c.validateCredentials)
	return d
}

func (c *Credentials) validateCredentials(ctx context.Context, params rpc.Params) (any, error) {
	username, err := params.RequiredString("username")
	if err != nil {
		return nil, err
	}
	password, err := params.RequiredString("password")
	if err != nil {
		return nil, err
	}
	return c.Check(ctx, username, password)
}

// MeshCredentials checks credentials by calling the credential service
// agent through the registry, the way a split deployment would.
type MeshCredentials struct {
	caller *rpc.Caller
}

func NewMeshCredentials(caller *rpc.Caller) *MeshCredentials {
	return &MeshCredentials{caller: caller}
}

// Check proxies validate_credentials over the envelope.
func (m *MeshCredentials) Check(ctx context.Context, username, password string) (bool, error) {
	result, err := m.caller.CallAgent(ctx, "credential_service", "validate_credentials", map[string]any{
		"username": username,
		"password": password,
	})
	if err != nil {
		return false, err
	}
	valid, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("credential service returned %T, want bool", result)
	}
	return valid, nil
}
