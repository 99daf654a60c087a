package auth

import (
	"context"
	"fmt"
	"log/slog"

	"querymesh/internal/bus"
	"querymesh/internal/rpc"
)

// Agent answers login traffic for the mesh. Token state lives in the
// injected set, credential decisions behind the injected checker.
type Agent struct {
	tokens *TokenSet
	creds  CredentialChecker
	logger *slog.Logger
}

func NewAgent(tokens *TokenSet, creds CredentialChecker, logger *slog.Logger) *Agent {
	return &Agent{
		tokens: tokens,
		creds:  creds,
		logger: logger.With("agent", "auth_agent"),
	}
}

// Dispatcher mounts the auth agent's method table.
func (a *Agent) Dispatcher(events *bus.EventBus) *rpc.Dispatcher {
	d := rpc.NewDispatcher("auth_agent", a.logger, events)
	d.Handle("login", a.login)
	d.Handle("verify_token", a.verifyToken)
	d.Handle("logout", a.logout)
	return d
}

// login validates the credentials and issues a token. Backend trouble
// and bad credentials are both failure results, not envelope errors, so
// a caller always gets the {success, token|error} shape.
func (a *Agent) login(ctx context.Context, params rpc.Params) (any, error) {
	username, err := params.RequiredString("username")
	if err != nil {
		return nil, err
	}
	password, err := params.RequiredString("password")
	if err != nil {
		return nil, err
	}

	valid, checkErr := a.creds.Check(ctx, username, password)
	if checkErr != nil {
		a.logger.Warn("credential backend unavailable", "error", checkErr)
		return map[string]any{"success": false, "error": fmt.Sprintf("credential service unavailable: %v", checkErr)}, nil
	}
	if !valid {
		return map[string]any{"success": false, "error": "invalid credentials"}, nil
	}

	token := a.tokens.Issue(username)
	return map[string]any{"success": true, "token": token}, nil
}

func (a *Agent) verifyToken(_ context.Context, params rpc.Params) (any, error) {
	token, err := params.RequiredString("token")
	if err != nil {
		return nil, err
	}
	valid, subject := a.tokens.Verify(token)
	if !valid {
		return map[string]any{"valid": false}, nil
	}
	return map[string]any{"valid": true, "subject": subject}, nil
}

func (a *Agent) logout(_ context.Context, params rpc.Params) (any, error) {
	token, err := params.RequiredString("token")
	if err != nil {
		return nil, err
	}
	return map[string]any{"revoked": a.tokens.Revoke(token)}, nil
}
