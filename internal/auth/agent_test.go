package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"querymesh/internal/config"
	"querymesh/internal/domain"
	"querymesh/internal/rpc"
)

func dispatch(t *testing.T, d *rpc.Dispatcher, method string, params rpc.Params) rpc.Response {
	t.Helper()
	return d.Dispatch(context.Background(), rpc.Request{
		ProtocolVersion: rpc.ProtocolVersion,
		Method:          method,
		Params:          params,
		ID:              1,
	})
}

func testAgent(t *testing.T, ttl time.Duration) (*rpc.Dispatcher, *TokenSet) {
	t.Helper()
	tokens := NewTokenSet(ttl, testLogger())
	creds := NewCredentials(nil, testLogger())
	return NewAgent(tokens, creds, testLogger()).Dispatcher(nil), tokens
}

func TestAgent_LoginIssuesToken(t *testing.T) {
	d, _ := testAgent(t, 0)

	resp := dispatch(t, d, "login", rpc.Params{"username": "admin", "password": "secret"})
	if resp.Error != nil {
		t.Fatalf("login failed: %v", resp.Error)
	}
	result := resp.Result.(map[string]any)
	if result["success"] != true {
		t.Fatalf("result = %+v", result)
	}
	token, _ := result["token"].(string)
	if token == "" {
		t.Fatal("login returned no token")
	}

	resp = dispatch(t, d, "verify_token", rpc.Params{"token": token})
	verified := resp.Result.(map[string]any)
	if verified["valid"] != true || verified["subject"] != "admin" {
		t.Errorf("verify_token = %+v", verified)
	}
}

func TestAgent_LoginRejectsBadPassword(t *testing.T) {
	d, tokens := testAgent(t, 0)

	resp := dispatch(t, d, "login", rpc.Params{"username": "admin", "password": "wrong"})
	if resp.Error != nil {
		t.Fatalf("login errored: %v", resp.Error)
	}
	result := resp.Result.(map[string]any)
	if result["success"] != false || result["error"] != "invalid credentials" {
		t.Errorf("result = %+v", result)
	}
	if _, hasToken := result["token"]; hasToken {
		t.Error("failed login carried a token")
	}
	if tokens.Len() != 0 {
		t.Errorf("token set holds %d tokens after a failed login", tokens.Len())
	}
}

type failingChecker struct{}

func (failingChecker) Check(context.Context, string, string) (bool, error) {
	return false, errors.New("backend down")
}

func TestAgent_LoginBackendFailureIsFailureResult(t *testing.T) {
	d := NewAgent(NewTokenSet(0, testLogger()), failingChecker{}, testLogger()).Dispatcher(nil)

	resp := dispatch(t, d, "login", rpc.Params{"username": "admin", "password": "secret"})
	if resp.Error != nil {
		t.Fatalf("login errored: %v", resp.Error)
	}
	result := resp.Result.(map[string]any)
	if result["success"] != false {
		t.Fatalf("result = %+v", result)
	}
	if msg, _ := result["error"].(string); !strings.Contains(msg, "credential service unavailable") {
		t.Errorf("error = %q", msg)
	}
}

func TestAgent_VerifyExpiredToken(t *testing.T) {
	d, tokens := testAgent(t, time.Millisecond)
	token := tokens.Issue("user")

	time.Sleep(5 * time.Millisecond)

	resp := dispatch(t, d, "verify_token", rpc.Params{"token": token})
	result := resp.Result.(map[string]any)
	if result["valid"] != false {
		t.Errorf("result = %+v", result)
	}
	if _, hasSubject := result["subject"]; hasSubject {
		t.Error("invalid verification carried a subject")
	}
}

func TestAgent_LogoutRevokes(t *testing.T) {
	d, tokens := testAgent(t, 0)
	token := tokens.Issue("admin")

	resp := dispatch(t, d, "logout", rpc.Params{"token": token})
	if resp.Result.(map[string]any)["revoked"] != true {
		t.Fatalf("logout = %+v", resp.Result)
	}

	resp = dispatch(t, d, "verify_token", rpc.Params{"token": token})
	if resp.Result.(map[string]any)["valid"] != false {
		t.Error("token survived logout")
	}

	resp = dispatch(t, d, "logout", rpc.Params{"token": token})
	if resp.Result.(map[string]any)["revoked"] != false {
		t.Error("second logout reported revoked")
	}
}

func TestAgent_MissingParamsIsInvalidParams(t *testing.T) {
	d, _ := testAgent(t, 0)

	for _, tt := range []struct {
		method string
		params rpc.Params
	}{
		{"login", rpc.Params{"username": "admin"}},
		{"login", rpc.Params{"password": "secret"}},
		{"verify_token", rpc.Params{}},
		{"logout", rpc.Params{"token": ""}},
	} {
		resp := dispatch(t, d, tt.method, tt.params)
		if resp.Error == nil || resp.Error.Code != rpc.CodeInvalidParams {
			t.Errorf("%s(%v) error = %+v, want invalid-params", tt.method, tt.params, resp.Error)
		}
	}
}

func TestCredentials_ConfiguredAccountsReplaceDemoTable(t *testing.T) {
	creds := NewCredentials([]config.Account{{Username: "ops", Password: "hunter2"}}, testLogger())

	if valid, _ := creds.Check(context.Background(), "ops", "hunter2"); !valid {
		t.Error("configured account rejected")
	}
	if valid, _ := creds.Check(context.Background(), "admin", "secret"); valid {
		t.Error("demo account accepted despite configured table")
	}
}

func TestCredentials_ValidateOverEnvelope(t *testing.T) {
	d := NewCredentials(nil, testLogger()).Dispatcher(nil)

	resp := dispatch(t, d, "validate_credentials", rpc.Params{"username": "user", "password": "pass"})
	if resp.Error != nil || resp.Result != true {
		t.Errorf("good credentials = (%v, %v)", resp.Result, resp.Error)
	}

	resp = dispatch(t, d, "validate_credentials", rpc.Params{"username": "user", "password": "nope"})
	if resp.Error != nil || resp.Result != false {
		t.Errorf("bad credentials = (%v, %v)", resp.Result, resp.Error)
	}
}

type stubRegistry struct{ card *domain.AgentDescriptor }

func (s stubRegistry) Register(domain.AgentDescriptor) error { return nil }
func (s stubRegistry) GetAgent(name string) (*domain.AgentDescriptor, error) {
	if s.card != nil && s.card.Name == name {
		return s.card, nil
	}
	return nil, nil
}
func (s stubRegistry) ListAgents() ([]domain.AgentDescriptor, error) { return nil, nil }
func (s stubRegistry) GetMethodDetails(string, string) (*domain.Capability, error) {
	return nil, nil
}

func TestMeshCredentials_ChecksOverTheMesh(t *testing.T) {
	srv := rpc.NewServer(rpc.ServerConfig{Logger: testLogger()})
	srv.Mount(NewCredentials(nil, testLogger()).Dispatcher(nil))
	web := httptest.NewServer(srv.Handler())
	t.Cleanup(web.Close)

	reg := stubRegistry{card: &domain.AgentDescriptor{
		Name:            "credential_service",
		InternalAddress: web.URL,
	}}
	checker := NewMeshCredentials(rpc.NewCaller(reg, rpc.NewClient(2*time.Second, testLogger())))

	valid, err := checker.Check(context.Background(), "admin", "secret")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !valid {
		t.Error("good credentials rejected over the mesh")
	}

	valid, err = checker.Check(context.Background(), "admin", "nope")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if valid {
		t.Error("bad credentials accepted over the mesh")
	}
}
