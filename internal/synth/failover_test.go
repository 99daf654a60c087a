package synth

import (
	"context"
	"errors"
	"testing"

	"querymesh/internal/domain"
)

type stubSynth struct {
	name      string
	candidate domain.SynthCandidate
	err       error
	calls     int
}

func (s *stubSynth) Name() string { return s.name }

func (s *stubSynth) Synthesize(ctx context.Context, req domain.SynthRequest) (domain.SynthCandidate, error) {
	s.calls++
	return s.candidate, s.err
}

func TestFailover_FirstSuccessShortCircuits(t *testing.T) {
	first := &stubSynth{name: "a", candidate: domain.SynthCandidate{QueryString: "SELECT 1"}}
	second := &stubSynth{name: "b", candidate: domain.SynthCandidate{QueryString: "SELECT 2"}}
	chain := NewFailover([]domain.Synthesizer{first, second}, testLogger())

	candidate, err := chain.Synthesize(context.Background(), domain.SynthRequest{Intent: "x"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if candidate.QueryString != "SELECT 1" {
		t.Errorf("query = %q, want first synthesizer's", candidate.QueryString)
	}
	if second.calls != 0 {
		t.Errorf("second synthesizer called %d times, want 0", second.calls)
	}
}

func TestFailover_FallsBackOnError(t *testing.T) {
	first := &stubSynth{name: "a", err: errors.New("provider down")}
	second := &stubSynth{name: "b", candidate: domain.SynthCandidate{QueryString: "SELECT 2"}}
	chain := NewFailover([]domain.Synthesizer{first, second}, testLogger())

	candidate, err := chain.Synthesize(context.Background(), domain.SynthRequest{Intent: "x"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if candidate.QueryString != "SELECT 2" {
		t.Errorf("query = %q, want fallback synthesizer's", candidate.QueryString)
	}
	if first.calls != 1 || second.calls != 1 {
		t.Errorf("calls = %d, %d, want 1, 1", first.calls, second.calls)
	}
}

func TestFailover_AllFailWrapsLastError(t *testing.T) {
	lastErr := errors.New("still down")
	chain := NewFailover([]domain.Synthesizer{
		&stubSynth{name: "a", err: errors.New("down")},
		&stubSynth{name: "b", err: lastErr},
	}, testLogger())

	_, err := chain.Synthesize(context.Background(), domain.SynthRequest{Intent: "x"})
	if !errors.Is(err, lastErr) {
		t.Errorf("err = %v, want wrapped %v", err, lastErr)
	}
}

func TestFailover_Name(t *testing.T) {
	chain := NewFailover([]domain.Synthesizer{
		&stubSynth{name: "openai"},
		&stubSynth{name: "rule"},
	}, testLogger())

	if got := chain.Name(); got != "failover(openai→rule)" {
		t.Errorf("Name() = %q", got)
	}
}

func TestFailover_EmptyChainIsError(t *testing.T) {
	chain := NewFailover(nil, testLogger())

	if _, err := chain.Synthesize(context.Background(), domain.SynthRequest{Intent: "x"}); err == nil {
		t.Fatal("Synthesize on empty chain succeeded, want error")
	}
}
