package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindSurvivesWrapping(t *testing.T) {
	base := &Error{Kind: KindUpstreamFormat, Op: "planner.Parse", Message: "no structured plan found", Raw: "sorry, no plan"}
	wrapped := fmt.Errorf("generate plan: %w", base)

	if !IsKind(wrapped, KindUpstreamFormat) {
		t.Fatalf("expected upstream_format kind, got %q", KindOf(wrapped))
	}
	if RawOf(wrapped) != "sorry, no plan" {
		t.Fatalf("raw text lost: %q", RawOf(wrapped))
	}
	if IsKind(nil, KindUpstreamFormat) || IsKind(errors.New("plain"), KindTransport) {
		t.Fatal("plain errors have no kind")
	}
}

func TestErrorMessage(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := Wrapf(KindTransport, "llm.Generate", cause, "request failed")
	if err.Error() != "llm.Generate: transport: request failed: dial tcp: timeout" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to unwrap")
	}
	if New(KindStale, "", "response superseded").Error() != "stale: response superseded" {
		t.Fatalf("unexpected message without op: %q", New(KindStale, "", "response superseded").Error())
	}
}
