package federation

import (
	"testing"
	"time"

	"github.com/skillsenselab/identity/errors"
)

func TestStates_RoundTrip(t *testing.T) {
	states := NewStates("state-secret", time.Minute)

	state, err := states.Issue()
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := states.Verify(state); err != nil {
		t.Errorf("fresh state must verify: %v", err)
	}

	other, err := states.Issue()
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if other == state {
		t.Error("states must be unique")
	}
}

func TestStates_Rejects(t *testing.T) {
	states := NewStates("state-secret", time.Minute)
	state, err := states.Issue()
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	cases := map[string]string{
		"empty":     "",
		"garbage":   "not-a-state",
		"truncated": state[:len(state)-4],
	}
	for name, bad := range cases {
		if err := states.Verify(bad); !errors.HasCode(err, errors.ErrCodeInvalidState) {
			t.Errorf("%s: expected %s, got %v", name, errors.ErrCodeInvalidState, err)
		}
	}

	// Signed under a different secret.
	foreign := NewStates("other-secret", time.Minute)
	foreignState, err := foreign.Issue()
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := states.Verify(foreignState); !errors.HasCode(err, errors.ErrCodeInvalidState) {
		t.Errorf("foreign signature: expected %s, got %v", errors.ErrCodeInvalidState, err)
	}
}

func TestStates_Expiry(t *testing.T) {
	states := NewStates("state-secret", -time.Minute)
	state, err := states.Issue()
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := states.Verify(state); !errors.HasCode(err, errors.ErrCodeInvalidState) {
		t.Errorf("expired state: expected %s, got %v", errors.ErrCodeInvalidState, err)
	}
}
