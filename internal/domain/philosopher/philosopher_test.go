package philosopher

import (
	"encoding/json"
	"testing"
)

func TestStateMappingIsDeclarationOrder(t *testing.T) {
	want := []string{
		"Thinking",
		"WaitingForLeftFork",
		"PickingUpLeftFork",
		"WaitingForRightFork",
		"PickingUpRightFork",
		"PuttingDownForks",
		"Eating",
	}
	states := States()
	if len(states) != len(want) {
		t.Fatalf("Expected %d states, got %d", len(want), len(states))
	}
	for i, s := range states {
		if uint32(s) != uint32(i) {
			t.Errorf("State %s has value %d, expected %d", s, uint32(s), i)
		}
		if s.String() != want[i] {
			t.Errorf("State %d named %q, expected %q", i, s.String(), want[i])
		}
	}
}

func TestInvalidState(t *testing.T) {
	s := State(42)
	if s.Valid() {
		t.Fatal("State(42) should not be valid")
	}
	if s.String() != "State(42)" {
		t.Errorf("Unexpected name for invalid state: %s", s)
	}
	if _, err := s.MarshalText(); err == nil {
		t.Error("Expected an error marshalling an invalid state")
	}
}

func TestStateJSON(t *testing.T) {
	b, err := json.Marshal(map[string]State{"p": Eating})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"p":"Eating"}` {
		t.Errorf("Unexpected JSON: %s", b)
	}

	var decoded map[string]State
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["p"] != Eating {
		t.Errorf("Expected Eating, got %s", decoded["p"])
	}

	if err := json.Unmarshal([]byte(`{"p":"Sleeping"}`), &decoded); err == nil {
		t.Error("Expected an error for an unknown state name")
	}
}

func TestNames(t *testing.T) {
	names := Names(7)
	if names[0] != "Judith Butler" || names[4] != "Michel Foucault" {
		t.Errorf("Default seats not used: %v", names)
	}
	if names[5] != "Philosopher 6" || names[6] != "Philosopher 7" {
		t.Errorf("Extra seats not numbered: %v", names)
	}
	if len(Names(-1)) != 0 {
		t.Error("Negative count should yield no names")
	}
}

func TestForkAdjacency(t *testing.T) {
	const n = 5
	for i := 0; i < n; i++ {
		if LeftFork(i, n) != i {
			t.Errorf("Seat %d left fork = %d", i, LeftFork(i, n))
		}
		if RightFork(i, n) != LeftFork((i+1)%n, n) {
			t.Errorf("Seat %d right fork should be seat %d's left fork", i, (i+1)%n)
		}
	}
	if RightFork(n-1, n) != 0 {
		t.Errorf("Last seat should wrap to fork 0, got %d", RightFork(n-1, n))
	}
}
