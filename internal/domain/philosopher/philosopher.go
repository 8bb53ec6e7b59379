// Package philosopher defines the domain entities observed at the table.
// This package is PURE and must NOT import any infrastructure packages (network, events, platform).
package philosopher

import (
	"fmt"
	"strconv"
)

// State is the lifecycle state of a single philosopher.
// Values are stored in an atomic.Uint32, so the numeric mapping below is part
// of the contract: it is the declaration order, starting at zero.
type State uint32

const (
	Thinking           State = iota // 0
	WaitingForLeftFork              // 1
	PickingUpLeftFork               // 2
	WaitingForRightFork             // 3
	PickingUpRightFork              // 4
	PuttingDownForks                // 5
	Eating                          // 6

	stateCount
)

var stateNames = [stateCount]string{
	Thinking:            "Thinking",
	WaitingForLeftFork:  "WaitingForLeftFork",
	PickingUpLeftFork:   "PickingUpLeftFork",
	WaitingForRightFork: "WaitingForRightFork",
	PickingUpRightFork:  "PickingUpRightFork",
	PuttingDownForks:    "PuttingDownForks",
	Eating:              "Eating",
}

// States lists every state in declaration order.
func States() []State {
	out := make([]State, 0, stateCount)
	for s := Thinking; s < stateCount; s++ {
		out = append(out, s)
	}
	return out
}

// Valid reports whether s is one of the declared states.
func (s State) Valid() bool { return s < stateCount }

func (s State) String() string {
	if !s.Valid() {
		return "State(" + strconv.FormatUint(uint64(s), 10) + ")"
	}
	return stateNames[s]
}

// MarshalText encodes the state by name so JSON observers never see raw integers.
func (s State) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid philosopher state %d", uint32(s))
	}
	return []byte(stateNames[s]), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	parsed, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseState returns the state with the given name.
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if n == name {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("unknown philosopher state %q", name)
}
