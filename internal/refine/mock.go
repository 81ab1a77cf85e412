package refine

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Mock is a deterministic refiner for local runs and tests.
type Mock struct {
	// Err, when set, is returned by every call.
	Err error

	mu    sync.Mutex
	calls [][]Turn
}

func (m *Mock) Refine(ctx context.Context, content string, history []Turn) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	turns := conversation(content, history)

	m.mu.Lock()
	m.calls = append(m.calls, append([]Turn(nil), turns...))
	m.mu.Unlock()

	if m.Err != nil {
		return "", m.Err
	}
	return fmt.Sprintf(
		"PERSONA: Senior specialist for the task below.\nOBJECTIVE: %s\nCONTEXT/CONSTRAINTS: refinement %d of this conversation.\nFORMAT: structured, concise answer.",
		strings.TrimSpace(content), userTurns(turns),
	), nil
}

// Calls returns the conversations the mock received, in order.
func (m *Mock) Calls() [][]Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]Turn(nil), m.calls...)
}

func userTurns(turns []Turn) int {
	n := 0
	for _, t := range turns {
		if t.Role == "user" {
			n++
		}
	}
	return n
}
