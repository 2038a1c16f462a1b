package brackets

import (
	"context"
	"testing"
)

type recorder struct {
	events []Event
}

func (r *recorder) Present(ev Event) {
	r.events = append(r.events, ev)
}

func (r *recorder) types() []EventType {
	out := make([]EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func (r *recorder) count(t EventType) int {
	n := 0
	for _, ev := range r.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

// firstAlphabetical always picks the lexicographically smaller name.
func firstAlphabetical() ResultFunc {
	return func(_ context.Context, p Pairing) (string, error) {
		if p.Player2 < p.Player1 {
			return p.Player2, nil
		}
		return p.Player1, nil
	}
}

// countingProvider wraps a provider and counts the pairings it was asked.
type countingProvider struct {
	inner ResultProvider
	asked []Pairing
}

func (c *countingProvider) Winner(ctx context.Context, p Pairing) (string, error) {
	c.asked = append(c.asked, p)
	return c.inner.Winner(ctx, p)
}

func mustNotBeAsked(t *testing.T) ResultFunc {
	return func(_ context.Context, p Pairing) (string, error) {
		t.Fatalf("result provider called for %s", p)
		return "", nil
	}
}

// seq is a RandSource replaying fixed values.
type seq struct {
	values []int
	calls  []int
}

func (s *seq) Intn(n int) int {
	s.calls = append(s.calls, n)
	v := s.values[0]
	s.values = s.values[1:]
	return v % n
}
