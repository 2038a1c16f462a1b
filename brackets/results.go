package brackets

import (
	"context"
	"fmt"

	"github.com/Dosada05/tournament-engine/models"
)

// Pairing is the contest a ResultProvider is asked to decide.
type Pairing struct {
	Player1 string       `json:"player1"`
	Player2 string       `json:"player2"`
	Stage   models.Stage `json:"stage"`
	Round   int          `json:"round,omitempty"`
	Group   int          `json:"group,omitempty"`
}

func (p Pairing) String() string {
	return p.Player1 + " vs " + p.Player2
}

func (p Pairing) has(name string) bool {
	return name == p.Player1 || name == p.Player2
}

// ResultProvider decides the winner of a pairing. It blocks until an answer
// is available. An answer that names neither player is rejected and the
// provider is asked again; a non-nil error aborts the running stage.
type ResultProvider interface {
	Winner(ctx context.Context, p Pairing) (string, error)
}

type ResultFunc func(ctx context.Context, p Pairing) (string, error)

func (f ResultFunc) Winner(ctx context.Context, p Pairing) (string, error) { return f(ctx, p) }

type pairKey struct{ a, b string }

func keyFor(p1, p2 string) pairKey {
	if p2 < p1 {
		p1, p2 = p2, p1
	}
	return pairKey{a: p1, b: p2}
}

// ScriptedResults answers from pre-recorded winners. Answers for the same
// pairing are consumed in the order they were added, regardless of which
// side was listed first.
type ScriptedResults struct {
	answers map[pairKey][]string
}

func NewScriptedResults() *ScriptedResults {
	return &ScriptedResults{answers: make(map[pairKey][]string)}
}

func (s *ScriptedResults) Add(player1, player2, winner string) *ScriptedResults {
	k := keyFor(player1, player2)
	s.answers[k] = append(s.answers[k], winner)
	return s
}

// Remaining reports how many answers have not been consumed yet.
func (s *ScriptedResults) Remaining() int {
	n := 0
	for _, a := range s.answers {
		n += len(a)
	}
	return n
}

func (s *ScriptedResults) Winner(_ context.Context, p Pairing) (string, error) {
	k := keyFor(p.Player1, p.Player2)
	queue := s.answers[k]
	if len(queue) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoResult, p)
	}
	s.answers[k] = queue[1:]
	return queue[0], nil
}

// decide asks provider until it names one of the two players.
func decide(ctx context.Context, provider ResultProvider, presenter Presenter, p Pairing) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		winner, err := provider.Winner(ctx, p)
		if err != nil {
			return "", fmt.Errorf("result for %s: %w", p, err)
		}
		if p.has(winner) {
			return winner, nil
		}
		presenter.Present(Event{
			Type:    EventResultRejected,
			Stage:   p.Stage.String(),
			Round:   p.Round,
			Group:   p.Group,
			Player1: p.Player1,
			Player2: p.Player2,
			Message: fmt.Sprintf("Invalid input %q! Please enter either %s or %s.", winner, p.Player1, p.Player2),
		})
	}
}
