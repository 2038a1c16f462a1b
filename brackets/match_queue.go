package brackets

import (
	"context"
	"fmt"

	"github.com/Dosada05/tournament-engine/models"
)

// Match is one scheduled contest. A false Attend flag marks that side as
// withdrawn: the opponent advances without a contest.
type Match struct {
	Player1 string       `json:"player1"`
	Player2 string       `json:"player2"`
	Stage   models.Stage `json:"stage"`
	Attend1 bool         `json:"attend1"`
	Attend2 bool         `json:"attend2"`
}

func (m Match) pairing() Pairing {
	return Pairing{Player1: m.Player1, Player2: m.Player2, Stage: m.Stage}
}

func (m Match) String() string {
	return m.Player1 + " vs " + m.Player2
}

// MatchQueue holds the pending matches of the current stage as a circular
// sequence. The front is index 0 and the successor of i is (i+1) % Len, so a
// traversal from the front always returns to it after Len steps.
type MatchQueue struct {
	matches   []*Match
	presenter Presenter
}

func NewMatchQueue(presenter Presenter) *MatchQueue {
	return &MatchQueue{presenter: presenterOrNop(presenter)}
}

func (q *MatchQueue) Len() int {
	return len(q.matches)
}

func (q *MatchQueue) IsEmpty() bool {
	return len(q.matches) == 0
}

func (q *MatchQueue) next(i int) int {
	return (i + 1) % len(q.matches)
}

// walk visits every match once starting at the front and returns the number
// of steps it took to come back to the front.
func (q *MatchQueue) walk(fn func(m *Match)) int {
	if q.IsEmpty() {
		return 0
	}
	steps := 0
	i := 0
	for {
		fn(q.matches[i])
		steps++
		i = q.next(i)
		if i == 0 {
			break
		}
		if steps > len(q.matches) {
			panic("brackets: match queue traversal did not return to front")
		}
	}
	return steps
}

// Walk calls fn with a copy of every match in traversal order and returns the
// number of steps taken.
func (q *MatchQueue) Walk(fn func(m Match)) int {
	return q.walk(func(m *Match) { fn(*m) })
}

// Matches returns a snapshot of the queue in traversal order.
func (q *MatchQueue) Matches() []Match {
	out := make([]Match, 0, len(q.matches))
	q.Walk(func(m Match) { out = append(out, m) })
	return out
}

// Enqueue schedules p1 against p2. Placeholder and empty names are rejected
// and leave the queue unchanged.
func (q *MatchQueue) Enqueue(p1, p2 string, stage models.Stage) error {
	err := validatePlayerName(p1)
	if err == nil {
		err = validatePlayerName(p2)
	}
	if err == nil && p1 == p2 {
		err = ErrSamePlayer
	}
	if err != nil {
		q.presenter.Present(Event{
			Type:    EventMatchRejected,
			Stage:   stage.String(),
			Player1: p1,
			Player2: p2,
			Message: fmt.Sprintf("Cannot add match %s vs %s: %v.", p1, p2, err),
		})
		return err
	}

	q.matches = append(q.matches, &Match{
		Player1: p1,
		Player2: p2,
		Stage:   stage,
		Attend1: true,
		Attend2: true,
	})
	q.presenter.Present(Event{
		Type:    EventMatchAdded,
		Stage:   stage.String(),
		Player1: p1,
		Player2: p2,
		Message: fmt.Sprintf("Adding match: %s vs %s at stage: %s", p1, p2, stage),
	})
	return nil
}

// Resolve decides every queued match in traversal order and returns the
// winners in that order. Forfeited matches advance the attending side
// without consulting provider. Each match leaves the queue as soon as it is
// decided; if provider fails or ctx is done, the winners so far are returned
// together with the error and the undecided matches stay queued.
func (q *MatchQueue) Resolve(ctx context.Context, provider ResultProvider) (*WinnerAggregator, error) {
	winners := NewWinnerAggregator()
	if q.IsEmpty() {
		q.presenter.Present(Event{Type: EventQueueEmpty, Message: "No matches to process."})
		return winners, ErrNoMatches
	}

	resolved := 0
	for _, m := range q.matches {
		winner, forfeit, err := q.resolveOne(ctx, m, provider)
		if err != nil {
			q.matches = q.matches[resolved:]
			return winners, err
		}
		resolved++
		winners.Add(winner)

		msg := fmt.Sprintf("%s wins %s.", winner, m)
		if forfeit {
			msg = fmt.Sprintf("%s advances (Opponent Withdrawn).", winner)
		}
		q.presenter.Present(Event{
			Type:    EventMatchResolved,
			Stage:   m.Stage.String(),
			Player1: m.Player1,
			Player2: m.Player2,
			Winner:  winner,
			Forfeit: forfeit,
			Message: msg,
		})
	}

	q.Clear()
	return winners, nil
}

func (q *MatchQueue) resolveOne(ctx context.Context, m *Match, provider ResultProvider) (string, bool, error) {
	switch {
	case !m.Attend1:
		return m.Player2, true, nil
	case !m.Attend2:
		return m.Player1, true, nil
	}
	winner, err := decide(ctx, provider, q.presenter, m.pairing())
	return winner, false, err
}

// ReplacePlayer puts substitute in place of original in every queued match.
// It reports whether any match was changed. A substitute who already plays
// original is rejected and nothing is changed.
func (q *MatchQueue) ReplacePlayer(original, substitute string) (bool, error) {
	err := validatePlayerName(substitute)
	if err == nil && q.paired(original, substitute) {
		err = ErrSamePlayer
	}
	if err != nil {
		q.presenter.Present(Event{
			Type:       EventMatchRejected,
			Player:     original,
			Substitute: substitute,
			Message:    fmt.Sprintf("Cannot substitute %s with %q: %v.", original, substitute, err),
		})
		return false, err
	}

	found := false
	q.walk(func(m *Match) {
		replaced := false
		if m.Player1 == original {
			m.Player1 = substitute
			replaced = true
		}
		if m.Player2 == original {
			m.Player2 = substitute
			replaced = true
		}
		if !replaced {
			return
		}
		found = true
		q.presenter.Present(Event{
			Type:       EventPlayerSubstituted,
			Stage:      m.Stage.String(),
			Player1:    m.Player1,
			Player2:    m.Player2,
			Player:     original,
			Substitute: substitute,
			Message:    fmt.Sprintf("Player %s replaced by %s in match (%s).", original, substitute, m),
		})
	})

	if !found {
		q.notFound(original)
	}
	return found, nil
}

// paired reports whether a and b meet in a queued match.
func (q *MatchQueue) paired(a, b string) bool {
	if a == b {
		return true
	}
	found := false
	q.walk(func(m *Match) {
		if (m.Player1 == a && m.Player2 == b) || (m.Player1 == b && m.Player2 == a) {
			found = true
		}
	})
	return found
}

// SetAbsent marks player as withdrawn in every queued match they play.
func (q *MatchQueue) SetAbsent(player string) bool {
	found := false
	q.walk(func(m *Match) {
		switch player {
		case m.Player1:
			m.Attend1 = false
		case m.Player2:
			m.Attend2 = false
		default:
			return
		}
		found = true
		q.presenter.Present(Event{
			Type:    EventPlayerAbsent,
			Stage:   m.Stage.String(),
			Player1: m.Player1,
			Player2: m.Player2,
			Player:  player,
			Message: fmt.Sprintf("Player %s marked as absent in match (%s).", player, m),
		})
	})

	if !found {
		q.notFound(player)
	}
	return found
}

func (q *MatchQueue) notFound(player string) {
	msg := fmt.Sprintf("Player %s not found in any scheduled matches.", player)
	if q.IsEmpty() {
		msg = "No matches scheduled."
	}
	q.presenter.Present(Event{Type: EventPlayerNotFound, Player: player, Message: msg})
}

// Clear drops every pending match.
func (q *MatchQueue) Clear() {
	q.matches = nil
}
