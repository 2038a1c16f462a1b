package brackets

import (
	"context"
	"fmt"

	"github.com/Dosada05/tournament-engine/models"
)

// RandSource is the randomness used to seed the knockout. *rand.Rand
// satisfies it.
type RandSource interface {
	Intn(n int) int
}

// BracketMatch is one decided knockout pairing, or a bye when IsBye is set.
type BracketMatch struct {
	UID          string `json:"uid"`
	Round        int    `json:"round"`
	OrderInRound int    `json:"order_in_round"`
	Player1      string `json:"player1"`
	Player2      string `json:"player2,omitempty"`
	Winner       string `json:"winner"`
	IsBye        bool   `json:"is_bye"`
}

// Knockout runs single-elimination rounds until one entry remains.
type Knockout struct {
	rng       RandSource
	presenter Presenter
	matches   []BracketMatch
}

func NewKnockout(rng RandSource, presenter Presenter) *Knockout {
	return &Knockout{rng: rng, presenter: presenterOrNop(presenter)}
}

// Matches returns every pairing and bye decided by the last Run, ordered by
// round and position.
func (k *Knockout) Matches() []BracketMatch {
	out := make([]BracketMatch, len(k.matches))
	copy(out, k.matches)
	return out
}

// Shuffle reorders agg with a Fisher–Yates shuffle.
func (k *Knockout) Shuffle(agg *WinnerAggregator) {
	if agg.Len() <= 1 || k.rng == nil {
		return
	}
	for i := agg.Len() - 1; i > 0; i-- {
		j := k.rng.Intn(i + 1)
		agg.swap(i, j)
	}
}

// RunRound pairs agg two entries at a time and returns the winners. An odd
// trailing entry gets a bye and advances.
func (k *Knockout) RunRound(ctx context.Context, round int, agg *WinnerAggregator, provider ResultProvider) (*WinnerAggregator, error) {
	stage := models.StageKnockout.String()
	k.presenter.Present(Event{
		Type:    EventRoundStarted,
		Stage:   stage,
		Round:   round,
		Message: fmt.Sprintf("Knockout Round %d: %d players.", round, agg.Len()),
	})

	next := NewWinnerAggregator()
	decided := make([]BracketMatch, 0, agg.Len()/2+1)
	order := 0
	i := 0
	for ; i+1 < agg.Len(); i += 2 {
		order++
		p := Pairing{
			Player1: agg.At(i),
			Player2: agg.At(i + 1),
			Stage:   models.StageKnockout,
			Round:   round,
		}
		winner, err := decide(ctx, provider, k.presenter, p)
		if err != nil {
			return nil, fmt.Errorf("knockout round %d: %w", round, err)
		}
		next.Add(winner)
		decided = append(decided, BracketMatch{
			UID:          fmt.Sprintf("R%dM%d", round, order),
			Round:        round,
			OrderInRound: order,
			Player1:      p.Player1,
			Player2:      p.Player2,
			Winner:       winner,
		})
		k.presenter.Present(Event{
			Type:    EventMatchResolved,
			Stage:   stage,
			Round:   round,
			Player1: p.Player1,
			Player2: p.Player2,
			Winner:  winner,
			Message: fmt.Sprintf("%s wins %s.", winner, p),
		})
	}

	if i < agg.Len() {
		order++
		bye := agg.At(i)
		next.Add(bye)
		decided = append(decided, BracketMatch{
			UID:          fmt.Sprintf("R%dM%d", round, order),
			Round:        round,
			OrderInRound: order,
			Player1:      bye,
			Winner:       bye,
			IsBye:        true,
		})
		k.presenter.Present(Event{
			Type:    EventByeAwarded,
			Stage:   stage,
			Round:   round,
			Player:  bye,
			Winner:  bye,
			Message: fmt.Sprintf("%s gets a bye and advances to the next round.", bye),
		})
	}

	k.matches = append(k.matches, decided...)
	return next, nil
}

// Run plays rounds until a single entry is left and returns it. agg is not
// modified and repeated names in it are dropped. A single entry is champion
// without any round being played.
func (k *Knockout) Run(ctx context.Context, agg *WinnerAggregator, provider ResultProvider) (string, error) {
	k.matches = nil
	if agg.Len() == 0 {
		k.presenter.Present(Event{
			Type:    EventNoPlayers,
			Stage:   models.StageKnockout.String(),
			Message: "No players in the knockout stage.",
		})
		return "", ErrNoPlayers
	}

	current := distinct(agg, k.presenter, models.StageKnockout.String())
	for round := 1; current.Len() > 1; round++ {
		next, err := k.RunRound(ctx, round, current, provider)
		if err != nil {
			return "", err
		}
		current = next
	}

	champion := current.At(0)
	k.presenter.Present(Event{
		Type:    EventChampionDeclared,
		Stage:   models.StageChampion.String(),
		Winner:  champion,
		Message: fmt.Sprintf("Tournament Champion: %s!", champion),
	})
	return champion, nil
}
