package brackets

import (
	"context"
	"fmt"
	"sort"

	"github.com/Dosada05/tournament-engine/models"
)

// GroupSize is the number of participants in a full round-robin group.
const GroupSize = 4

// Group is one round-robin pool. Wins[i] counts the wins of Participants[i].
type Group struct {
	Number       int      `json:"number"`
	Participants []string `json:"participants"`
	Wins         []int    `json:"wins"`
}

// PartitionGroups splits agg into consecutive groups of GroupSize in order.
// A trailing block with fewer entries becomes a smaller group.
func PartitionGroups(agg *WinnerAggregator) []*Group {
	names := agg.Names()
	groups := make([]*Group, 0, (len(names)+GroupSize-1)/GroupSize)
	for start := 0; start < len(names); start += GroupSize {
		end := min(start+GroupSize, len(names))
		participants := names[start:end]
		groups = append(groups, &Group{
			Number:       len(groups) + 1,
			Participants: participants,
			Wins:         make([]int, len(participants)),
		})
	}
	return groups
}

// RankGroup returns the two participants with the most wins. Ties keep the
// original participant order. second is empty for a group of one.
func RankGroup(g *Group) (first, second string) {
	order := make([]int, len(g.Participants))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return g.Wins[order[a]] > g.Wins[order[b]]
	})

	if len(order) > 0 {
		first = g.Participants[order[0]]
	}
	if len(order) > 1 {
		second = g.Participants[order[1]]
	}
	return first, second
}

// GroupStage plays every group as a single round robin and forwards the top
// two of each group to the knockout.
type GroupStage struct {
	presenter Presenter
}

func NewGroupStage(presenter Presenter) *GroupStage {
	return &GroupStage{presenter: presenterOrNop(presenter)}
}

// SimulateGroup plays each unordered pair of participants once and counts
// the wins. Counters are reset first, so a group can be replayed.
func (s *GroupStage) SimulateGroup(ctx context.Context, g *Group, provider ResultProvider) error {
	for i := range g.Wins {
		g.Wins[i] = 0
	}

	for i := 0; i < len(g.Participants); i++ {
		for j := i + 1; j < len(g.Participants); j++ {
			p := Pairing{
				Player1: g.Participants[i],
				Player2: g.Participants[j],
				Stage:   models.StageRoundRobin,
				Group:   g.Number,
			}
			winner, err := decide(ctx, provider, s.presenter, p)
			if err != nil {
				return fmt.Errorf("group %d: %w", g.Number, err)
			}
			if winner == p.Player1 {
				g.Wins[i]++
			} else {
				g.Wins[j]++
			}
			s.presenter.Present(Event{
				Type:    EventMatchResolved,
				Stage:   p.Stage.String(),
				Group:   g.Number,
				Player1: p.Player1,
				Player2: p.Player2,
				Winner:  winner,
				Message: fmt.Sprintf("%s wins %s.", winner, p),
			})
		}
	}
	return nil
}

// Run plays every group of agg and returns the forwarded finishers in group
// order. A name entered more than once plays only once. On error nothing is
// forwarded.
func (s *GroupStage) Run(ctx context.Context, agg *WinnerAggregator, provider ResultProvider) (*WinnerAggregator, []*Group, error) {
	groups := PartitionGroups(distinct(agg, s.presenter, models.StageRoundRobin.String()))
	if len(groups) == 0 {
		s.presenter.Present(Event{
			Type:    EventNoPlayers,
			Stage:   models.StageRoundRobin.String(),
			Message: "No winners to schedule Round Robin matches.",
		})
		return NewWinnerAggregator(), groups, ErrNoPlayers
	}

	forwarded := NewWinnerAggregator()
	for _, g := range groups {
		s.presenter.Present(Event{
			Type:    EventGroupStarted,
			Stage:   models.StageRoundRobin.String(),
			Group:   g.Number,
			Message: fmt.Sprintf("Simulating Round Robin for Group %d.", g.Number),
		})
		if err := s.SimulateGroup(ctx, g, provider); err != nil {
			return NewWinnerAggregator(), groups, err
		}

		first, second := RankGroup(g)
		forwarded.Add(first)
		msg := fmt.Sprintf("Top winner from group %d: %s", g.Number, first)
		if second != "" {
			forwarded.Add(second)
			msg = fmt.Sprintf("Top 2 winners from group %d: %s and %s", g.Number, first, second)
		}
		s.presenter.Present(Event{
			Type:    EventGroupRanked,
			Stage:   models.StageRoundRobin.String(),
			Group:   g.Number,
			Player1: first,
			Player2: second,
			Message: msg,
		})
	}
	return forwarded, groups, nil
}
