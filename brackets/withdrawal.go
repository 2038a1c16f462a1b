package brackets

import (
	"fmt"
	"time"
)

// Withdrawal records a player leaving the tournament, optionally replaced by
// a substitute. Records are kept after processing for search and listing.
type Withdrawal struct {
	ID             int        `json:"id"`
	PlayerName     string     `json:"player_name"`
	SubstituteName string     `json:"substitute_name,omitempty"`
	Processed      bool       `json:"processed"`
	Rejected       bool       `json:"rejected,omitempty"`
	RegisteredAt   time.Time  `json:"registered_at"`
	ProcessedAt    *time.Time `json:"processed_at,omitempty"`
}

func (w Withdrawal) HasSubstitute() bool {
	return w.SubstituteName != ""
}

func (w Withdrawal) SubstituteOrNone() string {
	if w.SubstituteName == "" {
		return "None"
	}
	return w.SubstituteName
}

func (w Withdrawal) Status() string {
	switch {
	case w.Processed:
		return "Processed"
	case w.Rejected:
		return "Rejected"
	}
	return "Pending"
}

// WithdrawalProcessor keeps every withdrawal in a single record store and
// the unprocessed ones in a FIFO of record IDs. Registering never touches
// the match queue; ProcessNext applies the oldest pending withdrawal.
type WithdrawalProcessor struct {
	records   []*Withdrawal
	pending   []int
	presenter Presenter
	now       func() time.Time
}

func NewWithdrawalProcessor(presenter Presenter) *WithdrawalProcessor {
	return &WithdrawalProcessor{
		presenter: presenterOrNop(presenter),
		now:       time.Now,
	}
}

// Register appends a withdrawal to the FIFO. An empty substitute means the
// player's opponents win by forfeit once it is processed.
func (p *WithdrawalProcessor) Register(player, substitute string) (Withdrawal, error) {
	err := validatePlayerName(player)
	if err == nil && substitute == Placeholder {
		err = ErrPlaceholderPlayer
	}
	if err == nil && substitute == player {
		err = ErrSamePlayer
	}
	if err != nil {
		p.presenter.Present(Event{
			Type:       EventWithdrawalRejected,
			Player:     player,
			Substitute: substitute,
			Message:    fmt.Sprintf("Cannot register withdrawal of %q: %v.", player, err),
		})
		return Withdrawal{}, err
	}

	w := &Withdrawal{
		ID:             len(p.records) + 1,
		PlayerName:     player,
		SubstituteName: substitute,
		RegisteredAt:   p.now(),
	}
	p.records = append(p.records, w)
	p.pending = append(p.pending, w.ID)

	msg := fmt.Sprintf("Player %s has withdrawn.", player)
	if w.HasSubstitute() {
		msg = fmt.Sprintf("Player %s has withdrawn and will be replaced by Player %s.", player, substitute)
	}
	p.presenter.Present(Event{
		Type:       EventWithdrawalRegistered,
		Player:     player,
		Substitute: substitute,
		Message:    msg,
	})
	return *w, nil
}

func (p *WithdrawalProcessor) record(id int) *Withdrawal {
	return p.records[id-1]
}

// ProcessNext applies the oldest pending withdrawal to q: the substitute
// takes the player's place in every match, or without a substitute the
// player is marked absent in every match. A substitution the queue refuses
// leaves q unchanged; the withdrawal is marked rejected and leaves the FIFO.
func (p *WithdrawalProcessor) ProcessNext(q *MatchQueue) (Withdrawal, error) {
	if len(p.pending) == 0 {
		p.presenter.Present(Event{Type: EventWithdrawalQueueEmpty, Message: "No withdrawals to process."})
		return Withdrawal{}, ErrNoPendingWithdrawals
	}

	w := p.record(p.pending[0])
	processedAt := p.now()
	p.pending = p.pending[1:]
	w.ProcessedAt = &processedAt

	if w.HasSubstitute() {
		if _, err := q.ReplacePlayer(w.PlayerName, w.SubstituteName); err != nil {
			w.Rejected = true
			p.presenter.Present(Event{
				Type:       EventWithdrawalRejected,
				Player:     w.PlayerName,
				Substitute: w.SubstituteName,
				Message:    fmt.Sprintf("Rejected withdrawal: Player %s cannot be replaced by Player %s: %v.", w.PlayerName, w.SubstituteName, err),
			})
			return *w, fmt.Errorf("processing withdrawal %d: %w", w.ID, err)
		}
	} else {
		q.SetAbsent(w.PlayerName)
	}

	w.Processed = true

	msg := fmt.Sprintf("Processed withdrawal: Player %s (No substitute available).", w.PlayerName)
	if w.HasSubstitute() {
		msg = fmt.Sprintf("Processed withdrawal: Player %s (Substitute: Player %s).", w.PlayerName, w.SubstituteName)
	}
	p.presenter.Present(Event{
		Type:       EventWithdrawalProcessed,
		Player:     w.PlayerName,
		Substitute: w.SubstituteName,
		Message:    msg,
	})
	return *w, nil
}

// Search returns every withdrawal ever registered for player.
func (p *WithdrawalProcessor) Search(player string) []Withdrawal {
	out := make([]Withdrawal, 0)
	for _, w := range p.records {
		if w.PlayerName == player {
			out = append(out, *w)
		}
	}
	if len(out) == 0 {
		p.presenter.Present(Event{
			Type:    EventPlayerNotFound,
			Player:  player,
			Message: fmt.Sprintf("No withdrawals found for player %s.", player),
		})
	}
	return out
}

func (p *WithdrawalProcessor) All() []Withdrawal {
	out := make([]Withdrawal, len(p.records))
	for i, w := range p.records {
		out[i] = *w
	}
	return out
}

func (p *WithdrawalProcessor) Pending() []Withdrawal {
	out := make([]Withdrawal, len(p.pending))
	for i, id := range p.pending {
		out[i] = *p.record(id)
	}
	return out
}
