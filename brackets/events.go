package brackets

import (
	"log/slog"
)

type EventType string

const (
	EventMatchAdded           EventType = "MATCH_ADDED"
	EventMatchRejected        EventType = "MATCH_REJECTED"
	EventMatchResolved        EventType = "MATCH_RESOLVED"
	EventResultRejected       EventType = "RESULT_REJECTED"
	EventQueueEmpty           EventType = "QUEUE_EMPTY"
	EventPlayerAbsent         EventType = "PLAYER_ABSENT"
	EventPlayerSubstituted    EventType = "PLAYER_SUBSTITUTED"
	EventPlayerNotFound       EventType = "PLAYER_NOT_FOUND"
	EventWithdrawalRegistered EventType = "WITHDRAWAL_REGISTERED"
	EventWithdrawalProcessed  EventType = "WITHDRAWAL_PROCESSED"
	EventWithdrawalRejected   EventType = "WITHDRAWAL_REJECTED"
	EventWithdrawalQueueEmpty EventType = "WITHDRAWAL_QUEUE_EMPTY"
	EventDuplicatePlayer      EventType = "DUPLICATE_PLAYER"
	EventGroupStarted         EventType = "GROUP_STARTED"
	EventGroupRanked          EventType = "GROUP_RANKED"
	EventRoundStarted         EventType = "ROUND_STARTED"
	EventByeAwarded           EventType = "BYE_AWARDED"
	EventChampionDeclared     EventType = "CHAMPION_DECLARED"
	EventNoPlayers            EventType = "NO_PLAYERS"
	EventStageAdvanced        EventType = "STAGE_ADVANCED"
)

// Event describes one state change of the engine. Only the fields relevant
// to Type are set.
type Event struct {
	Type       EventType `json:"type"`
	Stage      string    `json:"stage,omitempty"`
	Round      int       `json:"round,omitempty"`
	Group      int       `json:"group,omitempty"`
	Player1    string    `json:"player1,omitempty"`
	Player2    string    `json:"player2,omitempty"`
	Winner     string    `json:"winner,omitempty"`
	Player     string    `json:"player,omitempty"`
	Substitute string    `json:"substitute,omitempty"`
	Forfeit    bool      `json:"forfeit,omitempty"`
	Message    string    `json:"message"`
}

// Presenter receives engine events in the order the changes happen.
type Presenter interface {
	Present(ev Event)
}

type PresenterFunc func(ev Event)

func (f PresenterFunc) Present(ev Event) { f(ev) }

// MultiPresenter fans an event out to every presenter in order.
type MultiPresenter []Presenter

func (m MultiPresenter) Present(ev Event) {
	for _, p := range m {
		if p != nil {
			p.Present(ev)
		}
	}
}

type nopPresenter struct{}

func (nopPresenter) Present(Event) {}

func presenterOrNop(p Presenter) Presenter {
	if p == nil {
		return nopPresenter{}
	}
	return p
}

type logPresenter struct {
	logger *slog.Logger
}

// NewLogPresenter writes every event to logger at info level.
func NewLogPresenter(logger *slog.Logger) Presenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &logPresenter{logger: logger}
}

func (p *logPresenter) Present(ev Event) {
	attrs := []any{slog.String("type", string(ev.Type))}
	if ev.Stage != "" {
		attrs = append(attrs, slog.String("stage", ev.Stage))
	}
	if ev.Round > 0 {
		attrs = append(attrs, slog.Int("round", ev.Round))
	}
	if ev.Group > 0 {
		attrs = append(attrs, slog.Int("group", ev.Group))
	}
	if ev.Winner != "" {
		attrs = append(attrs, slog.String("winner", ev.Winner))
	}
	p.logger.Info(ev.Message, attrs...)
}
