package services

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/Dosada05/tournament-engine/brackets"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/google/uuid"
)

type CreateTournamentInput struct {
	Name string `json:"name" validate:"required,max=100"`
}

// TournamentView is a snapshot of one tournament.
type TournamentView struct {
	ID                 string                  `json:"id"`
	Name               string                  `json:"name"`
	Stage              models.Stage            `json:"stage"`
	ScheduledMatches   []brackets.Match        `json:"scheduled_matches"`
	QualifierWinners   []string                `json:"qualifier_winners"`
	Groups             []*brackets.Group       `json:"groups,omitempty"`
	KnockoutPlayers    []string                `json:"knockout_players,omitempty"`
	Bracket            []brackets.BracketMatch `json:"bracket,omitempty"`
	Champion           string                  `json:"champion,omitempty"`
	PendingWithdrawals int                     `json:"pending_withdrawals"`
	CreatedAt          time.Time               `json:"created_at"`
}

// RoomBroadcaster hands out a presenter that pushes events to the clients
// watching roomID.
type RoomBroadcaster interface {
	Presenter(roomID string) brackets.Presenter
}

type TournamentService interface {
	Create(ctx context.Context, input CreateTournamentInput) (*TournamentView, error)
	Get(ctx context.Context, id string) (*TournamentView, error)
	List(ctx context.Context) []*TournamentView

	ScheduleQualifier(ctx context.Context, id, player1, player2 string) error
	ResolveQualifiers(ctx context.Context, id string, provider brackets.ResultProvider) ([]string, error)
	RunGroupStage(ctx context.Context, id string, provider brackets.ResultProvider) ([]string, error)
	RunKnockout(ctx context.Context, id string, provider brackets.ResultProvider) (string, error)
	AdvanceStage(ctx context.Context, id string) (models.Stage, error)

	RegisterWithdrawal(ctx context.Context, id, player, substitute string) (brackets.Withdrawal, error)
	ProcessNextWithdrawal(ctx context.Context, id string) (brackets.Withdrawal, error)
	SearchWithdrawals(ctx context.Context, id, player string) ([]brackets.Withdrawal, error)
	ListWithdrawals(ctx context.Context, id string) ([]brackets.Withdrawal, error)
}

type TournamentServiceConfig struct {
	// Broadcaster and Recorder are optional.
	Broadcaster RoomBroadcaster
	Recorder    MatchRecorder
	// Shuffle randomizes the knockout order once before the first round.
	Shuffle bool
	Rand    brackets.RandSource
	Logger  *slog.Logger
}

type tournament struct {
	mu sync.Mutex

	id        string
	name      string
	createdAt time.Time
	stage     models.Stage

	queue            *brackets.MatchQueue
	withdrawals      *brackets.WithdrawalProcessor
	qualifierWinners *brackets.WinnerAggregator
	groups           []*brackets.Group
	knockoutPlayers  *brackets.WinnerAggregator
	shuffled         bool
	bracket          []brackets.BracketMatch
	champion         string

	presenter brackets.Presenter
	// resolved buffers MATCH_RESOLVED events until they are recorded.
	resolved []brackets.Event
}

type tournamentService struct {
	mu          sync.RWMutex
	tournaments map[string]*tournament
	order       []string

	broadcaster RoomBroadcaster
	recorder    MatchRecorder
	shuffle     bool
	rng         brackets.RandSource
	logger      *slog.Logger
	now         func() time.Time
}

func NewTournamentService(cfg TournamentServiceConfig) TournamentService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rng := cfg.Rand
	if rng == nil {
		rng = NewLockedRand(time.Now().UnixNano())
	}
	return &tournamentService{
		tournaments: make(map[string]*tournament),
		broadcaster: cfg.Broadcaster,
		recorder:    cfg.Recorder,
		shuffle:     cfg.Shuffle,
		rng:         rng,
		logger:      logger,
		now:         time.Now,
	}
}

type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewLockedRand returns a seeded RandSource that is safe to share between
// tournaments.
func NewLockedRand(seed int64) brackets.RandSource {
	return &lockedRand{rng: rand.New(rand.NewSource(seed))}
}

func (r *lockedRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(n)
}

func (s *tournamentService) Create(ctx context.Context, input CreateTournamentInput) (*TournamentView, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: tournament name is required", ErrValidationFailed)
	}

	t := &tournament{
		id:               uuid.NewString(),
		name:             name,
		createdAt:        s.now(),
		stage:            models.StageQualifiers,
		qualifierWinners: brackets.NewWinnerAggregator(),
	}

	presenters := brackets.MultiPresenter{
		brackets.NewLogPresenter(s.logger.With(slog.String("tournament_id", t.id))),
		brackets.PresenterFunc(func(ev brackets.Event) {
			if ev.Type == brackets.EventMatchResolved {
				t.resolved = append(t.resolved, ev)
			}
		}),
	}
	if s.broadcaster != nil {
		presenters = append(presenters, s.broadcaster.Presenter(brackets.RoomID(t.id)))
	}
	t.presenter = presenters
	t.queue = brackets.NewMatchQueue(t.presenter)
	t.withdrawals = brackets.NewWithdrawalProcessor(t.presenter)

	s.mu.Lock()
	s.tournaments[t.id] = t
	s.order = append(s.order, t.id)
	s.mu.Unlock()

	s.logger.Info("tournament created", slog.String("tournament_id", t.id), slog.String("name", name))
	return t.view(), nil
}

func (s *tournamentService) lookup(id string) (*tournament, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrTournamentNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tournaments[id]
	if !ok {
		return nil, ErrTournamentNotFound
	}
	return t, nil
}

// withTournament runs fn holding the tournament lock.
func (s *tournamentService) withTournament(id string, fn func(t *tournament) error) error {
	t, err := s.lookup(id)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(t)
}

func (s *tournamentService) Get(ctx context.Context, id string) (*TournamentView, error) {
	var view *TournamentView
	err := s.withTournament(id, func(t *tournament) error {
		view = t.view()
		return nil
	})
	return view, err
}

func (s *tournamentService) List(ctx context.Context) []*TournamentView {
	s.mu.RLock()
	ts := make([]*tournament, 0, len(s.order))
	for _, id := range s.order {
		ts = append(ts, s.tournaments[id])
	}
	s.mu.RUnlock()

	views := make([]*TournamentView, 0, len(ts))
	for _, t := range ts {
		t.mu.Lock()
		views = append(views, t.view())
		t.mu.Unlock()
	}
	return views
}

func requireStage(t *tournament, want models.Stage) error {
	if t.stage != want {
		return fmt.Errorf("%w: tournament is in %s, operation needs %s", ErrInvalidStage, t.stage, want)
	}
	return nil
}

func (s *tournamentService) ScheduleQualifier(ctx context.Context, id, player1, player2 string) error {
	return s.withTournament(id, func(t *tournament) error {
		if err := requireStage(t, models.StageQualifiers); err != nil {
			return err
		}
		return t.queue.Enqueue(strings.TrimSpace(player1), strings.TrimSpace(player2), models.StageQualifiers)
	})
}

// ResolveQualifiers decides the queued qualifiers. Winners of matches decided
// before a failure are kept; the remaining matches stay queued.
func (s *tournamentService) ResolveQualifiers(ctx context.Context, id string, provider brackets.ResultProvider) ([]string, error) {
	var winners []string
	err := s.withTournament(id, func(t *tournament) error {
		if err := requireStage(t, models.StageQualifiers); err != nil {
			return err
		}
		agg, resolveErr := t.queue.Resolve(ctx, provider)
		winners = agg.Names()
		for _, w := range winners {
			t.qualifierWinners.Add(w)
		}
		s.flushResolved(ctx, t)
		return resolveErr
	})
	return winners, err
}

func (s *tournamentService) RunGroupStage(ctx context.Context, id string, provider brackets.ResultProvider) ([]string, error) {
	var forwarded []string
	err := s.withTournament(id, func(t *tournament) error {
		if err := requireStage(t, models.StageRoundRobin); err != nil {
			return err
		}
		if t.knockoutPlayers != nil {
			return fmt.Errorf("%w: group stage already played", ErrInvalidStage)
		}

		agg, groups, err := brackets.NewGroupStage(t.presenter).Run(ctx, t.qualifierWinners, provider)
		if err != nil {
			// The groups are replayed from scratch, so their matches are not kept.
			t.resolved = nil
			return err
		}
		t.groups = groups
		t.knockoutPlayers = agg
		forwarded = agg.Names()
		s.flushResolved(ctx, t)
		return nil
	})
	return forwarded, err
}

func (s *tournamentService) RunKnockout(ctx context.Context, id string, provider brackets.ResultProvider) (string, error) {
	var champion string
	err := s.withTournament(id, func(t *tournament) error {
		if err := requireStage(t, models.StageKnockout); err != nil {
			return err
		}
		if t.champion != "" {
			return fmt.Errorf("%w: knockout already played", ErrInvalidStage)
		}

		rng := s.rng
		if !s.shuffle {
			rng = nil
		}
		ko := brackets.NewKnockout(rng, t.presenter)
		if !t.shuffled {
			ko.Shuffle(t.knockoutPlayers)
			t.shuffled = true
		}

		winner, err := ko.Run(ctx, t.knockoutPlayers, provider)
		if err != nil {
			t.resolved = nil
			return err
		}
		t.bracket = ko.Matches()
		t.champion = winner
		champion = winner
		s.flushResolved(ctx, t)
		return nil
	})
	return champion, err
}

// AdvanceStage moves the tournament to the next stage once the current one
// has produced its output.
func (s *tournamentService) AdvanceStage(ctx context.Context, id string) (models.Stage, error) {
	var stage models.Stage
	err := s.withTournament(id, func(t *tournament) error {
		next, ok := t.stage.Next()
		if !ok {
			return ErrFinalStage
		}

		switch t.stage {
		case models.StageQualifiers:
			if !t.queue.IsEmpty() {
				return fmt.Errorf("%w: %d qualifier matches still scheduled", ErrStageIncomplete, t.queue.Len())
			}
			if t.qualifierWinners.Len() == 0 {
				return fmt.Errorf("%w: no qualifier winners yet", ErrStageIncomplete)
			}
		case models.StageRoundRobin:
			if t.knockoutPlayers == nil {
				return fmt.Errorf("%w: group stage not played", ErrStageIncomplete)
			}
		case models.StageKnockout:
			if t.champion == "" {
				return fmt.Errorf("%w: knockout not played", ErrStageIncomplete)
			}
		}

		t.stage = next
		stage = next
		t.presenter.Present(brackets.Event{
			Type:    brackets.EventStageAdvanced,
			Stage:   next.String(),
			Message: fmt.Sprintf("Tournament advanced to %s stage.", next),
		})
		return nil
	})
	return stage, err
}

func (s *tournamentService) RegisterWithdrawal(ctx context.Context, id, player, substitute string) (brackets.Withdrawal, error) {
	var w brackets.Withdrawal
	err := s.withTournament(id, func(t *tournament) error {
		var err error
		w, err = t.withdrawals.Register(strings.TrimSpace(player), strings.TrimSpace(substitute))
		return err
	})
	return w, err
}

func (s *tournamentService) ProcessNextWithdrawal(ctx context.Context, id string) (brackets.Withdrawal, error) {
	var w brackets.Withdrawal
	err := s.withTournament(id, func(t *tournament) error {
		var err error
		w, err = t.withdrawals.ProcessNext(t.queue)
		return err
	})
	return w, err
}

func (s *tournamentService) SearchWithdrawals(ctx context.Context, id, player string) ([]brackets.Withdrawal, error) {
	var out []brackets.Withdrawal
	err := s.withTournament(id, func(t *tournament) error {
		out = t.withdrawals.Search(strings.TrimSpace(player))
		return nil
	})
	return out, err
}

func (s *tournamentService) ListWithdrawals(ctx context.Context, id string) ([]brackets.Withdrawal, error) {
	var out []brackets.Withdrawal
	err := s.withTournament(id, func(t *tournament) error {
		out = t.withdrawals.All()
		return nil
	})
	return out, err
}

// flushResolved hands the buffered match results to the recorder. Results
// that cannot be stored are skipped so the rest are kept. A failing recorder
// does not undo the progression; the error is logged.
func (s *tournamentService) flushResolved(ctx context.Context, t *tournament) {
	events := t.resolved
	t.resolved = nil
	if s.recorder == nil || len(events) == 0 {
		return
	}

	tournamentID := t.id
	inputs := make([]RecordMatchInput, 0, len(events))
	for _, ev := range events {
		in := RecordMatchInput{
			TournamentID: &tournamentID,
			Player1:      ev.Player1,
			Player2:      ev.Player2,
			Stage:        ev.Stage,
			Forfeit:      ev.Forfeit,
		}
		if ev.Winner == ev.Player1 {
			in.Score1 = 1
		} else {
			in.Score2 = 1
		}
		if err := validateRecordInput(in); err != nil {
			s.logger.Warn("skipping resolved match",
				slog.String("tournament_id", t.id),
				slog.String("match", ev.Player1+" vs "+ev.Player2),
				slog.Any("error", err))
			continue
		}
		inputs = append(inputs, in)
	}
	if len(inputs) == 0 {
		return
	}

	if _, err := s.recorder.RecordMatches(ctx, inputs); err != nil {
		s.logger.Error("failed to record resolved matches",
			slog.String("tournament_id", t.id),
			slog.Int("count", len(inputs)),
			slog.Any("error", err))
	}
}

func (t *tournament) view() *TournamentView {
	v := &TournamentView{
		ID:                 t.id,
		Name:               t.name,
		Stage:              t.stage,
		ScheduledMatches:   t.queue.Matches(),
		QualifierWinners:   t.qualifierWinners.Names(),
		Groups:             t.groups,
		Bracket:            t.bracket,
		Champion:           t.champion,
		PendingWithdrawals: len(t.withdrawals.Pending()),
		CreatedAt:          t.createdAt,
	}
	if t.knockoutPlayers != nil {
		v.KnockoutPlayers = t.knockoutPlayers.Names()
	}
	return v
}
