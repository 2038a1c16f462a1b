package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Dosada05/tournament-engine/brackets"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	mu      sync.Mutex
	batches [][]RecordMatchInput
	err     error
}

func (f *fakeRecorder) RecordMatches(_ context.Context, inputs []RecordMatchInput) ([]*models.MatchRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, inputs)
	return nil, f.err
}

func (f *fakeRecorder) all() []RecordMatchInput {
	var out []RecordMatchInput
	for _, b := range f.batches {
		out = append(out, b...)
	}
	return out
}

type fakeBroadcaster struct {
	rooms  []string
	events []brackets.Event
}

func (f *fakeBroadcaster) Presenter(roomID string) brackets.Presenter {
	f.rooms = append(f.rooms, roomID)
	return brackets.PresenterFunc(func(ev brackets.Event) { f.events = append(f.events, ev) })
}

func firstAlphabetical() brackets.ResultFunc {
	return func(_ context.Context, p brackets.Pairing) (string, error) {
		if p.Player2 < p.Player1 {
			return p.Player2, nil
		}
		return p.Player1, nil
	}
}

func newTestTournamentService(rec MatchRecorder, b RoomBroadcaster) TournamentService {
	return NewTournamentService(TournamentServiceConfig{
		Broadcaster: b,
		Recorder:    rec,
		Shuffle:     false,
	})
}

func TestTournamentFullProgression(t *testing.T) {
	ctx := context.Background()
	rec := &fakeRecorder{}
	bc := &fakeBroadcaster{}
	svc := newTestTournamentService(rec, bc)

	created, err := svc.Create(ctx, CreateTournamentInput{Name: "  Spring Open "})
	require.NoError(t, err)
	assert.Equal(t, "Spring Open", created.Name)
	assert.Equal(t, models.StageQualifiers, created.Stage)
	assert.Equal(t, []string{brackets.RoomID(created.ID)}, bc.rooms)
	id := created.ID

	for _, p := range [][2]string{{"A", "B"}, {"C", "D"}, {"E", "F"}, {"G", "H"}, {"I", "J"}} {
		require.NoError(t, svc.ScheduleQualifier(ctx, id, p[0], p[1]))
	}

	winners, err := svc.ResolveQualifiers(ctx, id, firstAlphabetical())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C", "E", "G", "I"}, winners)

	stage, err := svc.AdvanceStage(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StageRoundRobin, stage)

	forwarded, err := svc.RunGroupStage(ctx, id, firstAlphabetical())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C", "I"}, forwarded)

	_, err = svc.AdvanceStage(ctx, id)
	require.NoError(t, err)

	champion, err := svc.RunKnockout(ctx, id, firstAlphabetical())
	require.NoError(t, err)
	assert.Equal(t, "A", champion)

	stage, err = svc.AdvanceStage(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StageChampion, stage)

	_, err = svc.AdvanceStage(ctx, id)
	assert.ErrorIs(t, err, ErrFinalStage)

	view, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "A", view.Champion)
	assert.Equal(t, []string{"A", "C", "I"}, view.KnockoutPlayers)
	assert.Len(t, view.Groups, 2)
	assert.Len(t, view.Bracket, 3)
	assert.Empty(t, view.ScheduledMatches)

	// 5 qualifiers, 6 group matches, 2 knockout matches
	require.Len(t, rec.batches, 3)
	all := rec.all()
	require.Len(t, all, 13)
	for _, in := range all {
		require.NotNil(t, in.TournamentID)
		assert.Equal(t, id, *in.TournamentID)
	}
	assert.Equal(t, "Qualifiers", all[0].Stage)
	assert.Equal(t, 1, all[0].Score1)
	assert.Equal(t, 0, all[0].Score2)
	assert.Equal(t, "Round Robin", all[5].Stage)
	assert.Equal(t, "Knockout", all[12].Stage)

	var advanced int
	for _, ev := range bc.events {
		if ev.Type == brackets.EventStageAdvanced {
			advanced++
		}
	}
	assert.Equal(t, 3, advanced)
}

func TestStageGuards(t *testing.T) {
	ctx := context.Background()
	svc := newTestTournamentService(nil, nil)

	created, err := svc.Create(ctx, CreateTournamentInput{Name: "Guards"})
	require.NoError(t, err)
	id := created.ID

	_, err = svc.AdvanceStage(ctx, id)
	assert.ErrorIs(t, err, ErrStageIncomplete)

	_, err = svc.RunGroupStage(ctx, id, firstAlphabetical())
	assert.ErrorIs(t, err, ErrInvalidStage)
	_, err = svc.RunKnockout(ctx, id, firstAlphabetical())
	assert.ErrorIs(t, err, ErrInvalidStage)

	require.NoError(t, svc.ScheduleQualifier(ctx, id, "A", "B"))
	_, err = svc.AdvanceStage(ctx, id)
	assert.ErrorIs(t, err, ErrStageIncomplete)

	_, err = svc.ResolveQualifiers(ctx, id, firstAlphabetical())
	require.NoError(t, err)
	_, err = svc.AdvanceStage(ctx, id)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.ScheduleQualifier(ctx, id, "C", "D"), ErrInvalidStage)
	_, err = svc.AdvanceStage(ctx, id)
	assert.ErrorIs(t, err, ErrStageIncomplete)

	_, err = svc.RunGroupStage(ctx, id, firstAlphabetical())
	require.NoError(t, err)
	_, err = svc.RunGroupStage(ctx, id, firstAlphabetical())
	assert.ErrorIs(t, err, ErrInvalidStage)
}

func TestResolveQualifiersKeepsPartialWinners(t *testing.T) {
	ctx := context.Background()
	rec := &fakeRecorder{}
	svc := newTestTournamentService(rec, nil)

	created, err := svc.Create(ctx, CreateTournamentInput{Name: "Partial"})
	require.NoError(t, err)
	id := created.ID
	require.NoError(t, svc.ScheduleQualifier(ctx, id, "A", "B"))
	require.NoError(t, svc.ScheduleQualifier(ctx, id, "C", "D"))

	boom := errors.New("referee unavailable")
	scripted := brackets.NewScriptedResults().Add("A", "B", "B")
	failing := brackets.ResultFunc(func(ctx context.Context, p brackets.Pairing) (string, error) {
		if p.Player1 == "C" {
			return "", boom
		}
		return scripted.Winner(ctx, p)
	})

	winners, err := svc.ResolveQualifiers(ctx, id, failing)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"B"}, winners)

	view, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, view.QualifierWinners)
	require.Len(t, view.ScheduledMatches, 1)
	assert.Equal(t, "C", view.ScheduledMatches[0].Player1)
	assert.Len(t, rec.all(), 1)

	winners, err = svc.ResolveQualifiers(ctx, id, firstAlphabetical())
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, winners)

	view, err = svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C"}, view.QualifierWinners)
}

func TestFailedGroupStageRecordsNothing(t *testing.T) {
	ctx := context.Background()
	rec := &fakeRecorder{}
	svc := newTestTournamentService(rec, nil)

	created, err := svc.Create(ctx, CreateTournamentInput{Name: "Abort"})
	require.NoError(t, err)
	id := created.ID
	for _, p := range [][2]string{{"A", "B"}, {"C", "D"}, {"E", "F"}, {"G", "H"}} {
		require.NoError(t, svc.ScheduleQualifier(ctx, id, p[0], p[1]))
	}
	_, err = svc.ResolveQualifiers(ctx, id, firstAlphabetical())
	require.NoError(t, err)
	_, err = svc.AdvanceStage(ctx, id)
	require.NoError(t, err)
	before := len(rec.all())

	calls := 0
	flaky := brackets.ResultFunc(func(ctx context.Context, p brackets.Pairing) (string, error) {
		calls++
		if calls == 3 {
			return "", brackets.ErrNoResult
		}
		return p.Player1, nil
	})
	_, err = svc.RunGroupStage(ctx, id, flaky)
	require.ErrorIs(t, err, brackets.ErrNoResult)
	assert.Len(t, rec.all(), before)

	_, err = svc.AdvanceStage(ctx, id)
	assert.ErrorIs(t, err, ErrStageIncomplete)

	forwarded, err := svc.RunGroupStage(ctx, id, firstAlphabetical())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, forwarded)
	assert.Len(t, rec.all(), before+6)
}

func TestKnockoutShuffleUsesRandSource(t *testing.T) {
	ctx := context.Background()
	svc := NewTournamentService(TournamentServiceConfig{Shuffle: true, Rand: NewLockedRand(7)})
	other := NewTournamentService(TournamentServiceConfig{Shuffle: true, Rand: NewLockedRand(7)})

	run := func(s TournamentService) *TournamentView {
		created, err := s.Create(ctx, CreateTournamentInput{Name: "Seeded"})
		require.NoError(t, err)
		id := created.ID
		for _, p := range [][2]string{{"A", "B"}, {"C", "D"}, {"E", "F"}, {"G", "H"}, {"I", "J"}, {"K", "L"}, {"M", "N"}, {"O", "P"}} {
			require.NoError(t, s.ScheduleQualifier(ctx, id, p[0], p[1]))
		}
		_, err = s.ResolveQualifiers(ctx, id, firstAlphabetical())
		require.NoError(t, err)
		_, err = s.AdvanceStage(ctx, id)
		require.NoError(t, err)
		_, err = s.RunGroupStage(ctx, id, firstAlphabetical())
		require.NoError(t, err)
		_, err = s.AdvanceStage(ctx, id)
		require.NoError(t, err)
		_, err = s.RunKnockout(ctx, id, firstAlphabetical())
		require.NoError(t, err)
		view, err := s.Get(ctx, id)
		require.NoError(t, err)
		return view
	}

	a, b := run(svc), run(other)
	assert.ElementsMatch(t, []string{"A", "C", "I", "K"}, a.KnockoutPlayers)
	assert.Equal(t, a.KnockoutPlayers, b.KnockoutPlayers)
	assert.Equal(t, "A", a.Champion)
}

func TestWithdrawalsThroughService(t *testing.T) {
	ctx := context.Background()
	svc := newTestTournamentService(nil, nil)

	created, err := svc.Create(ctx, CreateTournamentInput{Name: "Withdrawals"})
	require.NoError(t, err)
	id := created.ID
	require.NoError(t, svc.ScheduleQualifier(ctx, id, "A", "B"))
	require.NoError(t, svc.ScheduleQualifier(ctx, id, "C", "D"))

	_, err = svc.RegisterWithdrawal(ctx, id, "A", "Z")
	require.NoError(t, err)
	_, err = svc.RegisterWithdrawal(ctx, id, "D", "")
	require.NoError(t, err)

	view, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, view.PendingWithdrawals)
	assert.Equal(t, "A", view.ScheduledMatches[0].Player1)

	w, err := svc.ProcessNextWithdrawal(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "A", w.PlayerName)
	_, err = svc.ProcessNextWithdrawal(ctx, id)
	require.NoError(t, err)
	_, err = svc.ProcessNextWithdrawal(ctx, id)
	assert.ErrorIs(t, err, brackets.ErrNoPendingWithdrawals)

	winners, err := svc.ResolveQualifiers(ctx, id, firstAlphabetical())
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C"}, winners)

	found, err := svc.SearchWithdrawals(ctx, id, "D")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.True(t, found[0].Processed)

	all, err := svc.ListWithdrawals(ctx, id)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUnknownTournament(t *testing.T) {
	ctx := context.Background()
	svc := newTestTournamentService(nil, nil)

	_, err := svc.Get(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrTournamentNotFound)
	_, err = svc.Get(ctx, "2b0e0f3e-7a47-4a55-9d39-6b3f1f3c8f11")
	assert.ErrorIs(t, err, ErrTournamentNotFound)
	assert.ErrorIs(t, svc.ScheduleQualifier(ctx, "x", "A", "B"), ErrTournamentNotFound)

	_, err = svc.Create(ctx, CreateTournamentInput{Name: "  "})
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestListKeepsCreationOrder(t *testing.T) {
	ctx := context.Background()
	svc := newTestTournamentService(nil, nil)

	for _, name := range []string{"first", "second", "third"} {
		_, err := svc.Create(ctx, CreateTournamentInput{Name: name})
		require.NoError(t, err)
	}
	views := svc.List(ctx)
	require.Len(t, views, 3)
	assert.Equal(t, "first", views[0].Name)
	assert.Equal(t, "third", views[2].Name)
}

func TestRecorderFailureDoesNotUndoProgression(t *testing.T) {
	ctx := context.Background()
	rec := &fakeRecorder{err: errors.New("db down")}
	svc := newTestTournamentService(rec, nil)

	created, err := svc.Create(ctx, CreateTournamentInput{Name: "Down"})
	require.NoError(t, err)
	require.NoError(t, svc.ScheduleQualifier(ctx, created.ID, "A", "B"))

	winners, err := svc.ResolveQualifiers(ctx, created.ID, firstAlphabetical())
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, winners)
	assert.Len(t, rec.batches, 1)
}

func TestSubstituteWhoIsTheOpponentIsRejected(t *testing.T) {
	ctx := context.Background()
	rec := &fakeRecorder{}
	svc := newTestTournamentService(rec, nil)

	created, err := svc.Create(ctx, CreateTournamentInput{Name: "Swap"})
	require.NoError(t, err)
	id := created.ID
	for _, p := range [][2]string{{"Alice", "Bob"}, {"Carl", "Dina"}, {"Erin", "Finn"}} {
		require.NoError(t, svc.ScheduleQualifier(ctx, id, p[0], p[1]))
	}

	_, err = svc.RegisterWithdrawal(ctx, id, "Alice", "Bob")
	require.NoError(t, err)
	w, err := svc.ProcessNextWithdrawal(ctx, id)
	assert.ErrorIs(t, err, brackets.ErrSamePlayer)
	assert.True(t, w.Rejected)

	view, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, view.PendingWithdrawals)
	assert.Equal(t, "Alice", view.ScheduledMatches[0].Player1)

	winners, err := svc.ResolveQualifiers(ctx, id, firstAlphabetical())
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Carl", "Erin"}, winners)
	assert.Len(t, rec.all(), 3)
}

func TestFlushResolvedSkipsUnstorableMatches(t *testing.T) {
	ctx := context.Background()
	rec := &fakeRecorder{}
	svc := newTestTournamentService(rec, nil).(*tournamentService)

	created, err := svc.Create(ctx, CreateTournamentInput{Name: "Flush"})
	require.NoError(t, err)
	tr, err := svc.lookup(created.ID)
	require.NoError(t, err)

	tr.resolved = []brackets.Event{
		{Type: brackets.EventMatchResolved, Stage: "Qualifiers", Player1: "A", Player2: "B", Winner: "A"},
		{Type: brackets.EventMatchResolved, Stage: "Qualifiers", Player1: "C", Player2: "C", Winner: "C"},
		{Type: brackets.EventMatchResolved, Stage: "Qualifiers", Player1: "D", Player2: "E", Winner: "E"},
	}
	svc.flushResolved(ctx, tr)

	got := rec.all()
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Player1)
	assert.Equal(t, 1, got[0].Score1)
	assert.Equal(t, "D", got[1].Player1)
	assert.Equal(t, 1, got[1].Score2)
	assert.Empty(t, tr.resolved)
}
