package brackets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/tournament-engine/models"
)

func scheduled(t *testing.T, presenter Presenter, pairs ...[2]string) *MatchQueue {
	t.Helper()
	q := NewMatchQueue(presenter)
	for _, p := range pairs {
		require.NoError(t, q.Enqueue(p[0], p[1], models.StageQualifiers))
	}
	return q
}

func TestRegisterDoesNotTouchQueue(t *testing.T) {
	q := scheduled(t, nil, [2]string{"Alice", "Bob"})
	p := NewWithdrawalProcessor(nil)

	w, err := p.Register("Alice", "Sam")
	require.NoError(t, err)
	assert.Equal(t, 1, w.ID)
	assert.False(t, w.Processed)
	assert.Equal(t, "Alice", q.Matches()[0].Player1)
	assert.Len(t, p.Pending(), 1)
}

func TestRegisterRejectsInvalidNames(t *testing.T) {
	p := NewWithdrawalProcessor(nil)

	_, err := p.Register("", "Sam")
	assert.ErrorIs(t, err, ErrEmptyPlayerName)
	_, err = p.Register("Alice", Placeholder)
	assert.ErrorIs(t, err, ErrPlaceholderPlayer)
	assert.Empty(t, p.All())
}

func TestProcessNextWithSubstitute(t *testing.T) {
	q := scheduled(t, nil,
		[2]string{"Alice", "Bob"},
		[2]string{"Carl", "Dina"},
		[2]string{"Erin", "Alice"},
	)
	p := NewWithdrawalProcessor(nil)
	_, err := p.Register("Alice", "Sam")
	require.NoError(t, err)

	w, err := p.ProcessNext(q)
	require.NoError(t, err)
	assert.True(t, w.Processed)
	require.NotNil(t, w.ProcessedAt)

	matches := q.Matches()
	assert.Equal(t, "Sam", matches[0].Player1)
	assert.Equal(t, Match{Player1: "Carl", Player2: "Dina", Stage: models.StageQualifiers, Attend1: true, Attend2: true}, matches[1])
	assert.Equal(t, "Sam", matches[2].Player2)
	assert.Empty(t, p.Pending())
}

func TestProcessNextWithoutSubstituteForfeits(t *testing.T) {
	q := scheduled(t, nil, [2]string{"Alice", "Bob"})
	p := NewWithdrawalProcessor(nil)
	_, err := p.Register("Bob", "")
	require.NoError(t, err)

	_, err = p.ProcessNext(q)
	require.NoError(t, err)
	assert.False(t, q.Matches()[0].Attend2)
}

func TestProcessNextIsFIFO(t *testing.T) {
	q := scheduled(t, nil, [2]string{"Alice", "Bob"}, [2]string{"Carl", "Dina"})
	p := NewWithdrawalProcessor(nil)
	_, _ = p.Register("Carl", "")
	_, _ = p.Register("Alice", "Sam")

	w, err := p.ProcessNext(q)
	require.NoError(t, err)
	assert.Equal(t, "Carl", w.PlayerName)
	assert.Equal(t, "Alice", q.Matches()[0].Player1)

	w, err = p.ProcessNext(q)
	require.NoError(t, err)
	assert.Equal(t, "Alice", w.PlayerName)
	assert.Equal(t, "Sam", q.Matches()[0].Player1)
}

func TestProcessNextEmpty(t *testing.T) {
	rec := &recorder{}
	p := NewWithdrawalProcessor(rec)

	_, err := p.ProcessNext(NewMatchQueue(nil))
	assert.ErrorIs(t, err, ErrNoPendingWithdrawals)
	assert.Equal(t, []EventType{EventWithdrawalQueueEmpty}, rec.types())
}

func TestProcessNextUnknownPlayerStillProcessed(t *testing.T) {
	rec := &recorder{}
	q := scheduled(t, rec, [2]string{"Alice", "Bob"})
	p := NewWithdrawalProcessor(rec)
	_, _ = p.Register("Zoe", "")

	w, err := p.ProcessNext(q)
	require.NoError(t, err)
	assert.True(t, w.Processed)
	assert.Equal(t, 1, rec.count(EventPlayerNotFound))
	assert.Equal(t, 1, rec.count(EventWithdrawalProcessed))
}

func TestSearchKeepsProcessedRecords(t *testing.T) {
	q := scheduled(t, nil, [2]string{"Alice", "Bob"})
	p := NewWithdrawalProcessor(nil)
	_, _ = p.Register("Alice", "Sam")
	_, _ = p.Register("Bob", "")
	_, _ = p.Register("Alice", "")

	_, err := p.ProcessNext(q)
	require.NoError(t, err)

	found := p.Search("Alice")
	require.Len(t, found, 2)
	assert.True(t, found[0].Processed)
	assert.Equal(t, "Sam", found[0].SubstituteOrNone())
	assert.False(t, found[1].Processed)
	assert.Equal(t, "None", found[1].SubstituteOrNone())
	assert.Equal(t, "Pending", found[1].Status())

	assert.Empty(t, p.Search("Nobody"))
	assert.Len(t, p.All(), 3)
	assert.Len(t, p.Pending(), 2)
}

func TestRegisterRejectionIsReported(t *testing.T) {
	rec := &recorder{}
	p := NewWithdrawalProcessor(rec)

	_, err := p.Register("", "Sam")
	assert.ErrorIs(t, err, ErrEmptyPlayerName)
	_, err = p.Register("Alice", Placeholder)
	assert.ErrorIs(t, err, ErrPlaceholderPlayer)
	_, err = p.Register("Alice", "Alice")
	assert.ErrorIs(t, err, ErrSamePlayer)

	assert.Equal(t, []EventType{EventWithdrawalRejected, EventWithdrawalRejected, EventWithdrawalRejected}, rec.types())
	assert.Empty(t, p.All())
}

func TestSearchUnknownPlayerIsReported(t *testing.T) {
	rec := &recorder{}
	p := NewWithdrawalProcessor(rec)
	_, _ = p.Register("Alice", "")

	assert.Empty(t, p.Search("Nobody"))
	require.NotEmpty(t, rec.events)
	last := rec.events[len(rec.events)-1]
	assert.Equal(t, EventPlayerNotFound, last.Type)
	assert.Equal(t, "Nobody", last.Player)

	assert.Len(t, p.Search("Alice"), 1)
	assert.Equal(t, 1, rec.count(EventPlayerNotFound))
}

func TestProcessNextRejectsSubstituteAlreadyInMatch(t *testing.T) {
	rec := &recorder{}
	q := scheduled(t, rec,
		[2]string{"Alice", "Bob"},
		[2]string{"Carl", "Alice"},
	)
	p := NewWithdrawalProcessor(rec)
	_, _ = p.Register("Alice", "Bob")
	_, _ = p.Register("Carl", "")

	w, err := p.ProcessNext(q)
	assert.ErrorIs(t, err, ErrSamePlayer)
	assert.True(t, w.Rejected)
	assert.False(t, w.Processed)
	assert.Equal(t, "Rejected", w.Status())
	assert.Equal(t, 1, rec.count(EventWithdrawalRejected))
	assert.Equal(t, 0, rec.count(EventPlayerSubstituted))
	assert.Equal(t, "Alice", q.Matches()[0].Player1)
	assert.Equal(t, "Alice", q.Matches()[1].Player2)

	// The rejected withdrawal leaves the FIFO so the next one is served.
	w, err = p.ProcessNext(q)
	require.NoError(t, err)
	assert.Equal(t, "Carl", w.PlayerName)
	assert.Empty(t, p.Pending())
}
