package match

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hassanwarsame/quizduel/internal/ledger"
	"github.com/hassanwarsame/quizduel/internal/models"
	"github.com/hassanwarsame/quizduel/internal/store"
)

// mockSink collects finished matches instead of pushing them to Redis.
type mockSink struct {
	mu       sync.Mutex
	finished []uuid.UUID
}

func (ms *mockSink) MatchFinished(_ context.Context, m *models.Match) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.finished = append(ms.finished, m.ID)
	return nil
}

// setupTestMatch seeds a two-player active match into a memory store and
// returns an engine wired to it.
func setupTestMatch(t *testing.T, numQuestions int) (*Engine, *store.MemoryStore, *ledger.MemoryLedger, *mockSink, *models.Match) {
	t.Helper()

	st := store.NewMemoryStore()
	lg := ledger.NewMemoryLedger()
	sink := &mockSink{}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	eng := NewEngine(st, lg, logger)
	eng.SetCompletionSink(sink)
	eng.now = func() time.Time { return time.UnixMilli(1700000000000) }

	p1, p2 := uuid.New(), uuid.New()
	qs := make([]models.Question, numQuestions)
	for i := range qs {
		qs[i] = models.Question{
			ID:      uuid.NewString(),
			Prompt:  "prompt",
			Options: []string{"a", "b", "c", "d"},
			Correct: 0,
			Subject: models.SubjectMath,
		}
	}

	m := &models.Match{
		ID:      uuid.New(),
		Status:  models.MatchActive,
		Subject: models.SubjectMath,
		Order:   [2]uuid.UUID{p1, p2},
		Players: map[uuid.UUID]*models.MatchPlayer{
			p1: {Name: "amina", Score: 0, Connected: true},
			p2: {Name: "bashir", Score: 0, Connected: true},
		},
		Turn:      p1,
		Questions: qs,
	}

	ctx := context.Background()
	require.NoError(t, st.Put(ctx, store.MatchPath(m.ID), m))
	for _, pid := range m.Order {
		mID := m.ID
		require.NoError(t, st.Put(ctx, store.UserPath(pid), models.ProfileDoc{
			ID: pid, Name: m.Players[pid].Name, ActiveMatch: &mID,
		}))
	}
	return eng, st, lg, sink, m
}

func TestSubmitAnswerAlternation(t *testing.T) {
	eng, _, _, _, m := setupTestMatch(t, 5)
	ctx := context.Background()
	p1, p2 := m.Order[0], m.Order[1]

	// P1 answers Q0 correctly: score +10, turn passes, question stays.
	got, err := eng.SubmitAnswer(ctx, m.ID, p1, true)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Players[p1].Score)
	assert.Equal(t, p2, got.Turn)
	assert.Equal(t, 0, got.CurrentQuestionIndex)
	assert.Equal(t, models.MatchActive, got.Status)

	// P2 answers Q0 correctly: score +10, turn back, question advances.
	got, err = eng.SubmitAnswer(ctx, m.ID, p2, true)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Players[p2].Score)
	assert.Equal(t, p1, got.Turn)
	assert.Equal(t, 1, got.CurrentQuestionIndex)
}

func TestSubmitAnswerWrongAnswerKeepsScore(t *testing.T) {
	eng, _, _, _, m := setupTestMatch(t, 5)
	ctx := context.Background()
	p1 := m.Order[0]

	got, err := eng.SubmitAnswer(ctx, m.ID, p1, false)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Players[p1].Score)
	assert.Equal(t, m.Order[1], got.Turn)
}

func TestTurnViolationLeavesStateUntouched(t *testing.T) {
	eng, st, _, _, m := setupTestMatch(t, 5)
	ctx := context.Background()
	p2 := m.Order[1]

	_, err := eng.SubmitAnswer(ctx, m.ID, p2, true)
	require.ErrorIs(t, err, ErrTurnViolation)

	var cur models.Match
	require.NoError(t, st.Get(ctx, store.MatchPath(m.ID), &cur))
	assert.Equal(t, 0, cur.Players[p2].Score)
	assert.Equal(t, m.Order[0], cur.Turn)
	assert.Equal(t, 0, cur.CurrentQuestionIndex)
}

func TestNonParticipantRejected(t *testing.T) {
	eng, _, _, _, m := setupTestMatch(t, 5)

	_, err := eng.SubmitAnswer(context.Background(), m.ID, uuid.New(), true)
	require.ErrorIs(t, err, ErrTurnViolation)
}

// playThrough drives the match to completion with scripted correctness per
// player.
func playThrough(t *testing.T, eng *Engine, m *models.Match, p1Correct, p2Correct []bool) *models.Match {
	t.Helper()
	ctx := context.Background()
	var last *models.Match
	for i := range p1Correct {
		var err error
		last, err = eng.SubmitAnswer(ctx, m.ID, m.Order[0], p1Correct[i])
		require.NoError(t, err)
		last, err = eng.SubmitAnswer(ctx, m.ID, m.Order[1], p2Correct[i])
		require.NoError(t, err)
	}
	return last
}

func TestFinishSetsWinnerAndRejectsFurtherPlay(t *testing.T) {
	eng, _, _, _, m := setupTestMatch(t, 2)

	final := playThrough(t, eng, m,
		[]bool{true, true},  // p1: 20
		[]bool{true, false}, // p2: 10
	)
	assert.Equal(t, models.MatchFinished, final.Status)
	assert.Equal(t, m.Order[0].String(), final.Winner)
	// The index never ran past the last question.
	assert.Equal(t, 1, final.CurrentQuestionIndex)

	_, err := eng.SubmitAnswer(context.Background(), m.ID, m.Order[0], true)
	require.ErrorIs(t, err, ErrTurnViolation)
}

func TestEqualScoresYieldDraw(t *testing.T) {
	eng, _, _, _, m := setupTestMatch(t, 2)

	final := playThrough(t, eng, m,
		[]bool{true, false},
		[]bool{false, true},
	)
	assert.Equal(t, models.MatchFinished, final.Status)
	assert.Equal(t, models.WinnerDraw, final.Winner)
}

func TestWinnerOnlySetWhenFinished(t *testing.T) {
	eng, _, _, _, m := setupTestMatch(t, 2)
	ctx := context.Background()

	got, err := eng.SubmitAnswer(ctx, m.ID, m.Order[0], true)
	require.NoError(t, err)
	assert.Empty(t, got.Winner)
	assert.Equal(t, models.MatchActive, got.Status)
}

func TestCompletionCreditsLedgerExactlyOnce(t *testing.T) {
	eng, _, lg, sink, m := setupTestMatch(t, 1)
	ctx := context.Background()

	final := playThrough(t, eng, m, []bool{true}, []bool{false})
	require.Equal(t, models.MatchFinished, final.Status)

	p1Points, err := lg.Points(ctx, m.Order[0])
	require.NoError(t, err)
	assert.Equal(t, 10, p1Points)
	p2Points, err := lg.Points(ctx, m.Order[1])
	require.NoError(t, err)
	assert.Equal(t, 0, p2Points)

	// Re-delivery of the same completion must not double-credit.
	err = lg.CreditMatchCompletion(ctx, m.ID, []ledger.Credit{
		{PlayerID: m.Order[0], Points: 10},
	})
	require.NoError(t, err)
	p1Points, err = lg.Points(ctx, m.Order[0])
	require.NoError(t, err)
	assert.Equal(t, 10, p1Points)

	assert.Equal(t, []uuid.UUID{m.ID}, sink.finished)
}

func TestConcurrentSubmissionsApplyOnce(t *testing.T) {
	eng, st, _, _, m := setupTestMatch(t, 5)
	ctx := context.Background()
	p1 := m.Order[0]

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = eng.SubmitAnswer(ctx, m.ID, p1, true)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, ErrTurnViolation)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one racing submission should apply")

	var cur models.Match
	require.NoError(t, st.Get(ctx, store.MatchPath(m.ID), &cur))
	assert.Equal(t, 10, cur.Players[p1].Score)
	assert.Equal(t, m.Order[1], cur.Turn)
}

func TestLeaveMatchKeepsMatchUnresolved(t *testing.T) {
	eng, st, _, _, m := setupTestMatch(t, 5)
	ctx := context.Background()
	leaver, stayer := m.Order[1], m.Order[0]

	require.NoError(t, eng.LeaveMatch(ctx, leaver, m.ID))

	// Leaver's pointer is cleared.
	var leaverProfile models.ProfileDoc
	require.NoError(t, st.Get(ctx, store.UserPath(leaver), &leaverProfile))
	assert.Nil(t, leaverProfile.ActiveMatch)

	// The match itself is untouched and still active: the remaining player
	// keeps an unresolved match with nobody to answer. There is deliberately
	// no forfeiture policy here.
	var cur models.Match
	require.NoError(t, st.Get(ctx, store.MatchPath(m.ID), &cur))
	assert.Equal(t, models.MatchActive, cur.Status)
	assert.Len(t, cur.Players, 2)

	var stayerProfile models.ProfileDoc
	require.NoError(t, st.Get(ctx, store.UserPath(stayer), &stayerProfile))
	require.NotNil(t, stayerProfile.ActiveMatch)
	assert.Equal(t, m.ID, *stayerProfile.ActiveMatch)
}

func TestSetConnectedTogglesOnlyFlag(t *testing.T) {
	eng, st, _, _, m := setupTestMatch(t, 5)
	ctx := context.Background()
	p2 := m.Order[1]

	require.NoError(t, eng.SetConnected(ctx, m.ID, p2, false))

	var cur models.Match
	require.NoError(t, st.Get(ctx, store.MatchPath(m.ID), &cur))
	assert.False(t, cur.Players[p2].Connected)
	assert.Equal(t, m.Order[0], cur.Turn)
	assert.Equal(t, 0, cur.Players[p2].Score)
}
