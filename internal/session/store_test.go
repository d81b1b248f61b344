package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/sanjio/sanjio/internal/model"
)

// recorder keeps every saved snapshot in order.
type recorder struct {
	mu      sync.Mutex
	stored  *Snapshot
	saves   []Snapshot
	saveErr error
	loadErr error
}

func (r *recorder) Load(context.Context) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	if r.stored == nil {
		return nil, nil
	}
	cp := *r.stored
	return &cp, nil
}

func (r *recorder) Save(_ context.Context, snap Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves = append(r.saves, snap)
	if r.saveErr != nil {
		return r.saveErr
	}
	r.stored = &snap
	return nil
}

func (r *recorder) last() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves[len(r.saves)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saves)
}

func paper(ids ...string) []model.CandidateQuestion {
	qs := make([]model.CandidateQuestion, len(ids))
	for i, id := range ids {
		qs[i] = model.CandidateQuestion{
			ID:         id,
			Text:       "Question " + id,
			Options:    []model.Option{{Text: "A"}, {Text: "B"}, {Text: "C"}, {Text: "D"}},
			Score:      1,
			OrderIndex: i,
		}
	}
	return qs
}

func newStore(t *testing.T) (*Store, *recorder) {
	t.Helper()
	rec := &recorder{}
	return New(rec, zerolog.Nop()), rec
}

func TestInitialize_FreshExam(t *testing.T) {
	s, rec := newStore(t)
	s.Initialize("E1", paper("q1", "q2", "q3"))

	st := s.State()
	assert.Equal(t, "E1", st.ExamID)
	assert.Len(t, st.Questions, 3)
	assert.Empty(t, st.Answers)
	assert.Empty(t, st.Flagged)
	assert.Equal(t, 0, st.CurrentIndex)

	require.Equal(t, 1, rec.count())
	snap := rec.last()
	require.NotNil(t, snap.ExamID)
	assert.Equal(t, "E1", *snap.ExamID)
}

func TestInitialize_DifferentExamClearsProgress(t *testing.T) {
	s, _ := newStore(t)
	s.Initialize("E1", paper("q1", "q2", "q3"))
	s.SetAnswer("q1", 2)
	s.ToggleFlag("q2")
	s.GoToQuestion(2)

	s.Initialize("E2", paper("r1", "r2"))

	st := s.State()
	assert.Equal(t, "E2", st.ExamID)
	assert.Empty(t, st.Answers)
	assert.Empty(t, st.Flagged)
	assert.Equal(t, 0, st.CurrentIndex)
}

func TestInitialize_SameExamKeepsProgress(t *testing.T) {
	s, _ := newStore(t)
	s.Initialize("E1", paper("q1", "q2", "q3"))
	s.SetAnswer("q1", 2)
	s.ToggleFlag("q3")
	s.GoToQuestion(2)

	s.Initialize("E1", paper("q1", "q2", "q3"))

	st := s.State()
	assert.Equal(t, map[string]int{"q1": 2}, st.Answers)
	assert.Equal(t, []string{"q3"}, st.Flagged)
	assert.Equal(t, 2, st.CurrentIndex)
}

func TestInitialize_SameExamPrunesRemovedQuestions(t *testing.T) {
	s, _ := newStore(t)
	s.Initialize("E1", paper("q1", "q2", "q3"))
	s.SetAnswer("q1", 1)
	s.SetAnswer("q3", 4)
	s.ToggleFlag("q3")
	s.GoToQuestion(2)

	s.Initialize("E1", paper("q1", "q2"))

	st := s.State()
	assert.Equal(t, map[string]int{"q1": 1}, st.Answers)
	assert.Empty(t, st.Flagged)
	assert.Equal(t, 1, st.CurrentIndex)
}

func TestSetAnswer_Toggles(t *testing.T) {
	s, rec := newStore(t)
	s.Initialize("E1", paper("q1"))

	s.SetAnswer("q1", 2)
	assert.Equal(t, map[string]int{"q1": 2}, rec.last().Answers)

	s.SetAnswer("q1", 3)
	assert.Equal(t, map[string]int{"q1": 3}, rec.last().Answers)

	s.SetAnswer("q1", 3)
	assert.Empty(t, rec.last().Answers)
	assert.False(t, s.State().IsAnswered("q1"))
}

func TestToggleFlag_KeepsInsertionOrder(t *testing.T) {
	s, _ := newStore(t)
	s.Initialize("E1", paper("q1", "q2", "q3"))

	s.ToggleFlag("q3")
	s.ToggleFlag("q1")
	s.ToggleFlag("q2")
	s.ToggleFlag("q1")

	st := s.State()
	assert.Equal(t, []string{"q3", "q2"}, st.Flagged)
	assert.Equal(t, 2, st.FlaggedCount())
	assert.True(t, st.IsFlagged("q2"))
	assert.False(t, st.IsFlagged("q1"))
}

func TestNavigation_Clamps(t *testing.T) {
	s, _ := newStore(t)
	s.Initialize("E1", paper("q1", "q2", "q3"))

	s.PrevQuestion()
	assert.Equal(t, 0, s.State().CurrentIndex)
	assert.True(t, s.State().IsFirst())

	s.NextQuestion()
	s.NextQuestion()
	s.NextQuestion()
	s.NextQuestion()
	assert.Equal(t, 2, s.State().CurrentIndex)
	assert.True(t, s.State().IsLast())

	s.GoToQuestion(1)
	cur, ok := s.State().Current()
	require.True(t, ok)
	assert.Equal(t, "q2", cur.ID)
}

func TestNextQuestion_EmptyPaperStaysAtZero(t *testing.T) {
	s, _ := newStore(t)
	s.NextQuestion()
	assert.Equal(t, 0, s.State().CurrentIndex)
}

func TestToggleSidebar_NotPersisted(t *testing.T) {
	s, rec := newStore(t)
	s.Initialize("E1", paper("q1"))
	before := rec.count()

	s.ToggleSidebar()
	s.ToggleSidebar()
	s.ToggleSidebar()

	assert.Equal(t, before, rec.count())
	assert.True(t, s.State().SidebarOpen)
}

func TestReset_PersistsEmptySnapshot(t *testing.T) {
	s, rec := newStore(t)
	s.Initialize("E1", paper("q1", "q2"))
	s.SetAnswer("q1", 1)
	s.ToggleFlag("q2")
	s.NextQuestion()

	s.Reset()

	snap := rec.last()
	assert.Nil(t, snap.ExamID)
	assert.Empty(t, snap.Answers)
	assert.Empty(t, snap.Flagged)
	assert.Equal(t, 0, snap.CurrentIndex)
	assert.False(t, s.State().Active())
}

func TestDerivedCounts(t *testing.T) {
	s, _ := newStore(t)
	s.Initialize("E1", paper("q1", "q2", "q3", "q4"))
	s.SetAnswer("q1", 1)
	s.SetAnswer("q2", 3)
	s.ToggleFlag("q4")

	st := s.State()
	assert.Equal(t, 2, st.AnsweredCount())
	assert.Equal(t, 2, st.UnansweredCount())
	assert.Equal(t, 1, st.FlaggedCount())
	assert.InDelta(t, 0.5, st.Progress(), 1e-9)

	opt, ok := st.AnswerFor("q2")
	assert.True(t, ok)
	assert.Equal(t, 3, opt)
}

func TestState_IsDeepCopy(t *testing.T) {
	s, _ := newStore(t)
	s.Initialize("E1", paper("q1", "q2"))
	s.SetAnswer("q1", 1)
	s.ToggleFlag("q1")

	st := s.State()
	st.Answers["q2"] = 4
	st.Flagged[0] = "zzz"
	st.Questions[0].ID = "mutated"

	again := s.State()
	assert.Equal(t, map[string]int{"q1": 1}, again.Answers)
	assert.Equal(t, []string{"q1"}, again.Flagged)
	assert.Equal(t, "q1", again.Questions[0].ID)
}

func TestHydrate_RestoresDurableFields(t *testing.T) {
	examID := "E1"
	rec := &recorder{stored: &Snapshot{
		ExamID:       &examID,
		Answers:      map[string]int{"q1": 2, "bad": 0},
		Flagged:      []string{"q2"},
		CurrentIndex: 1,
	}}
	s := New(rec, zerolog.Nop())

	require.NoError(t, s.Hydrate(context.Background()))
	st := s.State()
	assert.Equal(t, "E1", st.ExamID)
	assert.Equal(t, map[string]int{"q1": 2}, st.Answers)
	assert.Equal(t, []string{"q2"}, st.Flagged)
	assert.Equal(t, 1, st.CurrentIndex)
	assert.Empty(t, st.Questions)
	assert.Zero(t, rec.count(), "hydrate must not write back")

	// Reload after a crash: the same exam keeps progress.
	s.Initialize("E1", paper("q1", "q2", "q3"))
	st = s.State()
	assert.Equal(t, map[string]int{"q1": 2}, st.Answers)
	assert.Equal(t, 1, st.CurrentIndex)
}

func TestHydrate_NothingStored(t *testing.T) {
	s, _ := newStore(t)
	require.NoError(t, s.Hydrate(context.Background()))
	assert.False(t, s.State().Active())
}

func TestHydrate_LoadError(t *testing.T) {
	rec := &recorder{loadErr: errors.New("disk gone")}
	s := New(rec, zerolog.Nop())
	err := s.Hydrate(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, rec.loadErr)
}

func TestSaveFailure_DoesNotBlockMutation(t *testing.T) {
	rec := &recorder{saveErr: errors.New("quota exceeded")}
	s := New(rec, zerolog.Nop())

	s.Initialize("E1", paper("q1"))
	s.SetAnswer("q1", 1)

	assert.Equal(t, map[string]int{"q1": 1}, s.State().Answers)
	assert.Equal(t, 2, s.PersistFailures())
}

func TestSubscribe(t *testing.T) {
	s, _ := newStore(t)
	var got []State
	unsubscribe := s.Subscribe(func(st State) { got = append(got, st) })

	s.Initialize("E1", paper("q1"))
	s.SetAnswer("q1", 1)
	unsubscribe()
	s.SetAnswer("q1", 1)

	require.Len(t, got, 2)
	assert.Equal(t, map[string]int{"q1": 1}, got[1].Answers)
}

func TestConcurrentMutations(t *testing.T) {
	s, rec := newStore(t)
	ids := make([]string, 20)
	for i := range ids {
		ids[i] = fmt.Sprintf("q%d", i)
	}
	s.Initialize("E1", paper(ids...))

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			s.SetAnswer(id, 1)
			s.ToggleFlag(id)
		}(id)
	}
	wg.Wait()

	st := s.State()
	assert.Equal(t, len(ids), st.AnsweredCount())
	assert.Equal(t, len(ids), st.FlaggedCount())
	assert.Equal(t, st.Answers, rec.last().Answers)
}

// The persisted snapshot always equals the durable part of the state after
// every persisted mutation.
func TestProperty_SnapshotTracksState(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rec := &recorder{}
		s := New(rec, zerolog.Nop())
		qids := []string{"q1", "q2", "q3", "q4", "q5"}
		s.Initialize("E1", paper(qids...))

		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			qid := rapid.SampledFrom(qids).Draw(t, "qid")
			switch rapid.IntRange(0, 4).Draw(t, "op") {
			case 0:
				s.SetAnswer(qid, rapid.IntRange(1, 4).Draw(t, "option"))
			case 1:
				s.ToggleFlag(qid)
			case 2:
				s.NextQuestion()
			case 3:
				s.PrevQuestion()
			case 4:
				s.GoToQuestion(rapid.IntRange(0, len(qids)-1).Draw(t, "index"))
			}

			st := s.State()
			snap := rec.last()
			if len(st.Answers) != len(snap.Answers) {
				t.Fatalf("answers diverged: state=%v snapshot=%v", st.Answers, snap.Answers)
			}
			for k, v := range st.Answers {
				if snap.Answers[k] != v {
					t.Fatalf("answer %s diverged: %d vs %d", k, v, snap.Answers[k])
				}
			}
			if len(st.Flagged) != len(snap.Flagged) {
				t.Fatalf("flags diverged: state=%v snapshot=%v", st.Flagged, snap.Flagged)
			}
			if st.CurrentIndex != snap.CurrentIndex {
				t.Fatalf("index diverged: %d vs %d", st.CurrentIndex, snap.CurrentIndex)
			}
			if st.CurrentIndex < 0 || st.CurrentIndex >= len(qids) {
				t.Fatalf("index out of range: %d", st.CurrentIndex)
			}
			if st.AnsweredCount()+st.UnansweredCount() != len(qids) {
				t.Fatalf("counts do not add up")
			}
		}
	})
}

// Answering the same option twice always restores the prior answer state.
func TestProperty_SetAnswerIsInvolution(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := New(&recorder{}, zerolog.Nop())
		s.Initialize("E1", paper("q1", "q2"))
		if rapid.Bool().Draw(t, "preanswer") {
			s.SetAnswer("q1", rapid.IntRange(1, 4).Draw(t, "pre"))
		}
		before := s.State().Answers

		opt := rapid.IntRange(1, 4).Draw(t, "opt")
		s.SetAnswer("q1", opt)
		s.SetAnswer("q1", opt)
		after := s.State().Answers

		prev, had := before["q1"]
		if had && prev == opt {
			// first call cleared it, second call restored it
			if after["q1"] != opt {
				t.Fatalf("expected %d restored, got %v", opt, after)
			}
			return
		}
		if _, ok := after["q1"]; ok {
			t.Fatalf("expected q1 cleared, got %v", after)
		}
	})
}

// drawOps applies a random sequence of candidate operations to s.
func drawOps(t *rapid.T, s *Store, qids []string) {
	steps := rapid.IntRange(0, 40).Draw(t, "steps")
	for i := 0; i < steps; i++ {
		qid := rapid.SampledFrom(qids).Draw(t, "qid")
		switch rapid.IntRange(0, 5).Draw(t, "op") {
		case 0:
			s.SetAnswer(qid, rapid.IntRange(1, 4).Draw(t, "option"))
		case 1:
			s.ToggleFlag(qid)
		case 2:
			s.NextQuestion()
		case 3:
			s.PrevQuestion()
		case 4:
			s.GoToQuestion(rapid.IntRange(0, len(qids)-1).Draw(t, "index"))
		case 5:
			s.ToggleSidebar()
		}
	}
}

// Loading a different exam never carries progress over.
func TestProperty_OtherExamStartsEmpty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rec := &recorder{}
		s := New(rec, zerolog.Nop())
		s.Initialize("A", paper("a1", "a2", "a3", "a4"))
		drawOps(t, s, []string{"a1", "a2", "a3", "a4"})

		next := rapid.SampledFrom([]string{"B", "C", "a1"}).Draw(t, "exam")
		n := rapid.IntRange(1, 6).Draw(t, "questions")
		ids := make([]string, n)
		for i := range ids {
			ids[i] = fmt.Sprintf("%s-%d", next, i)
		}
		s.Initialize(next, paper(ids...))

		st := s.State()
		if st.ExamID != next || len(st.Answers) != 0 || len(st.Flagged) != 0 || st.CurrentIndex != 0 {
			t.Fatalf("progress leaked into %s: %+v", next, st)
		}
		snap := rec.last()
		if snap.ExamID == nil || *snap.ExamID != next || len(snap.Answers) != 0 || len(snap.Flagged) != 0 || snap.CurrentIndex != 0 {
			t.Fatalf("persisted snapshot leaked progress: %+v", snap)
		}
	})
}

// Reloading the same exam keeps progress and swaps in the fresh questions.
func TestProperty_SameExamReloadKeepsProgress(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		qids := []string{"q1", "q2", "q3", "q4", "q5"}
		s := New(&recorder{}, zerolog.Nop())
		s.Initialize("E1", paper(qids...))
		drawOps(t, s, qids)
		before := s.State()

		fresh := paper(qids...)
		for i := range fresh {
			fresh[i].Text = rapid.StringMatching(`[a-z ]{1,12}`).Draw(t, "text")
		}
		s.Initialize("E1", fresh)
		after := s.State()

		if fmt.Sprint(after.Answers) != fmt.Sprint(before.Answers) {
			t.Fatalf("answers changed: %v -> %v", before.Answers, after.Answers)
		}
		if fmt.Sprint(after.Flagged) != fmt.Sprint(before.Flagged) {
			t.Fatalf("flags changed: %v -> %v", before.Flagged, after.Flagged)
		}
		if after.CurrentIndex != before.CurrentIndex {
			t.Fatalf("index changed: %d -> %d", before.CurrentIndex, after.CurrentIndex)
		}
		for i, q := range after.Questions {
			if q.Text != fresh[i].Text {
				t.Fatalf("question %d not refreshed", i)
			}
		}
	})
}

// Reloading the same exam with a shorter paper keeps progress for the
// questions that remain and nothing else.
func TestProperty_SameExamReloadPrunesToPaper(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		qids := []string{"q1", "q2", "q3", "q4", "q5"}
		s := New(&recorder{}, zerolog.Nop())
		s.Initialize("E1", paper(qids...))
		drawOps(t, s, qids)
		before := s.State()

		keep := rapid.IntRange(1, len(qids)).Draw(t, "keep")
		s.Initialize("E1", paper(qids[:keep]...))
		after := s.State()

		kept := map[string]bool{}
		for _, id := range qids[:keep] {
			kept[id] = true
		}
		for qid, opt := range before.Answers {
			if got, ok := after.Answers[qid]; kept[qid] != ok || (ok && got != opt) {
				t.Fatalf("answer %s: before %d, after %v (kept=%v)", qid, opt, after.Answers, kept[qid])
			}
		}
		for _, qid := range after.Flagged {
			if !kept[qid] {
				t.Fatalf("flag for removed question %s survived", qid)
			}
		}
		if want := min(before.CurrentIndex, keep-1); after.CurrentIndex != want {
			t.Fatalf("index %d, want %d", after.CurrentIndex, want)
		}
	})
}

// Toggling a flag twice restores membership, and navigation never leaves the paper.
func TestProperty_FlagPairAndClamping(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "questions")
		ids := make([]string, n)
		for i := range ids {
			ids[i] = fmt.Sprintf("q%d", i)
		}
		s := New(&recorder{}, zerolog.Nop())
		s.Initialize("E1", paper(ids...))
		drawOps(t, s, ids)

		qid := rapid.SampledFrom(ids).Draw(t, "flag")
		was := s.State().IsFlagged(qid)
		s.ToggleFlag(qid)
		s.ToggleFlag(qid)
		if s.State().IsFlagged(qid) != was {
			t.Fatalf("flag pair changed membership of %s", qid)
		}

		moves := rapid.IntRange(0, 2*n).Draw(t, "moves")
		forward := rapid.Bool().Draw(t, "forward")
		for i := 0; i < moves; i++ {
			if forward {
				s.NextQuestion()
			} else {
				s.PrevQuestion()
			}
		}
		idx := s.State().CurrentIndex
		if idx < 0 || idx >= n {
			t.Fatalf("index %d outside paper of %d", idx, n)
		}
		if moves >= n && forward && idx != n-1 {
			t.Fatalf("next should stop at %d, got %d", n-1, idx)
		}
		if moves >= n && !forward && idx != 0 {
			t.Fatalf("prev should stop at 0, got %d", idx)
		}
	})
}
