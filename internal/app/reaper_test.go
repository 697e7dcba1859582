package app

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"trivia-live/internal/domain"
)

// reaperStore records force-finish writes and serves a fixed stale list.
type reaperStore struct {
	NoopStore
	mu       sync.Mutex
	stale    []string
	finished []string
}

func (s *reaperStore) ListStaleSessions(_ context.Context, _ time.Time) ([]string, error) {
	return s.stale, nil
}

func (s *reaperStore) FinishSession(_ context.Context, sessionID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = append(s.finished, sessionID)
	return nil
}

func (s *reaperStore) finishedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.finished...)
}

func TestSweepFinishesStaleLiveSessions(t *testing.T) {
	games := newStubGames()
	sched := &manualScheduler{}
	store := &reaperStore{}
	quizzes := &stubQuizzes{quizzes: map[string]domain.Quiz{"quiz-1": testQuiz()}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := NewGameService(games, quizzes, store, sched, DefaultTimings(), domain.DefaultScoringRules(), logger)

	stale := NewGameSession(domain.Session{
		ID:        "old",
		QuizID:    "quiz-1",
		HostID:    "host-1",
		PIN:       "111111",
		CreatedAt: time.Now().Add(-10 * time.Hour),
	}, testQuiz(), domain.DefaultScoringRules())
	games.Add(stale)

	fresh := NewGameSession(domain.Session{
		ID:     "new",
		QuizID: "quiz-1",
		HostID: "host-1",
		PIN:    "222222",
	}, testQuiz(), domain.DefaultScoringRules())
	games.Add(fresh)

	reaper := NewReaper(service, games, store, DefaultReaperConfig(), logger)
	reaper.Sweep(context.Background())

	if stale.Phase() != domain.PhaseFinished {
		t.Fatalf("stale session should be finished, got %s", stale.Phase())
	}
	// Finishing schedules the eviction for the linger window.
	sched.fire(t)
	if _, ok := games.Get("old"); ok {
		t.Fatal("stale session should be evicted")
	}
	if _, ok := games.Get("new"); !ok {
		t.Fatal("fresh session must survive the sweep")
	}
	if fresh.Phase() != domain.PhaseLobby {
		t.Fatalf("fresh session phase changed to %s", fresh.Phase())
	}
}

func TestSweepFinishesDurableOrphans(t *testing.T) {
	games := newStubGames()
	sched := &manualScheduler{}
	store := &reaperStore{stale: []string{"orphan-1", "orphan-2"}}
	quizzes := &stubQuizzes{quizzes: map[string]domain.Quiz{"quiz-1": testQuiz()}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := NewGameService(games, quizzes, store, sched, DefaultTimings(), domain.DefaultScoringRules(), logger)

	reaper := NewReaper(service, games, store, DefaultReaperConfig(), logger)
	reaper.Sweep(context.Background())

	finished := store.finishedIDs()
	if len(finished) != 2 || finished[0] != "orphan-1" || finished[1] != "orphan-2" {
		t.Fatalf("expected both orphans finished, got %v", finished)
	}
}
