package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"trivia-live/internal/domain"
)

// stubGames is a minimal in-memory GameRepository for service tests.
type stubGames struct {
	mu       sync.Mutex
	sessions map[string]*GameSession
	nextPIN  int
}

func newStubGames() *stubGames {
	return &stubGames{sessions: make(map[string]*GameSession), nextPIN: 100000}
}

func (r *stubGames) Add(g *GameSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[g.ID()] = g
	return nil
}

func (r *stubGames) Get(sessionID string) (*GameSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.sessions[sessionID]
	return g, ok
}

func (r *stubGames) GetByPIN(pin string) (*GameSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.sessions {
		if g.PIN() == pin {
			return g, true
		}
	}
	return nil, false
}

func (r *stubGames) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

func (r *stubGames) NewPIN(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextPIN++
	return fmt.Sprintf("%06d", r.nextPIN), nil
}

func (r *stubGames) All() []*GameSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*GameSession, 0, len(r.sessions))
	for _, g := range r.sessions {
		all = append(all, g)
	}
	return all
}

// stubQuizzes serves fixed quiz content.
type stubQuizzes struct {
	quizzes map[string]domain.Quiz
}

func (s *stubQuizzes) GetQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	q, ok := s.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return q, nil
}

// manualScheduler captures scheduled callbacks so tests drive the phase
// machine by hand, honoring the same guard the real scheduler applies.
type manualScheduler struct {
	mu      sync.Mutex
	pending []scheduledCall
}

type scheduledCall struct {
	game  *GameSession
	after time.Duration
	guard domain.Phase
	fn    func()
}

func (s *manualScheduler) Schedule(g *GameSession, after time.Duration, guard domain.Phase, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, scheduledCall{game: g, after: after, guard: guard, fn: fn})
}

// fire runs the oldest pending callback, applying the phase guard.
func (s *manualScheduler) fire(t *testing.T) {
	t.Helper()
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		t.Fatal("no scheduled callback to fire")
	}
	call := s.pending[0]
	s.pending = s.pending[1:]
	s.mu.Unlock()

	if call.game.Phase() != call.guard {
		return
	}
	call.fn()
}

func (s *manualScheduler) pendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// recordConn captures events sent over one channel.
type recordConn struct {
	mu     sync.Mutex
	events []*domain.Event
	closed bool
}

func (c *recordConn) Send(event *domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *recordConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *recordConn) types() []domain.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.EventType, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Type)
	}
	return out
}

func (c *recordConn) last(eventType domain.EventType) (*domain.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].Type == eventType {
			return c.events[i], true
		}
	}
	return nil, false
}

func (c *recordConn) has(eventType domain.EventType) bool {
	_, ok := c.last(eventType)
	return ok
}

type serviceFixture struct {
	service *GameService
	games   *stubGames
	sched   *manualScheduler
}

func newServiceFixture() *serviceFixture {
	games := newStubGames()
	sched := &manualScheduler{}
	quizzes := &stubQuizzes{quizzes: map[string]domain.Quiz{"quiz-1": testQuiz()}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := NewGameService(games, quizzes, NoopStore{}, sched, DefaultTimings(), domain.DefaultScoringRules(), logger)
	return &serviceFixture{service: service, games: games, sched: sched}
}

func TestCreateSessionOpensLobby(t *testing.T) {
	fx := newServiceFixture()
	ctx := context.Background()

	g, err := fx.service.CreateSession(ctx, "host-1", "quiz-1")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if g.Phase() != domain.PhaseLobby {
		t.Fatalf("expected lobby, got %s", g.Phase())
	}
	if len(g.PIN()) != 6 {
		t.Fatalf("expected 6-digit pin, got %q", g.PIN())
	}

	if _, err := fx.service.CreateSession(ctx, "host-1", "nope"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}

func TestJoinBroadcastsLobby(t *testing.T) {
	fx := newServiceFixture()
	ctx := context.Background()

	g, _ := fx.service.CreateSession(ctx, "host-1", "quiz-1")
	hostConn := &recordConn{}
	if _, err := fx.service.AttachHost(g.ID(), "host-1", hostConn); err != nil {
		t.Fatalf("attach host failed: %v", err)
	}

	player, _, err := fx.service.Join(ctx, g.PIN(), "Alice")
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if !hostConn.has(domain.EventPlayerJoined) {
		t.Fatalf("host missed the join, events: %v", hostConn.types())
	}

	if _, _, err := fx.service.Join(ctx, "000000", "Bob"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected unknown pin rejection, got %v", err)
	}
	if _, err := fx.service.AttachPlayer(g.ID(), player.ID, &recordConn{}); err != nil {
		t.Fatalf("attach player failed: %v", err)
	}
	if _, err := fx.service.AttachPlayer(g.ID(), "intruder", &recordConn{}); !errors.Is(err, domain.ErrNotSessionPlayer) {
		t.Fatalf("expected membership check, got %v", err)
	}
}

func TestStartRequiresHostAndQuestions(t *testing.T) {
	fx := newServiceFixture()
	ctx := context.Background()
	g, _ := fx.service.CreateSession(ctx, "host-1", "quiz-1")

	if err := fx.service.Start(g.ID(), "someone-else"); !errors.Is(err, domain.ErrNotHost) {
		t.Fatalf("expected host check, got %v", err)
	}
	if err := fx.service.Start(g.ID(), "host-1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if g.Phase() != domain.PhaseStarting {
		t.Fatalf("expected starting, got %s", g.Phase())
	}
	if err := fx.service.Start(g.ID(), "host-1"); !errors.Is(err, domain.ErrInvalidPhase) {
		t.Fatalf("double start must fail, got %v", err)
	}
}

func TestFullRound(t *testing.T) {
	fx := newServiceFixture()
	ctx := context.Background()

	g, _ := fx.service.CreateSession(ctx, "host-1", "quiz-1")
	hostConn := &recordConn{}
	fx.service.AttachHost(g.ID(), "host-1", hostConn)

	alice, _, _ := fx.service.Join(ctx, g.PIN(), "Alice")
	aliceConn := &recordConn{}
	fx.service.AttachPlayer(g.ID(), alice.ID, aliceConn)

	if err := fx.service.Start(g.ID(), "host-1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if !aliceConn.has(domain.EventGetReady) {
		t.Fatalf("player missed get-ready, events: %v", aliceConn.types())
	}

	fx.sched.fire(t) // get-ready -> first question
	if g.Phase() != domain.PhaseQuestion {
		t.Fatalf("expected question, got %s", g.Phase())
	}
	questionEvent, ok := aliceConn.last(domain.EventQuestion)
	if !ok {
		t.Fatal("player missed the question")
	}
	state := questionEvent.Payload.(*domain.PlayerStatePayload)
	if state.Question == nil || len(state.Question.Options) != 2 {
		t.Fatalf("unexpected question broadcast: %+v", state.Question)
	}

	breakdown, err := fx.service.SubmitAnswer(g.ID(), alice.ID, domain.Submission{OptionID: "o2"})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if !breakdown.Correct || breakdown.Total <= 0 {
		t.Fatalf("expected a scoring answer, got %+v", breakdown)
	}
	if !aliceConn.has(domain.EventAnswerAccepted) {
		t.Fatal("player missed answer ack")
	}
	if !hostConn.has(domain.EventAnswerProgress) {
		t.Fatal("host missed answer progress")
	}

	// Everyone connected answered: the question closes without the timer.
	if g.Phase() != domain.PhaseAnswers {
		t.Fatalf("expected early close to answers, got %s", g.Phase())
	}
	if !aliceConn.has(domain.EventTimeUp) {
		t.Fatal("player missed time-up")
	}

	fx.sched.fire(t) // answers -> result
	if g.Phase() != domain.PhaseResult {
		t.Fatalf("expected result, got %s", g.Phase())
	}
	dist, ok := hostConn.last(domain.EventAnswerDistribution)
	if !ok {
		t.Fatal("host missed the distribution")
	}
	payload := dist.Payload.(*domain.DistributionPayload)
	total := 0
	for _, e := range payload.Entries {
		total += e.Count
	}
	if total != 1 {
		t.Fatalf("expected one counted answer, got %d", total)
	}

	fx.sched.fire(t) // result -> leaderboard
	if g.Phase() != domain.PhaseLeaderboard {
		t.Fatalf("expected leaderboard, got %s", g.Phase())
	}
	personal, ok := aliceConn.last(domain.EventPersonalResult)
	if !ok {
		t.Fatal("player missed personal result")
	}
	pr := personal.Payload.(*domain.PersonalResultPayload)
	if pr.Rank != 1 || pr.Score != breakdown.Total {
		t.Fatalf("unexpected personal result: %+v", pr)
	}

	fx.sched.fire(t) // leaderboard -> next question
	if g.Phase() != domain.PhaseQuestion {
		t.Fatalf("expected second question, got %s", g.Phase())
	}
}

func TestLastQuestionFinishes(t *testing.T) {
	fx := newServiceFixture()
	ctx := context.Background()

	g, _ := fx.service.CreateSession(ctx, "host-1", "quiz-1")
	alice, _, _ := fx.service.Join(ctx, g.PIN(), "Alice")
	aliceConn := &recordConn{}
	fx.service.AttachPlayer(g.ID(), alice.ID, aliceConn)

	fx.service.Start(g.ID(), "host-1")
	fx.sched.fire(t) // get-ready -> first question
	for q := 0; q < 2; q++ {
		sub := domain.Submission{OptionID: "o2"}
		if q == 1 {
			sub = domain.Submission{OptionIDs: []string{"a", "b"}}
		}
		if _, err := fx.service.SubmitAnswer(g.ID(), alice.ID, sub); err != nil {
			t.Fatalf("submit q%d failed: %v", q, err)
		}
		fx.sched.fire(t) // answers -> result
		fx.sched.fire(t) // result -> leaderboard
		fx.sched.fire(t) // leaderboard -> next question / finish
	}

	if g.Phase() != domain.PhaseFinished {
		t.Fatalf("expected finished, got %s", g.Phase())
	}
	if g.Snapshot().ShareToken == "" {
		t.Fatal("expected a share token")
	}
	final, ok := aliceConn.last(domain.EventFinalRank)
	if !ok {
		t.Fatal("player missed final rank")
	}
	fr := final.Payload.(*domain.FinalRankPayload)
	if fr.Rank != 1 || fr.Players != 1 {
		t.Fatalf("unexpected final rank: %+v", fr)
	}
	if !aliceConn.has(domain.EventSessionFinished) {
		t.Fatal("player missed session-finished")
	}

	// The linger eviction is scheduled; firing it drops the live state.
	fx.sched.fire(t)
	if _, ok := fx.games.Get(g.ID()); ok {
		t.Fatal("expected eviction after linger")
	}
}

func TestHostSkipsDelaysViaCommands(t *testing.T) {
	fx := newServiceFixture()
	ctx := context.Background()

	g, _ := fx.service.CreateSession(ctx, "host-1", "quiz-1")
	alice, _, _ := fx.service.Join(ctx, g.PIN(), "Alice")
	fx.service.Join(ctx, g.PIN(), "Bob")

	fx.service.Start(g.ID(), "host-1")
	if err := fx.service.AdvanceQuestion(g.ID(), "host-1"); err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	if g.Phase() != domain.PhaseQuestion {
		t.Fatalf("expected question, got %s", g.Phase())
	}

	if _, err := fx.service.SubmitAnswer(g.ID(), alice.ID, domain.Submission{OptionID: "o1"}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	// Bob hasn't answered; the host closes the question early.
	if err := fx.service.ShowAnswers(g.ID(), "host-1"); err != nil {
		t.Fatalf("show answers failed: %v", err)
	}
	if g.Phase() != domain.PhaseAnswers {
		t.Fatalf("expected answers, got %s", g.Phase())
	}
	if err := fx.service.ShowResult(g.ID(), "host-1"); err != nil {
		t.Fatalf("show result failed: %v", err)
	}
	if err := fx.service.ShowLeaderboard(g.ID(), "host-1"); err != nil {
		t.Fatalf("show leaderboard failed: %v", err)
	}
	if g.Phase() != domain.PhaseLeaderboard {
		t.Fatalf("expected leaderboard, got %s", g.Phase())
	}

	// Out-of-phase skips are rejected.
	if err := fx.service.ShowAnswers(g.ID(), "host-1"); !errors.Is(err, domain.ErrInvalidPhase) {
		t.Fatalf("expected phase error, got %v", err)
	}
}

func TestStaleTimersAreNoOps(t *testing.T) {
	fx := newServiceFixture()
	ctx := context.Background()

	g, _ := fx.service.CreateSession(ctx, "host-1", "quiz-1")
	alice, _, _ := fx.service.Join(ctx, g.PIN(), "Alice")

	fx.service.Start(g.ID(), "host-1")
	// The host advances manually before the get-ready timer fires.
	if err := fx.service.AdvanceQuestion(g.ID(), "host-1"); err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	if _, err := fx.service.SubmitAnswer(g.ID(), alice.ID, domain.Submission{OptionID: "o2"}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	phase := g.Phase()
	if phase != domain.PhaseAnswers {
		t.Fatalf("expected answers, got %s", phase)
	}

	// The stale get-ready callback fires now; its guard must reject it.
	fx.sched.fire(t)
	if got := g.Phase(); got != domain.PhaseAnswers {
		t.Fatalf("stale timer moved the phase to %s", got)
	}
}

func TestDisconnectClosesQuestionWhenRestAnswered(t *testing.T) {
	fx := newServiceFixture()
	ctx := context.Background()

	g, _ := fx.service.CreateSession(ctx, "host-1", "quiz-1")
	alice, _, _ := fx.service.Join(ctx, g.PIN(), "Alice")
	bob, _, _ := fx.service.Join(ctx, g.PIN(), "Bob")

	fx.service.Start(g.ID(), "host-1")
	fx.service.AdvanceQuestion(g.ID(), "host-1")

	if _, err := fx.service.SubmitAnswer(g.ID(), alice.ID, domain.Submission{OptionID: "o2"}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if g.Phase() != domain.PhaseQuestion {
		t.Fatalf("question must stay open while Bob can still answer, got %s", g.Phase())
	}

	// Bob was the last connected holdout; his drop closes the question.
	fx.service.Disconnect(g.ID(), bob.ID)
	if g.Phase() != domain.PhaseAnswers {
		t.Fatalf("expected early close after disconnect, got %s", g.Phase())
	}
}

func TestKickClosesQuestionWhenRestAnswered(t *testing.T) {
	fx := newServiceFixture()
	ctx := context.Background()

	g, _ := fx.service.CreateSession(ctx, "host-1", "quiz-1")
	alice, _, _ := fx.service.Join(ctx, g.PIN(), "Alice")
	bob, _, _ := fx.service.Join(ctx, g.PIN(), "Bob")

	fx.service.Start(g.ID(), "host-1")
	fx.service.AdvanceQuestion(g.ID(), "host-1")

	if _, err := fx.service.SubmitAnswer(g.ID(), alice.ID, domain.Submission{OptionID: "o2"}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if err := fx.service.Kick(g.ID(), "host-1", bob.ID); err != nil {
		t.Fatalf("kick failed: %v", err)
	}
	if g.Phase() != domain.PhaseAnswers {
		t.Fatalf("expected early close after kick, got %s", g.Phase())
	}
}

func TestEndFromAnyPhase(t *testing.T) {
	fx := newServiceFixture()
	ctx := context.Background()

	g, _ := fx.service.CreateSession(ctx, "host-1", "quiz-1")
	fx.service.Join(ctx, g.PIN(), "Alice")

	if err := fx.service.End(g.ID(), "host-1"); err != nil {
		t.Fatalf("end failed: %v", err)
	}
	if g.Phase() != domain.PhaseFinished {
		t.Fatalf("expected finished, got %s", g.Phase())
	}
	if err := fx.service.End(g.ID(), "host-1"); !errors.Is(err, domain.ErrInvalidPhase) {
		t.Fatalf("double end must fail, got %v", err)
	}
}

func TestKickRemovesPlayer(t *testing.T) {
	fx := newServiceFixture()
	ctx := context.Background()

	g, _ := fx.service.CreateSession(ctx, "host-1", "quiz-1")
	alice, _, _ := fx.service.Join(ctx, g.PIN(), "Alice")
	bob, _, _ := fx.service.Join(ctx, g.PIN(), "Bob")
	aliceConn := &recordConn{}
	fx.service.AttachPlayer(g.ID(), alice.ID, aliceConn)

	if err := fx.service.Kick(g.ID(), "host-1", alice.ID); err != nil {
		t.Fatalf("kick failed: %v", err)
	}
	if !aliceConn.has(domain.EventKicked) {
		t.Fatal("kicked player was not told")
	}
	if _, ok := g.player(alice.ID); ok {
		t.Fatal("player still present after kick")
	}

	entries := g.computeLeaderboard()
	if len(entries) != 1 || entries[0].PlayerID != bob.ID {
		t.Fatalf("kicked player must drop out of the leaderboard, got %+v", entries)
	}

	if err := fx.service.Kick(g.ID(), "host-1", alice.ID); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Fatalf("expected player not found, got %v", err)
	}
}

func TestDisconnectAndReconnect(t *testing.T) {
	fx := newServiceFixture()
	ctx := context.Background()

	g, _ := fx.service.CreateSession(ctx, "host-1", "quiz-1")
	alice, _, _ := fx.service.Join(ctx, g.PIN(), "Alice")
	fx.service.AttachPlayer(g.ID(), alice.ID, &recordConn{})

	fx.service.Disconnect(g.ID(), alice.ID)
	p, _ := g.player(alice.ID)
	if p.Connected {
		t.Fatal("player should be marked disconnected")
	}

	conn := &recordConn{}
	if _, err := fx.service.ReconnectPlayer(ctx, g.ID(), alice.ID, conn); err != nil {
		t.Fatalf("reconnect failed: %v", err)
	}
	p, _ = g.player(alice.ID)
	if !p.Connected {
		t.Fatal("player should be connected again")
	}
	if !conn.has(domain.EventFullState) {
		t.Fatal("reconnect must replay the current state")
	}

	if _, err := fx.service.ReconnectPlayer(ctx, g.ID(), "ghost", &recordConn{}); !errors.Is(err, domain.ErrNotSessionPlayer) {
		t.Fatalf("expected membership check, got %v", err)
	}
}

func TestReconnectEvictedFinishedSession(t *testing.T) {
	fx := newServiceFixture()
	ctx := context.Background()

	g, _ := fx.service.CreateSession(ctx, "host-1", "quiz-1")
	alice, _, _ := fx.service.Join(ctx, g.PIN(), "Alice")
	fx.service.End(g.ID(), "host-1")
	fx.service.Evict(g.ID())

	// NoopStore has no durable record, so the rebuild finds nothing.
	if _, err := fx.service.ReconnectPlayer(ctx, g.ID(), alice.ID, &recordConn{}); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found after eviction, got %v", err)
	}
}

func TestReconnectRebuildsFromDurableStore(t *testing.T) {
	games := newStubGames()
	sched := &manualScheduler{}
	quizzes := &stubQuizzes{quizzes: map[string]domain.Quiz{"quiz-1": testQuiz()}}
	store := &seededStore{
		session: domain.Session{
			ID:            "s9",
			QuizID:        "quiz-1",
			HostID:        "host-1",
			PIN:           "999999",
			Phase:         domain.PhaseLobby,
			QuestionIndex: -1,
		},
		players: []domain.Player{{ID: "p1", SessionID: "s9", Nickname: "Alice", Score: 300}},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := NewGameService(games, quizzes, store, sched, DefaultTimings(), domain.DefaultScoringRules(), logger)

	conn := &recordConn{}
	g, err := service.ReconnectPlayer(context.Background(), "s9", "p1", conn)
	if err != nil {
		t.Fatalf("rebuild reconnect failed: %v", err)
	}
	p, ok := g.player("p1")
	if !ok || p.Score != 300 {
		t.Fatalf("restored player wrong: %+v ok=%v", p, ok)
	}
	if _, ok := games.Get("s9"); !ok {
		t.Fatal("rebuilt session should be live again")
	}
}

func TestConcurrentReconnectsShareOneRebuild(t *testing.T) {
	games := newStubGames()
	sched := &manualScheduler{}
	quizzes := &stubQuizzes{quizzes: map[string]domain.Quiz{"quiz-1": testQuiz()}}
	store := &gatedStore{
		seededStore: seededStore{
			session: domain.Session{
				ID:            "s9",
				QuizID:        "quiz-1",
				HostID:        "host-1",
				PIN:           "999999",
				Phase:         domain.PhaseLobby,
				QuestionIndex: -1,
			},
			players: []domain.Player{{ID: "p1", SessionID: "s9", Nickname: "Alice", Score: 300}},
		},
		gate: make(chan struct{}),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := NewGameService(games, quizzes, store, sched, DefaultTimings(), domain.DefaultScoringRules(), logger)

	var wg sync.WaitGroup
	sessions := make([]*GameSession, 2)
	errs := make([]error, 2)
	for i := range sessions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i], errs[i] = service.ReconnectPlayer(context.Background(), "s9", "p1", &recordConn{})
		}(i)
	}
	// Hold the durable read open so both reconnects are in flight, then let
	// the rebuild proceed.
	time.Sleep(20 * time.Millisecond)
	close(store.gate)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("reconnect %d failed: %v", i, err)
		}
	}
	if sessions[0] != sessions[1] {
		t.Fatalf("reconnects rebuilt separate sessions: %s vs %s", sessions[0].ID(), sessions[1].ID())
	}
	if got := store.sessionReads(); got != 1 {
		t.Fatalf("expected one durable session read, got %d", got)
	}
}

// gatedStore blocks GetSession until the gate closes and counts the reads.
type gatedStore struct {
	seededStore
	mu    sync.Mutex
	reads int
	gate  chan struct{}
}

func (s *gatedStore) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	s.mu.Lock()
	s.reads++
	s.mu.Unlock()
	<-s.gate
	return s.seededStore.GetSession(ctx, sessionID)
}

func (s *gatedStore) sessionReads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// seededStore pre-loads one durable session for rebuild tests.
type seededStore struct {
	NoopStore
	session domain.Session
	players []domain.Player
}

func (s *seededStore) GetSession(_ context.Context, sessionID string) (domain.Session, error) {
	if sessionID != s.session.ID {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return s.session, nil
}

func (s *seededStore) ListPlayers(_ context.Context, sessionID string) ([]domain.Player, error) {
	return s.players, nil
}
