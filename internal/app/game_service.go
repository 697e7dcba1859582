package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"trivia-live/internal/domain"
)

// GameRepository holds the live sessions, keyed by id and join PIN.
type GameRepository interface {
	Add(g *GameSession) error
	Get(sessionID string) (*GameSession, bool)
	GetByPIN(pin string) (*GameSession, bool)
	Remove(sessionID string)
	NewPIN(ctx context.Context) (string, error)
	All() []*GameSession
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// Timings are the auto-advance delays of the phase machine.
type Timings struct {
	GetReady         time.Duration `yaml:"get_ready"`
	AnswersDelay     time.Duration `yaml:"answers_delay"`
	ResultDelay      time.Duration `yaml:"result_delay"`
	LeaderboardDelay time.Duration `yaml:"leaderboard_delay"`
	FinishedLinger   time.Duration `yaml:"finished_linger"`
}

// DefaultTimings returns the standard phase pacing.
func DefaultTimings() Timings {
	return Timings{
		GetReady:         5 * time.Second,
		AnswersDelay:     5 * time.Second,
		ResultDelay:      10 * time.Second,
		LeaderboardDelay: 8 * time.Second,
		FinishedLinger:   5 * time.Minute,
	}
}

// GameService drives the session phase machine. It is the only component
// that mutates live session state; broadcasts always follow the mutation that
// produced them, and durable writes are dispatched fire-and-forget at phase
// boundaries.
type GameService struct {
	games   GameRepository
	quizzes QuizRepository
	store   DurableStore
	sched   Scheduler
	timings Timings
	rules   domain.ScoringRules
	logger  *slog.Logger

	rebuilds singleflight.Group
}

func NewGameService(games GameRepository, quizzes QuizRepository, store DurableStore, sched Scheduler, timings Timings, rules domain.ScoringRules, logger *slog.Logger) *GameService {
	return &GameService{
		games:   games,
		quizzes: quizzes,
		store:   store,
		sched:   sched,
		timings: timings,
		rules:   rules,
		logger:  logger,
	}
}

// CreateSession opens a new session in the lobby for the given quiz, owned by
// hostID, with a freshly generated join PIN.
func (s *GameService) CreateSession(ctx context.Context, hostID, quizID string) (*GameSession, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	pin, err := s.games.NewPIN(ctx)
	if err != nil {
		return nil, err
	}

	g := NewGameSession(domain.Session{
		ID:     uuid.NewString(),
		QuizID: quizID,
		HostID: hostID,
		PIN:    pin,
	}, quiz, s.rules)

	if err := s.games.Add(g); err != nil {
		return nil, err
	}

	s.persist("create session", func(ctx context.Context) error {
		return s.store.CreateSession(ctx, g.Snapshot())
	})
	s.logger.Info("session created", "session", g.ID(), "quiz", quizID, "pin", pin)
	return g, nil
}

// Join adds a player to a lobby found by PIN.
func (s *GameService) Join(ctx context.Context, pin, nickname string) (domain.Player, *GameSession, error) {
	g, ok := s.games.GetByPIN(pin)
	if !ok {
		return domain.Player{}, nil, domain.ErrSessionNotFound
	}

	player, err := g.addPlayer(nickname)
	if err != nil {
		return domain.Player{}, nil, err
	}

	s.persist("create player", func(ctx context.Context) error {
		return s.store.CreatePlayer(ctx, player)
	})

	lobby := g.lobbyState()
	g.SendHost(domain.NewEvent(domain.EventPlayerJoined, g.ID(), lobby))
	g.SendPlayers(domain.NewEvent(domain.EventPlayerJoined, g.ID(), lobby))
	return player, g, nil
}

// AttachHost binds the host connection to its session's host channel.
func (s *GameService) AttachHost(sessionID, hostID string, conn ClientConn) (*GameSession, error) {
	g, ok := s.games.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if g.HostID() != hostID {
		return nil, domain.ErrNotHost
	}
	g.attachHost(conn)
	return g, nil
}

// AttachPlayer binds a player connection to the group and private channels.
func (s *GameService) AttachPlayer(sessionID, playerID string, conn ClientConn) (*GameSession, error) {
	g, ok := s.games.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if _, ok := g.player(playerID); !ok {
		return nil, domain.ErrNotSessionPlayer
	}
	g.attachPlayer(playerID, conn)
	return g, nil
}

// Start begins the game: lobby -> starting, then the first question after the
// get-ready delay. Requires the quiz to have at least one question.
func (s *GameService) Start(sessionID, hostID string) error {
	g, err := s.hostSession(sessionID, hostID)
	if err != nil {
		return err
	}
	if g.QuestionCount() == 0 {
		return domain.ErrNoQuestions
	}
	if err := g.setPhase(domain.PhaseStarting); err != nil {
		return err
	}

	s.persistPhase(g)
	g.SendHost(domain.NewEvent(domain.EventFullState, g.ID(), g.hostState()))
	g.SendPlayers(domain.NewEvent(domain.EventGetReady, g.ID(), g.playerState()))

	s.sched.Schedule(g, s.timings.GetReady, domain.PhaseStarting, func() {
		s.advanceQuestion(g)
	})
	return nil
}

// AdvanceQuestion lets the host move to the next question manually from the
// leaderboard.
func (s *GameService) AdvanceQuestion(sessionID, hostID string) error {
	g, err := s.hostSession(sessionID, hostID)
	if err != nil {
		return err
	}
	phase := g.Phase()
	if phase != domain.PhaseStarting && phase != domain.PhaseLeaderboard {
		return domain.ErrInvalidPhase
	}
	s.advanceQuestion(g)
	return nil
}

// advanceQuestion selects the next question, or finishes the session when the
// quiz is exhausted. The host receives the full question; players a redacted
// one. A per-second countdown starts for the question's time limit.
func (s *GameService) advanceQuestion(g *GameSession) {
	idx, ok := g.advanceToQuestion()
	if !ok {
		s.finish(g)
		return
	}

	s.persistPhase(g)
	g.SendHost(domain.NewEvent(domain.EventFullState, g.ID(), g.hostState()))
	g.SendPlayers(domain.NewEvent(domain.EventQuestion, g.ID(), g.playerState()))

	q, _ := g.CurrentQuestion()
	s.logger.Info("question opened", "session", g.ID(), "index", idx, "question", q.ID)
	s.runCountdown(g, int(q.TimeLimitDuration().Seconds()))
}

// runCountdown ticks once per second, broadcasting the remaining time to both
// audiences, and closes the question when it reaches zero. The done channel
// cancels it on early completion or any other phase change.
func (s *GameService) runCountdown(g *GameSession, seconds int) {
	done := g.startCountdown()
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		remaining := seconds
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				remaining--
				if remaining <= 0 {
					s.closeQuestion(g)
					return
				}
				g.SendAll(domain.NewEvent(domain.EventCountdownTick, g.ID(), &domain.CountdownPayload{
					RemainingSeconds: remaining,
				}))
			}
		}
	}()
}

// SubmitAnswer records a player's submission for the current question. When
// every connected player has answered, the countdown short-circuits.
func (s *GameService) SubmitAnswer(sessionID, playerID string, sub domain.Submission) (domain.ScoreBreakdown, error) {
	g, ok := s.games.Get(sessionID)
	if !ok {
		return domain.ScoreBreakdown{}, domain.ErrSessionNotFound
	}

	breakdown, err := g.recordAnswer(playerID, sub)
	if err != nil {
		return domain.ScoreBreakdown{}, err
	}

	g.SendPlayer(playerID, domain.NewEvent(domain.EventAnswerAccepted, g.ID(), nil))
	g.SendHost(domain.NewEvent(domain.EventAnswerProgress, g.ID(), &domain.AnswerProgressPayload{
		Answered: g.answerCount(),
		Total:    g.playerCount(),
	}))

	s.maybeCloseEarly(g)
	return breakdown, nil
}

// maybeCloseEarly cancels the countdown and closes the question as soon as no
// connected player is still to answer. Checked on every submission and on any
// change that shrinks the connected set mid-question.
func (s *GameService) maybeCloseEarly(g *GameSession) {
	if g.Phase() != domain.PhaseQuestion || !g.allConnectedAnswered() {
		return
	}
	g.stopCountdown()
	s.closeQuestion(g)
}

// ShowAnswers lets the host close the question before the timer runs out.
func (s *GameService) ShowAnswers(sessionID, hostID string) error {
	g, err := s.hostSession(sessionID, hostID)
	if err != nil {
		return err
	}
	if g.Phase() != domain.PhaseQuestion {
		return domain.ErrInvalidPhase
	}
	g.stopCountdown()
	s.closeQuestion(g)
	return nil
}

// closeQuestion transitions question -> answers: streaks of unanswered
// connected players reset, the pending answer batch flushes to durable
// storage, and the result auto-advance is scheduled.
func (s *GameService) closeQuestion(g *GameSession) {
	if err := g.setPhase(domain.PhaseAnswers); err != nil {
		return
	}
	g.resetStreaksForUnanswered()

	answers, scores := g.drainPending()
	if len(answers) > 0 {
		s.persist("insert answers", func(ctx context.Context) error {
			return s.store.InsertAnswerRecords(ctx, g.ID(), answers)
		})
	}
	if len(scores) > 0 {
		s.persist("update scores", func(ctx context.Context) error {
			return s.store.UpdatePlayerScores(ctx, scores)
		})
	}
	s.persistPhase(g)

	g.SendAll(domain.NewEvent(domain.EventTimeUp, g.ID(), nil))
	g.SendHost(domain.NewEvent(domain.EventFullState, g.ID(), g.hostState()))
	g.SendPlayers(domain.NewEvent(domain.EventFullState, g.ID(), g.playerState()))

	s.sched.Schedule(g, s.timings.AnswersDelay, domain.PhaseAnswers, func() {
		s.showResult(g)
	})
}

// ShowResult lets the host skip ahead to the answer distribution.
func (s *GameService) ShowResult(sessionID, hostID string) error {
	g, err := s.hostSession(sessionID, hostID)
	if err != nil {
		return err
	}
	if g.Phase() != domain.PhaseAnswers {
		return domain.ErrInvalidPhase
	}
	s.showResult(g)
	return nil
}

// showResult transitions answers -> result and pushes the per-option answer
// distribution to the host.
func (s *GameService) showResult(g *GameSession) {
	if err := g.setPhase(domain.PhaseResult); err != nil {
		return
	}
	s.persistPhase(g)

	q, _ := g.CurrentQuestion()
	g.SendHost(domain.NewEvent(domain.EventAnswerDistribution, g.ID(), &domain.DistributionPayload{
		QuestionID: q.ID,
		Entries:    g.computeDistribution(),
	}))

	s.sched.Schedule(g, s.timings.ResultDelay, domain.PhaseResult, func() {
		s.showLeaderboard(g)
	})
}

// ShowLeaderboard lets the host skip ahead to the leaderboard.
func (s *GameService) ShowLeaderboard(sessionID, hostID string) error {
	g, err := s.hostSession(sessionID, hostID)
	if err != nil {
		return err
	}
	if g.Phase() != domain.PhaseResult {
		return domain.ErrInvalidPhase
	}
	s.showLeaderboard(g)
	return nil
}

// showLeaderboard transitions result -> leaderboard, broadcasts the ranked
// scoreboard and pushes each player their personal result and rank. After the
// delay the session either repeats with the next question or finishes.
func (s *GameService) showLeaderboard(g *GameSession) {
	if err := g.setPhase(domain.PhaseLeaderboard); err != nil {
		return
	}
	s.persistPhase(g)

	entries := g.computeLeaderboard()
	g.SendAll(domain.NewEvent(domain.EventLeaderboard, g.ID(), &domain.LeaderboardPayload{Entries: entries}))

	for _, entry := range entries {
		payload := &domain.PersonalResultPayload{
			Score: entry.Score,
			Rank:  entry.Rank,
		}
		if answer, ok := g.recordedAnswer(entry.PlayerID); ok {
			payload.QuestionID = answer.QuestionID
			payload.Breakdown = answer.Breakdown
		}
		g.SendPlayer(entry.PlayerID, domain.NewEvent(domain.EventPersonalResult, g.ID(), payload))
	}

	last := g.OnLastQuestion()
	s.sched.Schedule(g, s.timings.LeaderboardDelay, domain.PhaseLeaderboard, func() {
		if last {
			s.finish(g)
		} else {
			s.advanceQuestion(g)
		}
	})
}

// End lets the host finish the session from any non-terminal phase.
func (s *GameService) End(sessionID, hostID string) error {
	g, err := s.hostSession(sessionID, hostID)
	if err != nil {
		return err
	}
	if g.Phase().Terminal() {
		return domain.ErrInvalidPhase
	}
	s.finish(g)
	return nil
}

// finish is the terminal transition: final scores and any buffered answers
// are persisted, the final leaderboard and personalized ranks go out, and the
// live state is scheduled for eviction after the linger window.
func (s *GameService) finish(g *GameSession) {
	g.stopCountdown()
	if err := g.setPhase(domain.PhaseFinished); err != nil {
		return
	}
	g.setShareToken(uuid.NewString())

	answers, scores := g.drainPending()
	if len(answers) > 0 {
		s.persist("insert answers", func(ctx context.Context) error {
			return s.store.InsertAnswerRecords(ctx, g.ID(), answers)
		})
	}
	if len(scores) > 0 {
		s.persist("update scores", func(ctx context.Context) error {
			return s.store.UpdatePlayerScores(ctx, scores)
		})
	}
	s.persistPhase(g)
	s.persist("share token", func(ctx context.Context) error {
		return s.store.SetShareToken(ctx, g.ID(), g.Snapshot().ShareToken)
	})

	entries := g.computeLeaderboard()
	g.SendAll(domain.NewEvent(domain.EventLeaderboard, g.ID(), &domain.LeaderboardPayload{Entries: entries, Final: true}))
	for _, entry := range entries {
		g.SendPlayer(entry.PlayerID, domain.NewEvent(domain.EventFinalRank, g.ID(), &domain.FinalRankPayload{
			Rank:    entry.Rank,
			Score:   entry.Score,
			Players: len(entries),
		}))
	}
	g.SendAll(domain.NewEvent(domain.EventSessionFinished, g.ID(), nil))
	s.logger.Info("session finished", "session", g.ID(), "players", len(entries))

	s.sched.Schedule(g, s.timings.FinishedLinger, domain.PhaseFinished, func() {
		s.Evict(g.ID())
	})
}

// Kick removes a player on the host's request. Valid in any non-terminal
// phase: the player's private channel is notified, their state and connection
// are dropped, and the host gets a fresh snapshot.
func (s *GameService) Kick(sessionID, hostID, playerID string) error {
	g, err := s.hostSession(sessionID, hostID)
	if err != nil {
		return err
	}
	if g.Phase().Terminal() {
		return domain.ErrInvalidPhase
	}

	g.SendPlayer(playerID, domain.NewEvent(domain.EventKicked, g.ID(), &domain.KickedPayload{
		Reason: "removed by host",
	}))
	if err := g.removePlayer(playerID); err != nil {
		return err
	}
	g.detachPlayer(playerID)

	g.SendHost(domain.NewEvent(domain.EventFullState, g.ID(), g.hostState()))
	g.SendPlayers(domain.NewEvent(domain.EventPlayerLeft, g.ID(), g.lobbyState()))
	s.maybeCloseEarly(g)
	return nil
}

// Disconnect marks a player disconnected when their transport drops, leaving
// their score and answers intact for a later reconnect.
func (s *GameService) Disconnect(sessionID, playerID string) {
	g, ok := s.games.Get(sessionID)
	if !ok {
		return
	}
	if err := g.setConnected(playerID, false); err != nil {
		return
	}
	g.detachPlayer(playerID)
	s.persist("player disconnected", func(ctx context.Context) error {
		return s.store.SetPlayerConnected(ctx, playerID, false)
	})
	g.SendHost(domain.NewEvent(domain.EventPlayerLeft, g.ID(), g.lobbyState()))
	s.maybeCloseEarly(g)
}

// ReconnectPlayer re-attaches a returning player: connectivity flips back on
// in live and durable state, the connection joins the group and private
// channels, the exact current phase's state is replayed to it, and the host
// is notified.
func (s *GameService) ReconnectPlayer(ctx context.Context, sessionID, playerID string, conn ClientConn) (*GameSession, error) {
	g, err := s.liveSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, ok := g.player(playerID); !ok {
		return nil, domain.ErrNotSessionPlayer
	}

	_ = g.setConnected(playerID, true)
	g.attachPlayer(playerID, conn)
	s.persist("player reconnected", func(ctx context.Context) error {
		return s.store.SetPlayerConnected(ctx, playerID, true)
	})

	g.SendPlayer(playerID, domain.NewEvent(domain.EventFullState, g.ID(), g.playerState()))
	g.SendHost(domain.NewEvent(domain.EventPlayerReconnected, g.ID(), g.lobbyState()))
	return g, nil
}

// ReconnectHost re-attaches the session's host and replays the full state.
func (s *GameService) ReconnectHost(ctx context.Context, sessionID, hostID string, conn ClientConn) (*GameSession, error) {
	g, err := s.liveSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if g.HostID() != hostID {
		return nil, domain.ErrNotHost
	}
	g.attachHost(conn)
	g.SendHost(domain.NewEvent(domain.EventFullState, g.ID(), g.hostState()))
	return g, nil
}

// Evict drops a session's live state and closes its connections. The durable
// record is untouched.
func (s *GameService) Evict(sessionID string) {
	g, ok := s.games.Get(sessionID)
	if !ok {
		return
	}
	g.stopCountdown()
	g.closeConns()
	s.games.Remove(sessionID)
	s.logger.Info("session evicted", "session", sessionID)
}

// ForceFinish transitions an abandoned session to finished in durable storage
// and evicts it. Used by the reaper.
func (s *GameService) ForceFinish(ctx context.Context, sessionID string) {
	if g, ok := s.games.Get(sessionID); ok && !g.Phase().Terminal() {
		s.finish(g)
		return
	}
	if err := s.store.FinishSession(ctx, sessionID, time.Now()); err != nil {
		s.logger.Warn("force finish failed", "session", sessionID, "error", err)
	}
	s.Evict(sessionID)
}

// liveSession finds a session's live state, lazily rebuilding it from durable
// storage for a still-open session. Finished-and-evicted or never-persisted
// sessions yield an explicit expired/not-found error. Rebuilds are collapsed
// per session id so concurrent reconnects share one GameSession.
func (s *GameService) liveSession(ctx context.Context, sessionID string) (*GameSession, error) {
	if g, ok := s.games.Get(sessionID); ok {
		return g, nil
	}

	v, err, _ := s.rebuilds.Do(sessionID, func() (interface{}, error) {
		return s.rebuildSession(ctx, sessionID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*GameSession), nil
}

func (s *GameService) rebuildSession(ctx context.Context, sessionID string) (*GameSession, error) {
	// A concurrent caller may have finished the rebuild while this one was
	// queued behind it.
	if g, ok := s.games.Get(sessionID); ok {
		return g, nil
	}

	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Phase.Terminal() {
		return nil, domain.ErrSessionExpired
	}

	quiz, err := s.quizzes.GetQuiz(ctx, sess.QuizID)
	if err != nil {
		return nil, domain.ErrSessionExpired
	}

	g := NewGameSession(sess, quiz, s.rules)
	players, err := s.store.ListPlayers(ctx, sessionID)
	if err != nil {
		return nil, domain.ErrSessionExpired
	}
	for _, p := range players {
		g.restorePlayer(p)
	}
	if err := s.games.Add(g); err != nil {
		return nil, err
	}
	s.logger.Info("session state rebuilt", "session", sessionID, "players", len(players))
	return g, nil
}

func (s *GameService) hostSession(sessionID, hostID string) (*GameSession, error) {
	g, ok := s.games.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if g.HostID() != hostID {
		return nil, domain.ErrNotHost
	}
	return g, nil
}

// persistPhase flushes the session record after a phase transition.
func (s *GameService) persistPhase(g *GameSession) {
	snapshot := g.Snapshot()
	s.persist("update phase", func(ctx context.Context) error {
		return s.store.UpdateSessionPhase(ctx, snapshot)
	})
}

// persist dispatches a durable write without gating gameplay. Failures are
// logged; the in-memory state stays authoritative.
func (s *GameService) persist(op string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.logger.Warn("durable write failed", "op", op, "error", err)
		}
	}()
}
