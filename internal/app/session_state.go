package app

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"trivia-live/internal/domain"
)

// noMoreQuestions is the sentinel index returned by advanceToQuestion once the
// quiz is exhausted.
const noMoreQuestions = -1

// GameSession is the authoritative in-memory state of one live session. All
// reads and mutations go through its methods; a reader never observes a
// half-applied mutation. Broadcast connections live beside the state but are
// guarded separately so sends never contend with mutations.
type GameSession struct {
	mu    sync.RWMutex
	sess  domain.Session
	quiz  domain.Quiz
	rules domain.ScoringRules
	now   func() time.Time

	players map[string]*domain.Player
	// answers holds the current question's recorded answers by player id.
	// Cleared when the next question begins.
	answers map[string]*domain.RecordedAnswer
	// pending buffers recorded answers until the phase boundary flush.
	pending         []domain.RecordedAnswer
	questionStarted time.Time

	countdownDone chan struct{}

	clientsMu   sync.RWMutex
	hostConn    ClientConn
	playerConns map[string]ClientConn
}

// NewGameSession initializes live state for a session in the lobby phase with
// its quiz content loaded.
func NewGameSession(sess domain.Session, quiz domain.Quiz, rules domain.ScoringRules) *GameSession {
	return NewGameSessionWithClock(sess, quiz, rules, time.Now)
}

// NewGameSessionWithClock allows deterministic timestamps in tests.
func NewGameSessionWithClock(sess domain.Session, quiz domain.Quiz, rules domain.ScoringRules, now func() time.Time) *GameSession {
	if sess.Phase == "" {
		sess.Phase = domain.PhaseLobby
		sess.QuestionIndex = noMoreQuestions
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now()
	}
	return &GameSession{
		sess:        sess,
		quiz:        quiz,
		rules:       rules,
		now:         now,
		players:     make(map[string]*domain.Player),
		answers:     make(map[string]*domain.RecordedAnswer),
		playerConns: make(map[string]ClientConn),
	}
}

// ID returns the session id.
func (g *GameSession) ID() string {
	return g.sess.ID
}

// PIN returns the session join code.
func (g *GameSession) PIN() string {
	return g.sess.PIN
}

// HostID returns the owning host identity.
func (g *GameSession) HostID() string {
	return g.sess.HostID
}

// Phase returns the current phase.
func (g *GameSession) Phase() domain.Phase {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.sess.Phase
}

// CreatedAt returns the session creation time.
func (g *GameSession) CreatedAt() time.Time {
	return g.sess.CreatedAt
}

// Snapshot returns a copy of the session record.
func (g *GameSession) Snapshot() domain.Session {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.sess
}

// setPhase transitions to target if the state machine allows it.
func (g *GameSession) setPhase(target domain.Phase) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.setPhaseLocked(target)
}

func (g *GameSession) setPhaseLocked(target domain.Phase) error {
	if !g.sess.Phase.CanTransitionTo(target) {
		return domain.ErrInvalidPhase
	}
	g.sess.Phase = target
	now := g.now()
	switch target {
	case domain.PhaseStarting:
		g.sess.StartedAt = &now
	case domain.PhaseFinished:
		g.sess.FinishedAt = &now
	}
	return nil
}

// QuestionCount returns the number of questions in the loaded quiz.
func (g *GameSession) QuestionCount() int {
	return len(g.quiz.Questions)
}

// CurrentQuestion returns the active question, if any.
func (g *GameSession) CurrentQuestion() (domain.Question, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.currentQuestionLocked()
}

func (g *GameSession) currentQuestionLocked() (domain.Question, bool) {
	idx := g.sess.QuestionIndex
	if idx < 0 || idx >= len(g.quiz.Questions) {
		return domain.Question{}, false
	}
	return g.quiz.Questions[idx], true
}

// OnLastQuestion reports whether the current question is the quiz's last.
func (g *GameSession) OnLastQuestion() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.sess.QuestionIndex >= len(g.quiz.Questions)-1
}

// addPlayer registers a new participant. Only valid in the lobby; nicknames
// are unique per session, case-insensitively.
func (g *GameSession) addPlayer(nickname string) (domain.Player, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return domain.Player{}, domain.ErrEmptyNickname
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.sess.Phase != domain.PhaseLobby {
		return domain.Player{}, domain.ErrInvalidPhase
	}
	for _, p := range g.players {
		if strings.EqualFold(p.Nickname, nickname) {
			return domain.Player{}, domain.ErrNicknameTaken
		}
	}

	player := &domain.Player{
		ID:        uuid.NewString(),
		SessionID: g.sess.ID,
		Nickname:  nickname,
		Connected: true,
		JoinedAt:  g.now(),
	}
	g.players[player.ID] = player
	return *player, nil
}

// restorePlayer re-seeds a player when live state is rebuilt from durable
// storage.
func (g *GameSession) restorePlayer(p domain.Player) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cp := p
	g.players[p.ID] = &cp
}

// removePlayer deletes a participant outright (host kick).
func (g *GameSession) removePlayer(playerID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.players[playerID]; !ok {
		return domain.ErrPlayerNotFound
	}
	delete(g.players, playerID)
	delete(g.answers, playerID)
	return nil
}

// setConnected flips a player's connectivity flag.
func (g *GameSession) setConnected(playerID string, connected bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.players[playerID]
	if !ok {
		return domain.ErrPlayerNotFound
	}
	p.Connected = connected
	return nil
}

// player returns a copy of one player's record.
func (g *GameSession) player(playerID string) (domain.Player, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.players[playerID]
	if !ok {
		return domain.Player{}, false
	}
	return *p, true
}

// playerCount returns the number of joined players.
func (g *GameSession) playerCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.players)
}

// playerInfos returns redacted player views sorted by join time.
func (g *GameSession) playerInfos() []domain.PlayerInfo {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.playerInfosLocked()
}

func (g *GameSession) playerInfosLocked() []domain.PlayerInfo {
	ordered := g.playersByJoinLocked()
	infos := make([]domain.PlayerInfo, 0, len(ordered))
	for _, p := range ordered {
		infos = append(infos, p.Info())
	}
	return infos
}

func (g *GameSession) playersByJoinLocked() []*domain.Player {
	ordered := make([]*domain.Player, 0, len(g.players))
	for _, p := range g.players {
		ordered = append(ordered, p)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].JoinedAt.Before(ordered[j].JoinedAt)
	})
	return ordered
}

// advanceToQuestion moves the session into the question phase on the next
// question index: 0 when coming out of the lobby or starting screen, current+1
// afterwards. It records the phase-start timestamp and clears the previous
// question's answers. Returns (noMoreQuestions, false) once the quiz is
// exhausted, leaving the phase untouched.
func (g *GameSession) advanceToQuestion() (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	next := g.sess.QuestionIndex + 1
	if next >= len(g.quiz.Questions) {
		return noMoreQuestions, false
	}
	if err := g.setPhaseLocked(domain.PhaseQuestion); err != nil {
		return noMoreQuestions, false
	}

	g.sess.QuestionIndex = next
	g.questionStarted = g.now()
	g.answers = make(map[string]*domain.RecordedAnswer)
	return next, true
}

// recordAnswer validates, evaluates and scores one submission. At most one
// recorded answer exists per (player, question); duplicates are rejected
// without touching score or streak.
func (g *GameSession) recordAnswer(playerID string, sub domain.Submission) (domain.ScoreBreakdown, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.sess.Phase != domain.PhaseQuestion {
		return domain.ScoreBreakdown{}, domain.ErrInvalidPhase
	}
	q, ok := g.currentQuestionLocked()
	if !ok {
		return domain.ScoreBreakdown{}, domain.ErrQuestionNotFound
	}
	player, ok := g.players[playerID]
	if !ok {
		return domain.ScoreBreakdown{}, domain.ErrPlayerNotFound
	}
	if _, dup := g.answers[playerID]; dup {
		return domain.ScoreBreakdown{}, domain.ErrAlreadyAnswered
	}

	now := g.now()
	elapsed := now.Sub(g.questionStarted)

	ev, err := domain.Evaluate(q, sub)
	if err != nil {
		return domain.ScoreBreakdown{}, err
	}
	breakdown := domain.Score(q, ev.Ratio, elapsed, player.Streak, g.rules)

	player.Score += breakdown.Total
	player.Streak = breakdown.Streak

	answer := &domain.RecordedAnswer{
		PlayerID:      playerID,
		QuestionID:    q.ID,
		QuestionIndex: g.sess.QuestionIndex,
		Submission:    sub,
		Elapsed:       elapsed,
		Breakdown:     breakdown,
		SubmittedAt:   now,
	}
	g.answers[playerID] = answer
	g.pending = append(g.pending, *answer)
	return breakdown, nil
}

// answerCount returns how many players answered the current question.
func (g *GameSession) answerCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.answers)
}

// recordedAnswer returns a player's answer to the current question, if any.
func (g *GameSession) recordedAnswer(playerID string) (domain.RecordedAnswer, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	a, ok := g.answers[playerID]
	if !ok {
		return domain.RecordedAnswer{}, false
	}
	return *a, true
}

// allConnectedAnswered reports whether every connected player has a recorded
// answer for the current question. False when nobody is connected, so an
// empty room still waits out the timer.
func (g *GameSession) allConnectedAnswered() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	connected := 0
	for id, p := range g.players {
		if !p.Connected {
			continue
		}
		connected++
		if _, ok := g.answers[id]; !ok {
			return false
		}
	}
	return connected > 0
}

// resetStreaksForUnanswered zeroes the streak of every connected player who
// did not answer the just-closed question.
func (g *GameSession) resetStreaksForUnanswered() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, p := range g.players {
		if !p.Connected {
			continue
		}
		if _, ok := g.answers[id]; !ok {
			p.Streak = 0
		}
	}
}

// drainPending returns the buffered answers and current player scores for the
// phase-boundary flush, clearing the buffer.
func (g *GameSession) drainPending() ([]domain.RecordedAnswer, []domain.PlayerScore) {
	g.mu.Lock()
	defer g.mu.Unlock()

	answers := g.pending
	g.pending = nil

	scores := make([]domain.PlayerScore, 0, len(g.players))
	for _, p := range g.players {
		scores = append(scores, domain.PlayerScore{ID: p.ID, Score: p.Score, Streak: p.Streak})
	}
	return answers, scores
}

// computeLeaderboard projects the ranked scoreboard from current state:
// score descending, ties broken by earlier join, dense ranks from 1.
func (g *GameSession) computeLeaderboard() []domain.LeaderboardEntry {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.computeLeaderboardLocked()
}

func (g *GameSession) computeLeaderboardLocked() []domain.LeaderboardEntry {
	ordered := g.playersByJoinLocked()
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Score > ordered[j].Score
	})

	entries := make([]domain.LeaderboardEntry, 0, len(ordered))
	for i, p := range ordered {
		entries = append(entries, domain.LeaderboardEntry{
			Rank:     i + 1,
			PlayerID: p.ID,
			Nickname: p.Nickname,
			Score:    p.Score,
			Streak:   p.Streak,
		})
	}
	return entries
}

// playerRank returns a player's current leaderboard rank, or 0 if absent.
func (g *GameSession) playerRank(playerID string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, entry := range g.computeLeaderboardLocked() {
		if entry.PlayerID == playerID {
			return entry.Rank
		}
	}
	return 0
}

// computeDistribution counts, per answer option of the current question, how
// many recorded answers reference it. List submissions (multi-select,
// ordering) contribute to every option they mention.
func (g *GameSession) computeDistribution() []domain.DistributionEntry {
	g.mu.RLock()
	defer g.mu.RUnlock()

	q, ok := g.currentQuestionLocked()
	if !ok {
		return nil
	}

	counts := make(map[string]int, len(q.Options))
	for _, a := range g.answers {
		sub := a.Submission
		if sub.OptionID != "" {
			counts[sub.OptionID]++
		}
		for _, id := range sub.OptionIDs {
			counts[id]++
		}
		for _, id := range sub.Ordering {
			counts[id]++
		}
	}

	entries := make([]domain.DistributionEntry, 0, len(q.Options))
	for _, opt := range q.Options {
		entries = append(entries, domain.DistributionEntry{
			OptionID: opt.ID,
			Text:     opt.Text,
			Correct:  opt.Correct,
			Count:    counts[opt.ID],
		})
	}
	return entries
}

// hostState builds the full state payload for the host channel, including
// correct-answer metadata.
func (g *GameSession) hostState() *domain.HostStatePayload {
	g.mu.RLock()
	defer g.mu.RUnlock()

	payload := &domain.HostStatePayload{
		Session:       g.sess,
		Players:       g.playerInfosLocked(),
		QuestionIndex: g.sess.QuestionIndex,
		QuestionCount: len(g.quiz.Questions),
		AnswerCount:   len(g.answers),
	}
	if q, ok := g.currentQuestionLocked(); ok {
		payload.Question = &q
	}
	return payload
}

// playerState builds the redacted state payload for the player group.
func (g *GameSession) playerState() *domain.PlayerStatePayload {
	g.mu.RLock()
	defer g.mu.RUnlock()

	payload := &domain.PlayerStatePayload{
		Phase:         g.sess.Phase,
		Players:       g.playerInfosLocked(),
		QuestionIndex: g.sess.QuestionIndex,
		QuestionCount: len(g.quiz.Questions),
	}
	if q, ok := g.currentQuestionLocked(); ok && g.sess.Phase == domain.PhaseQuestion {
		redacted := q.Redact()
		payload.Question = &redacted
	}
	return payload
}

// lobbyState builds the join/leave payload.
func (g *GameSession) lobbyState() *domain.LobbyPayload {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return &domain.LobbyPayload{PIN: g.sess.PIN, Players: g.playerInfosLocked()}
}

// setShareToken stamps the post-game share token on the record.
func (g *GameSession) setShareToken(token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sess.ShareToken = token
}

// startCountdown installs a fresh cancel channel for the question countdown,
// stopping any previous one first.
func (g *GameSession) startCountdown() chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.countdownDone != nil {
		close(g.countdownDone)
	}
	g.countdownDone = make(chan struct{})
	return g.countdownDone
}

// stopCountdown cancels the running countdown, if any.
func (g *GameSession) stopCountdown() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.countdownDone != nil {
		close(g.countdownDone)
		g.countdownDone = nil
	}
}
