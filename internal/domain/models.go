package domain

import "time"

// QuestionType tags how a question is answered and scored.
type QuestionType string

const (
	TypeSingleChoice QuestionType = "single"
	TypeTrueFalse    QuestionType = "truefalse"
	TypeMultiSelect  QuestionType = "multi"
	TypeOrdering     QuestionType = "ordering"
	TypeNumericGuess QuestionType = "guess"
)

// Option represents a possible answer for a question. Position is only
// meaningful for ordering questions.
type Option struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Correct  bool   `json:"correct"`
	Position int    `json:"position"`
}

// Question models one quiz question. Per-type parameters: RequireAll applies
// to multi-select, Target and Tolerance to numeric-guess.
type Question struct {
	ID         string       `json:"id"`
	Prompt     string       `json:"prompt"`
	MediaURL   string       `json:"mediaUrl,omitempty"`
	Type       QuestionType `json:"type"`
	RequireAll bool         `json:"requireAll,omitempty"`
	Target     float64      `json:"target,omitempty"`
	Tolerance  float64      `json:"tolerance,omitempty"`
	TimeLimit  int          `json:"timeLimit"` // seconds, defaults to 20 if zero
	Points     int          `json:"points"`    // defaults to 100 if zero
	Options    []Option     `json:"options"`
}

// TimeLimitDuration returns the question's time limit as a duration.
func (q Question) TimeLimitDuration() time.Duration {
	limit := q.TimeLimit
	if limit <= 0 {
		limit = 20
	}
	return time.Duration(limit) * time.Second
}

// BasePoints returns the configured point value with its default applied.
func (q Question) BasePoints() int {
	if q.Points <= 0 {
		return 100
	}
	return q.Points
}

// CorrectOptionIDs returns the ids of all options flagged correct.
func (q Question) CorrectOptionIDs() []string {
	ids := make([]string, 0, len(q.Options))
	for _, opt := range q.Options {
		if opt.Correct {
			ids = append(ids, opt.ID)
		}
	}
	return ids
}

// Quiz is an ordered collection of questions, loaded once per session and
// never mutated by the engine.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// Session is one played instance of a quiz.
type Session struct {
	ID            string     `json:"id"`
	QuizID        string     `json:"quizId"`
	HostID        string     `json:"hostId"`
	PIN           string     `json:"pin"`
	Phase         Phase      `json:"phase"`
	QuestionIndex int        `json:"questionIndex"`
	CreatedAt     time.Time  `json:"createdAt"`
	StartedAt     *time.Time `json:"startedAt,omitempty"`
	FinishedAt    *time.Time `json:"finishedAt,omitempty"`
	ShareToken    string     `json:"shareToken,omitempty"`
}

// Player is one joined participant.
type Player struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Nickname  string    `json:"nickname"`
	Score     int       `json:"score"`
	Streak    int       `json:"streak"`
	Connected bool      `json:"connected"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// PlayerScore is the slice of player state flushed to durable storage.
type PlayerScore struct {
	ID     string `json:"id"`
	Score  int    `json:"score"`
	Streak int    `json:"streak"`
}

// Submission is a player's answer value. Exactly one field is set, matching
// the question type: OptionID for single/true-false, OptionIDs for
// multi-select, Ordering for ordering, Value for numeric-guess.
type Submission struct {
	OptionID  string   `json:"optionId,omitempty"`
	OptionIDs []string `json:"optionIds,omitempty"`
	Ordering  []string `json:"ordering,omitempty"`
	Value     *float64 `json:"value,omitempty"`
}

// RecordedAnswer is one player's submission for one question, with the score
// it produced. At most one exists per (player, question).
type RecordedAnswer struct {
	PlayerID      string         `json:"playerId"`
	QuestionID    string         `json:"questionId"`
	QuestionIndex int            `json:"questionIndex"`
	Submission    Submission     `json:"submission"`
	Elapsed       time.Duration  `json:"elapsed"`
	Breakdown     ScoreBreakdown `json:"breakdown"`
	SubmittedAt   time.Time      `json:"submittedAt"`
}

// ScoreBreakdown is the derived result of scoring one submission. Produced
// once per RecordedAnswer and never recomputed.
type ScoreBreakdown struct {
	Base       int           `json:"base"`
	TimeBonus  int           `json:"timeBonus"`
	Multiplier float64       `json:"multiplier"`
	Total      int           `json:"total"`
	Correct    bool          `json:"correct"`
	Ratio      float64       `json:"ratio"`
	Elapsed    time.Duration `json:"elapsed"`
	Streak     int           `json:"streak"`
}

// LeaderboardEntry is one row of the running leaderboard. Ranks are dense,
// starting at 1, ordered by score descending with ties broken by earlier join.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"playerId"`
	Nickname string `json:"nickname"`
	Score    int    `json:"score"`
	Streak   int    `json:"streak"`
}

// DistributionEntry counts how many recorded answers reference one option of
// the current question.
type DistributionEntry struct {
	OptionID string `json:"optionId"`
	Text     string `json:"text"`
	Correct  bool   `json:"correct"`
	Count    int    `json:"count"`
}

// PlayerInfo is a redacted view of a player, safe for the group channel.
type PlayerInfo struct {
	ID        string `json:"id"`
	Nickname  string `json:"nickname"`
	Score     int    `json:"score"`
	Connected bool   `json:"connected"`
}

// Info converts a Player to its redacted view.
func (p Player) Info() PlayerInfo {
	return PlayerInfo{ID: p.ID, Nickname: p.Nickname, Score: p.Score, Connected: p.Connected}
}

// RedactedOption strips correctness and position metadata for the player
// group channel.
type RedactedOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// RedactedQuestion is the question view pushed to players: prompt and options
// without any correctness data.
type RedactedQuestion struct {
	ID        string           `json:"id"`
	Prompt    string           `json:"prompt"`
	MediaURL  string           `json:"mediaUrl,omitempty"`
	Type      QuestionType     `json:"type"`
	TimeLimit int              `json:"timeLimit"`
	Points    int              `json:"points"`
	Options   []RedactedOption `json:"options"`
}

// Redact builds the player-safe view of a question.
func (q Question) Redact() RedactedQuestion {
	opts := make([]RedactedOption, 0, len(q.Options))
	for _, opt := range q.Options {
		opts = append(opts, RedactedOption{ID: opt.ID, Text: opt.Text})
	}
	return RedactedQuestion{
		ID:        q.ID,
		Prompt:    q.Prompt,
		MediaURL:  q.MediaURL,
		Type:      q.Type,
		TimeLimit: int(q.TimeLimitDuration().Seconds()),
		Points:    q.BasePoints(),
		Options:   opts,
	}
}
