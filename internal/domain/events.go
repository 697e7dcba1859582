package domain

import "time"

// EventType represents the type of an outbound session event.
type EventType string

const (
	EventSessionCreated     EventType = "SESSION_CREATED"
	EventFullState          EventType = "FULL_STATE"
	EventPlayerJoined       EventType = "PLAYER_JOINED"
	EventPlayerLeft         EventType = "PLAYER_LEFT"
	EventPlayerReconnected  EventType = "PLAYER_RECONNECTED"
	EventGetReady           EventType = "GET_READY"
	EventQuestion           EventType = "QUESTION"
	EventCountdownTick      EventType = "COUNTDOWN_TICK"
	EventTimeUp             EventType = "TIME_UP"
	EventAnswerProgress     EventType = "ANSWER_PROGRESS"
	EventAnswerAccepted     EventType = "ANSWER_ACCEPTED"
	EventAnswerDistribution EventType = "ANSWER_DISTRIBUTION"
	EventLeaderboard        EventType = "LEADERBOARD"
	EventPersonalResult     EventType = "PERSONAL_RESULT"
	EventFinalRank          EventType = "FINAL_RANK"
	EventSessionFinished    EventType = "SESSION_FINISHED"
	EventKicked             EventType = "KICKED"
	EventError              EventType = "ERROR"
)

// Event is one outbound message for a channel group.
type Event struct {
	Type      EventType   `json:"type"`
	SessionID string      `json:"sessionId"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent creates an event stamped with the current time.
func NewEvent(eventType EventType, sessionID string, payload interface{}) *Event {
	return &Event{
		Type:      eventType,
		SessionID: sessionID,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// Payload types for outbound events.

// HostStatePayload is the full state pushed to the host channel. It carries
// the unredacted question, including correct-answer metadata.
type HostStatePayload struct {
	Session       Session      `json:"session"`
	Players       []PlayerInfo `json:"players"`
	Question      *Question    `json:"question,omitempty"`
	QuestionIndex int          `json:"questionIndex"`
	QuestionCount int          `json:"questionCount"`
	AnswerCount   int          `json:"answerCount"`
}

// PlayerStatePayload is the redacted state pushed to the player group.
type PlayerStatePayload struct {
	Phase         Phase             `json:"phase"`
	Players       []PlayerInfo      `json:"players"`
	Question      *RedactedQuestion `json:"question,omitempty"`
	QuestionIndex int               `json:"questionIndex"`
	QuestionCount int               `json:"questionCount"`
}

// LobbyPayload is sent on join/leave while the session is in the lobby.
type LobbyPayload struct {
	PIN     string       `json:"pin"`
	Players []PlayerInfo `json:"players"`
}

// CountdownPayload is sent once per second while a question is open.
type CountdownPayload struct {
	RemainingSeconds int `json:"remainingSeconds"`
}

// AnswerProgressPayload tells the host how many players have answered.
type AnswerProgressPayload struct {
	Answered int `json:"answered"`
	Total    int `json:"total"`
}

// DistributionPayload carries the per-option answer counts for the host.
type DistributionPayload struct {
	QuestionID string              `json:"questionId"`
	Entries    []DistributionEntry `json:"entries"`
}

// LeaderboardPayload is the ranked scoreboard for host and player group.
type LeaderboardPayload struct {
	Entries []LeaderboardEntry `json:"entries"`
	Final   bool               `json:"final"`
}

// PersonalResultPayload is pushed to one player's private channel.
type PersonalResultPayload struct {
	QuestionID string         `json:"questionId"`
	Breakdown  ScoreBreakdown `json:"breakdown"`
	Score      int            `json:"score"`
	Rank       int            `json:"rank"`
}

// FinalRankPayload is the personalized end-of-game summary.
type FinalRankPayload struct {
	Rank    int `json:"rank"`
	Score   int `json:"score"`
	Players int `json:"players"`
}

// KickedPayload notifies a removed player.
type KickedPayload struct {
	Reason string `json:"reason"`
}

// ErrorPayload reports a recoverable command failure to its originator.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
