package http

import "encoding/json"

// Inbound command types. The set is closed: anything else is rejected with a
// validation error instead of silently falling through.
const (
	cmdCreateSession   = "createSession"
	cmdJoin            = "join"
	cmdStart           = "start"
	cmdAdvance         = "advanceQuestion"
	cmdShowAnswers     = "showAnswers"
	cmdShowResult      = "showResult"
	cmdShowLeaderboard = "showLeaderboard"
	cmdEndSession      = "endSession"
	cmdKickPlayer      = "kickPlayer"
	cmdAnswer          = "answer"
	cmdReconnect       = "reconnect"
)

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type createSessionPayload struct {
	QuizID string `json:"quizId"`
}

type joinPayload struct {
	PIN      string `json:"pin"`
	Nickname string `json:"nickname"`
}

type answerPayload struct {
	OptionID  string   `json:"optionId,omitempty"`
	OptionIDs []string `json:"optionIds,omitempty"`
	Ordering  []string `json:"ordering,omitempty"`
	Value     *float64 `json:"value,omitempty"`
}

type kickPayload struct {
	PlayerID string `json:"playerId"`
}

type reconnectPayload struct {
	SessionID string `json:"sessionId"`
	PlayerID  string `json:"playerId,omitempty"`
}

// Transport-level replies that are not session events.

type sessionCreatedPayload struct {
	SessionID string `json:"sessionId"`
	PIN       string `json:"pin"`
	QuizID    string `json:"quizId"`
}

type joinedPayload struct {
	SessionID string `json:"sessionId"`
	PlayerID  string `json:"playerId"`
	Nickname  string `json:"nickname"`
	Token     string `json:"token"`
}
