package domain

import "errors"

var (
	// ErrSessionNotFound is returned when no live session matches the id or PIN.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired is returned when a session exists durably but its live
	// state is gone and cannot be rebuilt.
	ErrSessionExpired = errors.New("session expired")
	// ErrPlayerNotFound is returned when a player id is unknown to the session.
	ErrPlayerNotFound = errors.New("player not found in session")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates there is no active question to act on.
	ErrQuestionNotFound = errors.New("no active question")

	// ErrInvalidPhase rejects a command that is not valid in the current phase.
	ErrInvalidPhase = errors.New("invalid action for current phase")
	// ErrNoQuestions rejects starting a session whose quiz has no questions.
	ErrNoQuestions = errors.New("quiz has no questions")

	// ErrNicknameTaken rejects a duplicate nickname within one session.
	ErrNicknameTaken = errors.New("nickname already taken")
	// ErrAlreadyAnswered rejects a second submission for the same question.
	ErrAlreadyAnswered = errors.New("already answered this question")

	// ErrNotHost rejects a host-only command from a non-host identity.
	ErrNotHost = errors.New("only the host can perform this action")
	// ErrNotSessionPlayer rejects a player command from an identity that does
	// not belong to the session.
	ErrNotSessionPlayer = errors.New("player does not belong to this session")

	// ErrInvalidSubmission rejects a submission whose shape does not match the
	// question type.
	ErrInvalidSubmission = errors.New("submission does not match question type")
	// ErrEmptyNickname rejects joins without a display name.
	ErrEmptyNickname = errors.New("nickname cannot be empty")
)

// Error codes surfaced to clients over the wire.
const (
	CodeNotFound     = "NOT_FOUND"
	CodeExpired      = "EXPIRED"
	CodeInvalidState = "INVALID_STATE"
	CodeConflict     = "CONFLICT"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeValidation   = "VALIDATION"
	CodeInternal     = "INTERNAL"
)

// ErrorCode maps a domain error to its wire code. Unknown errors map to
// CodeInternal so internal faults never leak details to clients.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrPlayerNotFound),
		errors.Is(err, ErrQuizNotFound),
		errors.Is(err, ErrQuestionNotFound):
		return CodeNotFound
	case errors.Is(err, ErrSessionExpired):
		return CodeExpired
	case errors.Is(err, ErrInvalidPhase), errors.Is(err, ErrNoQuestions):
		return CodeInvalidState
	case errors.Is(err, ErrNicknameTaken), errors.Is(err, ErrAlreadyAnswered):
		return CodeConflict
	case errors.Is(err, ErrNotHost), errors.Is(err, ErrNotSessionPlayer):
		return CodeUnauthorized
	case errors.Is(err, ErrInvalidSubmission), errors.Is(err, ErrEmptyNickname):
		return CodeValidation
	default:
		return CodeInternal
	}
}
