package app

import (
	"context"
	"time"

	"trivia-live/internal/domain"
)

// DurableStore is the write-side contract to persistent storage. Gameplay
// correctness lives in the in-memory state; these writes are eventually
// consistent with it and never gate a phase transition.
type DurableStore interface {
	CreateSession(ctx context.Context, sess domain.Session) error
	UpdateSessionPhase(ctx context.Context, sess domain.Session) error
	SetShareToken(ctx context.Context, sessionID, token string) error
	CreatePlayer(ctx context.Context, player domain.Player) error
	SetPlayerConnected(ctx context.Context, playerID string, connected bool) error
	UpdatePlayerScores(ctx context.Context, scores []domain.PlayerScore) error
	InsertAnswerRecords(ctx context.Context, sessionID string, answers []domain.RecordedAnswer) error

	GetSession(ctx context.Context, sessionID string) (domain.Session, error)
	ListPlayers(ctx context.Context, sessionID string) ([]domain.Player, error)
	ListStaleSessions(ctx context.Context, olderThan time.Time) ([]string, error)
	FinishSession(ctx context.Context, sessionID string, finishedAt time.Time) error
}

// NoopStore satisfies DurableStore without persisting anything. Used when no
// database is configured (demo mode) and in unit tests.
type NoopStore struct{}

func (NoopStore) CreateSession(context.Context, domain.Session) error            { return nil }
func (NoopStore) UpdateSessionPhase(context.Context, domain.Session) error       { return nil }
func (NoopStore) SetShareToken(context.Context, string, string) error            { return nil }
func (NoopStore) CreatePlayer(context.Context, domain.Player) error              { return nil }
func (NoopStore) SetPlayerConnected(context.Context, string, bool) error         { return nil }
func (NoopStore) UpdatePlayerScores(context.Context, []domain.PlayerScore) error { return nil }
func (NoopStore) InsertAnswerRecords(context.Context, string, []domain.RecordedAnswer) error {
	return nil
}

func (NoopStore) GetSession(context.Context, string) (domain.Session, error) {
	return domain.Session{}, domain.ErrSessionNotFound
}

func (NoopStore) ListPlayers(context.Context, string) ([]domain.Player, error) {
	return nil, nil
}

func (NoopStore) ListStaleSessions(context.Context, time.Time) ([]string, error) {
	return nil, nil
}

func (NoopStore) FinishSession(context.Context, string, time.Time) error { return nil }
