package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"trivia-live/internal/domain"
)

// GameStore is the pgxpool-backed durable store for sessions, players and
// answer records. All writes are idempotent enough to tolerate a retry; the
// engine treats them as eventually consistent with its in-memory state.
type GameStore struct {
	pool *pgxpool.Pool
}

func NewGameStore(pool *pgxpool.Pool) *GameStore {
	return &GameStore{pool: pool}
}

func (s *GameStore) CreateSession(ctx context.Context, sess domain.Session) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (id, quiz_id, host_id, pin, phase, question_index, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		sess.ID, sess.QuizID, sess.HostID, sess.PIN, string(sess.Phase), sess.QuestionIndex, sess.CreatedAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *GameStore) UpdateSessionPhase(ctx context.Context, sess domain.Session) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE sessions
		SET phase=$2, question_index=$3, started_at=$4, finished_at=$5
		WHERE id=$1`,
		sess.ID, string(sess.Phase), sess.QuestionIndex, sess.StartedAt, sess.FinishedAt)
	if err != nil {
		return fmt.Errorf("update session phase: %w", err)
	}
	return nil
}

func (s *GameStore) SetShareToken(ctx context.Context, sessionID, token string) error {
	_, err := s.pool.Exec(ctx, `UPDATE sessions SET share_token=$2 WHERE id=$1`, sessionID, token)
	if err != nil {
		return fmt.Errorf("set share token: %w", err)
	}
	return nil
}

func (s *GameStore) CreatePlayer(ctx context.Context, player domain.Player) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO players (id, session_id, nickname, score, streak, connected, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		player.ID, player.SessionID, player.Nickname, player.Score, player.Streak, player.Connected, player.JoinedAt)
	if err != nil {
		return fmt.Errorf("create player: %w", err)
	}
	return nil
}

func (s *GameStore) SetPlayerConnected(ctx context.Context, playerID string, connected bool) error {
	_, err := s.pool.Exec(ctx, `UPDATE players SET connected=$2 WHERE id=$1`, playerID, connected)
	if err != nil {
		return fmt.Errorf("set player connected: %w", err)
	}
	return nil
}

// UpdatePlayerScores flushes a score batch in a single round trip.
func (s *GameStore) UpdatePlayerScores(ctx context.Context, scores []domain.PlayerScore) error {
	if len(scores) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, sc := range scores {
		batch.Queue(`UPDATE players SET score=$2, streak=$3 WHERE id=$1`, sc.ID, sc.Score, sc.Streak)
	}
	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range scores {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("update player scores: %w", err)
		}
	}
	return nil
}

// InsertAnswerRecords flushes one question's recorded answers as a batch.
// The (player, question) pair is unique; replays are ignored.
func (s *GameStore) InsertAnswerRecords(ctx context.Context, sessionID string, answers []domain.RecordedAnswer) error {
	if len(answers) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, a := range answers {
		submission, err := json.Marshal(a.Submission)
		if err != nil {
			return fmt.Errorf("marshal submission: %w", err)
		}
		batch.Queue(`
			INSERT INTO answers (session_id, player_id, question_id, question_index, submission,
				elapsed_ms, ratio, correct, points, submitted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (player_id, question_id) DO NOTHING`,
			sessionID, a.PlayerID, a.QuestionID, a.QuestionIndex, submission,
			a.Elapsed.Milliseconds(), a.Breakdown.Ratio, a.Breakdown.Correct, a.Breakdown.Total, a.SubmittedAt)
	}
	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range answers {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert answer records: %w", err)
		}
	}
	return nil
}

func (s *GameStore) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	var (
		sess  domain.Session
		phase string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, quiz_id, host_id, pin, phase, question_index, created_at, started_at, finished_at, COALESCE(share_token, '')
		FROM sessions WHERE id=$1`, sessionID).
		Scan(&sess.ID, &sess.QuizID, &sess.HostID, &sess.PIN, &phase, &sess.QuestionIndex,
			&sess.CreatedAt, &sess.StartedAt, &sess.FinishedAt, &sess.ShareToken)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	sess.Phase = domain.Phase(phase)
	return sess, nil
}

func (s *GameStore) ListPlayers(ctx context.Context, sessionID string) ([]domain.Player, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, nickname, score, streak, connected, joined_at
		FROM players WHERE session_id=$1 ORDER BY joined_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	var players []domain.Player
	for rows.Next() {
		var p domain.Player
		if err := rows.Scan(&p.ID, &p.SessionID, &p.Nickname, &p.Score, &p.Streak, &p.Connected, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

func (s *GameStore) ListStaleSessions(ctx context.Context, olderThan time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id FROM sessions WHERE phase <> $1 AND created_at < $2`,
		string(domain.PhaseFinished), olderThan)
	if err != nil {
		return nil, fmt.Errorf("list stale sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *GameStore) FinishSession(ctx context.Context, sessionID string, finishedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE sessions SET phase=$2, finished_at=$3 WHERE id=$1 AND phase <> $2`,
		sessionID, string(domain.PhaseFinished), finishedAt)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	return nil
}
