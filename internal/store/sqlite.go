package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/praxislabs/readiness/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	sessionMu sync.Mutex // Mutex for session upserts to prevent SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		entitled INTEGER NOT NULL DEFAULT 0,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS assessment_sessions (
		user_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		remote_session_id TEXT,
		current_index INTEGER NOT NULL DEFAULT 0,
		total_sections INTEGER NOT NULL DEFAULT 0,
		responses_json TEXT NOT NULL,
		history_json TEXT,
		current_question_json TEXT,
		results_json TEXT,
		plan_json TEXT,
		overall_score REAL,
		is_complete INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, kind)
	);
	CREATE INDEX IF NOT EXISTS idx_assessment_sessions_updated ON assessment_sessions(updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetUser retrieves a user by their user ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT user_id, username, entitled, last_seen_at, created_at, updated_at
		FROM users WHERE user_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID)

	var user domain.User
	var entitled int
	var lastSeen, createdAt, updatedAt int64

	err := row.Scan(&user.UserID, &user.Username, &entitled, &lastSeen, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.Entitled = entitled != 0
	user.LastSeenAt = time.Unix(lastSeen, 0)
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)

	return &user, nil
}

// UpsertUser creates or updates a user record. The entitled column is
// written by the billing system; on conflict it is left alone.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (user_id, username, entitled, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		username = excluded.username,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	entitled := 0
	if user.Entitled {
		entitled = 1
	}

	_, err := s.db.ExecContext(ctx, query,
		user.UserID, user.Username, entitled,
		user.LastSeenAt.Unix(), user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a user.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	query := `UPDATE users SET last_seen_at = ?, updated_at = ? WHERE user_id = ?`
	result, err := s.db.ExecContext(ctx, query, lastSeen.Unix(), time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "user_id", userID)
	}

	return nil
}

// GetSession retrieves the persisted assessment session for a user and kind.
func (s *SQLiteStore) GetSession(ctx context.Context, userID, kind string) (*domain.AssessmentSession, error) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	query := `
		SELECT user_id, kind, status, remote_session_id, current_index, total_sections,
		       responses_json, history_json, current_question_json, results_json, plan_json,
		       created_at, updated_at
		FROM assessment_sessions WHERE user_id = ? AND kind = ?`

	row := s.db.QueryRowContext(ctx, query, userID, kind)

	var sess domain.AssessmentSession
	var status string
	var remoteID, historyJSON, questionJSON, resultsJSON, planJSON sql.NullString
	var responsesJSON string
	var createdAt, updatedAt int64

	err := row.Scan(
		&sess.UserID, &sess.Kind, &status, &remoteID,
		&sess.CurrentQuestionIndex, &sess.TotalSections,
		&responsesJSON, &historyJSON, &questionJSON, &resultsJSON, &planJSON,
		&createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	sess.Status = domain.SessionStatus(status)
	sess.RemoteSessionID = remoteID.String
	sess.CreatedAt = time.Unix(createdAt, 0)
	sess.UpdatedAt = time.Unix(updatedAt, 0)

	if err := json.Unmarshal([]byte(responsesJSON), &sess.Responses); err != nil {
		return nil, fmt.Errorf("decode responses: %w", err)
	}
	if historyJSON.Valid && historyJSON.String != "" {
		if err := json.Unmarshal([]byte(historyJSON.String), &sess.InteractionHistory); err != nil {
			return nil, fmt.Errorf("decode interaction history: %w", err)
		}
	}
	if questionJSON.Valid && questionJSON.String != "" {
		if err := json.Unmarshal([]byte(questionJSON.String), &sess.CurrentQuestion); err != nil {
			return nil, fmt.Errorf("decode current question: %w", err)
		}
	}
	if resultsJSON.Valid && resultsJSON.String != "" {
		if err := json.Unmarshal([]byte(resultsJSON.String), &sess.Results); err != nil {
			return nil, fmt.Errorf("decode results: %w", err)
		}
	}
	if planJSON.Valid && planJSON.String != "" {
		if err := json.Unmarshal([]byte(planJSON.String), &sess.LearningPlan); err != nil {
			return nil, fmt.Errorf("decode learning plan: %w", err)
		}
	}

	return &sess, nil
}

// SaveSession creates or replaces the persisted assessment session.
func (s *SQLiteStore) SaveSession(ctx context.Context, session *domain.AssessmentSession) error {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	responsesJSON, err := json.Marshal(session.Responses)
	if err != nil {
		return fmt.Errorf("encode responses: %w", err)
	}

	historyJSON, err := marshalNullable(session.InteractionHistory)
	if err != nil {
		return fmt.Errorf("encode interaction history: %w", err)
	}
	questionJSON, err := marshalNullable(session.CurrentQuestion)
	if err != nil {
		return fmt.Errorf("encode current question: %w", err)
	}
	resultsJSON, err := marshalNullable(session.Results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	planJSON, err := marshalNullable(session.LearningPlan)
	if err != nil {
		return fmt.Errorf("encode learning plan: %w", err)
	}

	var overallScore interface{}
	isComplete := 0
	if session.Results != nil {
		overallScore = session.Results.OverallScore
	}
	if session.Status == domain.StatusCompleted {
		isComplete = 1
	}

	var remoteID interface{}
	if session.RemoteSessionID != "" {
		remoteID = session.RemoteSessionID
	}

	query := `
		INSERT INTO assessment_sessions (
			user_id, kind, status, remote_session_id, current_index, total_sections,
			responses_json, history_json, current_question_json, results_json, plan_json,
			overall_score, is_complete, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, kind) DO UPDATE SET
			status = excluded.status,
			remote_session_id = excluded.remote_session_id,
			current_index = excluded.current_index,
			total_sections = excluded.total_sections,
			responses_json = excluded.responses_json,
			history_json = excluded.history_json,
			current_question_json = excluded.current_question_json,
			results_json = excluded.results_json,
			plan_json = excluded.plan_json,
			overall_score = excluded.overall_score,
			is_complete = excluded.is_complete,
			updated_at = excluded.updated_at`

	_, err = s.db.ExecContext(ctx, query,
		session.UserID, session.Kind, string(session.Status), remoteID,
		session.CurrentQuestionIndex, session.TotalSections,
		string(responsesJSON), historyJSON, questionJSON, resultsJSON, planJSON,
		overallScore, isComplete,
		session.CreatedAt.Unix(), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// CleanupStaleSessions removes abandoned in-progress sessions.
func (s *SQLiteStore) CleanupStaleSessions(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).Unix()
	query := `DELETE FROM assessment_sessions WHERE is_complete = 0 AND updated_at < ?`

	result, err := s.db.ExecContext(ctx, query, threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup stale sessions: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return deleted, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// marshalNullable encodes v to JSON, mapping nil pointers and empty
// slices to SQL NULL.
func marshalNullable(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return nil, nil
	}
	return string(data), nil
}
