package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"github.com/arovi-health/arovi/config"
)

// Store persists users, briefing subscriptions, runs, and briefings in
// Postgres.
type Store struct {
	DB *sql.DB
}

// Run statuses.
const (
	RunStatusQueued    = "queued"
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// New constructs the Store from the configured Postgres settings.
func New(ctx context.Context, cfg config.PostgresConfig) (*Store, error) {
	return NewWithDSN(ctx, cfg.DSN())
}

// NewWithDSN constructs the Store using an explicit Postgres DSN.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// User operations
func (s *Store) CreateUser(ctx context.Context, email, hash string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO users (email, password_hash) VALUES ($1,$2)`, email, hash)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (id string, hash string, err error) {
	err = s.DB.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	return
}

// Subscription is a standing request for a daily briefing target.
type Subscription struct {
	ID           string
	UserID       string
	City         string
	State        string
	Country      string
	ScheduleCron string
	CreatedAt    time.Time
}

// Subscription operations
func (s *Store) CreateSubscription(ctx context.Context, userID, city, state, country, cron string) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO subscriptions (user_id, city, state, country, schedule_cron)
VALUES ($1,$2,$3,$4,$5) RETURNING id`, userID, city, state, country, cron).Scan(&id)
	return id, err
}

func (s *Store) GetSubscription(ctx context.Context, id, userID string) (Subscription, error) {
	var sub Subscription
	err := s.DB.QueryRowContext(ctx, `
SELECT id, user_id, city, state, country, schedule_cron, created_at
FROM subscriptions WHERE id=$1 AND user_id=$2`, id, userID).
		Scan(&sub.ID, &sub.UserID, &sub.City, &sub.State, &sub.Country, &sub.ScheduleCron, &sub.CreatedAt)
	return sub, err
}

func (s *Store) ListSubscriptions(ctx context.Context, userID string) ([]Subscription, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, user_id, city, state, country, schedule_cron, created_at
FROM subscriptions WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Subscription
	for rows.Next() {
		var sub Subscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.City, &sub.State, &sub.Country, &sub.ScheduleCron, &sub.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// ListAllSubscriptions returns every subscription, for the scheduler sweep.
func (s *Store) ListAllSubscriptions(ctx context.Context) ([]Subscription, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, user_id, city, state, country, schedule_cron, created_at
FROM subscriptions ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Subscription
	for rows.Next() {
		var sub Subscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.City, &sub.State, &sub.Country, &sub.ScheduleCron, &sub.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *Store) UpdateSubscriptionCron(ctx context.Context, id, userID, cron string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE subscriptions SET schedule_cron=$1 WHERE id=$2 AND user_id=$3`, cron, id, userID)
	return err
}

func (s *Store) DeleteSubscription(ctx context.Context, id, userID string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM subscriptions WHERE id=$1 AND user_id=$2`, id, userID)
	return err
}

// Run records one pipeline execution for a subscription.
type Run struct {
	ID             string
	SubscriptionID string
	Status         string
	Degraded       bool
	Error          sql.NullString
	Metrics        []byte
	StartedAt      time.Time
	FinishedAt     sql.NullTime
}

// Run operations
func (s *Store) CreateRun(ctx context.Context, subscriptionID, status string) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx, `INSERT INTO runs (subscription_id, status) VALUES ($1,$2) RETURNING id`, subscriptionID, status).Scan(&id)
	return id, err
}

func (s *Store) SetRunStatus(ctx context.Context, runID, status string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE runs SET status=$1 WHERE id=$2`, status, runID)
	return err
}

// FinishRun closes a run, recording the degrade flag and metrics summary.
func (s *Store) FinishRun(ctx context.Context, runID, status string, degraded bool, metrics []byte, errMsg *string) error {
	_, err := s.DB.ExecContext(ctx, `
UPDATE runs SET status=$1, degraded=$2, metrics=$3, error=$4, finished_at=NOW() WHERE id=$5`,
		status, degraded, metrics, errMsg, runID)
	return err
}

func (s *Store) GetRun(ctx context.Context, runID string) (Run, error) {
	var r Run
	err := s.DB.QueryRowContext(ctx, `
SELECT id, subscription_id, status, degraded, error, COALESCE(metrics, 'null'), started_at, finished_at
FROM runs WHERE id=$1`, runID).
		Scan(&r.ID, &r.SubscriptionID, &r.Status, &r.Degraded, &r.Error, &r.Metrics, &r.StartedAt, &r.FinishedAt)
	return r, err
}

func (s *Store) ListRuns(ctx context.Context, subscriptionID string) ([]Run, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, subscription_id, status, degraded, error, COALESCE(metrics, 'null'), started_at, finished_at
FROM runs WHERE subscription_id=$1 ORDER BY started_at DESC`, subscriptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.SubscriptionID, &r.Status, &r.Degraded, &r.Error, &r.Metrics, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestRunTime returns when the subscription last ran, for schedule checks.
func (s *Store) LatestRunTime(ctx context.Context, subscriptionID string) (*time.Time, error) {
	var ts sql.NullTime
	err := s.DB.QueryRowContext(ctx, `SELECT MAX(COALESCE(finished_at, started_at)) FROM runs WHERE subscription_id=$1`, subscriptionID).Scan(&ts)
	if err != nil {
		return nil, err
	}
	if !ts.Valid {
		return nil, nil
	}
	return &ts.Time, nil
}

// Briefing is a finished briefing document.
type Briefing struct {
	ID        string
	RunID     string
	Markdown  string
	Summary   []byte
	CreatedAt time.Time
}

// Briefing operations
func (s *Store) InsertBriefing(ctx context.Context, runID, markdown string, summary []byte) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO briefings (run_id, markdown, summary) VALUES ($1,$2,$3) RETURNING id`, runID, markdown, summary).Scan(&id)
	return id, err
}

func (s *Store) GetBriefingByRun(ctx context.Context, runID string) (Briefing, error) {
	var b Briefing
	err := s.DB.QueryRowContext(ctx, `
SELECT id, run_id, markdown, COALESCE(summary, 'null'), created_at
FROM briefings WHERE run_id=$1`, runID).
		Scan(&b.ID, &b.RunID, &b.Markdown, &b.Summary, &b.CreatedAt)
	return b, err
}

// LatestBriefing returns the newest briefing for a subscription.
func (s *Store) LatestBriefing(ctx context.Context, subscriptionID string) (Briefing, error) {
	var b Briefing
	err := s.DB.QueryRowContext(ctx, `
SELECT b.id, b.run_id, b.markdown, COALESCE(b.summary, 'null'), b.created_at
FROM briefings b JOIN runs r ON r.id = b.run_id
WHERE r.subscription_id=$1 ORDER BY b.created_at DESC LIMIT 1`, subscriptionID).
		Scan(&b.ID, &b.RunID, &b.Markdown, &b.Summary, &b.CreatedAt)
	return b, err
}
