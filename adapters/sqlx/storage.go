package sqlx

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	// database drivers registered for Config-driven construction
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"learnxp/core"
)

// Driver selects the SQL dialect.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
)

// Config holds SQL storage configuration.
type Config struct {
	Driver          Driver        `json:"driver" env:"LEARNXP_SQL_DRIVER"`
	DSN             string        `json:"dsn" env:"LEARNXP_SQL_DSN"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
}

// DefaultConfig returns sensible defaults for the given driver.
func DefaultConfig(driver Driver) Config {
	return Config{
		Driver:          driver,
		DSN:             "",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// Store implements engine.Storage on a SQL database via sqlx.
//
// Schema:
//
//	CREATE TABLE user_game_state (
//	    user_id    VARCHAR(190) PRIMARY KEY,
//	    total_xp   BIGINT NOT NULL,
//	    level      BIGINT NOT NULL,
//	    badges     TEXT   NOT NULL,          -- JSON array of badge ids
//	    version    BIGINT NOT NULL,
//	    updated_at TIMESTAMP NOT NULL
//	);
//
// Save bumps version inside a conditional UPDATE keyed on the version the
// caller read, which gives the optimistic concurrency the engine relies on.
type Store struct {
	db     *sqlx.DB
	driver Driver
}

// New opens a database connection from config.
func New(config Config) (*Store, error) {
	if config.DSN == "" {
		return nil, errors.New("sql storage requires a DSN")
	}
	db, err := sqlx.Connect(string(config.Driver), config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", config.Driver, err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	return &Store{db: db, driver: config.Driver}, nil
}

// NewWithDB wraps an existing sqlx handle (useful for testing).
func NewWithDB(db *sqlx.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver}
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Migrate creates the user_game_state table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS user_game_state (
		user_id    VARCHAR(190) PRIMARY KEY,
		total_xp   BIGINT NOT NULL,
		level      BIGINT NOT NULL,
		badges     TEXT NOT NULL,
		version    BIGINT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to migrate user_game_state: %w", err)
	}
	return nil
}

type row struct {
	UserID    string    `db:"user_id"`
	TotalXP   int64     `db:"total_xp"`
	Level     int64     `db:"level"`
	Badges    string    `db:"badges"`
	Version   int64     `db:"version"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (s *Store) Create(ctx context.Context, user core.UserID) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	q := tx.Rebind(`SELECT EXISTS (SELECT 1 FROM user_game_state WHERE user_id = ?)`)
	if err := tx.GetContext(ctx, &exists, q, string(user)); err != nil {
		return fmt.Errorf("failed to check user existence: %w", err)
	}
	if exists {
		return core.ErrAlreadyExists
	}

	state := core.NewUserGameState(user)
	ins := tx.Rebind(`INSERT INTO user_game_state (user_id, total_xp, level, badges, version, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, ins, string(user), state.TotalXP, state.Level, "[]", 1, state.Updated); err != nil {
		return fmt.Errorf("failed to insert user state: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, user core.UserID) (core.UserGameState, core.Version, error) {
	var r row
	q := s.db.Rebind(`SELECT user_id, total_xp, level, badges, version, updated_at
		FROM user_game_state WHERE user_id = ?`)
	if err := s.db.GetContext(ctx, &r, q, string(user)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.UserGameState{}, 0, core.ErrNotFound
		}
		return core.UserGameState{}, 0, fmt.Errorf("failed to load user state: %w", err)
	}

	var badges []core.Badge
	if err := json.Unmarshal([]byte(r.Badges), &badges); err != nil {
		return core.UserGameState{}, 0, fmt.Errorf("corrupt badge set for %q: %w", user, err)
	}
	state := core.UserGameState{
		UserID:  core.UserID(r.UserID),
		TotalXP: r.TotalXP,
		Level:   r.Level,
		Badges:  make(map[core.Badge]struct{}, len(badges)),
		Updated: r.UpdatedAt,
	}
	for _, b := range badges {
		state.Badges[b] = struct{}{}
	}
	return state, core.Version(r.Version), nil
}

func (s *Store) Save(ctx context.Context, user core.UserID, state core.UserGameState, expected core.Version) error {
	badges, err := json.Marshal(state.BadgeList())
	if err != nil {
		return fmt.Errorf("failed to marshal badges: %w", err)
	}

	q := s.db.Rebind(`UPDATE user_game_state
		SET total_xp = ?, level = ?, badges = ?, version = version + 1, updated_at = ?
		WHERE user_id = ? AND version = ?`)
	res, err := s.db.ExecContext(ctx, q, state.TotalXP, state.Level, string(badges),
		time.Now().UTC(), string(user), int64(expected))
	if err != nil {
		return fmt.Errorf("failed to save user state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// distinguish a missing row from a concurrent writer
	var exists bool
	check := s.db.Rebind(`SELECT EXISTS (SELECT 1 FROM user_game_state WHERE user_id = ?)`)
	if err := s.db.GetContext(ctx, &exists, check, string(user)); err != nil {
		return fmt.Errorf("failed to check user existence: %w", err)
	}
	if !exists {
		return core.ErrNotFound
	}
	return core.ErrVersionMismatch
}
