package sqlx_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	libsqlx "github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storage "learnxp/adapters/sqlx"
	"learnxp/core"
)

func newMockStore(t *testing.T) (*storage.Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	xdb := storage.NewWithDB(libsqlx.NewDb(db, "postgres"), storage.DriverPostgres)
	cleanup := func() {
		_ = db.Close()
	}
	return xdb, mock, cleanup
}

func stateRows(userID string, totalXP, level int64, badges string, version int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"user_id", "total_xp", "level", "badges", "version", "updated_at"}).
		AddRow(userID, totalXP, level, badges, version, time.Now().UTC())
}

func TestSQLMock_Create(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`INSERT INTO user_game_state`).
		WithArgs("u1", int64(0), int64(1), "[]", 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, store.Create(context.Background(), "u1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_CreateExisting(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err := store.Create(context.Background(), "u1")
	assert.ErrorIs(t, err, core.ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_Load(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT user_id, total_xp, level, badges, version, updated_at FROM user_game_state`).
		WithArgs("u1").
		WillReturnRows(stateRows("u1", 510, 5, `["level-5"]`, 3))

	state, version, err := store.Load(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(510), state.TotalXP)
	assert.Equal(t, int64(5), state.Level)
	assert.True(t, state.HasBadge("level-5"))
	assert.Equal(t, core.Version(3), version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_LoadNotFound(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT user_id, total_xp, level, badges, version, updated_at FROM user_game_state`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, _, err := store.Load(context.Background(), "ghost")
	assert.ErrorIs(t, err, core.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_Save(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	state := core.NewUserGameState("u1")
	state.TotalXP = 510
	state.Level = 5
	state.Badges["level-5"] = struct{}{}

	mock.ExpectExec(`UPDATE user_game_state`).
		WithArgs(int64(510), int64(5), `["level-5"]`, sqlmock.AnyArg(), "u1", int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Save(context.Background(), "u1", state, 2))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_SaveVersionMismatch(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	state := core.NewUserGameState("u1")

	mock.ExpectExec(`UPDATE user_game_state`).
		WithArgs(int64(0), int64(1), "[]", sqlmock.AnyArg(), "u1", int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := store.Save(context.Background(), "u1", state, 2)
	assert.ErrorIs(t, err, core.ErrVersionMismatch)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_SaveMissingUser(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	state := core.NewUserGameState("ghost")

	mock.ExpectExec(`UPDATE user_game_state`).
		WithArgs(int64(0), int64(1), "[]", sqlmock.AnyArg(), "ghost", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := store.Save(context.Background(), "ghost", state, 1)
	assert.ErrorIs(t, err, core.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
