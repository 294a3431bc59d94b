package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLStore(db), mock
}

func TestSQLStore_ActiveSignalIDs(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id"}).AddRow("sig-1").AddRow("sig-2")
	mock.ExpectQuery(`SELECT id FROM signals WHERE is_active = TRUE`).WillReturnRows(rows)

	ids, err := s.ActiveSignalIDs(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"sig-1", "sig-2"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_LoadSignal_NotFoundReturnsNilNil(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, is_active, definition`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	def, err := s.LoadSignal(context.Background(), "missing")
	require.NoError(t, err)
	require.Nil(t, def)
}

func TestSQLStore_LoadSignal_DecodesDefinitionAndChains(t *testing.T) {
	s, mock := newMockStore(t)

	definition := `{"id":"sig-1","protocol":"morpho-blue","condition":{"left":{"kind":"constant","value":1},"operator":"gt","right":{"kind":"constant","value":0}}}`
	chains := `[1,8453]`

	rows := sqlmock.NewRows([]string{
		"id", "is_active", "definition", "chains", "window_duration", "webhook_url",
		"cooldown_minutes", "last_triggered_at", "last_evaluated_at",
	}).AddRow("sig-1", true, definition, chains, "1h", "https://example.com/hook", int64(30), nil, nil)

	mock.ExpectQuery(`SELECT id, is_active, definition`).WithArgs("sig-1").WillReturnRows(rows)

	def, err := s.LoadSignal(context.Background(), "sig-1")
	require.NoError(t, err)
	require.NotNil(t, def)
	require.Equal(t, "sig-1", def.ID)
	require.Equal(t, []int64{1, 8453}, def.Chains)
	require.Equal(t, "1h", def.WindowDuration)
	require.True(t, def.IsActive)
}

func TestSQLStore_MarkEvaluated(t *testing.T) {
	s, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectExec(`UPDATE signals SET last_evaluated_at = \? WHERE id = \?`).
		WithArgs(now, "sig-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.MarkEvaluated(context.Background(), "sig-1", now)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_MarkTriggered(t *testing.T) {
	s, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectExec(`UPDATE signals SET last_triggered_at = \?, last_evaluated_at = \? WHERE id = \?`).
		WithArgs(now, now, "sig-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.MarkTriggered(context.Background(), "sig-1", now)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
