package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"

	"github.com/TalentedProger/Preloader-Animate/internal/domain"
	"github.com/TalentedProger/Preloader-Animate/internal/events"
)

type stubRow struct {
	values []any
	err    error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan: want %d dest, got %d", len(r.values), len(dest))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *int64:
			*p = r.values[i].(int64)
		case *int:
			*p = r.values[i].(int)
		case *string:
			*p = r.values[i].(string)
		case *bool:
			*p = r.values[i].(bool)
		case *time.Time:
			*p = r.values[i].(time.Time)
		default:
			return fmt.Errorf("scan: unsupported dest %T", d)
		}
	}
	return nil
}

type execCall struct {
	sql  string
	args []any
}

type stubTx struct {
	pgx.Tx
	row        stubRow
	execErr    error
	commitErr  error
	execs      []execCall
	committed  bool
	rolledBack bool
}

func (t *stubTx) QueryRow(context.Context, string, ...any) pgx.Row { return t.row }

func (t *stubTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.execs = append(t.execs, execCall{sql: sql, args: args})
	if t.execErr != nil {
		return pgconn.CommandTag{}, t.execErr
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (t *stubTx) Commit(context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}

func (t *stubTx) Rollback(context.Context) error {
	if t.committed {
		return pgx.ErrTxClosed
	}
	t.rolledBack = true
	return nil
}

type stubRows struct {
	pgx.Rows
	data   [][]any
	idx    int
	err    error
	closed bool
}

func (r *stubRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *stubRows) Scan(dest ...any) error {
	return stubRow{values: r.data[r.idx-1]}.Scan(dest...)
}

func (r *stubRows) Err() error { return r.err }
func (r *stubRows) Close()     { r.closed = true }

type stubDB struct {
	tx        *stubTx
	beginErr  error
	rows      *stubRows
	queryErr  error
	queryArgs []any
	row       stubRow
}

func (d *stubDB) Begin(context.Context) (pgx.Tx, error) {
	if d.beginErr != nil {
		return nil, d.beginErr
	}
	return d.tx, nil
}

func (d *stubDB) Query(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
	d.queryArgs = args
	if d.queryErr != nil {
		return nil, d.queryErr
	}
	return d.rows, nil
}

func (d *stubDB) QueryRow(context.Context, string, ...any) pgx.Row { return d.row }

func TestCreateSubscriberWritesRowAndOutboxEvent(t *testing.T) {
	created := time.Date(2026, time.June, 1, 8, 0, 0, 0, time.UTC)
	tx := &stubTx{row: stubRow{values: []any{int64(42), "ana@example.com", created, true}}}
	store := NewStore(&stubDB{tx: tx})

	sub, err := store.CreateSubscriber(context.Background(), domain.CreateSubscriberInput{Email: "ana@example.com"})
	require.NoError(t, err)
	require.Equal(t, &domain.Subscriber{ID: 42, Email: "ana@example.com", CreatedAt: created, IsActive: true}, sub)
	require.True(t, tx.committed)
	require.False(t, tx.rolledBack)

	require.Len(t, tx.execs, 1)
	call := tx.execs[0]
	require.True(t, strings.HasPrefix(call.sql, "INSERT INTO outbox"))
	require.Equal(t, "subscriber", call.args[0])
	require.Equal(t, "42", call.args[1])
	require.Equal(t, events.TypeSubscriberCreated, call.args[2])
	require.Equal(t, events.TopicSubscriberEvents, call.args[3])
	require.Equal(t, "42", call.args[4])
	require.Equal(t, "42:subscriber.created", call.args[6])

	var payload events.SubscriberCreated
	require.NoError(t, json.Unmarshal(call.args[5].([]byte), &payload))
	require.Equal(t, int64(42), payload.SubscriberID)
	require.Equal(t, "ana@example.com", payload.Email)
	require.NotEmpty(t, payload.EventID)
}

func TestCreateSubscriberRollsBackWhenOutboxFails(t *testing.T) {
	tx := &stubTx{
		row:     stubRow{values: []any{int64(1), "ana@example.com", time.Now(), true}},
		execErr: errors.New("relation \"outbox\" does not exist"),
	}
	store := NewStore(&stubDB{tx: tx})

	_, err := store.CreateSubscriber(context.Background(), domain.CreateSubscriberInput{Email: "ana@example.com"})
	require.Error(t, err)
	require.NotErrorIs(t, err, domain.ErrStorageUnavailable)
	require.False(t, tx.committed)
	require.True(t, tx.rolledBack)
}

func TestCreateSubscriberMapsConnectionFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "network", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}},
		{name: "connection exception", err: &pgconn.PgError{Code: "08006", Message: "connection failure"}},
		{name: "shutting down", err: &pgconn.PgError{Code: "57P01", Message: "terminating connection"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore(&stubDB{beginErr: tt.err})
			_, err := store.CreateSubscriber(context.Background(), domain.CreateSubscriberInput{Email: "ana@example.com"})
			require.ErrorIs(t, err, domain.ErrStorageUnavailable)
		})
	}
}

func TestCreateSubscriberKeepsConstraintErrorsUnexpected(t *testing.T) {
	tx := &stubTx{row: stubRow{err: &pgconn.PgError{Code: "23502", Message: "null value in column \"email\""}}}
	store := NewStore(&stubDB{tx: tx})

	_, err := store.CreateSubscriber(context.Background(), domain.CreateSubscriberInput{Email: ""})
	require.Error(t, err)
	require.NotErrorIs(t, err, domain.ErrStorageUnavailable)

	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	require.Equal(t, "23502", pgErr.Code)
}

func TestListSubscribers(t *testing.T) {
	newer := time.Date(2026, time.June, 2, 0, 0, 0, 0, time.UTC)
	older := newer.Add(-time.Hour)
	rows := &stubRows{data: [][]any{
		{int64(2), "b@example.com", newer, true},
		{int64(1), "a@example.com", older, true},
	}}
	db := &stubDB{rows: rows}
	store := NewStore(db)

	subs, err := store.ListSubscribers(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	require.Equal(t, int64(2), subs[0].ID)
	require.Equal(t, []any{10}, db.queryArgs)
	require.True(t, rows.closed)
}

func TestListSubscribersSurfacesRowErrors(t *testing.T) {
	store := NewStore(&stubDB{rows: &stubRows{err: errors.New("conn reset")}})
	_, err := store.ListSubscribers(context.Background(), 10)
	require.Error(t, err)
}

func TestCountSubscribers(t *testing.T) {
	store := NewStore(&stubDB{row: stubRow{values: []any{5}}})
	n, err := store.CountSubscribers(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, n)
}

func TestRunMigrationsUsesEmbeddedFS(t *testing.T) {
	orig := gooseUp
	t.Cleanup(func() { gooseUp = orig })

	var gotDir string
	gooseUp = func(_ context.Context, _ *sql.DB, dir string, _ ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}
	require.NoError(t, runMigrations(context.Background(), nil))
	require.Equal(t, ".", gotDir)

	gooseUp = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	require.ErrorContains(t, runMigrations(context.Background(), nil), "apply migrations")
}
