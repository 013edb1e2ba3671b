package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type stubRows struct {
	pgx.Rows
	data [][]any
	idx  int
}

func (r *stubRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *stubRows) Scan(dest ...any) error {
	row := r.data[r.idx-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: want %d dest, got %d", len(row), len(dest))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *int64:
			*p = row[i].(int64)
		case *string:
			*p = row[i].(string)
		case *json.RawMessage:
			*p = json.RawMessage(row[i].(string))
		default:
			return fmt.Errorf("scan: unsupported dest %T", d)
		}
	}
	return nil
}

func (r *stubRows) Err() error { return nil }
func (r *stubRows) Close()     {}

type stubTx struct {
	pgx.Tx
	rows      *stubRows
	execs     []string
	execArgs  [][]any
	committed bool
}

func (t *stubTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	if t.rows == nil {
		return &stubRows{}, nil
	}
	return t.rows, nil
}

func (t *stubTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.execs = append(t.execs, sql)
	t.execArgs = append(t.execArgs, args)
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (t *stubTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *stubTx) Rollback(context.Context) error { return nil }

type stubDB struct {
	mu      sync.Mutex
	pending [][]any
	txs     []*stubTx
}

func (d *stubDB) Begin(context.Context) (pgx.Tx, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	tx := &stubTx{}
	if len(d.txs) == 0 {
		tx.rows = &stubRows{data: d.pending}
	}
	d.txs = append(d.txs, tx)
	return tx, nil
}

type recordingWriter struct {
	mu     sync.Mutex
	err    error
	topics []string
	sent   []kafka.Message
}

func (w *recordingWriter) WriteMessages(_ context.Context, topic string, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.topics = append(w.topics, topic)
	w.sent = append(w.sent, msgs...)
	return nil
}

func pendingRows() [][]any {
	return [][]any{
		{int64(10), "subscriber", "1", "subscriber.created", "subscriber_events", "1", `{"subscriber_id":1}`},
		{int64(11), "subscriber", "2", "subscriber.created", "subscriber_events", "2", `{"subscriber_id":2}`},
	}
}

func TestProcessBatchPublishesAndMarks(t *testing.T) {
	db := &stubDB{pending: pendingRows()}
	writer := &recordingWriter{}
	dispatcher := NewDispatcher(db, writer, time.Second, 25)

	n, err := dispatcher.ProcessBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.Equal(t, []string{"subscriber_events"}, writer.topics)
	require.Len(t, writer.sent, 2)
	require.Equal(t, "1", string(writer.sent[0].Key))
	require.JSONEq(t, `{"subscriber_id":1}`, string(writer.sent[0].Value))
	require.Equal(t, "event_type", writer.sent[0].Headers[0].Key)
	require.Equal(t, "subscriber.created", string(writer.sent[0].Headers[0].Value))

	require.Len(t, db.txs, 2)
	claim := db.txs[0]
	require.True(t, claim.committed)
	require.Contains(t, claim.execs[0], "claimed_at = NOW()")
	require.Equal(t, []int64{10, 11}, claim.execArgs[0][0])

	mark := db.txs[1]
	require.True(t, mark.committed)
	require.Contains(t, mark.execs[0], "published_at = NOW()")
	require.Equal(t, []int64{10, 11}, mark.execArgs[0][0])
}

func TestProcessBatchReleasesClaimsOnFailure(t *testing.T) {
	db := &stubDB{pending: pendingRows()}
	writer := &recordingWriter{err: errors.New("leader not available")}
	dispatcher := NewDispatcher(db, writer, time.Second, 25)

	n, err := dispatcher.ProcessBatch(context.Background())
	require.ErrorContains(t, err, "leader not available")
	require.Zero(t, n)

	require.Len(t, db.txs, 2)
	release := db.txs[1]
	require.True(t, release.committed)
	require.Contains(t, release.execs[0], "claimed_at = NULL")
	for _, tx := range db.txs {
		for _, stmt := range tx.execs {
			require.False(t, strings.Contains(stmt, "published_at = NOW()"))
		}
	}
}

func TestProcessBatchNoopWhenEmpty(t *testing.T) {
	db := &stubDB{}
	writer := &recordingWriter{}
	dispatcher := NewDispatcher(db, writer, time.Second, 25)

	n, err := dispatcher.ProcessBatch(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
	require.Empty(t, writer.sent)
	require.Len(t, db.txs, 1)
	require.False(t, db.txs[0].committed)
}

func TestDeliverRejectsMissingTopic(t *testing.T) {
	dispatcher := NewDispatcher(&stubDB{}, &recordingWriter{}, time.Second, 25)
	err := dispatcher.deliver(context.Background(), []Message{{EventID: 3, EventType: "subscriber.created"}})
	require.ErrorContains(t, err, "no topic")
}

func TestStartStopsOnCancel(t *testing.T) {
	db := &stubDB{pending: pendingRows()}
	writer := &recordingWriter{}
	dispatcher := NewDispatcher(db, writer, 10*time.Millisecond, 25)

	ctx, cancel := context.WithCancel(context.Background())
	go dispatcher.Start(ctx)

	require.Eventually(t, func() bool {
		writer.mu.Lock()
		defer writer.mu.Unlock()
		return len(writer.sent) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	done := make(chan struct{})
	go func() {
		dispatcher.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
}
