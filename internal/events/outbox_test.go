package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/inkbook/studio-admin/pkg/logging"
)

func TestOutboxStoreFlow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newOutboxStoreWithExec(mock)

	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(pgxmock.AnyArg(), "appointment:appt-1", TypeAppointmentCancelled, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	if _, err := store.Append(context.Background(), AppointmentAggregate("appt-1"), "", AppointmentCancelledV1{AppointmentID: "appt-1"}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	now := time.Now().UTC()
	id := uuid.New()
	rows := pgxmock.NewRows([]string{"id", "aggregate", "event_type", "payload", "created_at"}).
		AddRow(id, "appointment:appt-1", TypeAppointmentCancelled, []byte(`{"event_type":"appointment.cancelled.v1","payload":{}}`), now)
	mock.ExpectQuery("SELECT id").WithArgs(int32(10)).WillReturnRows(rows)

	entries, err := store.FetchPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("fetch pending failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != id {
		t.Fatalf("unexpected entries: %#v", entries)
	}
	env, err := entries[0].Envelope()
	if err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.EventType != TypeAppointmentCancelled {
		t.Fatalf("unexpected envelope type %s", env.EventType)
	}

	mock.ExpectExec("UPDATE outbox").WithArgs(id).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	ok, err := store.MarkDelivered(context.Background(), id)
	if err != nil {
		t.Fatalf("mark delivered failed: %v", err)
	}
	if !ok {
		t.Fatal("expected mark delivered to report success")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

type fakePendingStore struct {
	entries   []OutboxEntry
	delivered []uuid.UUID
	fetchErr  error
}

func (f *fakePendingStore) FetchPending(ctx context.Context, limit int32) ([]OutboxEntry, error) {
	return f.entries, f.fetchErr
}

func (f *fakePendingStore) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	f.delivered = append(f.delivered, id)
	return true, nil
}

type flakyHandler struct {
	failFor uuid.UUID
	seen    []uuid.UUID
}

func (h *flakyHandler) Handle(ctx context.Context, entry OutboxEntry) error {
	h.seen = append(h.seen, entry.ID)
	if entry.ID == h.failFor {
		return errors.New("transport down")
	}
	return nil
}

func TestDelivererSkipsFailedEntries(t *testing.T) {
	ok1, bad, ok2 := uuid.New(), uuid.New(), uuid.New()
	store := &fakePendingStore{entries: []OutboxEntry{{ID: ok1}, {ID: bad}, {ID: ok2}}}
	handler := &flakyHandler{failFor: bad}
	d := &Deliverer{store: store, handler: handler, logger: logging.New("error"), batchSize: 10}

	if got := d.drain(context.Background()); got != 2 {
		t.Fatalf("expected 2 delivered, got %d", got)
	}
	if len(handler.seen) != 3 {
		t.Fatalf("expected every entry attempted, got %d", len(handler.seen))
	}
	if len(store.delivered) != 2 || store.delivered[0] != ok1 || store.delivered[1] != ok2 {
		t.Fatalf("unexpected delivered ids: %v", store.delivered)
	}
}

func TestDelivererFetchError(t *testing.T) {
	store := &fakePendingStore{fetchErr: errors.New("db gone")}
	d := &Deliverer{store: store, handler: &flakyHandler{}, logger: logging.New("error"), batchSize: 10}
	if got := d.drain(context.Background()); got != 0 {
		t.Fatalf("expected nothing delivered, got %d", got)
	}
}

func TestDelivererStartWithoutStoreReturns(t *testing.T) {
	d := NewDeliverer(nil, &flakyHandler{}, nil).WithInterval(time.Millisecond).WithBatchSize(5)
	done := make(chan struct{})
	go func() {
		d.Start(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Start to return immediately without a store")
	}
	if d.batchSize != 5 {
		t.Fatalf("expected batch size override, got %d", d.batchSize)
	}
}
