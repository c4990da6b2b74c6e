package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitchflow/labelrelay/internal/core"
	"github.com/stitchflow/labelrelay/internal/store"
)

type fakeTransport struct {
	mu    sync.Mutex
	err   error
	sends []sentPayload
}

type sentPayload struct {
	host    string
	port    int
	payload []byte
}

func (f *fakeTransport) SendRaw(host string, port int, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, sentPayload{host: host, port: port, payload: payload})
	return f.err
}

func (f *fakeTransport) sent() []sentPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentPayload(nil), f.sends...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newWorkerFixture(t *testing.T, transport Transport) (*Worker, *store.Memory) {
	t.Helper()
	mem := store.NewMemory(core.DefaultRetryPolicy())
	w := NewWorker(mem, mem, transport, time.Second, testLogger())
	return w, mem
}

func addPrinter(t *testing.T, mem *store.Memory, id string, enabled bool) {
	t.Helper()
	require.NoError(t, mem.Upsert(context.Background(), &core.Printer{
		ID:         id,
		Name:       "Printer " + id,
		PublicHost: id + ".local",
		PublicPort: 9100,
		Protocol:   core.ProtocolRaw,
		Enabled:    enabled,
	}))
}

func enqueue(t *testing.T, mem *store.Memory, printerID, key string) *core.PrintJob {
	t.Helper()
	job, created, err := mem.EnqueueJob(context.Background(), store.EnqueueParams{
		CreatedBy:      "test",
		Source:         "web",
		OrderID:        "order-" + key,
		PrinterID:      printerID,
		Payload:        []byte("PRINT 1\n"),
		IdempotencyKey: key,
	})
	require.NoError(t, err)
	require.True(t, created)
	return job
}

func TestWorkerDeliversJob(t *testing.T) {
	transport := &fakeTransport{}
	w, mem := newWorkerFixture(t, transport)
	addPrinter(t, mem, "dock", true)
	job := enqueue(t, mem, "dock", "key-ok")

	w.runTick()

	sends := transport.sent()
	require.Len(t, sends, 1)
	assert.Equal(t, "dock.local", sends[0].host)
	assert.Equal(t, 9100, sends[0].port)
	assert.Equal(t, []byte("PRINT 1\n"), sends[0].payload)

	got, err := mem.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusPrinted, got.Status)
	assert.NotNil(t, got.PrintedAt)
}

func TestWorkerSchedulesRetryOnTransportError(t *testing.T) {
	transport := &fakeTransport{err: errors.New("connection refused")}
	w, mem := newWorkerFixture(t, transport)
	addPrinter(t, mem, "dock", true)
	job := enqueue(t, mem, "dock", "key-retry")

	w.runTick()

	got, err := mem.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusQueued, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, "connection refused", got.LastError)
	assert.NotNil(t, got.NextAttemptAt)
}

func TestWorkerFailsJobForDisabledPrinter(t *testing.T) {
	transport := &fakeTransport{}
	w, mem := newWorkerFixture(t, transport)
	addPrinter(t, mem, "dock", false)
	job := enqueue(t, mem, "dock", "key-disabled")

	w.runTick()

	require.Empty(t, transport.sent())
	got, err := mem.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusQueued, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, "printer disabled or missing", got.LastError)
}

func TestWorkerFailsJobForMissingPrinter(t *testing.T) {
	transport := &fakeTransport{}
	w, mem := newWorkerFixture(t, transport)
	job := enqueue(t, mem, "ghost", "key-missing")

	w.runTick()

	require.Empty(t, transport.sent())
	got, err := mem.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, "printer disabled or missing", got.LastError)
}

type flakyRegistry struct {
	store.PrinterRegistry

	mu     sync.Mutex
	getErr error
}

func (f *flakyRegistry) Get(ctx context.Context, id string) (*core.Printer, error) {
	f.mu.Lock()
	err := f.getErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.PrinterRegistry.Get(ctx, id)
}

func (f *flakyRegistry) setErr(err error) {
	f.mu.Lock()
	f.getErr = err
	f.mu.Unlock()
}

func TestWorkerRequeuesOnRegistryError(t *testing.T) {
	transport := &fakeTransport{}
	mem := store.NewMemory(core.DefaultRetryPolicy())
	registry := &flakyRegistry{PrinterRegistry: mem}
	w := NewWorker(mem, registry, transport, time.Second, testLogger())
	addPrinter(t, mem, "dock", true)
	job := enqueue(t, mem, "dock", "key-flaky")

	registry.setErr(errors.New("database is locked"))
	w.runTick()

	// A lookup hiccup is not a delivery verdict: no attempt charged, job
	// back in the queue.
	require.Empty(t, transport.sent())
	got, err := mem.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusQueued, got.Status)
	assert.Equal(t, 0, got.Attempts)
	assert.Empty(t, got.LastError)

	registry.setErr(nil)
	w.runTick()

	require.Len(t, transport.sent(), 1)
	got, err = mem.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusPrinted, got.Status)
}

func TestWorkerExhaustsRetriesToTerminalFailure(t *testing.T) {
	transport := &fakeTransport{err: errors.New("printer offline")}
	w, mem := newWorkerFixture(t, transport)
	addPrinter(t, mem, "dock", true)
	job := enqueue(t, mem, "dock", "key-exhaust")

	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mem.Now = func() time.Time { return clock }

	for i := 0; i < 5; i++ {
		w.runTick()
		clock = clock.Add(2 * time.Minute)
	}

	got, err := mem.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusFailed, got.Status)
	assert.Equal(t, 5, got.Attempts)
	require.Len(t, transport.sent(), 5)

	// Nothing left to claim once the job is terminal.
	w.runTick()
	require.Len(t, transport.sent(), 5)
}

func TestWorkerIdlesOnEmptyQueue(t *testing.T) {
	transport := &fakeTransport{}
	w, _ := newWorkerFixture(t, transport)

	w.runTick()
	require.Empty(t, transport.sent())
}

func TestWorkerStartStop(t *testing.T) {
	transport := &fakeTransport{}
	mem := store.NewMemory(core.DefaultRetryPolicy())
	w := NewWorker(mem, mem, transport, 10*time.Millisecond, testLogger())

	w.Start()
	w.Start() // second start is a no-op
	time.Sleep(30 * time.Millisecond)
	w.Stop()
	w.Stop() // second stop is a no-op
}
