package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/shaiso/Malsmug/internal/domain"
	"github.com/shaiso/Malsmug/internal/mq"
	"github.com/shaiso/Malsmug/internal/samples"
)

// --- Test doubles ---

// callLog записывает порядок вызовов ack/write/dispatch.
type callLog struct {
	calls []string
}

func (l *callLog) add(format string, args ...any) {
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
}

func (l *callLog) count(prefix string) int {
	n := 0
	for _, c := range l.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

type fakeAcknowledger struct {
	log     *callLog
	ackErr  error
	nackErr error
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	a.log.add("ack:%d", tag)
	return a.ackErr
}

func (a *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	a.log.add("nack:%d:requeue=%t", tag, requeue)
	return a.nackErr
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	a.log.add("reject:%d:requeue=%t", tag, requeue)
	return nil
}

type recordingWriter struct {
	log   *callLog
	inner Writer
	fail  map[int]bool
	n     int
}

func (w *recordingWriter) Write(path string, content []byte) error {
	idx := w.n
	w.n++
	w.log.add("write:%s", path)
	if w.fail[idx] {
		return fmt.Errorf("%w %s: disk full", samples.ErrWrite, path)
	}
	if w.inner != nil {
		return w.inner.Write(path, content)
	}
	return nil
}

type recordingExecutor struct {
	log   *callLog
	tasks []domain.ReplicaTask
	fail  map[int]bool
	panic bool
}

func (e *recordingExecutor) Dispatch(_ context.Context, task domain.ReplicaTask) (int, error) {
	if e.panic {
		panic("boom")
	}
	e.log.add("dispatch:%s:%s:%s", task.SamplePath, task.BaitTarget, task.AnalysisID)
	e.tasks = append(e.tasks, task)
	if e.fail[task.Index] {
		return 0, fmt.Errorf("%w: exec: not found", ErrDispatch)
	}
	return 1000 + task.Index, nil
}

type memJournal struct {
	records []*domain.DispatchRecord
	err     error
}

func (j *memJournal) Record(_ context.Context, rec *domain.DispatchRecord) error {
	j.records = append(j.records, rec)
	return j.err
}

type fixture struct {
	log      *callLog
	ack      *fakeAcknowledger
	writer   *recordingWriter
	executor *recordingExecutor
	journal  *memJournal
	dir      string
	worker   *Worker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := &callLog{}
	dir := t.TempDir()
	f := &fixture{
		log:      log,
		ack:      &fakeAcknowledger{log: log},
		writer:   &recordingWriter{log: log, inner: samples.NewWriter(), fail: map[int]bool{}},
		executor: &recordingExecutor{log: log, fail: map[int]bool{}},
		journal:  &memJournal{},
		dir:      dir,
	}
	f.worker = New(Config{
		Namer:    samples.NewNamer(dir),
		Writer:   f.writer,
		Executor: f.executor,
		Journal:  f.journal,
	})
	return f
}

func (f *fixture) delivery(body []byte) *mq.Delivery {
	return &mq.Delivery{Raw: amqp.Delivery{
		Acknowledger: f.ack,
		DeliveryTag:  7,
		Body:         body,
	}}
}

func encode(t *testing.T, req *domain.AnalysisRequest) []byte {
	t.Helper()
	body, err := mq.EncodeAnalysisRequest(req)
	require.NoError(t, err)
	return body
}

func scenarioRequest() *domain.AnalysisRequest {
	return &domain.AnalysisRequest{
		FileName:    "a.bin",
		FileHash:    "abc123",
		AnalysisID:  "A1",
		BaitTargets: []string{"siteA", "siteB"},
		FileBytes:   []byte{0x01, 0x02},
	}
}

// --- HandleDelivery Tests ---

func TestHandleDelivery_TwoTargets(t *testing.T) {
	f := newFixture(t)

	err := f.worker.HandleDelivery(context.Background(), f.delivery(encode(t, scenarioRequest())))
	require.NoError(t, err)

	assert.Equal(t, 1, f.log.count("ack:"))
	assert.Equal(t, 0, f.log.count("nack:"))

	// Два файла в каталоге сэмплов, оба начинаются с хеша
	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.True(t, strings.HasPrefix(e.Name(), "abc123_"), e.Name())
		content, err := os.ReadFile(filepath.Join(f.dir, e.Name()))
		require.NoError(t, err)
		assert.Equal(t, []byte{0x01, 0x02}, content)
	}

	// Два запуска, цели по порядку
	require.Len(t, f.executor.tasks, 2)
	assert.Equal(t, "siteA", f.executor.tasks[0].BaitTarget)
	assert.Equal(t, "siteB", f.executor.tasks[1].BaitTarget)
	for _, task := range f.executor.tasks {
		assert.Equal(t, "A1", task.AnalysisID)
		assert.Equal(t, f.dir, filepath.Dir(task.SamplePath))
	}
	assert.NotEqual(t, f.executor.tasks[0].SamplePath, f.executor.tasks[1].SamplePath)

	// Журнал
	require.Len(t, f.journal.records, 2)
	assert.True(t, f.journal.records[0].Succeeded())
	assert.Equal(t, 1000, f.journal.records[0].PID)
	assert.Equal(t, "abc123", f.journal.records[1].FileHash)
}

func TestHandleDelivery_AckBeforeFanOut(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.worker.HandleDelivery(context.Background(), f.delivery(encode(t, scenarioRequest()))))

	require.NotEmpty(t, f.log.calls)
	assert.Equal(t, "ack:7", f.log.calls[0])

	// write и dispatch чередуются: write → dispatch для каждой реплики
	require.Len(t, f.log.calls, 5)
	assert.True(t, strings.HasPrefix(f.log.calls[1], "write:"))
	assert.True(t, strings.HasPrefix(f.log.calls[2], "dispatch:"))
	assert.True(t, strings.HasPrefix(f.log.calls[3], "write:"))
	assert.True(t, strings.HasPrefix(f.log.calls[4], "dispatch:"))
	assert.Contains(t, f.log.calls[2], ":siteA:A1")
	assert.Contains(t, f.log.calls[4], ":siteB:A1")
}

func TestHandleDelivery_EmptyTargets(t *testing.T) {
	f := newFixture(t)
	req := scenarioRequest()
	req.BaitTargets = []string{}

	require.NoError(t, f.worker.HandleDelivery(context.Background(), f.delivery(encode(t, req))))

	assert.Equal(t, []string{"ack:7"}, f.log.calls)
	assert.Empty(t, f.executor.tasks)
	assert.Empty(t, f.journal.records)

	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHandleDelivery_MalformedPayload(t *testing.T) {
	f := newFixture(t)

	body := encode(t, scenarioRequest())
	truncated := body[:len(body)-3]

	require.NoError(t, f.worker.HandleDelivery(context.Background(), f.delivery(truncated)))

	assert.Equal(t, 0, f.log.count("ack:"))
	assert.Equal(t, 0, f.log.count("write:"))
	assert.Equal(t, 0, f.log.count("dispatch:"))
	assert.Equal(t, []string{"nack:7:requeue=false"}, f.log.calls)
}

func TestHandleDelivery_SchemaMismatch(t *testing.T) {
	f := newFixture(t)

	// Не хватает поля file_bytes
	body, err := msgpack.Marshal([]interface{}{"a.bin", "abc123", "A1", []string{"siteA"}})
	require.NoError(t, err)

	require.NoError(t, f.worker.HandleDelivery(context.Background(), f.delivery(body)))

	assert.Equal(t, 0, f.log.count("ack:"))
	assert.Equal(t, 1, f.log.count("nack:"))
	assert.Equal(t, 0, f.log.count("write:"))
}

func TestHandleDelivery_WriteFailureSkipsReplica(t *testing.T) {
	f := newFixture(t)
	f.writer.fail[0] = true

	req := scenarioRequest()
	req.BaitTargets = []string{"siteA", "siteB", "siteC"}

	require.NoError(t, f.worker.HandleDelivery(context.Background(), f.delivery(encode(t, req))))

	assert.Equal(t, 3, f.log.count("write:"))
	require.Len(t, f.executor.tasks, 2)
	assert.Equal(t, "siteB", f.executor.tasks[0].BaitTarget)
	assert.Equal(t, "siteC", f.executor.tasks[1].BaitTarget)
	assert.Len(t, f.journal.records, 2)
}

func TestHandleDelivery_DispatchFailureContinues(t *testing.T) {
	f := newFixture(t)
	f.executor.fail[0] = true

	require.NoError(t, f.worker.HandleDelivery(context.Background(), f.delivery(encode(t, scenarioRequest()))))

	assert.Equal(t, 2, f.log.count("dispatch:"))
	assert.Equal(t, 1, f.log.count("ack:"))

	require.Len(t, f.journal.records, 2)
	assert.False(t, f.journal.records[0].Succeeded())
	assert.Equal(t, 0, f.journal.records[0].PID)
	assert.True(t, f.journal.records[1].Succeeded())
}

func TestHandleDelivery_AckFailure(t *testing.T) {
	f := newFixture(t)
	f.ack.ackErr = amqp.ErrClosed

	err := f.worker.HandleDelivery(context.Background(), f.delivery(encode(t, scenarioRequest())))
	require.ErrorIs(t, err, mq.ErrAcknowledge)

	assert.Equal(t, 0, f.log.count("write:"))
	assert.Equal(t, 0, f.log.count("dispatch:"))
}

func TestHandleDelivery_JournalFailureIgnored(t *testing.T) {
	f := newFixture(t)
	f.journal.err = errors.New("db down")

	require.NoError(t, f.worker.HandleDelivery(context.Background(), f.delivery(encode(t, scenarioRequest()))))
	assert.Equal(t, 2, f.log.count("dispatch:"))
}

func TestHandleDelivery_PanicRecovered(t *testing.T) {
	f := newFixture(t)
	f.executor.panic = true

	err := f.worker.HandleDelivery(context.Background(), f.delivery(encode(t, scenarioRequest())))
	require.NoError(t, err)
	assert.Equal(t, 1, f.log.count("ack:"))
}

func TestHandleDelivery_NoJournal(t *testing.T) {
	log := &callLog{}
	executor := &recordingExecutor{log: log}
	w := New(Config{
		Namer:    samples.NewNamer(t.TempDir()),
		Writer:   &recordingWriter{log: log},
		Executor: executor,
	})

	d := &mq.Delivery{Raw: amqp.Delivery{Acknowledger: &fakeAcknowledger{log: log}, Body: encode(t, scenarioRequest())}}
	require.NoError(t, w.HandleDelivery(context.Background(), d))
	assert.Len(t, executor.tasks, 2)
}

func TestHandler(t *testing.T) {
	f := newFixture(t)
	h := f.worker.Handler()

	require.NoError(t, h(context.Background(), f.delivery(encode(t, scenarioRequest()))))
	assert.Equal(t, 1, f.log.count("ack:"))
}
