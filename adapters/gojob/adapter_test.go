package gojob

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-oauth-client/core"
)

func TestNewPurgeMessage_DeduplicatesPerMinute(t *testing.T) {
	first := NewPurgeMessage(time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC))
	second := NewPurgeMessage(time.Date(2026, 3, 1, 12, 0, 55, 0, time.UTC))
	third := NewPurgeMessage(time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC))

	if first.JobID != JobIDPurgeHandshakes {
		t.Fatalf("expected purge job id, got %q", first.JobID)
	}
	if first.IdempotencyKey != second.IdempotencyKey {
		t.Fatalf("expected same idempotency key within a minute")
	}
	if first.IdempotencyKey == third.IdempotencyKey {
		t.Fatalf("expected a new idempotency key for the next minute")
	}
	if first.DedupPolicy != job.DeduplicationPolicy(DedupPolicyDrop) {
		t.Fatalf("expected drop dedup policy, got %q", first.DedupPolicy)
	}
}

func TestPurgeScheduler_Enqueues(t *testing.T) {
	enqueuer := &stubQueueEnqueuer{}
	scheduler := NewPurgeScheduler(enqueuer)
	scheduler.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	if err := scheduler.Schedule(context.Background()); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if enqueuer.last == nil || enqueuer.last.JobID != JobIDPurgeHandshakes {
		t.Fatalf("expected purge message to be enqueued")
	}
	if err := NewPurgeScheduler(nil).Schedule(context.Background()); err == nil {
		t.Fatalf("expected missing enqueuer to fail")
	}
}

func TestNackRetryPolicyBoundaries(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:     3,
		BaseDelay:       4 * time.Second,
		MaxDelay:        10 * time.Second,
		DeadLetterOnMax: true,
	}

	first := policy.NackOptionsForAttempt(1, " transient ")
	if first.Delay != 4*time.Second || !first.Requeue || first.Reason != "transient" {
		t.Fatalf("unexpected first attempt options %#v", first)
	}
	second := policy.NackOptionsForAttempt(2, "transient")
	if second.Delay != 8*time.Second || !second.Requeue {
		t.Fatalf("expected doubled delay, got %#v", second)
	}
	last := policy.NackOptionsForAttempt(3, "still failing")
	if last.Requeue {
		t.Fatalf("expected no requeue once max attempts is reached")
	}
	if !last.DeadLetter {
		t.Fatalf("expected dead letter on max attempts")
	}
	bounded := RetryPolicy{BaseDelay: 8 * time.Second, MaxDelay: 10 * time.Second}.NackOptionsForAttempt(5, "x")
	if bounded.Delay != 10*time.Second || !bounded.Requeue {
		t.Fatalf("expected delay bounded by max delay, got %#v", bounded)
	}
}

func TestPurgeWorker_RunOnceAcksSuccess(t *testing.T) {
	before := time.Date(2026, 3, 1, 11, 50, 0, 0, time.UTC)
	service := &stubPurgeService{result: core.PurgeResult{Before: before, Purged: 2}}
	delivery := &stubQueueDelivery{msg: NewPurgeMessage(before)}
	metrics := &captureMetrics{}
	hook := NewObservabilityHook(nil, metrics)

	w := NewPurgeWorker(&stubQueueDequeuer{delivery: delivery}, service, WithHook(hook))
	result, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if result.Purged != 2 {
		t.Fatalf("expected purge result to be returned, got %#v", result)
	}
	if !delivery.acked || delivery.nacked {
		t.Fatalf("expected delivery to be acked only")
	}
	if metrics.count("oauth.purge_job.start") != 1 || metrics.count("oauth.purge_job.success") != 1 {
		t.Fatalf("expected start and success metrics, got %#v", metrics.counters)
	}
}

func TestPurgeWorker_RunOnceNacksFailure(t *testing.T) {
	boom := errors.New("database unavailable")
	service := &stubPurgeService{err: boom}
	delivery := &stubQueueDelivery{msg: NewPurgeMessage(time.Now())}
	metrics := &captureMetrics{}

	w := NewPurgeWorker(
		&stubQueueDequeuer{delivery: delivery},
		service,
		WithRetryPolicy(RetryPolicy{MaxAttempts: 2, BaseDelay: time.Second, DeadLetterOnMax: true}),
		WithHook(NewObservabilityHook(nil, metrics)),
	)
	if _, err := w.RunOnce(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected purge failure, got %v", err)
	}
	if !delivery.nacked || !delivery.nackOpts.Requeue || delivery.nackOpts.Delay != time.Second {
		t.Fatalf("expected requeue on first attempt, got %#v", delivery.nackOpts)
	}
	if attemptOf(delivery.msg) != 2 {
		t.Fatalf("expected attempt counter to advance, got %d", attemptOf(delivery.msg))
	}
	if metrics.count("oauth.purge_job.retry") != 1 {
		t.Fatalf("expected retry metric, got %#v", metrics.counters)
	}

	if _, err := w.RunOnce(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected purge failure, got %v", err)
	}
	if delivery.nackOpts.Requeue || !delivery.nackOpts.DeadLetter {
		t.Fatalf("expected dead letter on max attempts, got %#v", delivery.nackOpts)
	}
	if metrics.count("oauth.purge_job.failure") != 1 {
		t.Fatalf("expected failure metric, got %#v", metrics.counters)
	}
}

func TestPurgeWorker_RejectsForeignJobs(t *testing.T) {
	delivery := &stubQueueDelivery{msg: &job.ExecutionMessage{JobID: "other.job"}}
	service := &stubPurgeService{}
	w := NewPurgeWorker(&stubQueueDequeuer{delivery: delivery}, service)
	if _, err := w.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected foreign job to be rejected")
	}
	if !delivery.nacked || !delivery.nackOpts.Requeue {
		t.Fatalf("expected foreign job to be requeued")
	}
	if service.calls != 0 {
		t.Fatalf("expected purge not to run for foreign job")
	}
}

func TestPurgeWorker_ThroughService(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := core.NewMemoryHandshakeStore().WithClock(func() time.Time { return now })
	if err := store.Create(context.Background(), core.Handshake{
		State:        "stale",
		ProviderType: "github",
		CreatedAt:    now.Add(-time.Hour),
	}); err != nil {
		t.Fatalf("seed stale handshake: %v", err)
	}
	svc, err := core.NewService(core.DefaultConfig(),
		core.WithHandshakeStore(store),
		core.WithClock(func() time.Time { return now }),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	delivery := &stubQueueDelivery{msg: NewPurgeMessage(now)}
	result, err := NewPurgeWorker(&stubQueueDequeuer{delivery: delivery}, svc).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if result.Purged != 1 || store.Len() != 0 {
		t.Fatalf("expected stale handshake to be purged, got %#v with %d left", result, store.Len())
	}
}

type stubPurgeService struct {
	result core.PurgeResult
	err    error
	calls  int
}

func (s *stubPurgeService) PurgeExpiredHandshakes(context.Context) (core.PurgeResult, error) {
	s.calls++
	return s.result, s.err
}

type stubQueueEnqueuer struct {
	last *job.ExecutionMessage
}

func (s *stubQueueEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	s.last = msg
	return nil
}

type stubQueueDequeuer struct {
	delivery queue.Delivery
}

func (s *stubQueueDequeuer) Dequeue(context.Context) (queue.Delivery, error) {
	return s.delivery, nil
}

type stubQueueDelivery struct {
	msg      *job.ExecutionMessage
	acked    bool
	nacked   bool
	nackOpts queue.NackOptions
}

func (s *stubQueueDelivery) Message() *job.ExecutionMessage {
	return s.msg
}

func (s *stubQueueDelivery) Ack(context.Context) error {
	s.acked = true
	return nil
}

func (s *stubQueueDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	s.nacked = true
	s.nackOpts = opts
	return nil
}

type captureMetrics struct {
	mu       sync.Mutex
	counters map[string]int64
}

func (m *captureMetrics) IncCounter(_ context.Context, name string, value int64, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = map[string]int64{}
	}
	m.counters[name] += value
}

func (m *captureMetrics) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func (m *captureMetrics) count(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

