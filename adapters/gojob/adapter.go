package gojob

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-oauth-client/core"
)

const (
	JobIDPurgeHandshakes = "oauth.handshakes.purge"

	ParamAttempt = "attempt"

	DedupPolicyDrop = "drop"
)

type PurgeService interface {
	PurgeExpiredHandshakes(ctx context.Context) (core.PurgeResult, error)
}

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
type RetryPolicy struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		BaseDelay:       30 * time.Second,
		MaxDelay:        10 * time.Minute,
		DeadLetterOnMax: true,
	}
}

// NackOptionsForAttempt returns the nack options for a failed attempt,
// doubling BaseDelay per attempt up to MaxDelay. Once MaxAttempts is reached
// the message is no longer requeued.
func (p RetryPolicy) NackOptionsForAttempt(attempt int, reason string) queue.NackOptions {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BaseDelay
	for i := 1; i < attempt && delay > 0; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			break
		}
	}
	if delay < 0 {
		delay = 0
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	out := queue.NackOptions{
		Delay:   delay,
		Requeue: true,
		Reason:  strings.TrimSpace(reason),
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		out.DeadLetter = p.DeadLetterOnMax
		if !out.DeadLetter {
			out.Delay = 0
		}
	}
	return out
}

// NewPurgeMessage builds the execution message for a purge run. Runs are
// deduplicated per minute through the idempotency key.
func NewPurgeMessage(at time.Time) *job.ExecutionMessage {
	slot := at.UTC().Truncate(time.Minute)
	return &job.ExecutionMessage{
		JobID:          JobIDPurgeHandshakes,
		ScriptPath:     JobIDPurgeHandshakes,
		Parameters:     map[string]any{ParamAttempt: 1},
		IdempotencyKey: JobIDPurgeHandshakes + ":" + slot.Format(time.RFC3339),
		DedupPolicy:    job.DeduplicationPolicy(DedupPolicyDrop),
	}
}

type PurgeScheduler struct {
	enqueuer queue.Enqueuer
	now      func() time.Time
}

func NewPurgeScheduler(enqueuer queue.Enqueuer) *PurgeScheduler {
	return &PurgeScheduler{enqueuer: enqueuer, now: time.Now}
}

func (s *PurgeScheduler) Schedule(ctx context.Context) error {
	if s == nil || s.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	return s.enqueuer.Enqueue(ctx, NewPurgeMessage(s.now()))
}

// PurgeWorker drains purge messages from a queue and runs them against the
// handshake service.
type PurgeWorker struct {
	dequeuer queue.Dequeuer
	service  PurgeService
	policy   RetryPolicy
	hook     worker.Hook
}

type WorkerOption func(*PurgeWorker)

func WithRetryPolicy(policy RetryPolicy) WorkerOption {
	return func(w *PurgeWorker) {
		w.policy = policy
	}
}

func WithHook(hook worker.Hook) WorkerOption {
	return func(w *PurgeWorker) {
		if hook != nil {
			w.hook = hook
		}
	}
}

func NewPurgeWorker(dequeuer queue.Dequeuer, service PurgeService, opts ...WorkerOption) *PurgeWorker {
	w := &PurgeWorker{
		dequeuer: dequeuer,
		service:  service,
		policy:   DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// RunOnce processes a single delivery. Messages for other jobs are nacked
// back to the queue untouched.
func (w *PurgeWorker) RunOnce(ctx context.Context) (core.PurgeResult, error) {
	if w == nil || w.dequeuer == nil || w.service == nil {
		return core.PurgeResult{}, fmt.Errorf("gojob: purge worker is not configured")
	}
	delivery, err := w.dequeuer.Dequeue(ctx)
	if err != nil {
		return core.PurgeResult{}, err
	}
	if delivery == nil {
		return core.PurgeResult{}, fmt.Errorf("gojob: dequeued nil delivery")
	}
	msg := delivery.Message()
	if msg == nil || strings.TrimSpace(msg.JobID) != JobIDPurgeHandshakes {
		jobID := ""
		if msg != nil {
			jobID = msg.JobID
		}
		if nackErr := delivery.Nack(ctx, queue.NackOptions{Requeue: true, Reason: "unhandled job"}); nackErr != nil {
			return core.PurgeResult{}, nackErr
		}
		return core.PurgeResult{}, fmt.Errorf("gojob: unexpected job %q", jobID)
	}

	attempt := attemptOf(msg)
	startedAt := time.Now().UTC()
	event := worker.Event{Message: msg, Delivery: delivery, Attempt: attempt, StartedAt: startedAt}
	w.onStart(ctx, event)

	result, runErr := w.service.PurgeExpiredHandshakes(ctx)
	event.Duration = time.Since(startedAt)
	if runErr != nil {
		nack := w.policy.NackOptionsForAttempt(attempt, runErr.Error())
		msg.Parameters = withAttempt(msg.Parameters, attempt+1)
		event.Err = runErr
		event.Delay = nack.Delay
		if nack.Requeue {
			w.onRetry(ctx, event)
		} else {
			w.onFailure(ctx, event)
		}
		if nackErr := delivery.Nack(ctx, nack); nackErr != nil {
			return core.PurgeResult{}, fmt.Errorf("gojob: nack purge job: %w", nackErr)
		}
		return core.PurgeResult{}, runErr
	}
	if err := delivery.Ack(ctx); err != nil {
		return core.PurgeResult{}, fmt.Errorf("gojob: ack purge job: %w", err)
	}
	w.onSuccess(ctx, event)
	return result, nil
}

func (w *PurgeWorker) onStart(ctx context.Context, event worker.Event) {
	if w.hook != nil {
		w.hook.OnStart(ctx, event)
	}
}

func (w *PurgeWorker) onSuccess(ctx context.Context, event worker.Event) {
	if w.hook != nil {
		w.hook.OnSuccess(ctx, event)
	}
}

func (w *PurgeWorker) onFailure(ctx context.Context, event worker.Event) {
	if w.hook != nil {
		w.hook.OnFailure(ctx, event)
	}
}

func (w *PurgeWorker) onRetry(ctx context.Context, event worker.Event) {
	if w.hook != nil {
		w.hook.OnRetry(ctx, event)
	}
}

// ObservabilityHook logs worker lifecycle events and counts them as
// oauth.purge_job.<event> metrics.
type ObservabilityHook struct {
	logger  glog.Logger
	metrics core.MetricsRecorder
}

func NewObservabilityHook(logger glog.Logger, metrics core.MetricsRecorder) *ObservabilityHook {
	if logger == nil {
		logger = glog.Nop()
	}
	if metrics == nil {
		metrics = core.NopMetricsRecorder{}
	}
	return &ObservabilityHook{logger: logger, metrics: metrics}
}

func (h *ObservabilityHook) OnStart(ctx context.Context, event worker.Event) {
	h.record(ctx, "start", event)
}

func (h *ObservabilityHook) OnSuccess(ctx context.Context, event worker.Event) {
	h.record(ctx, "success", event)
}

func (h *ObservabilityHook) OnFailure(ctx context.Context, event worker.Event) {
	h.record(ctx, "failure", event)
}

func (h *ObservabilityHook) OnRetry(ctx context.Context, event worker.Event) {
	h.record(ctx, "retry", event)
}

func (h *ObservabilityHook) record(ctx context.Context, stage string, event worker.Event) {
	if h == nil {
		return
	}
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	jobID := ""
	if message != nil {
		jobID = message.JobID
	}
	tags := map[string]string{"job_id": jobID, "stage": stage}
	h.metrics.IncCounter(ctx, "oauth.purge_job."+stage, 1, tags)
	if event.Duration > 0 {
		h.metrics.ObserveHistogram(ctx, "oauth.purge_job.duration_ms", float64(event.Duration.Milliseconds()), tags)
	}

	args := []any{"job_id", jobID, "attempt", event.Attempt, "stage", stage}
	if event.Delay > 0 {
		args = append(args, "delay_ms", event.Delay.Milliseconds())
	}
	if event.Err != nil {
		args = append(args, "error", event.Err.Error())
		h.logger.Error("purge job "+stage, args...)
		return
	}
	h.logger.Info("purge job "+stage, args...)
}

func attemptOf(msg *job.ExecutionMessage) int {
	if msg == nil {
		return 1
	}
	switch value := msg.Parameters[ParamAttempt].(type) {
	case int:
		if value > 0 {
			return value
		}
	case int64:
		if value > 0 {
			return int(value)
		}
	case float64:
		if value > 0 {
			return int(value)
		}
	case string:
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && parsed > 0 {
			return parsed
		}
	}
	return 1
}

func withAttempt(params map[string]any, attempt int) map[string]any {
	out := make(map[string]any, len(params)+1)
	for key, value := range params {
		out[key] = value
	}
	out[ParamAttempt] = attempt
	return out
}

var (
	_ worker.Hook  = (*ObservabilityHook)(nil)
	_ PurgeService = (*core.Service)(nil)
)
