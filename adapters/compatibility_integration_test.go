package adapters_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-command"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	glog "github.com/goliatone/go-logger/glog"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/goliatone/go-oauth-client/adapters/gocommand"
	"github.com/goliatone/go-oauth-client/adapters/gojob"
	"github.com/goliatone/go-oauth-client/adapters/gologger"
	oauthprometheus "github.com/goliatone/go-oauth-client/adapters/prometheus"
	oauthcommand "github.com/goliatone/go-oauth-client/command"
	"github.com/goliatone/go-oauth-client/core"
	"github.com/goliatone/go-oauth-client/providers/devkit"
	oauthquery "github.com/goliatone/go-oauth-client/query"
)

func TestRuntimeCompatibility_GoJobGoCommandGoLogger(t *testing.T) {
	ctx := context.Background()

	logger := &compatLogger{}
	provider := &compatProvider{logger: logger}

	_, _, jobProvider, jobLogger := gologger.ResolveForJob("oauth.purge", provider, nil)
	if jobProvider == nil || jobLogger == nil {
		t.Fatalf("expected go-job logger bridges")
	}

	clock := &compatClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := core.NewMemoryHandshakeStore().WithClock(clock.Now)
	registry := prom.NewRegistry()
	recorder := oauthprometheus.NewRecorder(registry)

	opts := append(gologger.ServiceOptions(provider, nil),
		core.WithProviders(devkit.NewFakeProvider("github")),
		core.WithHandshakeStore(store),
		core.WithMetricsRecorder(recorder),
		core.WithClock(clock.Now),
	)
	svc, err := core.NewService(core.DefaultConfig(), opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	queueRegistry := jobqueuecommand.NewRegistry()
	commandAdapter := gocommand.NewRegistryAdapter(command.NewRegistry())
	if err := commandAdapter.AddQueueResolver("queue", queueRegistry); err != nil {
		t.Fatalf("add queue resolver: %v", err)
	}
	bindings, err := gocommand.RegisterHandshakeHandlers(commandAdapter, svc)
	if err != nil {
		t.Fatalf("register handshake handlers: %v", err)
	}
	t.Cleanup(bindings.Unsubscribe)
	if err := commandAdapter.Initialize(); err != nil {
		t.Fatalf("initialize command registry: %v", err)
	}
	if _, ok := queueRegistry.Get(oauthcommand.TypePurgeExpired); !ok {
		t.Fatalf("expected purge command to be mirrored into the go-job queue registry")
	}

	instruction, err := gocommand.Initiate(ctx, core.InitiateRequest{ProviderType: "github", OwnerID: "user_1"})
	if err != nil {
		t.Fatalf("initiate through dispatcher: %v", err)
	}
	if instruction.State == "" || store.Len() != 1 {
		t.Fatalf("expected a persisted handshake, got %#v", instruction)
	}

	pending, err := gocommand.PendingHandshakes(ctx, oauthquery.PendingHandshakesMessage{OwnerID: "user_1"})
	if err != nil {
		t.Fatalf("pending handshakes: %v", err)
	}
	if len(pending) != 1 || pending[0].ProviderType != "github" {
		t.Fatalf("expected one pending github handshake, got %#v", pending)
	}

	clock.Advance(core.DefaultHandshakeTTL + time.Second)

	q := &compatQueue{}
	if err := gojob.NewPurgeScheduler(q).Schedule(ctx); err != nil {
		t.Fatalf("schedule purge: %v", err)
	}
	hook := gojob.NewObservabilityHook(jobProvider.GetLogger("oauth.purge"), recorder)
	result, err := gojob.NewPurgeWorker(q, svc, gojob.WithHook(hook)).RunOnce(ctx)
	if err != nil {
		t.Fatalf("run purge worker: %v", err)
	}
	if result.Purged != 1 || store.Len() != 0 {
		t.Fatalf("expected expired handshake to be purged, got %#v", result)
	}
	if q.acked != 1 {
		t.Fatalf("expected purge delivery to be acked")
	}

	if _, err := gocommand.Exchange(ctx, core.ExchangeRequest{
		State:        instruction.State,
		Code:         "code_1",
		ProviderType: "github",
	}); !core.IsKind(err, core.ErrorKindInvalidState) {
		t.Fatalf("expected purged state to be invalid, got %v", err)
	}

	if !logger.saw("purge job success") {
		t.Fatalf("expected purge worker to log through the bridged provider")
	}
	if !logger.saw("initiate succeeded") {
		t.Fatalf("expected service to log through the resolved provider")
	}
	if got := compatCounter(t, registry, "oauth_purge_job_success_total"); got != 1 {
		t.Fatalf("expected one purge job success, got %v", got)
	}
	if got := compatCounter(t, registry, "oauth_purge_expired_handshakes_total"); got != 1 {
		t.Fatalf("expected one purge operation, got %v", got)
	}
}

func compatCounter(t *testing.T, registry *prom.Registry, name string) float64 {
	t.Helper()
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	total := 0.0
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

type compatClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *compatClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *compatClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type compatQueue struct {
	mu       sync.Mutex
	messages []*job.ExecutionMessage
	acked    int
}

func (q *compatQueue) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = append(q.messages, msg)
	return nil
}

func (q *compatQueue) Dequeue(context.Context) (queue.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.messages) == 0 {
		return nil, fmt.Errorf("compat queue is empty")
	}
	msg := q.messages[0]
	q.messages = q.messages[1:]
	return &compatDelivery{queue: q, msg: msg}, nil
}

type compatDelivery struct {
	queue *compatQueue
	msg   *job.ExecutionMessage
}

func (d *compatDelivery) Message() *job.ExecutionMessage {
	return d.msg
}

func (d *compatDelivery) Ack(context.Context) error {
	d.queue.mu.Lock()
	d.queue.acked++
	d.queue.mu.Unlock()
	return nil
}

func (d *compatDelivery) Nack(ctx context.Context, opts queue.NackOptions) error {
	if opts.Requeue {
		return d.queue.Enqueue(ctx, d.msg)
	}
	return nil
}

type compatProvider struct {
	logger glog.Logger
}

func (p *compatProvider) GetLogger(string) glog.Logger {
	if p == nil || p.logger == nil {
		return glog.Nop()
	}
	return p.logger
}

type compatLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *compatLogger) record(msg string) {
	l.mu.Lock()
	l.messages = append(l.messages, msg)
	l.mu.Unlock()
}

func (l *compatLogger) saw(msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, recorded := range l.messages {
		if recorded == msg {
			return true
		}
	}
	return false
}

func (l *compatLogger) Trace(msg string, _ ...any) {
	l.record(msg)
}

func (l *compatLogger) Debug(msg string, _ ...any) {
	l.record(msg)
}

func (l *compatLogger) Info(msg string, _ ...any) {
	l.record(msg)
}

func (l *compatLogger) Warn(msg string, _ ...any) {
	l.record(msg)
}

func (l *compatLogger) Error(msg string, _ ...any) {
	l.record(msg)
}

func (l *compatLogger) Fatal(msg string, _ ...any) {
	l.record(msg)
}

func (l *compatLogger) WithContext(context.Context) glog.Logger {
	return l
}
