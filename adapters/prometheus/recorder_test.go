package prometheus

import (
	"context"
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/goliatone/go-oauth-client/core"
	"github.com/goliatone/go-oauth-client/providers/devkit"
)

func TestSanitizeName(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{input: "oauth.initiate.total", want: "oauth_initiate_total"},
		{input: "oauth.purge_job.duration_ms", want: "oauth_purge_job_duration_ms"},
		{input: " oauth-exchange ", want: "oauth_exchange"},
		{input: "9lives", want: "_9lives"},
	}
	for _, tc := range cases {
		if got := sanitizeName(tc.input); got != tc.want {
			t.Fatalf("sanitize %q: expected %q, got %q", tc.input, tc.want, got)
		}
	}
}

func TestRecorder_CountsAndObserves(t *testing.T) {
	registry := prom.NewRegistry()
	recorder := NewRecorder(registry)

	ctx := context.Background()
	tags := map[string]string{"operation": "initiate", "status": "success", "ignored": "x"}
	recorder.IncCounter(ctx, "oauth.initiate.total", 1, tags)
	recorder.IncCounter(ctx, "oauth.initiate.total", 2, tags)
	recorder.IncCounter(ctx, "oauth.initiate.total", -1, tags)
	recorder.ObserveHistogram(ctx, "oauth.initiate.duration_ms", 12, tags)

	if got := counterValue(t, registry, "oauth_initiate_total", "status", "success"); got != 3 {
		t.Fatalf("expected counter 3, got %v", got)
	}
	if got := histogramCount(t, registry, "oauth_initiate_duration_ms"); got != 1 {
		t.Fatalf("expected one observation, got %d", got)
	}
}

func TestRecorder_NamespaceAndLabels(t *testing.T) {
	registry := prom.NewRegistry()
	recorder := NewRecorder(registry, WithNamespace("billing"), WithLabels("stage"))
	recorder.IncCounter(context.Background(), "oauth.purge_job.start", 1, map[string]string{"stage": "start"})

	if got := counterValue(t, registry, "billing_oauth_purge_job_start_total", "stage", "start"); got != 1 {
		t.Fatalf("expected namespaced counter, got %v", got)
	}
}

func TestRecorder_RecordsServiceOperations(t *testing.T) {
	registry := prom.NewRegistry()
	recorder := NewRecorder(registry)
	svc, err := core.NewService(core.DefaultConfig(),
		core.WithProviders(devkit.NewFakeProvider("github")),
		core.WithMetricsRecorder(recorder),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	ctx := context.Background()
	if _, err := svc.Initiate(ctx, core.InitiateRequest{ProviderType: "github", OwnerID: "user_1"}); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := svc.Initiate(ctx, core.InitiateRequest{ProviderType: "unknown"}); err == nil {
		t.Fatalf("expected unknown provider to fail")
	}

	if got := counterValue(t, registry, "oauth_initiate_total", "status", "success"); got != 1 {
		t.Fatalf("expected one successful initiate, got %v", got)
	}
	if got := counterValue(t, registry, "oauth_initiate_total", "error_kind", string(core.ErrorKindUnknownProvider)); got != 1 {
		t.Fatalf("expected one unknown provider failure, got %v", got)
	}
}

func counterValue(t *testing.T, registry *prom.Registry, name, label, value string) float64 {
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
			for _, pair := range metric.GetLabel() {
				if pair.GetName() == label && pair.GetValue() == value {
					total += metric.GetCounter().GetValue()
				}
			}
		}
	}
	return total
}

func histogramCount(t *testing.T, registry *prom.Registry, name string) uint64 {
	t.Helper()
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var count uint64
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			count += metric.GetHistogram().GetSampleCount()
		}
	}
	return count
}
