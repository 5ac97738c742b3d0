package dashboard

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/linnemanlabs/proco/internal/triage"
)

func TestRequestStatusChange_CreatesSpans(t *testing.T) {
	// Not parallel: swaps the global OTel tracer provider.

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	b := seedBackend()
	b.rejectErr = errBoom
	p := loadedPage(t, b, Options{})

	if ok, _ := p.RequestStatusChange(context.Background(), "i-1", triage.StatusApproved); !ok {
		t.Fatal("approve not accepted")
	}
	if ok, _ := p.RequestStatusChange(context.Background(), "i-1", triage.StatusRejected); ok {
		t.Fatal("failed reject accepted")
	}

	var changes []tracetest.SpanStub
	for _, s := range exporter.GetSpans() {
		if s.Name == "dashboard.RequestStatusChange" {
			changes = append(changes, s)
		}
	}
	if len(changes) != 2 {
		t.Fatalf("status change spans = %d, want 2", len(changes))
	}

	attrs := make(map[string]any)
	for _, a := range changes[0].Attributes {
		attrs[string(a.Key)] = a.Value.AsInterface()
	}
	if attrs["issue.id"] != "i-1" || attrs["issue.target_status"] != string(triage.StatusApproved) {
		t.Errorf("span attributes = %v", attrs)
	}
	if changes[0].Status.Code == codes.Error {
		t.Error("successful change span has error status")
	}
	if changes[1].Status.Code != codes.Error {
		t.Errorf("failed change span status = %v, want Error", changes[1].Status.Code)
	}
	if len(changes[1].Events) == 0 {
		t.Error("failed change span recorded no error event")
	}
}
