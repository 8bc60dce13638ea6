package core

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

type metricObservation struct {
	op      string
	success bool
}

type captureMetricsRecorder struct {
	mu  sync.Mutex
	obs []metricObservation
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.mu.Lock()
	c.obs = append(c.obs, metricObservation{op: op, success: success})
	c.mu.Unlock()
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, o := range c.obs {
		if o.op == op && o.success == success {
			return true
		}
	}
	return false
}

type spanRecord struct {
	op  string
	err error
}

type captureTracer struct {
	mu    sync.Mutex
	ended []spanRecord
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	return ctx, &captureSpan{tracer: c, op: op}
}

func (c *captureTracer) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rec := range c.ended {
		if rec.op == op && (rec.err == nil) == success {
			return true
		}
	}
	return false
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.mu.Lock()
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
	s.tracer.mu.Unlock()
}

func TestServiceObservability(t *testing.T) {
	ctx := context.Background()
	metrics := &captureMetricsRecorder{}
	tracer := &captureTracer{}
	audit := NewMemoryAuditLog(16)

	svc := newTestService(
		WithMetricsRecorder(metrics),
		WithTracer(tracer),
		WithAuditRecorder(audit),
	)

	product := seedProduct(t, svc, 12)
	if !metrics.has("create_product", true) {
		t.Fatal("expected metrics observation for create_product success")
	}
	if !tracer.has("create_product", true) {
		t.Fatal("expected trace span for create_product success")
	}

	if _, _, err := svc.AdjustStock(ctx, "missing-product", 1, MovementAdjusted, "", "admin"); err == nil {
		t.Fatal("expected adjust on missing product to fail")
	}
	if !metrics.has("adjust_stock", false) {
		t.Fatal("expected metrics observation for failed adjust_stock")
	}
	if !tracer.has("adjust_stock", false) {
		t.Fatal("expected trace span for failed adjust_stock")
	}

	entries := audit.Entries()
	var sawCreate, sawFailedAdjust bool
	for _, entry := range entries {
		if entry.Operation == "create_product" && entry.Status == AuditStatusSuccess && entry.EntityID == product.ID {
			sawCreate = true
		}
		if entry.Operation == "adjust_stock" && entry.Status == AuditStatusError && entry.Error != "" {
			sawFailedAdjust = true
		}
	}
	if !sawCreate {
		t.Fatal("expected audit entry for create_product success")
	}
	if !sawFailedAdjust {
		t.Fatal("expected audit entry for failed adjust_stock")
	}
}

func TestExpvarMetricsRecorderSnapshot(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	rec.Observe(context.Background(), "review_prescription", true, 20*time.Millisecond)
	rec.Observe(context.Background(), "review_prescription", false, 5*time.Millisecond)
	rec.Observe(context.Background(), "", true, time.Millisecond)

	snap := rec.Snapshot()
	if snap.Outcomes["review_prescription"]["success"] != 1 {
		t.Fatalf("expected one success, got %+v", snap.Outcomes)
	}
	if snap.Outcomes["review_prescription"]["error"] != 1 {
		t.Fatalf("expected one error, got %+v", snap.Outcomes)
	}
	if snap.DurationsMS["review_prescription"] < 24 || snap.DurationsMS["review_prescription"] > 26 {
		t.Fatalf("expected ~25ms total, got %f", snap.DurationsMS["review_prescription"])
	}
	if len(snap.Outcomes) != 1 {
		t.Fatalf("empty operation names must be ignored, got %+v", snap.Outcomes)
	}
}

func TestJSONTracerEmitsSpans(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)

	_, span := tracer.Start(context.Background(), "advance_order")
	span.End(nil)
	_, span = tracer.Start(context.Background(), "cancel_order")
	span.End(context.DeadlineExceeded)

	entries := tracer.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(entries))
	}
	if entries[0].Status != "success" || entries[1].Status != "error" {
		t.Fatalf("unexpected statuses: %+v", entries)
	}
	if entries[1].Error == "" {
		t.Fatal("expected error message on failed span")
	}
	out := buf.String()
	if !strings.Contains(out, "advance_order") || !strings.Contains(out, "cancel_order") {
		t.Fatalf("expected both spans encoded, got %s", out)
	}
}

func TestMemoryAuditLogLimit(t *testing.T) {
	log := NewMemoryAuditLog(2)
	for _, op := range []string{"a", "b", "c"} {
		log.Record(context.Background(), AuditEntry{Operation: op})
	}
	entries := log.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected retention limit 2, got %d", len(entries))
	}
	if entries[0].Operation != "b" || entries[1].Operation != "c" {
		t.Fatalf("expected oldest entries evicted, got %+v", entries)
	}
}
