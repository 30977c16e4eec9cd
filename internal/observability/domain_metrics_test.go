package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveConversionDefaultsToOK(t *testing.T) {
	before := testutil.ToFloat64(conversionsTotal.WithLabelValues("ok"))
	ObserveConversion("")
	ObserveConversion("ok")
	if got := testutil.ToFloat64(conversionsTotal.WithLabelValues("ok")); got != before+2 {
		t.Fatalf("ok conversions = %v, want %v", got, before+2)
	}
}

func TestSetActiveSessionsClampsNegative(t *testing.T) {
	SetActiveSessions(-3)
	if got := testutil.ToFloat64(activeSessions); got != 0 {
		t.Fatalf("active sessions = %v", got)
	}
	SetActiveSessions(4)
	if got := testutil.ToFloat64(activeSessions); got != 4 {
		t.Fatalf("active sessions = %v", got)
	}
}

func TestSchemaAndBusyCounters(t *testing.T) {
	before := testutil.ToFloat64(schemaChangesTotal.WithLabelValues("import"))
	ObserveSchemaChange("import")
	if got := testutil.ToFloat64(schemaChangesTotal.WithLabelValues("import")); got != before+1 {
		t.Fatalf("schema imports = %v", got)
	}
	busyBefore := testutil.ToFloat64(busyRejectionsTotal)
	IncrementBusyRejection()
	if got := testutil.ToFloat64(busyRejectionsTotal); got != busyBefore+1 {
		t.Fatalf("busy rejections = %v", got)
	}
	ObserveInferenceLatency("text", 120*time.Millisecond)
}
