package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordProgressSave_SplitsByResult(t *testing.T) {
	okBefore := testutil.ToFloat64(progressSaves.WithLabelValues("ok"))
	errBefore := testutil.ToFloat64(progressSaves.WithLabelValues("error"))

	RecordProgressSave(nil)
	RecordProgressSave(errors.New("db down"))

	if got := testutil.ToFloat64(progressSaves.WithLabelValues("ok")) - okBefore; got != 1 {
		t.Errorf("expected 1 ok save, got %v", got)
	}
	if got := testutil.ToFloat64(progressSaves.WithLabelValues("error")) - errBefore; got != 1 {
		t.Errorf("expected 1 failed save, got %v", got)
	}
}

func TestRecordAccessDecision_NormalizesUnknownReasons(t *testing.T) {
	before := testutil.ToFloat64(accessDecisions.WithLabelValues("deny", "unknown"))

	RecordAccessDecision(false, "something-else")

	if got := testutil.ToFloat64(accessDecisions.WithLabelValues("deny", "unknown")) - before; got != 1 {
		t.Errorf("expected unknown reason to be counted once, got %v", got)
	}
}

func TestRecordSubscriptionsExpired_IgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(subscriptionsExpired)

	RecordSubscriptionsExpired(0)
	RecordSubscriptionsExpired(3)

	if got := testutil.ToFloat64(subscriptionsExpired) - before; got != 3 {
		t.Errorf("expected 3 expired subscriptions, got %v", got)
	}
}
