package opmetrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRoundIncrementsCountersOnSuccess(t *testing.T) {
	before := testutil.ToFloat64(roundsTotal)
	RecordRound(2*time.Second, 5, nil)
	after := testutil.ToFloat64(roundsTotal)
	if after != before+1 {
		t.Errorf("roundsTotal = %v, want %v", after, before+1)
	}
}

func TestRecordRoundIncrementsFailuresOnError(t *testing.T) {
	before := testutil.ToFloat64(roundFailuresTotal)
	RecordRound(time.Second, 0, errors.New("boom"))
	after := testutil.ToFloat64(roundFailuresTotal)
	if after != before+1 {
		t.Errorf("roundFailuresTotal = %v, want %v", after, before+1)
	}
}

func TestRecordRPCErrorTagsByMethod(t *testing.T) {
	before := testutil.ToFloat64(rpcErrorsTotal.WithLabelValues("claim"))
	RecordRPCError("claim")
	after := testutil.ToFloat64(rpcErrorsTotal.WithLabelValues("claim"))
	if after != before+1 {
		t.Errorf("rpcErrorsTotal{method=claim} = %v, want %v", after, before+1)
	}
}

func TestSetCumulativeDistributedSetsGauge(t *testing.T) {
	SetCumulativeDistributed("0xaaaa", 12345)
	got := testutil.ToFloat64(cumulativeDistributed.WithLabelValues("0xaaaa"))
	if got != 12345 {
		t.Errorf("cumulativeDistributed = %v, want 12345", got)
	}
}
