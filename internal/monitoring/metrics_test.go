package monitoring

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	m := New(true)
	assert.NotNil(t, m)
	assert.True(t, m.enabled)

	m2 := New(false)
	assert.NotNil(t, m2)
	assert.False(t, m2.enabled)
}

func TestObserveCall_Enabled(t *testing.T) {
	OracleCallsTotal.Reset()

	m := New(true)
	m.ObserveCall("success")
	m.ObserveCall("fallback")

	count := testutil.CollectAndCount(OracleCallsTotal)
	assert.Equal(t, 2, count)
}

func TestObserveCall_DisabledIsNoop(t *testing.T) {
	OracleCallsTotal.Reset()

	m := New(false)
	m.ObserveCall("success")

	count := testutil.CollectAndCount(OracleCallsTotal)
	assert.Equal(t, 0, count)
}

func TestObserveRetryAndFallback_Increment(t *testing.T) {
	before := testutil.ToFloat64(OracleRetryTotal)
	m := New(true)
	m.ObserveRetry()
	assert.Equal(t, before+1, testutil.ToFloat64(OracleRetryTotal))

	beforeFallback := testutil.ToFloat64(OracleFallbackTotal)
	m.ObserveFallback()
	assert.Equal(t, beforeFallback+1, testutil.ToFloat64(OracleFallbackTotal))
}

func TestRecordInsert_AddsByOutcome(t *testing.T) {
	InsertTotal.Reset()

	m := New(true)
	m.RecordInsert("inserted", 5)
	m.RecordInsert("skipped", 2)
	m.RecordInsert("failed", 0)

	assert.Equal(t, float64(5), testutil.ToFloat64(InsertTotal.WithLabelValues("inserted")))
	assert.Equal(t, float64(2), testutil.ToFloat64(InsertTotal.WithLabelValues("skipped")))
}

func TestUpdateRateLimiterRPM_SetsGauge(t *testing.T) {
	m := New(true)
	m.UpdateRateLimiterRPM(17)
	assert.Equal(t, float64(17), testutil.ToFloat64(RateLimiterRPMCurrent))
}
