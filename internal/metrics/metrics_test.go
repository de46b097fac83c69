package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := New()

	m.ChallengeIssued()
	m.AuthAttempt("success")
	m.AuthAttempt("failure")
	m.AuthAttempt("failure")
	m.LedgerCall("balanceOf", OutcomeTransient)
	m.LedgerRetry("balanceOf")
	m.BalanceFetch(20 * time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.challengesIssued))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.authAttempts.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ledgerRetries.WithLabelValues("balanceOf")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "walletauth_ledger_calls_total"))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ChallengeIssued()
		m.AuthAttempt("success")
		m.LedgerCall("native", OutcomeOK)
		m.LedgerRetry("native")
		m.BalanceFetch(time.Second)
	})
}
