package metrics

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveConfirmation(t *testing.T) {
	before := testutil.ToFloat64(ConfirmationsTotal.WithLabelValues("duplicate"))

	done := ObserveConfirmation()
	done("duplicate")

	assert.Equal(t, before+1, testutil.ToFloat64(ConfirmationsTotal.WithLabelValues("duplicate")))
}

func TestResult(t *testing.T) {
	assert.Equal(t, "ok", Result(nil))
	assert.Equal(t, "error", Result(errors.New("boom")))
}

func TestMetricsEndpoint(t *testing.T) {
	OrderSubmissionsTotal.WithLabelValues("direct", "published").Inc()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	for _, name := range []string{
		"campus_wallet_order_submissions_total",
		"campus_wallet_db_open_connections",
	} {
		assert.True(t, strings.Contains(body, name), "expected %s in metrics output", name)
	}
}

type fakeStats struct{}

func (fakeStats) Stats() sql.DBStats {
	return sql.DBStats{OpenConnections: 3, InUse: 1, WaitCount: 7}
}

func TestStartDBStatsCollector(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		StartDBStatsCollector(ctx, fakeStats{}, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(DBWaitCount) == 7
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, float64(3), testutil.ToFloat64(DBOpenConnections))

	cancel()
	<-done
}
