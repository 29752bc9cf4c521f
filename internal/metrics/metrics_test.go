package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipt-parser/internal/core/parser"
)

func TestObserveParse(t *testing.T) {
	m := New()
	m.ObserveParse("TEXT", parser.Parse("Total: | 6.99 CAD", nil), 5*time.Millisecond)
	m.ObserveParse("TEXT", parser.Parse("", nil), time.Millisecond)
	m.ObserveParse("", parser.Result{}, 0)
	m.ObserveFailure("extract")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.parses.WithLabelValues("TEXT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.parses.WithLabelValues("unknown")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.needsReview.WithLabelValues("TEXT")), "no vendor and empty input both need review")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fieldHits.WithLabelValues("amount")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fieldHits.WithLabelValues("currency")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.fieldHits.WithLabelValues("tax")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("extract")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.confidence))
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.ObserveFailure("save")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `receipt_parser_failures_total{stage="save"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
