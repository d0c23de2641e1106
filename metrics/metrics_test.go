package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommitted(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.Committed("create", 100, 0)
	m.Committed("create", 50, 0)
	m.Committed("delete", 0, 120)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.instructions.WithLabelValues("create")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.instructions.WithLabelValues("delete")))
	assert.Equal(t, 150.0, testutil.ToFloat64(m.charged))
	assert.Equal(t, 120.0, testutil.ToFloat64(m.refunded))
}

func TestRejected(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	m.Rejected("update", "invalid_expires_at")
	m.Rejected("update", "invalid_expires_at")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.rejections.WithLabelValues("update", "invalid_expires_at")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.rejections.WithLabelValues("update", "record_not_found")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Committed("create", 1, 1)
		m.Rejected("create", "x")
	})
}

func TestNew_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)
	m.Committed("append", 7, 0)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `bytestore_instructions_total{op="append"} 1`)
	assert.Contains(t, string(body), "bytestore_deposit_charged_total 7")
}
