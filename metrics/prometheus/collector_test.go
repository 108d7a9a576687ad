package prometheus

import (
	"errors"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counts(t *testing.T) {
	c := NewCollector("kdgo")

	c.RecordBuild(1000, time.Millisecond, nil)
	c.RecordBuild(0, time.Millisecond, errors.New("boom"))
	c.RecordSearch(5, 5, time.Microsecond, nil)
	c.RecordSearch(0, 12, time.Microsecond, nil)
	c.RecordBatch(10, 3, time.Millisecond)
	c.RecordSave(4096, time.Millisecond, nil)
	c.RecordLoad(time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("build", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("build", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("nearest", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("range", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("batch", "error")))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.batchQueries.WithLabelValues("success")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.batchQueries.WithLabelValues("error")))
	assert.Equal(t, 4096.0, testutil.ToFloat64(c.savedBytes))
}

func TestCollector_Register(t *testing.T) {
	c := NewCollector("kdgo")
	reg := prom.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))

	c.RecordSave(10, time.Millisecond, nil)
	expected := `
# HELP kdgo_saved_bytes_total Bytes written by saves.
# TYPE kdgo_saved_bytes_total counter
kdgo_saved_bytes_total 10
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "kdgo_saved_bytes_total"))
	assert.Positive(t, testutil.CollectAndCount(c))
}
