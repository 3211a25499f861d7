package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.Write(&out))
	switch {
	case out.Counter != nil:
		return out.Counter.GetValue()
	case out.Gauge != nil:
		return out.Gauge.GetValue()
	}
	t.Fatalf("unsupported metric type")
	return 0
}

func TestRecordExport(t *testing.T) {
	before := value(t, ExportBytesTotal.WithLabelValues("webp"))
	RecordExport("webp", "success", 1024)
	RecordExport("webp", "error", 0)

	assert.Equal(t, before+1024, value(t, ExportBytesTotal.WithLabelValues("webp")))
	assert.GreaterOrEqual(t, value(t, ExportsTotal.WithLabelValues("webp", "error")), 1.0)
}

func TestSetOverlays(t *testing.T) {
	SetOverlays(3)
	assert.Equal(t, 3.0, value(t, OverlaysActive))
}
