package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveAndWrite(t *testing.T) {
	m := New()
	m.Observe("pixel", true, 3.5)
	m.Observe("pixel", false, 60)
	m.Observe("iphone", true, 7)

	require.Equal(t, 1.0, testutil.ToFloat64(m.Verifications.WithLabelValues("pixel", "fail")))
	require.Equal(t, 1, testutil.CollectAndCount(m.SyncSeconds))
	require.Equal(t, 3, testutil.CollectAndCount(m.Verifications))

	p := filepath.Join(t.TempDir(), "syncprobe.prom")
	require.NoError(t, m.WriteTextfile(p))
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	require.Contains(t, string(b), `syncprobe_verifications_total{result="pass",target="iphone"} 1`)
	require.Contains(t, string(b), "syncprobe_sync_seconds_count 2")
}
