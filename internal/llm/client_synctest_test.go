//go:build goexperiment.synctest

package llm

import (
	"context"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// End-to-end pacing under a fake clock: the third invocation of a 2-RPM
// budget must stall until the first send leaves the 60-second window.
func TestDoPacesAtConfiguredRPM(t *testing.T) {
	synctest.Run(func() {
		cfg := testConfig()
		cfg.Limits.MaxRPM = 2
		cfg.Limits.WindowSeconds = 60

		c, err := New(cfg, okHandler(10))
		require.NoError(t, err)

		start := time.Now()
		for i := 0; i < 2; i++ {
			_, derr := c.Do(context.Background(), generateRequest())
			require.NoError(t, derr)
		}
		assert.Equal(t, time.Duration(0), time.Since(start), "budget admits the first two immediately")

		_, err = c.Do(context.Background(), generateRequest())
		require.NoError(t, err)
		assert.Equal(t, 60*time.Second, time.Since(start))

		rpmStats, _ := c.GateStats()
		assert.Equal(t, uint64(1), rpmStats.Waits)
	})
}

// A raised ceiling takes effect on the next admission check: what would
// have blocked for a full window passes immediately.
func TestDoObservesRuntimeLimitChange(t *testing.T) {
	synctest.Run(func() {
		cfg := testConfig()
		cfg.Limits.MaxRPM = 1
		cfg.Limits.WindowSeconds = 60

		c, err := New(cfg, okHandler(10))
		require.NoError(t, err)

		_, err = c.Do(context.Background(), generateRequest())
		require.NoError(t, err)

		c.SetLimits(10, 0)

		start := time.Now()
		_, err = c.Do(context.Background(), generateRequest())
		require.NoError(t, err)
		assert.Equal(t, time.Duration(0), time.Since(start))
	})
}
