package testutil

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/elbkind/feature-hub/internal/ctxlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeBuffer_ConcurrentWrites(t *testing.T) {
	buf := &SafeBuffer{}
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = buf.Write([]byte("x"))
		}()
	}
	wg.Wait()
	assert.Len(t, buf.String(), 10)
}

func TestContext_CapturesDebugLogs(t *testing.T) {
	ctx, buf := Context(t)
	ctxlog.FromContext(ctx).Debug("Captured.", "key", "value")
	assert.Contains(t, buf.String(), "key=value")
}

func TestWriteFiles(t *testing.T) {
	dir := WriteFiles(t, map[string]string{"nested/a.hcl": "content"})
	data, err := os.ReadFile(filepath.Join(dir, "nested", "a.hcl"))
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
}
