package cli

import (
	"bytes"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netresearch/zrunner/test"
	"github.com/netresearch/zrunner/test/testutil"
)

func TestProgressIndicatorLogsWhenNotATerminal(t *testing.T) {
	t.Parallel()

	f, err := os.CreateTemp(t.TempDir(), "progress")
	require.NoError(t, err)
	defer f.Close()

	logger := test.NewTestLogger()
	p := NewProgressIndicator(logger, f, "Running tests")
	assert.False(t, p.isTerminal)

	p.Start()
	p.Start()
	assert.True(t, logger.HasMessage("Running tests..."))
	assert.Equal(t, 1, logger.MessageCount())

	p.Stop(true, "all good")
	assert.True(t, logger.HasMessage("all good"))
	p.Stop(false, "ignored after stop")
	assert.Equal(t, 2, logger.MessageCount())

	p = NewProgressIndicator(logger, f, "Running tests")
	p.Start()
	p.Stop(false, "2 failed")
	assert.True(t, logger.HasError("2 failed"))
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestProgressIndicatorAnimatesOnTerminal(t *testing.T) {
	t.Parallel()

	out := &lockedBuffer{}
	p := &ProgressIndicator{
		logger:     test.NewTestLogger(),
		writer:     out,
		message:    "Running tests",
		done:       make(chan struct{}),
		isTerminal: true,
	}

	ticks := make(chan time.Time)
	p.started = true
	go p.animate(ticks)
	ticks <- time.Now()
	ticks <- time.Now()

	testutil.Eventually(t, func() bool {
		return strings.Count(out.String(), "Running tests") == 2
	})
	assert.Contains(t, out.String(), "⠋ Running tests")
	assert.Contains(t, out.String(), "⠙ Running tests")

	p.Stop(true, "done")
	assert.True(t, strings.HasSuffix(out.String(), "\r"))
}
