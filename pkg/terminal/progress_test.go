package terminal

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestProgressTracksScenarios(t *testing.T) {
	var out syncBuffer
	p := NewProgress(&out, 3)
	p.tick = 5 * time.Millisecond
	p.Start()

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "0/3 scenarios")
	}, time.Second, 5*time.Millisecond)

	p.Begin("admin-login")
	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "running admin-login")
	}, time.Second, 5*time.Millisecond)

	p.Finish("admin-login", true)
	p.Begin("profile")
	p.Finish("profile", false)
	finished, failed := p.Counts()
	assert.Equal(t, 2, finished)
	assert.Equal(t, 1, failed)
	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "2/3 scenarios, 1 failed")
	}, time.Second, 5*time.Millisecond)

	p.Stop()
	p.Stop()
	assert.True(t, strings.HasSuffix(out.String(), "\r\033[K"))
	assert.Greater(t, p.Elapsed(), time.Duration(0))
}

func TestProgressElapsedBeforeStart(t *testing.T) {
	p := NewProgress(&bytes.Buffer{}, 1)
	assert.Zero(t, p.Elapsed())
}
