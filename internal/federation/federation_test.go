package federation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrigger_FirstCallerWins(t *testing.T) {
	f := New()
	assert.True(t, f.Trigger("first"))
	assert.False(t, f.Trigger("second"))
	assert.Equal(t, "first", f.Reason())
	assert.True(t, f.Triggered())
}

func TestTrigger_ConcurrentCallers_SingleWinner(t *testing.T) {
	f := New()
	var wg sync.WaitGroup
	wins := make(chan string, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if f.Trigger("racer") {
				wins <- "won"
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	assert.Equal(t, 1, count)
}

func TestReset_AllowsRetrigger(t *testing.T) {
	f := New()
	f.Trigger("first")
	f.Reset()
	assert.False(t, f.Triggered())
	assert.Equal(t, "", f.Reason())
	assert.True(t, f.Trigger("second"))
}
