package common

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSafeGo_RecoversPanic(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)

	SafeGo(GetLogger(), "panicking", func() {
		defer wg.Done()
		panic("boom")
	})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		assert.Fail(t, "goroutine did not finish")
	}
}

func TestRecover_NoPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		func() {
			defer Recover(nil, "quiet")
		}()
	})
}
