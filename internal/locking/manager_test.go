package locking

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLock_SerializesHoldersOfTheSameKey(t *testing.T) {
	m := NewManager()

	// A racy read-modify-write only survives when the key is a real
	// mutex; the race detector flags it otherwise.
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Lock("position:1:1")
			counter++
			m.Unlock("position:1:1")
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestLock_DistinctKeysAreIndependent(t *testing.T) {
	m := NewManager()

	m.Lock("position:1:1")
	done := make(chan struct{})
	go func() {
		// Must not wait on the other key's holder.
		m.Lock("position:1:2")
		m.Unlock("position:1:2")
		close(done)
	}()

	<-done
	m.Unlock("position:1:1")
}

func TestUnlock_DropsIdleEntries(t *testing.T) {
	m := NewManager()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Lock("k")
			m.Unlock("k")
		}()
	}
	wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Empty(t, m.locks, "idle keys must not accumulate")
}
