package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDateLocks_SerializesSameDate(t *testing.T) {
	locks := newDateLocks()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("2024-01-01")
			defer unlock()

			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Zero(t, locks.size(), "released locks are removed")
}

func TestDateLocks_IndependentDates(t *testing.T) {
	locks := newDateLocks()

	unlockA := locks.Lock("2024-01-01")
	unlockB := locks.Lock("2024-01-02")
	assert.Equal(t, 2, locks.size())

	unlockA()
	unlockB()
	assert.Zero(t, locks.size())
}
