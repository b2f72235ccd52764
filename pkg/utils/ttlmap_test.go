package utils_test

import (
	"testing"
	"time"

	"github.com/robalyx/roprofile/pkg/utils"
	"github.com/stretchr/testify/assert"
)

func TestTTLMap(t *testing.T) {
	t.Parallel()
	// Create a map with a short TTL for testing
	ttl := 100 * time.Millisecond
	m := utils.NewTTLMap[string, int](ttl)
	t.Cleanup(m.Close)

	t.Run("basic set and get", func(t *testing.T) {
		t.Parallel()
		m.Set("test1", 123)
		value, exists := m.Get("test1")
		assert.True(t, exists)
		assert.Equal(t, 123, value)
	})

	t.Run("expiration", func(t *testing.T) {
		t.Parallel()
		m.Set("test2", 456)
		time.Sleep(ttl + 50*time.Millisecond) // Wait for expiration

		_, exists := m.Get("test2")
		assert.False(t, exists)
	})

	t.Run("delete", func(t *testing.T) {
		t.Parallel()
		m.Set("test3", 789)
		m.Delete("test3")
		_, exists := m.Get("test3")
		assert.False(t, exists)
	})

	t.Run("non-existent key", func(t *testing.T) {
		t.Parallel()

		_, exists := m.Get("nonexistent")
		assert.False(t, exists)
	})

	t.Run("update existing key", func(t *testing.T) {
		t.Parallel()
		m.Set("test4", 111)
		m.Set("test4", 222)
		value, exists := m.Get("test4")
		assert.True(t, exists)
		assert.Equal(t, 222, value)
	})
}

func TestTTLMapGetOrCreate(t *testing.T) {
	t.Parallel()

	m := utils.NewTTLMap[string, *int](time.Minute)
	t.Cleanup(m.Close)

	calls := 0
	create := func() *int {
		calls++
		v := calls
		return &v
	}

	first := m.GetOrCreate("ip", create)
	second := m.GetOrCreate("ip", create)

	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, m.Len())
}

func TestTTLMapConcurrent(t *testing.T) {
	t.Parallel()

	ttl := 100 * time.Millisecond
	m := utils.NewTTLMap[string, int](ttl)
	t.Cleanup(m.Close)

	done := make(chan bool)

	go func() {
		for i := range 100 {
			m.Set("key", i)
		}

		done <- true
	}()

	go func() {
		for range 100 {
			m.Get("key")
		}

		done <- true
	}()

	// Wait for both goroutines to finish
	<-done
	<-done
}

func TestTTLMapNonPositiveTTL(t *testing.T) {
	t.Parallel()

	for _, ttl := range []time.Duration{0, -time.Second} {
		m := utils.NewTTLMap[string, int](ttl)
		t.Cleanup(m.Close)

		m.Set("key", 1)
		value, exists := m.Get("key")
		assert.True(t, exists)
		assert.Equal(t, 1, value)
	}
}
