package kvstore

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKVStore(t *testing.T) {
	s := New[string, int]()

	_, ok := s.Get("a")
	assert.False(t, ok)

	s.Set("a", 1)
	s.Set("b", 2)
	s.Set("a", 3)

	v, ok := s.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
	assert.Equal(t, 2, s.Len())

	assert.True(t, s.Remove("a"))
	assert.False(t, s.Remove("a"))
	assert.Equal(t, 1, s.Len())
}

func TestKVStoreRemoveFunc(t *testing.T) {
	s := New[string, int]()
	s.Set("inbox/1", 1)
	s.Set("inbox/2", 2)
	s.Set("sent/1", 3)

	removed := s.RemoveFunc(func(k string, _ int) bool {
		return strings.HasPrefix(k, "inbox/")
	})

	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, s.Len())

	_, ok := s.Get("sent/1")
	assert.True(t, ok)
}

func TestKVStoreConcurrentAccess(t *testing.T) {
	s := New[int, int]()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Set(i, i)
			_, _ = s.Get(i)
			_ = s.Len()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, s.Len())
}
