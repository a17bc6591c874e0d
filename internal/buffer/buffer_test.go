package buffer

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppendKeepsArrivalOrderPerConnection(t *testing.T) {
	s := New(0)
	s.Append("a", "x1")
	s.Append("b", "y1")
	s.Append("a", "x2")
	s.Append("a", "x2")
	s.Append("b", "y2")

	assert.Equal(t, "x1\nx2\nx2", s.Joined("a"), "no dedup, no reordering")
	assert.Equal(t, "y1\ny2", s.Joined("b"))
	assert.Equal(t, "", s.Joined("missing"))
}

func TestBoundedRingEvictsOldest(t *testing.T) {
	s := New(3)
	for i := 1; i <= 5; i++ {
		s.Append("a", fmt.Sprintf("c%d", i))
	}
	assert.Equal(t, []string{"c3", "c4", "c5"}, s.Chunks("a"))
	assert.Equal(t, Stats{Chunks: 3, Total: 5, Dropped: 2}, s.Stats("a"))
}

func TestClear(t *testing.T) {
	s := New(2)
	s.Append("a", "x")
	s.Clear("a")
	assert.Equal(t, 0, s.Len("a"))
	assert.Equal(t, Stats{}, s.Stats("a"))
	s.Append("a", "y")
	assert.Equal(t, "y", s.Joined("a"))
}

func TestConcurrentAppendsAcrossConnections(t *testing.T) {
	s := New(0)
	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				s.Append(id, fmt.Sprint(i))
			}
		}(id)
	}
	wg.Wait()
	for _, id := range []string{"a", "b", "c"} {
		chunks := s.Chunks(id)
		assert.Len(t, chunks, 100)
		for i, c := range chunks {
			assert.Equal(t, fmt.Sprint(i), c)
		}
	}
}
