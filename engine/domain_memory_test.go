package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/use-agent/fetchwise/engine"
)

func TestDomainMemory(t *testing.T) {
	t.Parallel()

	t.Run("remembers until the ttl expires", func(t *testing.T) {
		t.Parallel()

		m := engine.NewDomainMemory(30 * time.Millisecond)
		defer m.Stop()

		m.Set("example.com", "rod")
		assert.Equal(t, "rod", m.Get("example.com"))
		assert.Empty(t, m.Get("other.com"))

		time.Sleep(50 * time.Millisecond)
		assert.Empty(t, m.Get("example.com"))
	})

	t.Run("delete forgets a domain", func(t *testing.T) {
		t.Parallel()

		m := engine.NewDomainMemory(time.Hour)
		defer m.Stop()

		m.Set("example.com", "rod")
		assert.Equal(t, 1, m.Len())
		m.Delete("example.com")
		assert.Empty(t, m.Get("example.com"))
		assert.Equal(t, 0, m.Len())
	})
}
