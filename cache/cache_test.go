package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreAndGet(t *testing.T) {
	c := New[string]()
	c.Store("run-1", "sampling")
	require.Equal(t, "sampling", c.Get("run-1"))
	require.Equal(t, "", c.Get("run-2"))
}

func TestRemove(t *testing.T) {
	c := New[int]()
	c.Store("run-1", 1)
	c.Store("run-2", 2)
	c.Remove("run-1")
	require.Equal(t, 0, c.Get("run-1"))
	require.ElementsMatch(t, []string{"run-2"}, c.GetKeys())
}
