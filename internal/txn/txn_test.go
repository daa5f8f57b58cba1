package txn_test

import (
	"errors"
	"testing"

	"github.com/alejandrodnm/rangekeeper/internal/txn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct{ n int }

func (c *counter) Snapshot() any { return c.n }
func (c *counter) Restore(s any) { c.n = s.(int) }

var errBoom = errors.New("boom")

func TestManager_RollbackOnError(t *testing.T) {
	m := txn.NewManager()
	c := &counter{}
	m.Register(c)

	err := m.Run(func() error {
		c.n = 5
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 0, c.n)
}

func TestManager_InnerFailureIsIsolated(t *testing.T) {
	m := txn.NewManager()
	c := &counter{}
	m.Register(c)

	err := m.Run(func() error {
		c.n = 1
		inner := m.Run(func() error {
			c.n = 99
			return errBoom
		})
		assert.ErrorIs(t, inner, errBoom)
		assert.Equal(t, 1, c.n)
		c.n++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, c.n)
}

func TestManager_OuterFailureUndoesCommittedInner(t *testing.T) {
	m := txn.NewManager()
	c := &counter{}
	m.Register(c)

	err := m.Run(func() error {
		require.NoError(t, m.Run(func() error {
			c.n = 7
			return nil
		}))
		return errBoom
	})
	require.Error(t, err)
	assert.Equal(t, 0, c.n)
}

func TestManager_CommitCallbackOnlyOnOutermost(t *testing.T) {
	m := txn.NewManager()
	commits := 0
	m.OnCommit(func() { commits++ })

	require.NoError(t, m.Run(func() error {
		return m.Run(func() error { return nil })
	}))
	assert.Equal(t, 1, commits)

	_ = m.Run(func() error { return errBoom })
	assert.Equal(t, 1, commits)
	assert.Equal(t, 0, m.Depth())
}

func TestManager_PanicRestores(t *testing.T) {
	m := txn.NewManager()
	c := &counter{}
	m.Register(c)

	assert.Panics(t, func() {
		_ = m.Run(func() error {
			c.n = 3
			panic("bad")
		})
	})
	assert.Equal(t, 0, c.n)
	assert.Equal(t, 0, m.Depth())
}
