package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedReplacement(t *testing.T) {
	c := NewCenter()

	c.ShowLoading("Transaction submitted...", "0xabc")
	c.ShowLoading("Still confirming...", "0xabc")

	active := c.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "Still confirming...", active[0].Message)
	assert.Equal(t, "0xabc", active[0].Key)
	assert.Equal(t, KindLoading, active[0].Kind)
}

func TestDismissRemovesToast(t *testing.T) {
	c := NewCenter()

	c.ShowLoading("Transaction submitted...", "0xabc")
	c.Dismiss("0xabc")

	assert.Empty(t, c.Active())

	// Dismissing an unknown key is a no-op.
	c.Dismiss("0xmissing")
	assert.Empty(t, c.Active())
}

func TestUnkeyedToastsGetDistinctKeys(t *testing.T) {
	c := NewCenter()

	c.ShowSuccess("first", "")
	c.ShowError("second", "")

	active := c.Active()
	require.Len(t, active, 2)
	assert.NotEqual(t, active[0].Key, active[1].Key)
	assert.Equal(t, "first", active[0].Message)
	assert.Equal(t, "second", active[1].Message)
}

func TestTerminalToastReplacesLoadingToast(t *testing.T) {
	c := NewCenter()

	c.ShowLoading("Transaction submitted...", "0xabc")
	c.ShowSuccess("Transaction confirmed", "0xabc")

	active := c.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "0xabc", active[0].Key)
	assert.Equal(t, KindSuccess, active[0].Kind)
	assert.False(t, active[0].Sticky, "terminal toast must expire on its own")
}

func TestNonStickyToastsExpire(t *testing.T) {
	c := NewCenter()

	current := time.Now()
	c.now = func() time.Time { return current }

	c.ShowSuccess("done", "")
	c.ShowLoading("waiting", "0xabc")

	current = current.Add(defaultTTL + time.Second)

	active := c.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "0xabc", active[0].Key, "sticky loading toast must survive until dismissed")
}

func TestDisplayOrderIsInsertionOrder(t *testing.T) {
	c := NewCenter()

	c.ShowLoading("a", "ka")
	c.ShowLoading("b", "kb")
	c.ShowLoading("a again", "ka")

	active := c.Active()
	require.Len(t, active, 2)
	assert.Equal(t, "a again", active[0].Message, "replacement keeps original position")
	assert.Equal(t, "b", active[1].Message)
}
