package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record[T any](c *Collection[T]) (*[]Change[T], func()) {
	var got []Change[T]
	unsub := c.subscribe(func(ch Change[T]) { got = append(got, ch) })
	return &got, unsub
}

func TestCollection_Notifications(t *testing.T) {
	c := NewCollection("a", "b")
	got, _ := record(c)

	c.Add("c")
	require.Equal(t, 1, c.RemoveFunc(func(s string) bool { return s == "a" }))
	require.True(t, c.Replace(func(s string) bool { return s == "b" }, "B"))
	c.Clear()

	assert.Equal(t, []Change[string]{
		{Action: ActionAdd, New: []string{"c"}},
		{Action: ActionRemove, Old: []string{"a"}},
		{Action: ActionReplace, Old: []string{"b"}, New: []string{"B"}},
		{Action: ActionReset},
	}, *got)
	assert.Equal(t, 0, c.Len())
}

func TestCollection_NoOpsDoNotNotify(t *testing.T) {
	c := NewCollection("a")
	got, _ := record(c)

	c.Add()
	assert.Equal(t, 0, c.RemoveFunc(func(string) bool { return false }))
	assert.False(t, c.Replace(func(string) bool { return false }, "x"))

	assert.Empty(t, *got)
}

func TestCollection_Unsubscribe(t *testing.T) {
	c := NewCollection[string]()
	got, unsub := record(c)
	assert.Equal(t, 1, c.Subscribers())

	unsub()
	unsub()
	c.Add("a")

	assert.Empty(t, *got)
	assert.Equal(t, 0, c.Subscribers())
}

func TestCollection_WatchSendsSnapshotFirst(t *testing.T) {
	c := NewCollection("a", "b")
	var got []Change[string]
	c.Watch(func(ch Change[string]) { got = append(got, ch) })
	c.Add("c")

	assert.Equal(t, []Change[string]{
		{Action: ActionAdd, New: []string{"a", "b"}},
		{Action: ActionAdd, New: []string{"c"}},
	}, got)

	empty := NewCollection[string]()
	var none []Change[string]
	empty.Watch(func(ch Change[string]) { none = append(none, ch) })
	assert.Empty(t, none)
}

func TestCollection_PatchIsSilent(t *testing.T) {
	c := NewCollection("a", "b", "a")
	got, _ := record(c)

	n := c.Patch(func(s string) bool { return s == "a" }, func(string) string { return "z" })

	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"z", "b", "z"}, c.Items())
	assert.Empty(t, *got)
}

func TestCollection_ItemsIsCopy(t *testing.T) {
	c := NewCollection("a")
	items := c.Items()
	items[0] = "mutated"
	assert.Equal(t, []string{"a"}, c.Items())
}
