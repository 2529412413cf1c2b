package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestLastValueKeepsUpdate(t *testing.T) {
	r := LastValue[string]()
	assert.Equal(t, "new", r("old", "new"))
	assert.Equal(t, "", r("old", ""))
}

func TestAppendConcatenates(t *testing.T) {
	r := Append[int]()
	assert.Equal(t, []int{1, 2, 3}, r([]int{1, 2}, []int{3}))

	current := []int{1}
	assert.Equal(t, current, r(current, nil), "empty patch is a no-op")
}

func TestMergeMapUpdateWins(t *testing.T) {
	r := MergeMap[string, int]()
	got := r(map[string]int{"a": 1, "b": 2}, map[string]int{"b": 9, "c": 3})
	assert.Equal(t, map[string]int{"a": 1, "b": 9, "c": 3}, got)
}

// Append must behave like history: earlier entries are preserved as a
// prefix, nothing is dropped, and the result never shrinks.
func TestAppendIsHistoryPreserving(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		current := rapid.SliceOf(rapid.String()).Draw(t, "current")
		update := rapid.SliceOf(rapid.String()).Draw(t, "update")

		got := Append[string]()(current, update)

		if len(got) != len(current)+len(update) {
			t.Fatalf("length %d, want %d", len(got), len(current)+len(update))
		}
		for i, v := range current {
			if got[i] != v {
				t.Fatalf("prefix changed at %d: %q != %q", i, got[i], v)
			}
		}
		for i, v := range update {
			if got[len(current)+i] != v {
				t.Fatalf("suffix changed at %d: %q != %q", i, got[len(current)+i], v)
			}
		}
	})
}

func TestNewConversationIDFormat(t *testing.T) {
	id := NewConversationID()
	assert.Len(t, id, len("conv-")+8)
	assert.Contains(t, id, "conv-")
	assert.NotEqual(t, id, NewConversationID())
}

func TestTruncateQuery(t *testing.T) {
	assert.Equal(t, "short", TruncateQuery("short"))

	long := make([]byte, 500)
	for i := range long {
		long[i] = 'q'
	}
	assert.Len(t, TruncateQuery(string(long)), 160)
}
