package sam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func candidates(n int) []Candidate {
	ids := []string{"a", "b", "c", "d"}
	out := make([]Candidate, n)
	for i := range out {
		out[i] = Candidate{ID: ids[i], MaskBitmap: "/masks/" + ids[i] + ".png"}
	}
	return out
}

func TestSetCandidatesSelectsFirst(t *testing.T) {
	c := New()
	c.SetCandidates(candidates(3))
	sel, ok := c.Selected()
	require.True(t, ok)
	assert.Equal(t, "a", sel.ID)

	c.SetCandidates(nil)
	_, ok = c.Selected()
	assert.False(t, ok)
}

func TestRequestSelectWithoutEdits(t *testing.T) {
	var seen []string
	c := New(
		WithGuard(func() bool { return false }, func() { t.Fatal("discard must not run") }),
		WithSelectListener(func(cand Candidate) { seen = append(seen, cand.ID) }),
	)
	list := candidates(3)
	c.SetCandidates(list)

	assert.Equal(t, Selected, c.RequestSelect(list[1]))
	sel, _ := c.Selected()
	assert.Equal(t, "b", sel.ID)
	assert.Equal(t, Unchanged, c.RequestSelect(list[1]))
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestRequestSelectNeedsConfirmation(t *testing.T) {
	dirty := true
	discarded := 0
	c := New(WithGuard(func() bool { return dirty }, func() { discarded++; dirty = false }))
	list := candidates(3)
	c.SetCandidates(list)

	assert.Equal(t, NeedsConfirmation, c.RequestSelect(list[2]))
	sel, _ := c.Selected()
	assert.Equal(t, "a", sel.ID)
	p, ok := c.Pending()
	require.True(t, ok)
	assert.Equal(t, "c", p.ID)

	assert.Equal(t, Selected, c.ConfirmSelect(list[2]))
	sel, _ = c.Selected()
	assert.Equal(t, "c", sel.ID)
	assert.Equal(t, 1, discarded)
	_, ok = c.Pending()
	assert.False(t, ok)
}

func TestCancelSelectKeepsSelection(t *testing.T) {
	c := New(WithGuard(func() bool { return true }, func() {}))
	list := candidates(2)
	c.SetCandidates(list)

	c.RequestSelect(list[1])
	c.CancelSelect()
	sel, _ := c.Selected()
	assert.Equal(t, "a", sel.ID)
	_, ok := c.Pending()
	assert.False(t, ok)
}

func TestSelectWithNoCandidatesLogs(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	c := New(WithLogger(zap.New(core)))

	assert.Equal(t, Ignored, c.RequestSelect(Candidate{ID: "a"}))
	assert.Equal(t, Ignored, c.ConfirmSelect(Candidate{ID: "a"}))
	assert.Equal(t, 2, logs.FilterMessage("no selected SAM mask found").Len())
}

func TestSelectUnknownCandidate(t *testing.T) {
	c := New()
	c.SetCandidates(candidates(2))
	assert.Equal(t, Ignored, c.RequestSelect(Candidate{ID: "zzz"}))
	sel, _ := c.Selected()
	assert.Equal(t, "a", sel.ID)
}
