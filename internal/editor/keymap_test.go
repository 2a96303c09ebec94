package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/mobile/event/key"
)

func TestResolve(t *testing.T) {
	cases := []struct {
		name string
		ev   key.Event
		want Binding
	}{
		{"add layer", key.Event{Rune: 'a', Direction: key.DirPress}, Binding{Action: ActionLayerAdd}},
		{"remove layer", key.Event{Rune: 'R', Direction: key.DirPress}, Binding{Action: ActionLayerRemove}},
		{"erase", key.Event{Rune: 'e', Direction: key.DirPress}, Binding{Action: ActionToggleErase}},
		{"smaller", key.Event{Rune: '[', Direction: key.DirPress}, Binding{Action: ActionBrushSmaller}},
		{"larger", key.Event{Rune: ']', Direction: key.DirPress}, Binding{Action: ActionBrushLarger}},
		{"first candidate", key.Event{Rune: '1', Direction: key.DirPress}, Binding{Action: ActionSelect, Index: 0}},
		{"ninth candidate", key.Event{Rune: '9', Direction: key.DirPress}, Binding{Action: ActionSelect, Index: 8}},
		{"confirm", key.Event{Rune: 'y', Direction: key.DirPress}, Binding{Action: ActionConfirm}},
		{"cancel", key.Event{Rune: 'n', Direction: key.DirPress}, Binding{Action: ActionCancel}},
		{"escape cancels", key.Event{Rune: -1, Code: key.CodeEscape, Direction: key.DirPress}, Binding{Action: ActionCancel}},
		{"apply", key.Event{Rune: -1, Code: key.CodeReturnEnter, Direction: key.DirPress}, Binding{Action: ActionApply}},
		{"copy", key.Event{Rune: 'c', Code: key.CodeC, Modifiers: key.ModControl, Direction: key.DirPress}, Binding{Action: ActionCopy}},
		{"plain c clears", key.Event{Rune: 'c', Code: key.CodeC, Direction: key.DirPress}, Binding{Action: ActionClear}},
		{"repeat", key.Event{Rune: ']', Direction: key.DirNone}, Binding{Action: ActionBrushLarger}},
		{"release ignored", key.Event{Rune: 'a', Direction: key.DirRelease}, Binding{}},
		{"unbound ctrl", key.Event{Rune: 'x', Code: key.CodeX, Modifiers: key.ModControl, Direction: key.DirPress}, Binding{}},
		{"unbound", key.Event{Rune: 'z', Direction: key.DirPress}, Binding{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Resolve(tc.ev))
		})
	}
}

func TestShortcutsAreCopied(t *testing.T) {
	sc := Shortcuts()
	sc[0].Key = "changed"
	assert.NotEqual(t, "changed", Shortcuts()[0].Key)
}
