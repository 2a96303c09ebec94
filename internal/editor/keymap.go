package editor

import (
	"golang.org/x/mobile/event/key"
)

// Action is something a key press asks the editor to do.
type Action int

const (
	ActionNone Action = iota
	ActionLayerAdd
	ActionLayerRemove
	ActionToggleErase
	ActionBrushSmaller
	ActionBrushLarger
	ActionToggleVisible
	ActionClear
	ActionSelect
	ActionConfirm
	ActionCancel
	ActionGenerate
	ActionPreview
	ActionToggleOrder
	ActionTogglePreview
	ActionApply
	ActionSave
	ActionCopy
	ActionOpacityDown
	ActionOpacityUp
	ActionNextImage
	ActionQuit
)

// Binding is a resolved key press. Index is the candidate for ActionSelect.
type Binding struct {
	Action Action
	Index  int
}

// Shortcut describes a key for the help line.
type Shortcut struct {
	Key  string
	Help string
}

var shortcuts = []Shortcut{
	{"A/R", "add/remove layer"},
	{"E", "erase"},
	{"[ ]", "brush"},
	{"V", "visible"},
	{"C", "clear"},
	{"1-9", "candidate"},
	{"G", "segment"},
	{"P", "preview"},
	{"Enter", "apply"},
	{"S", "save"},
	{"Ctrl+C", "copy"},
}

// Shortcuts returns the keys listed in the editor's help line.
func Shortcuts() []Shortcut {
	return append([]Shortcut(nil), shortcuts...)
}

// Resolve maps a key event to an editor action. Releases resolve to
// ActionNone so holding a key repeats the press action only.
func Resolve(e key.Event) Binding {
	if e.Direction == key.DirRelease {
		return Binding{}
	}
	if e.Modifiers&key.ModControl != 0 {
		switch e.Code {
		case key.CodeC:
			return Binding{Action: ActionCopy}
		case key.CodeQ, key.CodeW:
			return Binding{Action: ActionQuit}
		}
		return Binding{}
	}
	switch e.Code {
	case key.CodeReturnEnter, key.CodeKeypadEnter:
		return Binding{Action: ActionApply}
	case key.CodeEscape:
		return Binding{Action: ActionCancel}
	case key.CodeTab:
		return Binding{Action: ActionNextImage}
	}
	switch e.Rune {
	case 'a', 'A':
		return Binding{Action: ActionLayerAdd}
	case 'r', 'R':
		return Binding{Action: ActionLayerRemove}
	case 'e', 'E':
		return Binding{Action: ActionToggleErase}
	case '[':
		return Binding{Action: ActionBrushSmaller}
	case ']':
		return Binding{Action: ActionBrushLarger}
	case 'v', 'V':
		return Binding{Action: ActionToggleVisible}
	case 'c', 'C':
		return Binding{Action: ActionClear}
	case 'y', 'Y':
		return Binding{Action: ActionConfirm}
	case 'n', 'N':
		return Binding{Action: ActionCancel}
	case 'g', 'G':
		return Binding{Action: ActionGenerate}
	case 'p', 'P':
		return Binding{Action: ActionPreview}
	case 'o', 'O':
		return Binding{Action: ActionToggleOrder}
	case 't', 'T':
		return Binding{Action: ActionTogglePreview}
	case 's', 'S':
		return Binding{Action: ActionSave}
	case '-':
		return Binding{Action: ActionOpacityDown}
	case '+', '=':
		return Binding{Action: ActionOpacityUp}
	case 'q', 'Q':
		return Binding{Action: ActionQuit}
	case '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return Binding{Action: ActionSelect, Index: int(e.Rune - '1')}
	}
	return Binding{}
}
