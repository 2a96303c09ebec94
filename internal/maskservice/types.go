package maskservice

import (
	"fmt"
	"image"
	"strings"
)

// RefineOrder controls whether the add layer is applied before or after the
// remove layer when combining.
type RefineOrder int

const (
	AddThenRemove RefineOrder = 0
	RemoveThenAdd RefineOrder = 1
)

func (o RefineOrder) String() string {
	if o == RemoveThenAdd {
		return "remove-then-add"
	}
	return "add-then-remove"
}

// ParseRefineOrder accepts the display names and the wire values "0"/"1".
func ParseRefineOrder(s string) (RefineOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "add-then-remove", "add", "0", "":
		return AddThenRemove, nil
	case "remove-then-add", "remove", "1":
		return RemoveThenAdd, nil
	}
	return AddThenRemove, fmt.Errorf("unknown refine order %q", s)
}

// SegmentRequest asks for mask candidates of the object described by Prompt.
type SegmentRequest struct {
	Prompt string `validate:"required"`
	Image  string `validate:"required"`
}

// CombineRequest merges a SAM mask with the user's add and remove layers.
// Each mask is an image reference or a base64 PNG data URL.
type CombineRequest struct {
	SamMask    string      `validate:"required"`
	AddMask    string      `validate:"required"`
	RemoveMask string      `validate:"required"`
	Order      RefineOrder `validate:"oneof=0 1"`
}

// CombinedMask is the server-computed union of the SAM mask and the user
// layers. Mask and Overlay hold the fetched images when available.
type CombinedMask struct {
	MaskRef    string
	OverlayRef string
	Mask       image.Image
	Overlay    image.Image
}

// GenerateRequest starts an image generation task. First generations upload
// BaseImage; follow-up generations reference InitImage and CombinedMask.
type GenerateRequest struct {
	Prompt         string   `validate:"required"`
	Count          int      `validate:"min=1,max=4"`
	Palette        []string `validate:"dive,hexcolor"`
	Next           bool
	BaseImage      []byte
	InitImage      string `validate:"required_if=Next true"`
	CombinedMask   string
	StyleReference []byte
}

// Task is the queue entry returned by the generation endpoints.
type Task struct {
	ID       string `json:"task_id"`
	Status   string `json:"status"`
	Position int    `json:"position"`
	Type     string `json:"type,omitempty"`
}

// Task states reported by the service.
const (
	TaskPending = "pending"
	TaskRunning = "running"
	TaskSuccess = "success"
	TaskFailed  = "failed"
)

// Progress is reported while a generation task is pending or running.
type Progress struct {
	TaskID   string
	Status   string
	Position int
	Fraction float64
	ETA      float64
	Attempt  int
}
