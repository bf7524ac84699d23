package client

import (
	"context"
	"errors"
	"fmt"
)

// State is the gallery interaction mode.
type State int

const (
	// StateBrowsing is the default read-only gallery view.
	StateBrowsing State = iota
	// StateSelecting allows toggling images for a compare or delete action.
	StateSelecting
	// StateComparing shows two selected images side by side.
	StateComparing
	// StateConfirmingDelete awaits confirmation before deleting the
	// selected images.
	StateConfirmingDelete
)

func (s State) String() string {
	switch s {
	case StateBrowsing:
		return "browsing"
	case StateSelecting:
		return "selecting"
	case StateComparing:
		return "comparing"
	case StateConfirmingDelete:
		return "confirming_delete"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// compareCount is the exact selection size a comparison requires.
const compareCount = 2

// ErrCompareNeedsTwo is returned when a comparison starts without exactly
// two selected images.
var ErrCompareNeedsTwo = errors.New("comparison requires exactly two selected images")

// ErrNothingSelected is returned when a delete starts with no selection.
var ErrNothingSelected = errors.New("no images selected")

// Selection is the gallery's selection state machine. Toggling only works
// in selecting mode; compare and delete gate on selection size before any
// transition. Not safe for concurrent use; it models a single view.
type Selection struct {
	api      API
	state    State
	images   []string
	selected map[string]bool
	order    []string

	// compared holds the snapshot taken when a comparison started, stable
	// even if the selection changes afterwards.
	compared [compareCount]string
}

// NewSelection creates a selection machine over the gallery's image ids,
// starting in browsing mode.
func NewSelection(api API, imageIDs []string) *Selection {
	return &Selection{
		api:      api,
		state:    StateBrowsing,
		images:   append([]string(nil), imageIDs...),
		selected: make(map[string]bool),
	}
}

// State returns the current interaction mode.
func (s *Selection) State() State { return s.state }

// Images returns the gallery's current image ids.
func (s *Selection) Images() []string {
	return append([]string(nil), s.images...)
}

// Selected returns the selected ids in the order they were toggled on.
func (s *Selection) Selected() []string {
	return append([]string(nil), s.order...)
}

// Enter switches from browsing to selecting mode. No-op elsewhere.
func (s *Selection) Enter() {
	if s.state == StateBrowsing {
		s.state = StateSelecting
	}
}

// Exit leaves selecting, comparing, or confirmation mode back to browsing
// and clears the selection.
func (s *Selection) Exit() {
	s.state = StateBrowsing
	s.clear()
}

// Toggle flips an image's selected state. Outside selecting mode, or for
// an id not in the gallery, it does nothing.
func (s *Selection) Toggle(imageID string) {
	if s.state != StateSelecting || !s.contains(imageID) {
		return
	}
	if s.selected[imageID] {
		delete(s.selected, imageID)
		for i, id := range s.order {
			if id == imageID {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
		return
	}
	s.selected[imageID] = true
	s.order = append(s.order, imageID)
}

// Compare transitions to comparing mode. Requires exactly two selected
// images; the pair is snapshotted so later selection changes cannot change
// what is being compared.
func (s *Selection) Compare() error {
	if s.state != StateSelecting {
		return fmt.Errorf("cannot compare while %s", s.state)
	}
	if len(s.order) != compareCount {
		return ErrCompareNeedsTwo
	}
	s.compared = [compareCount]string{s.order[0], s.order[1]}
	s.state = StateComparing
	return nil
}

// ComparedPair returns the snapshotted comparison pair. Only meaningful in
// comparing mode.
func (s *Selection) ComparedPair() (before, after string) {
	return s.compared[0], s.compared[1]
}

// CloseCompare leaves the comparison view back to selecting mode with the
// selection intact, so the pair can be adjusted and compared again.
func (s *Selection) CloseCompare() {
	if s.state == StateComparing {
		s.state = StateSelecting
		s.compared = [compareCount]string{}
	}
}

// RequestDelete transitions to the delete confirmation step. Requires at
// least one selected image.
func (s *Selection) RequestDelete() error {
	if s.state != StateSelecting {
		return fmt.Errorf("cannot delete while %s", s.state)
	}
	if len(s.order) == 0 {
		return ErrNothingSelected
	}
	s.state = StateConfirmingDelete
	return nil
}

// ConfirmDelete deletes every selected image, one request each. Images
// whose delete fails stay in the gallery; the joined errors are returned.
// Afterwards the selection is cleared and the machine returns to browsing
// regardless of partial failure, so the view always resyncs.
func (s *Selection) ConfirmDelete(ctx context.Context) error {
	if s.state != StateConfirmingDelete {
		return fmt.Errorf("cannot confirm delete while %s", s.state)
	}

	var errs []error
	deleted := make(map[string]bool)
	for _, id := range s.order {
		if err := s.api.DeleteImage(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("deleting image %s: %w", id, err))
			continue
		}
		deleted[id] = true
	}

	if len(deleted) > 0 {
		remaining := s.images[:0]
		for _, id := range s.images {
			if !deleted[id] {
				remaining = append(remaining, id)
			}
		}
		s.images = remaining
	}

	s.clear()
	s.state = StateBrowsing
	return errors.Join(errs...)
}

// CancelDelete abandons the confirmation step, keeping the selection.
func (s *Selection) CancelDelete() {
	if s.state == StateConfirmingDelete {
		s.state = StateSelecting
	}
}

func (s *Selection) contains(imageID string) bool {
	for _, id := range s.images {
		if id == imageID {
			return true
		}
	}
	return false
}

func (s *Selection) clear() {
	s.selected = make(map[string]bool)
	s.order = nil
	s.compared = [compareCount]string{}
}
