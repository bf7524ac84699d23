package client

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func newTestSelection(api API) *Selection {
	if api == nil {
		api = &mockAPI{}
	}
	return NewSelection(api, []string{"img-1", "img-2", "img-3"})
}

func TestToggle_OnlyInSelectingMode(t *testing.T) {
	s := newTestSelection(nil)

	// Browsing: toggles are ignored.
	s.Toggle("img-1")
	if len(s.Selected()) != 0 {
		t.Error("toggle must be a no-op while browsing")
	}

	s.Enter()
	s.Toggle("img-1")
	s.Toggle("img-2")
	if got := s.Selected(); len(got) != 2 || got[0] != "img-1" || got[1] != "img-2" {
		t.Errorf("unexpected selection %v", got)
	}

	// Toggling again deselects.
	s.Toggle("img-1")
	if got := s.Selected(); len(got) != 1 || got[0] != "img-2" {
		t.Errorf("expected img-2 only, got %v", got)
	}

	// Unknown ids are ignored.
	s.Toggle("img-nope")
	if len(s.Selected()) != 1 {
		t.Error("unknown id must not be selectable")
	}
}

func TestCompare_RequiresExactlyTwo(t *testing.T) {
	s := newTestSelection(nil)
	s.Enter()

	s.Toggle("img-1")
	if err := s.Compare(); !errors.Is(err, ErrCompareNeedsTwo) {
		t.Fatalf("expected ErrCompareNeedsTwo with one selected, got %v", err)
	}

	s.Toggle("img-2")
	s.Toggle("img-3")
	if err := s.Compare(); !errors.Is(err, ErrCompareNeedsTwo) {
		t.Fatalf("expected ErrCompareNeedsTwo with three selected, got %v", err)
	}

	s.Toggle("img-3")
	if err := s.Compare(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.State() != StateComparing {
		t.Errorf("expected comparing state, got %s", s.State())
	}
	before, after := s.ComparedPair()
	if before != "img-1" || after != "img-2" {
		t.Errorf("expected pair in toggle order, got %s/%s", before, after)
	}
}

func TestCloseCompare_KeepsSelection(t *testing.T) {
	s := newTestSelection(nil)
	s.Enter()
	s.Toggle("img-1")
	s.Toggle("img-2")
	if err := s.Compare(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.CloseCompare()
	if s.State() != StateSelecting {
		t.Errorf("expected selecting after closing compare, got %s", s.State())
	}
	if got := s.Selected(); len(got) != 2 || got[0] != "img-1" || got[1] != "img-2" {
		t.Errorf("expected selection intact, got %v", got)
	}

	// The pair can be adjusted and compared again.
	s.Toggle("img-2")
	s.Toggle("img-3")
	if err := s.Compare(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before, after := s.ComparedPair()
	if before != "img-1" || after != "img-3" {
		t.Errorf("expected new pair img-1/img-3, got %s/%s", before, after)
	}

	// Outside comparing mode it does nothing.
	s.Exit()
	s.CloseCompare()
	if s.State() != StateBrowsing {
		t.Errorf("expected browsing unchanged, got %s", s.State())
	}
}

func TestExit_ClearsSelection(t *testing.T) {
	s := newTestSelection(nil)
	s.Enter()
	s.Toggle("img-1")
	s.Toggle("img-2")
	if err := s.Compare(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.Exit()
	if s.State() != StateBrowsing {
		t.Errorf("expected browsing, got %s", s.State())
	}
	if len(s.Selected()) != 0 {
		t.Error("expected selection cleared")
	}
}

func TestRequestDelete_RequiresSelection(t *testing.T) {
	s := newTestSelection(nil)
	s.Enter()

	if err := s.RequestDelete(); !errors.Is(err, ErrNothingSelected) {
		t.Fatalf("expected ErrNothingSelected, got %v", err)
	}

	s.Toggle("img-1")
	if err := s.RequestDelete(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.State() != StateConfirmingDelete {
		t.Errorf("expected confirmation state, got %s", s.State())
	}
}

func TestCancelDelete_KeepsSelection(t *testing.T) {
	s := newTestSelection(nil)
	s.Enter()
	s.Toggle("img-1")
	if err := s.RequestDelete(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.CancelDelete()
	if s.State() != StateSelecting {
		t.Errorf("expected selecting state, got %s", s.State())
	}
	if got := s.Selected(); len(got) != 1 || got[0] != "img-1" {
		t.Errorf("expected selection kept, got %v", got)
	}
}

func TestConfirmDelete_RemovesDeletedImages(t *testing.T) {
	var deleted []string
	api := &mockAPI{
		deleteFn: func(ctx context.Context, imageID string) error {
			deleted = append(deleted, imageID)
			return nil
		},
	}
	s := newTestSelection(api)
	s.Enter()
	s.Toggle("img-1")
	s.Toggle("img-3")
	if err := s.RequestDelete(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.ConfirmDelete(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(deleted) != 2 {
		t.Fatalf("expected 2 delete calls, got %d", len(deleted))
	}
	if got := s.Images(); len(got) != 1 || got[0] != "img-2" {
		t.Errorf("expected only img-2 left, got %v", got)
	}
	if s.State() != StateBrowsing {
		t.Errorf("expected browsing after delete, got %s", s.State())
	}
	if len(s.Selected()) != 0 {
		t.Error("expected selection cleared")
	}
}

func TestConfirmDelete_PartialFailureKeepsFailedImage(t *testing.T) {
	api := &mockAPI{
		deleteFn: func(ctx context.Context, imageID string) error {
			if imageID == "img-2" {
				return fmt.Errorf("server error")
			}
			return nil
		},
	}
	s := newTestSelection(api)
	s.Enter()
	s.Toggle("img-1")
	s.Toggle("img-2")
	if err := s.RequestDelete(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := s.ConfirmDelete(context.Background())
	if err == nil {
		t.Fatal("expected the failed delete reported")
	}
	got := s.Images()
	if len(got) != 2 || got[0] != "img-2" || got[1] != "img-3" {
		t.Errorf("expected img-2 kept and img-1 removed, got %v", got)
	}
	if s.State() != StateBrowsing {
		t.Errorf("expected browsing even after partial failure, got %s", s.State())
	}
}
