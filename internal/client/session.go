package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// CaptureOrder is the slot sequence a capture session advances through.
var CaptureOrder = []string{"front", "right", "back", "left"}

// ErrNoCustomer is returned when a capture starts before a customer has
// been chosen. Nothing is sent to the server in that case.
var ErrNoCustomer = errors.New("no customer selected for capture session")

// ErrAlreadyLinked is returned when a session's group is linked to a lesson
// a second time.
var ErrAlreadyLinked = errors.New("capture session already linked to a lesson")

// Preview is what the session holds for one captured position: the local
// data URL shown immediately, and the server's record once the upload lands.
type Preview struct {
	Position string

	// LocalURL is the data-URL preview rendered before any network round
	// trip. Always set.
	LocalURL string

	// Remote is nil while the position is preview-only: the upload failed
	// or has not completed, and the capture survives locally.
	Remote *UploadedImage
}

// Uploaded reports whether the server has acknowledged this capture.
func (p *Preview) Uploaded() bool { return p.Remote != nil }

// Session coordinates the uploads of one capture sitting: it allocates the
// temporary group token, pushes each framed capture to the server, keeps
// last-wins previews per position, and performs the one-shot lesson link.
// Safe for concurrent use; uploads for different positions may be in flight
// at once.
type Session struct {
	api API
	now func() time.Time

	mu         sync.Mutex
	customerID string
	group      GroupID
	previews   map[string]*Preview
	linked     bool
}

// NewSession creates a capture session for one customer.
func NewSession(api API, customerID string) *Session {
	return &Session{
		api:        api,
		now:        time.Now,
		customerID: customerID,
		previews:   make(map[string]*Preview),
	}
}

// EnsureGroup returns the session's group reference, allocating the
// temporary token on first use. Requires a customer: a session with nobody
// to attribute the photos to must not touch the server.
func (s *Session) EnsureGroup() (GroupID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureGroupLocked()
}

func (s *Session) ensureGroupLocked() (GroupID, error) {
	if s.customerID == "" {
		return GroupID{}, ErrNoCustomer
	}
	if s.group.IsZero() {
		s.group = NewTemporaryGroupID(s.now())
	}
	return s.group, nil
}

// Upload sends one framed capture to the server. On success the preview for
// that position is replaced (recapturing a position last-wins) and the
// session adopts the server's group id. On failure the local preview is
// kept so the capture is not lost; the caller may retry.
func (s *Session) Upload(ctx context.Context, frame *Frame, consent bool) (*Preview, error) {
	s.mu.Lock()
	group, err := s.ensureGroupLocked()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	preview := &Preview{Position: frame.Position, LocalURL: frame.DataURL}
	s.previews[frame.Position] = preview
	s.mu.Unlock()

	uploaded, err := s.api.UploadImage(ctx, UploadRequest{
		GroupRef:   group.String(),
		CustomerID: s.customerID,
		Position:   frame.Position,
		Consent:    consent,
		MimeType:   frame.MimeType,
		Data:       frame.Data,
	})
	if err != nil {
		return preview, fmt.Errorf("uploading %s capture: %w", frame.Position, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	preview.Remote = uploaded
	// Later uploads reference the server id directly instead of making the
	// server resolve the token again.
	if s.group.Temporary() {
		s.group = PersistedGroupID(uploaded.PostureGroupID)
	}
	return preview, nil
}

// Previews returns the session's captures in capture order. Positions never
// captured are absent.
func (s *Session) Previews() []*Preview {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Preview, 0, len(s.previews))
	for _, pos := range CaptureOrder {
		if p, ok := s.previews[pos]; ok {
			out = append(out, p)
		}
	}
	return out
}

// NextPosition returns the first capture slot without a preview, or ""
// when all four are filled. Recapturing a filled slot is always allowed;
// this only drives the auto-advance.
func (s *Session) NextPosition() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, pos := range CaptureOrder {
		if _, ok := s.previews[pos]; !ok {
			return pos
		}
	}
	return ""
}

// LinkToLesson reconciles the session's group onto a saved lesson. Runs at
// most once per session; a second call returns ErrAlreadyLinked. A session
// that never captured anything links with an empty reference and the server
// materializes the group.
func (s *Session) LinkToLesson(ctx context.Context, lessonID string) (*LinkedGroup, error) {
	s.mu.Lock()
	if s.linked {
		s.mu.Unlock()
		return nil, ErrAlreadyLinked
	}
	group := s.group
	s.mu.Unlock()

	linked, err := s.api.LinkGroup(ctx, lessonID, group.String())
	if err != nil {
		return nil, fmt.Errorf("linking capture session to lesson: %w", err)
	}

	s.mu.Lock()
	s.linked = true
	s.mu.Unlock()
	return linked, nil
}
