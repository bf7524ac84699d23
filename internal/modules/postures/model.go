// Package postures implements the posture-image lifecycle: multipart upload
// into a posture group, two-phase group creation (a client-generated token
// provisions a group before its lesson exists, reconciled to the lesson once
// it does), batched signed-URL resolution with public fallback, day-bucketed
// gallery listing, and before/after comparison.
package postures

import (
	"fmt"
	"strings"
	"time"
)

// Position identifies which side of the body a posture photo shows.
// Exactly four canonical values exist; anything else is rejected at upload
// and dropped (with a log line) when read back.
type Position string

const (
	PositionFront Position = "front"
	PositionRight Position = "right"
	PositionBack  Position = "back"
	PositionLeft  Position = "left"
)

// Positions lists the canonical capture order. The capture UI auto-advances
// through these slots.
var Positions = []Position{PositionFront, PositionRight, PositionBack, PositionLeft}

// ParsePosition validates a raw position string.
func ParsePosition(raw string) (Position, error) {
	switch p := Position(strings.ToLower(raw)); p {
	case PositionFront, PositionRight, PositionBack, PositionLeft:
		return p, nil
	default:
		return "", fmt.Errorf("unknown position %q", raw)
	}
}

// TempTokenPrefix marks client-generated group tokens. A token with this
// prefix is never stored as a foreign key; it only keys the lookup of the
// server-side group it provisioned.
const TempTokenPrefix = "temp-"

// IsTempToken reports whether ref is a client-generated temporary token
// rather than a server-assigned group id.
func IsTempToken(ref string) bool {
	return strings.HasPrefix(ref, TempTokenPrefix)
}

// PostureGroup is a collection of up to four position-tagged photographs
// captured in one session, owned by a customer and (after reconciliation)
// by a lesson.
type PostureGroup struct {
	ID         string  `json:"id"`
	CustomerID string  `json:"customerId"`
	LessonID   *string `json:"lessonId,omitempty"`

	// ClientToken is the temporary token the group was provisioned under,
	// kept only to make provisioning and linking idempotent. Never exposed.
	ClientToken *string `json:"-"`

	CapturedAt time.Time `json:"capturedAt"`
	CreatedAt  time.Time `json:"createdAt"`

	// Images is populated by listing queries, newest first.
	Images []PostureImage `json:"images,omitempty"`
}

// Linked reports whether the group has been reconciled onto a lesson.
func (g *PostureGroup) Linked() bool {
	return g.LessonID != nil && *g.LessonID != ""
}

// PostureImage is the metadata row for one stored photograph.
type PostureImage struct {
	ID             string    `json:"id"`
	PostureGroupID string    `json:"postureGroupId"`
	StorageKey     string    `json:"storageKey"`
	Position       Position  `json:"position"`
	TakenAt        time.Time `json:"takenAt"`
	Consent        bool      `json:"consentPublication"`
	CreatedAt      time.Time `json:"createdAt"`

	// URL is derived per request by the signed-URL resolver; never persisted.
	URL string `json:"url,omitempty"`
}

// UploadInput holds the validated input for storing one captured photograph.
type UploadInput struct {
	// GroupRef is either a server group id or a temporary client token.
	GroupRef string

	// CustomerID is required when GroupRef provisions a new group.
	CustomerID string

	Position  string
	Consent   bool
	MimeType  string
	FileSize  int64
	FileBytes []byte
}

// UploadResult is returned after a successful upload. SignedURL is a
// transient preview URL; it may be empty when presigning is unavailable,
// in which case the client keeps its local preview.
type UploadResult struct {
	ID             string    `json:"id"`
	PostureGroupID string    `json:"postureGroupId"`
	StorageKey     string    `json:"storageKey"`
	Position       Position  `json:"position"`
	TakenAt        time.Time `json:"takenAt"`
	CreatedAt      time.Time `json:"createdAt"`
	SignedURL      string    `json:"signedUrl,omitempty"`
	Consent        bool      `json:"consentPublication"`
}

// SignedURL is one entry of a batch resolution response.
type SignedURL struct {
	ImageID   string    `json:"imageId"`
	SignedURL string    `json:"signedUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Gallery is the payload for a customer's posture history view: the raw
// groups plus the flattened day-bucketed form the gallery renders.
type Gallery struct {
	CustomerID string         `json:"customerId"`
	Groups     []PostureGroup `json:"groups"`
	Days       []DayBucket    `json:"days"`
}

// ComparedImage is one side of a before/after comparison.
type ComparedImage struct {
	ID       string    `json:"id"`
	Position Position  `json:"position"`
	TakenAt  time.Time `json:"takenAt"`
	URL      string    `json:"url,omitempty"`
}

// Comparison is the before/after payload. Analysis is filled by the external
// comparator when one is wired; nil otherwise.
type Comparison struct {
	Before   ComparedImage  `json:"before"`
	After    ComparedImage  `json:"after"`
	Analysis map[string]any `json:"analysis,omitempty"`
}

// AllowedMimeTypes defines which MIME types are accepted for upload.
var AllowedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// MimeToExtension maps MIME types to storage key extensions.
var MimeToExtension = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}
