package client

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"sync"

	"golang.org/x/image/draw"
)

// Default capture resolution used when the source cannot report its native
// resolution.
const (
	fallbackWidth  = 640
	fallbackHeight = 480
)

// jpegQuality for encoded captures. High enough for posture assessment,
// small enough to stay well under the upload ceiling at camera resolutions.
const jpegQuality = 92

// FrameSource abstracts the camera: a started source yields frames at its
// native resolution until stopped.
type FrameSource interface {
	Start() error
	Stop()
	Frame() (image.Image, error)
	Resolution() (width, height int, ok bool)
}

// Frame is one captured, encoded photograph ready for upload.
type Frame struct {
	Position string
	MimeType string
	Data     []byte

	// DataURL is the local preview, usable before any upload happens.
	DataURL string

	Width  int
	Height int
}

// CaptureError wraps a camera failure with the position being captured, so
// the UI can report which slot failed without losing earlier captures.
type CaptureError struct {
	Position string
	Err      error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capturing %s: %v", e.Position, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// SizeExceededError reports an encoded frame over the upload ceiling. The
// frame is discarded; nothing is sent.
type SizeExceededError struct {
	Size  int64
	Limit int64
}

func (e *SizeExceededError) Error() string {
	return fmt.Sprintf("encoded frame is %d bytes; maximum is %d bytes", e.Size, e.Limit)
}

// Controller drives the camera for a capture session: it starts and stops
// the source and turns raw frames into upload-ready JPEG captures at the
// source's native resolution.
type Controller struct {
	source  FrameSource
	maxSize int64

	mu      sync.Mutex
	running bool
}

// NewController creates a camera controller. maxSize is the encoded-frame
// ceiling in bytes.
func NewController(source FrameSource, maxSize int64) *Controller {
	return &Controller{source: source, maxSize: maxSize}
}

// StartCamera starts the frame source. Starting an already-running camera
// is a no-op.
func (c *Controller) StartCamera() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}
	if err := c.source.Start(); err != nil {
		return fmt.Errorf("starting camera: %w", err)
	}
	c.running = true
	return nil
}

// StopCamera releases the camera. Idempotent: stopping a stopped camera
// does nothing, so teardown paths can always call it.
func (c *Controller) StopCamera() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}
	c.source.Stop()
	c.running = false
}

// Running reports whether the camera is live.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// CaptureFrame grabs one frame for the given position, scales it to the
// source's native resolution (or 640x480 when unknown), and encodes it as
// JPEG. The returned frame carries a data-URL preview so the UI shows the
// capture before any upload.
func (c *Controller) CaptureFrame(position string) (*Frame, error) {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil, &CaptureError{Position: position, Err: fmt.Errorf("camera is not running")}
	}
	c.mu.Unlock()

	src, err := c.source.Frame()
	if err != nil {
		return nil, &CaptureError{Position: position, Err: err}
	}

	width, height, ok := c.source.Resolution()
	if !ok || width <= 0 || height <= 0 {
		width, height = fallbackWidth, fallbackHeight
	}

	scaled := scaleFrame(src, width, height)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, &CaptureError{Position: position, Err: fmt.Errorf("encoding frame: %w", err)}
	}

	if int64(buf.Len()) > c.maxSize {
		return nil, &SizeExceededError{Size: int64(buf.Len()), Limit: c.maxSize}
	}

	data := buf.Bytes()
	return &Frame{
		Position: position,
		MimeType: "image/jpeg",
		Data:     data,
		DataURL:  "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data),
		Width:    width,
		Height:   height,
	}, nil
}

// scaleFrame resizes src to the target dimensions using Catmull-Rom
// interpolation. A frame already at the target size is re-drawn unchanged.
func scaleFrame(src image.Image, width, height int) image.Image {
	bounds := src.Bounds()
	if bounds.Dx() == width && bounds.Dy() == height {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}
