// Package client implements the capture-side workflow of the posture
// lifecycle: framing and encoding camera frames, coordinating uploads into a
// posture group under a temporary token, linking the group to its lesson
// once one exists, and the selection state machine for compare and delete.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"time"
)

// UploadedImage is the server's record of one stored photograph. SignedURL
// may be empty when presigning was unavailable at upload time.
type UploadedImage struct {
	ID             string    `json:"id"`
	PostureGroupID string    `json:"postureGroupId"`
	Position       string    `json:"position"`
	TakenAt        time.Time `json:"takenAt"`
	SignedURL      string    `json:"signedUrl"`
	Consent        bool      `json:"consentPublication"`
}

// LinkedGroup is the server's view of a posture group after lesson linking.
type LinkedGroup struct {
	ID         string  `json:"id"`
	CustomerID string  `json:"customerId"`
	LessonID   *string `json:"lessonId"`
}

// ImageURL is one entry of a batch signed-URL response.
type ImageURL struct {
	ImageID   string    `json:"imageId"`
	SignedURL string    `json:"signedUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// UploadRequest carries one encoded frame to the server.
type UploadRequest struct {
	GroupRef   string
	CustomerID string
	Position   string
	Consent    bool
	MimeType   string
	Data       []byte
}

// API is the remote surface the capture workflow depends on.
type API interface {
	UploadImage(ctx context.Context, req UploadRequest) (*UploadedImage, error)
	LinkGroup(ctx context.Context, lessonID, groupRef string) (*LinkedGroup, error)
	DeleteImage(ctx context.Context, imageID string) error
	SignedURLs(ctx context.Context, imageIDs []string, expiresIn time.Duration) ([]ImageURL, error)
}

// MalformedResponseError reports a server response that did not match the
// expected schema. The workflow treats it like any other request failure.
type MalformedResponseError struct {
	Operation string
	Err       error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed %s response: %v", e.Operation, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// StatusError reports a non-2xx server response.
type StatusError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed with status %d: %s", e.Operation, e.StatusCode, e.Message)
}

// HTTPAPI implements API against the JSON surface of the posture server.
type HTTPAPI struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPAPI creates an API client for the given server. token is sent as a
// bearer credential on every request.
func NewHTTPAPI(baseURL, token string, client *http.Client) *HTTPAPI {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPAPI{baseURL: baseURL, token: token, client: client}
}

// UploadImage sends one encoded frame as multipart form data.
func (a *HTTPAPI) UploadImage(ctx context.Context, req UploadRequest) (*UploadedImage, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	fields := map[string]string{
		"postureGroupId":     req.GroupRef,
		"customerId":         req.CustomerID,
		"position":           req.Position,
		"consentPublication": strconv.FormatBool(req.Consent),
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("writing form field %s: %w", name, err)
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s%s"`, req.Position, extensionFor(req.MimeType)))
	header.Set("Content-Type", req.MimeType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("creating file part: %w", err)
	}
	if _, err := part.Write(req.Data); err != nil {
		return nil, fmt.Errorf("writing file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/posture-images/upload", &body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", w.FormDataContentType())

	var result UploadedImage
	if err := a.do(httpReq, "upload", http.StatusCreated, &result); err != nil {
		return nil, err
	}
	if result.ID == "" || result.PostureGroupID == "" {
		return nil, &MalformedResponseError{Operation: "upload", Err: fmt.Errorf("missing id or postureGroupId")}
	}
	return &result, nil
}

// LinkGroup asks the server to reconcile a posture group onto a lesson.
func (a *HTTPAPI) LinkGroup(ctx context.Context, lessonID, groupRef string) (*LinkedGroup, error) {
	payload, err := json.Marshal(map[string]string{"postureGroupId": groupRef})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/lessons/%s/posture_groups", a.baseURL, lessonID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var group LinkedGroup
	if err := a.do(httpReq, "link", http.StatusOK, &group); err != nil {
		return nil, err
	}
	if group.ID == "" {
		return nil, &MalformedResponseError{Operation: "link", Err: fmt.Errorf("missing group id")}
	}
	return &group, nil
}

// DeleteImage removes one image.
func (a *HTTPAPI) DeleteImage(ctx context.Context, imageID string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, a.baseURL+"/posture-images/"+imageID, nil)
	if err != nil {
		return err
	}
	return a.do(httpReq, "delete", http.StatusOK, nil)
}

// SignedURLs resolves access URLs for a batch of image ids in one request.
func (a *HTTPAPI) SignedURLs(ctx context.Context, imageIDs []string, expiresIn time.Duration) ([]ImageURL, error) {
	payload, err := json.Marshal(map[string]any{
		"imageIds":  imageIDs,
		"expiresIn": int64(expiresIn / time.Second),
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/posture-images/signed-urls", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var result struct {
		URLs []ImageURL `json:"urls"`
	}
	if err := a.do(httpReq, "signed-urls", http.StatusOK, &result); err != nil {
		return nil, err
	}
	return result.URLs, nil
}

// do executes a request, checks the expected status, and decodes the
// response body into out when out is non-nil.
func (a *HTTPAPI) do(req *http.Request, operation string, wantStatus int, out any) error {
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Operation: operation, StatusCode: resp.StatusCode, Message: string(bytes.TrimSpace(msg))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &MalformedResponseError{Operation: operation, Err: err}
	}
	return nil
}

// extensionFor maps a MIME type to a filename extension for the multipart
// file part.
func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
