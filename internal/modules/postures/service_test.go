package postures

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/formtrack/formtrack/internal/apperror"
)

// --- Mock Repository ---

// mockPostureRepo implements PostureRepository for testing.
type mockPostureRepo struct {
	createGroupFn            func(ctx context.Context, group *PostureGroup) error
	findGroupByIDFn          func(ctx context.Context, id string) (*PostureGroup, error)
	findGroupByClientTokenFn func(ctx context.Context, token string) (*PostureGroup, error)
	findGroupByLessonFn      func(ctx context.Context, lessonID string) (*PostureGroup, error)
	linkGroupToLessonFn      func(ctx context.Context, groupID, lessonID string) error
	listGroupsByCustomerFn   func(ctx context.Context, customerID string) ([]PostureGroup, error)
	createImageFn            func(ctx context.Context, image *PostureImage) error
	findImageByIDFn          func(ctx context.Context, id string) (*PostureImage, error)
	findImagesByIDsFn        func(ctx context.Context, ids []string) ([]PostureImage, error)
	deleteImageFn            func(ctx context.Context, id string) error
}

func (m *mockPostureRepo) CreateGroup(ctx context.Context, group *PostureGroup) error {
	if m.createGroupFn != nil {
		return m.createGroupFn(ctx, group)
	}
	return nil
}

func (m *mockPostureRepo) FindGroupByID(ctx context.Context, id string) (*PostureGroup, error) {
	if m.findGroupByIDFn != nil {
		return m.findGroupByIDFn(ctx, id)
	}
	return nil, apperror.NewNotFound("posture group not found")
}

func (m *mockPostureRepo) FindGroupByClientToken(ctx context.Context, token string) (*PostureGroup, error) {
	if m.findGroupByClientTokenFn != nil {
		return m.findGroupByClientTokenFn(ctx, token)
	}
	return nil, apperror.NewNotFound("posture group not found")
}

func (m *mockPostureRepo) FindGroupByLesson(ctx context.Context, lessonID string) (*PostureGroup, error) {
	if m.findGroupByLessonFn != nil {
		return m.findGroupByLessonFn(ctx, lessonID)
	}
	return nil, apperror.NewNotFound("posture group not found")
}

func (m *mockPostureRepo) LinkGroupToLesson(ctx context.Context, groupID, lessonID string) error {
	if m.linkGroupToLessonFn != nil {
		return m.linkGroupToLessonFn(ctx, groupID, lessonID)
	}
	return nil
}

func (m *mockPostureRepo) ListGroupsByCustomer(ctx context.Context, customerID string) ([]PostureGroup, error) {
	if m.listGroupsByCustomerFn != nil {
		return m.listGroupsByCustomerFn(ctx, customerID)
	}
	return nil, nil
}

func (m *mockPostureRepo) CreateImage(ctx context.Context, image *PostureImage) error {
	if m.createImageFn != nil {
		return m.createImageFn(ctx, image)
	}
	return nil
}

func (m *mockPostureRepo) FindImageByID(ctx context.Context, id string) (*PostureImage, error) {
	if m.findImageByIDFn != nil {
		return m.findImageByIDFn(ctx, id)
	}
	return nil, apperror.NewNotFound("posture image not found")
}

func (m *mockPostureRepo) FindImagesByIDs(ctx context.Context, ids []string) ([]PostureImage, error) {
	if m.findImagesByIDsFn != nil {
		return m.findImagesByIDsFn(ctx, ids)
	}
	return nil, nil
}

func (m *mockPostureRepo) DeleteImage(ctx context.Context, id string) error {
	if m.deleteImageFn != nil {
		return m.deleteImageFn(ctx, id)
	}
	return nil
}

// --- Mock Storage ---

// mockStorage implements storage.ObjectStorage for testing.
type mockStorage struct {
	putFn       func(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	signedURLFn func(ctx context.Context, key string, expiry time.Duration) (string, error)
	publicURLFn func(key string) (string, error)
	removeFn    func(ctx context.Context, keys ...string) error
}

func (m *mockStorage) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if m.putFn != nil {
		return m.putFn(ctx, key, body, size, contentType)
	}
	return nil
}

func (m *mockStorage) SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if m.signedURLFn != nil {
		return m.signedURLFn(ctx, key, expiry)
	}
	return "https://signed.example.com/" + key, nil
}

func (m *mockStorage) PublicURL(key string) (string, error) {
	if m.publicURLFn != nil {
		return m.publicURLFn(key)
	}
	return "https://public.example.com/" + key, nil
}

func (m *mockStorage) Remove(ctx context.Context, keys ...string) error {
	if m.removeFn != nil {
		return m.removeFn(ctx, keys...)
	}
	return nil
}

// --- Mock Lesson Finder ---

type mockLessonFinder struct {
	findFn func(ctx context.Context, lessonID string) (string, error)
}

func (m *mockLessonFinder) FindLessonCustomer(ctx context.Context, lessonID string) (string, error) {
	if m.findFn != nil {
		return m.findFn(ctx, lessonID)
	}
	return "", apperror.NewNotFound("lesson not found")
}

const testMaxSize = 10 * 1024 * 1024

func newTestService(repo *mockPostureRepo, st *mockStorage, lessons *mockLessonFinder) *postureService {
	if st == nil {
		st = &mockStorage{}
	}
	if lessons == nil {
		lessons = &mockLessonFinder{}
	}
	return &postureService{
		repo:     repo,
		storage:  st,
		resolver: NewURLResolver(st, time.Hour, 7*24*time.Hour),
		lessons:  lessons,
		maxSize:  testMaxSize,
	}
}

// assertAppError checks that err is an *apperror.AppError with the expected code.
func assertAppError(t *testing.T, err error, expectedCode int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %d, got nil", expectedCode)
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperror.AppError, got %T: %v", err, err)
	}
	if appErr.Code != expectedCode {
		t.Errorf("expected status %d, got %d (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
}

// jpegBytes returns a minimal buffer carrying the JPEG magic bytes.
func jpegBytes(size int) []byte {
	data := bytes.Repeat([]byte{0x00}, size)
	data[0], data[1], data[2] = 0xFF, 0xD8, 0xFF
	return data
}

func uploadInput(groupRef string) UploadInput {
	data := jpegBytes(128)
	return UploadInput{
		GroupRef:   groupRef,
		CustomerID: "cust-1",
		Position:   "front",
		Consent:    true,
		MimeType:   "image/jpeg",
		FileSize:   int64(len(data)),
		FileBytes:  data,
	}
}

// --- Upload Tests ---

func TestUpload_ExistingGroup(t *testing.T) {
	var storedKey string
	repo := &mockPostureRepo{
		findGroupByIDFn: func(ctx context.Context, id string) (*PostureGroup, error) {
			if id != "group-1" {
				t.Errorf("expected group-1, got %s", id)
			}
			return &PostureGroup{ID: "group-1", CustomerID: "cust-1"}, nil
		},
		createImageFn: func(ctx context.Context, image *PostureImage) error {
			if image.PostureGroupID != "group-1" {
				t.Errorf("expected image in group-1, got %s", image.PostureGroupID)
			}
			if image.Position != PositionFront {
				t.Errorf("expected front, got %s", image.Position)
			}
			if !image.Consent {
				t.Error("expected consent flag set")
			}
			storedKey = image.StorageKey
			return nil
		},
	}

	svc := newTestService(repo, nil, nil)
	result, err := svc.Upload(context.Background(), uploadInput("group-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.PostureGroupID != "group-1" {
		t.Errorf("expected group-1, got %s", result.PostureGroupID)
	}
	if !strings.HasPrefix(storedKey, "postures/group-1/") || !strings.HasSuffix(storedKey, ".jpg") {
		t.Errorf("unexpected storage key %q", storedKey)
	}
	if result.SignedURL == "" {
		t.Error("expected a preview URL")
	}
}

func TestUpload_TempTokenProvisionsGroup(t *testing.T) {
	var created *PostureGroup
	repo := &mockPostureRepo{
		createGroupFn: func(ctx context.Context, group *PostureGroup) error {
			created = group
			return nil
		},
	}

	svc := newTestService(repo, nil, nil)
	result, err := svc.Upload(context.Background(), uploadInput("temp-1724980000000"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created == nil {
		t.Fatal("expected a group to be provisioned")
	}
	if created.CustomerID != "cust-1" {
		t.Errorf("expected group owned by cust-1, got %s", created.CustomerID)
	}
	if created.ClientToken == nil || *created.ClientToken != "temp-1724980000000" {
		t.Error("expected the client token recorded on the group")
	}
	if created.LessonID != nil {
		t.Error("token must never become a lesson link")
	}
	if result.PostureGroupID != created.ID {
		t.Errorf("expected image in provisioned group %s, got %s", created.ID, result.PostureGroupID)
	}
}

func TestUpload_TempTokenReusesGroup(t *testing.T) {
	repo := &mockPostureRepo{
		findGroupByClientTokenFn: func(ctx context.Context, token string) (*PostureGroup, error) {
			return &PostureGroup{ID: "group-7", CustomerID: "cust-1"}, nil
		},
		createGroupFn: func(ctx context.Context, group *PostureGroup) error {
			t.Error("must not create a second group for a known token")
			return nil
		},
	}

	svc := newTestService(repo, nil, nil)
	result, err := svc.Upload(context.Background(), uploadInput("temp-1724980000000"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.PostureGroupID != "group-7" {
		t.Errorf("expected group-7, got %s", result.PostureGroupID)
	}
}

func TestUpload_ProvisioningRaceFallsBackToWinner(t *testing.T) {
	calls := 0
	repo := &mockPostureRepo{
		findGroupByClientTokenFn: func(ctx context.Context, token string) (*PostureGroup, error) {
			calls++
			// First read misses; after the lost insert race the group exists.
			if calls == 1 {
				return nil, apperror.NewNotFound("posture group not found")
			}
			return &PostureGroup{ID: "group-winner", CustomerID: "cust-1"}, nil
		},
		createGroupFn: func(ctx context.Context, group *PostureGroup) error {
			return fmt.Errorf("duplicate entry for client_token")
		},
	}

	svc := newTestService(repo, nil, nil)
	result, err := svc.Upload(context.Background(), uploadInput("temp-1724980000000"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.PostureGroupID != "group-winner" {
		t.Errorf("expected the race winner's group, got %s", result.PostureGroupID)
	}
}

func TestUpload_TempTokenWithoutCustomer(t *testing.T) {
	svc := newTestService(&mockPostureRepo{}, nil, nil)

	input := uploadInput("temp-1724980000000")
	input.CustomerID = ""
	_, err := svc.Upload(context.Background(), input)
	assertAppError(t, err, 422)
}

func TestUpload_SizeExceeded(t *testing.T) {
	svc := newTestService(&mockPostureRepo{}, nil, nil)

	input := uploadInput("group-1")
	input.FileSize = testMaxSize + 1
	_, err := svc.Upload(context.Background(), input)
	assertAppError(t, err, 413)
}

func TestUpload_InvalidPosition(t *testing.T) {
	svc := newTestService(&mockPostureRepo{}, nil, nil)

	input := uploadInput("group-1")
	input.Position = "diagonal"
	_, err := svc.Upload(context.Background(), input)
	assertAppError(t, err, 422)
}

func TestUpload_MimeMismatch(t *testing.T) {
	svc := newTestService(&mockPostureRepo{}, nil, nil)

	input := uploadInput("group-1")
	input.MimeType = "image/png" // bytes carry a JPEG header
	_, err := svc.Upload(context.Background(), input)
	assertAppError(t, err, 400)
}

func TestUpload_MetadataFailureCleansUpObject(t *testing.T) {
	var removed []string
	st := &mockStorage{
		removeFn: func(ctx context.Context, keys ...string) error {
			removed = append(removed, keys...)
			return nil
		},
	}
	repo := &mockPostureRepo{
		findGroupByIDFn: func(ctx context.Context, id string) (*PostureGroup, error) {
			return &PostureGroup{ID: "group-1", CustomerID: "cust-1"}, nil
		},
		createImageFn: func(ctx context.Context, image *PostureImage) error {
			return fmt.Errorf("db gone")
		},
	}

	svc := newTestService(repo, st, nil)
	_, err := svc.Upload(context.Background(), uploadInput("group-1"))
	assertAppError(t, err, 500)
	if len(removed) != 1 {
		t.Fatalf("expected the stored object to be cleaned up, removed %v", removed)
	}
}

func TestUpload_PreviewFailureIsNotFatal(t *testing.T) {
	st := &mockStorage{
		signedURLFn: func(ctx context.Context, key string, expiry time.Duration) (string, error) {
			return "", fmt.Errorf("presign unavailable")
		},
		publicURLFn: func(key string) (string, error) {
			return "", fmt.Errorf("no public access")
		},
	}
	repo := &mockPostureRepo{
		findGroupByIDFn: func(ctx context.Context, id string) (*PostureGroup, error) {
			return &PostureGroup{ID: "group-1", CustomerID: "cust-1"}, nil
		},
	}

	svc := newTestService(repo, st, nil)
	result, err := svc.Upload(context.Background(), uploadInput("group-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SignedURL != "" {
		t.Errorf("expected empty preview URL, got %q", result.SignedURL)
	}
}

// --- SignedURLs Tests ---

func TestSignedURLs_Batch(t *testing.T) {
	repo := &mockPostureRepo{
		findImagesByIDsFn: func(ctx context.Context, ids []string) ([]PostureImage, error) {
			return []PostureImage{
				{ID: "img-1", StorageKey: "postures/g/a.jpg"},
				{ID: "img-2", StorageKey: "postures/g/b.jpg"},
			}, nil
		},
	}

	svc := newTestService(repo, nil, nil)
	urls, err := svc.SignedURLs(context.Background(), []string{"img-1", "img-2", "img-unknown"}, 2*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(urls) != 2 {
		t.Fatalf("expected 2 urls, got %d", len(urls))
	}
	for _, u := range urls {
		if u.SignedURL == "" {
			t.Errorf("expected url for %s", u.ImageID)
		}
		if u.ExpiresAt.IsZero() {
			t.Errorf("expected expiry for %s", u.ImageID)
		}
	}
}

func TestSignedURLs_FailedResolutionAbsent(t *testing.T) {
	st := &mockStorage{
		signedURLFn: func(ctx context.Context, key string, expiry time.Duration) (string, error) {
			if key == "postures/g/bad.jpg" {
				return "", fmt.Errorf("boom")
			}
			return "https://signed.example.com/" + key, nil
		},
		publicURLFn: func(key string) (string, error) {
			return "", fmt.Errorf("no public access")
		},
	}
	repo := &mockPostureRepo{
		findImagesByIDsFn: func(ctx context.Context, ids []string) ([]PostureImage, error) {
			return []PostureImage{
				{ID: "img-1", StorageKey: "postures/g/good.jpg"},
				{ID: "img-2", StorageKey: "postures/g/bad.jpg"},
			}, nil
		},
	}

	svc := newTestService(repo, st, nil)
	urls, err := svc.SignedURLs(context.Background(), []string{"img-1", "img-2"}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(urls) != 1 || urls[0].ImageID != "img-1" {
		t.Fatalf("expected only img-1 resolved, got %+v", urls)
	}
}

func TestSignedURLs_EmptyBatch(t *testing.T) {
	svc := newTestService(&mockPostureRepo{}, nil, nil)
	urls, err := svc.SignedURLs(context.Background(), nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(urls) != 0 {
		t.Errorf("expected empty result, got %d", len(urls))
	}
}

func TestSignedURLs_TooMany(t *testing.T) {
	ids := make([]string, maxBatchSize+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("img-%d", i)
	}
	svc := newTestService(&mockPostureRepo{}, nil, nil)
	_, err := svc.SignedURLs(context.Background(), ids, 0)
	assertAppError(t, err, 422)
}

// --- DeleteImage Tests ---

func TestDeleteImage_RemovesObjectAndRecord(t *testing.T) {
	var removed, deleted []string
	st := &mockStorage{
		removeFn: func(ctx context.Context, keys ...string) error {
			removed = append(removed, keys...)
			return nil
		},
	}
	repo := &mockPostureRepo{
		findImageByIDFn: func(ctx context.Context, id string) (*PostureImage, error) {
			return &PostureImage{ID: id, StorageKey: "postures/g/a.jpg"}, nil
		},
		deleteImageFn: func(ctx context.Context, id string) error {
			deleted = append(deleted, id)
			return nil
		},
	}

	svc := newTestService(repo, st, nil)
	if err := svc.DeleteImage(context.Background(), "img-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(removed) != 1 || removed[0] != "postures/g/a.jpg" {
		t.Errorf("expected object removed, got %v", removed)
	}
	if len(deleted) != 1 || deleted[0] != "img-1" {
		t.Errorf("expected record deleted, got %v", deleted)
	}
}

func TestDeleteImage_StorageFailureStillDeletesRecord(t *testing.T) {
	var deleted []string
	st := &mockStorage{
		removeFn: func(ctx context.Context, keys ...string) error {
			return fmt.Errorf("bucket unreachable")
		},
	}
	repo := &mockPostureRepo{
		findImageByIDFn: func(ctx context.Context, id string) (*PostureImage, error) {
			return &PostureImage{ID: id, StorageKey: "postures/g/a.jpg"}, nil
		},
		deleteImageFn: func(ctx context.Context, id string) error {
			deleted = append(deleted, id)
			return nil
		},
	}

	svc := newTestService(repo, st, nil)
	if err := svc.DeleteImage(context.Background(), "img-1"); err != nil {
		t.Fatalf("physical delete failure must not fail the operation: %v", err)
	}
	if len(deleted) != 1 {
		t.Error("expected the metadata row deleted anyway")
	}
}

func TestDeleteImage_NotFound(t *testing.T) {
	svc := newTestService(&mockPostureRepo{}, nil, nil)
	err := svc.DeleteImage(context.Background(), "missing")
	assertAppError(t, err, 404)
}

// --- LinkGroupToLesson Tests ---

func TestLinkGroupToLesson_LinksByToken(t *testing.T) {
	var linkedGroup, linkedLesson string
	repo := &mockPostureRepo{
		findGroupByClientTokenFn: func(ctx context.Context, token string) (*PostureGroup, error) {
			return &PostureGroup{ID: "group-1", CustomerID: "cust-1"}, nil
		},
		linkGroupToLessonFn: func(ctx context.Context, groupID, lessonID string) error {
			linkedGroup, linkedLesson = groupID, lessonID
			return nil
		},
	}
	lessons := &mockLessonFinder{
		findFn: func(ctx context.Context, lessonID string) (string, error) {
			return "cust-1", nil
		},
	}

	svc := newTestService(repo, nil, lessons)
	group, err := svc.LinkGroupToLesson(context.Background(), "lesson-1", "temp-1724980000000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if linkedGroup != "group-1" || linkedLesson != "lesson-1" {
		t.Errorf("expected group-1 linked to lesson-1, got %s/%s", linkedGroup, linkedLesson)
	}
	if !group.Linked() || *group.LessonID != "lesson-1" {
		t.Error("expected returned group to carry the lesson id")
	}
}

func TestLinkGroupToLesson_IdempotentPerLesson(t *testing.T) {
	lessonID := "lesson-1"
	repo := &mockPostureRepo{
		findGroupByLessonFn: func(ctx context.Context, id string) (*PostureGroup, error) {
			return &PostureGroup{ID: "group-1", CustomerID: "cust-1", LessonID: &lessonID}, nil
		},
		linkGroupToLessonFn: func(ctx context.Context, groupID, lid string) error {
			t.Error("must not link again when the lesson already has a group")
			return nil
		},
	}
	lessons := &mockLessonFinder{
		findFn: func(ctx context.Context, id string) (string, error) { return "cust-1", nil },
	}

	svc := newTestService(repo, nil, lessons)
	group, err := svc.LinkGroupToLesson(context.Background(), "lesson-1", "temp-1724980000000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if group.ID != "group-1" {
		t.Errorf("expected the existing group, got %s", group.ID)
	}
}

func TestLinkGroupToLesson_UnknownTokenMaterializesGroup(t *testing.T) {
	var created *PostureGroup
	repo := &mockPostureRepo{
		createGroupFn: func(ctx context.Context, group *PostureGroup) error {
			created = group
			return nil
		},
	}
	lessons := &mockLessonFinder{
		findFn: func(ctx context.Context, id string) (string, error) { return "cust-9", nil },
	}

	svc := newTestService(repo, nil, lessons)
	group, err := svc.LinkGroupToLesson(context.Background(), "lesson-1", "temp-1724980000000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created == nil {
		t.Fatal("expected a group to be materialized")
	}
	if created.CustomerID != "cust-9" {
		t.Errorf("expected the lesson's customer, got %s", created.CustomerID)
	}
	if !group.Linked() || *group.LessonID != "lesson-1" {
		t.Error("expected the materialized group bound to the lesson")
	}
}

func TestLinkGroupToLesson_LessonMissing(t *testing.T) {
	svc := newTestService(&mockPostureRepo{}, nil, &mockLessonFinder{})
	_, err := svc.LinkGroupToLesson(context.Background(), "lesson-x", "temp-1")
	assertAppError(t, err, 404)
}

func TestLinkGroupToLesson_CustomerMismatch(t *testing.T) {
	repo := &mockPostureRepo{
		findGroupByClientTokenFn: func(ctx context.Context, token string) (*PostureGroup, error) {
			return &PostureGroup{ID: "group-1", CustomerID: "cust-other"}, nil
		},
	}
	lessons := &mockLessonFinder{
		findFn: func(ctx context.Context, id string) (string, error) { return "cust-1", nil },
	}

	svc := newTestService(repo, nil, lessons)
	_, err := svc.LinkGroupToLesson(context.Background(), "lesson-1", "temp-1724980000000")
	assertAppError(t, err, 409)
}

// --- CustomerGallery Tests ---

func TestCustomerGallery_ResolvesAndBuckets(t *testing.T) {
	now := time.Now()
	repo := &mockPostureRepo{
		listGroupsByCustomerFn: func(ctx context.Context, customerID string) ([]PostureGroup, error) {
			return []PostureGroup{
				{
					ID: "group-1", CustomerID: customerID,
					Images: []PostureImage{
						{ID: "img-1", StorageKey: "postures/g1/a.jpg", Position: PositionFront, TakenAt: now},
						{ID: "img-2", StorageKey: "postures/g1/b.jpg", Position: PositionRight, TakenAt: now.Add(-time.Minute)},
					},
				},
				{
					ID: "group-2", CustomerID: customerID,
					Images: []PostureImage{
						{ID: "img-3", StorageKey: "postures/g2/a.jpg", Position: PositionFront, TakenAt: now.Add(-24 * time.Hour)},
					},
				},
			}, nil
		},
	}

	svc := newTestService(repo, nil, nil)
	gallery, err := svc.CustomerGallery(context.Background(), "cust-1", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gallery.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(gallery.Groups))
	}
	for _, g := range gallery.Groups {
		for _, img := range g.Images {
			if img.URL == "" {
				t.Errorf("expected url on %s", img.ID)
			}
		}
	}
	if len(gallery.Days) != 2 {
		t.Fatalf("expected today and yesterday buckets, got %d", len(gallery.Days))
	}
	if gallery.Days[0].Label != "today" || gallery.Days[1].Label != "yesterday" {
		t.Errorf("unexpected labels %q, %q", gallery.Days[0].Label, gallery.Days[1].Label)
	}
}

func TestCustomerGallery_UnresolvableImageExcluded(t *testing.T) {
	st := &mockStorage{
		signedURLFn: func(ctx context.Context, key string, expiry time.Duration) (string, error) {
			if key == "postures/g1/bad.jpg" {
				return "", fmt.Errorf("boom")
			}
			return "https://signed.example.com/" + key, nil
		},
		publicURLFn: func(key string) (string, error) {
			return "", fmt.Errorf("no public access")
		},
	}
	repo := &mockPostureRepo{
		listGroupsByCustomerFn: func(ctx context.Context, customerID string) ([]PostureGroup, error) {
			return []PostureGroup{
				{
					ID: "group-1", CustomerID: customerID,
					Images: []PostureImage{
						{ID: "img-1", StorageKey: "postures/g1/good.jpg", TakenAt: time.Now()},
						{ID: "img-2", StorageKey: "postures/g1/bad.jpg", TakenAt: time.Now()},
					},
				},
			}, nil
		},
	}

	svc := newTestService(repo, st, nil)
	gallery, err := svc.CustomerGallery(context.Background(), "cust-1", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gallery.Groups[0].Images) != 1 || gallery.Groups[0].Images[0].ID != "img-1" {
		t.Fatalf("expected only the resolvable image, got %+v", gallery.Groups[0].Images)
	}
	if len(gallery.Days) != 1 || len(gallery.Days[0].Images) != 1 {
		t.Error("expected the excluded image absent from day buckets too")
	}
}

// --- Compare Tests ---

type mockComparator struct {
	compareFn func(ctx context.Context, before, after PostureImage) (map[string]any, error)
}

func (m *mockComparator) Compare(ctx context.Context, before, after PostureImage) (map[string]any, error) {
	if m.compareFn != nil {
		return m.compareFn(ctx, before, after)
	}
	return nil, nil
}

func compareRepo(t *testing.T) *mockPostureRepo {
	t.Helper()
	return &mockPostureRepo{
		findImageByIDFn: func(ctx context.Context, id string) (*PostureImage, error) {
			return &PostureImage{ID: id, StorageKey: "postures/g/" + id + ".jpg", Position: PositionFront}, nil
		},
	}
}

func TestCompare_ResolvesBothSides(t *testing.T) {
	svc := newTestService(compareRepo(t), nil, nil)
	cmp, err := svc.Compare(context.Background(), "img-1", "img-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmp.Before.ID != "img-1" || cmp.After.ID != "img-2" {
		t.Errorf("unexpected pair %s/%s", cmp.Before.ID, cmp.After.ID)
	}
	if cmp.Before.URL == "" || cmp.After.URL == "" {
		t.Error("expected both sides resolved")
	}
	if cmp.Analysis != nil {
		t.Error("expected no analysis without a comparator")
	}
}

func TestCompare_WithAnalysis(t *testing.T) {
	svc := newTestService(compareRepo(t), nil, nil)
	svc.comparator = &mockComparator{
		compareFn: func(ctx context.Context, before, after PostureImage) (map[string]any, error) {
			return map[string]any{"shoulderTilt": "improved"}, nil
		},
	}

	cmp, err := svc.Compare(context.Background(), "img-1", "img-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmp.Analysis["shoulderTilt"] != "improved" {
		t.Errorf("expected analysis attached, got %v", cmp.Analysis)
	}
}

func TestCompare_AnalysisFailureDegrades(t *testing.T) {
	svc := newTestService(compareRepo(t), nil, nil)
	svc.comparator = &mockComparator{
		compareFn: func(ctx context.Context, before, after PostureImage) (map[string]any, error) {
			return nil, fmt.Errorf("model offline")
		},
	}

	cmp, err := svc.Compare(context.Background(), "img-1", "img-2")
	if err != nil {
		t.Fatalf("analysis failure must not fail the comparison: %v", err)
	}
	if cmp.Analysis != nil {
		t.Error("expected no analysis on failure")
	}
}

func TestCompare_SameImage(t *testing.T) {
	svc := newTestService(compareRepo(t), nil, nil)
	_, err := svc.Compare(context.Background(), "img-1", "img-1")
	assertAppError(t, err, 422)
}
