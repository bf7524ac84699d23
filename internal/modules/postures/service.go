package postures

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/formtrack/formtrack/internal/apperror"
	"github.com/formtrack/formtrack/internal/storage"
)

// LessonFinder is the slice of the lessons module the postures module needs:
// confirming a lesson exists and learning its customer before linking a
// group onto it.
type LessonFinder interface {
	FindLessonCustomer(ctx context.Context, lessonID string) (customerID string, err error)
}

// Comparator is the external posture-analysis collaborator. When nil, the
// comparison payload carries the two resolved images and no analysis.
type Comparator interface {
	Compare(ctx context.Context, before, after PostureImage) (map[string]any, error)
}

// maxBatchSize bounds a single signed-URL batch request.
const maxBatchSize = 100

// PostureService handles business logic for the posture image lifecycle.
type PostureService interface {
	Upload(ctx context.Context, input UploadInput) (*UploadResult, error)
	SignedURLs(ctx context.Context, imageIDs []string, expiresIn time.Duration) ([]SignedURL, error)
	DeleteImage(ctx context.Context, id string) error
	LinkGroupToLesson(ctx context.Context, lessonID, groupRef string) (*PostureGroup, error)
	CustomerGallery(ctx context.Context, customerID string, expiresIn time.Duration) (*Gallery, error)
	Compare(ctx context.Context, beforeID, afterID string) (*Comparison, error)
}

// postureService implements PostureService.
type postureService struct {
	repo       PostureRepository
	storage    storage.ObjectStorage
	resolver   *URLResolver
	lessons    LessonFinder
	comparator Comparator
	maxSize    int64
}

// NewPostureService creates a new posture service. comparator may be nil.
func NewPostureService(
	repo PostureRepository,
	st storage.ObjectStorage,
	resolver *URLResolver,
	lessons LessonFinder,
	comparator Comparator,
	maxSize int64,
) PostureService {
	return &postureService{
		repo:       repo,
		storage:    st,
		resolver:   resolver,
		lessons:    lessons,
		comparator: comparator,
		maxSize:    maxSize,
	}
}

// Upload validates, stores, and records one captured photograph. The group
// reference may be a temporary client token -- the first upload carrying a
// token provisions the server-side group; later uploads reuse it. The token
// itself is never persisted as a foreign key.
func (s *postureService) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	position, err := ParsePosition(input.Position)
	if err != nil {
		return nil, apperror.NewValidation("position must be one of front, right, back, left")
	}

	if input.FileSize > s.maxSize {
		return nil, apperror.NewTooLarge(fmt.Sprintf(
			"image is %d bytes; maximum size is %d bytes", input.FileSize, s.maxSize))
	}
	if len(input.FileBytes) == 0 {
		return nil, apperror.NewBadRequest("image file is empty")
	}
	if !AllowedMimeTypes[input.MimeType] {
		return nil, apperror.NewBadRequest("unsupported file type: " + input.MimeType)
	}
	if !validateMagicBytes(input.FileBytes, input.MimeType) {
		return nil, apperror.NewBadRequest("file content does not match declared type")
	}

	group, err := s.ensureGroup(ctx, input)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	image := &PostureImage{
		ID:             uuid.NewString(),
		PostureGroupID: group.ID,
		StorageKey:     fmt.Sprintf("postures/%s/%s%s", group.ID, uuid.NewString(), MimeToExtension[input.MimeType]),
		Position:       position,
		TakenAt:        now,
		Consent:        input.Consent,
		CreatedAt:      now,
	}

	if err := s.storage.Put(ctx, image.StorageKey, bytes.NewReader(input.FileBytes), input.FileSize, input.MimeType); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("storing posture image: %w", err))
	}

	if err := s.repo.CreateImage(ctx, image); err != nil {
		// Clean up the stored object on a metadata failure; a leftover blob
		// would be unreachable forever.
		if rmErr := s.storage.Remove(ctx, image.StorageKey); rmErr != nil {
			slog.Warn("orphaned object after failed image insert",
				slog.String("storage_key", image.StorageKey),
				slog.Any("error", rmErr),
			)
		}
		return nil, apperror.NewInternal(fmt.Errorf("saving posture image record: %w", err))
	}

	// Transient preview URL. Failure is not fatal: the client keeps its
	// local preview and re-resolves later.
	previewURL, _ := s.resolver.ResolveOne(ctx, image.StorageKey, 0)

	slog.Info("posture image uploaded",
		slog.String("image_id", image.ID),
		slog.String("group_id", group.ID),
		slog.String("position", string(position)),
		slog.Int64("size", input.FileSize),
	)

	return &UploadResult{
		ID:             image.ID,
		PostureGroupID: group.ID,
		StorageKey:     image.StorageKey,
		Position:       position,
		TakenAt:        image.TakenAt,
		CreatedAt:      image.CreatedAt,
		SignedURL:      previewURL,
		Consent:        image.Consent,
	}, nil
}

// ensureGroup resolves the group an upload belongs to: a server group id is
// looked up directly; a temporary client token finds or provisions the
// group. Concurrent first uploads for different positions may race on
// provisioning -- the unique token constraint makes one insert win and the
// loser re-reads.
func (s *postureService) ensureGroup(ctx context.Context, input UploadInput) (*PostureGroup, error) {
	if input.GroupRef == "" {
		return nil, apperror.NewBadRequest("postureGroupId is required")
	}

	if !IsTempToken(input.GroupRef) {
		return s.repo.FindGroupByID(ctx, input.GroupRef)
	}

	group, err := s.repo.FindGroupByClientToken(ctx, input.GroupRef)
	if err == nil {
		return group, nil
	}
	if apperror.SafeCode(err) != http.StatusNotFound {
		return nil, err
	}

	if input.CustomerID == "" {
		return nil, apperror.NewValidation("customerId is required to start a posture group")
	}

	token := input.GroupRef
	now := time.Now().UTC()
	group = &PostureGroup{
		ID:          uuid.NewString(),
		CustomerID:  input.CustomerID,
		ClientToken: &token,
		CapturedAt:  now,
		CreatedAt:   now,
	}
	if err := s.repo.CreateGroup(ctx, group); err != nil {
		// Lost the provisioning race: another position's upload created the
		// group between our read and write.
		if existing, findErr := s.repo.FindGroupByClientToken(ctx, input.GroupRef); findErr == nil {
			return existing, nil
		}
		return nil, apperror.NewInternal(fmt.Errorf("creating posture group: %w", err))
	}
	return group, nil
}

// SignedURLs resolves access URLs for a batch of image ids in one request.
// Ids that are unknown or fail to resolve are absent from the result.
func (s *postureService) SignedURLs(ctx context.Context, imageIDs []string, expiresIn time.Duration) ([]SignedURL, error) {
	if len(imageIDs) == 0 {
		return []SignedURL{}, nil
	}
	if len(imageIDs) > maxBatchSize {
		return nil, apperror.NewValidation(fmt.Sprintf("at most %d image ids per request", maxBatchSize))
	}

	images, err := s.repo.FindImagesByIDs(ctx, imageIDs)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("loading posture images: %w", err))
	}

	expiry := s.resolver.ClampExpiry(expiresIn)
	expiresAt := time.Now().UTC().Add(expiry)

	urls := s.resolver.ResolveBatch(ctx, images, expiry)
	results := make([]SignedURL, 0, len(urls))
	for _, img := range images {
		url, ok := urls[img.ID]
		if !ok {
			continue
		}
		results = append(results, SignedURL{
			ImageID:   img.ID,
			SignedURL: url,
			ExpiresAt: expiresAt,
		})
	}
	return results, nil
}

// DeleteImage removes one image: the storage object best-effort, then the
// metadata row authoritatively. A failed physical delete is logged and may
// orphan the blob; a failed metadata delete keeps the image visible and is
// reported to the caller.
func (s *postureService) DeleteImage(ctx context.Context, id string) error {
	image, err := s.repo.FindImageByID(ctx, id)
	if err != nil {
		return err
	}

	if image.StorageKey != "" {
		if err := s.storage.Remove(ctx, image.StorageKey); err != nil {
			slog.Warn("posture image object delete failed, removing metadata anyway",
				slog.String("image_id", id),
				slog.String("storage_key", image.StorageKey),
				slog.Any("error", err),
			)
		}
	}

	if err := s.repo.DeleteImage(ctx, id); err != nil {
		return err
	}

	slog.Info("posture image deleted", slog.String("image_id", id))
	return nil
}

// LinkGroupToLesson reconciles a posture group onto its lesson once the
// lesson exists. Idempotent per lesson: a lesson that already has a group
// keeps it. A token that never produced an upload materializes an empty
// group so the lesson's gallery slot exists either way.
func (s *postureService) LinkGroupToLesson(ctx context.Context, lessonID, groupRef string) (*PostureGroup, error) {
	customerID, err := s.lessons.FindLessonCustomer(ctx, lessonID)
	if err != nil {
		return nil, err
	}

	// Already linked: reconciliation ran before. Nothing to do.
	if existing, err := s.repo.FindGroupByLesson(ctx, lessonID); err == nil {
		return existing, nil
	} else if apperror.SafeCode(err) != http.StatusNotFound {
		return nil, err
	}

	var group *PostureGroup
	switch {
	case groupRef == "":
		group = nil
	case IsTempToken(groupRef):
		g, err := s.repo.FindGroupByClientToken(ctx, groupRef)
		if err == nil {
			group = g
		} else if apperror.SafeCode(err) != http.StatusNotFound {
			return nil, err
		}
	default:
		g, err := s.repo.FindGroupByID(ctx, groupRef)
		if err != nil {
			return nil, err
		}
		group = g
	}

	if group == nil {
		now := time.Now().UTC()
		group = &PostureGroup{
			ID:         uuid.NewString(),
			CustomerID: customerID,
			LessonID:   &lessonID,
			CapturedAt: now,
			CreatedAt:  now,
		}
		if err := s.repo.CreateGroup(ctx, group); err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("materializing posture group: %w", err))
		}
		return group, nil
	}

	if group.CustomerID != customerID {
		return nil, apperror.NewConflict("posture group belongs to a different customer")
	}
	if group.Linked() {
		if *group.LessonID == lessonID {
			return group, nil
		}
		return nil, apperror.NewConflict("posture group is already linked to a different lesson")
	}

	if err := s.repo.LinkGroupToLesson(ctx, group.ID, lessonID); err != nil {
		return nil, err
	}
	group.LessonID = &lessonID

	slog.Info("posture group linked to lesson",
		slog.String("group_id", group.ID),
		slog.String("lesson_id", lessonID),
	)
	return group, nil
}

// CustomerGallery lists a customer's posture groups with URLs resolved in a
// single batch and a day-bucketed view for rendering. Images that cannot be
// resolved are excluded rather than rendered with a broken link.
func (s *postureService) CustomerGallery(ctx context.Context, customerID string, expiresIn time.Duration) (*Gallery, error) {
	groups, err := s.repo.ListGroupsByCustomer(ctx, customerID)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("listing posture groups: %w", err))
	}

	// One batch resolution for the whole view, never one call per image.
	var all []PostureImage
	for _, g := range groups {
		all = append(all, g.Images...)
	}
	urls := s.resolver.ResolveBatch(ctx, all, expiresIn)

	for gi := range groups {
		resolved := groups[gi].Images[:0]
		for _, img := range groups[gi].Images {
			url, ok := urls[img.ID]
			if !ok {
				continue
			}
			img.URL = url
			resolved = append(resolved, img)
		}
		groups[gi].Images = resolved
	}

	var flat []PostureImage
	for _, g := range groups {
		flat = append(flat, g.Images...)
	}
	sort.SliceStable(flat, func(i, j int) bool {
		return flat[i].TakenAt.After(flat[j].TakenAt)
	})

	return &Gallery{
		CustomerID: customerID,
		Groups:     groups,
		Days:       GroupByDate(flat, time.Now()),
	}, nil
}

// Compare resolves the before and after images into a comparison payload
// and, when an analysis collaborator is wired, attaches its result.
func (s *postureService) Compare(ctx context.Context, beforeID, afterID string) (*Comparison, error) {
	if beforeID == "" || afterID == "" {
		return nil, apperror.NewValidation("beforeId and afterId are required")
	}
	if beforeID == afterID {
		return nil, apperror.NewValidation("comparison requires two distinct images")
	}

	before, err := s.repo.FindImageByID(ctx, beforeID)
	if err != nil {
		return nil, err
	}
	after, err := s.repo.FindImageByID(ctx, afterID)
	if err != nil {
		return nil, err
	}

	comparison := &Comparison{
		Before: comparedImage(ctx, s.resolver, before),
		After:  comparedImage(ctx, s.resolver, after),
	}

	if s.comparator != nil {
		analysis, err := s.comparator.Compare(ctx, *before, *after)
		if err != nil {
			// Analysis is an enrichment; the side-by-side payload stands alone.
			slog.Warn("posture comparison analysis failed",
				slog.String("before_id", beforeID),
				slog.String("after_id", afterID),
				slog.Any("error", err),
			)
		} else {
			comparison.Analysis = analysis
		}
	}
	return comparison, nil
}

// comparedImage builds one side of a comparison with its URL resolved.
func comparedImage(ctx context.Context, resolver *URLResolver, img *PostureImage) ComparedImage {
	url, _ := resolver.ResolveOne(ctx, img.StorageKey, 0)
	return ComparedImage{
		ID:       img.ID,
		Position: img.Position,
		TakenAt:  img.TakenAt,
		URL:      url,
	}
}

// validateMagicBytes checks that the file content's magic bytes match the
// declared MIME type. Prevents uploading arbitrary files with a spoofed
// Content-Type header.
func validateMagicBytes(data []byte, declaredMIME string) bool {
	switch declaredMIME {
	case "image/jpeg":
		return len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF
	case "image/png":
		return len(data) >= 8 &&
			data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 &&
			data[4] == 0x0D && data[5] == 0x0A && data[6] == 0x1A && data[7] == 0x0A
	case "image/webp":
		return len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WEBP"
	default:
		return false
	}
}
