package postures

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/formtrack/formtrack/internal/apperror"
)

// PostureRepository defines the data access contract for posture groups and
// images.
type PostureRepository interface {
	CreateGroup(ctx context.Context, group *PostureGroup) error
	FindGroupByID(ctx context.Context, id string) (*PostureGroup, error)
	FindGroupByClientToken(ctx context.Context, token string) (*PostureGroup, error)
	FindGroupByLesson(ctx context.Context, lessonID string) (*PostureGroup, error)
	LinkGroupToLesson(ctx context.Context, groupID, lessonID string) error
	ListGroupsByCustomer(ctx context.Context, customerID string) ([]PostureGroup, error)

	CreateImage(ctx context.Context, image *PostureImage) error
	FindImageByID(ctx context.Context, id string) (*PostureImage, error)
	FindImagesByIDs(ctx context.Context, ids []string) ([]PostureImage, error)
	DeleteImage(ctx context.Context, id string) error
}

// postureRepository implements PostureRepository with MariaDB queries.
type postureRepository struct {
	db *sql.DB
}

// NewPostureRepository creates a new posture repository.
func NewPostureRepository(db *sql.DB) PostureRepository {
	return &postureRepository{db: db}
}

// CreateGroup inserts a new posture group record.
func (r *postureRepository) CreateGroup(ctx context.Context, group *PostureGroup) error {
	query := `INSERT INTO posture_groups (id, customer_id, lesson_id, client_token, captured_at, created_at)
	          VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		group.ID, group.CustomerID, group.LessonID, group.ClientToken,
		group.CapturedAt, group.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting posture group: %w", err)
	}
	return nil
}

const groupColumns = `id, customer_id, lesson_id, client_token, captured_at, created_at`

// scanGroup scans a single posture group row.
func scanGroup(row *sql.Row) (*PostureGroup, error) {
	group := &PostureGroup{}
	err := row.Scan(
		&group.ID, &group.CustomerID, &group.LessonID, &group.ClientToken,
		&group.CapturedAt, &group.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return group, nil
}

// FindGroupByID retrieves a posture group by its UUID.
func (r *postureRepository) FindGroupByID(ctx context.Context, id string) (*PostureGroup, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+groupColumns+` FROM posture_groups WHERE id = ?`, id)

	group, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("posture group not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying posture group by id: %w", err)
	}
	return group, nil
}

// FindGroupByClientToken retrieves the group provisioned under a temporary
// client token.
func (r *postureRepository) FindGroupByClientToken(ctx context.Context, token string) (*PostureGroup, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+groupColumns+` FROM posture_groups WHERE client_token = ?`, token)

	group, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("posture group not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying posture group by client token: %w", err)
	}
	return group, nil
}

// FindGroupByLesson retrieves the group already linked to a lesson, if any.
func (r *postureRepository) FindGroupByLesson(ctx context.Context, lessonID string) (*PostureGroup, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+groupColumns+` FROM posture_groups WHERE lesson_id = ?`, lessonID)

	group, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("posture group not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying posture group by lesson: %w", err)
	}
	return group, nil
}

// LinkGroupToLesson sets the lesson foreign key on a group that is not yet
// linked. Linking an already-linked group is a conflict, not an update.
func (r *postureRepository) LinkGroupToLesson(ctx context.Context, groupID, lessonID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE posture_groups SET lesson_id = ? WHERE id = ? AND lesson_id IS NULL`,
		lessonID, groupID,
	)
	if err != nil {
		return fmt.Errorf("linking posture group to lesson: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NewConflict("posture group is already linked to a lesson")
	}
	return nil
}

// ListGroupsByCustomer returns a customer's posture groups newest first,
// with images embedded newest first. Images with an unrecognized position
// are dropped (logged) rather than failing the listing.
func (r *postureRepository) ListGroupsByCustomer(ctx context.Context, customerID string) ([]PostureGroup, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+groupColumns+` FROM posture_groups
		 WHERE customer_id = ? ORDER BY captured_at DESC`, customerID)
	if err != nil {
		return nil, fmt.Errorf("listing posture groups: %w", err)
	}
	defer rows.Close()

	var groups []PostureGroup
	byID := make(map[string]int)
	for rows.Next() {
		var g PostureGroup
		if err := rows.Scan(
			&g.ID, &g.CustomerID, &g.LessonID, &g.ClientToken,
			&g.CapturedAt, &g.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning posture group row: %w", err)
		}
		byID[g.ID] = len(groups)
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, nil
	}

	imgRows, err := r.db.QueryContext(ctx,
		`SELECT i.id, i.posture_group_id, i.storage_key, i.position, i.taken_at, i.consent_publication, i.created_at
		 FROM posture_images i
		 JOIN posture_groups g ON i.posture_group_id = g.id
		 WHERE g.customer_id = ?
		 ORDER BY i.taken_at DESC`, customerID)
	if err != nil {
		return nil, fmt.Errorf("listing posture images: %w", err)
	}
	defer imgRows.Close()

	for imgRows.Next() {
		img, err := scanImage(imgRows)
		if err != nil {
			return nil, err
		}
		if img == nil {
			continue // Unrecognized position, already logged.
		}
		if idx, ok := byID[img.PostureGroupID]; ok {
			groups[idx].Images = append(groups[idx].Images, *img)
		}
	}
	return groups, imgRows.Err()
}

const imageColumns = `id, posture_group_id, storage_key, position, taken_at, consent_publication, created_at`

// scanImage scans one posture image row. Returns (nil, nil) for rows with
// an unrecognized position, which are logged and skipped.
func scanImage(rows *sql.Rows) (*PostureImage, error) {
	var img PostureImage
	var rawPosition string
	if err := rows.Scan(
		&img.ID, &img.PostureGroupID, &img.StorageKey, &rawPosition,
		&img.TakenAt, &img.Consent, &img.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("scanning posture image row: %w", err)
	}

	position, err := ParsePosition(rawPosition)
	if err != nil {
		slog.Warn("dropping posture image with unrecognized position",
			slog.String("image_id", img.ID),
			slog.String("position", rawPosition),
		)
		return nil, nil
	}
	img.Position = position
	return &img, nil
}

// CreateImage inserts a new posture image record.
func (r *postureRepository) CreateImage(ctx context.Context, image *PostureImage) error {
	query := `INSERT INTO posture_images (id, posture_group_id, storage_key, position, taken_at, consent_publication, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		image.ID, image.PostureGroupID, image.StorageKey, string(image.Position),
		image.TakenAt, image.Consent, image.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting posture image: %w", err)
	}
	return nil
}

// FindImageByID retrieves a posture image by its UUID.
func (r *postureRepository) FindImageByID(ctx context.Context, id string) (*PostureImage, error) {
	img := &PostureImage{}
	var rawPosition string
	err := r.db.QueryRowContext(ctx,
		`SELECT `+imageColumns+` FROM posture_images WHERE id = ?`, id).Scan(
		&img.ID, &img.PostureGroupID, &img.StorageKey, &rawPosition,
		&img.TakenAt, &img.Consent, &img.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("posture image not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying posture image by id: %w", err)
	}

	position, perr := ParsePosition(rawPosition)
	if perr != nil {
		return nil, apperror.NewNotFound("posture image not found")
	}
	img.Position = position
	return img, nil
}

// FindImagesByIDs retrieves the images for a batch of ids. Unknown ids are
// simply absent from the result; order is not guaranteed.
func (r *postureRepository) FindImagesByIDs(ctx context.Context, ids []string) ([]PostureImage, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+imageColumns+` FROM posture_images WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying posture images by ids: %w", err)
	}
	defer rows.Close()

	var images []PostureImage
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		if img == nil {
			continue
		}
		images = append(images, *img)
	}
	return images, rows.Err()
}

// DeleteImage removes a posture image record.
func (r *postureRepository) DeleteImage(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM posture_images WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting posture image: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NewNotFound("posture image not found")
	}
	return nil
}
