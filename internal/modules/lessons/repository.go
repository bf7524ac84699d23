package lessons

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/formtrack/formtrack/internal/apperror"
)

// LessonRepository defines the data access contract for lessons.
type LessonRepository interface {
	Create(ctx context.Context, lesson *Lesson) error
	FindByID(ctx context.Context, id string) (*Lesson, error)
	Update(ctx context.Context, lesson *Lesson) error
	Delete(ctx context.Context, id string) error
	ListByCustomer(ctx context.Context, customerID string) ([]Lesson, error)
}

// lessonRepository implements LessonRepository with MariaDB queries.
type lessonRepository struct {
	db *sql.DB
}

// NewLessonRepository creates a new lesson repository.
func NewLessonRepository(db *sql.DB) LessonRepository {
	return &lessonRepository{db: db}
}

// Create inserts a new lesson record.
func (r *lessonRepository) Create(ctx context.Context, lesson *Lesson) error {
	query := `INSERT INTO lessons (id, customer_id, trainer_id, title, note, performed_at, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		lesson.ID, lesson.CustomerID, lesson.TrainerID,
		lesson.Title, lesson.Note, lesson.PerformedAt,
		lesson.CreatedAt, lesson.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting lesson: %w", err)
	}
	return nil
}

// FindByID retrieves a lesson by its UUID.
func (r *lessonRepository) FindByID(ctx context.Context, id string) (*Lesson, error) {
	query := `SELECT id, customer_id, trainer_id, title, note, performed_at, created_at, updated_at
	          FROM lessons WHERE id = ?`

	lesson := &Lesson{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&lesson.ID, &lesson.CustomerID, &lesson.TrainerID,
		&lesson.Title, &lesson.Note, &lesson.PerformedAt,
		&lesson.CreatedAt, &lesson.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("lesson not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying lesson by id: %w", err)
	}
	return lesson, nil
}

// Update writes the mutable fields of a lesson.
func (r *lessonRepository) Update(ctx context.Context, lesson *Lesson) error {
	query := `UPDATE lessons SET title = ?, note = ?, performed_at = ?, updated_at = ?
	          WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		lesson.Title, lesson.Note, lesson.PerformedAt,
		lesson.UpdatedAt, lesson.ID,
	)
	if err != nil {
		return fmt.Errorf("updating lesson: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NewNotFound("lesson not found")
	}
	return nil
}

// Delete removes a lesson record.
func (r *lessonRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM lessons WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting lesson: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NewNotFound("lesson not found")
	}
	return nil
}

// ListByCustomer returns a customer's lessons newest first.
func (r *lessonRepository) ListByCustomer(ctx context.Context, customerID string) ([]Lesson, error) {
	query := `SELECT id, customer_id, trainer_id, title, note, performed_at, created_at, updated_at
	          FROM lessons WHERE customer_id = ? ORDER BY performed_at DESC`

	rows, err := r.db.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("listing lessons: %w", err)
	}
	defer rows.Close()

	var list []Lesson
	for rows.Next() {
		var l Lesson
		if err := rows.Scan(
			&l.ID, &l.CustomerID, &l.TrainerID,
			&l.Title, &l.Note, &l.PerformedAt,
			&l.CreatedAt, &l.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning lesson row: %w", err)
		}
		list = append(list, l)
	}
	return list, rows.Err()
}
