package lessons

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/formtrack/formtrack/internal/apperror"
)

// LessonService handles business logic for lesson operations.
type LessonService interface {
	Create(ctx context.Context, input CreateInput) (*Lesson, error)
	GetByID(ctx context.Context, id string) (*Lesson, error)
	Update(ctx context.Context, id string, input UpdateInput) (*Lesson, error)
	Delete(ctx context.Context, id string) error
	ListByCustomer(ctx context.Context, customerID string) ([]Lesson, error)
}

// lessonService implements LessonService.
type lessonService struct {
	repo LessonRepository
}

// NewLessonService creates a new lesson service.
func NewLessonService(repo LessonRepository) LessonService {
	return &lessonService{repo: repo}
}

// Create validates input and creates a new lesson. Posture groups captured
// before this call are linked afterwards by the postures module; lesson
// creation itself never depends on captures having succeeded.
func (s *lessonService) Create(ctx context.Context, input CreateInput) (*Lesson, error) {
	if input.CustomerID == "" {
		return nil, apperror.NewBadRequest("customer is required")
	}
	if input.TrainerID == "" {
		return nil, apperror.NewBadRequest("trainer is required")
	}
	if input.Title == "" {
		return nil, apperror.NewBadRequest("lesson title is required")
	}
	if input.PerformedAt.IsZero() {
		input.PerformedAt = time.Now().UTC()
	}

	now := time.Now().UTC()
	lesson := &Lesson{
		ID:          uuid.NewString(),
		CustomerID:  input.CustomerID,
		TrainerID:   input.TrainerID,
		Title:       input.Title,
		Note:        input.Note,
		PerformedAt: input.PerformedAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, lesson); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("creating lesson: %w", err))
	}
	return lesson, nil
}

// GetByID retrieves a lesson by ID.
func (s *lessonService) GetByID(ctx context.Context, id string) (*Lesson, error) {
	return s.repo.FindByID(ctx, id)
}

// Update applies the non-nil fields of input to the lesson.
func (s *lessonService) Update(ctx context.Context, id string, input UpdateInput) (*Lesson, error) {
	lesson, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		if *input.Title == "" {
			return nil, apperror.NewBadRequest("lesson title cannot be empty")
		}
		lesson.Title = *input.Title
	}
	if input.Note != nil {
		lesson.Note = *input.Note
	}
	if input.PerformedAt != nil {
		lesson.PerformedAt = *input.PerformedAt
	}
	lesson.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, lesson); err != nil {
		return nil, err
	}
	return lesson, nil
}

// Delete removes a lesson.
func (s *lessonService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// ListByCustomer returns a customer's lessons newest first.
func (s *lessonService) ListByCustomer(ctx context.Context, customerID string) ([]Lesson, error) {
	list, err := s.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("listing lessons: %w", err))
	}
	return list, nil
}
