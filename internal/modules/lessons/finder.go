package lessons

import "context"

// Finder is the narrow read-only view other modules take on lessons.
// It keeps cross-module coupling to a single lookup instead of the full
// service surface.
type Finder struct {
	service LessonService
}

// NewFinder wraps a lesson service in its cross-module read view.
func NewFinder(service LessonService) *Finder {
	return &Finder{service: service}
}

// FindLessonCustomer returns the owning customer of a lesson, or the
// lesson's not-found error.
func (f *Finder) FindLessonCustomer(ctx context.Context, lessonID string) (string, error) {
	lesson, err := f.service.GetByID(ctx, lessonID)
	if err != nil {
		return "", err
	}
	return lesson.CustomerID, nil
}
