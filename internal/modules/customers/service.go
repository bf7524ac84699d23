package customers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/formtrack/formtrack/internal/apperror"
	"github.com/formtrack/formtrack/internal/cache"
)

// optionCacheKey is the cache key for the customer selection dropdown.
const optionCacheKey = "options:customers"

// CustomerService handles business logic for customer operations.
type CustomerService interface {
	Create(ctx context.Context, input CreateInput) (*Customer, error)
	GetByID(ctx context.Context, id string) (*Customer, error)
	Update(ctx context.Context, id string, input UpdateInput) (*Customer, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit, offset int) ([]Customer, int, error)

	// ListOptions serves the selection dropdown through the option cache.
	ListOptions(ctx context.Context) ([]Option, error)
}

// customerService implements CustomerService.
type customerService struct {
	repo  CustomerRepository
	cache *cache.Cache
}

// NewCustomerService creates a new customer service.
func NewCustomerService(repo CustomerRepository, c *cache.Cache) CustomerService {
	return &customerService{repo: repo, cache: c}
}

// Create validates input and creates a new customer.
func (s *customerService) Create(ctx context.Context, input CreateInput) (*Customer, error) {
	if input.Name == "" {
		return nil, apperror.NewBadRequest("customer name is required")
	}
	if len(input.Name) > 100 {
		return nil, apperror.NewBadRequest("customer name must be at most 100 characters")
	}

	now := time.Now().UTC()
	customer := &Customer{
		ID:        uuid.NewString(),
		Name:      input.Name,
		Kana:      input.Kana,
		Email:     input.Email,
		Phone:     input.Phone,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, customer); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("creating customer: %w", err))
	}

	s.invalidateOptions(ctx)
	return customer, nil
}

// GetByID retrieves a customer by ID.
func (s *customerService) GetByID(ctx context.Context, id string) (*Customer, error) {
	return s.repo.FindByID(ctx, id)
}

// Update applies the non-nil fields of input to the customer.
func (s *customerService) Update(ctx context.Context, id string, input UpdateInput) (*Customer, error) {
	customer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, apperror.NewBadRequest("customer name cannot be empty")
		}
		customer.Name = *input.Name
	}
	if input.Kana != nil {
		customer.Kana = *input.Kana
	}
	if input.Email != nil {
		customer.Email = *input.Email
	}
	if input.Phone != nil {
		customer.Phone = *input.Phone
	}
	customer.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, customer); err != nil {
		return nil, err
	}

	s.invalidateOptions(ctx)
	return customer, nil
}

// Delete removes a customer.
func (s *customerService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidateOptions(ctx)
	return nil
}

// List returns customers with pagination.
func (s *customerService) List(ctx context.Context, limit, offset int) ([]Customer, int, error) {
	list, total, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, apperror.NewInternal(fmt.Errorf("listing customers: %w", err))
	}
	return list, total, nil
}

// ListOptions returns the dropdown projection, cached with a TTL and
// single-flight refresh.
func (s *customerService) ListOptions(ctx context.Context) ([]Option, error) {
	var options []Option
	err := s.cache.Fetch(ctx, optionCacheKey, &options, func(ctx context.Context) (any, error) {
		return s.repo.ListOptions(ctx)
	})
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("loading customer options: %w", err))
	}
	return options, nil
}

// invalidateOptions drops the cached dropdown after any write. A failed
// invalidation only delays freshness until the TTL expires.
func (s *customerService) invalidateOptions(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, optionCacheKey); err != nil {
		slog.Warn("customer option cache invalidation failed", slog.Any("error", err))
	}
}
