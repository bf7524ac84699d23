package customers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/formtrack/formtrack/internal/apperror"
)

// CustomerRepository defines the data access contract for customers.
type CustomerRepository interface {
	Create(ctx context.Context, customer *Customer) error
	FindByID(ctx context.Context, id string) (*Customer, error)
	Update(ctx context.Context, customer *Customer) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit, offset int) ([]Customer, int, error)
	ListOptions(ctx context.Context) ([]Option, error)
}

// customerRepository implements CustomerRepository with MariaDB queries.
type customerRepository struct {
	db *sql.DB
}

// NewCustomerRepository creates a new customer repository.
func NewCustomerRepository(db *sql.DB) CustomerRepository {
	return &customerRepository{db: db}
}

// Create inserts a new customer record.
func (r *customerRepository) Create(ctx context.Context, customer *Customer) error {
	query := `INSERT INTO customers (id, name, kana, email, phone, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		customer.ID, customer.Name, customer.Kana,
		customer.Email, customer.Phone,
		customer.CreatedAt, customer.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting customer: %w", err)
	}
	return nil
}

// FindByID retrieves a customer by its UUID.
func (r *customerRepository) FindByID(ctx context.Context, id string) (*Customer, error) {
	query := `SELECT id, name, kana, email, phone, created_at, updated_at
	          FROM customers WHERE id = ?`

	customer := &Customer{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&customer.ID, &customer.Name, &customer.Kana,
		&customer.Email, &customer.Phone,
		&customer.CreatedAt, &customer.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("customer not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying customer by id: %w", err)
	}
	return customer, nil
}

// Update writes the mutable fields of a customer.
func (r *customerRepository) Update(ctx context.Context, customer *Customer) error {
	query := `UPDATE customers SET name = ?, kana = ?, email = ?, phone = ?, updated_at = ?
	          WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		customer.Name, customer.Kana, customer.Email, customer.Phone,
		customer.UpdatedAt, customer.ID,
	)
	if err != nil {
		return fmt.Errorf("updating customer: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NewNotFound("customer not found")
	}
	return nil
}

// Delete removes a customer record.
func (r *customerRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting customer: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NewNotFound("customer not found")
	}
	return nil
}

// List returns customers with pagination, ordered by kana then name.
func (r *customerRepository) List(ctx context.Context, limit, offset int) ([]Customer, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers`).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting customers: %w", err)
	}

	query := `SELECT id, name, kana, email, phone, created_at, updated_at
	          FROM customers ORDER BY kana, name LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing customers: %w", err)
	}
	defer rows.Close()

	var list []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Kana, &c.Email, &c.Phone,
			&c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scanning customer row: %w", err)
		}
		list = append(list, c)
	}
	return list, total, rows.Err()
}

// ListOptions returns the id/name projection for selection dropdowns.
func (r *customerRepository) ListOptions(ctx context.Context) ([]Option, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name FROM customers ORDER BY kana, name`)
	if err != nil {
		return nil, fmt.Errorf("listing customer options: %w", err)
	}
	defer rows.Close()

	var options []Option
	for rows.Next() {
		var o Option
		if err := rows.Scan(&o.ID, &o.Name); err != nil {
			return nil, fmt.Errorf("scanning customer option row: %w", err)
		}
		options = append(options, o)
	}
	return options, rows.Err()
}
