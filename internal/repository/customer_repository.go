package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deskflow/service-desk/internal/domain"
)

// CustomerRepository defines persistence access for customers.
type CustomerRepository interface {
	Create(ctx context.Context, customer *domain.Customer) error
	Update(ctx context.Context, customer *domain.Customer) error
	GetByID(ctx context.Context, id int64) (*domain.Customer, error)
	GetByEmail(ctx context.Context, email string) (*domain.Customer, error)
	List(ctx context.Context) ([]domain.Customer, error)
}

type customerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a Postgres-backed implementation.
func NewCustomerRepository(pool *pgxpool.Pool) CustomerRepository {
	return &customerRepository{pool: pool}
}

const customerColumns = `id, first_name, last_name, email, password_hash, created_at, updated_at`

func (r *customerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	const query = `
        INSERT INTO customers (first_name, last_name, email, password_hash)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		customer.FirstName,
		customer.LastName,
		customer.Email,
		customer.PasswordHash,
	).Scan(&customer.ID, &customer.CreatedAt, &customer.UpdatedAt)
	return mapError(err)
}

func (r *customerRepository) Update(ctx context.Context, customer *domain.Customer) error {
	const query = `
        UPDATE customers SET first_name=$1, last_name=$2, email=$3, password_hash=$4, updated_at=NOW()
        WHERE id=$5`

	cmd, err := r.pool.Exec(ctx, query,
		customer.FirstName,
		customer.LastName,
		customer.Email,
		customer.PasswordHash,
		customer.ID,
	)
	if err != nil {
		return mapError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *customerRepository) GetByID(ctx context.Context, id int64) (*domain.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id=$1`
	return scanCustomer(r.pool.QueryRow(ctx, query, id))
}

func (r *customerRepository) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE email=$1`
	return scanCustomer(r.pool.QueryRow(ctx, query, email))
}

func (r *customerRepository) List(ctx context.Context) ([]domain.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers ORDER BY id ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Customer
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *customer)
	}
	return result, rows.Err()
}

func scanCustomer(row pgx.Row) (*domain.Customer, error) {
	var customer domain.Customer
	if err := row.Scan(
		&customer.ID,
		&customer.FirstName,
		&customer.LastName,
		&customer.Email,
		&customer.PasswordHash,
		&customer.CreatedAt,
		&customer.UpdatedAt,
	); err != nil {
		return nil, mapError(err)
	}
	return &customer, nil
}
