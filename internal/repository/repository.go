package repository

import (
	"context"
	"errors"

	"github.com/fjod/storefront/internal/domain"
)

var (
	ErrAdminNotFound   = errors.New("admin not found")
	ErrEmailConflict   = errors.New("email already in use")
	ErrProductNotFound = errors.New("product not found")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

type AdminRepository interface {
	GetByEmail(ctx context.Context, email string) (*domain.Admin, error)
	GetByID(ctx context.Context, id int64) (*domain.Admin, error)
	Create(ctx context.Context, email, passwordHash string) (*domain.Admin, error)
	Update(ctx context.Context, id int64, patch domain.AdminPatch) (*domain.Admin, error)
	Ping(ctx context.Context) error
	RunMigrations(*Credentials) error
	Close() error
}

type ProductRepository interface {
	ListProducts(ctx context.Context, query string) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	RunMigrations(string) error
	Close() error
}

var (
	_ AdminRepository   = (*PostgresAdminRepository)(nil)
	_ ProductRepository = (*SQLiteProductRepository)(nil)
)
