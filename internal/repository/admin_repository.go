package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/pkg/circuitbreaker"
)

const adminColumns = "id, email, password_hash, created_at"

type PostgresAdminRepository struct {
	db      *sql.DB
	breaker *circuitbreaker.Breaker[*domain.Admin]
}

func NewAdminRepository(cred *Credentials, log *zap.Logger) (*PostgresAdminRepository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	log.Info("connected to postgres", zap.String("host", cred.Host), zap.String("db", cred.DBName))
	return newAdminRepository(db, log), nil
}

func newAdminRepository(db *sql.DB, log *zap.Logger) *PostgresAdminRepository {
	return &PostgresAdminRepository{
		db: db,
		breaker: circuitbreaker.New[*domain.Admin](circuitbreaker.Settings{
			Name:     "admin-store",
			Expected: []error{ErrAdminNotFound, ErrEmailConflict},
		}, log),
	}
}

func (r *PostgresAdminRepository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "admins_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}
	return nil
}

func (r *PostgresAdminRepository) GetByEmail(ctx context.Context, email string) (*domain.Admin, error) {
	return r.breaker.Execute(func() (*domain.Admin, error) {
		query := `SELECT ` + adminColumns + ` FROM admins WHERE email = $1`
		return r.scanOne(r.db.QueryRowContext(ctx, query, email), "query admin by email")
	})
}

func (r *PostgresAdminRepository) GetByID(ctx context.Context, id int64) (*domain.Admin, error) {
	return r.breaker.Execute(func() (*domain.Admin, error) {
		query := `SELECT ` + adminColumns + ` FROM admins WHERE id = $1`
		return r.scanOne(r.db.QueryRowContext(ctx, query, id), "query admin by id")
	})
}

func (r *PostgresAdminRepository) Create(ctx context.Context, email, passwordHash string) (*domain.Admin, error) {
	return r.breaker.Execute(func() (*domain.Admin, error) {
		query := `INSERT INTO admins (email, password_hash) VALUES ($1, $2) RETURNING ` + adminColumns
		return r.scanOne(r.db.QueryRowContext(ctx, query, email, passwordHash), "insert admin")
	})
}

// Update writes the non-nil fields of patch. Column names come only from the
// fixed AdminPatch fields; values are always bound parameters.
func (r *PostgresAdminRepository) Update(ctx context.Context, id int64, patch domain.AdminPatch) (*domain.Admin, error) {
	if patch.Empty() {
		return r.GetByID(ctx, id)
	}

	var (
		sets []string
		args []interface{}
	)
	if patch.Email != nil {
		args = append(args, *patch.Email)
		sets = append(sets, fmt.Sprintf("email = $%d", len(args)))
	}
	if patch.PasswordHash != nil {
		args = append(args, *patch.PasswordHash)
		sets = append(sets, fmt.Sprintf("password_hash = $%d", len(args)))
	}
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE admins SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), adminColumns)

	return r.breaker.Execute(func() (*domain.Admin, error) {
		return r.scanOne(r.db.QueryRowContext(ctx, query, args...), "update admin")
	})
}

func (r *PostgresAdminRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// BreakerState reports the state of the credential store circuit breaker.
func (r *PostgresAdminRepository) BreakerState() string {
	return r.breaker.State()
}

func (r *PostgresAdminRepository) Close() error {
	return r.db.Close()
}

func (r *PostgresAdminRepository) scanOne(row *sql.Row, op string) (*domain.Admin, error) {
	var a domain.Admin
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAdminNotFound
	}
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrEmailConflict
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &a, nil
}
