package testhelpers

import (
	"context"
	"os"
	"testing"
	"time"

	"storefront/internal/models"
	"storefront/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const connectTimeout = 3 * time.Second

// TestDB holds the database connection for testing
type TestDB struct {
	Pool    *pgxpool.Pool
	Cleanup func() error
}

// SetupTestDB connects to TEST_DATABASE_URL, applies the schema and empties
// the tables. The test is skipped when no database is configured or reachable.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		t.Fatalf("Invalid TEST_DATABASE_URL: %v", err)
	}
	cfg.MaxConns = 32

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Skipf("test database unavailable: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("test database unreachable: %v", err)
	}

	if err := database.EnsureSchema(context.Background(), pool); err != nil {
		pool.Close()
		t.Fatalf("Failed to apply schema: %v", err)
	}
	truncate(t, pool)

	db := &TestDB{
		Pool: pool,
		Cleanup: func() error {
			pool.Close()
			return nil
		},
	}
	t.Cleanup(func() { _ = db.Cleanup() })
	return db
}

func truncate(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	if _, err := pool.Exec(context.Background(), `TRUNCATE orders, stock, products, users`); err != nil {
		t.Fatalf("Failed to truncate tables: %v", err)
	}
}

// SetupTestUser creates a test user for testing
func SetupTestUser(t *testing.T, db *TestDB, role models.Role) *models.User {
	t.Helper()

	user := &models.User{
		ID:           uuid.New(),
		Username:     "user-" + uuid.NewString()[:8],
		PasswordHash: "not-a-real-hash",
		Address:      "1 Test Street",
		Role:         role,
	}
	query := `
		INSERT INTO users (id, username, password_hash, address, role)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := db.Pool.Exec(context.Background(), query, user.ID, user.Username, user.PasswordHash, user.Address, user.Role)
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

// SetupTestProduct creates a product and its stock row
func SetupTestProduct(t *testing.T, db *TestDB, price int64, quantity int) *models.Product {
	t.Helper()

	product := &models.Product{
		ID:          uuid.New(),
		Name:        "Test Product " + uuid.NewString()[:8],
		Description: "Test product description",
		Price:       price,
	}

	ctx := context.Background()
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO products (id, name, description, price) VALUES ($1, $2, $3, $4)`,
		product.ID, product.Name, product.Description, product.Price)
	if err != nil {
		t.Fatalf("Failed to create test product: %v", err)
	}

	_, err = db.Pool.Exec(ctx,
		`INSERT INTO stock (id, product_id, quantity) VALUES ($1, $2, $3)`,
		uuid.New(), product.ID, quantity)
	if err != nil {
		t.Fatalf("Failed to create test stock: %v", err)
	}
	return product
}

// StockOf reads the current quantity for a product
func StockOf(t *testing.T, db *TestDB, productID uuid.UUID) int {
	t.Helper()

	var quantity int
	err := db.Pool.QueryRow(context.Background(), `SELECT quantity FROM stock WHERE product_id = $1`, productID).Scan(&quantity)
	if err != nil {
		t.Fatalf("Failed to read stock: %v", err)
	}
	return quantity
}
