package repository

import (
	"context"
	"database/sql"
	"log"
	"testing"
	"time"

	"greenpoints/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var testDB *sql.DB

func setupTestDB() (func(context.Context, ...testcontainers.TerminateOption) error, error) {
	var (
		dbName = "testdb"
		dbPwd  = "password"
		dbUser = "user"
	)

	dbContainer, err := postgres.Run(
		context.Background(),
		"postgres:15",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
	)
	if err != nil {
		return nil, err
	}

	dbHost, err := dbContainer.Host(context.Background())
	if err != nil {
		return dbContainer.Terminate, err
	}

	dbPort, err := dbContainer.MappedPort(context.Background(), "5432/tcp")
	if err != nil {
		return dbContainer.Terminate, err
	}

	connStr := "postgres://" + dbUser + ":" + dbPwd + "@" + dbHost + ":" + dbPort.Port() + "/" + dbName + "?sslmode=disable"
	testDB, err = sql.Open("pgx", connStr)
	if err != nil {
		return dbContainer.Terminate, err
	}

	// Create the tables the exchange path touches
	_, err = testDB.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			email VARCHAR(255) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			display_name VARCHAR(100) NOT NULL DEFAULT '',
			role VARCHAR(50) NOT NULL DEFAULT 'user',
			points BIGINT NOT NULL DEFAULT 0 CHECK (points >= 0),
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS products (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			image_url VARCHAR(512) NOT NULL DEFAULT '',
			points_required BIGINT NOT NULL,
			stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= -1),
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			deleted_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS exchange_orders (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id),
			product_id UUID NOT NULL REFERENCES products(id),
			quantity INTEGER NOT NULL,
			points_used BIGINT NOT NULL,
			product_name VARCHAR(255) NOT NULL,
			product_points BIGINT NOT NULL,
			delivery_address TEXT NOT NULL DEFAULT '',
			contact_phone VARCHAR(50) NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			tracking_number VARCHAR(100) NOT NULL DEFAULT '',
			idempotency_key VARCHAR(100),
			deleted_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_exchange_orders_idempotency
			ON exchange_orders (user_id, idempotency_key)
			WHERE idempotency_key IS NOT NULL;

		CREATE TABLE IF NOT EXISTS points_ledger (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id),
			delta BIGINT NOT NULL,
			type VARCHAR(50) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			related_table VARCHAR(100),
			related_id UUID,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return dbContainer.Terminate, err
	}

	return dbContainer.Terminate, nil
}

func TestMain(m *testing.M) {
	teardown, err := setupTestDB()
	if err != nil {
		log.Fatalf("could not start postgres container: %v", err)
	}

	m.Run()

	if teardown != nil {
		if err := teardown(context.Background()); err != nil {
			log.Fatalf("could not teardown postgres container: %v", err)
		}
	}
}

func insertTestUser(t *testing.T, points int64) *domain.User {
	t.Helper()

	user := &domain.User{
		ID:           uuid.New(),
		Email:        uuid.New().String() + "@example.com",
		PasswordHash: "not-a-real-hash",
		DisplayName:  "Test User",
		Role:         domain.RoleUser,
		Points:       points,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := NewUserRepository(testDB).Create(context.Background(), user); err != nil {
		t.Fatalf("failed to insert test user: %v", err)
	}
	return user
}

// Feature: redemption-platform, Property 1: Registration creates hashed passwords
// Validates: Requirements 1.1, 1.3
func TestProperty_RegistrationCreatesHashedPasswords(t *testing.T) {
	repo := NewUserRepository(testDB)
	ctx := context.Background()

	properties := gopter.NewProperties(nil)

	properties.Property("passwords are hashed with bcrypt and not stored as plaintext", prop.ForAll(
		func(email string, password string, displayName string) bool {
			// Clean up before each test
			_, _ = testDB.Exec("DELETE FROM users WHERE email = $1", email)

			// Hash the password with bcrypt
			hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				t.Logf("Failed to hash password: %v", err)
				return false
			}

			// Create user with hashed password
			user := &domain.User{
				ID:           uuid.New(),
				Email:        email,
				PasswordHash: string(hashedPassword),
				DisplayName:  displayName,
				Role:         domain.RoleUser,
				CreatedAt:    time.Now(),
				UpdatedAt:    time.Now(),
			}

			// Store the user
			err = repo.Create(ctx, user)
			if err != nil {
				t.Logf("Failed to create user: %v", err)
				return false
			}

			// Retrieve the user
			retrievedUser, err := repo.FindByEmail(ctx, email)
			if err != nil {
				t.Logf("Failed to find user: %v", err)
				return false
			}

			// Verify the password is hashed (not equal to plaintext)
			if retrievedUser.PasswordHash == password {
				t.Logf("Password was stored as plaintext!")
				return false
			}

			// Verify the stored hash is a valid bcrypt hash by comparing
			err = bcrypt.CompareHashAndPassword([]byte(retrievedUser.PasswordHash), []byte(password))
			if err != nil {
				t.Logf("Stored password is not a valid bcrypt hash: %v", err)
				return false
			}

			// Clean up after test
			_, _ = testDB.Exec("DELETE FROM users WHERE email = $1", email)

			return true
		},
		// Generate valid email addresses
		gen.RegexMatch(`[a-z]{5,10}@[a-z]{3,8}\.(com|org|net)`),
		// Generate passwords with at least 8 characters
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
		// Generate display names
		gen.RegexMatch(`[A-Z][a-z]{2,15}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: redemption-platform, Property 2: Debits never drive a balance negative
// Validates: Requirements 4.2, 4.3
func TestProperty_DebitPointsNeverGoesNegative(t *testing.T) {
	repo := NewUserRepository(testDB)
	ctx := context.Background()

	properties := gopter.NewProperties(nil)

	properties.Property("a debit either leaves balance - amount or fails leaving the balance untouched", prop.ForAll(
		func(balance int64, amount int64) bool {
			user := insertTestUser(t, balance)
			defer func() { _, _ = testDB.Exec("DELETE FROM users WHERE id = $1", user.ID) }()

			remaining, err := repo.DebitPoints(ctx, user.ID, amount)

			stored, findErr := repo.FindByID(ctx, user.ID)
			if findErr != nil {
				t.Logf("Failed to reload user: %v", findErr)
				return false
			}

			if amount > balance {
				if err != domain.ErrInsufficientPoints {
					t.Logf("Expected ErrInsufficientPoints for balance=%d amount=%d, got %v", balance, amount, err)
					return false
				}
				if stored.Points != balance {
					t.Logf("Failed debit mutated balance: %d -> %d", balance, stored.Points)
					return false
				}
				return true
			}

			if err != nil {
				t.Logf("Debit failed for balance=%d amount=%d: %v", balance, amount, err)
				return false
			}
			if remaining != balance-amount {
				t.Logf("Wrong remaining balance: expected %d, got %d", balance-amount, remaining)
				return false
			}
			if stored.Points != remaining {
				t.Logf("Stored balance %d disagrees with returned remaining %d", stored.Points, remaining)
				return false
			}
			return true
		},
		gen.Int64Range(0, 10000),
		gen.Int64Range(1, 10000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestUserRepository_ListAdmins(t *testing.T) {
	repo := NewUserRepository(testDB)
	ctx := context.Background()

	admin := &domain.User{
		ID:           uuid.New(),
		Email:        uuid.New().String() + "@example.com",
		PasswordHash: "not-a-real-hash",
		DisplayName:  "Admin",
		Role:         domain.RoleAdmin,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := repo.Create(ctx, admin); err != nil {
		t.Fatalf("failed to create admin: %v", err)
	}
	regular := insertTestUser(t, 0)
	defer func() {
		_, _ = testDB.Exec("DELETE FROM users WHERE id = $1", admin.ID)
		_, _ = testDB.Exec("DELETE FROM users WHERE id = $1", regular.ID)
	}()

	admins, err := repo.ListAdmins(ctx)
	if err != nil {
		t.Fatalf("ListAdmins failed: %v", err)
	}

	found := false
	for _, u := range admins {
		if u.Role != domain.RoleAdmin {
			t.Errorf("ListAdmins returned non-admin %s with role %s", u.ID, u.Role)
		}
		if u.ID == admin.ID {
			found = true
		}
	}
	if !found {
		t.Error("ListAdmins did not return the inserted admin")
	}
}
