package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	ut "github.com/go-playground/universal-translator"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/ibdp/core"
	"github.com/trezcool/ibdp/core/user"
	"github.com/trezcool/ibdp/storage/database"
)

const (
	AdminEmail    = "admin@ib-dp-assistant.com"
	AdminPassword = "Admin123!@#"
	Password      = "Passw0rdX"
)

// Config returns a TEST configuration that does not read the environment.
// bcrypt runs at its minimum cost to keep the suites fast.
func Config() *core.Config {
	conf := &core.Config{
		Env:        "TEST",
		AppName:    "IB DP Assistant",
		TestMode:   true,
		SecretKey:  "test-secret-key",
		BcryptCost: bcrypt.MinCost,
	}
	conf.Server.Host = "localhost"
	conf.Server.JWTExpirationDelta = time.Hour
	conf.Server.SessionCookie = "session"
	conf.Server.LoginPath = "/login"

	conf.Admin.ID = "admin-001"
	conf.Admin.Email = AdminEmail
	conf.Admin.Password = AdminPassword
	conf.Admin.FirstName = "System"
	conf.Admin.LastName = "Administrator"
	return conf
}

// Validator returns a validator with the user validations registered.
func Validator() (*validator.Validate, ut.Translator) {
	validate, translator := core.NewValidator()
	user.RegisterValidators(validate, translator)
	return validate, translator
}

// CreateUser registers a user through the full registration path.
func CreateUser(t *testing.T, svc *user.Service, first, last, email string, role user.Role) (user.User, user.Profile) {
	usr, profile, err := svc.Register(context.Background(), user.NewUser{
		FirstName: first,
		LastName:  last,
		Email:     email,
		Password:  Password,
		Role:      role,
	})
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr, profile
}

// OpenDB connects to $TEST_DATABASE_URL and migrates it; the test is skipped when it is unset.
func OpenDB(t *testing.T) *sqlx.DB {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := database.OpenURL(url)
	if err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	if err = database.Migrate(db.DB); err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	ResetDB(t, db)
	return db
}

// ResetDB empties every table.
func ResetDB(t *testing.T, db *sqlx.DB) {
	if _, err := db.Exec(`TRUNCATE "user" CASCADE`); err != nil {
		t.Fatalf("ResetDB() failed: %v", err)
	}
}
