package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/ibdp/core"
	"github.com/trezcool/ibdp/core/user"
)

// ErrInvalidCredentials is the only failure a caller ever sees for a bad email/password pair.
var ErrInvalidCredentials = errors.New("invalid credentials")

type (
	// Store is the narrow persistence contract of the Verifier: find by email, then fetch the profile.
	Store interface {
		GetByEmail(ctx context.Context, email string) (user.User, error)
		GetProfile(ctx context.Context, usr user.User) (user.Profile, error)
	}

	// AdminCredentials describe the built-in administrator, which has no store row.
	AdminCredentials struct {
		ID           string
		Email        string
		Password     string
		PasswordHash []byte
		DisplayName  string
	}

	Verifier struct {
		store     Store
		admin     AdminCredentials
		dummyHash []byte
	}
)

// AdminCredentialsFromConfig reads the administrator identity from conf.
func AdminCredentialsFromConfig(conf *core.Config) AdminCredentials {
	admin := AdminCredentials{
		ID:          conf.Admin.ID,
		Email:       conf.Admin.Email,
		Password:    conf.Admin.Password,
		DisplayName: user.User{FirstName: conf.Admin.FirstName, LastName: conf.Admin.LastName}.DisplayName(),
	}
	if conf.Admin.PasswordHash != "" {
		admin.PasswordHash = []byte(conf.Admin.PasswordHash)
	}
	return admin
}

// NewVerifier returns a Verifier. bcryptCost sizes the dummy hash compared on the "email not found" path,
// so that it costs as much as a real comparison.
func NewVerifier(store Store, admin AdminCredentials, bcryptCost int) (*Verifier, error) {
	if err := vala.BeginValidation().Validate(
		vala.IsNotNil(store, "store"),
		vala.StringNotEmpty(admin.ID, "admin.ID"),
	).Check(); err != nil {
		return nil, err
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcryptCost)
	if err != nil {
		return nil, errors.Wrap(err, "generating dummy hash")
	}
	return &Verifier{store: store, admin: admin, dummyHash: dummy}, nil
}

// Verify decides whether (email, password) identifies a legitimate account.
// Every credential failure returns ErrInvalidCredentials; other errors are storage failures.
func (v *Verifier) Verify(ctx context.Context, email, password string) (Identity, error) {
	if email == "" || password == "" {
		return Identity{}, ErrInvalidCredentials
	}

	// the admin address never reaches the store, match or not
	if v.admin.Email != "" && email == v.admin.Email {
		if !v.adminPasswordMatches(password) {
			return Identity{}, ErrInvalidCredentials
		}
		return Identity{
			ID:          v.admin.ID,
			Email:       v.admin.Email,
			DisplayName: v.admin.DisplayName,
			Role:        user.RoleAdmin,
		}, nil
	}

	usr, err := v.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			_ = bcrypt.CompareHashAndPassword(v.dummyHash, []byte(password))
			return Identity{}, ErrInvalidCredentials
		}
		return Identity{}, errors.Wrap(err, "finding user by email")
	}
	if len(usr.PasswordHash) == 0 || usr.CheckPassword(password) != nil {
		return Identity{}, ErrInvalidCredentials
	}

	profile, err := v.store.GetProfile(ctx, usr)
	if err != nil {
		return Identity{}, errors.Wrap(err, "getting profile")
	}
	if !user.ProfileMatches(usr.Role, profile) {
		return Identity{}, errors.Errorf("user %s: profile does not match role %s", usr.ID, usr.Role)
	}

	return Identity{
		ID:          usr.ID,
		Email:       usr.Email,
		DisplayName: usr.DisplayName(),
		Role:        usr.Role,
		Profile:     profile,
	}, nil
}

func (v *Verifier) adminPasswordMatches(password string) bool {
	if len(v.admin.PasswordHash) > 0 {
		return bcrypt.CompareHashAndPassword(v.admin.PasswordHash, []byte(password)) == nil
	}
	if v.admin.Password == "" {
		return false
	}
	got := sha256.Sum256([]byte(password))
	want := sha256.Sum256([]byte(v.admin.Password))
	return subtle.ConstantTimeCompare(got[:], want[:]) == 1
}
