package user

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/ibdp/core"
)

var (
	NowFunc  = time.Now  // mockable
	randFunc = rand.Intn // mockable

	// errors
	ErrNotFound            = errors.New("user not found")
	ErrEmailExists         = errors.New("User with this email already exists")
	ErrStudentNumberExists = errors.New("student number already exists")

	maxRegisterAttempts = 5
	defaultCASGoal      = 150
)

func init() {
	rand.Seed(time.Now().UnixNano())
}

type (
	Repository interface {
		// InTx runs fn against a Repository bound to one transaction.
		// The transaction is committed when fn returns nil and rolled back otherwise.
		InTx(ctx context.Context, fn func(tx Repository) error) error

		EmailExists(ctx context.Context, email string) (bool, error)
		CreateUser(ctx context.Context, usr User) (User, error)
		CreateProfile(ctx context.Context, profile Profile) error
		// GetUserByEmail matches email case-insensitively.
		GetUserByEmail(ctx context.Context, email string) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		// GetProfile returns the profile matching role, ErrNotFound if the user has none.
		GetProfile(ctx context.Context, userID string, role Role) (Profile, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.FirstName, User.LastName or User.Email.
		QueryUsers(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]User, error)
		QueryStudents(ctx context.Context, filter StudentFilter, ordering []core.DBOrdering) ([]StudentRecord, error)
		SetPasswordHash(ctx context.Context, id string, hash []byte, updatedAt time.Time) error
		CreateAssessment(ctx context.Context, a Assessment) (Assessment, error)
	}

	Service struct {
		repo          Repository
		bcryptCost    int
		reservedEmail string
	}
)

// NewService returns a user Service. The configured admin email is reserved and can never be registered.
func NewService(repo Repository, conf *core.Config) *Service {
	return &Service{
		repo:          repo,
		bcryptCost:    conf.BcryptCost,
		reservedEmail: strings.ToLower(conf.Admin.Email),
	}
}

// Register creates the User and exactly its role-matching profile, atomically.
// nu must have been validated.
func (svc *Service) Register(ctx context.Context, nu NewUser) (User, Profile, error) {
	if nu.Role == RoleAdmin {
		return User{}, nil, core.NewForbiddenError(ErrAdminRegistration)
	}
	if !nu.Role.Valid() {
		return User{}, nil, core.NewValidationError(nil, core.FieldError{Field: "role", Error: registrableText})
	}
	if svc.reservedEmail != "" && strings.ToLower(nu.Email) == svc.reservedEmail {
		return User{}, nil, core.NewConflictError(ErrEmailExists, "email")
	}

	// advisory only: the unique constraint has the final word
	exists, err := svc.repo.EmailExists(ctx, nu.Email)
	if err != nil {
		return User{}, nil, errors.Wrap(err, "checking email")
	}
	if exists {
		return User{}, nil, core.NewConflictError(ErrEmailExists, "email")
	}

	now := NowFunc().UTC()
	usr := User{
		Email:     nu.Email,
		FirstName: nu.FirstName,
		LastName:  nu.LastName,
		Role:      nu.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password, svc.bcryptCost); err != nil {
		return User{}, nil, errors.Wrap(err, "hashing password")
	}

	var profile Profile
	for attempt := 1; attempt <= maxRegisterAttempts; attempt++ {
		usr.ID = uuid.New().String()
		err = svc.repo.InTx(ctx, func(tx Repository) error {
			created, err := tx.CreateUser(ctx, usr)
			if err != nil {
				return errors.Wrap(err, "creating user")
			}
			profile = newProfile(created, now)
			if err := tx.CreateProfile(ctx, profile); err != nil {
				return errors.Wrap(err, "creating profile")
			}
			usr = created
			return nil
		})
		if errors.Cause(err) != ErrStudentNumberExists {
			break
		}
	}

	if err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return User{}, nil, core.NewConflictError(ErrEmailExists, "email")
		}
		return User{}, nil, errors.Wrap(err, "registering user")
	}
	return usr, profile, nil
}

// newProfile bootstraps the profile of a freshly created user. ADMIN users have none.
func newProfile(usr User, now time.Time) Profile {
	switch usr.Role {
	case RoleStudent:
		year := now.Year()
		return StudentProfile{
			UserID:        usr.ID,
			StudentNumber: fmt.Sprintf("IB%d%04d", year, randFunc(10000)),
			Cohort:        fmt.Sprintf("%d-%d", year, year+2),
			Subjects:      []string{},
			CASHours:      0,
			CASGoal:       defaultCASGoal,
		}
	case RoleTeacher:
		return TeacherProfile{UserID: usr.ID, Subjects: []string{}}
	case RoleCoordinator:
		return CoordinatorProfile{UserID: usr.ID}
	}
	return nil
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email))
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

// GetProfile returns the profile of usr; nil for ADMIN users.
func (svc *Service) GetProfile(ctx context.Context, usr User) (Profile, error) {
	if usr.Role == RoleAdmin {
		return nil, nil
	}
	profile, err := svc.repo.GetProfile(ctx, usr.ID, usr.Role)
	if err != nil {
		return nil, errors.Wrapf(err, "getting %s profile of user %s", usr.Role, usr.ID)
	}
	return profile, nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *Service) QueryStudents(ctx context.Context, filter StudentFilter, ordering []core.DBOrdering) ([]StudentRecord, error) {
	return svc.repo.QueryStudents(ctx, filter, ordering)
}

// ResetPassword sets a new password for the user with the given email. sp must have been validated.
func (svc *Service) ResetPassword(ctx context.Context, email string, sp SetPassword) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := usr.SetPassword(sp.Password, svc.bcryptCost); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	return svc.repo.SetPasswordHash(ctx, usr.ID, usr.PasswordHash, NowFunc().UTC())
}

// AddAssessment records a graded assessment for a student.
func (svc *Service) AddAssessment(ctx context.Context, a Assessment) (Assessment, error) {
	if a.MaxScore <= 0 || a.Score < 0 || a.Score > a.MaxScore {
		return Assessment{}, core.NewValidationError(nil, core.FieldError{Field: "score", Error: "score must be between 0 and maxScore"})
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.TakenAt.IsZero() {
		a.TakenAt = NowFunc().UTC()
	}
	return svc.repo.CreateAssessment(ctx, a)
}
