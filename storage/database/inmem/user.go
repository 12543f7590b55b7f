package inmemdb

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ibdp/core"
	"github.com/trezcool/ibdp/core/user"
)

var errProfileExists = errors.New("profile already exists")

// tables is one consistent snapshot of the in-memory database.
type tables struct {
	users        map[string]user.User
	students     map[string]user.StudentProfile
	teachers     map[string]user.TeacherProfile
	coordinators map[string]user.CoordinatorProfile
	assessments  []user.Assessment
}

func newTables() *tables {
	return &tables{
		users:        make(map[string]user.User),
		students:     make(map[string]user.StudentProfile),
		teachers:     make(map[string]user.TeacherProfile),
		coordinators: make(map[string]user.CoordinatorProfile),
	}
}

func (t *tables) clone() *tables {
	c := newTables()
	for k, v := range t.users {
		c.users[k] = v
	}
	for k, v := range t.students {
		c.students[k] = v
	}
	for k, v := range t.teachers {
		c.teachers[k] = v
	}
	for k, v := range t.coordinators {
		c.coordinators[k] = v
	}
	c.assessments = append(c.assessments, t.assessments...)
	return c
}

// DB is a goroutine-safe in-memory store. Transactions are serialized.
type DB struct {
	mutex sync.RWMutex
	data  *tables
}

func NewDB() *DB {
	return &DB{data: newTables()}
}

// Reset drops every row.
func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.data = newTables()
}

type userRepository struct {
	db *DB
	tx *tables // staged copy while inside InTx; nil otherwise
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

// read runs fn against the committed tables, or the staged ones inside a transaction.
func (repo *userRepository) read(fn func(t *tables)) {
	if repo.tx != nil {
		fn(repo.tx)
		return
	}
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	fn(repo.db.data)
}

// write runs fn against a private copy that replaces the committed tables only if fn succeeds,
// so a failed single statement leaves nothing behind.
func (repo *userRepository) write(fn func(t *tables) error) error {
	if repo.tx != nil {
		return fn(repo.tx)
	}
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	staged := repo.db.data.clone()
	if err := fn(staged); err != nil {
		return err
	}
	repo.db.data = staged
	return nil
}

func (repo *userRepository) InTx(ctx context.Context, fn func(tx user.Repository) error) error {
	if repo.tx != nil {
		return fn(repo)
	}
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	staged := repo.db.data.clone()
	if err := fn(&userRepository{db: repo.db, tx: staged}); err != nil {
		return err // staged copy dropped
	}
	repo.db.data = staged
	return nil
}

func (repo *userRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var found bool
	repo.read(func(t *tables) {
		_, found = findByEmail(t, email)
	})
	return found, nil
}

func findByEmail(t *tables, email string) (user.User, bool) {
	for _, usr := range t.users {
		if strings.EqualFold(usr.Email, email) {
			return usr, true
		}
	}
	return user.User{}, false
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	err := repo.write(func(t *tables) error {
		if _, found := findByEmail(t, usr.Email); found {
			return user.ErrEmailExists
		}
		t.users[usr.ID] = usr
		return nil
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) CreateProfile(ctx context.Context, profile user.Profile) error {
	return repo.write(func(t *tables) error {
		if profile == nil {
			return user.ErrNotFound
		}
		owner, ok := t.users[profile.OwnerID()]
		if !ok {
			return user.ErrNotFound
		}
		if owner.Role != profile.Role() {
			return core.NewValidationError(nil, core.FieldError{Field: "role", Error: "profile does not match user role"})
		}

		switch p := profile.(type) {
		case user.StudentProfile:
			if _, exists := t.students[p.UserID]; exists {
				return errProfileExists
			}
			for _, other := range t.students {
				if other.StudentNumber == p.StudentNumber {
					return user.ErrStudentNumberExists
				}
			}
			p.Subjects = copyStrings(p.Subjects)
			t.students[p.UserID] = p
		case user.TeacherProfile:
			if _, exists := t.teachers[p.UserID]; exists {
				return errProfileExists
			}
			p.Subjects = copyStrings(p.Subjects)
			t.teachers[p.UserID] = p
		case user.CoordinatorProfile:
			if _, exists := t.coordinators[p.UserID]; exists {
				return errProfileExists
			}
			t.coordinators[p.UserID] = p
		}
		return nil
	})
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var (
		usr   user.User
		found bool
	)
	repo.read(func(t *tables) {
		usr, found = findByEmail(t, email)
	})
	if !found {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	var (
		usr   user.User
		found bool
	)
	repo.read(func(t *tables) {
		usr, found = t.users[id]
	})
	if !found {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo *userRepository) GetProfile(ctx context.Context, userID string, role user.Role) (user.Profile, error) {
	var profile user.Profile
	repo.read(func(t *tables) {
		switch role {
		case user.RoleStudent:
			if p, ok := t.students[userID]; ok {
				p.Subjects = copyStrings(p.Subjects)
				profile = p
			}
		case user.RoleTeacher:
			if p, ok := t.teachers[userID]; ok {
				p.Subjects = copyStrings(p.Subjects)
				profile = p
			}
		case user.RoleCoordinator:
			if p, ok := t.coordinators[userID]; ok {
				profile = p
			}
		}
	})
	if profile == nil {
		return nil, user.ErrNotFound
	}
	return profile, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	users := make([]user.User, 0)
	repo.read(func(t *tables) {
		for _, usr := range t.users {
			if filter.Search != "" && !containsFold(filter.Search, usr.FirstName, usr.LastName, usr.Email) {
				continue
			}
			if len(filter.Roles) > 0 && !hasRole(filter.Roles, usr.Role) {
				continue
			}
			users = append(users, usr)
		}
	})

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "createdAt", Ascending: false}}
	}
	sort.SliceStable(users, func(i, j int) bool {
		return less(ordering, func(field string) (sortKey, sortKey, bool) {
			a, ok := userField(users[i], field)
			b, _ := userField(users[j], field)
			return a, b, ok
		})
	})
	return users, nil
}

func (repo *userRepository) QueryStudents(ctx context.Context, filter user.StudentFilter, ordering []core.DBOrdering) ([]user.StudentRecord, error) {
	recs := make([]user.StudentRecord, 0)
	repo.read(func(t *tables) {
		for _, usr := range t.users {
			if usr.Role != user.RoleStudent {
				continue
			}
			p, ok := t.students[usr.ID]
			if !ok {
				continue
			}
			if filter.Search != "" && !containsFold(filter.Search, usr.FirstName, usr.LastName, usr.Email, p.StudentNumber) {
				continue
			}
			if filter.Cohort != "" && p.Cohort != filter.Cohort {
				continue
			}
			p.Subjects = copyStrings(p.Subjects)
			rec := user.StudentRecord{User: usr, Profile: p}

			// weighted by max score: total scored over total possible
			var score, max float64
			for _, a := range t.assessments {
				if a.StudentID == usr.ID {
					score += a.Score
					max += a.MaxScore
					rec.AssessmentCount++
				}
			}
			if rec.AssessmentCount > 0 {
				avg := score / max * 100
				rec.AverageScore = &avg
			}
			recs = append(recs, rec)
		}
	})

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "lastName", Ascending: true}, {Field: "firstName", Ascending: true}}
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return less(ordering, func(field string) (sortKey, sortKey, bool) {
			a, ok := studentField(recs[i], field)
			b, _ := studentField(recs[j], field)
			return a, b, ok
		})
	})
	return recs, nil
}

func (repo *userRepository) SetPasswordHash(ctx context.Context, id string, hash []byte, updatedAt time.Time) error {
	return repo.write(func(t *tables) error {
		usr, ok := t.users[id]
		if !ok {
			return user.ErrNotFound
		}
		usr.PasswordHash = hash
		usr.UpdatedAt = updatedAt
		t.users[id] = usr
		return nil
	})
}

func (repo *userRepository) CreateAssessment(ctx context.Context, a user.Assessment) (user.Assessment, error) {
	err := repo.write(func(t *tables) error {
		if _, ok := t.students[a.StudentID]; !ok {
			return user.ErrNotFound
		}
		t.assessments = append(t.assessments, a)
		return nil
	})
	if err != nil {
		return user.Assessment{}, err
	}
	return a, nil
}

func containsFold(needle string, haystack ...string) bool {
	needle = strings.ToLower(needle)
	for _, s := range haystack {
		if strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

func hasRole(roles []user.Role, role user.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func copyStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append(make([]string, 0, len(s)), s...)
}
