package user

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Role is the single role a User holds.
type Role string

// Roles
const (
	RoleStudent     Role = "STUDENT"
	RoleTeacher     Role = "TEACHER"
	RoleCoordinator Role = "COORDINATOR"
	RoleAdmin       Role = "ADMIN"
)

var (
	// AllRoles in ascending order of privilege.
	AllRoles = []Role{RoleStudent, RoleTeacher, RoleCoordinator, RoleAdmin}

	// RegistrableRoles can be self-registered; ADMIN is never creatable.
	RegistrableRoles = []Role{RoleStudent, RoleTeacher, RoleCoordinator}
)

func (r Role) Valid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

func (r Role) String() string { return string(r) }

type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	FirstName    string    `json:"firstName" db:"first_name"`
	LastName     string    `json:"lastName" db:"last_name"`
	Role         Role      `json:"role" db:"role"`
	PasswordHash []byte    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"` // UTC
}

func (u User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) SetPassword(pwd string, cost int) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), cost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

// Profile is the role-specific extension of a User.
// It is implemented only by StudentProfile, TeacherProfile and CoordinatorProfile.
type Profile interface {
	Role() Role
	OwnerID() string
	profile()
}

type StudentProfile struct {
	UserID        string   `json:"userId" db:"user_id"`
	StudentNumber string   `json:"studentNumber" db:"student_number"`
	Cohort        string   `json:"cohort" db:"cohort"`
	Subjects      []string `json:"subjects"`
	CASHours      int      `json:"casHours" db:"cas_hours"`
	CASGoal       int      `json:"casGoal" db:"cas_goal"`
}

type TeacherProfile struct {
	UserID   string   `json:"userId" db:"user_id"`
	Subjects []string `json:"subjects"`
}

type CoordinatorProfile struct {
	UserID string `json:"userId" db:"user_id"`
}

func (StudentProfile) Role() Role     { return RoleStudent }
func (TeacherProfile) Role() Role     { return RoleTeacher }
func (CoordinatorProfile) Role() Role { return RoleCoordinator }

func (p StudentProfile) OwnerID() string     { return p.UserID }
func (p TeacherProfile) OwnerID() string     { return p.UserID }
func (p CoordinatorProfile) OwnerID() string { return p.UserID }

func (StudentProfile) profile()     {}
func (TeacherProfile) profile()     {}
func (CoordinatorProfile) profile() {}

// ProfileMatches reports whether p is the profile a user with role must carry:
// exactly one matching profile for STUDENT, TEACHER and COORDINATOR, none for ADMIN.
func ProfileMatches(role Role, p Profile) bool {
	if role == RoleAdmin {
		return p == nil
	}
	return p != nil && p.Role() == role
}

// Assessment is one graded piece of work of a student.
type Assessment struct {
	ID        string    `json:"id" db:"id"`
	StudentID string    `json:"studentId" db:"student_id"`
	Subject   string    `json:"subject" db:"subject"`
	Title     string    `json:"title" db:"title"`
	Score     float64   `json:"score" db:"score"`
	MaxScore  float64   `json:"maxScore" db:"max_score"`
	TakenAt   time.Time `json:"takenAt" db:"taken_at"`
}

// StudentRecord is a student joined with their profile and assessment average.
type StudentRecord struct {
	User
	Profile         StudentProfile
	AverageScore    *float64 // percentage; nil without assessments
	AssessmentCount int
}

// NewUser contains information needed to register a new User.
type NewUser struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	Role      Role   `json:"role" validate:"required,registrable"`
}

type QueryFilter struct {
	Search string `query:"search"`
	Roles  []Role `query:"role"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = strings.TrimSpace(qf.Search)
	roles := qf.Roles[:0]
	for _, r := range qf.Roles {
		if r = Role(strings.ToUpper(strings.TrimSpace(string(r)))); r != "" {
			roles = append(roles, r)
		}
	}
	qf.Roles = roles
}

const FilterAtRisk = "at-risk"

type StudentFilter struct {
	Search string `query:"search"`
	Cohort string `query:"cohort"`
	Filter string `query:"filter"`
}

func (sf *StudentFilter) Clean() {
	sf.Search = strings.TrimSpace(sf.Search)
	sf.Cohort = strings.TrimSpace(sf.Cohort)
	sf.Filter = strings.ToLower(strings.TrimSpace(sf.Filter))
}
