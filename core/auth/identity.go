package auth

import "github.com/trezcool/ibdp/core/user"

// Identity is the canonical result of a successful verification.
// Profile holds the one profile matching Role, or nil for ADMIN.
type Identity struct {
	ID          string       `json:"id"`
	Email       string       `json:"email"`
	DisplayName string       `json:"name"`
	Role        user.Role    `json:"role"`
	Profile     user.Profile `json:"-"`
}

// IsZero reports whether id is the unauthenticated identity.
func (id Identity) IsZero() bool { return id.ID == "" }

func (id Identity) StudentProfile() (user.StudentProfile, bool) {
	if id.Role != user.RoleStudent {
		return user.StudentProfile{}, false
	}
	p, ok := id.Profile.(user.StudentProfile)
	return p, ok
}

func (id Identity) TeacherProfile() (user.TeacherProfile, bool) {
	if id.Role != user.RoleTeacher {
		return user.TeacherProfile{}, false
	}
	p, ok := id.Profile.(user.TeacherProfile)
	return p, ok
}

func (id Identity) CoordinatorProfile() (user.CoordinatorProfile, bool) {
	if id.Role != user.RoleCoordinator {
		return user.CoordinatorProfile{}, false
	}
	p, ok := id.Profile.(user.CoordinatorProfile)
	return p, ok
}
