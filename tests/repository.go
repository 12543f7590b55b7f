package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ibdp/core"
	"github.com/trezcool/ibdp/core/user"
)

var errRollback = errors.New("rollback")

// RepositoryTests runs the behaviour every user.Repository must share against the repositories newRepo returns.
// newRepo must return an empty repository.
func RepositoryTests(t *testing.T, newRepo func(t *testing.T) user.Repository) {
	ctx := context.Background()

	newUser := func(id, first, last, email string, role user.Role) user.User {
		now := time.Now().UTC().Truncate(time.Second)
		return user.User{
			ID: id, FirstName: first, LastName: last, Email: email, Role: role,
			PasswordHash: []byte("$2a$04$hash"), CreatedAt: now, UpdatedAt: now,
		}
	}
	mustCreate := func(t *testing.T, repo user.Repository, usr user.User, profile user.Profile) user.User {
		created, err := repo.CreateUser(ctx, usr)
		require.NoError(t, err)
		if profile != nil {
			require.NoError(t, repo.CreateProfile(ctx, profile))
		}
		return created
	}

	t.Run("users", func(t *testing.T) {
		repo := newRepo(t)
		jane := mustCreate(t, repo, newUser("u1", "Jane", "Doe", "Jane@Test.com", user.RoleTeacher), nil)

		got, err := repo.GetUserByEmail(ctx, "jane@test.COM")
		require.NoError(t, err)
		assert.Equal(t, jane.ID, got.ID)
		assert.Equal(t, "Jane@Test.com", got.Email, "stored as given")
		assert.Equal(t, jane.PasswordHash, got.PasswordHash)

		got, err = repo.GetUserByID(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, user.RoleTeacher, got.Role)

		exists, err := repo.EmailExists(ctx, "JANE@test.com")
		require.NoError(t, err)
		assert.True(t, exists)

		_, err = repo.GetUserByEmail(ctx, "nobody@test.com")
		assert.Equal(t, user.ErrNotFound, pkgerrors.Cause(err))
		_, err = repo.GetUserByID(ctx, "nobody")
		assert.Equal(t, user.ErrNotFound, pkgerrors.Cause(err))

		_, err = repo.CreateUser(ctx, newUser("u2", "Other", "Jane", "jane@test.com", user.RoleStudent))
		assert.Equal(t, user.ErrEmailExists, pkgerrors.Cause(err))
	})

	t.Run("profiles", func(t *testing.T) {
		repo := newRepo(t)
		student := user.StudentProfile{
			UserID: "s1", StudentNumber: "IB20240001", Cohort: "2024-2026",
			Subjects: []string{"Physics HL", "English A SL"}, CASGoal: 150,
		}
		teacher := user.TeacherProfile{UserID: "t1", Subjects: []string{}}
		coord := user.CoordinatorProfile{UserID: "c1"}
		mustCreate(t, repo, newUser("s1", "Jane", "Doe", "jane@test.com", user.RoleStudent), student)
		mustCreate(t, repo, newUser("t1", "Tom", "Doe", "tom@test.com", user.RoleTeacher), teacher)
		mustCreate(t, repo, newUser("c1", "Cleo", "Doe", "cleo@test.com", user.RoleCoordinator), coord)

		for _, want := range []user.Profile{student, teacher, coord} {
			got, err := repo.GetProfile(ctx, want.OwnerID(), want.Role())
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}

		_, err := repo.GetProfile(ctx, "s1", user.RoleTeacher)
		assert.Equal(t, user.ErrNotFound, pkgerrors.Cause(err))

		mustCreate(t, repo, newUser("s2", "Amani", "Doe", "amani@test.com", user.RoleStudent), nil)
		err = repo.CreateProfile(ctx, user.StudentProfile{UserID: "s2", StudentNumber: "IB20240001", Cohort: "2024-2026", CASGoal: 150})
		assert.Equal(t, user.ErrStudentNumberExists, pkgerrors.Cause(err))

		err = repo.CreateProfile(ctx, user.CoordinatorProfile{UserID: "ghost"})
		assert.Equal(t, user.ErrNotFound, pkgerrors.Cause(err))
	})

	t.Run("transactions", func(t *testing.T) {
		repo := newRepo(t)

		err := repo.InTx(ctx, func(tx user.Repository) error {
			if _, err := tx.CreateUser(ctx, newUser("u1", "Jane", "Doe", "jane@test.com", user.RoleCoordinator)); err != nil {
				return err
			}
			// visible inside the transaction
			if _, err := tx.GetUserByID(ctx, "u1"); err != nil {
				return err
			}
			return errRollback
		})
		assert.Equal(t, errRollback, err)
		_, err = repo.GetUserByID(ctx, "u1")
		assert.Equal(t, user.ErrNotFound, pkgerrors.Cause(err))

		err = repo.InTx(ctx, func(tx user.Repository) error {
			if _, err := tx.CreateUser(ctx, newUser("u1", "Jane", "Doe", "jane@test.com", user.RoleCoordinator)); err != nil {
				return err
			}
			return tx.CreateProfile(ctx, user.CoordinatorProfile{UserID: "u1"})
		})
		require.NoError(t, err)
		_, err = repo.GetProfile(ctx, "u1", user.RoleCoordinator)
		assert.NoError(t, err)
	})

	t.Run("query users", func(t *testing.T) {
		repo := newRepo(t)
		mustCreate(t, repo, newUser("u1", "Jane", "Doe", "jane@test.com", user.RoleStudent), nil)
		mustCreate(t, repo, newUser("u2", "Tom", "Tshala", "tom@test.com", user.RoleTeacher), nil)
		mustCreate(t, repo, newUser("u3", "Cleo", "Mbuyi", "cleo@school.org", user.RoleCoordinator), nil)

		ids := func(filter user.QueryFilter, ordering ...core.DBOrdering) []string {
			users, err := repo.QueryUsers(ctx, filter, ordering)
			require.NoError(t, err)
			out := make([]string, 0, len(users))
			for _, usr := range users {
				out = append(out, usr.ID)
			}
			return out
		}

		assert.Equal(t, []string{"u1", "u3", "u2"}, ids(user.QueryFilter{}, core.DBOrdering{Field: "lastName", Ascending: true}))
		assert.Equal(t, []string{"u2", "u3", "u1"}, ids(user.QueryFilter{}, core.DBOrdering{Field: "lastName"}))
		assert.Equal(t, []string{"u3", "u1", "u2"}, ids(user.QueryFilter{}, core.DBOrdering{Field: "firstName", Ascending: true}))
		assert.Equal(t, []string{"u3"}, ids(user.QueryFilter{Search: "SCHOOL"}))
		assert.Equal(t, []string{"u2"}, ids(user.QueryFilter{Search: "tsha"}))
		assert.Empty(t, ids(user.QueryFilter{Search: "%"}))
		assert.ElementsMatch(t, []string{"u1", "u2"}, ids(user.QueryFilter{Roles: []user.Role{user.RoleStudent, user.RoleTeacher}}))
		assert.Empty(t, ids(user.QueryFilter{Roles: []user.Role{user.RoleAdmin}}))
		// unknown ordering fields are ignored
		assert.Len(t, ids(user.QueryFilter{}, core.DBOrdering{Field: "password_hash; DROP TABLE"}), 3)
	})

	t.Run("query students", func(t *testing.T) {
		repo := newRepo(t)
		mustCreate(t, repo, newUser("s1", "Jane", "Doe", "jane@test.com", user.RoleStudent),
			user.StudentProfile{UserID: "s1", StudentNumber: "IB20240001", Cohort: "2024-2026", CASHours: 20, CASGoal: 150})
		mustCreate(t, repo, newUser("s2", "Amani", "Kabila", "amani@test.com", user.RoleStudent),
			user.StudentProfile{UserID: "s2", StudentNumber: "IB20230002", Cohort: "2023-2025", CASHours: 140, CASGoal: 150})
		mustCreate(t, repo, newUser("s3", "Kito", "Zola", "kito@test.com", user.RoleStudent),
			user.StudentProfile{UserID: "s3", StudentNumber: "IB20240003", Cohort: "2024-2026", CASHours: 150, CASGoal: 150})
		mustCreate(t, repo, newUser("t1", "Tom", "Tshala", "tom@test.com", user.RoleTeacher), user.TeacherProfile{UserID: "t1"})

		for _, a := range []user.Assessment{
			{ID: "a1", StudentID: "s1", Subject: "Maths", Title: "P1", Score: 45, MaxScore: 50},
			{ID: "a2", StudentID: "s1", Subject: "Maths", Title: "P2", Score: 80, MaxScore: 100},
			// a small quiz weighs less than a full paper
			{ID: "a4", StudentID: "s3", Subject: "Physics", Title: "Quiz", Score: 1, MaxScore: 10},
			{ID: "a5", StudentID: "s3", Subject: "Physics", Title: "Paper", Score: 90, MaxScore: 100},
		} {
			a.TakenAt = time.Now().UTC()
			_, err := repo.CreateAssessment(ctx, a)
			require.NoError(t, err)
		}
		_, err := repo.CreateAssessment(ctx, user.Assessment{ID: "a3", StudentID: "t1", Subject: "x", Title: "x", Score: 1, MaxScore: 1, TakenAt: time.Now()})
		assert.Equal(t, user.ErrNotFound, pkgerrors.Cause(err), "only students are assessed")

		recs, err := repo.QueryStudents(ctx, user.StudentFilter{}, nil)
		require.NoError(t, err)
		require.Len(t, recs, 3)
		assert.Equal(t, "s1", recs[0].ID) // Doe, Kabila, Zola
		assert.Equal(t, 2, recs[0].AssessmentCount)
		require.NotNil(t, recs[0].AverageScore)
		assert.InDelta(t, 125.0/150*100, *recs[0].AverageScore, 0.001)
		assert.Equal(t, "IB20240001", recs[0].Profile.StudentNumber)
		assert.Equal(t, 0, recs[1].AssessmentCount)
		assert.Nil(t, recs[1].AverageScore)
		require.NotNil(t, recs[2].AverageScore)
		assert.InDelta(t, 91.0/110*100, *recs[2].AverageScore, 0.001) // not the 50 of averaged percentages

		recs, err = repo.QueryStudents(ctx, user.StudentFilter{Cohort: "2023-2025"}, nil)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "s2", recs[0].ID)

		recs, err = repo.QueryStudents(ctx, user.StudentFilter{Search: "IB20240001"}, nil)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "s1", recs[0].ID)

		recs, err = repo.QueryStudents(ctx, user.StudentFilter{}, []core.DBOrdering{{Field: "casHours"}})
		require.NoError(t, err)
		require.Len(t, recs, 3)
		assert.Equal(t, "s3", recs[0].ID)
		assert.Equal(t, "s2", recs[1].ID)
	})

	t.Run("set password hash", func(t *testing.T) {
		repo := newRepo(t)
		mustCreate(t, repo, newUser("u1", "Jane", "Doe", "jane@test.com", user.RoleTeacher), nil)

		later := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
		require.NoError(t, repo.SetPasswordHash(ctx, "u1", []byte("$2a$04$other"), later))

		got, err := repo.GetUserByID(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, []byte("$2a$04$other"), got.PasswordHash)
		assert.True(t, got.UpdatedAt.Equal(later))

		err = repo.SetPasswordHash(ctx, "nobody", []byte("x"), later)
		assert.Equal(t, user.ErrNotFound, pkgerrors.Cause(err))
	})
}
