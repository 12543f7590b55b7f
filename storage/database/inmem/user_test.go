package inmemdb

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ibdp/core"
	"github.com/trezcool/ibdp/core/user"
	"github.com/trezcool/ibdp/tests"
)

func TestUserRepository(t *testing.T) {
	testutil.RepositoryTests(t, func(t *testing.T) user.Repository {
		return NewUserRepository(NewDB())
	})
}

func TestUserRepository_CreateProfile_roleMismatch(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(NewDB())
	_, err := repo.CreateUser(ctx, user.User{ID: "u1", Email: "jane@test.com", Role: user.RoleTeacher})
	require.NoError(t, err)

	err = repo.CreateProfile(ctx, user.StudentProfile{UserID: "u1", StudentNumber: "IB20240001"})
	assert.IsType(t, &core.ValidationError{}, err)

	require.NoError(t, repo.CreateProfile(ctx, user.TeacherProfile{UserID: "u1"}))
	assert.Equal(t, errProfileExists, repo.CreateProfile(ctx, user.TeacherProfile{UserID: "u1"}))
}

func TestUserRepository_isolation(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(NewDB())
	subjects := []string{"Physics HL"}
	_, err := repo.CreateUser(ctx, user.User{ID: "u1", Email: "tom@test.com", Role: user.RoleTeacher})
	require.NoError(t, err)
	require.NoError(t, repo.CreateProfile(ctx, user.TeacherProfile{UserID: "u1", Subjects: subjects}))

	subjects[0] = "changed"
	p, err := repo.GetProfile(ctx, "u1", user.RoleTeacher)
	require.NoError(t, err)
	got := p.(user.TeacherProfile)
	assert.Equal(t, []string{"Physics HL"}, got.Subjects)

	got.Subjects[0] = "changed"
	p, err = repo.GetProfile(ctx, "u1", user.RoleTeacher)
	require.NoError(t, err)
	assert.Equal(t, []string{"Physics HL"}, p.(user.TeacherProfile).Subjects)
}

func TestUserRepository_concurrentCreate(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(NewDB())

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := repo.InTx(ctx, func(tx user.Repository) error {
				_, err := tx.CreateUser(ctx, user.User{ID: string(rune('a' + i)), Email: "race@test.com", Role: user.RoleCoordinator})
				return err
			})
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, created)
}

func TestLess_nullsLast(t *testing.T) {
	avg := 80.0
	recs := []user.StudentRecord{
		{User: user.User{ID: "b", CreatedAt: time.Unix(2, 0)}},
		{User: user.User{ID: "a", CreatedAt: time.Unix(1, 0)}, AverageScore: &avg},
	}
	ordering := []core.DBOrdering{{Field: "averageScore", Ascending: true}}
	got := less(ordering, func(field string) (sortKey, sortKey, bool) {
		a, ok := studentField(recs[0], field)
		b, _ := studentField(recs[1], field)
		return a, b, ok
	})
	assert.False(t, got, "records without assessments sort last")
}
