package sqlxrepos

import (
	"testing"

	"github.com/trezcool/ibdp/core/user"
	"github.com/trezcool/ibdp/tests"
)

func TestUserRepository(t *testing.T) {
	db := testutil.OpenDB(t)
	testutil.RepositoryTests(t, func(t *testing.T) user.Repository {
		testutil.ResetDB(t, db)
		return NewUserRepository(db)
	})
}

func TestLikePattern(t *testing.T) {
	tests := map[string]string{
		"jane":  "%jane%",
		"100%":  `%100\%%`,
		"a_b":   `%a\_b%`,
		`back\`: `%back\\%`,
	}
	for in, want := range tests {
		if got := likePattern(in); got != want {
			t.Errorf("likePattern(%q) = %q, want %q", in, got, want)
		}
	}
}
