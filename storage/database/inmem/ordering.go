package inmemdb

import (
	"strings"

	"github.com/trezcool/ibdp/core"
	"github.com/trezcool/ibdp/core/user"
)

type sortKey struct {
	str     string
	num     float64
	numeric bool
	null    bool
}

func strKey(s string) sortKey { return sortKey{str: strings.ToLower(s)} }

func numKey(n float64) sortKey { return sortKey{num: n, numeric: true} }

// compare orders NULLs last, like postgres does for ASC.
func (k sortKey) compare(o sortKey) int {
	switch {
	case k.null && o.null:
		return 0
	case k.null:
		return 1
	case o.null:
		return -1
	case k.numeric:
		switch {
		case k.num < o.num:
			return -1
		case k.num > o.num:
			return 1
		}
		return 0
	}
	return strings.Compare(k.str, o.str)
}

// less applies the orderings in turn, ignoring unknown fields, and breaks ties by id.
func less(ordering []core.DBOrdering, get func(field string) (sortKey, sortKey, bool)) bool {
	for _, ord := range ordering {
		a, b, ok := get(ord.Field)
		if !ok {
			continue
		}
		if c := a.compare(b); c != 0 {
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
	}
	a, b, _ := get("id")
	return a.compare(b) < 0
}

func userField(u user.User, field string) (sortKey, bool) {
	switch field {
	case "id":
		return sortKey{str: u.ID}, true
	case "firstName":
		return strKey(u.FirstName), true
	case "lastName":
		return strKey(u.LastName), true
	case "email":
		return strKey(u.Email), true
	case "role":
		return sortKey{str: string(u.Role)}, true
	case "createdAt":
		return numKey(float64(u.CreatedAt.UnixNano())), true
	case "updatedAt":
		return numKey(float64(u.UpdatedAt.UnixNano())), true
	}
	return sortKey{}, false
}

func studentField(rec user.StudentRecord, field string) (sortKey, bool) {
	switch field {
	case "studentNumber":
		return sortKey{str: rec.Profile.StudentNumber}, true
	case "cohort":
		return sortKey{str: rec.Profile.Cohort}, true
	case "casHours":
		return numKey(float64(rec.Profile.CASHours)), true
	case "averageScore":
		if rec.AverageScore == nil {
			return sortKey{null: true}, true
		}
		return numKey(*rec.AverageScore), true
	case "role", "updatedAt":
		return sortKey{}, false
	}
	return userField(rec.User, field)
}
