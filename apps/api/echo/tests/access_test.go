package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/ibdp/apps/api/echo"
	"github.com/trezcool/ibdp/core/academic"
	"github.com/trezcool/ibdp/core/access"
	"github.com/trezcool/ibdp/core/user"
)

func Test_routeAuthorization(t *testing.T) {
	resetDB(t)
	_, studentToken := createUser(t, "Jane", "Doe", "jane@test.com", user.RoleStudent)
	_, teacherToken := createUser(t, "Tom", "Tshala", "tom@test.com", user.RoleTeacher)
	_, coordToken := createUser(t, "Cleo", "Mbuyi", "cleo@test.com", user.RoleCoordinator)
	adminToken := getToken(t, adminIdentity)

	tokens := map[user.Role]string{
		user.RoleStudent:     studentToken,
		user.RoleTeacher:     teacherToken,
		user.RoleCoordinator: coordToken,
		user.RoleAdmin:       adminToken,
	}
	routes := map[access.Resource]string{
		access.Dashboard: "/v1/dashboard",
		access.Students:  "/v1/students",
		access.Admin:     "/v1/admin/users",
	}
	table := access.DefaultTable()

	for res, path := range routes {
		t.Run(path+" unauthenticated", func(t *testing.T) {
			tt := httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errAuthRequired)}
			checkCodeAndData(t, tt, serve(http.MethodGet, path, ""))
		})

		allowed := make(map[user.Role]bool)
		for _, role := range table[res] {
			allowed[role] = true
		}
		for _, role := range user.AllRoles {
			role, path := role, path
			t.Run(path+" "+role.String(), func(t *testing.T) {
				rec := serve(http.MethodGet, path, tokens[role])
				if allowed[role] {
					assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
					return
				}
				checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermDenied)}, rec)
			})
		}
	}
}

func Test_navigationApi_navigation(t *testing.T) {
	resetDB(t)
	_, studentToken := createUser(t, "Jane", "Doe", "jane@test.com", user.RoleStudent)
	_, teacherToken := createUser(t, "Tom", "Tshala", "tom@test.com", user.RoleTeacher)

	hrefs := func(token string) []string {
		rec := serve(http.MethodGet, "/v1/navigation", token)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp NavigationResponse
		unmarchall(t, rec, &resp)
		out := make([]string, 0, len(resp.Items))
		for _, item := range resp.Items {
			out = append(out, item.Href)
		}
		return out
	}

	assert.Equal(t, []string{"/dashboard", "/cas", "/assessments", "/ai-insights", "/notifications"}, hrefs(studentToken))
	assert.Equal(t, []string{"/dashboard", "/students", "/cas", "/assessments", "/ai-insights", "/notifications", "/reports"}, hrefs(teacherToken))
	assert.Equal(t, []string{
		"/dashboard", "/students", "/cas", "/assessments", "/ai-insights", "/notifications", "/reports", "/admin",
	}, hrefs(getToken(t, adminIdentity)))

	rec := serve(http.MethodGet, "/v1/navigation", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func Test_navigationApi_dashboard(t *testing.T) {
	resetDB(t)
	student, studentToken := createUser(t, "Jane", "Doe", "jane@test.com", user.RoleStudent)
	other, _ := createUser(t, "Amani", "Kabila", "amani@test.com", user.RoleStudent)
	_, coordToken := createUser(t, "Cleo", "Mbuyi", "cleo@test.com", user.RoleCoordinator)
	addAssessment(t, other.ID, 90, 100)

	t.Run("student", func(t *testing.T) {
		rec := serve(http.MethodGet, "/v1/dashboard", studentToken)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp DashboardResponse
		unmarchall(t, rec, &resp)
		assert.Equal(t, user.RoleStudent, resp.Role)
		assert.Equal(t, student.DisplayName(), resp.Name)
		assert.Nil(t, resp.Staff)
		require.NotNil(t, resp.Student)
		assert.Equal(t, 150, resp.Student.CASGoal)
		assert.Equal(t, float64(0), resp.Student.CASProgress)
	})

	t.Run("coordinator", func(t *testing.T) {
		rec := serve(http.MethodGet, "/v1/dashboard", coordToken)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp DashboardResponse
		unmarchall(t, rec, &resp)
		assert.Nil(t, resp.Student)
		// no CAS hours yet: both students are high risk
		assert.Equal(t, &StaffDashboard{TotalStudents: 2, AtRiskStudents: 2, HighRisk: 2}, resp.Staff)
	})
}

func Test_studentApi_query(t *testing.T) {
	resetDB(t)
	jane, _ := createUser(t, "Jane", "Doe", "jane@test.com", user.RoleStudent)
	amani, _ := createUser(t, "Amani", "Kabila", "amani@test.com", user.RoleStudent)
	_, teacherToken := createUser(t, "Tom", "Tshala", "tom@test.com", user.RoleTeacher)
	addAssessment(t, jane.ID, 45, 50)
	addAssessment(t, jane.ID, 80, 100)
	addAssessment(t, amani.ID, 30, 100)

	query := func(path string) []academic.StudentSummary {
		rec := serve(http.MethodGet, path, teacherToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp []academic.StudentSummary
		unmarchall(t, rec, &resp)
		return resp
	}

	t.Run("ordering", func(t *testing.T) {
		got := query("/v1/students?ordering=lastName")
		require.Len(t, got, 2)
		assert.Equal(t, jane.ID, got[0].ID)
		assert.Equal(t, amani.ID, got[1].ID)

		got = query("/v1/students?ordering=-lastName")
		require.Len(t, got, 2)
		assert.Equal(t, amani.ID, got[0].ID)
	})

	t.Run("grades", func(t *testing.T) {
		got := query("/v1/students?search=jane")
		require.Len(t, got, 1)
		require.NotNil(t, got[0].AverageScore)
		assert.InDelta(t, 125.0/150*100, *got[0].AverageScore, 0.001) // 83.3, weighted by max score
		assert.Equal(t, "A-", got[0].Grade)
		assert.Equal(t, academic.RiskHigh, got[0].Risk) // no CAS hours yet
	})

	t.Run("search", func(t *testing.T) {
		assert.Len(t, query("/v1/students?search=KABI"), 1)
		assert.Empty(t, query("/v1/students?search=nobody"))
	})

	t.Run("at-risk", func(t *testing.T) {
		assert.Len(t, query("/v1/students?filter=at-risk"), 2)
	})
}

func Test_adminApi_queryUsers(t *testing.T) {
	resetDB(t)
	createUser(t, "Jane", "Doe", "jane@test.com", user.RoleStudent)
	createUser(t, "Tom", "Tshala", "tom@test.com", user.RoleTeacher)
	createUser(t, "Cleo", "Mbuyi", "cleo@test.com", user.RoleCoordinator)
	adminToken := getToken(t, adminIdentity)

	emails := func(path string) []string {
		rec := serve(http.MethodGet, path, adminToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp []user.User
		unmarchall(t, rec, &resp)
		out := make([]string, 0, len(resp))
		for _, usr := range resp {
			out = append(out, usr.Email)
		}
		return out
	}

	assert.Equal(t, []string{"jane@test.com", "cleo@test.com", "tom@test.com"}, emails("/v1/admin/users?ordering=lastName"))
	assert.Equal(t, []string{"tom@test.com"}, emails("/v1/admin/users?role=teacher"))
	assert.ElementsMatch(t, []string{"tom@test.com", "cleo@test.com"}, emails("/v1/admin/users?role=TEACHER&role=COORDINATOR"))
	assert.Equal(t, []string{"cleo@test.com"}, emails("/v1/admin/users?search=mbu"))

	// password hashes never leave the server
	rec := serve(http.MethodGet, "/v1/admin/users", adminToken)
	assert.NotContains(t, rec.Body.String(), "password")
}
