package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ibdp/core/academic"
	"github.com/trezcool/ibdp/core/access"
	"github.com/trezcool/ibdp/core/user"
)

type navigationApi struct {
	srv *server
}

func registerNavigationAPI(g *echo.Group, sess echo.MiddlewareFunc, srv *server) {
	api := navigationApi{srv: srv}

	g.GET("/navigation", api.navigation, sess)
	g.GET("/dashboard", api.dashboard, sess, srv.requireResource(access.Dashboard))
}

type (
	NavigationResponse struct {
		Role  user.Role        `json:"role"`
		Items []access.NavItem `json:"items"`
	}

	StudentDashboard struct {
		StudentNumber string   `json:"studentNumber"`
		Cohort        string   `json:"cohort"`
		Subjects      []string `json:"subjects"`
		CASHours      int      `json:"casHours"`
		CASGoal       int      `json:"casGoal"`
		CASProgress   float64  `json:"casProgress"`
	}

	StaffDashboard struct {
		TotalStudents  int `json:"totalStudents"`
		AtRiskStudents int `json:"atRiskStudents"`
		HighRisk       int `json:"highRisk"`
	}

	DashboardResponse struct {
		Role    user.Role         `json:"role"`
		Name    string            `json:"name"`
		Student *StudentDashboard `json:"student,omitempty"`
		Staff   *StaffDashboard   `json:"staff,omitempty"`
	}
)

func (api *navigationApi) navigation(ctx echo.Context) error {
	id, _ := contextIdentity(ctx)
	return ctx.JSON(http.StatusOK, NavigationResponse{
		Role:  id.Role,
		Items: api.srv.opts.Authorizer.Navigation(id.Role),
	})
}

func (api *navigationApi) dashboard(ctx echo.Context) error {
	id, _ := contextIdentity(ctx)
	resp := DashboardResponse{Role: id.Role, Name: id.DisplayName}

	if id.Role == user.RoleStudent {
		// the stored profile, not the one frozen in the session: CAS hours move
		profile, err := api.srv.opts.UserSvc.GetProfile(ctx.Request().Context(), user.User{ID: id.ID, Role: id.Role})
		if err != nil {
			return errors.Wrap(err, "getting student profile")
		}
		sp, ok := profile.(user.StudentProfile)
		if !ok {
			return errors.Errorf("unexpected profile %T for student %s", profile, id.ID)
		}
		resp.Student = &StudentDashboard{
			StudentNumber: sp.StudentNumber,
			Cohort:        sp.Cohort,
			Subjects:      sp.Subjects,
			CASHours:      sp.CASHours,
			CASGoal:       sp.CASGoal,
			CASProgress:   academic.CASProgress(sp.CASHours, sp.CASGoal),
		}
		return ctx.JSON(http.StatusOK, resp)
	}

	recs, err := api.srv.opts.UserSvc.QueryStudents(ctx.Request().Context(), user.StudentFilter{}, nil)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	staff := &StaffDashboard{TotalStudents: len(recs)}
	for _, s := range academic.Roster(recs, true) {
		staff.AtRiskStudents++
		if s.Risk == academic.RiskHigh {
			staff.HighRisk++
		}
	}
	resp.Staff = staff
	return ctx.JSON(http.StatusOK, resp)
}
