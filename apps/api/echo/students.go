package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ibdp/core/academic"
	"github.com/trezcool/ibdp/core/access"
	"github.com/trezcool/ibdp/core/user"
)

type studentApi struct {
	srv *server
}

func registerStudentAPI(g *echo.Group, sess echo.MiddlewareFunc, srv *server) {
	api := studentApi{srv: srv}

	g.GET("/students", api.query, sess, srv.requireResource(access.Students))
}

func (api *studentApi) query(ctx echo.Context) error {
	var filter user.StudentFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to StudentFilter")
	}
	filter.Clean()

	var ord Ordering
	ord.Bind(ctx)

	recs, err := api.srv.opts.UserSvc.QueryStudents(ctx.Request().Context(), filter, ord.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, academic.Roster(recs, filter.Filter == user.FilterAtRisk))
}
