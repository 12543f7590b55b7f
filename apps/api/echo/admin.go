package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ibdp/core/access"
	"github.com/trezcool/ibdp/core/user"
)

type adminApi struct {
	srv *server
}

func registerAdminAPI(g *echo.Group, sess echo.MiddlewareFunc, srv *server) {
	api := adminApi{srv: srv}

	ag := g.Group("/admin", sess, srv.requireResource(access.Admin))
	ag.GET("/users", api.queryUsers)
	ag.GET("/roles", api.queryRoles)
}

func (api *adminApi) queryUsers(ctx echo.Context) error {
	var filter user.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Clean()

	var ord Ordering
	ord.Bind(ctx)

	users, err := api.srv.opts.UserSvc.Query(ctx.Request().Context(), filter, ord.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *adminApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.AllRoles)
}
