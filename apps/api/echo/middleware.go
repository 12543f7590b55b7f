package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/ibdp/core/access"
)

// requireResource denies the request before its handler runs (and so before any resource data is read)
// unless the session role may reach res.
func (s *server) requireResource(res access.Resource) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, _ := contextIdentity(ctx)
			switch d := s.opts.Authorizer.Decide(res, id.Role); d {
			case access.Allow:
				return next(ctx)
			case access.DenyUnauthenticated:
				s.metrics.denial(res, d)
				return s.errUnauthenticated
			default:
				s.metrics.denial(res, d)
				return errHttpForbidden
			}
		}
	}
}
