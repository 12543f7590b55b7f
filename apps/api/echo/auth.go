package echoapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ibdp/core"
	"github.com/trezcool/ibdp/core/auth"
	"github.com/trezcool/ibdp/core/session"
	"github.com/trezcool/ibdp/core/user"
)

var (
	contextClaimsKey   = "claims"
	contextIdentityKey = "identity"

	userCreatedText = "User created successfully"
)

type authApi struct {
	srv *server
}

func registerAuthAPI(g *echo.Group, sess echo.MiddlewareFunc, srv *server) {
	api := authApi{srv: srv}

	ag := g.Group("/auth")

	// un-authed endpoints
	// TODO: rate limit `/login` once attempts are tracked per client
	ag.POST("/register", api.register)
	ag.POST("/login", api.login)
	ag.POST("/logout", api.logout)

	// authed endpoints
	ag.GET("/session", api.session, sess)
}

// Handlers

func (api *authApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(api.srv.opts.Validate); err != nil {
		api.srv.metrics.registration(err)
		return err
	}

	_, _, err := api.srv.opts.UserSvc.Register(ctx.Request().Context(), data)
	api.srv.metrics.registration(err)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	return ctx.JSON(http.StatusCreated, MessageResponse{Message: userCreatedText})
}

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}

	id, err := api.srv.opts.Verifier.Verify(ctx.Request().Context(), core.CleanString(data.Email), data.Password)
	if err != nil {
		if errors.Cause(err) == auth.ErrInvalidCredentials {
			api.srv.metrics.login("invalid")
			return errInvalidCredentials
		}
		api.srv.metrics.login("error")
		return errors.Wrap(err, "verifying credentials")
	}

	token, claims, err := api.srv.opts.Issuer.Issue(id)
	if err != nil {
		api.srv.metrics.login("error")
		return errors.Wrap(err, "issuing session")
	}
	api.srv.metrics.login("success")

	expiresAt := time.Unix(claims.ExpiresAt, 0).UTC()
	ctx.SetCookie(api.srv.sessionCookie(token, expiresAt))
	return ctx.JSON(http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      newSessionUser(claims),
	})
}

func (api *authApi) logout(ctx echo.Context) error {
	ctx.SetCookie(api.srv.sessionCookie("", time.Unix(0, 0)))
	return ctx.NoContent(http.StatusNoContent)
}

func (api *authApi) session(ctx echo.Context) error {
	claims, err := contextClaims(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SessionResponse{
		User:      newSessionUser(claims),
		ExpiresAt: time.Unix(claims.ExpiresAt, 0).UTC(),
	})
}

// Session plumbing

// sessionMiddleware reads the session from the bearer token, falling back to the session cookie.
// The claims are never refreshed: a token carries what was true when it was issued.
func (s *server) sessionMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			token := s.requestToken(ctx)
			if token == "" {
				return s.errUnauthenticated
			}
			claims, err := s.opts.Reader.Read(token)
			if err != nil {
				return s.errUnauthenticated
			}
			ctx.Set(contextClaimsKey, claims)
			ctx.Set(contextIdentityKey, claims.Identity())
			return next(ctx)
		}
	}
}

func (s *server) requestToken(ctx echo.Context) string {
	if h := ctx.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookie, err := ctx.Cookie(s.opts.Conf.Server.SessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

func (s *server) sessionCookie(token string, expires time.Time) *http.Cookie {
	cookie := &http.Cookie{
		Name:     s.opts.Conf.Server.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   !s.opts.Conf.Debug && !s.opts.Conf.TestMode,
		SameSite: http.SameSiteLaxMode,
	}
	if token == "" {
		cookie.MaxAge = -1
	}
	return cookie
}

func contextClaims(ctx echo.Context) (*session.Claims, error) {
	if claims, ok := ctx.Get(contextClaimsKey).(*session.Claims); ok {
		return claims, nil
	}
	return nil, errors.New("session claims not found in echo.Context")
}

func contextIdentity(ctx echo.Context) (auth.Identity, bool) {
	id, ok := ctx.Get(contextIdentityKey).(auth.Identity)
	return id, ok
}

type (
	LoginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	LoginResponse struct {
		Token     string      `json:"token"`
		ExpiresAt time.Time   `json:"expiresAt"`
		User      SessionUser `json:"user"`
	}

	SessionResponse struct {
		User      SessionUser `json:"user"`
		ExpiresAt time.Time   `json:"expiresAt"`
	}

	// SessionUser is the claim set as shown to clients: at most one profile, matching the role.
	SessionUser struct {
		ID                 string                   `json:"id"`
		Email              string                   `json:"email"`
		Name               string                   `json:"name"`
		Role               user.Role                `json:"role"`
		StudentProfile     *user.StudentProfile     `json:"studentProfile"`
		TeacherProfile     *user.TeacherProfile     `json:"teacherProfile"`
		CoordinatorProfile *user.CoordinatorProfile `json:"coordinatorProfile"`
	}

	MessageResponse struct {
		Message string `json:"message"`
	}
)

func newSessionUser(claims *session.Claims) SessionUser {
	return SessionUser{
		ID:                 claims.Subject,
		Email:              claims.Email,
		Name:               claims.Name,
		Role:               claims.Role,
		StudentProfile:     claims.StudentProfile,
		TeacherProfile:     claims.TeacherProfile,
		CoordinatorProfile: claims.CoordinatorProfile,
	}
}
