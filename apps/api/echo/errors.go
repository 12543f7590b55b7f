package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ibdp/core"
)

var (
	errInvalidCredentials = echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	errHttpForbidden      = echo.NewHTTPError(http.StatusForbidden, "permission denied")

	internalErrorText = "Internal server error"
)

func fieldsBody(msg string, fields []core.FieldError) echo.Map {
	fldErrs := make(map[string]string, len(fields))
	for _, fErr := range fields {
		if _, ok := fldErrs[fErr.Field]; !ok { // keep the first error of each field
			fldErrs[fErr.Field] = fErr.Error
		}
	}
	if msg == "" && len(fields) > 0 {
		msg = fields[0].Error
	}
	return echo.Map{"error": msg, "fields": fldErrs}
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			message = fieldsBody("", core.TranslateFields(origErr, translator))
		case *core.ValidationError:
			code = http.StatusBadRequest
			message = fieldsBody(origErr.Error(), origErr.Fields)
		case *core.ConflictError:
			code = http.StatusBadRequest
			message = origErr.Error()
		case *core.ForbiddenError:
			code = http.StatusForbidden
			message = origErr.Error()
		default: // any other error is a server error
			code = http.StatusInternalServerError
			message = internalErrorText

			if id, ok := contextIdentity(ctx); ok {
				logger.Error(internalErrorText, errors.Wrap(err, internalErrorText), id)
			} else {
				logger.Error(internalErrorText, errors.Wrap(err, internalErrorText))
			}
			if ctx.Echo().Debug {
				message = err.Error()
			}

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
