package echo

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mohammadpnp/collaborator-import/internal/logging"
)

// RequestLogger copies the request id into the request context and logs each
// request once it has been served. It must run after middleware.RequestID.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			reqID := c.Response().Header().Get(echo.HeaderXRequestID)
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), reqID)))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logging.FromContext(c.Request().Context()).Info("http request",
				"method", req.Method,
				"path", c.Path(),
				"status", c.Response().Status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return nil
		}
	}
}
