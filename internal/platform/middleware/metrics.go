package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/abroroo/medicPro-sub000/internal/platform/metrics"
)

// Metrics records request count and latency per route template so path
// parameters do not explode label cardinality.
func Metrics(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			m.IncActiveConnections()
			defer m.DecActiveConnections()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if !c.Response().Committed {
					status = 500
				}
			}

			endpoint := c.Path()
			if endpoint == "" {
				endpoint = "unmatched"
			}
			m.RecordHTTPRequest(c.Request().Method, endpoint, status, time.Since(start))
			return err
		}
	}
}
