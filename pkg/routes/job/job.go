// Package job exposes the result polling route for enqueued syncs.
package job

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/jobstatus"
)

// Register registers job routes
func Register(g *echo.Group) {
	g.GET("/result/:job_id", GetResult)
}

// GetResult reports the status and result of an enqueued sync job
func GetResult(c echo.Context) error {
	ctx := c.Request().Context()
	jobID := c.Param("job_id")

	ctx, reporter, err := ectoinject.GetContext[*jobstatus.Reporter](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "job reporter unavailable")
	}

	res := reporter.Report(ctx, jobID)
	return c.JSON(res.StatusCode, res)
}
