// Package order exposes the order lookup and transfer routes.
package order

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/cart"
	"github.com/Ramsey-B/clover/pkg/crm"
	"github.com/Ramsey-B/clover/pkg/datewindow"
	"github.com/Ramsey-B/clover/pkg/transfer"
)

// Register registers order routes
func Register(g *echo.Group) {
	g.GET("/order/:order_id", GetOrderCustomer)
	g.PATCH("/order/:order_id", SyncOrder)
	g.POST("/order", TransferOrders)
	g.POST("/order/:start", TransferOrders)
	g.POST("/order/:start/:end", TransferOrders)
}

// jobResponse is the reply for an enqueued sync, including the poll URL.
type jobResponse struct {
	OK         bool   `json:"ok"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
	JobID      string `json:"job_id"`
	JobStatus  string `json:"job_status"`
	URL        string `json:"url"`
}

// GetOrderCustomer looks up the CRM customer for a cart order
func GetOrderCustomer(c echo.Context) error {
	ctx := c.Request().Context()
	orderID := c.Param("order_id")

	ctx, source, err := ectoinject.GetContext[*cart.Client](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "cart client unavailable")
	}

	orderRes := source.Order(ctx, orderID)
	if !orderRes.OK {
		return c.JSON(orderRes.StatusCode, orderRes)
	}

	ctx, target, err := ectoinject.GetContext[*crm.Gateway](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "crm gateway unavailable")
	}

	customerRes := target.GetPerson(ctx, orderRes.Value.Email)
	return c.JSON(customerRes.StatusCode, customerRes)
}

// SyncOrder transfers one cart order into the CRM. With ?enqueue=true the
// sync runs in the background and the reply carries a job id to poll.
func SyncOrder(c echo.Context) error {
	ctx := c.Request().Context()
	orderID := c.Param("order_id")

	ctx, coord, err := ectoinject.GetContext[*transfer.Coordinator](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "transfer coordinator unavailable")
	}

	if enqueueRequested(c) {
		res := coord.EnqueueOne(ctx, orderID)
		if !res.OK {
			return c.JSON(res.StatusCode, res)
		}

		res.StatusCode = http.StatusAccepted
		return c.JSON(res.StatusCode, jobResponse{
			OK:         true,
			Message:    res.Message,
			StatusCode: res.StatusCode,
			JobID:      res.Value.JobID,
			JobStatus:  res.Value.Status,
			URL:        resultURL(c, res.Value.JobID),
		})
	}

	res := coord.SyncOne(ctx, orderID)
	return c.JSON(res.StatusCode, res)
}

// TransferOrders pulls a window of cart orders into the CRM. Without path
// params the window starts at the stored cursor and ends today.
func TransferOrders(c echo.Context) error {
	ctx := c.Request().Context()

	req := transfer.Request{Enqueue: enqueueRequested(c)}

	if start := c.Param("start"); start != "" {
		parsed, err := time.Parse(datewindow.DateFormat, start)
		if err != nil {
			return httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid start date %q: expected YYYY-MM-DD", start)
		}
		req.Start = parsed
	}

	if end := c.Param("end"); end != "" {
		parsed, err := time.Parse(datewindow.DateFormat, end)
		if err != nil {
			return httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid end date %q: expected YYYY-MM-DD", end)
		}
		req.End = parsed
	}

	ctx, coord, err := ectoinject.GetContext[*transfer.Coordinator](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "transfer coordinator unavailable")
	}

	res := coord.Transfer(ctx, req)
	return c.JSON(res.StatusCode, res)
}

func enqueueRequested(c echo.Context) bool {
	enqueue, err := strconv.ParseBool(c.QueryParam("enqueue"))
	return err == nil && enqueue
}

func resultURL(c echo.Context, jobID string) string {
	return fmt.Sprintf("%s://%s/result/%s", c.Scheme(), c.Request().Host, jobID)
}
