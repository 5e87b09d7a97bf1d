// Package cache exposes routes for clearing cached state, including the
// start-date cursor that scopes unscoped order pulls.
package cache

import (
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/cursor"
	"github.com/Ramsey-B/clover/pkg/redis"
)

// Register registers cache routes
func Register(g *echo.Group) {
	g.DELETE("/cache", Clear)
	g.DELETE("/cache/:path", Delete)
}

type response struct {
	Message string `json:"message"`
}

// Clear resets the start-date cursor so the next unscoped pull reaches the
// full report window again
func Clear(c echo.Context) error {
	ctx := c.Request().Context()

	ctx, store, err := ectoinject.GetContext[cursor.Store](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "cursor store unavailable")
	}

	if err := store.Delete(ctx); err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to clear cache")
	}

	return c.JSON(http.StatusOK, response{Message: "Caches cleared!"})
}

// Delete removes a single cached key
func Delete(c echo.Context) error {
	ctx := c.Request().Context()
	path := c.Param("path")

	if path == cursor.Key {
		ctx, store, err := ectoinject.GetContext[cursor.Store](ctx)
		if err != nil {
			return httperror.NewHTTPError(http.StatusInternalServerError, "cursor store unavailable")
		}
		if err := store.Delete(ctx); err != nil {
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete cache")
		}
		return c.JSON(http.StatusOK, response{Message: fmt.Sprintf("Deleted cache for %s", path)})
	}

	ctx, client, err := ectoinject.GetContext[*redis.Client](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "redis unavailable")
	}

	if err := client.Del(ctx, path); err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete cache")
	}

	return c.JSON(http.StatusOK, response{Message: fmt.Sprintf("Deleted cache for %s", path)})
}
