package handlers

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/craftora/marketplace/internal/service"
	"github.com/craftora/marketplace/internal/util"
)

// httpError maps service sentinel errors to echo HTTP errors without leaking
// internals for unexpected failures.
func httpError(err error) *echo.HTTPError {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	status := service.HTTPStatus(err)
	if status >= 500 {
		return echo.NewHTTPError(status, "internal error")
	}
	return echo.NewHTTPError(status, err.Error())
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

func parseUintParam(c echo.Context, name string) (uint, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil || v <= 0 {
		return 0, false
	}
	return uint(v), true
}

func paginate(page, size int) (offset, limit int) {
	return util.Calculate(page, size)
}

func paginationMeta(page, limit int, total int64) map[string]any {
	pages := (total + int64(limit) - 1) / int64(limit)
	return map[string]any{
		"page":  page,
		"limit": limit,
		"total": total,
		"pages": pages,
	}
}
