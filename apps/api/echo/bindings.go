package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

var (
	limitParam  = "limit"
	offsetParam = "offset"
)

// Pagination binds the standard limit/offset query params; zero values mean
// "let the service decide".
type Pagination struct {
	Limit  int
	Offset int
}

func (p *Pagination) Bind(ctx echo.Context) {
	if v, err := strconv.Atoi(ctx.QueryParam(limitParam)); err == nil && v > 0 {
		p.Limit = v
	}
	if v, err := strconv.Atoi(ctx.QueryParam(offsetParam)); err == nil && v > 0 {
		p.Offset = v
	}
}
