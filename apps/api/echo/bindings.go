package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/academia/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads `?ordering=-field1,field2`; a leading "-" sorts descending.
// Only the fields listed in allowed are kept, renamed to their column.
func (ord *Ordering) Bind(ctx echo.Context, allowed map[string]string) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	var orderings []core.DBOrdering
	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		orderings = append(orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
	ord.Orderings = core.AllowedOrderings(orderings, allowed)
}

// sameFields allows each of fields under its own name.
func sameFields(fields ...string) map[string]string {
	allowed := make(map[string]string, len(fields))
	for _, f := range fields {
		allowed[f] = f
	}
	return allowed
}
