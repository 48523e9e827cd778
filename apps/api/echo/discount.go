package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/dashboard"
	"github.com/trezcool/academia/core/discount"
)

var discountOrderings = sameFields("code", "percent", "used_count", "created_at")

type discountApi struct {
	svc      *discount.Service
	validate *validator.Validate
}

func registerDiscountAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *discount.Service,
	dash *dashboard.Service,
	validate *validator.Validate,
) {
	api := discountApi{
		svc:      svc,
		validate: validate,
	}
	stats := invalidateStatsMiddleware(dash)

	dg := g.Group("/discounts", jwt)
	dg.POST("/quote", api.quote)
	dg.POST("/redeem", api.redeem, stats)

	dg.GET("", api.query, staffMiddleware)
	dg.POST("", api.create, staffMiddleware, stats)
	dg.GET("/:id", api.retrieve, staffMiddleware)
	dg.PUT("/:id", api.update, staffMiddleware, stats)
	dg.DELETE("/:id", api.destroy, staffMiddleware, stats)
}

func (api *discountApi) create(ctx echo.Context) error {
	var data discount.NewToken
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewToken")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating discount token")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *discountApi) query(ctx echo.Context) error {
	filter := new(discount.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []discount.Token{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx, discountOrderings)

	tokens, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying discount tokens")
	}
	if tokens == nil {
		tokens = []discount.Token{}
	}
	return ctx.JSON(http.StatusOK, tokens)
}

func (api *discountApi) retrieve(ctx echo.Context) error {
	t, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding discount token")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *discountApi) update(ctx echo.Context) error {
	var data discount.UpdateToken
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateToken")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating discount token")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *discountApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting discount token")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *discountApi) quote(ctx echo.Context) error {
	var data discount.QuoteRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to QuoteRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	q, err := api.svc.Quote(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "quoting discount")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *discountApi) redeem(ctx echo.Context) error {
	var data discount.QuoteRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to QuoteRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	q, err := api.svc.Redeem(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "redeeming discount")
	}
	return ctx.JSON(http.StatusOK, q)
}
