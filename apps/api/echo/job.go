package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/dashboard"
	"github.com/trezcool/academia/core/job"
)

var jobOrderings = sameFields("title", "company", "created_at", "updated_at")

type jobApi struct {
	svc      *job.Service
	validate *validator.Validate
}

func registerJobAPI(
	g *echo.Group,
	jwt, optJWT echo.MiddlewareFunc,
	svc *job.Service,
	dash *dashboard.Service,
	validate *validator.Validate,
) {
	api := jobApi{
		svc:      svc,
		validate: validate,
	}
	staff := []echo.MiddlewareFunc{jwt, staffMiddleware, invalidateStatsMiddleware(dash)}

	// closed and expired postings are only visible to staff
	g.GET("/jobs", api.query, optJWT)
	g.GET("/jobs/:id", api.retrieve, optJWT)

	g.POST("/jobs", api.create, staff...)
	g.PUT("/jobs/:id", api.update, staff...)
	g.DELETE("/jobs/:id", api.destroy, staff...)
}

func (api *jobApi) create(ctx echo.Context) error {
	var data job.NewJob
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewJob")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	j, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating job")
	}
	return ctx.JSON(http.StatusCreated, j)
}

func (api *jobApi) query(ctx echo.Context) error {
	filter := new(job.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []job.Job{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx, jobOrderings)

	jobs, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings, isStaff(ctx))
	if err != nil {
		return errors.Wrap(err, "querying jobs")
	}
	if jobs == nil {
		jobs = []job.Job{}
	}
	return ctx.JSON(http.StatusOK, jobs)
}

func (api *jobApi) retrieve(ctx echo.Context) error {
	j, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"), isStaff(ctx))
	if err != nil {
		return errors.Wrap(err, "finding job")
	}
	return ctx.JSON(http.StatusOK, j)
}

func (api *jobApi) update(ctx echo.Context) error {
	var data job.UpdateJob
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateJob")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	j, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating job")
	}
	return ctx.JSON(http.StatusOK, j)
}

func (api *jobApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting job")
	}
	return ctx.NoContent(http.StatusNoContent)
}
