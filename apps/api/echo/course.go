package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/dashboard"
)

var courseOrderings = sameFields("title", "price", "created_at", "updated_at")

type courseApi struct {
	svc      *course.Service
	validate *validator.Validate
}

// CompactResponse reports how many items a compaction renumbered.
type CompactResponse struct {
	Changed int `json:"changed"`
}

func registerCourseAPI(
	g, admin *echo.Group,
	jwt, optJWT echo.MiddlewareFunc,
	svc *course.Service,
	dash *dashboard.Service,
	validate *validator.Validate,
) {
	api := courseApi{
		svc:      svc,
		validate: validate,
	}
	stats := invalidateStatsMiddleware(dash)
	staff := []echo.MiddlewareFunc{jwt, staffMiddleware, stats}

	// catalogue: unpublished courses are only visible to staff
	g.GET("/courses", api.queryCourses, optJWT)
	g.GET("/courses/:id", api.retrieveCourse, optJWT)
	g.GET("/courses/:id/modules", api.queryModules, optJWT)
	g.GET("/modules/:id", api.retrieveModule, optJWT)
	g.GET("/modules/:id/topics", api.queryTopics, optJWT)
	g.GET("/topics/:id", api.retrieveTopic, optJWT)
	g.GET("/topics/:id/contents", api.queryContents, optJWT)
	g.GET("/contents/:id", api.retrieveContent, optJWT)
	g.GET("/contents/:id/url", api.contentURL, jwt)

	// staff endpoints
	g.POST("/courses", api.createCourse, staff...)
	g.PUT("/courses/:id", api.updateCourse, staff...)
	g.DELETE("/courses/:id", api.destroyCourse, staff...)
	g.POST("/courses/:id/modules", api.createModule, staff...)
	g.PUT("/modules/:id", api.updateModule, staff...)
	g.DELETE("/modules/:id", api.destroyModule, staff...)
	g.POST("/modules/:id/topics", api.createTopic, staff...)
	g.PUT("/topics/:id", api.updateTopic, staff...)
	g.DELETE("/topics/:id", api.destroyTopic, staff...)
	g.POST("/topics/:id/contents", api.createContent, staff...)
	g.PUT("/contents/:id", api.updateContent, staff...)
	g.DELETE("/contents/:id", api.destroyContent, staff...)

	// admin endpoints
	admin.POST("/courses/:id/modules", api.createModule, stats)
	admin.POST("/courses/:id/modules/compact", api.compactModules)
	admin.PUT("/modules/:id", api.updateModule, stats)
	admin.DELETE("/modules/:id", api.destroyModule, stats)
	admin.POST("/modules/:id/topics", api.createTopic, stats)
	admin.POST("/modules/:id/topics/compact", api.compactTopics)
	admin.PUT("/topics/:id", api.updateTopic, stats)
	admin.DELETE("/topics/:id", api.destroyTopic, stats)
}

// Courses

func (api *courseApi) createCourse(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.CreateCourse(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *courseApi) queryCourses(ctx echo.Context) error {
	filter := new(course.CourseFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.Course{})
	}
	filter.Clean()
	if !isStaff(ctx) {
		published := true
		filter.IsPublished = &published
	}
	ordering := new(Ordering)
	ordering.Bind(ctx, courseOrderings)

	courses, err := api.svc.QueryCourses(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) retrieveCourse(ctx echo.Context) error {
	c, err := api.svc.GetCourse(ctx.Request().Context(), ctx.Param("id"), isStaff(ctx))
	if err != nil {
		return errors.Wrap(err, "finding course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) updateCourse(ctx echo.Context) error {
	var data course.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.UpdateCourse(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) destroyCourse(ctx echo.Context) error {
	if err := api.svc.DeleteCourse(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Modules

func (api *courseApi) createModule(ctx echo.Context) error {
	var data course.NewModule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewModule")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	mod, err := api.svc.CreateModule(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating module")
	}
	return ctx.JSON(http.StatusCreated, mod)
}

func (api *courseApi) queryModules(ctx echo.Context) error {
	mods, err := api.svc.QueryModules(ctx.Request().Context(), ctx.Param("id"), isStaff(ctx))
	if err != nil {
		return errors.Wrap(err, "querying modules")
	}
	if mods == nil {
		mods = []course.Module{}
	}
	return ctx.JSON(http.StatusOK, mods)
}

func (api *courseApi) retrieveModule(ctx echo.Context) error {
	mod, err := api.svc.GetModule(ctx.Request().Context(), ctx.Param("id"), isStaff(ctx))
	if err != nil {
		return errors.Wrap(err, "finding module")
	}
	return ctx.JSON(http.StatusOK, mod)
}

func (api *courseApi) updateModule(ctx echo.Context) error {
	var data course.UpdateModule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateModule")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	mod, err := api.svc.UpdateModule(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating module")
	}
	return ctx.JSON(http.StatusOK, mod)
}

func (api *courseApi) destroyModule(ctx echo.Context) error {
	if err := api.svc.DeleteModule(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting module")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) compactModules(ctx echo.Context) error {
	n, err := api.svc.CompactModules(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "compacting modules")
	}
	return ctx.JSON(http.StatusOK, CompactResponse{Changed: n})
}

// Topics

func (api *courseApi) createTopic(ctx echo.Context) error {
	var data course.NewTopic
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTopic")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	topic, err := api.svc.CreateTopic(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating topic")
	}
	return ctx.JSON(http.StatusCreated, topic)
}

func (api *courseApi) queryTopics(ctx echo.Context) error {
	topics, err := api.svc.QueryTopics(ctx.Request().Context(), ctx.Param("id"), isStaff(ctx))
	if err != nil {
		return errors.Wrap(err, "querying topics")
	}
	if topics == nil {
		topics = []course.Topic{}
	}
	return ctx.JSON(http.StatusOK, topics)
}

func (api *courseApi) retrieveTopic(ctx echo.Context) error {
	topic, err := api.svc.GetTopic(ctx.Request().Context(), ctx.Param("id"), isStaff(ctx))
	if err != nil {
		return errors.Wrap(err, "finding topic")
	}
	return ctx.JSON(http.StatusOK, topic)
}

func (api *courseApi) updateTopic(ctx echo.Context) error {
	var data course.UpdateTopic
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTopic")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	topic, err := api.svc.UpdateTopic(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating topic")
	}
	return ctx.JSON(http.StatusOK, topic)
}

func (api *courseApi) destroyTopic(ctx echo.Context) error {
	if err := api.svc.DeleteTopic(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting topic")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) compactTopics(ctx echo.Context) error {
	n, err := api.svc.CompactTopics(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "compacting topics")
	}
	return ctx.JSON(http.StatusOK, CompactResponse{Changed: n})
}

// Contents

func (api *courseApi) createContent(ctx echo.Context) error {
	var data course.NewContent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewContent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.CreateContent(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating content")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *courseApi) queryContents(ctx echo.Context) error {
	contents, err := api.svc.QueryContents(ctx.Request().Context(), ctx.Param("id"), isStaff(ctx))
	if err != nil {
		return errors.Wrap(err, "querying contents")
	}
	if contents == nil {
		contents = []course.Content{}
	}
	return ctx.JSON(http.StatusOK, contents)
}

func (api *courseApi) retrieveContent(ctx echo.Context) error {
	c, err := api.svc.GetContent(ctx.Request().Context(), ctx.Param("id"), isStaff(ctx))
	if err != nil {
		return errors.Wrap(err, "finding content")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) updateContent(ctx echo.Context) error {
	var data course.UpdateContent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateContent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.UpdateContent(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating content")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) destroyContent(ctx echo.Context) error {
	if err := api.svc.DeleteContent(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting content")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) contentURL(ctx echo.Context) error {
	u, err := api.svc.SignedURL(ctx.Request().Context(), ctx.Param("id"), isStaff(ctx))
	if err != nil {
		return errors.Wrap(err, "signing content URL")
	}
	return ctx.JSON(http.StatusOK, u)
}
