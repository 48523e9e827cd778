package course

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/ordering"
)

var (
	// errors
	ErrCourseNotFound  = core.NewNotFoundError("course")
	ErrModuleNotFound  = core.NewNotFoundError("module")
	ErrTopicNotFound   = core.NewNotFoundError("topic")
	ErrContentNotFound = core.NewNotFoundError("content")
	ErrSlugExists      = errors.New("a course with this slug already exists")
	ErrNoAsset         = errors.New("this content has no asset to deliver")
)

type (
	Repository interface {
		CheckSlugUniqueness(ctx context.Context, slug, excludedID string, exec ...core.DBExecutor) error
		CreateCourse(ctx context.Context, c Course, exec ...core.DBExecutor) (Course, error)
		// QueryCourses applies AND operation on available CourseFilter fields.
		// CourseFilter.Search does a case-insensitive match on one of Course.Title or Course.Description.
		QueryCourses(ctx context.Context, filter *CourseFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Course, error)
		GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (Course, error)
		UpdateCourse(ctx context.Context, c Course, exec ...core.DBExecutor) (Course, error)
		DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateModule(ctx context.Context, m Module, exec ...core.DBExecutor) (Module, error)
		// QueryModules returns the modules of a course by serial number.
		QueryModules(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]Module, error)
		GetModule(ctx context.Context, id string, exec ...core.DBExecutor) (Module, error)
		UpdateModule(ctx context.Context, m Module, exec ...core.DBExecutor) (Module, error)
		DeleteModule(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateTopic(ctx context.Context, t Topic, exec ...core.DBExecutor) (Topic, error)
		// QueryTopics returns the topics of a module by serial number.
		QueryTopics(ctx context.Context, moduleID string, exec ...core.DBExecutor) ([]Topic, error)
		GetTopic(ctx context.Context, id string, exec ...core.DBExecutor) (Topic, error)
		UpdateTopic(ctx context.Context, t Topic, exec ...core.DBExecutor) (Topic, error)
		DeleteTopic(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateContent(ctx context.Context, c Content, exec ...core.DBExecutor) (Content, error)
		QueryContents(ctx context.Context, topicID string, exec ...core.DBExecutor) ([]Content, error)
		GetContent(ctx context.Context, id string, exec ...core.DBExecutor) (Content, error)
		UpdateContent(ctx context.Context, c Content, exec ...core.DBExecutor) (Content, error)
		DeleteContent(ctx context.Context, id string, exec ...core.DBExecutor) error

		// ModuleSiblings orders modules within their course.
		// Its LockScope fails with ErrCourseNotFound when the course does not exist.
		ModuleSiblings() ordering.Store
		// TopicSiblings orders topics within their module.
		// Its LockScope fails with ErrModuleNotFound when the module does not exist.
		TopicSiblings() ordering.Store
	}

	Service struct {
		tx      core.Transactor
		repo    Repository
		signer  core.URLSigner
		modules *ordering.Reindexer
		topics  *ordering.Reindexer
		nowFunc func() time.Time // mockable
	}
)

func NewService(tx core.Transactor, repo Repository, signer core.URLSigner) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(tx, "tx"),
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(signer, "signer"),
	).CheckAndPanic()

	return &Service{
		tx:      tx,
		repo:    repo,
		signer:  signer,
		modules: ordering.New(ErrModuleNotFound, tx, repo.ModuleSiblings()),
		topics:  ordering.New(ErrTopicNotFound, tx, repo.TopicSiblings()),
		nowFunc: time.Now,
	}
}

func (svc *Service) now() time.Time { return svc.nowFunc().UTC() }

// slugError maps a duplicate slug to a validation error on the slug field.
func slugError(err error) error {
	if errors.Cause(err) == ErrSlugExists {
		return core.NewValidationError(ErrSlugExists, core.FieldError{Field: "slug", Error: ErrSlugExists.Error()})
	}
	return err
}

// Courses

func (svc *Service) CreateCourse(ctx context.Context, nc NewCourse) (Course, error) {
	var c Course
	err := svc.tx.RunInTx(ctx, func(ctx context.Context, exec core.DBExecutor) error {
		if err := svc.repo.CheckSlugUniqueness(ctx, nc.Slug, "", exec); err != nil {
			return slugError(err)
		}

		now := svc.now()
		var err error
		c, err = svc.repo.CreateCourse(ctx, Course{
			Title:        nc.Title,
			Slug:         nc.Slug,
			Description:  nc.Description,
			Price:        nc.Price,
			ThumbnailURL: nc.ThumbnailURL,
			IsPublished:  nc.IsPublished,
			CreatedAt:    now,
			UpdatedAt:    now,
		}, exec)
		return slugError(err)
	})
	if err != nil {
		return Course{}, err
	}
	return c, nil
}

func (svc *Service) QueryCourses(ctx context.Context, filter *CourseFilter, orderBy []core.DBOrdering) ([]Course, error) {
	return svc.repo.QueryCourses(ctx, filter, orderBy)
}

// GetCourse returns the course `id`. Unpublished courses are only visible to staff.
func (svc *Service) GetCourse(ctx context.Context, id string, staff bool) (Course, error) {
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if !(staff || c.IsPublished) {
		return Course{}, ErrCourseNotFound
	}
	return c, nil
}

func (svc *Service) UpdateCourse(ctx context.Context, id string, uc UpdateCourse) (Course, error) {
	var c Course
	err := svc.tx.RunInTx(ctx, func(ctx context.Context, exec core.DBExecutor) error {
		var err error
		if c, err = svc.repo.GetCourse(ctx, id, exec); err != nil {
			return err
		}
		if uc.Slug != nil && *uc.Slug != c.Slug {
			if err = svc.repo.CheckSlugUniqueness(ctx, *uc.Slug, c.ID, exec); err != nil {
				return slugError(err)
			}
		}

		uc.apply(&c)
		c.UpdatedAt = svc.now()
		c, err = svc.repo.UpdateCourse(ctx, c, exec)
		return slugError(err)
	})
	if err != nil {
		return Course{}, err
	}
	return c, nil
}

// DeleteCourse deletes a course together with its modules, topics and contents.
func (svc *Service) DeleteCourse(ctx context.Context, id string) error {
	return svc.repo.DeleteCourse(ctx, id)
}

// Modules

// CreateModule inserts a module into its course at nm.SerialNumber, renumbering the following modules.
func (svc *Service) CreateModule(ctx context.Context, courseID string, nm NewModule) (Module, error) {
	var mod Module
	_, err := svc.modules.Insert(ctx, courseID, nm.SerialNumber, func(ctx context.Context, exec core.DBExecutor, serial int) error {
		now := svc.now()
		var err error
		mod, err = svc.repo.CreateModule(ctx, Module{
			CourseID:     courseID,
			SerialNumber: serial,
			Title:        nm.Title,
			Description:  nm.Description,
			CreatedAt:    now,
			UpdatedAt:    now,
		}, exec)
		return err
	})
	if err != nil {
		return Module{}, err
	}
	return mod, nil
}

// QueryModules returns the modules of a course in display order.
func (svc *Service) QueryModules(ctx context.Context, courseID string, staff bool) ([]Module, error) {
	if _, err := svc.GetCourse(ctx, courseID, staff); err != nil {
		return nil, err
	}
	return svc.repo.QueryModules(ctx, courseID)
}

// GetModule returns the module `id`. Modules of unpublished courses are only visible to staff.
func (svc *Service) GetModule(ctx context.Context, id string, staff bool) (Module, error) {
	mod, err := svc.repo.GetModule(ctx, id)
	if err != nil {
		return Module{}, err
	}
	if !staff {
		if _, err = svc.GetCourse(ctx, mod.CourseID, staff); err != nil {
			if core.IsNotFound(err) {
				return Module{}, ErrModuleNotFound
			}
			return Module{}, err
		}
	}
	return mod, nil
}

// UpdateModule updates a module and moves it to um.SerialNumber, renumbering the modules in between.
func (svc *Service) UpdateModule(ctx context.Context, id string, um UpdateModule) (Module, error) {
	mod, err := svc.repo.GetModule(ctx, id)
	if err != nil {
		return Module{}, err
	}

	_, err = svc.modules.Move(ctx, mod.CourseID, id, um.SerialNumber, func(ctx context.Context, exec core.DBExecutor, serial int) error {
		cur, err := svc.repo.GetModule(ctx, id, exec)
		if err != nil {
			return err
		}
		if um.Title != nil {
			cur.Title = *um.Title
		}
		if um.Description != nil {
			cur.Description = *um.Description
		}
		cur.SerialNumber = serial
		cur.UpdatedAt = svc.now()
		mod, err = svc.repo.UpdateModule(ctx, cur, exec)
		return err
	})
	if err != nil {
		return Module{}, err
	}
	return mod, nil
}

// DeleteModule deletes a module, with its topics and contents, and closes the gap it leaves in its course.
func (svc *Service) DeleteModule(ctx context.Context, id string) error {
	mod, err := svc.repo.GetModule(ctx, id)
	if err != nil {
		return err
	}
	return svc.modules.Delete(ctx, mod.CourseID, id, func(ctx context.Context, exec core.DBExecutor) error {
		return svc.repo.DeleteModule(ctx, id, exec)
	})
}

// CompactModules renumbers the modules of a course 1..N, keeping their order.
func (svc *Service) CompactModules(ctx context.Context, courseID string) (int, error) {
	return svc.modules.Compact(ctx, courseID)
}

// Topics

// CreateTopic inserts a topic into its module at nt.SerialNumber, renumbering the following topics.
func (svc *Service) CreateTopic(ctx context.Context, moduleID string, nt NewTopic) (Topic, error) {
	var topic Topic
	_, err := svc.topics.Insert(ctx, moduleID, nt.SerialNumber, func(ctx context.Context, exec core.DBExecutor, serial int) error {
		now := svc.now()
		var err error
		topic, err = svc.repo.CreateTopic(ctx, Topic{
			ModuleID:      moduleID,
			SerialNumber:  serial,
			Title:         nt.Title,
			Description:   nt.Description,
			IsFreePreview: nt.IsFreePreview,
			CreatedAt:     now,
			UpdatedAt:     now,
		}, exec)
		return err
	})
	if err != nil {
		return Topic{}, err
	}
	return topic, nil
}

// QueryTopics returns the topics of a module in display order.
func (svc *Service) QueryTopics(ctx context.Context, moduleID string, staff bool) ([]Topic, error) {
	if _, err := svc.GetModule(ctx, moduleID, staff); err != nil {
		return nil, err
	}
	return svc.repo.QueryTopics(ctx, moduleID)
}

// GetTopic returns the topic `id`. Topics of unpublished courses are only visible to staff.
func (svc *Service) GetTopic(ctx context.Context, id string, staff bool) (Topic, error) {
	topic, err := svc.repo.GetTopic(ctx, id)
	if err != nil {
		return Topic{}, err
	}
	if !staff {
		if _, err = svc.GetModule(ctx, topic.ModuleID, staff); err != nil {
			if core.IsNotFound(err) {
				return Topic{}, ErrTopicNotFound
			}
			return Topic{}, err
		}
	}
	return topic, nil
}

// UpdateTopic updates a topic and moves it to ut.SerialNumber, renumbering the topics in between.
func (svc *Service) UpdateTopic(ctx context.Context, id string, ut UpdateTopic) (Topic, error) {
	topic, err := svc.repo.GetTopic(ctx, id)
	if err != nil {
		return Topic{}, err
	}

	_, err = svc.topics.Move(ctx, topic.ModuleID, id, ut.SerialNumber, func(ctx context.Context, exec core.DBExecutor, serial int) error {
		cur, err := svc.repo.GetTopic(ctx, id, exec)
		if err != nil {
			return err
		}
		if ut.Title != nil {
			cur.Title = *ut.Title
		}
		if ut.Description != nil {
			cur.Description = *ut.Description
		}
		if ut.IsFreePreview != nil {
			cur.IsFreePreview = *ut.IsFreePreview
		}
		cur.SerialNumber = serial
		cur.UpdatedAt = svc.now()
		topic, err = svc.repo.UpdateTopic(ctx, cur, exec)
		return err
	})
	if err != nil {
		return Topic{}, err
	}
	return topic, nil
}

// DeleteTopic deletes a topic, with its contents, and closes the gap it leaves in its module.
func (svc *Service) DeleteTopic(ctx context.Context, id string) error {
	topic, err := svc.repo.GetTopic(ctx, id)
	if err != nil {
		return err
	}
	return svc.topics.Delete(ctx, topic.ModuleID, id, func(ctx context.Context, exec core.DBExecutor) error {
		return svc.repo.DeleteTopic(ctx, id, exec)
	})
}

// CompactTopics renumbers the topics of a module 1..N, keeping their order.
func (svc *Service) CompactTopics(ctx context.Context, moduleID string) (int, error) {
	return svc.topics.Compact(ctx, moduleID)
}

// Contents

func (svc *Service) CreateContent(ctx context.Context, topicID string, nc NewContent) (Content, error) {
	var c Content
	err := svc.tx.RunInTx(ctx, func(ctx context.Context, exec core.DBExecutor) error {
		if _, err := svc.repo.GetTopic(ctx, topicID, exec); err != nil {
			return err
		}

		now := svc.now()
		var err error
		c, err = svc.repo.CreateContent(ctx, Content{
			TopicID:         topicID,
			Title:           nc.Title,
			Kind:            nc.Kind,
			Body:            nc.Body,
			AssetPath:       nc.AssetPath,
			DurationSeconds: nc.DurationSeconds,
			CreatedAt:       now,
			UpdatedAt:       now,
		}, exec)
		return err
	})
	if err != nil {
		return Content{}, err
	}
	return c, nil
}

func (svc *Service) QueryContents(ctx context.Context, topicID string, staff bool) ([]Content, error) {
	if _, err := svc.GetTopic(ctx, topicID, staff); err != nil {
		return nil, err
	}
	return svc.repo.QueryContents(ctx, topicID)
}

// GetContent returns the content `id`. Contents of unpublished courses are only visible to staff.
func (svc *Service) GetContent(ctx context.Context, id string, staff bool) (Content, error) {
	c, err := svc.repo.GetContent(ctx, id)
	if err != nil {
		return Content{}, err
	}
	if !staff {
		if _, err = svc.GetTopic(ctx, c.TopicID, staff); err != nil {
			if core.IsNotFound(err) {
				return Content{}, ErrContentNotFound
			}
			return Content{}, err
		}
	}
	return c, nil
}

func (svc *Service) UpdateContent(ctx context.Context, id string, uc UpdateContent) (Content, error) {
	var c Content
	err := svc.tx.RunInTx(ctx, func(ctx context.Context, exec core.DBExecutor) error {
		var err error
		if c, err = svc.repo.GetContent(ctx, id, exec); err != nil {
			return err
		}
		uc.apply(&c)
		if c.Kind != KindText && c.AssetPath == "" {
			return core.NewFieldError("asset_path", "this field is required")
		}
		c.UpdatedAt = svc.now()
		c, err = svc.repo.UpdateContent(ctx, c, exec)
		return err
	})
	if err != nil {
		return Content{}, err
	}
	return c, nil
}

func (svc *Service) DeleteContent(ctx context.Context, id string) error {
	return svc.repo.DeleteContent(ctx, id)
}

// SignedURL returns a time limited URL to the asset of the content `id`.
func (svc *Service) SignedURL(ctx context.Context, id string, staff bool) (core.SignedURL, error) {
	c, err := svc.GetContent(ctx, id, staff)
	if err != nil {
		return core.SignedURL{}, err
	}
	if !c.HasAsset() {
		return core.SignedURL{}, core.NewValidationError(ErrNoAsset)
	}
	u, err := svc.signer.Sign(c.AssetPath)
	if err != nil {
		return core.SignedURL{}, errors.Wrap(err, "signing asset URL")
	}
	return u, nil
}
