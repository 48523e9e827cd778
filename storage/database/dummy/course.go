package dummydb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/ordering"
)

type courseRepository struct {
	db      *DB
	modules *siblingStore
	topics  *siblingStore
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{
		db: db,
		modules: &siblingStore{
			db:             db,
			parentNotFound: course.ErrCourseNotFound,
			parentExists: func(t *tables, id string) bool {
				_, ok := t.courses[id]
				return ok
			},
			list: func(t *tables, parentID string) []ordering.Sibling {
				modules := t.courseModules(parentID)
				siblings := make([]ordering.Sibling, len(modules))
				for i, m := range modules {
					siblings[i] = ordering.Sibling{ID: m.ID, SerialNumber: m.SerialNumber}
				}
				return siblings
			},
			shift: func(t *tables, id string, delta int) {
				if m, ok := t.modules[id]; ok {
					m.SerialNumber += delta
					t.modules[id] = m
				}
			},
		},
		topics: &siblingStore{
			db:             db,
			parentNotFound: course.ErrModuleNotFound,
			parentExists: func(t *tables, id string) bool {
				_, ok := t.modules[id]
				return ok
			},
			list: func(t *tables, parentID string) []ordering.Sibling {
				topics := t.moduleTopics(parentID)
				siblings := make([]ordering.Sibling, len(topics))
				for i, tp := range topics {
					siblings[i] = ordering.Sibling{ID: tp.ID, SerialNumber: tp.SerialNumber}
				}
				return siblings
			},
			shift: func(t *tables, id string, delta int) {
				if tp, ok := t.topics[id]; ok {
					tp.SerialNumber += delta
					t.topics[id] = tp
				}
			},
		},
	}
}

func (repo *courseRepository) ModuleSiblings() ordering.Store { return repo.modules }
func (repo *courseRepository) TopicSiblings() ordering.Store  { return repo.topics }

// FailShifts makes every serial number shift fail with err; a nil err restores normal behavior.
func (repo *courseRepository) FailShifts(err error) {
	repo.modules.failShift = err
	repo.topics.failShift = err
}

// Courses

func (repo *courseRepository) CheckSlugUniqueness(_ context.Context, slug, excludedID string, _ ...core.DBExecutor) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, c := range repo.db.t.courses {
		if c.Slug == slug && c.ID != excludedID {
			return course.ErrSlugExists
		}
	}
	return nil
}

func (repo *courseRepository) CreateCourse(ctx context.Context, c course.Course, _ ...core.DBExecutor) (course.Course, error) {
	defer repo.db.lockWrite(ctx)()

	c.ID = uuid.New().String()
	repo.db.t.courses[c.ID] = c
	return c, nil
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter *course.CourseFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	courses := make([]course.Course, 0, len(repo.db.t.courses))
	for _, c := range repo.db.t.courses {
		if filter != nil {
			if filter.Search != "" && !containsFold(c.Title, filter.Search) && !containsFold(c.Description, filter.Search) {
				continue
			}
			if filter.IsPublished != nil && c.IsPublished != *filter.IsPublished {
				continue
			}
		}
		courses = append(courses, c)
	}

	sortBy(courses, ordering, core.DBOrdering{Field: "created_at"}, func(a, b course.Course, field string) int {
		switch field {
		case "title":
			return strings.Compare(a.Title, b.Title)
		case "price":
			return int(a.Price - b.Price)
		case "updated_at":
			return compareTime(a.UpdatedAt, b.UpdatedAt)
		default:
			return compareTime(a.CreatedAt, b.CreatedAt)
		}
	})
	return courses, nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id string, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.t.courses[id]; ok {
		return c, nil
	}
	return course.Course{}, course.ErrCourseNotFound
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, c course.Course, _ ...core.DBExecutor) (course.Course, error) {
	defer repo.db.lockWrite(ctx)()

	if _, ok := repo.db.t.courses[c.ID]; !ok {
		return course.Course{}, course.ErrCourseNotFound
	}
	repo.db.t.courses[c.ID] = c
	return c, nil
}

// DeleteCourse cascades to the course's modules and discount tokens.
func (repo *courseRepository) DeleteCourse(ctx context.Context, id string, _ ...core.DBExecutor) error {
	defer repo.db.lockWrite(ctx)()

	if _, ok := repo.db.t.courses[id]; !ok {
		return course.ErrCourseNotFound
	}
	delete(repo.db.t.courses, id)
	for _, m := range repo.db.t.modules {
		if m.CourseID == id {
			repo.db.t.deleteModule(m.ID)
		}
	}
	for _, tk := range repo.db.t.tokens {
		if tk.CourseID == id {
			delete(repo.db.t.tokens, tk.ID)
		}
	}
	return nil
}

func (t *tables) deleteModule(id string) {
	delete(t.modules, id)
	for _, tp := range t.topics {
		if tp.ModuleID == id {
			t.deleteTopic(tp.ID)
		}
	}
}

func (t *tables) deleteTopic(id string) {
	delete(t.topics, id)
	for _, c := range t.contents {
		if c.TopicID == id {
			delete(t.contents, c.ID)
		}
	}
}

// Modules

func (repo *courseRepository) CreateModule(ctx context.Context, m course.Module, _ ...core.DBExecutor) (course.Module, error) {
	defer repo.db.lockWrite(ctx)()

	if _, ok := repo.db.t.courses[m.CourseID]; !ok {
		return course.Module{}, course.ErrCourseNotFound
	}
	m.ID = uuid.New().String()
	repo.db.t.modules[m.ID] = m
	return m, nil
}

func (repo *courseRepository) QueryModules(_ context.Context, courseID string, _ ...core.DBExecutor) ([]course.Module, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return repo.db.t.courseModules(courseID), nil
}

func (repo *courseRepository) GetModule(_ context.Context, id string, _ ...core.DBExecutor) (course.Module, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if m, ok := repo.db.t.modules[id]; ok {
		return m, nil
	}
	return course.Module{}, course.ErrModuleNotFound
}

func (repo *courseRepository) UpdateModule(ctx context.Context, m course.Module, _ ...core.DBExecutor) (course.Module, error) {
	defer repo.db.lockWrite(ctx)()

	orig, ok := repo.db.t.modules[m.ID]
	if !ok {
		return course.Module{}, course.ErrModuleNotFound
	}
	m.CourseID = orig.CourseID
	repo.db.t.modules[m.ID] = m
	return m, nil
}

func (repo *courseRepository) DeleteModule(ctx context.Context, id string, _ ...core.DBExecutor) error {
	defer repo.db.lockWrite(ctx)()

	if _, ok := repo.db.t.modules[id]; !ok {
		return course.ErrModuleNotFound
	}
	repo.db.t.deleteModule(id)
	return nil
}

// Topics

func (repo *courseRepository) CreateTopic(ctx context.Context, t course.Topic, _ ...core.DBExecutor) (course.Topic, error) {
	defer repo.db.lockWrite(ctx)()

	if _, ok := repo.db.t.modules[t.ModuleID]; !ok {
		return course.Topic{}, course.ErrModuleNotFound
	}
	t.ID = uuid.New().String()
	repo.db.t.topics[t.ID] = t
	return t, nil
}

func (repo *courseRepository) QueryTopics(_ context.Context, moduleID string, _ ...core.DBExecutor) ([]course.Topic, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return repo.db.t.moduleTopics(moduleID), nil
}

func (repo *courseRepository) GetTopic(_ context.Context, id string, _ ...core.DBExecutor) (course.Topic, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if t, ok := repo.db.t.topics[id]; ok {
		return t, nil
	}
	return course.Topic{}, course.ErrTopicNotFound
}

func (repo *courseRepository) UpdateTopic(ctx context.Context, t course.Topic, _ ...core.DBExecutor) (course.Topic, error) {
	defer repo.db.lockWrite(ctx)()

	orig, ok := repo.db.t.topics[t.ID]
	if !ok {
		return course.Topic{}, course.ErrTopicNotFound
	}
	t.ModuleID = orig.ModuleID
	repo.db.t.topics[t.ID] = t
	return t, nil
}

func (repo *courseRepository) DeleteTopic(ctx context.Context, id string, _ ...core.DBExecutor) error {
	defer repo.db.lockWrite(ctx)()

	if _, ok := repo.db.t.topics[id]; !ok {
		return course.ErrTopicNotFound
	}
	repo.db.t.deleteTopic(id)
	return nil
}

// Contents

func (repo *courseRepository) CreateContent(ctx context.Context, c course.Content, _ ...core.DBExecutor) (course.Content, error) {
	defer repo.db.lockWrite(ctx)()

	if _, ok := repo.db.t.topics[c.TopicID]; !ok {
		return course.Content{}, course.ErrTopicNotFound
	}
	c.ID = uuid.New().String()
	repo.db.t.contents[c.ID] = c
	return c, nil
}

func (repo *courseRepository) QueryContents(_ context.Context, topicID string, _ ...core.DBExecutor) ([]course.Content, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	contents := make([]course.Content, 0)
	for _, c := range repo.db.t.contents {
		if c.TopicID == topicID {
			contents = append(contents, c)
		}
	}
	sortBy(contents, nil, core.DBOrdering{Field: "created_at", Ascending: true}, func(a, b course.Content, _ string) int {
		return compareTime(a.CreatedAt, b.CreatedAt)
	})
	return contents, nil
}

func (repo *courseRepository) GetContent(_ context.Context, id string, _ ...core.DBExecutor) (course.Content, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.t.contents[id]; ok {
		return c, nil
	}
	return course.Content{}, course.ErrContentNotFound
}

func (repo *courseRepository) UpdateContent(ctx context.Context, c course.Content, _ ...core.DBExecutor) (course.Content, error) {
	defer repo.db.lockWrite(ctx)()

	orig, ok := repo.db.t.contents[c.ID]
	if !ok {
		return course.Content{}, course.ErrContentNotFound
	}
	c.TopicID = orig.TopicID
	c.Kind = orig.Kind
	repo.db.t.contents[c.ID] = c
	return c, nil
}

func (repo *courseRepository) DeleteContent(ctx context.Context, id string, _ ...core.DBExecutor) error {
	defer repo.db.lockWrite(ctx)()

	if _, ok := repo.db.t.contents[id]; !ok {
		return course.ErrContentNotFound
	}
	delete(repo.db.t.contents, id)
	return nil
}
