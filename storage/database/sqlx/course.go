package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/ordering"
)

const (
	courseColumns  = "id, title, slug, description, price, thumbnail_url, is_published, created_at, updated_at"
	moduleColumns  = "id, course_id, serial_number, title, description, created_at, updated_at"
	topicColumns   = "id, module_id, serial_number, title, description, is_free_preview, created_at, updated_at"
	contentColumns = "id, topic_id, title, kind, body, asset_path, duration_seconds, created_at, updated_at"
)

type (
	courseRow struct {
		ID           string    `db:"id"`
		Title        string    `db:"title"`
		Slug         string    `db:"slug"`
		Description  string    `db:"description"`
		Price        int64     `db:"price"`
		ThumbnailURL string    `db:"thumbnail_url"`
		IsPublished  bool      `db:"is_published"`
		CreatedAt    time.Time `db:"created_at"`
		UpdatedAt    time.Time `db:"updated_at"`
	}

	moduleRow struct {
		ID           string    `db:"id"`
		CourseID     string    `db:"course_id"`
		SerialNumber int       `db:"serial_number"`
		Title        string    `db:"title"`
		Description  string    `db:"description"`
		CreatedAt    time.Time `db:"created_at"`
		UpdatedAt    time.Time `db:"updated_at"`
	}

	topicRow struct {
		ID            string    `db:"id"`
		ModuleID      string    `db:"module_id"`
		SerialNumber  int       `db:"serial_number"`
		Title         string    `db:"title"`
		Description   string    `db:"description"`
		IsFreePreview bool      `db:"is_free_preview"`
		CreatedAt     time.Time `db:"created_at"`
		UpdatedAt     time.Time `db:"updated_at"`
	}

	contentRow struct {
		ID              string    `db:"id"`
		TopicID         string    `db:"topic_id"`
		Title           string    `db:"title"`
		Kind            string    `db:"kind"`
		Body            string    `db:"body"`
		AssetPath       string    `db:"asset_path"`
		DurationSeconds null.Int  `db:"duration_seconds"`
		CreatedAt       time.Time `db:"created_at"`
		UpdatedAt       time.Time `db:"updated_at"`
	}
)

func (r courseRow) unwrap() course.Course {
	return course.Course{
		ID:           r.ID,
		Title:        r.Title,
		Slug:         r.Slug,
		Description:  r.Description,
		Price:        r.Price,
		ThumbnailURL: r.ThumbnailURL,
		IsPublished:  r.IsPublished,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

func (r moduleRow) unwrap() course.Module {
	return course.Module{
		ID:           r.ID,
		CourseID:     r.CourseID,
		SerialNumber: r.SerialNumber,
		Title:        r.Title,
		Description:  r.Description,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

func (r topicRow) unwrap() course.Topic {
	return course.Topic{
		ID:            r.ID,
		ModuleID:      r.ModuleID,
		SerialNumber:  r.SerialNumber,
		Title:         r.Title,
		Description:   r.Description,
		IsFreePreview: r.IsFreePreview,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

func (r contentRow) unwrap() course.Content {
	c := course.Content{
		ID:        r.ID,
		TopicID:   r.TopicID,
		Title:     r.Title,
		Kind:      r.Kind,
		Body:      r.Body,
		AssetPath: r.AssetPath,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if r.DurationSeconds.Valid {
		d := r.DurationSeconds.Int
		c.DurationSeconds = &d
	}
	return c
}

type courseRepository struct {
	repository
	modules *siblingStore
	topics  *siblingStore
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{
		repository: repository{db: db},
		modules: &siblingStore{
			table:          "module",
			parentColumn:   "course_id",
			parentTable:    "course",
			parentNotFound: course.ErrCourseNotFound,
		},
		topics: &siblingStore{
			table:          "topic",
			parentColumn:   "module_id",
			parentTable:    "module",
			parentNotFound: course.ErrModuleNotFound,
		},
	}
}

func (repo *courseRepository) ModuleSiblings() ordering.Store { return repo.modules }
func (repo *courseRepository) TopicSiblings() ordering.Store  { return repo.topics }

// Courses

func (repo *courseRepository) CheckSlugUniqueness(ctx context.Context, slug, excludedID string, exec ...core.DBExecutor) error {
	ext, err := repo.getExec(exec)
	if err != nil {
		return err
	}

	w := new(where)
	w.add("slug = ?", slug)
	if excludedID != "" {
		w.add("id <> ?", excludedID)
	}
	var exists bool
	if err = sqlx.GetContext(ctx, ext, &exists, "SELECT EXISTS (SELECT 1 FROM course"+w.String()+")", w.args...); err != nil {
		return errors.Wrap(err, "checking course slug uniqueness")
	}
	if exists {
		return course.ErrSlugExists
	}
	return nil
}

func (repo *courseRepository) CreateCourse(ctx context.Context, c course.Course, exec ...core.DBExecutor) (course.Course, error) {
	ext, err := repo.getExec(exec)
	if err != nil {
		return course.Course{}, err
	}

	c.ID = uuid.New().String()
	q := `INSERT INTO course (` + courseColumns + `)
		VALUES (:id, :title, :slug, :description, :price, :thumbnail_url, :is_published, :created_at, :updated_at)`
	if _, err = sqlx.NamedExecContext(ctx, ext, q, courseRow(c)); err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return c, nil
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter *course.CourseFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]course.Course, error) {
	ext, err := repo.getExec(exec)
	if err != nil {
		return nil, err
	}

	w := new(where)
	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			w.add("(title ILIKE ? OR description ILIKE ?)", val, val)
		}
		if filter.IsPublished != nil {
			w.add("is_published = ?", *filter.IsPublished)
		}
	}

	var rows []courseRow
	q := "SELECT " + courseColumns + " FROM course" + w.String() + orderBy(ordering, "created_at DESC")
	if err = sqlx.SelectContext(ctx, ext, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, r.unwrap())
	}
	return courses, nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (course.Course, error) {
	if !isUUID(id) {
		return course.Course{}, course.ErrCourseNotFound
	}
	ext, err := repo.getExec(exec)
	if err != nil {
		return course.Course{}, err
	}

	var r courseRow
	if err = sqlx.GetContext(ctx, ext, &r, "SELECT "+courseColumns+" FROM course WHERE id = $1", id); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrCourseNotFound, "finding course")
	}
	return r.unwrap(), nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, c course.Course, exec ...core.DBExecutor) (course.Course, error) {
	ext, err := repo.getExec(exec)
	if err != nil {
		return course.Course{}, err
	}

	q := `UPDATE course SET title = :title, slug = :slug, description = :description, price = :price,
		thumbnail_url = :thumbnail_url, is_published = :is_published, updated_at = :updated_at
		WHERE id = :id`
	if err = namedExecOne(ctx, ext, q, courseRow(c), course.ErrCourseNotFound, "updating course"); err != nil {
		return course.Course{}, err
	}
	return c, nil
}

func (repo *courseRepository) DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) error {
	ext, err := repo.getExec(exec)
	if err != nil {
		return err
	}
	return deleteByID(ctx, ext, "course", id, course.ErrCourseNotFound)
}

// Modules

func (repo *courseRepository) CreateModule(ctx context.Context, m course.Module, exec ...core.DBExecutor) (course.Module, error) {
	ext, err := repo.getExec(exec)
	if err != nil {
		return course.Module{}, err
	}

	m.ID = uuid.New().String()
	q := `INSERT INTO module (` + moduleColumns + `)
		VALUES (:id, :course_id, :serial_number, :title, :description, :created_at, :updated_at)`
	if _, err = sqlx.NamedExecContext(ctx, ext, q, moduleRow(m)); err != nil {
		return course.Module{}, errors.Wrap(err, "inserting module")
	}
	return m, nil
}

func (repo *courseRepository) QueryModules(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]course.Module, error) {
	if !isUUID(courseID) {
		return nil, course.ErrCourseNotFound
	}
	ext, err := repo.getExec(exec)
	if err != nil {
		return nil, err
	}

	var rows []moduleRow
	q := "SELECT " + moduleColumns + " FROM module WHERE course_id = $1 ORDER BY serial_number"
	if err = sqlx.SelectContext(ctx, ext, &rows, q, courseID); err != nil {
		return nil, errors.Wrap(err, "querying modules")
	}
	modules := make([]course.Module, 0, len(rows))
	for _, r := range rows {
		modules = append(modules, r.unwrap())
	}
	return modules, nil
}

func (repo *courseRepository) GetModule(ctx context.Context, id string, exec ...core.DBExecutor) (course.Module, error) {
	if !isUUID(id) {
		return course.Module{}, course.ErrModuleNotFound
	}
	ext, err := repo.getExec(exec)
	if err != nil {
		return course.Module{}, err
	}

	var r moduleRow
	if err = sqlx.GetContext(ctx, ext, &r, "SELECT "+moduleColumns+" FROM module WHERE id = $1", id); err != nil {
		return course.Module{}, trapNoRowsErr(err, course.ErrModuleNotFound, "finding module")
	}
	return r.unwrap(), nil
}

func (repo *courseRepository) UpdateModule(ctx context.Context, m course.Module, exec ...core.DBExecutor) (course.Module, error) {
	ext, err := repo.getExec(exec)
	if err != nil {
		return course.Module{}, err
	}

	q := `UPDATE module SET serial_number = :serial_number, title = :title, description = :description,
		updated_at = :updated_at WHERE id = :id`
	if err = namedExecOne(ctx, ext, q, moduleRow(m), course.ErrModuleNotFound, "updating module"); err != nil {
		return course.Module{}, err
	}
	return m, nil
}

func (repo *courseRepository) DeleteModule(ctx context.Context, id string, exec ...core.DBExecutor) error {
	ext, err := repo.getExec(exec)
	if err != nil {
		return err
	}
	return deleteByID(ctx, ext, "module", id, course.ErrModuleNotFound)
}

// Topics

func (repo *courseRepository) CreateTopic(ctx context.Context, t course.Topic, exec ...core.DBExecutor) (course.Topic, error) {
	ext, err := repo.getExec(exec)
	if err != nil {
		return course.Topic{}, err
	}

	t.ID = uuid.New().String()
	q := `INSERT INTO topic (` + topicColumns + `)
		VALUES (:id, :module_id, :serial_number, :title, :description, :is_free_preview, :created_at, :updated_at)`
	if _, err = sqlx.NamedExecContext(ctx, ext, q, topicRow(t)); err != nil {
		return course.Topic{}, errors.Wrap(err, "inserting topic")
	}
	return t, nil
}

func (repo *courseRepository) QueryTopics(ctx context.Context, moduleID string, exec ...core.DBExecutor) ([]course.Topic, error) {
	if !isUUID(moduleID) {
		return nil, course.ErrModuleNotFound
	}
	ext, err := repo.getExec(exec)
	if err != nil {
		return nil, err
	}

	var rows []topicRow
	q := "SELECT " + topicColumns + " FROM topic WHERE module_id = $1 ORDER BY serial_number"
	if err = sqlx.SelectContext(ctx, ext, &rows, q, moduleID); err != nil {
		return nil, errors.Wrap(err, "querying topics")
	}
	topics := make([]course.Topic, 0, len(rows))
	for _, r := range rows {
		topics = append(topics, r.unwrap())
	}
	return topics, nil
}

func (repo *courseRepository) GetTopic(ctx context.Context, id string, exec ...core.DBExecutor) (course.Topic, error) {
	if !isUUID(id) {
		return course.Topic{}, course.ErrTopicNotFound
	}
	ext, err := repo.getExec(exec)
	if err != nil {
		return course.Topic{}, err
	}

	var r topicRow
	if err = sqlx.GetContext(ctx, ext, &r, "SELECT "+topicColumns+" FROM topic WHERE id = $1", id); err != nil {
		return course.Topic{}, trapNoRowsErr(err, course.ErrTopicNotFound, "finding topic")
	}
	return r.unwrap(), nil
}

func (repo *courseRepository) UpdateTopic(ctx context.Context, t course.Topic, exec ...core.DBExecutor) (course.Topic, error) {
	ext, err := repo.getExec(exec)
	if err != nil {
		return course.Topic{}, err
	}

	q := `UPDATE topic SET serial_number = :serial_number, title = :title, description = :description,
		is_free_preview = :is_free_preview, updated_at = :updated_at WHERE id = :id`
	if err = namedExecOne(ctx, ext, q, topicRow(t), course.ErrTopicNotFound, "updating topic"); err != nil {
		return course.Topic{}, err
	}
	return t, nil
}

func (repo *courseRepository) DeleteTopic(ctx context.Context, id string, exec ...core.DBExecutor) error {
	ext, err := repo.getExec(exec)
	if err != nil {
		return err
	}
	return deleteByID(ctx, ext, "topic", id, course.ErrTopicNotFound)
}

// Contents

func (repo *courseRepository) CreateContent(ctx context.Context, c course.Content, exec ...core.DBExecutor) (course.Content, error) {
	ext, err := repo.getExec(exec)
	if err != nil {
		return course.Content{}, err
	}

	c.ID = uuid.New().String()
	q := `INSERT INTO content (` + contentColumns + `)
		VALUES (:id, :topic_id, :title, :kind, :body, :asset_path, :duration_seconds, :created_at, :updated_at)`
	if _, err = sqlx.NamedExecContext(ctx, ext, q, wrapContent(c)); err != nil {
		return course.Content{}, errors.Wrap(err, "inserting content")
	}
	return c, nil
}

func (repo *courseRepository) QueryContents(ctx context.Context, topicID string, exec ...core.DBExecutor) ([]course.Content, error) {
	if !isUUID(topicID) {
		return nil, course.ErrTopicNotFound
	}
	ext, err := repo.getExec(exec)
	if err != nil {
		return nil, err
	}

	var rows []contentRow
	q := "SELECT " + contentColumns + " FROM content WHERE topic_id = $1 ORDER BY created_at"
	if err = sqlx.SelectContext(ctx, ext, &rows, q, topicID); err != nil {
		return nil, errors.Wrap(err, "querying contents")
	}
	contents := make([]course.Content, 0, len(rows))
	for _, r := range rows {
		contents = append(contents, r.unwrap())
	}
	return contents, nil
}

func (repo *courseRepository) GetContent(ctx context.Context, id string, exec ...core.DBExecutor) (course.Content, error) {
	if !isUUID(id) {
		return course.Content{}, course.ErrContentNotFound
	}
	ext, err := repo.getExec(exec)
	if err != nil {
		return course.Content{}, err
	}

	var r contentRow
	if err = sqlx.GetContext(ctx, ext, &r, "SELECT "+contentColumns+" FROM content WHERE id = $1", id); err != nil {
		return course.Content{}, trapNoRowsErr(err, course.ErrContentNotFound, "finding content")
	}
	return r.unwrap(), nil
}

func (repo *courseRepository) UpdateContent(ctx context.Context, c course.Content, exec ...core.DBExecutor) (course.Content, error) {
	ext, err := repo.getExec(exec)
	if err != nil {
		return course.Content{}, err
	}

	q := `UPDATE content SET title = :title, body = :body, asset_path = :asset_path,
		duration_seconds = :duration_seconds, updated_at = :updated_at WHERE id = :id`
	if err = namedExecOne(ctx, ext, q, wrapContent(c), course.ErrContentNotFound, "updating content"); err != nil {
		return course.Content{}, err
	}
	return c, nil
}

func (repo *courseRepository) DeleteContent(ctx context.Context, id string, exec ...core.DBExecutor) error {
	ext, err := repo.getExec(exec)
	if err != nil {
		return err
	}
	return deleteByID(ctx, ext, "content", id, course.ErrContentNotFound)
}

func wrapContent(c course.Content) contentRow {
	return contentRow{
		ID:              c.ID,
		TopicID:         c.TopicID,
		Title:           c.Title,
		Kind:            c.Kind,
		Body:            c.Body,
		AssetPath:       c.AssetPath,
		DurationSeconds: null.IntFromPtr(c.DurationSeconds),
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

// namedExecOne runs a named statement that must affect exactly one row.
func namedExecOne(ctx context.Context, ext sqlx.ExtContext, q string, arg interface{}, notFound error, msg string) error {
	res, err := sqlx.NamedExecContext(ctx, ext, q, arg)
	if err != nil {
		return errors.Wrap(err, msg)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, msg)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
