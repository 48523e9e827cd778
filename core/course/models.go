package course

import (
	"path"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
)

// Content kinds
const (
	KindVideo    = "video"
	KindDocument = "document"
	KindText     = "text"
)

type Course struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Slug         string    `json:"slug"`
	Description  string    `json:"description"`
	Price        int64     `json:"price"` // cents
	ThumbnailURL string    `json:"thumbnail_url"`
	IsPublished  bool      `json:"is_published"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

// Module is a chapter of a Course. Modules are ordered by SerialNumber within their course.
type Module struct {
	ID           string    `json:"id"`
	CourseID     string    `json:"course_id"`
	SerialNumber int       `json:"serial_number"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Topic is a lesson of a Module. Topics are ordered by SerialNumber within their module.
type Topic struct {
	ID            string    `json:"id"`
	ModuleID      string    `json:"module_id"`
	SerialNumber  int       `json:"serial_number"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	IsFreePreview bool      `json:"is_free_preview"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Content is a piece of learning material attached to a Topic.
// Video and document contents point to a private asset that is served through signed URLs.
type Content struct {
	ID              string    `json:"id"`
	TopicID         string    `json:"topic_id"`
	Title           string    `json:"title"`
	Kind            string    `json:"kind"`
	Body            string    `json:"body"`
	AssetPath       string    `json:"asset_path"`
	DurationSeconds *int      `json:"duration_seconds"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (c Content) HasAsset() bool { return c.Kind != KindText && c.AssetPath != "" }

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Title        string `json:"title" validate:"required,notblank,max=255"`
	Slug         string `json:"slug" validate:"required,slug,max=255"`
	Description  string `json:"description"`
	Price        int64  `json:"price" validate:"min=0"`
	ThumbnailURL string `json:"thumbnail_url" validate:"omitempty,url"`
	IsPublished  bool   `json:"is_published"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Slug = core.CleanString(nc.Slug, true /* lower */)
	if nc.Slug == "" {
		nc.Slug = core.Slugify(nc.Title)
	}
	nc.Description = core.CleanText(nc.Description)
	nc.ThumbnailURL = core.CleanString(nc.ThumbnailURL)
	return validate.Struct(nc)
}

// UpdateCourse defines what information may be provided to modify an existing Course.
// Nil fields are left unchanged.
type UpdateCourse struct {
	Title        *string `json:"title" validate:"omitempty,notblank,max=255"`
	Slug         *string `json:"slug" validate:"omitempty,slug,max=255"`
	Description  *string `json:"description"`
	Price        *int64  `json:"price" validate:"omitempty,min=0"`
	ThumbnailURL *string `json:"thumbnail_url" validate:"omitempty,url"`
	IsPublished  *bool   `json:"is_published"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	cleanPtr(uc.Title)
	cleanPtr(uc.Slug, true /* lower */)
	cleanTextPtr(uc.Description)
	cleanPtr(uc.ThumbnailURL)
	return validate.Struct(uc)
}

func (uc UpdateCourse) apply(c *Course) {
	if uc.Title != nil {
		c.Title = *uc.Title
	}
	if uc.Slug != nil {
		c.Slug = *uc.Slug
	}
	if uc.Description != nil {
		c.Description = *uc.Description
	}
	if uc.Price != nil {
		c.Price = *uc.Price
	}
	if uc.ThumbnailURL != nil {
		c.ThumbnailURL = *uc.ThumbnailURL
	}
	if uc.IsPublished != nil {
		c.IsPublished = *uc.IsPublished
	}
}

type CourseFilter struct {
	Search      string `query:"search"`
	IsPublished *bool  `query:"is_published"`
}

func (cf *CourseFilter) Clean() {
	cf.Search = core.CleanString(cf.Search)
}

// NewModule contains information needed to create a new Module.
// A zero SerialNumber appends the module after the last one.
type NewModule struct {
	Title        string `json:"title" validate:"required,notblank,max=255"`
	Description  string `json:"description"`
	SerialNumber int    `json:"serial_number" validate:"min=0"`
}

func (nm *NewModule) Validate(validate *validator.Validate) error {
	nm.Title = core.CleanString(nm.Title)
	nm.Description = core.CleanText(nm.Description)
	return validate.Struct(nm)
}

// UpdateModule defines what information may be provided to modify an existing Module.
// A zero SerialNumber keeps the module where it is.
type UpdateModule struct {
	Title        *string `json:"title" validate:"omitempty,notblank,max=255"`
	Description  *string `json:"description"`
	SerialNumber int     `json:"serial_number" validate:"min=0"`
}

func (um *UpdateModule) Validate(validate *validator.Validate) error {
	cleanPtr(um.Title)
	cleanTextPtr(um.Description)
	return validate.Struct(um)
}

// NewTopic contains information needed to create a new Topic.
// A zero SerialNumber appends the topic after the last one.
type NewTopic struct {
	Title         string `json:"title" validate:"required,notblank,max=255"`
	Description   string `json:"description"`
	IsFreePreview bool   `json:"is_free_preview"`
	SerialNumber  int    `json:"serial_number" validate:"min=0"`
}

func (nt *NewTopic) Validate(validate *validator.Validate) error {
	nt.Title = core.CleanString(nt.Title)
	nt.Description = core.CleanText(nt.Description)
	return validate.Struct(nt)
}

// UpdateTopic defines what information may be provided to modify an existing Topic.
// A zero SerialNumber keeps the topic where it is.
type UpdateTopic struct {
	Title         *string `json:"title" validate:"omitempty,notblank,max=255"`
	Description   *string `json:"description"`
	IsFreePreview *bool   `json:"is_free_preview"`
	SerialNumber  int     `json:"serial_number" validate:"min=0"`
}

func (ut *UpdateTopic) Validate(validate *validator.Validate) error {
	cleanPtr(ut.Title)
	cleanTextPtr(ut.Description)
	return validate.Struct(ut)
}

// NewContent contains information needed to create a new Content.
type NewContent struct {
	Title           string `json:"title" validate:"required,notblank,max=255"`
	Kind            string `json:"kind" validate:"required,oneof=video document text"`
	Body            string `json:"body" validate:"required_if=Kind text"`
	AssetPath       string `json:"asset_path" validate:"required_unless=Kind text,max=1024"`
	DurationSeconds *int   `json:"duration_seconds" validate:"omitempty,min=0"`
}

func (nc *NewContent) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Kind = core.CleanString(nc.Kind, true /* lower */)
	nc.AssetPath = cleanAssetPath(nc.AssetPath)
	return validate.Struct(nc)
}

// UpdateContent defines what information may be provided to modify an existing Content.
// Nil fields are left unchanged; the kind of a content cannot change.
type UpdateContent struct {
	Title           *string `json:"title" validate:"omitempty,notblank,max=255"`
	Body            *string `json:"body"`
	AssetPath       *string `json:"asset_path" validate:"omitempty,max=1024"`
	DurationSeconds *int    `json:"duration_seconds" validate:"omitempty,min=0"`
}

func (uc *UpdateContent) Validate(validate *validator.Validate) error {
	cleanPtr(uc.Title)
	if uc.AssetPath != nil {
		p := cleanAssetPath(*uc.AssetPath)
		uc.AssetPath = &p
	}
	return validate.Struct(uc)
}

func (uc UpdateContent) apply(c *Content) {
	if uc.Title != nil {
		c.Title = *uc.Title
	}
	if uc.Body != nil {
		c.Body = *uc.Body
	}
	if uc.AssetPath != nil {
		c.AssetPath = *uc.AssetPath
	}
	if uc.DurationSeconds != nil {
		c.DurationSeconds = uc.DurationSeconds
	}
}

func cleanPtr(s *string, lower ...bool) {
	if s != nil {
		*s = core.CleanString(*s, lower...)
	}
}

func cleanTextPtr(s *string) {
	if s != nil {
		*s = core.CleanText(*s)
	}
}

// cleanAssetPath returns p as an absolute path within the asset store.
func cleanAssetPath(p string) string {
	p = core.CleanText(p)
	if p == "" {
		return ""
	}
	return path.Clean("/" + p)
}
