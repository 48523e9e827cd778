package job

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
)

// Employment types
const (
	TypeFullTime   = "full_time"
	TypePartTime   = "part_time"
	TypeContract   = "contract"
	TypeInternship = "internship"
)

var EmploymentTypes = []string{TypeFullTime, TypePartTime, TypeContract, TypeInternship}

type Job struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Company        string     `json:"company"`
	Location       string     `json:"location"`
	EmploymentType string     `json:"employment_type"`
	Description    string     `json:"description"`
	ApplyURL       string     `json:"apply_url"`
	IsActive       bool       `json:"is_active"`
	ExpiresAt      *time.Time `json:"expires_at"` // UTC
	CreatedAt      time.Time  `json:"created_at"` // UTC
	UpdatedAt      time.Time  `json:"updated_at"` // UTC
}

// Open reports whether the posting still accepts applications at `now`.
func (j Job) Open(now time.Time) bool {
	return j.IsActive && (j.ExpiresAt == nil || j.ExpiresAt.After(now))
}

// NewJob contains information needed to create a new Job.
type NewJob struct {
	Title          string     `json:"title" validate:"required,notblank,max=255"`
	Company        string     `json:"company" validate:"required,notblank,max=255"`
	Location       string     `json:"location" validate:"max=255"`
	EmploymentType string     `json:"employment_type" validate:"required,oneof=full_time part_time contract internship"`
	Description    string     `json:"description"`
	ApplyURL       string     `json:"apply_url" validate:"omitempty,url"`
	IsActive       *bool      `json:"is_active"`
	ExpiresAt      *time.Time `json:"expires_at"`
}

func (nj *NewJob) Validate(validate *validator.Validate) error {
	nj.Title = core.CleanString(nj.Title)
	nj.Company = core.CleanString(nj.Company)
	nj.Location = core.CleanString(nj.Location)
	nj.EmploymentType = core.CleanString(nj.EmploymentType, true /* lower */)
	nj.Description = core.CleanText(nj.Description)
	nj.ApplyURL = core.CleanString(nj.ApplyURL)
	return validate.Struct(nj)
}

// UpdateJob defines what information may be provided to modify an existing Job.
// Nil fields are left unchanged. ClearExpiry removes the expiry date.
type UpdateJob struct {
	Title          *string    `json:"title" validate:"omitempty,notblank,max=255"`
	Company        *string    `json:"company" validate:"omitempty,notblank,max=255"`
	Location       *string    `json:"location" validate:"omitempty,max=255"`
	EmploymentType *string    `json:"employment_type" validate:"omitempty,oneof=full_time part_time contract internship"`
	Description    *string    `json:"description"`
	ApplyURL       *string    `json:"apply_url" validate:"omitempty,url"`
	IsActive       *bool      `json:"is_active"`
	ExpiresAt      *time.Time `json:"expires_at"`
	ClearExpiry    bool       `json:"clear_expiry"`
}

func (uj *UpdateJob) Validate(validate *validator.Validate) error {
	for _, s := range []*string{uj.Title, uj.Company, uj.Location, uj.ApplyURL} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	if uj.Description != nil {
		*uj.Description = core.CleanText(*uj.Description)
	}
	if uj.EmploymentType != nil {
		*uj.EmploymentType = core.CleanString(*uj.EmploymentType, true /* lower */)
	}
	return validate.Struct(uj)
}

func (uj UpdateJob) apply(j *Job) {
	if uj.Title != nil {
		j.Title = *uj.Title
	}
	if uj.Company != nil {
		j.Company = *uj.Company
	}
	if uj.Location != nil {
		j.Location = *uj.Location
	}
	if uj.EmploymentType != nil {
		j.EmploymentType = *uj.EmploymentType
	}
	if uj.Description != nil {
		j.Description = *uj.Description
	}
	if uj.ApplyURL != nil {
		j.ApplyURL = *uj.ApplyURL
	}
	if uj.IsActive != nil {
		j.IsActive = *uj.IsActive
	}
	if uj.ClearExpiry {
		j.ExpiresAt = nil
	} else if uj.ExpiresAt != nil {
		exp := uj.ExpiresAt.UTC()
		j.ExpiresAt = &exp
	}
}

type QueryFilter struct {
	Search         string `query:"search"`
	EmploymentType string `query:"type"`
	IsActive       *bool  `query:"is_active"`

	// OpenAt keeps the postings that are open at the given time.
	OpenAt *time.Time `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.EmploymentType = core.CleanString(qf.EmploymentType, true /* lower */)
}
