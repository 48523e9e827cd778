package discount

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
)

// Token is a discount code. A token without CourseID applies to every course.
type Token struct {
	ID        string     `json:"id"`
	Code      string     `json:"code"`
	Percent   int        `json:"percent"`
	CourseID  string     `json:"course_id"`
	MaxUses   int        `json:"max_uses"` // 0: unlimited
	UsedCount int        `json:"used_count"`
	ExpiresAt *time.Time `json:"expires_at"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"` // UTC
	UpdatedAt time.Time  `json:"updated_at"` // UTC
}

func (t Token) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !t.ExpiresAt.After(now)
}

func (t Token) Exhausted() bool {
	return t.MaxUses > 0 && t.UsedCount >= t.MaxUses
}

// AppliesTo reports whether the token may be used to buy courseID.
func (t Token) AppliesTo(courseID string) bool {
	return t.CourseID == "" || t.CourseID == courseID
}

// Apply returns price reduced by the token's percentage, rounded down to the cent.
func (t Token) Apply(price int64) int64 {
	return price - price*int64(t.Percent)/100
}

// Quote is the price of a course once a discount token is applied.
type Quote struct {
	Code          string `json:"code"`
	CourseID      string `json:"course_id"`
	Percent       int    `json:"percent"`
	OriginalPrice int64  `json:"original_price"` // cents
	FinalPrice    int64  `json:"final_price"`    // cents
}

// NewToken contains information needed to create a new Token.
type NewToken struct {
	Code      string     `json:"code" validate:"required,notblank,alphanum,max=64"`
	Percent   int        `json:"percent" validate:"required,min=1,max=100"`
	CourseID  string     `json:"course_id" validate:"omitempty,uuid"`
	MaxUses   int        `json:"max_uses" validate:"min=0"`
	ExpiresAt *time.Time `json:"expires_at"`
	IsActive  *bool      `json:"is_active"`
}

func (nt *NewToken) Validate(validate *validator.Validate) error {
	nt.Code = CleanCode(nt.Code)
	nt.CourseID = core.CleanString(nt.CourseID, true /* lower */)
	return validate.Struct(nt)
}

// UpdateToken defines what information may be provided to modify an existing Token.
// The code of a token cannot change. Nil fields are left unchanged.
type UpdateToken struct {
	Percent     *int       `json:"percent" validate:"omitempty,min=1,max=100"`
	CourseID    *string    `json:"course_id" validate:"omitempty,uuid"`
	MaxUses     *int       `json:"max_uses" validate:"omitempty,min=0"`
	ExpiresAt   *time.Time `json:"expires_at"`
	ClearExpiry bool       `json:"clear_expiry"`
	IsActive    *bool      `json:"is_active"`
}

func (ut *UpdateToken) Validate(validate *validator.Validate) error {
	if ut.CourseID != nil {
		*ut.CourseID = core.CleanString(*ut.CourseID, true /* lower */)
	}
	return validate.Struct(ut)
}

func (ut UpdateToken) apply(t *Token) {
	if ut.Percent != nil {
		t.Percent = *ut.Percent
	}
	if ut.CourseID != nil {
		t.CourseID = *ut.CourseID
	}
	if ut.MaxUses != nil {
		t.MaxUses = *ut.MaxUses
	}
	if ut.IsActive != nil {
		t.IsActive = *ut.IsActive
	}
	if ut.ClearExpiry {
		t.ExpiresAt = nil
	} else if ut.ExpiresAt != nil {
		exp := ut.ExpiresAt.UTC()
		t.ExpiresAt = &exp
	}
}

// QuoteRequest asks for the price of CourseID with the discount Code.
type QuoteRequest struct {
	Code     string `json:"code" validate:"required,notblank"`
	CourseID string `json:"course_id" validate:"required,uuid"`
}

func (qr *QuoteRequest) Validate(validate *validator.Validate) error {
	qr.Code = CleanCode(qr.Code)
	qr.CourseID = core.CleanString(qr.CourseID, true /* lower */)
	return validate.Struct(qr)
}

type QueryFilter struct {
	Search   string `query:"search"`
	CourseID string `query:"course_id"`
	IsActive *bool  `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = CleanCode(qf.Search)
	qf.CourseID = core.CleanString(qf.CourseID, true /* lower */)
}

// CleanCode normalizes a discount code; codes are case-insensitive.
func CleanCode(code string) string {
	return strings.ToUpper(core.CleanString(code))
}
