package discount

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

const codeField = "code"

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("discount token")
	ErrCourseNotFound = core.NewNotFoundError("course")
	ErrCodeExists     = errors.New("a discount token with this code already exists")
	ErrInvalidCode    = errors.New("this discount code is invalid")
	ErrInactive       = errors.New("this discount code is no longer active")
	ErrExpired        = errors.New("this discount code has expired")
	ErrExhausted      = errors.New("this discount code has reached its usage limit")
	ErrWrongCourse    = errors.New("this discount code does not apply to this course")
)

type (
	Repository interface {
		CreateToken(ctx context.Context, t Token, exec ...core.DBExecutor) (Token, error)
		// QueryTokens applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a prefix match on Token.Code.
		QueryTokens(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Token, error)
		GetToken(ctx context.Context, id string, exec ...core.DBExecutor) (Token, error)
		// GetTokenByCode fails with ErrNotFound when no token has this code.
		GetTokenByCode(ctx context.Context, code string, exec ...core.DBExecutor) (Token, error)
		UpdateToken(ctx context.Context, t Token, exec ...core.DBExecutor) (Token, error)
		DeleteToken(ctx context.Context, id string, exec ...core.DBExecutor) error
		// IncrementUsage adds one use to the token unless it is exhausted; it reports whether it did.
		IncrementUsage(ctx context.Context, id string, exec ...core.DBExecutor) (bool, error)
		// GetCoursePrice fails with ErrCourseNotFound when the course does not exist.
		GetCoursePrice(ctx context.Context, courseID string, exec ...core.DBExecutor) (int64, error)
	}

	Service struct {
		tx      core.Transactor
		repo    Repository
		nowFunc func() time.Time // mockable
	}
)

func NewService(tx core.Transactor, repo Repository) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(tx, "tx"),
		vala.IsNotNil(repo, "repo"),
	).CheckAndPanic()

	return &Service{tx: tx, repo: repo, nowFunc: time.Now}
}

func (svc *Service) now() time.Time { return svc.nowFunc().UTC() }

func codeError(err error) error {
	return core.NewValidationError(err, core.FieldError{Field: codeField, Error: err.Error()})
}

func (svc *Service) Create(ctx context.Context, nt NewToken) (Token, error) {
	var t Token
	err := svc.tx.RunInTx(ctx, func(ctx context.Context, exec core.DBExecutor) error {
		if _, err := svc.repo.GetTokenByCode(ctx, nt.Code, exec); err == nil {
			return codeError(ErrCodeExists)
		} else if !core.IsNotFound(err) {
			return err
		}
		if nt.CourseID != "" {
			if _, err := svc.repo.GetCoursePrice(ctx, nt.CourseID, exec); err != nil {
				return err
			}
		}

		now := svc.now()
		t = Token{
			Code:      nt.Code,
			Percent:   nt.Percent,
			CourseID:  nt.CourseID,
			MaxUses:   nt.MaxUses,
			IsActive:  nt.IsActive == nil || *nt.IsActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if nt.ExpiresAt != nil {
			exp := nt.ExpiresAt.UTC()
			t.ExpiresAt = &exp
		}
		var err error
		t, err = svc.repo.CreateToken(ctx, t, exec)
		return err
	})
	if err != nil {
		return Token{}, err
	}
	return t, nil
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, orderBy []core.DBOrdering) ([]Token, error) {
	return svc.repo.QueryTokens(ctx, filter, orderBy)
}

func (svc *Service) Get(ctx context.Context, id string) (Token, error) {
	return svc.repo.GetToken(ctx, id)
}

func (svc *Service) Update(ctx context.Context, id string, ut UpdateToken) (Token, error) {
	var t Token
	err := svc.tx.RunInTx(ctx, func(ctx context.Context, exec core.DBExecutor) error {
		var err error
		if t, err = svc.repo.GetToken(ctx, id, exec); err != nil {
			return err
		}
		ut.apply(&t)
		if ut.CourseID != nil && t.CourseID != "" {
			if _, err := svc.repo.GetCoursePrice(ctx, t.CourseID, exec); err != nil {
				return err
			}
		}
		t.UpdatedAt = svc.now()
		t, err = svc.repo.UpdateToken(ctx, t, exec)
		return err
	})
	if err != nil {
		return Token{}, err
	}
	return t, nil
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteToken(ctx, id)
}

// Quote prices a course with a discount code without using the code.
func (svc *Service) Quote(ctx context.Context, qr QuoteRequest) (Quote, error) {
	var q Quote
	err := svc.tx.RunInTx(ctx, func(ctx context.Context, exec core.DBExecutor) error {
		var err error
		q, _, err = svc.quote(ctx, qr, exec)
		return err
	})
	if err != nil {
		return Quote{}, err
	}
	return q, nil
}

// Redeem prices a course with a discount code and records one use of the code.
// Concurrent redemptions never push a token past its usage limit.
func (svc *Service) Redeem(ctx context.Context, qr QuoteRequest) (Quote, error) {
	var q Quote
	err := svc.tx.RunInTx(ctx, func(ctx context.Context, exec core.DBExecutor) error {
		var (
			t   Token
			err error
		)
		if q, t, err = svc.quote(ctx, qr, exec); err != nil {
			return err
		}
		ok, err := svc.repo.IncrementUsage(ctx, t.ID, exec)
		if err != nil {
			return errors.Wrap(err, "recording discount usage")
		}
		if !ok {
			return codeError(ErrExhausted)
		}
		return nil
	})
	if err != nil {
		return Quote{}, err
	}
	return q, nil
}

func (svc *Service) quote(ctx context.Context, qr QuoteRequest, exec core.DBExecutor) (Quote, Token, error) {
	t, err := svc.repo.GetTokenByCode(ctx, qr.Code, exec)
	if err != nil {
		if core.IsNotFound(err) {
			return Quote{}, Token{}, codeError(ErrInvalidCode)
		}
		return Quote{}, Token{}, err
	}

	switch {
	case !t.IsActive:
		return Quote{}, Token{}, codeError(ErrInactive)
	case t.Expired(svc.now()):
		return Quote{}, Token{}, codeError(ErrExpired)
	case t.Exhausted():
		return Quote{}, Token{}, codeError(ErrExhausted)
	case !t.AppliesTo(qr.CourseID):
		return Quote{}, Token{}, codeError(ErrWrongCourse)
	}

	price, err := svc.repo.GetCoursePrice(ctx, qr.CourseID, exec)
	if err != nil {
		return Quote{}, Token{}, err
	}
	return Quote{
		Code:          t.Code,
		CourseID:      qr.CourseID,
		Percent:       t.Percent,
		OriginalPrice: price,
		FinalPrice:    t.Apply(price),
	}, t, nil
}
