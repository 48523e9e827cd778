package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/discount"
)

const tokenColumns = "id, code, percent, course_id, max_uses, used_count, expires_at, is_active, created_at, updated_at"

type tokenRow struct {
	ID        string      `db:"id"`
	Code      string      `db:"code"`
	Percent   int         `db:"percent"`
	CourseID  null.String `db:"course_id"`
	MaxUses   int         `db:"max_uses"`
	UsedCount int         `db:"used_count"`
	ExpiresAt null.Time   `db:"expires_at"`
	IsActive  bool        `db:"is_active"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

func wrapToken(t discount.Token) tokenRow {
	return tokenRow{
		ID:        t.ID,
		Code:      t.Code,
		Percent:   t.Percent,
		CourseID:  null.NewString(t.CourseID, t.CourseID != ""),
		MaxUses:   t.MaxUses,
		UsedCount: t.UsedCount,
		ExpiresAt: null.TimeFromPtr(t.ExpiresAt),
		IsActive:  t.IsActive,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func (r tokenRow) unwrap() discount.Token {
	t := discount.Token{
		ID:        r.ID,
		Code:      r.Code,
		Percent:   r.Percent,
		CourseID:  r.CourseID.String,
		MaxUses:   r.MaxUses,
		UsedCount: r.UsedCount,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if r.ExpiresAt.Valid {
		exp := r.ExpiresAt.Time.UTC()
		t.ExpiresAt = &exp
	}
	return t
}

type discountRepository struct {
	repository
}

var _ discount.Repository = (*discountRepository)(nil) // interface compliance check

func NewDiscountRepository(db *sqlx.DB) *discountRepository {
	return &discountRepository{repository{db: db}}
}

func (repo *discountRepository) CreateToken(ctx context.Context, t discount.Token, exec ...core.DBExecutor) (discount.Token, error) {
	ext, err := repo.getExec(exec)
	if err != nil {
		return discount.Token{}, err
	}

	t.ID = uuid.New().String()
	q := `INSERT INTO discount_token (` + tokenColumns + `)
		VALUES (:id, :code, :percent, :course_id, :max_uses, :used_count, :expires_at, :is_active,
			:created_at, :updated_at)`
	if _, err = sqlx.NamedExecContext(ctx, ext, q, wrapToken(t)); err != nil {
		return discount.Token{}, errors.Wrap(err, "inserting discount token")
	}
	return t, nil
}

func (repo *discountRepository) QueryTokens(ctx context.Context, filter *discount.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]discount.Token, error) {
	ext, err := repo.getExec(exec)
	if err != nil {
		return nil, err
	}

	w := new(where)
	if filter != nil {
		if filter.Search != "" {
			w.add("code LIKE ?", filter.Search+"%")
		}
		if filter.CourseID != "" {
			w.add("course_id::text = ?", filter.CourseID)
		}
		if filter.IsActive != nil {
			w.add("is_active = ?", *filter.IsActive)
		}
	}

	var rows []tokenRow
	q := "SELECT " + tokenColumns + " FROM discount_token" + w.String() + orderBy(ordering, "created_at DESC")
	if err = sqlx.SelectContext(ctx, ext, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying discount tokens")
	}
	tokens := make([]discount.Token, 0, len(rows))
	for _, r := range rows {
		tokens = append(tokens, r.unwrap())
	}
	return tokens, nil
}

func (repo *discountRepository) getToken(ctx context.Context, column, value string, exec []core.DBExecutor) (discount.Token, error) {
	ext, err := repo.getExec(exec)
	if err != nil {
		return discount.Token{}, err
	}

	var r tokenRow
	q := "SELECT " + tokenColumns + " FROM discount_token WHERE " + column + " = $1"
	if err = sqlx.GetContext(ctx, ext, &r, q, value); err != nil {
		return discount.Token{}, trapNoRowsErr(err, discount.ErrNotFound, "finding discount token")
	}
	return r.unwrap(), nil
}

func (repo *discountRepository) GetToken(ctx context.Context, id string, exec ...core.DBExecutor) (discount.Token, error) {
	if !isUUID(id) {
		return discount.Token{}, discount.ErrNotFound
	}
	return repo.getToken(ctx, "id", id, exec)
}

func (repo *discountRepository) GetTokenByCode(ctx context.Context, code string, exec ...core.DBExecutor) (discount.Token, error) {
	return repo.getToken(ctx, "code", code, exec)
}

func (repo *discountRepository) UpdateToken(ctx context.Context, t discount.Token, exec ...core.DBExecutor) (discount.Token, error) {
	ext, err := repo.getExec(exec)
	if err != nil {
		return discount.Token{}, err
	}

	q := `UPDATE discount_token SET percent = :percent, course_id = :course_id, max_uses = :max_uses,
		expires_at = :expires_at, is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`
	if err = namedExecOne(ctx, ext, q, wrapToken(t), discount.ErrNotFound, "updating discount token"); err != nil {
		return discount.Token{}, err
	}
	return t, nil
}

func (repo *discountRepository) DeleteToken(ctx context.Context, id string, exec ...core.DBExecutor) error {
	ext, err := repo.getExec(exec)
	if err != nil {
		return err
	}
	return deleteByID(ctx, ext, "discount_token", id, discount.ErrNotFound)
}

// IncrementUsage checks the usage limit in the same statement as the increment,
// so concurrent redemptions cannot exceed it.
func (repo *discountRepository) IncrementUsage(ctx context.Context, id string, exec ...core.DBExecutor) (bool, error) {
	ext, err := repo.getExec(exec)
	if err != nil {
		return false, err
	}

	q := `UPDATE discount_token SET used_count = used_count + 1
		WHERE id = $1 AND (max_uses = 0 OR used_count < max_uses)`
	res, err := ext.ExecContext(ctx, q, id)
	if err != nil {
		return false, errors.Wrap(err, "incrementing discount token usage")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "incrementing discount token usage")
	}
	return n == 1, nil
}

func (repo *discountRepository) GetCoursePrice(ctx context.Context, courseID string, exec ...core.DBExecutor) (int64, error) {
	if !isUUID(courseID) {
		return 0, discount.ErrCourseNotFound
	}
	ext, err := repo.getExec(exec)
	if err != nil {
		return 0, err
	}

	var price int64
	if err = sqlx.GetContext(ctx, ext, &price, "SELECT price FROM course WHERE id = $1", courseID); err != nil {
		return 0, trapNoRowsErr(err, discount.ErrCourseNotFound, "finding course price")
	}
	return price, nil
}
