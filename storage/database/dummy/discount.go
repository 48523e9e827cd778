package dummydb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/discount"
)

type discountRepository struct {
	db *DB
}

var _ discount.Repository = (*discountRepository)(nil) // interface compliance check

func NewDiscountRepository(db *DB) *discountRepository {
	return &discountRepository{db: db}
}

func (repo *discountRepository) CreateToken(ctx context.Context, t discount.Token, _ ...core.DBExecutor) (discount.Token, error) {
	defer repo.db.lockWrite(ctx)()

	for _, tk := range repo.db.t.tokens {
		if tk.Code == t.Code {
			return discount.Token{}, discount.ErrCodeExists
		}
	}
	t.ID = uuid.New().String()
	repo.db.t.tokens[t.ID] = t
	return t, nil
}

func (repo *discountRepository) QueryTokens(_ context.Context, filter *discount.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]discount.Token, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	tokens := make([]discount.Token, 0, len(repo.db.t.tokens))
	for _, t := range repo.db.t.tokens {
		if filter != nil {
			if filter.Search != "" && !strings.HasPrefix(t.Code, filter.Search) {
				continue
			}
			if filter.CourseID != "" && t.CourseID != filter.CourseID {
				continue
			}
			if filter.IsActive != nil && t.IsActive != *filter.IsActive {
				continue
			}
		}
		tokens = append(tokens, t)
	}

	sortBy(tokens, ordering, core.DBOrdering{Field: "created_at"}, func(a, b discount.Token, field string) int {
		switch field {
		case "code":
			return strings.Compare(a.Code, b.Code)
		case "percent":
			return a.Percent - b.Percent
		case "used_count":
			return a.UsedCount - b.UsedCount
		default:
			return compareTime(a.CreatedAt, b.CreatedAt)
		}
	})
	return tokens, nil
}

func (repo *discountRepository) GetToken(_ context.Context, id string, _ ...core.DBExecutor) (discount.Token, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if t, ok := repo.db.t.tokens[id]; ok {
		return t, nil
	}
	return discount.Token{}, discount.ErrNotFound
}

func (repo *discountRepository) GetTokenByCode(_ context.Context, code string, _ ...core.DBExecutor) (discount.Token, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, t := range repo.db.t.tokens {
		if t.Code == code {
			return t, nil
		}
	}
	return discount.Token{}, discount.ErrNotFound
}

func (repo *discountRepository) UpdateToken(ctx context.Context, t discount.Token, _ ...core.DBExecutor) (discount.Token, error) {
	defer repo.db.lockWrite(ctx)()

	orig, ok := repo.db.t.tokens[t.ID]
	if !ok {
		return discount.Token{}, discount.ErrNotFound
	}
	t.Code = orig.Code
	t.UsedCount = orig.UsedCount
	repo.db.t.tokens[t.ID] = t
	return t, nil
}

func (repo *discountRepository) DeleteToken(ctx context.Context, id string, _ ...core.DBExecutor) error {
	defer repo.db.lockWrite(ctx)()

	if _, ok := repo.db.t.tokens[id]; !ok {
		return discount.ErrNotFound
	}
	delete(repo.db.t.tokens, id)
	return nil
}

func (repo *discountRepository) IncrementUsage(ctx context.Context, id string, _ ...core.DBExecutor) (bool, error) {
	defer repo.db.lockWrite(ctx)()

	t, ok := repo.db.t.tokens[id]
	if !ok || t.Exhausted() {
		return false, nil
	}
	t.UsedCount++
	repo.db.t.tokens[id] = t
	return true, nil
}

func (repo *discountRepository) GetCoursePrice(_ context.Context, courseID string, _ ...core.DBExecutor) (int64, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.t.courses[courseID]; ok {
		return c.Price, nil
	}
	return 0, discount.ErrCourseNotFound
}
