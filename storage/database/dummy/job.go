package dummydb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/job"
)

type jobRepository struct {
	db *DB
}

var _ job.Repository = (*jobRepository)(nil) // interface compliance check

func NewJobRepository(db *DB) *jobRepository {
	return &jobRepository{db: db}
}

func (repo *jobRepository) CreateJob(ctx context.Context, j job.Job, _ ...core.DBExecutor) (job.Job, error) {
	defer repo.db.lockWrite(ctx)()

	j.ID = uuid.New().String()
	repo.db.t.jobs[j.ID] = j
	return j, nil
}

func (repo *jobRepository) QueryJobs(_ context.Context, filter *job.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]job.Job, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	jobs := make([]job.Job, 0, len(repo.db.t.jobs))
	for _, j := range repo.db.t.jobs {
		if filter != nil {
			if filter.Search != "" &&
				!containsFold(j.Title, filter.Search) &&
				!containsFold(j.Company, filter.Search) &&
				!containsFold(j.Location, filter.Search) {
				continue
			}
			if filter.EmploymentType != "" && j.EmploymentType != filter.EmploymentType {
				continue
			}
			if filter.IsActive != nil && j.IsActive != *filter.IsActive {
				continue
			}
			if filter.OpenAt != nil && !j.Open(*filter.OpenAt) {
				continue
			}
		}
		jobs = append(jobs, j)
	}

	sortBy(jobs, ordering, core.DBOrdering{Field: "created_at"}, func(a, b job.Job, field string) int {
		switch field {
		case "title":
			return strings.Compare(a.Title, b.Title)
		case "company":
			return strings.Compare(a.Company, b.Company)
		case "updated_at":
			return compareTime(a.UpdatedAt, b.UpdatedAt)
		default:
			return compareTime(a.CreatedAt, b.CreatedAt)
		}
	})
	return jobs, nil
}

func (repo *jobRepository) GetJob(_ context.Context, id string, _ ...core.DBExecutor) (job.Job, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if j, ok := repo.db.t.jobs[id]; ok {
		return j, nil
	}
	return job.Job{}, job.ErrNotFound
}

func (repo *jobRepository) UpdateJob(ctx context.Context, j job.Job, _ ...core.DBExecutor) (job.Job, error) {
	defer repo.db.lockWrite(ctx)()

	if _, ok := repo.db.t.jobs[j.ID]; !ok {
		return job.Job{}, job.ErrNotFound
	}
	repo.db.t.jobs[j.ID] = j
	return j, nil
}

func (repo *jobRepository) DeleteJob(ctx context.Context, id string, _ ...core.DBExecutor) error {
	defer repo.db.lockWrite(ctx)()

	if _, ok := repo.db.t.jobs[id]; !ok {
		return job.ErrNotFound
	}
	delete(repo.db.t.jobs, id)
	return nil
}
