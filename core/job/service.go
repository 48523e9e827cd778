package job

import (
	"context"
	"time"

	"github.com/kat-co/vala"

	"github.com/trezcool/academia/core"
)

var ErrNotFound = core.NewNotFoundError("job")

type (
	Repository interface {
		CreateJob(ctx context.Context, j Job, exec ...core.DBExecutor) (Job, error)
		// QueryJobs applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Job.Title, Job.Company or Job.Location.
		QueryJobs(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Job, error)
		GetJob(ctx context.Context, id string, exec ...core.DBExecutor) (Job, error)
		UpdateJob(ctx context.Context, j Job, exec ...core.DBExecutor) (Job, error)
		DeleteJob(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service struct {
		repo    Repository
		nowFunc func() time.Time // mockable
	}
)

func NewService(repo Repository) *Service {
	vala.BeginValidation().Validate(vala.IsNotNil(repo, "repo")).CheckAndPanic()
	return &Service{repo: repo, nowFunc: time.Now}
}

func (svc *Service) now() time.Time { return svc.nowFunc().UTC() }

func (svc *Service) Create(ctx context.Context, nj NewJob) (Job, error) {
	now := svc.now()
	j := Job{
		Title:          nj.Title,
		Company:        nj.Company,
		Location:       nj.Location,
		EmploymentType: nj.EmploymentType,
		Description:    nj.Description,
		ApplyURL:       nj.ApplyURL,
		IsActive:       nj.IsActive == nil || *nj.IsActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if nj.ExpiresAt != nil {
		exp := nj.ExpiresAt.UTC()
		j.ExpiresAt = &exp
	}
	return svc.repo.CreateJob(ctx, j)
}

// Query returns the job postings matching filter. Non-staff users only see open postings.
func (svc *Service) Query(ctx context.Context, filter *QueryFilter, orderBy []core.DBOrdering, staff bool) ([]Job, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	if !staff {
		now := svc.now()
		filter.OpenAt = &now
	}
	return svc.repo.QueryJobs(ctx, filter, orderBy)
}

// Get returns the job posting `id`. Non-staff users only see open postings.
func (svc *Service) Get(ctx context.Context, id string, staff bool) (Job, error) {
	j, err := svc.repo.GetJob(ctx, id)
	if err != nil {
		return Job{}, err
	}
	if !(staff || j.Open(svc.now())) {
		return Job{}, ErrNotFound
	}
	return j, nil
}

func (svc *Service) Update(ctx context.Context, id string, uj UpdateJob) (Job, error) {
	j, err := svc.repo.GetJob(ctx, id)
	if err != nil {
		return Job{}, err
	}
	uj.apply(&j)
	j.UpdatedAt = svc.now()
	return svc.repo.UpdateJob(ctx, j)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteJob(ctx, id)
}
