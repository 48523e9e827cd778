package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/job"
)

const jobColumns = "id, title, company, location, employment_type, description, apply_url, is_active, expires_at, created_at, updated_at"

type jobRow struct {
	ID             string    `db:"id"`
	Title          string    `db:"title"`
	Company        string    `db:"company"`
	Location       string    `db:"location"`
	EmploymentType string    `db:"employment_type"`
	Description    string    `db:"description"`
	ApplyURL       string    `db:"apply_url"`
	IsActive       bool      `db:"is_active"`
	ExpiresAt      null.Time `db:"expires_at"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func wrapJob(j job.Job) jobRow {
	return jobRow{
		ID:             j.ID,
		Title:          j.Title,
		Company:        j.Company,
		Location:       j.Location,
		EmploymentType: j.EmploymentType,
		Description:    j.Description,
		ApplyURL:       j.ApplyURL,
		IsActive:       j.IsActive,
		ExpiresAt:      null.TimeFromPtr(j.ExpiresAt),
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
	}
}

func (r jobRow) unwrap() job.Job {
	j := job.Job{
		ID:             r.ID,
		Title:          r.Title,
		Company:        r.Company,
		Location:       r.Location,
		EmploymentType: r.EmploymentType,
		Description:    r.Description,
		ApplyURL:       r.ApplyURL,
		IsActive:       r.IsActive,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
	if r.ExpiresAt.Valid {
		exp := r.ExpiresAt.Time.UTC()
		j.ExpiresAt = &exp
	}
	return j
}

type jobRepository struct {
	repository
}

var _ job.Repository = (*jobRepository)(nil) // interface compliance check

func NewJobRepository(db *sqlx.DB) *jobRepository {
	return &jobRepository{repository{db: db}}
}

func (repo *jobRepository) CreateJob(ctx context.Context, j job.Job, exec ...core.DBExecutor) (job.Job, error) {
	ext, err := repo.getExec(exec)
	if err != nil {
		return job.Job{}, err
	}

	j.ID = uuid.New().String()
	q := `INSERT INTO job (` + jobColumns + `)
		VALUES (:id, :title, :company, :location, :employment_type, :description, :apply_url, :is_active,
			:expires_at, :created_at, :updated_at)`
	if _, err = sqlx.NamedExecContext(ctx, ext, q, wrapJob(j)); err != nil {
		return job.Job{}, errors.Wrap(err, "inserting job")
	}
	return j, nil
}

func (repo *jobRepository) QueryJobs(ctx context.Context, filter *job.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]job.Job, error) {
	ext, err := repo.getExec(exec)
	if err != nil {
		return nil, err
	}

	w := new(where)
	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			w.add("(title ILIKE ? OR company ILIKE ? OR location ILIKE ?)", val, val, val)
		}
		if filter.EmploymentType != "" {
			w.add("employment_type = ?", filter.EmploymentType)
		}
		if filter.IsActive != nil {
			w.add("is_active = ?", *filter.IsActive)
		}
		if filter.OpenAt != nil {
			w.add("is_active AND (expires_at IS NULL OR expires_at > ?)", filter.OpenAt.UTC())
		}
	}

	var rows []jobRow
	q := "SELECT " + jobColumns + " FROM job" + w.String() + orderBy(ordering, "created_at DESC")
	if err = sqlx.SelectContext(ctx, ext, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying jobs")
	}
	jobs := make([]job.Job, 0, len(rows))
	for _, r := range rows {
		jobs = append(jobs, r.unwrap())
	}
	return jobs, nil
}

func (repo *jobRepository) GetJob(ctx context.Context, id string, exec ...core.DBExecutor) (job.Job, error) {
	if !isUUID(id) {
		return job.Job{}, job.ErrNotFound
	}
	ext, err := repo.getExec(exec)
	if err != nil {
		return job.Job{}, err
	}

	var r jobRow
	if err = sqlx.GetContext(ctx, ext, &r, "SELECT "+jobColumns+" FROM job WHERE id = $1", id); err != nil {
		return job.Job{}, trapNoRowsErr(err, job.ErrNotFound, "finding job")
	}
	return r.unwrap(), nil
}

func (repo *jobRepository) UpdateJob(ctx context.Context, j job.Job, exec ...core.DBExecutor) (job.Job, error) {
	ext, err := repo.getExec(exec)
	if err != nil {
		return job.Job{}, err
	}

	q := `UPDATE job SET title = :title, company = :company, location = :location,
		employment_type = :employment_type, description = :description, apply_url = :apply_url,
		is_active = :is_active, expires_at = :expires_at, updated_at = :updated_at
		WHERE id = :id`
	if err = namedExecOne(ctx, ext, q, wrapJob(j), job.ErrNotFound, "updating job"); err != nil {
		return job.Job{}, err
	}
	return j, nil
}

func (repo *jobRepository) DeleteJob(ctx context.Context, id string, exec ...core.DBExecutor) error {
	ext, err := repo.getExec(exec)
	if err != nil {
		return err
	}
	return deleteByID(ctx, ext, "job", id, job.ErrNotFound)
}
