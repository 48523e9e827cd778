package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJob_Open(t *testing.T) {
	now := time.Now()
	past, future := now.Add(-time.Hour), now.Add(time.Hour)

	tests := []struct {
		name string
		job  Job
		want bool
	}{
		{name: "active, no expiry", job: Job{IsActive: true}, want: true},
		{name: "active, expires later", job: Job{IsActive: true, ExpiresAt: &future}, want: true},
		{name: "active, expired", job: Job{IsActive: true, ExpiresAt: &past}},
		{name: "inactive", job: Job{ExpiresAt: &future}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.job.Open(now))
		})
	}
}

func TestUpdateJob_apply(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	j := Job{Title: "Go developer", Company: "Acme", IsActive: true, ExpiresAt: &exp}

	title, active := "Senior Go developer", false
	UpdateJob{Title: &title, IsActive: &active}.apply(&j)
	assert.Equal(t, "Senior Go developer", j.Title)
	assert.Equal(t, "Acme", j.Company)
	assert.False(t, j.IsActive)
	assert.Equal(t, &exp, j.ExpiresAt)

	UpdateJob{ClearExpiry: true, ExpiresAt: &exp}.apply(&j)
	assert.Nil(t, j.ExpiresAt)
}
