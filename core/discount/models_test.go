package discount

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToken_Apply(t *testing.T) {
	tests := []struct {
		percent int
		price   int64
		want    int64
	}{
		{percent: 10, price: 10000, want: 9000},
		{percent: 100, price: 4999, want: 0},
		{percent: 33, price: 1000, want: 670},
		{percent: 15, price: 999, want: 850},
		{percent: 50, price: 0, want: 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Token{Percent: tt.percent}.Apply(tt.price))
	}
}

func TestToken_state(t *testing.T) {
	now := time.Now()
	past, future := now.Add(-time.Minute), now.Add(time.Minute)

	assert.False(t, Token{}.Expired(now))
	assert.False(t, Token{ExpiresAt: &future}.Expired(now))
	assert.True(t, Token{ExpiresAt: &past}.Expired(now))
	assert.True(t, Token{ExpiresAt: &now}.Expired(now))

	assert.False(t, Token{UsedCount: 1000}.Exhausted())
	assert.False(t, Token{MaxUses: 2, UsedCount: 1}.Exhausted())
	assert.True(t, Token{MaxUses: 2, UsedCount: 2}.Exhausted())

	assert.True(t, Token{}.AppliesTo("any"))
	assert.True(t, Token{CourseID: "c1"}.AppliesTo("c1"))
	assert.False(t, Token{CourseID: "c1"}.AppliesTo("c2"))
}

func TestCleanCode(t *testing.T) {
	assert.Equal(t, "SUMMER24", CleanCode("  summer24 "))
	assert.Equal(t, "", CleanCode("   "))
}
