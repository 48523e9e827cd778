package tests

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/discount"
	testutil "github.com/trezcool/academia/tests"
)

func Test_discountApi_redeem(t *testing.T) {
	db.Reset()

	_, managerToken, customerToken := staffAndCustomerTokens(t)
	golang := testutil.CreateCourse(t, courseRepo, "Go Basics", 1999, true)
	rust := testutil.CreateCourse(t, courseRepo, "Rust Basics", 5000, true)

	now := time.Now().UTC()
	yesterday := now.Add(-24 * time.Hour)
	newToken := func(code string, percent, maxUses int, courseID string, active bool, expiresAt *time.Time) discount.Token {
		tk, err := tokenRepo.CreateToken(context.Background(), discount.Token{
			Code: code, Percent: percent, MaxUses: maxUses, CourseID: courseID,
			IsActive: active, ExpiresAt: expiresAt, CreatedAt: now, UpdatedAt: now,
		})
		require.NoError(t, err)
		return tk
	}
	newToken("SAVE20", 20, 2, "", true, nil)
	newToken("GOONLY", 50, 0, golang.ID, true, nil)
	newToken("OLD", 10, 0, "", true, &yesterday)
	newToken("OFF", 10, 0, "", false, nil)

	codeErr := func(err error) []byte { return marshalObj(t, map[string]string{"code": err.Error()}) }
	quote := func(code, courseID string) []byte { return marshalObj(t, discount.QuoteRequest{Code: code, CourseID: courseID}) }

	tests := []httpTest{
		{name: "Auth required", path: "/v1/discounts/quote", body: quote("SAVE20", golang.ID), wantCode: http.StatusUnauthorized},
		{
			name: "quote", path: "/v1/discounts/quote", token: customerToken, body: quote(" save20 ", golang.ID),
			wantData: marshalObj(t, discount.Quote{Code: "SAVE20", CourseID: golang.ID, Percent: 20, OriginalPrice: 1999, FinalPrice: 1600}),
		},
		{name: "unknown code", path: "/v1/discounts/quote", token: customerToken, body: quote("LOL", golang.ID), wantCode: http.StatusBadRequest, wantData: codeErr(discount.ErrInvalidCode)},
		{name: "expired code", path: "/v1/discounts/quote", token: customerToken, body: quote("OLD", golang.ID), wantCode: http.StatusBadRequest, wantData: codeErr(discount.ErrExpired)},
		{name: "inactive code", path: "/v1/discounts/quote", token: customerToken, body: quote("OFF", golang.ID), wantCode: http.StatusBadRequest, wantData: codeErr(discount.ErrInactive)},
		{name: "wrong course", path: "/v1/discounts/quote", token: customerToken, body: quote("GOONLY", rust.ID), wantCode: http.StatusBadRequest, wantData: codeErr(discount.ErrWrongCourse)},
		{
			name: "unknown course", path: "/v1/discounts/quote", token: customerToken, body: quote("SAVE20", uuid.New().String()),
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "course not found"}),
		},
		{name: "course ID must be a UUID", path: "/v1/discounts/quote", token: customerToken, body: quote("SAVE20", "lol"), wantCode: http.StatusBadRequest},
		// SAVE20 can be used twice
		{name: "first use", path: "/v1/discounts/redeem", token: customerToken, body: quote("SAVE20", rust.ID)},
		{name: "second use", path: "/v1/discounts/redeem", token: managerToken, body: quote("SAVE20", golang.ID)},
		{name: "exhausted", path: "/v1/discounts/redeem", token: customerToken, body: quote("SAVE20", golang.ID), wantCode: http.StatusBadRequest, wantData: codeErr(discount.ErrExhausted)},
		{name: "exhausted quote", path: "/v1/discounts/quote", token: customerToken, body: quote("SAVE20", golang.ID), wantCode: http.StatusBadRequest, wantData: codeErr(discount.ErrExhausted)},
		{
			name: "unlimited code", path: "/v1/discounts/redeem", token: customerToken, body: quote("GOONLY", golang.ID),
			wantData: marshalObj(t, discount.Quote{Code: "GOONLY", CourseID: golang.ID, Percent: 50, OriginalPrice: 1999, FinalPrice: 1000}),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
	}
	runHTTPTests(t, tests)

	tokens, err := tokenRepo.QueryTokens(context.Background(), &discount.QueryFilter{Search: "SAVE20"}, nil)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, 2, tokens[0].UsedCount)
}

func Test_discountApi_manage(t *testing.T) {
	db.Reset()

	_, managerToken, customerToken := staffAndCustomerTokens(t)
	golang := testutil.CreateCourse(t, courseRepo, "Go Basics", 1999, true)

	tests := []httpTest{
		{name: "Staff required", method: http.MethodGet, path: "/v1/discounts", token: customerToken, wantCode: http.StatusForbidden},
		{name: "no tokens yet", method: http.MethodGet, path: "/v1/discounts", token: managerToken, wantData: marshalList(t)},
		{
			name: "percent out of range", method: http.MethodPost, path: "/v1/discounts", token: managerToken,
			body: marshalObj(t, discount.NewToken{Code: "LOL", Percent: 101}), wantCode: http.StatusBadRequest,
		},
		{
			name: "unknown course", method: http.MethodPost, path: "/v1/discounts", token: managerToken,
			body:     marshalObj(t, discount.NewToken{Code: "LOL", Percent: 10, CourseID: uuid.New().String()}),
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "course not found"}),
		},
	}
	runHTTPTests(t, tests)

	rec := serve(http.MethodPost, "/v1/discounts", managerToken, marshalObj(t, discount.NewToken{Code: "spring25", Percent: 25, CourseID: golang.ID, MaxUses: 10}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var tk discount.Token
	unmarshal(t, rec, &tk)
	assert.Equal(t, "SPRING25", tk.Code)
	assert.True(t, tk.IsActive)

	rec = serve(http.MethodPost, "/v1/discounts", managerToken, marshalObj(t, discount.NewToken{Code: "Spring25", Percent: 5}))
	checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"code": discount.ErrCodeExists.Error()})}, rec)

	rec = serve(http.MethodPut, "/v1/discounts/"+tk.ID, managerToken, []byte(`{"percent": 30, "is_active": false}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarshal(t, rec, &tk)
	assert.Equal(t, 30, tk.Percent)
	assert.False(t, tk.IsActive)
	assert.Equal(t, 10, tk.MaxUses, "unset fields are kept")

	rec = serve(http.MethodGet, "/v1/discounts?search=spr", managerToken)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marshalList(t, tk)}, rec)

	assert.Equal(t, http.StatusNoContent, serve(http.MethodDelete, "/v1/discounts/"+tk.ID, managerToken).Code)
	rec = serve(http.MethodGet, "/v1/discounts/"+tk.ID, managerToken)
	checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "discount token not found"})}, rec)
}
