package tests

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/apps/api/echo"
	"github.com/trezcool/academia/core/user"
	emailsvc "github.com/trezcool/academia/services/email"
	testutil "github.com/trezcool/academia/tests"
)

const strongPwd = "LolC@t123"

func Test_userApi_login(t *testing.T) {
	db.Reset()

	customer := testutil.CreateUser(t, usrRepo, "Hero", "hero01", "hero@test.cd", strongPwd, []string{user.RoleCustomer}, true)
	testutil.CreateUser(t, usrRepo, "N Dog", "ndog01", "ndog@test.cd", strongPwd, []string{user.RoleCustomer}, false)

	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, echoapi.LoginRequest{Username: "this field is required", Password: "this field is required"}),
		},
		{
			name: "unknown user", wantCode: http.StatusBadRequest,
			body:     marshalObj(t, echoapi.LoginRequest{Username: "lol", Password: strongPwd}),
			wantData: marshalObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", wantCode: http.StatusBadRequest,
			body:     marshalObj(t, echoapi.LoginRequest{Username: "hero01", Password: "lol"}),
			wantData: marshalObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "inactive user", wantCode: http.StatusForbidden,
			body:     marshalObj(t, echoapi.LoginRequest{Username: "ndog@test.cd", Password: strongPwd}),
			wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/users/login"
	}
	runHTTPTests(t, tests)

	t.Run("by username or email", func(t *testing.T) {
		for _, uname := range []string{"HERO01", "hero@test.cd"} {
			rec := serve(http.MethodPost, "/v1/users/login", "", marshalObj(t, echoapi.LoginRequest{Username: uname, Password: strongPwd}))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp echoapi.LoginResponse
			unmarshal(t, rec, &resp)
			assert.NotEmpty(t, resp.Token)
		}

		usr, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: customer.ID})
		require.NoError(t, err)
		assert.False(t, usr.LastLogin.IsZero(), "last login is set")
	})
}

func Test_userApi_query(t *testing.T) {
	db.Reset()

	path := func(search, ordering string, isActive *bool, roles ...string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		if isActive != nil {
			v.Add("is_active", strconv.FormatBool(*isActive))
		}
		for _, r := range roles {
			v.Add("role", r)
		}
		return "/v1/users?" + v.Encode()
	}
	bPtr := func(b bool) *bool { return &b }

	now := time.Now()
	usr1 := testutil.CreateUser(t, usrRepo, "User", "awe", "awe@test.cd", "", nil, true, now.Add(1*time.Hour))
	customer := testutil.CreateUser(t, usrRepo, "Hero", "hero", "user3@test.cd", "", []string{user.RoleCustomer}, true, now.Add(2*time.Hour))
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true, now.Add(3*time.Hour))
	owner := testutil.CreateUser(t, usrRepo, "Owner", "owner", "owner@test.cd", "", []string{user.RoleAdminOwner}, true, now.Add(4*time.Hour))
	manager := testutil.CreateUser(t, usrRepo, "Manager", "manager", "manager@test.cd", "", []string{user.RoleManager}, true, now.Add(5*time.Hour))
	naughty := testutil.CreateUser(t, usrRepo, "N Dog", "ndog", "ndog@test.cd", "", []string{user.RoleCustomer}, false, now.Add(6*time.Hour))

	adminToken := getToken(t, admin)
	empty := marshalList(t)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name: "Admin required", path: "/v1/users", token: getToken(t, manager), wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Get all", path: "/v1/users", token: adminToken,
			wantData: marshalList(t, usr1, customer, admin, owner, manager, naughty),
		},
		// filtering
		{name: "search (unknown)", path: path("lol", "", nil), token: adminToken, wantData: empty},
		{name: "search=USE", path: path("USE", "", nil), token: adminToken, wantData: marshalList(t, usr1, customer)},
		{name: "role (unknown)", path: path("", "", nil, "lol"), token: adminToken, wantData: empty},
		{name: "role=admin:", path: path("", "", nil, user.RoleAdmin), token: adminToken, wantData: marshalList(t, admin, owner)},
		{
			name: "role=manager:,customer:", path: path("", "", nil, user.RoleManager, user.RoleCustomer),
			token: adminToken, wantData: marshalList(t, customer, manager, naughty),
		},
		{name: "is_active=false", path: path("", "", bPtr(false)), token: adminToken, wantData: marshalList(t, naughty)},
		// ordering
		{
			name: "order by -created_at", path: path("", "-created_at", nil), token: adminToken,
			wantData: marshalList(t, naughty, manager, owner, admin, customer, usr1),
		},
		{
			name: "order by name", path: path("", "name", nil), token: adminToken,
			wantData: marshalList(t, admin, customer, manager, naughty, owner, usr1),
		},
		{
			name: "unknown ordering is ignored", path: path("", "password_hash", nil), token: adminToken,
			wantData: marshalList(t, usr1, customer, admin, owner, manager, naughty),
		},
		// filtering & ordering
		{
			name: "filtering & ordering", path: path("", "-name", nil, user.RoleCustomer), token: adminToken,
			wantData: marshalList(t, naughty, customer),
		},
		// customer directory
		{
			name: "customers: staff required", path: "/v1/users/customers", token: getToken(t, customer), wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "customers: managers", path: "/v1/users/customers", token: getToken(t, manager), wantData: marshalList(t, customer, naughty)},
		{name: "customers: admins", path: "/v1/users/customers?ordering=-created_at", token: adminToken, wantData: marshalList(t, naughty, customer)},
		{
			name: "customers: role filter is ignored", path: "/v1/users/customers?role=" + url.QueryEscape(user.RoleAdmin), token: getToken(t, manager),
			wantData: marshalList(t, customer, naughty),
		},
		{name: "customers: search", path: "/v1/users/customers?search=dog", token: getToken(t, manager), wantData: marshalList(t, naughty)},
	}
	for i := range tests {
		tests[i].method = http.MethodGet
	}
	runHTTPTests(t, tests)
}

func Test_userApi_create(t *testing.T) {
	db.Reset()

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	testutil.CreateUser(t, usrRepo, "Taken", "taken_name", "taken@test.cd", "", nil, true)
	adminToken := getToken(t, admin)

	tests := []httpTest{
		{
			name: "duplicate email", token: adminToken, wantCode: http.StatusBadRequest,
			body: marshalObj(t, user.NewUser{
				Name: "Lol", Email: "taken@test.cd", Password: strongPwd, PasswordConfirm: strongPwd,
			}),
			wantData: marshalObj(t, map[string]string{"email": user.ErrUserExists.Error()}),
		},
		{
			name: "role above own", token: adminToken, wantCode: http.StatusBadRequest,
			body: marshalObj(t, user.NewUser{
				Name: "Lol", Email: "lol@test.cd", Password: strongPwd, PasswordConfirm: strongPwd, Roles: []string{user.RoleAdminOwner},
			}),
			wantData: marshalObj(t, map[string]string{"roles": "not enough rights to set these roles"}),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/users/register"
	}
	runHTTPTests(t, tests)

	t.Run("roles derived from the configured emails", func(t *testing.T) {
		rec := serve(http.MethodPost, "/v1/users/register", adminToken, marshalObj(t, user.NewUser{
			Name: "Manager", Email: "Manager@Test.cd", Password: strongPwd, PasswordConfirm: strongPwd,
		}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var usr user.User
		unmarshal(t, rec, &usr)
		assert.Equal(t, "manager@test.cd", usr.Email)
		assert.Equal(t, []string{user.RoleManager}, usr.Roles)
		assert.True(t, usr.Active())
	})
}

func Test_userApi_detail(t *testing.T) {
	db.Reset()

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	owner := testutil.CreateUser(t, usrRepo, "Owner", "owner", "owner@test.cd", "", []string{user.RoleAdminOwner}, true)
	customer := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleCustomer}, true)
	other := testutil.CreateUser(t, usrRepo, "Other", "other", "other@test.cd", "", []string{user.RoleCustomer}, true)

	tests := []httpTest{
		{name: "own profile", method: http.MethodGet, path: "/v1/users/" + customer.ID, token: getToken(t, customer), wantData: marshalObj(t, customer)},
		{
			name: "someone else's profile", method: http.MethodGet, path: "/v1/users/" + other.ID, token: getToken(t, customer),
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "not found"}),
		},
		{name: "admin sees everyone", method: http.MethodGet, path: "/v1/users/" + other.ID, token: getToken(t, admin), wantData: marshalObj(t, other)},
		{
			name: "customer cannot change roles", method: http.MethodPut, path: "/v1/users/" + customer.ID, token: getToken(t, customer),
			body: []byte(`{"roles": ["admin:"]}`), wantCode: http.StatusForbidden,
		},
		{
			name: "admin cannot delete themselves", method: http.MethodDelete, path: "/v1/users/" + admin.ID, token: getToken(t, admin),
			wantCode: http.StatusForbidden,
		},
		{
			name: "admin cannot delete a higher role", method: http.MethodDelete, path: "/v1/users/" + owner.ID, token: getToken(t, admin),
			wantCode: http.StatusForbidden,
		},
		{name: "admin deletes a customer", method: http.MethodDelete, path: "/v1/users/" + other.ID, token: getToken(t, admin), wantCode: http.StatusNoContent},
	}
	runHTTPTests(t, tests)

	t.Run("update own name", func(t *testing.T) {
		rec := serve(http.MethodPut, "/v1/users/"+customer.ID, getToken(t, customer), []byte(`{"name": "  New  Name "}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var usr user.User
		unmarshal(t, rec, &usr)
		assert.Equal(t, "New Name", usr.Name)
		assert.Equal(t, customer.Email, usr.Email)
	})
}

func Test_userApi_refreshToken(t *testing.T) {
	db.Reset()

	naughty := testutil.CreateUser(t, usrRepo, "N Dog", "ndog", "ndog@test.cd", "", []string{user.RoleCustomer}, false)
	customer := testutil.CreateUser(t, usrRepo, "Hero", "hero", "user3@test.cd", "", []string{user.RoleCustomer}, true)

	now := time.Now()
	unrefreshableClaims := app.UserClaims(customer, now.Add(-2*conf.Server.JWTRefreshExpirationDelta).Unix())
	unrefreshableToken, err := app.GenerateToken(unrefreshableClaims)
	require.NoError(t, err)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, app.UserClaims(customer)).SignedString([]byte("not-the-secret"))
	require.NoError(t, err)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "Invalid signature", token: forged, wantCode: http.StatusUnauthorized},
		{name: "Inactive user not allowed", token: getToken(t, naughty), wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "account deactivated"})},
		{name: "Refresh period expired", token: unrefreshableToken, wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "refresh has expired"})},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/users/token-refresh"
	}
	runHTTPTests(t, tests)

	t.Run("Token refreshed", func(t *testing.T) {
		rec := serve(http.MethodPost, "/v1/users/token-refresh", getToken(t, customer))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		// cannot guess new token.. just check that it's not empty
		var resp echoapi.LoginResponse
		unmarshal(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
	})
}

func Test_userApi_passwordReset(t *testing.T) {
	db.Reset()

	customer := testutil.CreateUser(t, usrRepo, "Hero", "hero", "user3@test.cd", "lol", []string{user.RoleCustomer}, true)
	successData := marshalObj(t, echoapi.SuccessResponse{Success: "If the email address supplied is associated with an active account on this system, " +
		"an email will arrive in your inbox shortly with instructions to reset your password."})

	tests := []httpTest{
		{name: "required fields", wantCode: http.StatusBadRequest, wantData: marshalObj(t, echoapi.PasswordResetRequest{Email: "this field is required"})},
		{
			name: "invalid email", wantCode: http.StatusBadRequest, body: marshalObj(t, echoapi.PasswordResetRequest{Email: "lol"}),
			wantData: marshalObj(t, echoapi.PasswordResetRequest{Email: "email must be a valid email address"}),
		},
		{name: "unknown email", body: marshalObj(t, echoapi.PasswordResetRequest{Email: "lol@test.com"}), wantData: successData},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/users/password-reset"
	}
	emailsvc.ResetSentMessages()
	runHTTPTests(t, tests)
	assert.Empty(t, emailsvc.SentMessages(), "no email for unknown addresses")

	// request a reset link, then use it
	rec := serve(http.MethodPost, "/v1/users/password-reset", "", marshalObj(t, echoapi.PasswordResetRequest{Email: "USER3@test.cd"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	sent := emailsvc.SentMessages()
	require.Len(t, sent, 1)
	msg := sent[0]
	assert.Equal(t, customer.Email, msg.To[0].Address)
	assert.Contains(t, msg.TextContent, customer.Name)
	assert.Contains(t, msg.HTMLContent, customer.Name)

	link := regexp.MustCompile(`/password-reset/([^/\s]+)/([^/\s]+)`).FindStringSubmatch(msg.TextContent)
	require.Len(t, link, 3, "reset link in %q", msg.TextContent)
	uid, token := link[1], link[2]

	invalidReset := marshalObj(t, map[string]string{"token": user.ErrInvalidReset.Error()})
	confirmTests := []httpTest{
		{
			name: "PasswordConfirm must = Password", wantCode: http.StatusBadRequest,
			body: marshalObj(t, user.ResetUserPassword{Token: token, UID: uid, Password: strongPwd, PasswordConfirm: "lol"}),
		},
		{
			name: "invalid uid", wantCode: http.StatusBadRequest, wantData: invalidReset,
			body: marshalObj(t, user.ResetUserPassword{Token: token, UID: "bG9s", Password: strongPwd, PasswordConfirm: strongPwd}),
		},
		{
			name: "invalid token", wantCode: http.StatusBadRequest, wantData: invalidReset,
			body: marshalObj(t, user.ResetUserPassword{Token: "HE4TS-sigsig", UID: uid, Password: strongPwd, PasswordConfirm: strongPwd}),
		},
		{
			name: "valid token",
			body:     marshalObj(t, user.ResetUserPassword{Token: token, UID: uid, Password: strongPwd, PasswordConfirm: strongPwd}),
			wantData: marshalObj(t, echoapi.SuccessResponse{Success: "Password has been reset with the new password."}),
		},
		{
			name: "token cannot be reused", wantCode: http.StatusBadRequest, wantData: invalidReset,
			body: marshalObj(t, user.ResetUserPassword{Token: token, UID: uid, Password: strongPwd, PasswordConfirm: strongPwd}),
		},
	}
	for i := range confirmTests {
		confirmTests[i].method = http.MethodPost
		confirmTests[i].path = "/v1/users/password-reset-confirm"
	}
	runHTTPTests(t, confirmTests)

	usr, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: customer.ID})
	require.NoError(t, err)
	assert.NoError(t, usr.CheckPassword(strongPwd))
}
