package user_test

import (
	"context"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
	appfs "github.com/trezcool/academia/fs"
	dummydb "github.com/trezcool/academia/storage/database/dummy"
	testutil "github.com/trezcool/academia/tests"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []*core.EmailMessage
}

func (m *fakeMailer) SendMessages(messages ...*core.EmailMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, messages...)
}

func setup(t *testing.T) (user.Service, *fakeMailer) {
	t.Helper()
	db, err := dummydb.Open()
	require.NoError(t, err)
	mailer := new(fakeMailer)
	return user.NewService(core.NewTestConfig(), dummydb.NewUserRepository(db), mailer), mailer
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	tests := []struct {
		name      string
		nu        user.NewUser
		wantRoles []string
	}{
		{name: "configured admin", nu: user.NewUser{Name: "Owner", Email: "owner@test.cd", Password: "LolC@t123"}, wantRoles: []string{user.RoleAdmin}},
		{name: "configured manager", nu: user.NewUser{Name: "Manager", Email: "manager@test.cd", Password: "LolC@t123"}, wantRoles: []string{user.RoleManager}},
		{name: "anyone else", nu: user.NewUser{Name: "Customer", Email: "customer@test.cd", Password: "LolC@t123"}, wantRoles: []string{user.RoleCustomer}},
		{name: "explicit roles", nu: user.NewUser{Name: "Owner 2", Email: "owner2@test.cd", Password: "LolC@t123", Roles: []string{user.RoleAdminOwner}}, wantRoles: []string{user.RoleAdminOwner}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usr, err := svc.Create(ctx, tt.nu)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRoles, usr.Roles)
			assert.True(t, usr.Active())
			assert.NoError(t, usr.CheckPassword(tt.nu.Password))
		})
	}

	t.Run("uniqueness", func(t *testing.T) {
		err := svc.CheckUniqueness(ctx, "", "owner@test.cd")
		var verr *core.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, []core.FieldError{{Field: "email", Error: user.ErrUserExists.Error()}}, verr.Fields)

		owner, err := svc.GetByEmail(ctx, " OWNER@test.cd ")
		require.NoError(t, err)
		assert.NoError(t, svc.CheckUniqueness(ctx, "", "owner@test.cd", owner), "a user does not clash with itself")
	})
}

func TestUpdateUser_Validate(t *testing.T) {
	ctx := context.Background()
	db, err := dummydb.Open()
	require.NoError(t, err)
	repo := dummydb.NewUserRepository(db)
	svc := user.NewService(core.NewTestConfig(), repo, new(fakeMailer))
	validate, _ := testutil.NewValidator()

	// stored before usernames needed 6 characters
	hero := testutil.CreateUser(t, repo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleCustomer}, true)
	testutil.CreateUser(t, repo, "Other", "other01", "other@test.cd", "", []string{user.RoleCustomer}, true)

	t.Run("unchanged fields are not revalidated", func(t *testing.T) {
		for _, uu := range []user.UpdateUser{
			{Name: "  New   Name "},
			{Name: "New Name", Username: " HERO ", Email: "Hero@test.cd"},
		} {
			require.NoError(t, uu.Validate(ctx, hero, validate, svc))
			assert.Equal(t, "New Name", uu.Name)
			assert.Equal(t, "hero", uu.Username)
			assert.Equal(t, "hero@test.cd", uu.Email)
		}
	})

	t.Run("changed username must follow the rules", func(t *testing.T) {
		uu := user.UpdateUser{Username: "bob"}
		var verrs validator.ValidationErrors
		require.True(t, errors.As(uu.Validate(ctx, hero, validate, svc), &verrs))
		require.Len(t, verrs, 1)
		assert.Equal(t, "Username", verrs[0].Field())

		uu = user.UpdateUser{Username: "Hero_2024"}
		require.NoError(t, uu.Validate(ctx, hero, validate, svc))
		assert.Equal(t, "hero_2024", uu.Username)
		assert.Equal(t, hero.Name, uu.Name)
	})

	t.Run("changed username must be unique", func(t *testing.T) {
		uu := user.UpdateUser{Username: "other01"}
		var verr *core.ValidationError
		require.True(t, errors.As(uu.Validate(ctx, hero, validate, svc), &verr))
		assert.Equal(t, []core.FieldError{{Field: "username", Error: user.ErrUserExists.Error()}}, verr.Fields)
	})
}

func TestService_PasswordReset(t *testing.T) {
	ctx := context.Background()
	svc, mailer := setup(t)

	usr, err := svc.Create(ctx, user.NewUser{Name: "Customer", Email: "customer@test.cd", Password: "LolC@t123"})
	require.NoError(t, err)

	assert.Equal(t, user.ErrNotFound, svc.RequestPasswordReset(ctx, "lol@test.cd"))

	require.NoError(t, svc.RequestPasswordReset(ctx, "customer@test.cd"))
	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, "customer@test.cd", msg.To[0].Address)
	data := msg.TemplateData.(map[string]interface{})
	assert.Equal(t, user.EncodeUID(usr), data["UID"])
	assert.Equal(t, 72, data["ValidHours"])
	token := data["Token"].(string)

	require.NoError(t, core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, true /* strict */))
	require.NoError(t, msg.Render("http://localhost:3000"))
	assert.Contains(t, msg.TextContent, "http://localhost:3000/password-reset/"+user.EncodeUID(usr)+"/"+token)
	assert.NotEmpty(t, msg.HTMLContent)

	invalidReset := func(t *testing.T, err error) {
		t.Helper()
		var verr *core.ValidationError
		require.True(t, errors.As(err, &verr), "want a validation error, got %v", err)
		assert.Equal(t, user.ErrInvalidReset, verr.Err)
	}

	t.Run("invalid links", func(t *testing.T) {
		invalidReset(t, svc.ResetPassword(ctx, user.ResetUserPassword{UID: "%%%", Token: token, Password: "N3wP@ss!"}))
		invalidReset(t, svc.ResetPassword(ctx, user.ResetUserPassword{UID: user.EncodeUID(user.User{ID: "lol"}), Token: token, Password: "N3wP@ss!"}))
		invalidReset(t, svc.ResetPassword(ctx, user.ResetUserPassword{UID: user.EncodeUID(usr), Token: "lol", Password: "N3wP@ss!"}))
	})

	require.NoError(t, svc.ResetPassword(ctx, user.ResetUserPassword{UID: user.EncodeUID(usr), Token: token, Password: "N3wP@ss!"}))
	usr, err = svc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.NoError(t, usr.CheckPassword("N3wP@ss!"))

	t.Run("links are single use", func(t *testing.T) {
		invalidReset(t, svc.ResetPassword(ctx, user.ResetUserPassword{UID: user.EncodeUID(usr), Token: token, Password: "An0th3r!"}))
	})

	t.Run("deactivated accounts", func(t *testing.T) {
		inactive := false
		_, err := svc.Update(ctx, usr, user.UpdateUser{Name: usr.Name, Email: usr.Email, IsActive: &inactive})
		require.NoError(t, err)
		assert.Equal(t, user.ErrAccountDeactivated, svc.RequestPasswordReset(ctx, "customer@test.cd"))
	})
}
