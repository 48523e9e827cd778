package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("user")
	ErrUserExists         = errors.New("a user with this username or email already exists")
	ErrInvalidReset       = errors.New("the reset link is invalid or has expired")
	ErrAccountDeactivated = errors.New("account deactivated")

	passwordResetTemplate = "password_reset"
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []User, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		UpdateOrCreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
	}

	Service interface {
		CheckUniqueness(ctx context.Context, uname, email string, excludedUsers ...User) error
		Create(ctx context.Context, nu NewUser) (User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		Update(ctx context.Context, usr User, uu UpdateUser) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		Delete(ctx context.Context, ids ...string) error
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, data ResetUserPassword) error
	}

	service struct {
		repo             Repository
		mailSvc          core.EmailService
		tokens           *tokenGenerator
		adminEmails      []string
		managerEmails    []string
		nowFunc          func() time.Time // mockable
		passwordResetTTL time.Duration
	}
)

var _ Service = (*service)(nil)

func NewService(conf *core.Config, repo Repository, mailSvc core.EmailService) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(conf, "conf"),
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.StringNotEmpty(conf.SecretKey, "conf.SecretKey"),
	).CheckAndPanic()

	return &service{
		repo:             repo,
		mailSvc:          mailSvc,
		tokens:           newTokenGenerator(conf.SecretKey, conf.PasswordResetTimeoutDelta),
		adminEmails:      conf.Roles.AdminEmails,
		managerEmails:    conf.Roles.ManagerEmails,
		nowFunc:          time.Now,
		passwordResetTTL: conf.PasswordResetTimeoutDelta,
	}
}

func (svc *service) now() time.Time { return svc.nowFunc().UTC() }

func (svc *service) CheckUniqueness(ctx context.Context, uname, email string, excludedUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(ctx, uname, email, excludedUsers); err != nil {
		if errors.Cause(err) == ErrUserExists {
			flds := make([]core.FieldError, 0, 2)
			if uname != "" {
				flds = append(flds, core.FieldError{Field: "username", Error: err.Error()})
			}
			if email != "" {
				flds = append(flds, core.FieldError{Field: "email", Error: err.Error()})
			}
			return core.NewValidationError(ErrUserExists, flds...)
		}
		return errors.Wrap(err, "checking username uniqueness")
	}
	return nil
}

// Create creates a user. Without explicit roles, the roles are derived from the user's email.
func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := svc.now()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		Roles:     nu.Roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if len(usr.Roles) == 0 {
		usr.Roles = RolesForEmail(usr.Email, svc.adminEmails, svc.managerEmails)
	}
	usr.SetActive(true)
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	uname = core.CleanString(uname, true /* lower */)
	if uname == "" {
		return User{}, ErrNotFound
	}
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: []string{uname}})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	email = core.CleanString(email, true /* lower */)
	if email == "" {
		return User{}, ErrNotFound
	}
	return svc.repo.GetUser(ctx, GetFilter{Email: email})
}

// Update applies a validated UpdateUser to usr.
func (svc *service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	usr.Name = uu.Name
	usr.Username = uu.Username
	usr.Email = uu.Email
	if uu.Roles != nil {
		usr.Roles = uu.Roles
	}
	if uu.IsActive != nil {
		usr.SetActive(*uu.IsActive)
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = svc.now()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = svc.now()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := svc.repo.DeleteUsersByID(ctx, ids)
	return err
}

// RequestPasswordReset emails a password reset link to the active user owning email.
func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.Active() {
		return ErrAccountDeactivated
	}

	token, err := svc.tokens.makeToken(usr)
	if err != nil {
		return errors.Wrap(err, "making password reset token")
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: passwordResetTemplate,
		TemplateData: map[string]interface{}{
			"Name":       usr.Name,
			"UID":        EncodeUID(usr),
			"Token":      token,
			"ValidHours": int(svc.passwordResetTTL.Hours()),
		},
	}
	svc.mailSvc.SendMessages(msg)
	return nil
}

// ResetPassword sets a new password for the user designated by a password reset link.
func (svc *service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	invalid := func() error {
		return core.NewValidationError(ErrInvalidReset, core.FieldError{Field: "token", Error: ErrInvalidReset.Error()})
	}

	id, err := decodeUID(data.UID)
	if err != nil {
		return invalid()
	}
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		if core.IsNotFound(err) {
			return invalid()
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if !usr.Active() {
		return invalid()
	}
	if err = svc.tokens.verifyToken(usr, data.Token); err != nil {
		if err == errInvalidToken || err == errTokenExpired {
			return invalid()
		}
		return errors.Wrap(err, "verifying token")
	}

	if err = usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = svc.now()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}
