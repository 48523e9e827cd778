package user

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/academia/core"
)

// Roles
const (
	// Admin
	RoleAdmin      = "admin:"
	RoleAdminOwner = "admin:owner"

	// Manager
	RoleManager = "manager:"

	// Customer
	RoleCustomer = "customer:"
)

var (
	AdminRoles    = []string{RoleAdmin, RoleAdminOwner}
	ManagerRoles  = []string{RoleManager}
	CustomerRoles = []string{RoleCustomer}
	AllRoles      = getAllRoles()

	rolePriorities = map[string]int{
		// Admins: 30 - 21
		RoleAdminOwner: 30,
		RoleAdmin:      21,

		// Managers: 20 - 11
		RoleManager: 11,

		// Customers: 10 - 1
		RoleCustomer: 1,
	}

	Roles = []Role{
		{Name: "Customer", Value: RoleCustomer},
		{Name: "Manager", Value: RoleManager},
		{Name: "Admin", Value: RoleAdmin},
		{Name: "Admin Owner", Value: RoleAdminOwner},
	}
)

func getAllRoles() []string {
	all := make([]string, 0, 4)
	all = append(all, AdminRoles...)
	all = append(all, ManagerRoles...)
	all = append(all, CustomerRoles...)
	return all
}

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

// RolesForEmail derives the roles of a newly registered user from the configured admin and manager e-mail lists.
// Users on neither list are customers.
func RolesForEmail(email string, adminEmails, managerEmails []string) []string {
	email = core.CleanString(email, true /* lower */)
	if email == "" {
		return []string{RoleCustomer}
	}

	var roles []string
	if containsEmail(adminEmails, email) {
		roles = append(roles, RoleAdmin)
	}
	if containsEmail(managerEmails, email) {
		roles = append(roles, RoleManager)
	}
	if roles == nil {
		roles = []string{RoleCustomer}
	}
	return roles
}

func containsEmail(emails []string, email string) bool {
	for _, e := range emails {
		if strings.EqualFold(strings.TrimSpace(e), email) {
			return true
		}
	}
	return false
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	IsActive     *bool     `json:"is_active"`
	Roles        []string  `json:"roles"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) SetActive(active bool) {
	u.IsActive = &active
}

// Active reports whether the account is active; a user created without an explicit state is.
func (u *User) Active() bool {
	return u.IsActive == nil || *u.IsActive
}

func (u *User) RoleStartsWith(prefix string) bool {
	for _, role := range u.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool {
	return u.RoleStartsWith(RoleAdmin)
}

func (u *User) IsManager() bool {
	return u.RoleStartsWith(RoleManager)
}

// IsStaff reports whether the user may manage the catalogue.
func (u *User) IsStaff() bool {
	return u.IsAdmin() || u.IsManager()
}

func (u *User) IsCustomer() bool {
	return u.RoleStartsWith(RoleCustomer)
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string   `json:"name" validate:"required"`
	Username        string   `json:"username" validate:"omitempty,min=6,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nu.Username, nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name            string   `json:"name"`
	Username        string   `json:"username" validate:"omitempty,min=6,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email"`
	IsActive        *bool    `json:"is_active"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
	Password        string   `json:"password" validate:"omitempty"`
	PasswordConfirm string   `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

// Validate checks the fields the client changed, then fills the others from origUsr.
// Stored values are not revalidated: they may predate the current rules.
func (uu *UpdateUser) Validate(ctx context.Context, origUsr User, validate *validator.Validate, svc Service) error {
	uu.Name = core.CleanString(uu.Name)
	uu.Username = core.CleanString(uu.Username, true /* lower */)
	if uu.Username == origUsr.Username {
		uu.Username = ""
	}
	uu.Email = core.CleanString(uu.Email, true /* lower */)
	if uu.Email == origUsr.Email {
		uu.Email = ""
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	if uu.Username != "" || uu.Email != "" {
		if err := svc.CheckUniqueness(ctx, uu.Username, uu.Email, origUsr); err != nil {
			return err
		}
	}

	if uu.Name == "" {
		uu.Name = origUsr.Name
	}
	if uu.Username == "" {
		uu.Username = origUsr.Username
	}
	if uu.Email == "" {
		uu.Email = origUsr.Email
	}
	return nil
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp *ResetUserPassword) Validate(validate *validator.Validate) error {
	rp.Token = strings.TrimSpace(rp.Token)
	rp.UID = strings.TrimSpace(rp.UID)
	return validate.Struct(rp)
}

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []string  `query:"role"`
	IsActive    *bool     `query:"is_active"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// GetFilter selects a single user. The first non-empty field wins.
// UsernameOrEmail holds a username and, optionally, an email; either may match.
type GetFilter struct {
	ID              string
	Username        string
	Email           string
	UsernameOrEmail []string
}
