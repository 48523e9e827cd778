package boiledrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

const userColumns = `id, name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login`

// userModel is the "user" table row.
type userModel struct {
	ID           string         `boil:"id"`
	Name         null.String    `boil:"name"`
	Username     null.String    `boil:"username"`
	Email        null.String    `boil:"email"`
	IsActive     bool           `boil:"is_active"`
	Roles        pq.StringArray `boil:"roles"`
	PasswordHash null.Bytes     `boil:"password_hash"`
	CreatedAt    time.Time      `boil:"created_at"`
	UpdatedAt    time.Time      `boil:"updated_at"`
	LastLogin    null.Time      `boil:"last_login"`
}

type userRepository struct {
	exec core.DBExecutor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{exec: exec}
}

func (repo userRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

func (repo userRepository) boil(usr user.User) *userModel {
	roles := usr.Roles
	if roles == nil {
		roles = []string{}
	}
	return &userModel{
		ID:           usr.ID,
		Name:         null.NewString(usr.Name, usr.Name != ""),
		Username:     null.NewString(usr.Username, usr.Username != ""),
		Email:        null.NewString(usr.Email, usr.Email != ""),
		IsActive:     usr.Active(),
		Roles:        roles,
		PasswordHash: null.NewBytes(usr.PasswordHash, usr.PasswordHash != nil),
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (repo userRepository) unboil(usr *userModel) user.User {
	if usr == nil {
		return user.User{}
	}
	isActive := usr.IsActive
	u := user.User{
		ID:           usr.ID,
		Name:         usr.Name.String,
		Username:     usr.Username.String,
		Email:        usr.Email.String,
		IsActive:     &isActive,
		Roles:        usr.Roles,
		PasswordHash: usr.PasswordHash.Bytes,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
	}
	if usr.LastLogin.Valid {
		u.LastLogin = usr.LastLogin.Time.UTC()
	}
	return u
}

func (repo userRepository) unboilSlice(slice []*userModel) []user.User {
	users := make([]user.User, 0, len(slice))
	for _, u := range slice {
		users = append(users, repo.unboil(u))
	}
	return users
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	w := new(where)
	w.add("(username = ? OR email = ?)", username, email)
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		w.add("NOT (id = ANY(?))", pq.Array(ids))
	}

	var res struct {
		Exists bool `boil:"exists"`
	}
	q := `SELECT EXISTS (SELECT 1 FROM "user"` + w.String() + `) AS "exists"`
	if err := queries.Raw(q, w.args...).Bind(ctx, repo.getExec(exec), &res); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	if res.Exists {
		return user.ErrUserExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = uuid.New().String()
	u := repo.boil(usr)

	q := `INSERT INTO "user" (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := queries.Raw(q,
		u.ID, u.Name, u.Username, u.Email, u.IsActive, u.Roles, u.PasswordHash, u.CreatedAt, u.UpdatedAt, u.LastLogin,
	).ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return repo.unboil(u), nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	w := new(where)

	if filter != nil {
		// users with Name, Username or Email matching the search keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			w.add("(name ILIKE ? OR username ILIKE ? OR email ILIKE ?)", val, val, val)
		}
		// users with any role that starts with any of the provided roles
		if len(filter.Roles) > 0 {
			patterns := make([]string, 0, len(filter.Roles))
			for _, role := range filter.Roles {
				patterns = append(patterns, role+"%")
			}
			w.add("EXISTS (SELECT 1 FROM UNNEST(roles) user_role WHERE user_role ILIKE ANY(?))", pq.Array(patterns))
		}
		if filter.IsActive != nil {
			w.add("is_active = ?", *filter.IsActive)
		}
		if !filter.CreatedFrom.IsZero() {
			w.add("created_at >= ?", filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			w.add("created_at <= ?", filter.CreatedTo.UTC())
		}
	}

	q := `SELECT ` + userColumns + ` FROM "user"` + w.String()
	if len(ordering) > 0 {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderList = append(orderList, ord.String())
		}
		q += " ORDER BY " + strings.Join(orderList, ", ")
	}

	var users []*userModel
	if err := queries.Raw(q, w.args...).Bind(ctx, repo.getExec(exec), &users); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return repo.unboilSlice(users), nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	w := new(where)

	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		w.add("id = ?", filter.ID)
	case filter.Username != "":
		w.add("username = ?", filter.Username)
	case filter.Email != "":
		w.add("email = ?", filter.Email)
	case filter.UsernameOrEmail != nil:
		var email string
		uname := filter.UsernameOrEmail[0]
		if len(filter.UsernameOrEmail) == 2 {
			email = filter.UsernameOrEmail[1]
		}
		if email == "" {
			email = uname
		} else if uname == "" {
			uname = email
		}
		if email == "" {
			return user.User{}, user.ErrNotFound
		}
		w.add("(username = ? OR email = ?)", uname, email)
	default:
		return user.User{}, user.ErrNotFound
	}

	usr := new(userModel)
	q := `SELECT ` + userColumns + ` FROM "user"` + w.String() + ` LIMIT 1`
	if err := queries.Raw(q, w.args...).Bind(ctx, repo.getExec(exec), usr); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user")
	}
	return repo.unboil(usr), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	u := repo.boil(usr)

	q := `UPDATE "user" SET name = $2, username = $3, email = $4, is_active = $5, roles = $6,
		password_hash = $7, updated_at = $8, last_login = $9 WHERE id = $1`
	res, err := queries.Raw(q,
		u.ID, u.Name, u.Username, u.Email, u.IsActive, u.Roles, u.PasswordHash, u.UpdatedAt, u.LastLogin,
	).ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	} else if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.unboil(u), nil
}

func (repo userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.ID == "" {
		return repo.CreateUser(ctx, usr, exec...)
	}
	return repo.UpdateUser(ctx, usr, exec...)
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return 0, nil
	}

	res, err := queries.Raw(`DELETE FROM "user" WHERE id = ANY($1)`, pq.Array(valid)).ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	return int(cnt), nil
}

// where accumulates AND-ed conditions with numbered placeholders.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	for _, arg := range args {
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)+1), 1)
		w.args = append(w.args, arg)
	}
	w.conds = append(w.conds, cond)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}
