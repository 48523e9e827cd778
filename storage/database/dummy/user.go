package dummydb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.t.users))
	for _, u := range repo.db.t.users {
		users = append(users, u)
	}
	return users
}

func (repo *userRepository) CheckUsernameUniqueness(_ context.Context, username, email string, excludedUsers []user.User, _ ...core.DBExecutor) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	excluded := make(map[string]bool, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = true
	}
	for _, usr := range repo.db.t.users {
		if excluded[usr.ID] {
			continue
		}
		if (username != "" && usr.Username == username) || (email != "" && usr.Email == email) {
			return user.ErrUserExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	defer repo.db.lockWrite(ctx)()

	usr.ID = uuid.New().String()
	if usr.IsActive == nil {
		usr.SetActive(true)
	}
	repo.db.t.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	users := repo.query()
	if filter != nil {
		users = filterUsers(users, filter)
	}
	sortUsers(users, ordering)
	return users, nil
}

func filterUsers(users []user.User, filter *user.QueryFilter) []user.User {
	filtered := make([]user.User, 0, len(users))
	search := strings.ToLower(filter.Search)

	for _, u := range users {
		// users with search keyword matching any Name, Username or Email ?
		if search != "" &&
			!strings.Contains(strings.ToLower(u.Username), search) &&
			!strings.Contains(strings.ToLower(u.Email), search) &&
			!strings.Contains(strings.ToLower(u.Name), search) {
			continue
		}
		// users with any of the specified roles
		if len(filter.Roles) > 0 {
			match := false
			for _, r := range filter.Roles {
				if u.RoleStartsWith(r) {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		if filter.IsActive != nil && u.Active() != *filter.IsActive {
			continue
		}
		if !filter.CreatedFrom.IsZero() && u.CreatedAt.Before(filter.CreatedFrom.UTC()) {
			continue
		}
		if !filter.CreatedTo.IsZero() && u.CreatedAt.After(filter.CreatedTo.UTC()) {
			continue
		}
		filtered = append(filtered, u)
	}
	return filtered
}

func sortUsers(users []user.User, ordering []core.DBOrdering) {
	sortBy(users, ordering, core.DBOrdering{Field: "created_at", Ascending: true}, func(a, b user.User, field string) int {
		switch field {
		case "name":
			return strings.Compare(a.Name, b.Name)
		case "username":
			return strings.Compare(a.Username, b.Username)
		case "email":
			return strings.Compare(a.Email, b.Email)
		case "updated_at":
			return compareTime(a.UpdatedAt, b.UpdatedAt)
		case "last_login":
			return compareTime(a.LastLogin, b.LastLogin)
		default:
			return compareTime(a.CreatedAt, b.CreatedAt)
		}
	})
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	switch {
	case filter.ID != "":
		if usr, ok := repo.db.t.users[filter.ID]; ok {
			return usr, nil
		}
		return user.User{}, user.ErrNotFound
	case filter.Username != "":
		for _, usr := range repo.db.t.users {
			if usr.Username == filter.Username {
				return usr, nil
			}
		}
	case filter.Email != "":
		for _, usr := range repo.db.t.users {
			if usr.Email == filter.Email {
				return usr, nil
			}
		}
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
			break
		}
		for _, usr := range repo.db.t.users {
			if usr.Username == uname || usr.Email == email {
				return usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	defer repo.db.lockWrite(ctx)()

	if _, ok := repo.db.t.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	if usr.IsActive == nil {
		usr.SetActive(true)
	}
	repo.db.t.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.ID == "" {
		return repo.CreateUser(ctx, usr, exec...)
	}
	return repo.UpdateUser(ctx, usr, exec...)
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids []string, _ ...core.DBExecutor) (int, error) {
	defer repo.db.lockWrite(ctx)()

	cnt := 0
	for _, id := range ids {
		if _, ok := repo.db.t.users[id]; ok {
			delete(repo.db.t.users, id)
			cnt++
		}
	}
	return cnt, nil
}
