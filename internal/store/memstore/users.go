package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"swiftx/internal/model"
	"swiftx/internal/store"
	"swiftx/internal/types"
)

func (st *state) userTaken(email, username string, excludeID int64) bool {
	for _, u := range st.users {
		if u.ID == excludeID {
			continue
		}
		if u.Email == email || (username != "" && u.Username == username) {
			return true
		}
	}
	return false
}

func (q *queries) CreateUser(_ context.Context, u *model.User) (int64, error) {
	st, done := q.begin()
	defer done()
	if st.userTaken(u.Email, u.Username, 0) {
		return 0, fmt.Errorf("%w: users email/username", store.ErrDuplicate)
	}
	u.ID = st.next("users")
	u.CreatedAt = q.now()
	st.users[u.ID] = *u
	return u.ID, nil
}

func (q *queries) UserByID(_ context.Context, id int64) (*model.User, error) {
	st, done := q.begin()
	defer done()
	u, ok := st.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (q *queries) UserByEmail(_ context.Context, email string) (*model.User, error) {
	st, done := q.begin()
	defer done()
	for _, u := range st.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (q *queries) EmailOrUsernameTaken(_ context.Context, email, username string, excludeID int64) (bool, error) {
	st, done := q.begin()
	defer done()
	return st.userTaken(email, username, excludeID), nil
}

func (q *queries) ActivateUser(_ context.Context, id int64) error {
	st, done := q.begin()
	defer done()
	u, ok := st.users[id]
	if !ok || u.Status != types.UserStatusPending {
		return store.ErrNotFound
	}
	u.EmailVerified = true
	u.Status = types.UserStatusActive
	u.VerificationCode = ""
	u.VerificationSentAt = nil
	st.users[id] = u
	return nil
}

func (q *queries) RecordLoginFailure(_ context.Context, email string, at time.Time) error {
	st, done := q.begin()
	defer done()
	for id, u := range st.users {
		if u.Email == email {
			u.FailedLogins++
			st.users[id] = u
			return nil
		}
	}
	f := st.loginFailures[email]
	f.attempts++
	f.last = at
	st.loginFailures[email] = f
	return nil
}

func (q *queries) RecordLoginSuccess(_ context.Context, id int64, ip string, at time.Time) error {
	st, done := q.begin()
	defer done()
	u, ok := st.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.FailedLogins = 0
	u.LastLoginAt = &at
	u.LastLoginIP = ip
	st.users[id] = u
	return nil
}

func (q *queries) UpdateUserProfile(_ context.Context, id int64, p model.ProfileUpdate) error {
	st, done := q.begin()
	defer done()
	u, ok := st.users[id]
	if !ok {
		return store.ErrNotFound
	}
	if st.userTaken(p.Email, "", id) {
		return fmt.Errorf("%w: users email", store.ErrDuplicate)
	}
	u.FirstName, u.LastName, u.Email, u.Phone, u.Country = p.FirstName, p.LastName, p.Email, p.Phone, p.Country
	st.users[id] = u
	return nil
}

func (q *queries) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	st, done := q.begin()
	defer done()
	u, ok := st.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.PasswordHash = hash
	st.users[id] = u
	return nil
}

func (q *queries) SetUserStatus(_ context.Context, id int64, status types.UserStatus) error {
	st, done := q.begin()
	defer done()
	u, ok := st.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.Status = status
	st.users[id] = u
	return nil
}

func (q *queries) CreateProfile(_ context.Context, userID int64, accountType types.AccountType) error {
	st, done := q.begin()
	defer done()
	if _, ok := st.users[userID]; !ok {
		return fmt.Errorf("user_profiles: user %d does not exist", userID)
	}
	st.profiles = append(st.profiles, profile{id: st.next("user_profiles"), userID: userID, accountType: accountType})
	return nil
}

func (q *queries) ListUsers(_ context.Context, page store.Page) ([]model.UserListItem, error) {
	st, done := q.begin()
	defer done()

	users := make([]model.User, 0, len(st.users))
	for _, u := range st.users {
		users = append(users, u)
	}
	newestFirst(users, func(u model.User) time.Time { return u.CreatedAt }, func(u model.User) int64 { return u.ID })

	byUser := make(map[int64][]model.TradingAccount)
	for _, a := range st.accounts {
		byUser[a.UserID] = append(byUser[a.UserID], a)
	}

	items := make([]model.UserListItem, 0, len(users))
	for _, u := range users {
		base := model.UserListItem{
			ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Username: u.Username, Email: u.Email,
			Role: u.Role, Status: u.Status, CreatedAt: u.CreatedAt,
		}
		accounts := byUser[u.ID]
		if len(accounts) == 0 {
			items = append(items, base)
			continue
		}
		sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
		for _, a := range accounts {
			it := base
			id, number, accountType, balance, currency := a.ID, a.AccountNumber, a.AccountType, a.Balance, a.Currency
			it.AccountID, it.AccountNumber, it.AccountType, it.Balance, it.Currency = &id, &number, &accountType, &balance, &currency
			items = append(items, it)
		}
	}
	return paginate(items, page), nil
}
