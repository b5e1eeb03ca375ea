package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"swiftx/internal/model"
	"swiftx/internal/sessions"
	"swiftx/internal/store/memstore"
	"swiftx/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type sentCode struct {
	email string
	code  string
}

type chanSender chan sentCode

func (c chanSender) SendVerificationCode(_ context.Context, email, _ string, code string) error {
	c <- sentCode{email: email, code: code}
	return nil
}

func newTestService(t *testing.T) (*Service, *memstore.Store, chanSender) {
	t.Helper()
	st := memstore.New()
	sender := make(chanSender, 4)
	svc, err := NewService(st, sender, Options{BcryptCost: bcrypt.MinCost, VerificationTTL: time.Hour}, zap.NewNop())
	require.NoError(t, err)
	return svc, st, sender
}

func validInput() RegisterInput {
	return RegisterInput{
		FirstName: "Grace",
		LastName:  "Hopper",
		Username:  "grace",
		Email:     "Grace@Example.com",
		Password:  "cobol-1959",
	}
}

func waitCode(t *testing.T, sender chanSender) sentCode {
	t.Helper()
	select {
	case c := <-sender:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("verification code was not sent")
		return sentCode{}
	}
}

func TestRegisterSeedsDemoAccountAndSendsCode(t *testing.T) {
	svc, st, sender := newTestService(t)
	ctx := context.Background()

	id, err := svc.Register(ctx, validInput())
	require.NoError(t, err)

	u, err := st.UserByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "grace@example.com", u.Email)
	assert.Equal(t, types.UserStatusPending, u.Status)
	assert.Equal(t, types.RoleUser, u.Role)
	assert.NotEqual(t, "cobol-1959", u.PasswordHash)

	acc, err := st.AccountByType(ctx, id, types.AccountTypeDemo)
	require.NoError(t, err)
	assert.True(t, acc.Balance.Equal(decimal.NewFromInt(10000)))

	sent := waitCode(t, sender)
	assert.Equal(t, "grace@example.com", sent.email)
	assert.Len(t, sent.code, 6)
	assert.Equal(t, u.VerificationCode, sent.code)
}

func TestRegisterLiveStartsAtZero(t *testing.T) {
	svc, st, _ := newTestService(t)
	in := validInput()
	in.AccountType = "live"
	id, err := svc.Register(context.Background(), in)
	require.NoError(t, err)

	acc, err := st.AccountByType(context.Background(), id, types.AccountTypeLive)
	require.NoError(t, err)
	assert.True(t, acc.Balance.IsZero())
}

func TestRegisterDuplicateLeavesNoRows(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, validInput())
	require.NoError(t, err)
	before := st.RowCounts()

	sameEmail := validInput()
	sameEmail.Username = "other"
	sameUsername := validInput()
	sameUsername.Email = "other@example.com"

	for _, in := range []RegisterInput{sameEmail, sameUsername} {
		_, err := svc.Register(ctx, in)
		assert.ErrorIs(t, err, ErrAlreadyInUse)
	}
	assert.Equal(t, before, st.RowCounts())
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	cases := []struct {
		name   string
		mutate func(*RegisterInput)
		want   error
	}{
		{"missing email", func(in *RegisterInput) { in.Email = " " }, ErrMissingFields},
		{"missing username", func(in *RegisterInput) { in.Username = "" }, ErrMissingFields},
		{"short password", func(in *RegisterInput) { in.Password = "abc" }, ErrWeakPassword},
		{"bad account type", func(in *RegisterInput) { in.AccountType = "gold" }, ErrInvalidAccountType},
		{"password past bcrypt limit", func(in *RegisterInput) { in.Password = strings.Repeat("p", 73) }, ErrPasswordTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			_, err := svc.Register(context.Background(), in)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestVerifyEmail(t *testing.T) {
	svc, st, sender := newTestService(t)
	ctx := context.Background()
	id, err := svc.Register(ctx, validInput())
	require.NoError(t, err)
	code := waitCode(t, sender).code

	assert.ErrorIs(t, svc.VerifyEmail(ctx, "nobody@example.com", code), ErrInvalidRequest)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	assert.ErrorIs(t, svc.VerifyEmail(ctx, "grace@example.com", wrong), ErrInvalidCode)

	require.NoError(t, svc.VerifyEmail(ctx, "GRACE@example.com", code))
	u, err := st.UserByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.UserStatusActive, u.Status)
	assert.True(t, u.EmailVerified)
	assert.Empty(t, u.VerificationCode)

	assert.ErrorIs(t, svc.VerifyEmail(ctx, "grace@example.com", code), ErrInvalidRequest)
}

func TestVerifyEmailRejectsExpiredCode(t *testing.T) {
	svc, _, sender := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, validInput())
	require.NoError(t, err)
	code := waitCode(t, sender).code

	svc.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	assert.ErrorIs(t, svc.VerifyEmail(ctx, "grace@example.com", code), ErrCodeExpired)
}

func TestLoginFailuresAreIndistinguishableAndCountedOnce(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()
	id, err := svc.Register(ctx, validInput())
	require.NoError(t, err)

	_, errUnknown := svc.Login(ctx, "ghost@example.com", "whatever", "10.0.0.1")
	_, errWrong := svc.Login(ctx, "grace@example.com", "not-it", "10.0.0.1")
	require.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	require.ErrorIs(t, errWrong, ErrInvalidCredentials)
	assert.Equal(t, errUnknown.Error(), errWrong.Error())

	assert.Equal(t, 1, st.LoginFailures("ghost@example.com"))
	u, err := st.UserByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, u.FailedLogins)

	_, _ = svc.Login(ctx, "grace@example.com", "still-not-it", "10.0.0.1")
	u, err = st.UserByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, u.FailedLogins)
}

func TestLoginSuccessResetsCounterAndStampsIP(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()
	in := validInput()
	in.AccountType = "live"
	id, err := svc.Register(ctx, in)
	require.NoError(t, err)
	_, _ = svc.Login(ctx, "grace@example.com", "nope-nope", "10.0.0.1")

	got, err := svc.Login(ctx, "grace@example.com", "cobol-1959", "10.0.0.2")
	require.NoError(t, err)
	assert.Equal(t, id, got.User.ID)
	assert.Equal(t, types.AccountTypeLive, got.AccountType)

	u, err := st.UserByID(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, u.FailedLogins)
	assert.Equal(t, "10.0.0.2", u.LastLoginIP)
	require.NotNil(t, u.LastLoginAt)
}

func TestLoginRejectsSuspended(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()
	id, err := svc.Register(ctx, validInput())
	require.NoError(t, err)
	require.NoError(t, st.SetUserStatus(ctx, id, types.UserStatusSuspended))

	_, err = svc.Login(ctx, "grace@example.com", "cobol-1959", "")
	assert.ErrorIs(t, err, ErrSuspended)
	_, err = svc.Login(ctx, "grace@example.com", "wrong-pass", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAdminLogin(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, validInput())
	require.NoError(t, err)
	_, err = svc.CreateAdmin(ctx, RegisterInput{Username: "root", Email: "root@example.com", Password: "hunter22"})
	require.NoError(t, err)

	_, err = svc.AdminLogin(ctx, "grace@example.com", "cobol-1959", "")
	assert.ErrorIs(t, err, ErrNotAdmin)

	got, err := svc.AdminLogin(ctx, "root@example.com", "hunter22", "")
	require.NoError(t, err)
	assert.Equal(t, types.RoleAdmin, got.User.Role)
	assert.Equal(t, types.AccountTypeDemo, got.AccountType)
}

func TestUpdateProfileKeepsEmailUnique(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()
	id, err := svc.Register(ctx, validInput())
	require.NoError(t, err)
	other := validInput()
	other.Username, other.Email = "alan", "alan@example.com"
	_, err = svc.Register(ctx, other)
	require.NoError(t, err)

	err = svc.UpdateProfile(ctx, id, model.ProfileUpdate{Email: "alan@example.com"})
	assert.ErrorIs(t, err, ErrAlreadyInUse)

	require.NoError(t, svc.UpdateProfile(ctx, id, model.ProfileUpdate{
		FirstName: "Grace B.", Email: "grace@example.com", Country: "US",
	}))
	u, err := st.UserByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Grace B.", u.FirstName)
	assert.Equal(t, "US", u.Country)
}

func TestChangePassword(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	id, err := svc.Register(ctx, validInput())
	require.NoError(t, err)

	assert.ErrorIs(t, svc.ChangePassword(ctx, id, "wrong-one", "brand-new"), ErrWrongPassword)
	require.NoError(t, svc.ChangePassword(ctx, id, "cobol-1959", "brand-new"))

	_, err = svc.Login(ctx, "grace@example.com", "cobol-1959", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "grace@example.com", "brand-new", "")
	assert.NoError(t, err)
}

func TestRegisterRejectsOverlongFields(t *testing.T) {
	svc, st, _ := newTestService(t)
	cases := []struct {
		name   string
		mutate func(*RegisterInput)
		field  string
		max    int
	}{
		{"username", func(in *RegisterInput) { in.Username = strings.Repeat("u", 51) }, "Username", 50},
		{"email", func(in *RegisterInput) { in.Email = strings.Repeat("e", 95) + "@x.com" }, "Email", 100},
		{"phone", func(in *RegisterInput) { in.Phone = strings.Repeat("9", 21) }, "Phone", 20},
		{"first name", func(in *RegisterInput) { in.FirstName = strings.Repeat("é", 51) }, "First name", 50},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			_, err := svc.Register(context.Background(), in)
			var tooLong *FieldTooLongError
			require.ErrorAs(t, err, &tooLong)
			assert.Equal(t, tc.field, tooLong.Field)
			assert.Equal(t, tc.max, tooLong.Max)
		})
	}
	assert.Equal(t, 0, st.RowCounts()["users"])

	in := validInput()
	in.FirstName = strings.Repeat("é", 50)
	_, err := svc.Register(context.Background(), in)
	assert.NoError(t, err)
}

func TestUpdateProfileRejectsOverlongPhone(t *testing.T) {
	svc, _, _ := newTestService(t)
	id, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)
	err = svc.UpdateProfile(context.Background(), id, model.ProfileUpdate{Email: "grace@example.com", Phone: strings.Repeat("1", 25)})
	var tooLong *FieldTooLongError
	require.ErrorAs(t, err, &tooLong)
	assert.Equal(t, "Phone", tooLong.Field)
}

func TestHandlerRegisterReportsFieldWidth(t *testing.T) {
	svc, st, _ := newTestService(t)
	sm := sessions.NewManager(st, sessions.Options{Secret: []byte("k")}, zap.NewNop())
	h := NewHandler(svc, sm, zap.NewNop())

	body := `{"firstName":"Grace","username":"` + strings.Repeat("g", 60) + `","email":"grace@example.com","password":"cobol-1959"}`
	rec := httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/api/register", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.False(t, out.Success)
	assert.Equal(t, "Username must be at most 50 characters", out.Message)
}

func TestHandlerLoginSetsSessionCookie(t *testing.T) {
	svc, st, _ := newTestService(t)
	_, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)
	sm := sessions.NewManager(st, sessions.Options{Secret: []byte("k")}, zap.NewNop())
	h := NewHandler(svc, sm, zap.NewNop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"email":"grace@example.com","password":"cobol-1959"}`))
	h.Login(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Success     bool      `json:"success"`
		Message     string    `json:"message"`
		RedirectURL string    `json:"redirectUrl"`
		User        loginUser `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, out.Success)
	assert.Equal(t, "Login successful", out.Message)
	assert.Equal(t, "/dashboard.html", out.RedirectURL)
	assert.Equal(t, "demo", out.User.AccountType)
	require.Len(t, rec.Result().Cookies(), 1)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"email":"grace@example.com","password":"bad-pass"}`))
	h.Login(rec, req)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.False(t, out.Success)
	assert.Equal(t, "Invalid email or password", out.Message)
	assert.Empty(t, rec.Result().Cookies())
}
