package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
	"unicode/utf8"

	"swiftx/internal/accounts"
	"swiftx/internal/model"
	"swiftx/internal/store"
	"swiftx/internal/types"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 6
	codeDigits        = 6
	sendTimeout       = 30 * time.Second
)

// Widths of the users columns; bcrypt ignores password bytes past 72.
const (
	maxNameLength    = 50
	maxEmailLength   = 100
	maxPhoneLength   = 20
	maxCountryLength = 50
	maxPasswordBytes = 72
)

var (
	ErrMissingFields      = errors.New("missing required fields")
	ErrWeakPassword       = errors.New("password too short")
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrAlreadyInUse       = errors.New("email or username already in use")
	ErrInvalidRequest     = errors.New("no pending verification")
	ErrInvalidCode        = errors.New("invalid verification code")
	ErrCodeExpired        = errors.New("verification code expired")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSuspended          = errors.New("account suspended")
	ErrNotAdmin           = errors.New("admin access required")
	ErrWrongPassword      = errors.New("current password is incorrect")
	ErrPasswordTooLong    = errors.New("password too long")
)

// FieldTooLongError names an input that would not fit its column.
type FieldTooLongError struct {
	Field string
	Max   int
}

func (e *FieldTooLongError) Error() string {
	return fmt.Sprintf("%s longer than %d characters", e.Field, e.Max)
}

type fieldLimit struct {
	name  string
	value string
	max   int
}

func checkLengths(limits ...fieldLimit) error {
	for _, l := range limits {
		if utf8.RuneCountInString(l.value) > l.max {
			return &FieldTooLongError{Field: l.name, Max: l.max}
		}
	}
	return nil
}

func checkPassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return ErrWeakPassword
	}
	if len(password) > maxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}

func checkUserFields(in RegisterInput, email, username string) error {
	return checkLengths(
		fieldLimit{"First name", strings.TrimSpace(in.FirstName), maxNameLength},
		fieldLimit{"Last name", strings.TrimSpace(in.LastName), maxNameLength},
		fieldLimit{"Username", username, maxNameLength},
		fieldLimit{"Email", email, maxEmailLength},
		fieldLimit{"Phone", strings.TrimSpace(in.Phone), maxPhoneLength},
		fieldLimit{"Country", strings.TrimSpace(in.Country), maxCountryLength},
	)
}

type Options struct {
	BcryptCost      int
	VerificationTTL time.Duration
}

type Service struct {
	store     store.Store
	sender    CodeSender
	cost      int
	codeTTL   time.Duration
	dummyHash []byte
	now       func() time.Time
	log       *zap.Logger
}

func NewService(st store.Store, sender CodeSender, opts Options, log *zap.Logger) (*Service, error) {
	cost := opts.BcryptCost
	if cost == 0 {
		cost = 12
	}
	ttl := opts.VerificationTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	// Compared against for unknown emails so both failure paths cost one bcrypt run.
	dummy, err := bcrypt.GenerateFromPassword([]byte("swiftx-unknown-user"), cost)
	if err != nil {
		return nil, fmt.Errorf("dummy hash: %w", err)
	}
	if sender == nil {
		sender = NewLogSender(log)
	}
	return &Service{
		store:     st,
		sender:    sender,
		cost:      cost,
		codeTTL:   ttl,
		dummyHash: dummy,
		now:       func() time.Time { return time.Now().UTC() },
		log:       log,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func newVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

type RegisterInput struct {
	FirstName   string
	LastName    string
	Username    string
	Email       string
	Phone       string
	Country     string
	AccountType string
	Password    string
}

// Register creates the user, its profile and the seeded trading account in one
// transaction, then hands the verification code to the sender without waiting for it.
func (s *Service) Register(ctx context.Context, in RegisterInput) (int64, error) {
	email := normalizeEmail(in.Email)
	username := strings.TrimSpace(in.Username)
	if email == "" || username == "" || in.Password == "" {
		return 0, ErrMissingFields
	}
	if err := checkPassword(in.Password); err != nil {
		return 0, err
	}
	if err := checkUserFields(in, email, username); err != nil {
		return 0, err
	}
	accountType := types.AccountTypeDemo
	if strings.TrimSpace(in.AccountType) != "" {
		t, ok := types.ParseAccountType(in.AccountType)
		if !ok {
			return 0, ErrInvalidAccountType
		}
		accountType = t
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	code, err := newVerificationCode()
	if err != nil {
		return 0, fmt.Errorf("verification code: %w", err)
	}
	sentAt := s.now()

	u := model.User{
		FirstName:          strings.TrimSpace(in.FirstName),
		LastName:           strings.TrimSpace(in.LastName),
		Username:           username,
		Email:              email,
		Phone:              strings.TrimSpace(in.Phone),
		Country:            strings.TrimSpace(in.Country),
		PasswordHash:       string(hash),
		Role:               types.RoleUser,
		Status:             types.UserStatusPending,
		VerificationCode:   code,
		VerificationSentAt: &sentAt,
	}
	err = s.store.WithTx(ctx, func(tx store.Querier) error {
		taken, err := tx.EmailOrUsernameTaken(ctx, email, username, 0)
		if err != nil {
			return err
		}
		if taken {
			return ErrAlreadyInUse
		}
		if _, err := tx.CreateUser(ctx, &u); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return ErrAlreadyInUse
			}
			return err
		}
		if err := tx.CreateProfile(ctx, u.ID, accountType); err != nil {
			return err
		}
		_, err = accounts.EnsureAccountTx(ctx, tx, u.ID, accountType)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.log.Info("user registered", zap.Int64("user_id", u.ID), zap.String("account_type", string(accountType)))
	go s.deliverCode(u.Email, u.FirstName, code)
	return u.ID, nil
}

func (s *Service) deliverCode(email, firstName, code string) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := s.sender.SendVerificationCode(ctx, email, firstName, code); err != nil {
		s.log.Warn("verification code delivery failed", zap.String("email", email), zap.Error(err))
	}
}

func (s *Service) VerifyEmail(ctx context.Context, email, code string) error {
	u, err := s.store.UserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidRequest
		}
		return err
	}
	if u.Status != types.UserStatusPending || u.VerificationCode == "" {
		return ErrInvalidRequest
	}
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(code)), []byte(u.VerificationCode)) != 1 {
		return ErrInvalidCode
	}
	if u.VerificationSentAt == nil || s.now().After(u.VerificationSentAt.Add(s.codeTTL)) {
		return ErrCodeExpired
	}
	if err := s.store.ActivateUser(ctx, u.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidRequest
		}
		return err
	}
	return nil
}

// Identity is what a successful login binds to the session.
type Identity struct {
	User        model.User
	AccountType types.AccountType
}

// Login checks credentials. Unknown emails and wrong passwords fail identically and each
// records exactly one failure.
func (s *Service) Login(ctx context.Context, email, password, ip string) (Identity, error) {
	u, err := s.authenticate(ctx, normalizeEmail(email), password)
	if err != nil {
		return Identity{}, err
	}
	return s.bind(ctx, u, ip)
}

// AdminLogin is Login restricted to role admin.
func (s *Service) AdminLogin(ctx context.Context, email, password, ip string) (Identity, error) {
	u, err := s.authenticate(ctx, normalizeEmail(email), password)
	if err != nil {
		return Identity{}, err
	}
	if u.Role != types.RoleAdmin {
		return Identity{}, ErrNotAdmin
	}
	return s.bind(ctx, u, ip)
}

func (s *Service) authenticate(ctx context.Context, email, password string) (*model.User, error) {
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	u, err := s.store.UserByEmail(ctx, email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	hash := s.dummyHash
	if u != nil {
		hash = []byte(u.PasswordHash)
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil || u == nil {
		if err := s.store.RecordLoginFailure(ctx, email, s.now()); err != nil {
			return nil, fmt.Errorf("record login failure: %w", err)
		}
		return nil, ErrInvalidCredentials
	}
	if u.Status == types.UserStatusSuspended {
		return nil, ErrSuspended
	}
	return u, nil
}

func (s *Service) bind(ctx context.Context, u *model.User, ip string) (Identity, error) {
	accountType, err := s.store.LatestAccountType(ctx, u.ID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return Identity{}, err
		}
		accountType = types.AccountTypeDemo
	}
	err = s.store.WithTx(ctx, func(tx store.Querier) error {
		if _, err := accounts.EnsureAccountTx(ctx, tx, u.ID, accountType); err != nil {
			return err
		}
		return tx.RecordLoginSuccess(ctx, u.ID, ip, s.now())
	})
	if err != nil {
		return Identity{}, err
	}
	return Identity{User: *u, AccountType: accountType}, nil
}

func (s *Service) Profile(ctx context.Context, userID int64) (*model.User, error) {
	return s.store.UserByID(ctx, userID)
}

func (s *Service) UpdateProfile(ctx context.Context, userID int64, p model.ProfileUpdate) error {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.Email = normalizeEmail(p.Email)
	p.Phone = strings.TrimSpace(p.Phone)
	p.Country = strings.TrimSpace(p.Country)
	if p.Email == "" {
		return ErrMissingFields
	}
	if err := checkLengths(
		fieldLimit{"First name", p.FirstName, maxNameLength},
		fieldLimit{"Last name", p.LastName, maxNameLength},
		fieldLimit{"Email", p.Email, maxEmailLength},
		fieldLimit{"Phone", p.Phone, maxPhoneLength},
		fieldLimit{"Country", p.Country, maxCountryLength},
	); err != nil {
		return err
	}
	return s.store.WithTx(ctx, func(tx store.Querier) error {
		taken, err := tx.EmailOrUsernameTaken(ctx, p.Email, "", userID)
		if err != nil {
			return err
		}
		if taken {
			return ErrAlreadyInUse
		}
		if err := tx.UpdateUserProfile(ctx, userID, p); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return ErrAlreadyInUse
			}
			return err
		}
		return nil
	})
}

func (s *Service) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	if current == "" || next == "" {
		return ErrMissingFields
	}
	if err := checkPassword(next); err != nil {
		return err
	}
	u, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)) != nil {
		return ErrWrongPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.store.UpdatePasswordHash(ctx, userID, string(hash))
}

// CreateAdmin inserts an already verified admin with a demo account.
func (s *Service) CreateAdmin(ctx context.Context, in RegisterInput) (int64, error) {
	email := normalizeEmail(in.Email)
	username := strings.TrimSpace(in.Username)
	if email == "" || username == "" || in.Password == "" {
		return 0, ErrMissingFields
	}
	if err := checkPassword(in.Password); err != nil {
		return 0, err
	}
	if err := checkUserFields(in, email, username); err != nil {
		return 0, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	u := model.User{
		FirstName:     strings.TrimSpace(in.FirstName),
		LastName:      strings.TrimSpace(in.LastName),
		Username:      username,
		Email:         email,
		PasswordHash:  string(hash),
		Role:          types.RoleAdmin,
		Status:        types.UserStatusActive,
		EmailVerified: true,
	}
	err = s.store.WithTx(ctx, func(tx store.Querier) error {
		if _, err := tx.CreateUser(ctx, &u); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return ErrAlreadyInUse
			}
			return err
		}
		if err := tx.CreateProfile(ctx, u.ID, types.AccountTypeDemo); err != nil {
			return err
		}
		_, err := accounts.EnsureAccountTx(ctx, tx, u.ID, types.AccountTypeDemo)
		return err
	})
	if err != nil {
		return 0, err
	}
	return u.ID, nil
}
