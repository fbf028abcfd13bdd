package user

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eleven-am/todoapi/internal/auth"
	"github.com/eleven-am/todoapi/internal/logger"
	"github.com/eleven-am/todoapi/internal/model"
	"github.com/eleven-am/todoapi/internal/orm"
	"github.com/eleven-am/todoapi/internal/storage"
)

var (
	ErrDuplicatedEmail    = errors.New("email is already registered")
	ErrNotEligible        = errors.New("only COMMON users can be promoted")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrMissingArguments   = errors.New("email, password and user name are required")
	ErrProfileNotFound    = errors.New("profile image not found")
)

// Directory is the persistence behind the user service.
// Lookups that match nothing return an error satisfying orm.IsNotFound.
type Directory interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Save(ctx context.Context, user *model.User) error
	// SetRole moves a user from one role to another, failing with orm.ErrNotFound
	// when the user no longer holds from
	SetRole(ctx context.Context, id string, from, to model.Role) error
}

// TokenIssuer mints identity tokens
type TokenIssuer interface {
	Issue(p auth.Principal) (*auth.Token, error)
}

// CredentialStore hashes and checks passwords
type CredentialStore interface {
	Hash(ctx context.Context, password string) (string, error)
	Verify(hash, password string) bool
}

// SignUpRequest carries the fields of a new account
type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	UserName string `json:"userName"`
}

// SignUpResponse is returned after a successful sign up
type SignUpResponse struct {
	Email    string    `json:"email"`
	UserName string    `json:"userName"`
	JoinDate time.Time `json:"joinDate"`
}

// LoginResponse is returned after authentication or promotion
type LoginResponse struct {
	Email    string     `json:"email"`
	UserName string     `json:"userName"`
	Role     model.Role `json:"role"`
	Token    string     `json:"token"`
}

// Service implements sign up, login, promotion and profile images
type Service struct {
	users       Directory
	tokens      TokenIssuer
	credentials CredentialStore
	objects     storage.Store
	log         logger.Logger
	now         func() time.Time
}

// NewService wires the user service to its collaborators
func NewService(users Directory, tokens TokenIssuer, credentials CredentialStore, objects storage.Store) *Service {
	return &Service{
		users:       users,
		tokens:      tokens,
		credentials: credentials,
		objects:     objects,
		log:         logger.User(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp registers a new COMMON user. profileKey may be empty.
func (s *Service) SignUp(ctx context.Context, req *SignUpRequest, profileKey string) (*SignUpResponse, error) {
	if req == nil {
		return nil, ErrMissingArguments
	}

	email := normalizeEmail(req.Email)
	userName := strings.TrimSpace(req.UserName)
	if email == "" || req.Password == "" || userName == "" {
		return nil, ErrMissingArguments
	}

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		s.log.Warnf("Duplicated email on sign up: %s", email)
		return nil, ErrDuplicatedEmail
	}

	hash, err := s.credentials.Hash(ctx, req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:        uuid.NewString(),
		Email:     email,
		Password:  hash,
		UserName:  userName,
		Role:      model.RoleCommon,
		CreatedAt: s.now(),
	}
	if profileKey != "" {
		user.ProfileImage = &profileKey
	}

	if err := s.users.Save(ctx, user); err != nil {
		if errors.Is(err, orm.ErrDuplicateKey) {
			return nil, ErrDuplicatedEmail
		}
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	s.log.WithField("user", user.ID).Infof("User signed up: %s", email)

	return &SignUpResponse{
		Email:    user.Email,
		UserName: user.UserName,
		JoinDate: user.CreatedAt,
	}, nil
}

// IsDuplicateEmail reports whether email is already registered
func (s *Service) IsDuplicateEmail(ctx context.Context, email string) (bool, error) {
	return s.users.ExistsByEmail(ctx, normalizeEmail(email))
}

// Authenticate checks credentials and issues a token
func (s *Service) Authenticate(ctx context.Context, email, password string) (*LoginResponse, error) {
	user, err := s.find(ctx, email)
	if err != nil {
		return nil, err
	}

	if !s.credentials.Verify(user.Password, password) {
		s.log.Warnf("Failed login for %s", user.Email)
		return nil, ErrInvalidCredentials
	}

	return s.login(user)
}

// Promote upgrades a COMMON user to PREMIUM and reissues their token
func (s *Service) Promote(ctx context.Context, email string) (*LoginResponse, error) {
	user, err := s.find(ctx, email)
	if err != nil {
		return nil, err
	}

	if user.Role != model.RoleCommon {
		return nil, ErrNotEligible
	}

	if err := s.users.SetRole(ctx, user.ID, model.RoleCommon, model.RolePremium); err != nil {
		if orm.IsNotFound(err) {
			return nil, ErrNotEligible
		}
		return nil, fmt.Errorf("failed to promote user: %w", err)
	}
	user.Role = model.RolePremium

	s.log.Infof("User promoted to %s: %s", user.Role, user.Email)
	return s.login(user)
}

// UploadProfileImage stores data under a fresh key derived from originalName and returns the key
func (s *Service) UploadProfileImage(ctx context.Context, data []byte, originalName string) (string, error) {
	key := storage.NewKey(originalName)
	if err := s.objects.Put(ctx, key, data, http.DetectContentType(data)); err != nil {
		return "", fmt.Errorf("failed to upload profile image: %w", err)
	}
	return key, nil
}

// LoadProfileImage opens the profile image of the user with email.
// The caller must close the returned reader.
func (s *Service) LoadProfileImage(ctx context.Context, email string) (io.ReadCloser, string, error) {
	user, err := s.find(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if user.ProfileImage == nil || *user.ProfileImage == "" {
		return nil, "", ErrProfileNotFound
	}

	rc, err := s.objects.Open(ctx, *user.ProfileImage)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, "", ErrProfileNotFound
		}
		return nil, "", err
	}
	return rc, *user.ProfileImage, nil
}

func (s *Service) find(ctx context.Context, email string) (*model.User, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if orm.IsNotFound(err) {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

func (s *Service) login(user *model.User) (*LoginResponse, error) {
	token, err := s.tokens.Issue(auth.Principal{
		ID:    user.ID,
		Email: user.Email,
		Role:  user.Role,
	})
	if err != nil {
		return nil, err
	}

	return &LoginResponse{
		Email:    user.Email,
		UserName: user.UserName,
		Role:     user.Role,
		Token:    token.Value,
	}, nil
}
