package users

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/bookline/bookline/pkg/logging"
)

// Service implements account registration, sessions and profile updates.
type Service struct {
	repo     Repository
	secret   string
	tokenTTL time.Duration
	logger   *logging.Logger
}

// NewService constructs a user service. secret signs session tokens.
func NewService(repo Repository, secret string, tokenTTL time.Duration, logger *logging.Logger) *Service {
	if repo == nil {
		panic("users: repository required")
	}
	if tokenTTL <= 0 {
		tokenTTL = 7 * 24 * time.Hour
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, secret: secret, tokenTTL: tokenTTL, logger: logger}
}

// RegisterInput carries the fields accepted at signup.
type RegisterInput struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	AvatarURL string `json:"avatar_url"`
	Provider  bool   `json:"provider"`
}

// Register creates an account with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("users: hash password: %w", err)
	}
	u, err := s.repo.Create(ctx, &User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		AvatarURL:    in.AvatarURL,
		Provider:     in.Provider,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("user registered", "user_id", u.ID, "provider", u.Provider)
	return u, nil
}

// Login verifies credentials and issues a signed session token.
func (s *Service) Login(ctx context.Context, email, password string) (*User, string, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrWrongPassword
	}
	token, err := s.issueToken(u.ID)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// UpdateInput carries profile changes; zero-valued fields are left as-is.
// Changing the password requires the current one.
type UpdateInput struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	AvatarURL   string `json:"avatar_url"`
	OldPassword string `json:"old_password"`
	Password    string `json:"password"`
}

// Update applies profile changes for the authenticated user.
func (s *Service) Update(ctx context.Context, userID int64, in UpdateInput) (*User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.Name != "" {
		u.Name = in.Name
	}
	if in.Email != "" {
		u.Email = in.Email
	}
	if in.AvatarURL != "" {
		u.AvatarURL = in.AvatarURL
	}
	if in.Password != "" {
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.OldPassword)) != nil {
			return nil, ErrWrongPassword
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("users: hash password: %w", err)
		}
		u.PasswordHash = string(hash)
	}
	return s.repo.Update(ctx, u)
}

// Providers lists the bookable accounts.
func (s *Service) Providers(ctx context.Context) ([]Profile, error) {
	rows, err := s.repo.ListProviders(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Profile, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].PublicProfile())
	}
	return out, nil
}

func (s *Service) issueToken(userID int64) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.secret))
	if err != nil {
		return "", fmt.Errorf("users: sign token: %w", err)
	}
	return token, nil
}
