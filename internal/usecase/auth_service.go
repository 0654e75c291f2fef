package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/kihuni/Hoodie-Hub/internal/domain"
	"github.com/kihuni/Hoodie-Hub/internal/logging"
)

type UserRepo interface {
	PutUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, bool)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, bool)
}

const tokenTTL = 7 * 24 * time.Hour

type AuthService struct {
	Users  UserRepo
	Carts  *CartService
	Secret string
}

func NewAuthService(users UserRepo, carts *CartService, secret string) *AuthService {
	return &AuthService{Users: users, Carts: carts, Secret: secret}
}

func (s *AuthService) Register(ctx context.Context, username, email, password, phone string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrBadRequest("username and password are required")
	}
	if len(password) < 8 {
		return nil, ErrBadRequest("password must be at least 8 characters")
	}
	if _, exists := s.Users.GetUserByUsername(ctx, username); exists {
		return nil, ErrConflict("username already taken")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	u := &domain.User{
		UserID:       uuid.NewString(),
		Username:     username,
		Email:        strings.TrimSpace(email),
		PasswordHash: string(hash),
		PhoneNumber:  strings.TrimSpace(phone),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Users.PutUser(ctx, u); err != nil {
		return nil, fmt.Errorf("store user: %w", err)
	}
	logging.Log(logging.Event{Component: "auth", Step: "register", Status: "created", Message: username})
	return u, nil
}

// Login verifies credentials, merges the caller's anonymous cart into their
// user cart, and issues a signed token.
func (s *AuthService) Login(ctx context.Context, username, password, sessionKey string) (string, *domain.User, error) {
	u, ok := s.Users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if !ok {
		return "", nil, ErrBadRequest("invalid username or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrBadRequest("invalid username or password")
	}
	if sessionKey != "" && s.Carts != nil {
		target := domain.CartRef{UserID: u.UserID}
		source := domain.CartRef{SessionKey: sessionKey}
		if err := s.Carts.MergeInto(ctx, target, source); err != nil {
			logging.Log(logging.Event{Component: "auth", Step: "cart_merge", Status: "error", Error: err.Error()})
		}
	}
	token, err := s.issueToken(u)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

// Logout hands the user's cart to a fresh anonymous session so the browser
// keeps its contents after the token is discarded.
func (s *AuthService) Logout(ctx context.Context, userID string) (string, error) {
	sessionKey := uuid.NewString()
	if s.Carts != nil {
		target := domain.CartRef{SessionKey: sessionKey}
		source := domain.CartRef{UserID: userID}
		if err := s.Carts.MergeInto(ctx, target, source); err != nil {
			return "", fmt.Errorf("split cart: %w", err)
		}
	}
	return sessionKey, nil
}

func (s *AuthService) issueToken(u *domain.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  u.UserID,
		"username": u.Username,
		"exp":      time.Now().Add(tokenTTL).Unix(),
		"iat":      time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify validates a bearer token and returns the user it names.
func (s *AuthService) Verify(ctx context.Context, tokenString string) (*domain.User, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrBadRequest("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrBadRequest("invalid token claims")
	}
	userID, _ := claims["user_id"].(string)
	u, found := s.Users.GetUser(ctx, userID)
	if !found {
		return nil, ErrNotFound("user")
	}
	return u, nil
}
