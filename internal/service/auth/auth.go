// Package auth validates access tokens issued by the external identity
// service. Registration, login and refresh live over there; this engine
// only needs to know which user a request belongs to.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/aslakhn/chargebill/internal/models"
	"github.com/aslakhn/chargebill/internal/repository"
)

const (
	defaultSigningMethod  = "HS256"
	defaultAccessTokenTTL = 15 * time.Minute
)

type AccessTokenClaims struct {
	jwt.RegisteredClaims
	UserID uuid.UUID `json:"uid"`
}

type Service struct {
	// Secret key shared with the identity service
	key string

	// JWT MAC (Message Authentication Code) algorithm
	alg jwt.SigningMethod

	userRepo repository.UserRepo
}

func NewService(secretKey string, userRepo repository.UserRepo) (*Service, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("secret key must not be empty")
	}

	return &Service{
		key:      secretKey,
		alg:      jwt.GetSigningMethod(defaultSigningMethod),
		userRepo: userRepo,
	}, nil
}

// Auth resolves the request's bearer token to a user
func (s *Service) Auth(ctx context.Context, r *http.Request) (models.User, error) {
	var user models.User

	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return user, fmt.Errorf("no bearer token in request")
	}

	userID, err := s.ParseAccess(token)
	if err != nil {
		return user, err
	}

	return s.userRepo.GetUserByID(ctx, userID)
}

// Parse and validate access token
func (s *Service) ParseAccess(access string) (userID uuid.UUID, err error) {
	claims := &AccessTokenClaims{}

	_, err = jwt.ParseWithClaims(
		access,
		claims,
		func(t *jwt.Token) (any, error) {
			return []byte(s.key), nil
		},
		jwt.WithValidMethods([]string{s.alg.Alg()}),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("error while parsing or validating token. Err: %w", err)
	}

	return claims.UserID, nil
}

// IssueAccess mints a token the same way the identity service does.
// Exists for local development and tests; production tokens come from
// the identity service itself.
func (s *Service) IssueAccess(userID uuid.UUID, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = defaultAccessTokenTTL
	}
	now := time.Now().Truncate(time.Second)

	token := jwt.NewWithClaims(
		s.alg,
		AccessTokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			},
			UserID: userID,
		},
	)

	access, err := token.SignedString([]byte(s.key))
	if err != nil {
		return "", fmt.Errorf("error while signing access token. Err: %w", err)
	}

	return access, nil
}
