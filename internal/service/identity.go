package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/simmer-app/backend/internal/apperror"
	"github.com/simmer-app/backend/internal/model"
)

// TokenService verifies bearer tokens issued by the external identity
// provider. We only extract the subject; everything else about the auth flow
// lives outside this service.
type TokenService struct {
	jwtSecret string
}

func NewTokenService(jwtSecret string) *TokenService {
	return &TokenService{jwtSecret: jwtSecret}
}

// VerifySubject validates the token signature and returns the subject
// identifier.
func (s *TokenService) VerifySubject(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return "", apperror.Wrap(apperror.KindAuthentication, "invalid token", err)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || strings.TrimSpace(subject) == "" {
		return "", apperror.New(apperror.KindAuthentication, "token has no subject")
	}

	return subject, nil
}

// IdentityService maps external auth subjects to internal owner identifiers,
// creating the mapping on first use.
type IdentityService struct {
	db *gorm.DB
}

func NewIdentityService(db *gorm.DB) *IdentityService {
	return &IdentityService{db: db}
}

// ResolveOwner returns the internal owner id for an auth subject. Unknown
// subjects get a fresh account row; a concurrent first use resolves through
// the unique index on subject.
func (s *IdentityService) ResolveOwner(ctx context.Context, subject string) (uuid.UUID, error) {
	var account model.UserAccount
	err := s.db.WithContext(ctx).
		Where(model.UserAccount{Subject: subject}).
		FirstOrCreate(&account).Error
	if err != nil {
		// Lost a race against another first use of the same subject.
		if ferr := s.db.WithContext(ctx).Where("subject = ?", subject).First(&account).Error; ferr == nil {
			return account.ID, nil
		}
		return uuid.Nil, fmt.Errorf("failed to resolve owner for subject: %w", err)
	}
	return account.ID, nil
}
