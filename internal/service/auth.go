// Package service contains business-logic orchestration between the
// HTTP handlers and the stores.
package service

import (
	"fmt"
	"time"

	"github.com/naywayne90/sygfp-go/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuthService mints and validates role-scoped access tokens. There is
// no interactive login here: identity federation belongs to the SPA's
// auth provider, the API only verifies claims.
type AuthService struct {
	jwtSecret []byte
	accessTTL time.Duration
	logger    *zap.Logger
}

// NewAuthService creates the auth service.
func NewAuthService(jwtSecret string, accessTTL time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		jwtSecret: []byte(jwtSecret),
		accessTTL: accessTTL,
		logger:    logger,
	}
}

// JWTClaims represents the custom claims in access tokens.
type JWTClaims struct {
	Sub         string   `json:"sub"`
	Roles       []string `json:"roles"`
	DirectionID string   `json:"direction_id,omitempty"`
	Type        string   `json:"type"`
	jwt.RegisteredClaims
}

// MintToken issues an HS256 access token carrying the given roles.
// Exposed through the dev token endpoint only.
func (s *AuthService) MintToken(req *domain.TokenRequest) (*domain.TokenResponse, error) {
	if len(req.Roles) == 0 {
		return nil, &domain.ErrValidation{Field: "roles", Message: "au moins un rôle requis"}
	}
	userID := req.UserID
	if userID == "" {
		userID = uuid.NewString()
	}

	roles := make([]string, 0, len(req.Roles))
	for _, r := range req.Roles {
		roles = append(roles, string(r))
	}

	now := time.Now()
	claims := JWTClaims{
		Sub:         userID,
		Roles:       roles,
		DirectionID: req.DirectionID,
		Type:        "access",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			Issuer:    "sygfp-api",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	s.logger.Info("dev token minted",
		zap.String("user_id", userID),
		zap.Strings("roles", roles),
	)

	return &domain.TokenResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.accessTTL.Seconds()),
	}, nil
}

// ValidateAccessToken parses and verifies a token, returning the actor
// it represents. Used by the auth middleware.
func (s *AuthService) ValidateAccessToken(tokenString string) (*domain.Actor, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "Token invalide ou expiré"}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "Token invalide"}
	}
	if claims.Type != "access" {
		return nil, &domain.ErrUnauthorized{Message: "Type de token invalide"}
	}

	roles := make([]domain.Role, 0, len(claims.Roles))
	for _, r := range claims.Roles {
		roles = append(roles, domain.Role(r))
	}

	return &domain.Actor{
		UserID:      claims.Sub,
		Roles:       roles,
		DirectionID: claims.DirectionID,
	}, nil
}
