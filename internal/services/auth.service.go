package services

import (
	"context"
	"errors"
	"time"

	"turnover/internal/clock"
	"turnover/internal/models"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TOKEN_ISSUER      = "turnover"
	DefaultSessionTTL = 12 * time.Hour
	developmentSecret = "turnover-development-secret"
)

var ErrInvalidToken = errors.New("invalid token")

type SessionClaims struct {
	jwt.RegisteredClaims
	Name string      `json:"name,omitempty"`
	Role models.Role `json:"role,omitempty"`
}

// AuthService signs and verifies the HS256 bearer tokens used by the API and
// the websocket handshake. The subject is the team member id; role and name
// are informational and always reloaded from the team member row.
type AuthService struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
	log    logger.Logger
}

func NewAuthService(secret string, ttl time.Duration, clk clock.Clock) *AuthService {
	if secret == "" {
		secret = developmentSecret
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	return &AuthService{
		secret: []byte(secret),
		ttl:    ttl,
		clock:  clk,
		log:    logger.New("AuthService"),
	}
}

func (s *AuthService) IssueToken(member *models.TeamMember) (string, error) {
	log := s.log.Function("IssueToken")

	now := s.clock.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TOKEN_ISSUER,
			Subject:   member.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
		Name: member.Name,
		Role: member.Role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", log.Err("failed to sign token", err, "teamMemberID", member.ID)
	}

	return signed, nil
}

// ValidateToken verifies signature, issuer and expiry and returns the team
// member id carried in the subject.
func (s *AuthService) ValidateToken(ctx context.Context, raw string) (uuid.UUID, error) {
	log := s.log.TraceFromContext(ctx).Function("ValidateToken")

	var claims SessionClaims
	token, err := jwt.ParseWithClaims(
		raw,
		&claims,
		func(token *jwt.Token) (any, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TOKEN_ISSUER),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil || !token.Valid {
		log.Debug("token rejected", "error", err)
		return uuid.Nil, ErrInvalidToken
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		log.Debug("token subject is not a team member id", "subject", claims.Subject)
		return uuid.Nil, ErrInvalidToken
	}

	return id, nil
}
