package game

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/20XMAS24/RAGEMP-NewServer/internal/entity"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims identify an authenticated player.
type Claims struct {
	jwt.RegisteredClaims
	PlayerID   uint   `json:"uid"`
	Username   string `json:"username"`
	AdminLevel int    `json:"adm,omitempty"`
}

// TokenIssuer signs and parses HS256 session tokens.
type TokenIssuer struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(signingKey string, issuer string, ttl time.Duration, now func() time.Time) (*TokenIssuer, error) {
	switch {
	case signingKey == "":
		return nil, fmt.Errorf("%w: signing key is empty", ErrInvalidConfig)
	case ttl <= 0:
		return nil, fmt.Errorf("%w: token ttl must be positive", ErrInvalidConfig)
	case now == nil:
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidConfig)
	}
	return &TokenIssuer{key: []byte(signingKey), issuer: issuer, ttl: ttl, now: now}, nil
}

// Issue returns a signed token for player and its expiry.
func (issuer *TokenIssuer) Issue(player entity.Player) (string, time.Time, error) {
	issuedAt := issuer.now()
	expiresAt := issuedAt.Add(issuer.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer.issuer,
			Subject:   strconv.FormatUint(uint64(player.ID), 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		PlayerID:   player.ID,
		Username:   player.Username,
		AdminLevel: player.AdminLevel,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(issuer.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies signature, issuer and expiry.
func (issuer *TokenIssuer) Parse(raw string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (interface{}, error) {
		return issuer.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(issuer.now),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.PlayerID == 0 {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
