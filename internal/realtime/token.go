package realtime

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"podcastflow/internal/services"
)

const tokenAudience = "realtime"

// Claims scope a subscription token to one channel and a topic family set.
type Claims struct {
	Channel string   `json:"channel"`
	Topics  []string `json:"topics"`
	jwt.RegisteredClaims
}

// Allows reports whether the token grants topic on channel.
func (c *Claims) Allows(channel, topic string) bool {
	if c == nil || channel != c.Channel {
		return false
	}
	family := TopicFamily(topic)
	return family != "" && slices.Contains(c.Topics, family)
}

// Token is an issued subscription token.
type Token struct {
	Token     string    `json:"token"`
	Channel   string    `json:"channel"`
	Topics    []string  `json:"topics"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// TokenIssuer signs and verifies HS256 subscription tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewTokenIssuer validates the secret and returns an issuer.
func NewTokenIssuer(secret string, ttl time.Duration, issuer string) (*TokenIssuer, error) {
	if len(strings.TrimSpace(secret)) < 16 {
		return nil, services.Wrap(services.ErrConfiguration, "realtime", "token issuer", "secret must be at least 16 characters", nil)
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, issuer: issuer, now: time.Now}, nil
}

// Issue signs a token letting userID subscribe to the project's channel.
// Ownership must be checked by the caller.
func (i *TokenIssuer) Issue(userID, projectID string) (Token, error) {
	if strings.TrimSpace(userID) == "" {
		return Token{}, services.Wrap(services.ErrUnauthorized, "realtime", "issue token", "user id is required", nil)
	}
	if strings.TrimSpace(projectID) == "" {
		return Token{}, services.Wrap(services.ErrValidation, "realtime", "issue token", "project id is required", nil)
	}
	now := i.now()
	expires := now.Add(i.ttl)
	claims := &Claims{
		Channel: ChannelFor(projectID),
		Topics:  DefaultTopics(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return Token{}, fmt.Errorf("realtime: sign token: %w", err)
	}
	return Token{Token: signed, Channel: claims.Channel, Topics: claims.Topics, ExpiresAt: expires.UTC()}, nil
}

// Verify parses raw and returns its claims. Any failure is ErrUnauthorized.
func (i *TokenIssuer) Verify(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, services.Wrap(services.ErrUnauthorized, "realtime", "verify token", "token is required", nil)
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		return nil, services.Wrap(services.ErrUnauthorized, "realtime", "verify token", "", err)
	}
	if !token.Valid {
		return nil, services.Wrap(services.ErrUnauthorized, "realtime", "verify token", "invalid token", nil)
	}
	if _, ok := ProjectFromChannel(claims.Channel); !ok {
		return nil, services.Wrap(services.ErrUnauthorized, "realtime", "verify token", "token has no project channel", errors.New(claims.Channel))
	}
	return claims, nil
}
