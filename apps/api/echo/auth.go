package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorcenter/core"
	"github.com/trezcool/tutorcenter/core/attendance"
)

const (
	contextTokenKey = "userToken"
	tokenAudience   = "TutorCenter"
)

// Claims represents the authorization claims transmitted via a JWT.
// Tutors and students carry their entity ID as Subject.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64                 `json:"oriat,omitempty"`
	Name         string                `json:"name,omitempty"`
	EntityType   attendance.EntityType `json:"entity_type,omitempty"` // -> TUTOR | STUDENT PORTAL
	IsAdmin      bool                  `json:"is_admin,omitempty"`    // -> ADMIN PORTAL
}

// Entity returns the entity the claims were issued to. Used to tag logs.
func (c Claims) Entity() attendance.Entity {
	return attendance.Entity{ID: c.Subject, Type: c.EntityType, Name: c.Name}
}

// NewClaims returns claims for an entity token, or an admin token when typ is empty.
func NewClaims(conf *core.Config, subject, name string, typ attendance.EntityType, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   subject,
			Audience:  tokenAudience,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Name:         name,
		EntityType:   typ,
		IsAdmin:      typ == "",
	}
}

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func refreshToken(ctx echo.Context, conf *core.Config) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	newClaims := NewClaims(conf, claims.Subject, claims.Name, claims.EntityType, claims.OrigIssuedAt)
	token, err := GenerateToken(conf, newClaims)
	return token, errors.Wrap(err, "generating token")
}
