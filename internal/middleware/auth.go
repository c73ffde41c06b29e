package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lshigami/PlacementPrep/config"
	"github.com/lshigami/PlacementPrep/internal/apperr"
	"github.com/lshigami/PlacementPrep/internal/dto"
	"github.com/lshigami/PlacementPrep/internal/model"
	"github.com/lshigami/PlacementPrep/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const currentUserKey = "current_user"

// AuthMiddleware resolves the bearer token to a stored user. Tokens are HS256
// with the user id in the subject claim.
type AuthMiddleware struct {
	secret []byte
	users  repository.UserRepository
}

func NewAuthMiddleware(cfg *config.Config, users repository.UserRepository) *AuthMiddleware {
	if cfg.Auth.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET is empty, every authenticated request will be rejected")
	}
	return &AuthMiddleware{secret: []byte(cfg.Auth.JWTSecret), users: users}
}

// IssueToken signs a token for userID valid for ttl.
func IssueToken(secret string, userID uint, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" || len(m.secret) == 0 {
			abortUnauthorized(c, "missing or invalid token")
			return
		}

		userID, err := m.parseSubject(tokenString)
		if err != nil {
			log.Debug().Err(err).Msg("Rejected bearer token")
			abortUnauthorized(c, "missing or invalid token")
			return
		}

		user, err := m.users.FindByID(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				abortUnauthorized(c, "unknown user")
				return
			}
			log.Error().Err(err).Uint("userID", userID).Msg("Failed to load user for token")
			c.AbortWithStatusJSON(http.StatusInternalServerError, dto.ErrorResponse{
				Code:    apperr.CodeInternal,
				Message: "failed to load user",
			})
			return
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			abortUnauthorized(c, "missing or invalid token")
			return
		}
		if !user.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, dto.ErrorResponse{
				Code:    apperr.CodeForbidden,
				Message: "admin access required",
			})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the user attached by RequireAuth, or nil.
func CurrentUser(c *gin.Context) *model.User {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*model.User)
	return user
}

// SetCurrentUser attaches user to the request context.
func SetCurrentUser(c *gin.Context, user *model.User) {
	c.Set(currentUserKey, user)
}

func (m *AuthMiddleware) parseSubject(tokenString string) (uint, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid subject claim")
	}
	return uint(id), nil
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{
		Code:    apperr.CodeUnauthorized,
		Message: msg,
	})
}
