package auth

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
)

// ErrBadCredentials is returned for an unknown user or wrong password.
var ErrBadCredentials = errors.New("bad credentials")

// Service authenticates the single configured operator.
type Service struct {
	username     string
	passwordHash string
	jwt          *JWTManager
}

// NewService creates a Service for one operator account. The password
// is stored hashed only.
func NewService(username, password, jwtSecret string) (*Service, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return &Service{
		username:     username,
		passwordHash: hash,
		jwt:          NewJWTManager(jwtSecret, 0),
	}, nil
}

// Login verifies credentials and returns a bearer token.
func (s *Service) Login(username, password string) (string, error) {
	if username != s.username || !VerifyPassword(password, s.passwordHash) {
		return "", ErrBadCredentials
	}
	return s.jwt.GenerateToken(username)
}

// Middleware rejects requests without a valid bearer token.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(401, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := s.jwt.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(401, gin.H{"error": err.Error()})
			return
		}
		c.Set("username", claims.Username)
		c.Next()
	}
}
