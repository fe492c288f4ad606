package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ctxProjectID = "projectId"
	ctxUserID    = "userId"
)

// Claims dos tokens de probes e usuários. Todo token é preso a um projeto.
type Claims struct {
	ProjectID string `json:"projectId"`
	UserID    string `json:"uid,omitempty"`
	jwt.RegisteredClaims
}

func IssueToken(secret []byte, projectID, userID string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		ProjectID: projectID,
		UserID:    userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   projectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func ParseToken(secret []byte, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.ProjectID == "" {
		return nil, errors.New("token has no project")
	}
	return claims, nil
}

// Auth exige "Authorization: Bearer <jwt>" e guarda projeto e usuário no
// contexto do gin.
func Auth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenStr, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": http.StatusUnauthorized, "message": "missing bearer token"})
			return
		}
		claims, err := ParseToken(secret, tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": http.StatusUnauthorized, "message": "invalid token"})
			return
		}
		c.Set(ctxProjectID, claims.ProjectID)
		c.Set(ctxUserID, claims.UserID)
		c.Next()
	}
}

func ProjectID(c *gin.Context) string { return c.GetString(ctxProjectID) }

func UserID(c *gin.Context) string { return c.GetString(ctxUserID) }
