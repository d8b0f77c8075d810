package security

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// SecurityConfig holds security configuration
type SecurityConfig struct {
	MaxDeckNameLength int           `json:"max_deck_name_length"`
	MaxDeckTextBytes  int           `json:"max_deck_text_bytes"`
	AllowedOrigins    []string      `json:"allowed_origins"`
	TrustedProxies    []string      `json:"trusted_proxies"`
	RequestTimeout    time.Duration `json:"request_timeout"`

	// AdminJWTSecret signs and verifies tokens for the admin endpoints.
	// Empty disables admin routes entirely.
	AdminJWTSecret string `json:"-"`
}

// DefaultSecurityConfig returns secure defaults
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		MaxDeckNameLength: 120,
		MaxDeckTextBytes:  512 * 1024,
		AllowedOrigins:    []string{"http://localhost:3000", "http://localhost:5173"},
		TrustedProxies:    []string{"127.0.0.1", "::1", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"},
		RequestTimeout:    30 * time.Second,
	}
}

// SecurityMiddleware provides input validation and admin authentication
type SecurityMiddleware struct {
	config SecurityConfig
}

// NewSecurityMiddleware creates a new security middleware instance
func NewSecurityMiddleware(config SecurityConfig) *SecurityMiddleware {
	return &SecurityMiddleware{config: config}
}

// Config returns the active security configuration
func (sm *SecurityMiddleware) Config() SecurityConfig {
	return sm.config
}

// deckNamePattern keeps deck names filesystem- and URL-safe: word
// characters, dots, dashes and spaces, nothing else.
var deckNamePattern = regexp.MustCompile(`^[\w][\w .-]*$`)

// ValidateDeckName validates a history key supplied by the client
func (sm *SecurityMiddleware) ValidateDeckName(name string) error {
	if name == "" {
		return fmt.Errorf("deck name is empty")
	}
	if len(name) > sm.config.MaxDeckNameLength {
		return fmt.Errorf("deck name exceeds maximum length of %d characters", sm.config.MaxDeckNameLength)
	}
	if strings.Contains(name, "\x00") {
		return fmt.Errorf("deck name contains invalid characters")
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("deck name contains invalid UTF-8 encoding")
	}
	if !deckNamePattern.MatchString(name) {
		return fmt.Errorf("deck name contains unsupported characters")
	}
	return nil
}

// ValidateDeckText validates raw deck text before it is sent to the
// model: size-bounded, valid UTF-8, no null bytes.
func (sm *SecurityMiddleware) ValidateDeckText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("deck text is empty")
	}
	if len(text) > sm.config.MaxDeckTextBytes {
		return fmt.Errorf("deck text exceeds maximum size of %d bytes", sm.config.MaxDeckTextBytes)
	}
	if strings.Contains(text, "\x00") {
		return fmt.Errorf("deck text contains invalid characters")
	}
	if !utf8.ValidString(text) {
		return fmt.Errorf("deck text contains invalid UTF-8 encoding")
	}
	return nil
}

var (
	scriptPattern  = regexp.MustCompile(`(?i)<script[^>]*>.*?</script>`)
	htmlTagPattern = regexp.MustCompile(`<[^>]+>`)
	spacePattern   = regexp.MustCompile(`\s+`)
)

// SanitizeText strips markup and collapses whitespace in free-text
// fields that end up in reports and logs
func (sm *SecurityMiddleware) SanitizeText(input string) string {
	input = strings.TrimSpace(input)
	input = scriptPattern.ReplaceAllString(input, "")
	input = htmlTagPattern.ReplaceAllString(input, "")
	input = spacePattern.ReplaceAllString(input, " ")
	return input
}

// ValidateContentType validates request content type
func (sm *SecurityMiddleware) ValidateContentType(c *gin.Context) {
	contentType := c.GetHeader("Content-Type")

	allowedTypes := []string{
		"application/json",
		"application/x-www-form-urlencoded",
		"multipart/form-data",
	}

	if contentType != "" {
		found := false
		for _, allowed := range allowedTypes {
			if strings.Contains(strings.ToLower(contentType), allowed) {
				found = true
				break
			}
		}

		if !found {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{
				"error": "unsupported content type",
			})
			c.Abort()
			return
		}
	}

	c.Next()
}

// RequestTimeout enforces request timeout
func (sm *SecurityMiddleware) RequestTimeout(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), sm.config.RequestTimeout)
	defer cancel()

	c.Request = c.Request.WithContext(ctx)

	c.Header("X-Timeout", strconv.Itoa(int(sm.config.RequestTimeout.Seconds())))

	c.Next()
}

const adminTokenIssuer = "ir-deck-meter"

// AdminClaims are the JWT claims carried by admin tokens
type AdminClaims struct {
	Subject string `json:"sub_name,omitempty"`
	jwt.RegisteredClaims
}

// GenerateAdminToken issues a short-lived admin token. Used by the ops
// tooling and by tests.
func (sm *SecurityMiddleware) GenerateAdminToken(subject string, ttl time.Duration) (string, error) {
	if sm.config.AdminJWTSecret == "" {
		return "", fmt.Errorf("admin JWT secret not configured")
	}

	now := time.Now()
	claims := AdminClaims{
		Subject: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    adminTokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(sm.config.AdminJWTSecret))
}

// AdminAuth guards admin endpoints with a bearer JWT. Disabled secret
// means admin routes always answer 404-equivalent denial.
func (sm *SecurityMiddleware) AdminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if sm.config.AdminJWTSecret == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "admin access is not configured"})
			c.Abort()
			return
		}

		auth := c.GetHeader("Authorization")
		tokenString, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			c.Abort()
			return
		}

		claims := &AdminClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(sm.config.AdminJWTSecret), nil
		}, jwt.WithIssuer(adminTokenIssuer), jwt.WithExpirationRequired())

		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set("admin_subject", claims.Subject)
		c.Next()
	}
}
