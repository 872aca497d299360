// Package middleware содержит HTTP middleware сервиса: аутентификацию, выбор организации,
// сжатие и журналирование запросов.
package middleware

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mmeshcher/pos-ledger/internal/model"
)

type contextKey string

const (
	identityKey contextKey = "identity"
	tenantKey   contextKey = "tenant"
)

const (
	bearerPrefix    = "Bearer "
	defaultTokenTTL = 24 * time.Hour
)

// tokenClaims содержит личность пользователя: Subject хранит его идентификатор.
type tokenClaims struct {
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

// AuthMiddleware выпускает и проверяет токены доступа JWT, подписанные HS256.
type AuthMiddleware struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware с указанным секретным ключом.
// При пустом ключе генерируется случайный, и токены не переживают перезапуск.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &AuthMiddleware{
		secretKey: key,
		ttl:       defaultTokenTTL,
		now:       time.Now,
	}
}

// IssueToken выпускает подписанный токен для личности пользователя.
func (a *AuthMiddleware) IssueToken(id model.Identity) (string, error) {
	now := a.now()
	claims := tokenClaims{
		Role: id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secretKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken проверяет подпись, алгоритм и срок действия токена.
func (a *AuthMiddleware) ParseToken(token string) (model.Identity, bool) {
	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return a.secretKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !parsed.Valid {
		return model.Identity{}, false
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return model.Identity{}, false
	}
	return model.Identity{UserID: userID, Role: claims.Role}, true
}

// Middleware проверяет заголовок Authorization и добавляет личность пользователя в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			writeError(w, http.StatusUnauthorized, "authorization required")
			return
		}

		id, ok := a.ParseToken(strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix)))
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// WithIdentity кладёт личность пользователя в контекст.
func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext извлекает личность пользователя из контекста запроса.
func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(identityKey).(model.Identity)
	return id, ok
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
