package middleware

import (
	"encoding/hex"
	"net/http"
	"strings"

	"agro-booking/internal/data/entity"
	"agro-booking/internal/data/repository"
	"agro-booking/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

// HashToken returns the digest stored for a bearer token. Raw tokens are never persisted.
func HashToken(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// AuthSession middleware untuk validasi bearer session token
func AuthSession(sessionRepo repository.SessionRepository, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Extract token
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.ResponseUnauthorized(w, "Missing authorization token")
				return
			}

			scheme, token, found := strings.Cut(authHeader, " ")
			token = strings.TrimSpace(token)
			if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
				utils.ResponseUnauthorized(w, "Invalid token format. Use: Bearer <token>")
				return
			}

			tokenHash := HashToken(token)

			// Find valid session
			session, err := sessionRepo.FindValidSession(r.Context(), tokenHash)
			if err != nil {
				logger.Error("Failed to validate session", zap.Error(err))
				utils.ResponseInternalError(w, "Internal server error")
				return
			}

			if session == nil {
				logger.Warn("Invalid or expired session",
					zap.String("token_hash", tokenHash[:12]),
					zap.String("path", r.URL.Path),
				)
				utils.ResponseUnauthorized(w, "Invalid or expired session")
				return
			}

			// Set context dengan caller DAN token
			caller := entity.NewCaller(session.UserID, session.Email, session.Role)
			ctx := utils.SetCaller(r.Context(), caller)
			ctx = utils.SetTokenContext(ctx, token)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireCapability - middleware cek capability caller
func RequireCapability(capability entity.Capability, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Get caller dari context (sudah diset AuthSession)
			caller, ok := utils.GetCallerFromContext(r.Context())
			if !ok {
				utils.ResponseUnauthorized(w, "Authentication required")
				return
			}

			// 2. Check capability
			if !caller.Can(capability) {
				logger.Warn("Capability check failed",
					zap.String("user_id", caller.UserID.String()),
					zap.String("role", string(caller.Role)),
					zap.String("capability", string(capability)),
					zap.String("path", r.URL.Path),
				)
				utils.ResponseForbidden(w, "Insufficient permissions")
				return
			}

			// 3. Lanjut ke handler
			next.ServeHTTP(w, r)
		})
	}
}
