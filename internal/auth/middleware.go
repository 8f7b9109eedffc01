package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/vdavid/vmail-lite/internal/crypto"
	"github.com/vdavid/vmail-lite/internal/mailerr"
	"github.com/vdavid/vmail-lite/internal/models"
)

type contextKey string

// CredentialsKey is the context key used to store the caller's decoded
// mail credentials.
const CredentialsKey contextKey = "credentials"

// RequireAuth checks the Authorization header for a session token, decodes
// the credentials inside it and stores them in the request context. The
// header may be "Bearer <token>" (scheme is case-insensitive) or the bare
// token.
func RequireAuth(codec crypto.TokenCodec) func(http.Handler) http.Handler {
	return requireAuth(codec, false)
}

// RequireAuthOrQuery is RequireAuth that also accepts ?token=, for links a
// browser follows directly such as downloads.
func RequireAuthOrQuery(codec crypto.TokenCodec) func(http.Handler) http.Handler {
	return requireAuth(codec, true)
}

func requireAuth(codec crypto.TokenCodec, allowQuery bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromHeader(r.Header.Get("Authorization"))
			if token == "" && allowQuery {
				token = strings.TrimSpace(r.URL.Query().Get("token"))
			}
			if token == "" {
				log.Debug().Str("path", r.URL.Path).Msg("Auth: no token present")
				unauthorized(w)
				return
			}

			creds, err := codec.Decode(token)
			if err != nil {
				log.Info().Err(err).Str("path", r.URL.Path).Msg("Auth: token rejected")
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), CredentialsKey, creds)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TokenFromHeader extracts the token from an Authorization header value.
// It returns "" for an empty header or a scheme other than Bearer.
func TokenFromHeader(header string) string {
	fields := strings.Fields(header)
	switch {
	case len(fields) == 1:
		return fields[0]
	case len(fields) >= 2 && strings.EqualFold(fields[0], "Bearer"):
		return strings.Join(fields[1:], " ")
	default:
		return ""
	}
}

// GetCredentialsFromContext returns the credentials stored by RequireAuth.
func GetCredentialsFromContext(ctx context.Context) (models.Credentials, bool) {
	creds, ok := ctx.Value(CredentialsKey).(models.Credentials)
	return creds, ok
}

// WithCredentials returns a copy of ctx carrying creds.
func WithCredentials(ctx context.Context, creds models.Credentials) context.Context {
	return context.WithValue(ctx, CredentialsKey, creds)
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   mailerr.Message(mailerr.KindInvalidToken),
	})
}
