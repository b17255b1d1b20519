package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/fernet/fernet-go"
	"github.com/rs/zerolog/log"

	"github.com/ndewijer/investment-ledger/internal/api/response"
)

// DefaultTimeTokenTTL is how long a time token stays valid when no TTL is configured.
const DefaultTimeTokenTTL = 5 * time.Minute

// APIKeyMiddleware guards mutating routes with INTERNAL_API_KEY and a fernet time token
// valid for DefaultTimeTokenTTL. See NewAPIKeyAuth.
func APIKeyMiddleware(next http.Handler) http.Handler {
	return NewAPIKeyAuth(DefaultTimeTokenTTL)(next)
}

// NewAPIKeyAuth returns middleware requiring two headers:
//   - X-API-Key: the value of INTERNAL_API_KEY
//   - X-Time-Token: a fernet token produced by GenerateTimeToken with the same key,
//     younger than ttl
//
// The key is read on every request so it can be rotated through the environment.
// Returns 500 when no key is configured and 401 for missing or wrong credentials.
func NewAPIKeyAuth(ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := os.Getenv("INTERNAL_API_KEY")
			if apiKey == "" {
				log.Error().Msg("INTERNAL_API_KEY is not set, rejecting authenticated route")
				response.RespondError(w, http.StatusInternalServerError, "authentication error", "Authentication not loaded")
				return
			}

			provided := r.Header.Get("X-API-Key")
			if provided == "" {
				response.RespondError(w, http.StatusUnauthorized, "unauthorized", "Missing API key")
				return
			}
			if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				response.RespondError(w, http.StatusUnauthorized, "unauthorized", "Invalid API key")
				return
			}

			token := r.Header.Get("X-Time-Token")
			if token == "" {
				response.RespondError(w, http.StatusUnauthorized, "unauthorized", "Missing Time token")
				return
			}
			if fernet.VerifyAndDecrypt([]byte(token), ttl, []*fernet.Key{timeTokenKey(apiKey)}) == nil {
				response.RespondError(w, http.StatusUnauthorized, "unauthorized", "Time token is invalid or expired")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GenerateTimeToken issues a time token for apiKey. Clients fetch a fresh one before
// each mutating request; it is rejected once older than the configured TTL.
func GenerateTimeToken(apiKey string) string {
	msg := []byte(strconv.FormatInt(time.Now().Unix(), 10))
	tok, err := fernet.EncryptAndSign(msg, timeTokenKey(apiKey))
	if err != nil {
		log.Error().Err(err).Msg("failed to generate time token")
		return ""
	}
	return string(tok)
}

func timeTokenKey(apiKey string) *fernet.Key {
	k := fernet.Key(sha256.Sum256([]byte(apiKey)))
	return &k
}
