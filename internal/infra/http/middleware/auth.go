package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/openctemio/console/pkg/apierror"
	"github.com/openctemio/console/pkg/domain/shared"
	"github.com/openctemio/console/pkg/jwt"
	"github.com/openctemio/console/pkg/logger"
)

// Account context keys, shared with logger.WithContext.
const (
	AccountIDKey   = logger.ContextKeyAccountID
	AccountTypeKey = logger.ContextKeyAccountType
)

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(token string) (*jwt.Claims, error)
}

// Auth requires a valid bearer token and stores the caller's account in
// the request context.
func Auth(verifier TokenVerifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				RecordAuthFailure("missing_token")
				apierror.Unauthorized("").WriteJSON(w)
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				reason := "invalid_token"
				message := "Invalid token"
				switch {
				case errors.Is(err, jwt.ErrExpiredToken):
					reason, message = "expired_token", "Token has expired"
				case errors.Is(err, jwt.ErrMissingAccount):
					reason, message = "missing_account", "Token carries no account"
				}
				RecordAuthFailure(reason)
				log.Debug("token rejected", "reason", reason, "request_id", GetRequestID(r.Context()))
				apierror.Unauthorized(message).WriteJSON(w)
				return
			}

			accountType := shared.AccountType(claims.AccountType)
			if !accountType.IsValid() {
				RecordAuthFailure("invalid_account_type")
				apierror.Unauthorized("Token carries an invalid account type").WriteJSON(w)
				return
			}

			ctx := context.WithValue(r.Context(), AccountIDKey, claims.AccountID)
			ctx = context.WithValue(ctx, AccountTypeKey, accountType)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAccountID extracts the caller's account id from context.
func GetAccountID(ctx context.Context) shared.ID {
	if id, ok := ctx.Value(AccountIDKey).(int64); ok {
		return shared.ID(id)
	}
	return 0
}

// GetAccountType extracts the caller's account type from context.
func GetAccountType(ctx context.Context) shared.AccountType {
	if accountType, ok := ctx.Value(AccountTypeKey).(shared.AccountType); ok {
		return accountType
	}
	return ""
}

// WithAccount stores an account in ctx the way Auth does.
func WithAccount(ctx context.Context, accountID shared.ID, accountType shared.AccountType) context.Context {
	ctx = context.WithValue(ctx, AccountIDKey, accountID.Int64())
	return context.WithValue(ctx, AccountTypeKey, accountType)
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
