package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/park285/goban-desk/internal/obslog"
)

var errBadToken = errors.New("invalid token")

// parseSubject validates an HS256 token and returns its subject.
func parseSubject(secret []byte, tok string) (string, error) {
	if tok == "" {
		return "", errors.New("missing token")
	}
	t, err := jwt.Parse(tok, func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !t.Valid {
		return "", errBadToken
	}
	sub, err := t.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errBadToken
	}
	return sub, nil
}

// requireModerator admits a request only when its token's subject is the
// {moderator} in the path. An empty secret disables the check.
func requireModerator(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(secret) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var tok string
			if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
				tok = strings.TrimPrefix(h, "Bearer ")
			} else {
				tok = r.URL.Query().Get("token")
			}
			sub, err := parseSubject(secret, tok)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
				return
			}
			mod := chi.URLParam(r, "moderator")
			if id, err := strconv.ParseInt(mod, 10, 64); err != nil || strconv.FormatInt(id, 10) != sub {
				obslog.L().Warn("desk_token_mismatch", zap.String("subject", sub), zap.String("moderator", mod))
				writeError(w, http.StatusForbidden, "forbidden", "token does not belong to this moderator")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
