package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dropDatabas3/secproto/internal/observability/logger"
)

type sessionClaims struct {
	jwtv5.RegisteredClaims
}

func (s *Server) issueToken(user string) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.cfg.TokenTTL)
	claims := sessionClaims{RegisteredClaims: jwtv5.RegisteredClaims{
		Issuer:    s.cfg.Issuer,
		Subject:   user,
		ID:        uuid.NewString(),
		IssuedAt:  jwtv5.NewNumericDate(now),
		ExpiresAt: jwtv5.NewNumericDate(exp),
	}}
	raw, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
	return raw, exp, err
}

func (s *Server) parseToken(raw string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	_, err := jwtv5.ParseWithClaims(raw, claims, func(t *jwtv5.Token) (any, error) {
		return s.cfg.Secret, nil
	},
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithIssuer(s.cfg.Issuer),
		jwtv5.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *Server) checkPassword(user, pass string) bool {
	u := subtle.ConstantTimeCompare([]byte(user), []byte(s.cfg.Username))
	p := subtle.ConstantTimeCompare([]byte(pass), []byte(s.cfg.Password))
	return u&p == 1
}

// requireAuth valida Authorization: Bearer <JWT>; si falta o es inválido responde 401.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ah := strings.TrimSpace(r.Header.Get("Authorization"))
		if ah == "" || !strings.HasPrefix(strings.ToLower(ah), "bearer ") {
			w.Header().Set("WWW-Authenticate", `Bearer realm="inventory", error="invalid_token"`)
			writeError(w, http.StatusUnauthorized, "token_missing", "missing bearer token")
			return
		}
		if _, err := s.parseToken(strings.TrimSpace(ah[len("Bearer "):])); err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="inventory", error="invalid_token"`)
			writeError(w, http.StatusUnauthorized, "token_invalid", err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRequestID propaga X-Request-ID o genera uno, y deja un logger con el id en el contexto.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", rid)
		l := logger.From(r.Context()).With(logger.String("request_id", rid))
		next.ServeHTTP(w, r.WithContext(logger.ToContext(r.Context(), l)))
	})
}

// withRecover captura panics y responde 500.
func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				logger.From(r.Context()).Error("panic recovered", logger.Op("recover"), logger.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "internal_error", "panic recovered")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
