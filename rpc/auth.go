package rpc

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"bazaar/crypto"
)

const jwtLeeway = 30 * time.Second

// authorize admits a mutating call made on behalf of caller. A configured
// static bearer token may act for any caller; a JWT must name the caller in
// its subject.
func (s *Server) authorize(r *http.Request, caller [20]byte) (int, *RPCError) {
	if s.cfg.AuthToken == "" && s.cfg.JWTSecret == "" {
		return http.StatusUnauthorized, &RPCError{Code: codeUnauthorized, Message: "RPC authentication not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return http.StatusUnauthorized, &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return http.StatusUnauthorized, &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return http.StatusUnauthorized, &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if s.cfg.AuthToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AuthToken)) == 1 {
		return http.StatusOK, nil
	}
	if s.cfg.JWTSecret == "" {
		return http.StatusUnauthorized, &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	subject, err := s.parseToken(token)
	if err != nil {
		return http.StatusUnauthorized, &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials", Data: err.Error()}
	}
	if !strings.EqualFold(subject, crypto.Address(caller).String()) {
		return http.StatusForbidden, &RPCError{Code: codeForbidden, Message: "token subject does not match caller", Data: subject}
	}
	return http.StatusOK, nil
}

func (s *Server) parseToken(tokenString string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithLeeway(jwtLeeway),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if s.cfg.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.JWTIssuer))
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.cfg.JWTSecret), nil
	}, opts...)
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("token invalid")
	}
	subject, err := token.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(subject) == "" {
		return "", errors.New("token subject required")
	}
	return subject, nil
}
