package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bomilitar/plataforma/internal/auth"
	"github.com/bomilitar/plataforma/internal/repo"
)

type contextKey string

const (
	ContextKeySubject     contextKey = "subject"
	ContextKeyTipo        contextKey = "tipo"
	ContextKeyInstituicao contextKey = "instituicao"
)

// Auth valida JWT de acesso e injeta claims no contexto.
func Auth(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, http.StatusUnauthorized, "AUTH", "token ausente")
				return
			}

			claims, err := jwtManager.ParseAndValidate(parts[1])
			if err != nil {
				writeError(w, http.StatusUnauthorized, "AUTH", "token inválido")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeySubject, claims.Subject)
			ctx = context.WithValue(ctx, ContextKeyTipo, claims.Tipo)
			ctx = context.WithValue(ctx, ContextKeyInstituicao, claims.Instituicao)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSubject recupera subject do contexto.
func GetSubject(ctx context.Context) string {
	val, _ := ctx.Value(ContextKeySubject).(string)
	return val
}

// GetTipo recupera o tipo de usuário (cidadao ou atendente) do contexto.
func GetTipo(ctx context.Context) string {
	val, _ := ctx.Value(ContextKeyTipo).(string)
	return val
}

// GetInstituicao recupera a instituição do atendente do contexto.
func GetInstituicao(ctx context.Context) string {
	val, _ := ctx.Value(ContextKeyInstituicao).(string)
	return val
}

// RequireCidadao restringe a rota a cidadãos autenticados.
func RequireCidadao(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetTipo(r.Context()) != repo.TipoCidadao {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "acesso restrito a cidadãos")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAtendente restringe a rota a atendentes autenticados.
func RequireAtendente(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetTipo(r.Context()) != repo.TipoAtendente {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "acesso restrito a atendentes")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data": nil,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
