package repo

import (
	"context"

	"github.com/google/uuid"
)

// Store define o contrato do repositório de credenciais. A implementação
// padrão usa Postgres; a variante em memória serve desenvolvimento e testes,
// selecionada na subida conforme a configuração.
type Store interface {
	GetUsuario(ctx context.Context, id uuid.UUID) (Usuario, error)
	GetUsuarioPorEmail(ctx context.Context, email string) (Usuario, error)
	GetAtendentePorMatricula(ctx context.Context, instituicao, matricula string) (Usuario, error)
	CreateUsuario(ctx context.Context, usuario Usuario) (Usuario, error)

	InsertRefreshToken(ctx context.Context, arg InsertRefreshTokenParams) (TokenRefresh, error)
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (TokenRefresh, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
	InvalidateOtherRefreshTokens(ctx context.Context, subject uuid.UUID, tipo, keepHash string) error
}
