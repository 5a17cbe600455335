package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const usuarioColumns = "id, tipo, nome, email, senha_hash, cpf, telefone, matricula, instituicao, criado_em"

// Queries provê acesso às tabelas de usuários e refresh tokens.
type Queries struct {
	pool *pgxpool.Pool
}

// New cria o repositório Postgres.
func New(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

var _ Store = (*Queries)(nil)

// GetUsuario busca usuário por id.
func (q *Queries) GetUsuario(ctx context.Context, id uuid.UUID) (Usuario, error) {
	row := q.pool.QueryRow(ctx, `SELECT `+usuarioColumns+` FROM users WHERE id = $1`, id)
	return scanUsuario(row)
}

// GetUsuarioPorEmail busca usuário por e-mail (case-insensitive).
func (q *Queries) GetUsuarioPorEmail(ctx context.Context, email string) (Usuario, error) {
	row := q.pool.QueryRow(ctx, `SELECT `+usuarioColumns+` FROM users WHERE lower(email) = lower($1)`, strings.TrimSpace(email))
	return scanUsuario(row)
}

// GetAtendentePorMatricula busca atendente pela chave matrícula+instituição.
func (q *Queries) GetAtendentePorMatricula(ctx context.Context, instituicao, matricula string) (Usuario, error) {
	row := q.pool.QueryRow(ctx, `
        SELECT `+usuarioColumns+`
        FROM users
        WHERE tipo = 'atendente' AND matricula = $1 AND instituicao = $2
    `, strings.TrimSpace(matricula), instituicao)
	return scanUsuario(row)
}

// CreateUsuario insere cidadão ou atendente.
func (q *Queries) CreateUsuario(ctx context.Context, usuario Usuario) (Usuario, error) {
	var (
		cpf         *string
		telefone    *string
		matricula   *string
		instituicao *string
	)

	switch {
	case usuario.Cidadao != nil:
		cpf = &usuario.Cidadao.CPF
		telefone = &usuario.Cidadao.Telefone
	case usuario.Atendente != nil:
		matricula = &usuario.Atendente.Matricula
		instituicao = &usuario.Atendente.Instituicao
		telefone = &usuario.Atendente.Telefone
	}

	row := q.pool.QueryRow(ctx, `
        INSERT INTO users (tipo, nome, email, senha_hash, cpf, telefone, matricula, instituicao)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING `+usuarioColumns+`
    `, usuario.Tipo, strings.TrimSpace(usuario.Nome), strings.ToLower(strings.TrimSpace(usuario.Email)), usuario.SenhaHash, cpf, telefone, matricula, instituicao)

	return scanUsuario(row)
}

// InsertRefreshToken registra um novo refresh token.
func (q *Queries) InsertRefreshToken(ctx context.Context, arg InsertRefreshTokenParams) (TokenRefresh, error) {
	row := q.pool.QueryRow(ctx, `
        INSERT INTO refresh_tokens (id, subject, tipo, token_hash, expiracao, criado_em)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, subject, tipo, token_hash, expiracao, criado_em, revogado
    `, arg.ID, arg.Subject, arg.Tipo, arg.TokenHash, arg.Expiracao, arg.CriadoEm)

	var token TokenRefresh
	if err := row.Scan(&token.ID, &token.Subject, &token.Tipo, &token.TokenHash, &token.Expiracao, &token.CriadoEm, &token.Revogado); err != nil {
		return TokenRefresh{}, err
	}
	return token, nil
}

// GetRefreshTokenByHash busca refresh token pelo hash.
func (q *Queries) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (TokenRefresh, error) {
	row := q.pool.QueryRow(ctx, `
        SELECT id, subject, tipo, token_hash, expiracao, criado_em, revogado
        FROM refresh_tokens
        WHERE token_hash = $1
    `, tokenHash)

	var token TokenRefresh
	if err := row.Scan(&token.ID, &token.Subject, &token.Tipo, &token.TokenHash, &token.Expiracao, &token.CriadoEm, &token.Revogado); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TokenRefresh{}, ErrNotFound
		}
		return TokenRefresh{}, err
	}
	return token, nil
}

// RevokeRefreshToken marca o token como revogado.
func (q *Queries) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	cmd, err := q.pool.Exec(ctx, `UPDATE refresh_tokens SET revogado = true WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InvalidateOtherRefreshTokens revoga todos os tokens do subject exceto o atual.
func (q *Queries) InvalidateOtherRefreshTokens(ctx context.Context, subject uuid.UUID, tipo, keepHash string) error {
	_, err := q.pool.Exec(ctx, `
        UPDATE refresh_tokens
        SET revogado = true
        WHERE subject = $1 AND tipo = $2 AND token_hash <> $3 AND NOT revogado
    `, subject, tipo, keepHash)
	return err
}

func scanUsuario(row pgx.Row) (Usuario, error) {
	var (
		u           Usuario
		cpf         *string
		telefone    *string
		matricula   *string
		instituicao *string
	)

	if err := row.Scan(&u.ID, &u.Tipo, &u.Nome, &u.Email, &u.SenhaHash, &cpf, &telefone, &matricula, &instituicao, &u.CriadoEm); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Usuario{}, ErrNotFound
		}
		return Usuario{}, err
	}

	fone := ""
	if telefone != nil {
		fone = *telefone
	}

	switch u.Tipo {
	case TipoCidadao:
		perfil := &PerfilCidadao{Telefone: fone}
		if cpf != nil {
			perfil.CPF = *cpf
		}
		u.Cidadao = perfil
	case TipoAtendente:
		perfil := &PerfilAtendente{Telefone: fone}
		if matricula != nil {
			perfil.Matricula = *matricula
		}
		if instituicao != nil {
			perfil.Instituicao = *instituicao
		}
		u.Atendente = perfil
	}

	return u, nil
}
