package ocorrencia

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bomilitar/plataforma/internal/db"
)

const ocorrenciaColumns = "id, codigo, cidadao_id, tipo_emergencia, tipo_ocorrencia, status, descricao, endereco, latitude, longitude, criado_em, atualizado_em"

// PostgresRepository persiste ocorrências no Postgres via pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository cria o repositório Postgres.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

var _ Repository = (*PostgresRepository)(nil)

// CriarOcorrencia insere ocorrência, entrada inicial de histórico e mensagem
// de sistema em uma única transação.
func (r *PostgresRepository) CriarOcorrencia(ctx context.Context, oc Ocorrencia, historico StatusHistorico, msg Mensagem) (Ocorrencia, error) {
	var criada Ocorrencia

	err := db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
            INSERT INTO occurrences (codigo, cidadao_id, tipo_emergencia, tipo_ocorrencia, status, descricao, endereco, latitude, longitude)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
            RETURNING `+ocorrenciaColumns+`
        `, oc.Codigo, oc.CidadaoID, oc.TipoEmergencia, oc.TipoOcorrencia, oc.Status, oc.Descricao, oc.Endereco, oc.Latitude, oc.Longitude)

		var err error
		criada, err = scanOcorrencia(row)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
            INSERT INTO status_history (occurrence_id, usuario_id, status_anterior, novo_status, observacao)
            VALUES ($1, $2, $3, $4, $5)
        `, criada.ID, historico.UsuarioID, historico.StatusAnterior, historico.NovoStatus, historico.Observacao); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
            INSERT INTO messages (occurrence_id, remetente_id, papel, conteudo)
            VALUES ($1, $2, $3, $4)
        `, criada.ID, msg.RemetenteID, msg.Papel, msg.Conteudo)
		return err
	})
	if err != nil {
		return Ocorrencia{}, err
	}

	return criada, nil
}

// GetOcorrencia busca ocorrência por id.
func (r *PostgresRepository) GetOcorrencia(ctx context.Context, id uuid.UUID) (Ocorrencia, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+ocorrenciaColumns+` FROM occurrences WHERE id = $1`, id)
	return scanOcorrencia(row)
}

// GetOcorrenciaPorCodigo busca ocorrência pelo código legível.
func (r *PostgresRepository) GetOcorrenciaPorCodigo(ctx context.Context, codigo string) (Ocorrencia, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+ocorrenciaColumns+` FROM occurrences WHERE codigo = $1`, codigo)
	return scanOcorrencia(row)
}

// ListarPorCidadao lista ocorrências do cidadão, mais recentes primeiro.
func (r *PostgresRepository) ListarPorCidadao(ctx context.Context, cidadaoID uuid.UUID) ([]Ocorrencia, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT `+ocorrenciaColumns+`
        FROM occurrences
        WHERE cidadao_id = $1
        ORDER BY criado_em DESC
    `, cidadaoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectOcorrencias(rows)
}

// ListarPorInstituicao lista ocorrências roteadas para a instituição,
// mais recentes primeiro.
func (r *PostgresRepository) ListarPorInstituicao(ctx context.Context, instituicao string) ([]Ocorrencia, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT `+ocorrenciaColumns+`
        FROM occurrences
        WHERE tipo_emergencia = $1
        ORDER BY criado_em DESC
    `, instituicao)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectOcorrencias(rows)
}

// AtualizarStatus grava o novo status, a entrada de histórico e a mensagem de
// sistema (quando houver) em uma única transação.
func (r *PostgresRepository) AtualizarStatus(ctx context.Context, id uuid.UUID, novoStatus string, historico StatusHistorico, msg *Mensagem) (Ocorrencia, error) {
	var atualizada Ocorrencia

	err := db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
            UPDATE occurrences
            SET status = $2, atualizado_em = now()
            WHERE id = $1
            RETURNING `+ocorrenciaColumns+`
        `, id, novoStatus)

		var err error
		atualizada, err = scanOcorrencia(row)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
            INSERT INTO status_history (occurrence_id, usuario_id, status_anterior, novo_status, observacao)
            VALUES ($1, $2, $3, $4, $5)
        `, id, historico.UsuarioID, historico.StatusAnterior, historico.NovoStatus, historico.Observacao); err != nil {
			return err
		}

		if msg != nil {
			if _, err := tx.Exec(ctx, `
                INSERT INTO messages (occurrence_id, remetente_id, papel, conteudo)
                VALUES ($1, $2, $3, $4)
            `, id, msg.RemetenteID, msg.Papel, msg.Conteudo); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Ocorrencia{}, err
	}

	return atualizada, nil
}

// ListarHistorico lista a trilha de status, mais recente primeiro.
func (r *PostgresRepository) ListarHistorico(ctx context.Context, ocorrenciaID uuid.UUID) ([]StatusHistorico, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id, occurrence_id, usuario_id, status_anterior, novo_status, observacao, criado_em
        FROM status_history
        WHERE occurrence_id = $1
        ORDER BY criado_em DESC
    `, ocorrenciaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var historico []StatusHistorico
	for rows.Next() {
		var h StatusHistorico
		if err := rows.Scan(&h.ID, &h.OcorrenciaID, &h.UsuarioID, &h.StatusAnterior, &h.NovoStatus, &h.Observacao, &h.CriadoEm); err != nil {
			return nil, err
		}
		historico = append(historico, h)
	}
	return historico, rows.Err()
}

// CriarMensagem insere mensagem no chat da ocorrência.
func (r *PostgresRepository) CriarMensagem(ctx context.Context, msg Mensagem) (Mensagem, error) {
	row := r.pool.QueryRow(ctx, `
        INSERT INTO messages (occurrence_id, remetente_id, papel, conteudo)
        VALUES ($1, $2, $3, $4)
        RETURNING id, occurrence_id, remetente_id, papel, conteudo, criado_em
    `, msg.OcorrenciaID, msg.RemetenteID, msg.Papel, msg.Conteudo)

	return scanMensagem(row)
}

// ListarMensagens lista o chat em ordem cronológica.
func (r *PostgresRepository) ListarMensagens(ctx context.Context, ocorrenciaID uuid.UUID) ([]Mensagem, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id, occurrence_id, remetente_id, papel, conteudo, criado_em
        FROM messages
        WHERE occurrence_id = $1
        ORDER BY criado_em ASC
    `, ocorrenciaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mensagens []Mensagem
	for rows.Next() {
		msg, err := scanMensagem(rows)
		if err != nil {
			return nil, err
		}
		mensagens = append(mensagens, msg)
	}
	return mensagens, rows.Err()
}

// CriarMedia registra metadados de arquivo anexado.
func (r *PostgresRepository) CriarMedia(ctx context.Context, media Media) (Media, error) {
	row := r.pool.QueryRow(ctx, `
        INSERT INTO occurrence_media (occurrence_id, arquivo, nome_original, mime_type, tamanho)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, occurrence_id, arquivo, nome_original, mime_type, tamanho, criado_em
    `, media.OcorrenciaID, media.Arquivo, media.NomeOriginal, media.MimeType, media.Tamanho)

	var m Media
	if err := row.Scan(&m.ID, &m.OcorrenciaID, &m.Arquivo, &m.NomeOriginal, &m.MimeType, &m.Tamanho, &m.CriadoEm); err != nil {
		return Media{}, err
	}
	return m, nil
}

// ListarMedia lista anexos da ocorrência.
func (r *PostgresRepository) ListarMedia(ctx context.Context, ocorrenciaID uuid.UUID) ([]Media, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id, occurrence_id, arquivo, nome_original, mime_type, tamanho, criado_em
        FROM occurrence_media
        WHERE occurrence_id = $1
        ORDER BY criado_em ASC
    `, ocorrenciaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var medias []Media
	for rows.Next() {
		var m Media
		if err := rows.Scan(&m.ID, &m.OcorrenciaID, &m.Arquivo, &m.NomeOriginal, &m.MimeType, &m.Tamanho, &m.CriadoEm); err != nil {
			return nil, err
		}
		medias = append(medias, m)
	}
	return medias, rows.Err()
}

func scanOcorrencia(row pgx.Row) (Ocorrencia, error) {
	var oc Ocorrencia
	if err := row.Scan(&oc.ID, &oc.Codigo, &oc.CidadaoID, &oc.TipoEmergencia, &oc.TipoOcorrencia, &oc.Status, &oc.Descricao, &oc.Endereco, &oc.Latitude, &oc.Longitude, &oc.CriadoEm, &oc.AtualizadoEm); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Ocorrencia{}, ErrNotFound
		}
		return Ocorrencia{}, err
	}
	return oc, nil
}

func scanMensagem(row pgx.Row) (Mensagem, error) {
	var m Mensagem
	if err := row.Scan(&m.ID, &m.OcorrenciaID, &m.RemetenteID, &m.Papel, &m.Conteudo, &m.CriadoEm); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Mensagem{}, ErrNotFound
		}
		return Mensagem{}, err
	}
	return m, nil
}

func collectOcorrencias(rows pgx.Rows) ([]Ocorrencia, error) {
	var ocorrencias []Ocorrencia
	for rows.Next() {
		oc, err := scanOcorrencia(rows)
		if err != nil {
			return nil, err
		}
		ocorrencias = append(ocorrencias, oc)
	}
	return ocorrencias, rows.Err()
}
