package ocorrencia

import (
	"context"

	"github.com/google/uuid"
)

// Repository define o contrato de persistência de ocorrências e seus
// registros dependentes (histórico, mensagens, mídia).
//
// CriarOcorrencia e AtualizarStatus gravam a ocorrência junto com os efeitos
// colaterais (entrada de histórico e mensagem de sistema) atomicamente, para
// que uma falha no meio não deixe trilha de auditoria inconsistente.
type Repository interface {
	CriarOcorrencia(ctx context.Context, oc Ocorrencia, historico StatusHistorico, msg Mensagem) (Ocorrencia, error)
	GetOcorrencia(ctx context.Context, id uuid.UUID) (Ocorrencia, error)
	GetOcorrenciaPorCodigo(ctx context.Context, codigo string) (Ocorrencia, error)
	ListarPorCidadao(ctx context.Context, cidadaoID uuid.UUID) ([]Ocorrencia, error)
	ListarPorInstituicao(ctx context.Context, instituicao string) ([]Ocorrencia, error)
	AtualizarStatus(ctx context.Context, id uuid.UUID, novoStatus string, historico StatusHistorico, msg *Mensagem) (Ocorrencia, error)

	ListarHistorico(ctx context.Context, ocorrenciaID uuid.UUID) ([]StatusHistorico, error)

	CriarMensagem(ctx context.Context, msg Mensagem) (Mensagem, error)
	ListarMensagens(ctx context.Context, ocorrenciaID uuid.UUID) ([]Mensagem, error)

	CriarMedia(ctx context.Context, media Media) (Media, error)
	ListarMedia(ctx context.Context, ocorrenciaID uuid.UUID) ([]Media, error)
}
