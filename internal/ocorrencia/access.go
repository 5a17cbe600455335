package ocorrencia

import (
	"github.com/google/uuid"

	"github.com/bomilitar/plataforma/internal/repo"
)

// Ator identifica quem está executando a operação. Para atendentes a
// instituição vem do token; para cidadãos fica vazia.
type Ator struct {
	ID          uuid.UUID
	Tipo        string
	Instituicao string
}

// NovoAtorCidadao monta o ator de um cidadão autenticado.
func NovoAtorCidadao(id uuid.UUID) Ator {
	return Ator{ID: id, Tipo: repo.TipoCidadao}
}

// NovoAtorAtendente monta o ator de um atendente autenticado.
func NovoAtorAtendente(id uuid.UUID, instituicao string) Ator {
	return Ator{ID: id, Tipo: repo.TipoAtendente, Instituicao: instituicao}
}

// autorizar aplica as regras de visibilidade por papel: cidadãos só enxergam
// as próprias ocorrências; atendentes só as roteadas para sua instituição.
func autorizar(oc Ocorrencia, ator Ator) error {
	switch ator.Tipo {
	case repo.TipoCidadao:
		if oc.CidadaoID != ator.ID {
			return ErrAcessoNegado
		}
	case repo.TipoAtendente:
		if oc.TipoEmergencia != ator.Instituicao {
			return ErrAcessoNegado
		}
	default:
		return ErrAcessoNegado
	}
	return nil
}
