package ocorrencia

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository guarda ocorrências em memória. Substitui o Postgres quando
// DB_DSN não está configurado; também serve os testes de handler e serviço.
type MemoryRepository struct {
	mu          sync.RWMutex
	seq         int64
	ocorrencias map[uuid.UUID]Ocorrencia
	ordem       map[uuid.UUID]int64
	historico   map[uuid.UUID][]StatusHistorico
	mensagens   map[uuid.UUID][]Mensagem
	medias      map[uuid.UUID][]Media
}

// NewMemoryRepository cria o repositório em memória vazio.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		ocorrencias: make(map[uuid.UUID]Ocorrencia),
		ordem:       make(map[uuid.UUID]int64),
		historico:   make(map[uuid.UUID][]StatusHistorico),
		mensagens:   make(map[uuid.UUID][]Mensagem),
		medias:      make(map[uuid.UUID][]Media),
	}
}

var _ Repository = (*MemoryRepository)(nil)

// CriarOcorrencia insere ocorrência, histórico inicial e mensagem de sistema
// atomicamente (sob o mesmo lock).
func (m *MemoryRepository) CriarOcorrencia(ctx context.Context, oc Ocorrencia, historico StatusHistorico, msg Mensagem) (Ocorrencia, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existente := range m.ocorrencias {
		if existente.Codigo == oc.Codigo {
			return Ocorrencia{}, ErrCodigoDuplicado
		}
	}

	now := time.Now().UTC()
	oc.ID = uuid.New()
	oc.CriadoEm = now
	oc.AtualizadoEm = now

	m.seq++
	m.ocorrencias[oc.ID] = oc
	m.ordem[oc.ID] = m.seq

	historico.ID = uuid.New()
	historico.OcorrenciaID = oc.ID
	historico.CriadoEm = now
	m.historico[oc.ID] = append(m.historico[oc.ID], historico)

	msg.ID = uuid.New()
	msg.OcorrenciaID = oc.ID
	msg.CriadoEm = now
	m.mensagens[oc.ID] = append(m.mensagens[oc.ID], msg)

	return oc, nil
}

// GetOcorrencia busca ocorrência por id.
func (m *MemoryRepository) GetOcorrencia(ctx context.Context, id uuid.UUID) (Ocorrencia, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	oc, ok := m.ocorrencias[id]
	if !ok {
		return Ocorrencia{}, ErrNotFound
	}
	return oc, nil
}

// GetOcorrenciaPorCodigo busca ocorrência pelo código legível.
func (m *MemoryRepository) GetOcorrenciaPorCodigo(ctx context.Context, codigo string) (Ocorrencia, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, oc := range m.ocorrencias {
		if oc.Codigo == codigo {
			return oc, nil
		}
	}
	return Ocorrencia{}, ErrNotFound
}

// ListarPorCidadao lista ocorrências do cidadão, mais recentes primeiro.
func (m *MemoryRepository) ListarPorCidadao(ctx context.Context, cidadaoID uuid.UUID) ([]Ocorrencia, error) {
	return m.listar(func(oc Ocorrencia) bool { return oc.CidadaoID == cidadaoID })
}

// ListarPorInstituicao lista ocorrências roteadas para a instituição.
func (m *MemoryRepository) ListarPorInstituicao(ctx context.Context, instituicao string) ([]Ocorrencia, error) {
	return m.listar(func(oc Ocorrencia) bool { return oc.TipoEmergencia == instituicao })
}

func (m *MemoryRepository) listar(keep func(Ocorrencia) bool) ([]Ocorrencia, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var resultado []Ocorrencia
	for _, oc := range m.ocorrencias {
		if keep(oc) {
			resultado = append(resultado, oc)
		}
	}

	// Mais recentes primeiro; a sequência de inserção desempata timestamps iguais.
	sort.Slice(resultado, func(i, j int) bool {
		a, b := resultado[i], resultado[j]
		if !a.CriadoEm.Equal(b.CriadoEm) {
			return a.CriadoEm.After(b.CriadoEm)
		}
		return m.ordem[a.ID] > m.ordem[b.ID]
	})

	return resultado, nil
}

// AtualizarStatus grava o novo status, histórico e mensagem sob o mesmo lock.
func (m *MemoryRepository) AtualizarStatus(ctx context.Context, id uuid.UUID, novoStatus string, historico StatusHistorico, msg *Mensagem) (Ocorrencia, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	oc, ok := m.ocorrencias[id]
	if !ok {
		return Ocorrencia{}, ErrNotFound
	}

	now := time.Now().UTC()
	oc.Status = novoStatus
	oc.AtualizadoEm = now
	m.ocorrencias[id] = oc

	historico.ID = uuid.New()
	historico.OcorrenciaID = id
	historico.CriadoEm = now
	m.historico[id] = append(m.historico[id], historico)

	if msg != nil {
		nova := *msg
		nova.ID = uuid.New()
		nova.OcorrenciaID = id
		nova.CriadoEm = now
		m.mensagens[id] = append(m.mensagens[id], nova)
	}

	return oc, nil
}

// ListarHistorico lista a trilha de status, mais recente primeiro.
func (m *MemoryRepository) ListarHistorico(ctx context.Context, ocorrenciaID uuid.UUID) ([]StatusHistorico, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entradas := m.historico[ocorrenciaID]
	resultado := make([]StatusHistorico, len(entradas))
	for i, h := range entradas {
		resultado[len(entradas)-1-i] = h
	}
	return resultado, nil
}

// CriarMensagem insere mensagem no chat da ocorrência.
func (m *MemoryRepository) CriarMensagem(ctx context.Context, msg Mensagem) (Mensagem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg.ID = uuid.New()
	msg.CriadoEm = time.Now().UTC()
	m.mensagens[msg.OcorrenciaID] = append(m.mensagens[msg.OcorrenciaID], msg)
	return msg, nil
}

// ListarMensagens lista o chat em ordem de inserção.
func (m *MemoryRepository) ListarMensagens(ctx context.Context, ocorrenciaID uuid.UUID) ([]Mensagem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entradas := m.mensagens[ocorrenciaID]
	resultado := make([]Mensagem, len(entradas))
	copy(resultado, entradas)
	return resultado, nil
}

// CriarMedia registra metadados de arquivo anexado.
func (m *MemoryRepository) CriarMedia(ctx context.Context, media Media) (Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	media.ID = uuid.New()
	media.CriadoEm = time.Now().UTC()
	m.medias[media.OcorrenciaID] = append(m.medias[media.OcorrenciaID], media)
	return media, nil
}

// ListarMedia lista anexos da ocorrência.
func (m *MemoryRepository) ListarMedia(ctx context.Context, ocorrenciaID uuid.UUID) ([]Media, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entradas := m.medias[ocorrenciaID]
	resultado := make([]Media, len(entradas))
	copy(resultado, entradas)
	return resultado, nil
}
