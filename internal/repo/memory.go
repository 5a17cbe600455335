package repo

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore guarda usuários e refresh tokens em memória. Substitui o
// Postgres quando DB_DSN não está configurado.
type MemoryStore struct {
	mu       sync.RWMutex
	usuarios map[uuid.UUID]Usuario
	tokens   map[string]TokenRefresh
}

// NewMemoryStore cria o repositório em memória vazio.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		usuarios: make(map[uuid.UUID]Usuario),
		tokens:   make(map[string]TokenRefresh),
	}
}

var _ Store = (*MemoryStore)(nil)

// GetUsuario busca usuário por id.
func (m *MemoryStore) GetUsuario(ctx context.Context, id uuid.UUID) (Usuario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.usuarios[id]
	if !ok {
		return Usuario{}, ErrNotFound
	}
	return cloneUsuario(u), nil
}

// GetUsuarioPorEmail busca usuário por e-mail (case-insensitive).
func (m *MemoryStore) GetUsuarioPorEmail(ctx context.Context, email string) (Usuario, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.usuarios {
		if strings.ToLower(u.Email) == email {
			return cloneUsuario(u), nil
		}
	}
	return Usuario{}, ErrNotFound
}

// GetAtendentePorMatricula busca atendente pela chave matrícula+instituição.
func (m *MemoryStore) GetAtendentePorMatricula(ctx context.Context, instituicao, matricula string) (Usuario, error) {
	matricula = strings.TrimSpace(matricula)

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.usuarios {
		if u.Tipo == TipoAtendente && u.Atendente != nil &&
			u.Atendente.Matricula == matricula && u.Atendente.Instituicao == instituicao {
			return cloneUsuario(u), nil
		}
	}
	return Usuario{}, ErrNotFound
}

// CreateUsuario insere cidadão ou atendente.
func (m *MemoryStore) CreateUsuario(ctx context.Context, usuario Usuario) (Usuario, error) {
	usuario.ID = uuid.New()
	usuario.Email = strings.ToLower(strings.TrimSpace(usuario.Email))
	usuario.Nome = strings.TrimSpace(usuario.Nome)
	usuario.CriadoEm = time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.usuarios[usuario.ID] = cloneUsuario(usuario)
	return cloneUsuario(usuario), nil
}

// InsertRefreshToken registra um novo refresh token.
func (m *MemoryStore) InsertRefreshToken(ctx context.Context, arg InsertRefreshTokenParams) (TokenRefresh, error) {
	token := TokenRefresh{
		ID:        arg.ID,
		Subject:   arg.Subject,
		Tipo:      arg.Tipo,
		TokenHash: arg.TokenHash,
		Expiracao: arg.Expiracao,
		CriadoEm:  arg.CriadoEm,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.tokens[token.TokenHash] = token
	return token, nil
}

// GetRefreshTokenByHash busca refresh token pelo hash.
func (m *MemoryStore) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (TokenRefresh, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	token, ok := m.tokens[tokenHash]
	if !ok {
		return TokenRefresh{}, ErrNotFound
	}
	return token, nil
}

// RevokeRefreshToken marca o token como revogado.
func (m *MemoryStore) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	token, ok := m.tokens[tokenHash]
	if !ok {
		return ErrNotFound
	}
	token.Revogado = true
	m.tokens[tokenHash] = token
	return nil
}

// InvalidateOtherRefreshTokens revoga todos os tokens do subject exceto o atual.
func (m *MemoryStore) InvalidateOtherRefreshTokens(ctx context.Context, subject uuid.UUID, tipo, keepHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for hash, token := range m.tokens {
		if token.Subject == subject && token.Tipo == tipo && hash != keepHash && !token.Revogado {
			token.Revogado = true
			m.tokens[hash] = token
		}
	}
	return nil
}

func cloneUsuario(u Usuario) Usuario {
	clone := u
	if u.Cidadao != nil {
		perfil := *u.Cidadao
		clone.Cidadao = &perfil
	}
	if u.Atendente != nil {
		perfil := *u.Atendente
		clone.Atendente = &perfil
	}
	return clone
}
