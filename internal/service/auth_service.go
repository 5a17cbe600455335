package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/bomilitar/plataforma/internal/auth"
	"github.com/bomilitar/plataforma/internal/repo"
	"github.com/bomilitar/plataforma/internal/util"
)

var (
	// ErrInvalidCredentials indica falha na autenticação.
	ErrInvalidCredentials = errors.New("credenciais inválidas")
	// ErrEmailEmUso indica e-mail já cadastrado.
	ErrEmailEmUso = errors.New("email já cadastrado")
	// ErrMatriculaEmUso indica matrícula já cadastrada na instituição.
	ErrMatriculaEmUso = errors.New("matrícula já cadastrada")
	// ErrRefreshInvalid indica refresh token inválido ou expirado.
	ErrRefreshInvalid = errors.New("refresh token inválido")
)

// AuthService concentra cadastro, autenticação e sessões.
type AuthService struct {
	repo       repo.Store
	sessions   SessionStore
	jwt        *auth.JWTManager
	refreshTTL time.Duration
}

// NewAuthService cria novo serviço.
func NewAuthService(store repo.Store, sessions SessionStore, jwtMgr *auth.JWTManager, refreshTTL time.Duration) *AuthService {
	return &AuthService{repo: store, sessions: sessions, jwt: jwtMgr, refreshTTL: refreshTTL}
}

// JWT expõe gerenciador de JWT (útil em middlewares).
func (s *AuthService) JWT() *auth.JWTManager {
	return s.jwt
}

// LoginResult representa retorno padrão de autenticações.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	Usuario      repo.Usuario
}

// RegisterCidadaoInput agrupa os campos de cadastro do cidadão.
type RegisterCidadaoInput struct {
	Nome     string
	CPF      string
	Telefone string
	Email    string
	Senha    string
}

// RegisterAtendenteInput agrupa os campos de cadastro do atendente.
type RegisterAtendenteInput struct {
	Nome        string
	Instituicao string
	Matricula   string
	Telefone    string
	Email       string
	Senha       string
}

// RegisterCidadao cadastra cidadão e abre sessão.
func (s *AuthService) RegisterCidadao(ctx context.Context, input RegisterCidadaoInput) (*LoginResult, error) {
	if err := util.RequireString(input.Nome, "nome"); err != nil {
		return nil, err
	}
	if err := util.ValidateEmail(input.Email); err != nil {
		return nil, err
	}
	if err := util.ValidatePassword(input.Senha); err != nil {
		return nil, err
	}
	if err := util.ValidateCPF(input.CPF); err != nil {
		return nil, err
	}
	if err := util.ValidateTelefone(input.Telefone); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetUsuarioPorEmail(ctx, input.Email); err == nil {
		return nil, ErrEmailEmUso
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	hash, err := auth.Hash(input.Senha)
	if err != nil {
		return nil, err
	}

	usuario, err := s.repo.CreateUsuario(ctx, repo.NovoCidadao(input.Nome, input.Email, hash, input.CPF, input.Telefone))
	if err != nil {
		return nil, err
	}

	return s.abrirSessao(ctx, usuario)
}

// RegisterAtendente cadastra atendente e abre sessão. A matrícula é única
// dentro da instituição; o e-mail é único globalmente.
func (s *AuthService) RegisterAtendente(ctx context.Context, input RegisterAtendenteInput) (*LoginResult, error) {
	if err := util.RequireString(input.Nome, "nome"); err != nil {
		return nil, err
	}
	if err := util.RequireString(input.Matricula, "matrícula"); err != nil {
		return nil, err
	}
	if !repo.InstituicaoValida(input.Instituicao) {
		return nil, errors.New("instituição inválida")
	}
	if err := util.ValidateEmail(input.Email); err != nil {
		return nil, err
	}
	if err := util.ValidatePassword(input.Senha); err != nil {
		return nil, err
	}
	if err := util.ValidateTelefone(input.Telefone); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetAtendentePorMatricula(ctx, input.Instituicao, input.Matricula); err == nil {
		return nil, ErrMatriculaEmUso
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	if _, err := s.repo.GetUsuarioPorEmail(ctx, input.Email); err == nil {
		return nil, ErrEmailEmUso
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	hash, err := auth.Hash(input.Senha)
	if err != nil {
		return nil, err
	}

	usuario, err := s.repo.CreateUsuario(ctx, repo.NovoAtendente(input.Nome, input.Email, hash, input.Matricula, input.Instituicao, input.Telefone))
	if err != nil {
		return nil, err
	}

	return s.abrirSessao(ctx, usuario)
}

// LoginCidadao autentica cidadão por e-mail e senha.
func (s *AuthService) LoginCidadao(ctx context.Context, email, senha string) (*LoginResult, error) {
	usuario, err := s.repo.GetUsuarioPorEmail(ctx, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			log.Warn().Msg("login cidadão: usuário não encontrado")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if usuario.Tipo != repo.TipoCidadao {
		return nil, ErrInvalidCredentials
	}

	return s.verificarSenha(ctx, usuario, senha)
}

// LoginAtendente autentica atendente por matrícula+instituição e senha.
func (s *AuthService) LoginAtendente(ctx context.Context, instituicao, matricula, senha string) (*LoginResult, error) {
	usuario, err := s.repo.GetAtendentePorMatricula(ctx, instituicao, matricula)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			log.Warn().Msg("login atendente: matrícula não encontrada")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	return s.verificarSenha(ctx, usuario, senha)
}

func (s *AuthService) verificarSenha(ctx context.Context, usuario repo.Usuario, senha string) (*LoginResult, error) {
	ok, err := auth.Verify(senha, usuario.SenhaHash)
	if err != nil {
		log.Warn().Err(err).Msg("login: verify password failed")
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	return s.abrirSessao(ctx, usuario)
}

func (s *AuthService) abrirSessao(ctx context.Context, usuario repo.Usuario) (*LoginResult, error) {
	token, _, err := s.jwt.GenerateAccessToken(usuario.ID.String(), usuario.Tipo, usuario.Instituicao())
	if err != nil {
		return nil, err
	}

	rawRefresh, refreshHash, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	expires := time.Now().UTC().Add(s.refreshTTL)
	if err := s.persistRefresh(ctx, usuario.ID, usuario.Tipo, refreshHash, expires); err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:  token,
		RefreshToken: rawRefresh,
		Usuario:      usuario,
	}, nil
}

// Refresh troca refresh token por uma nova sessão.
func (s *AuthService) Refresh(ctx context.Context, rawToken string) (*LoginResult, error) {
	if rawToken == "" {
		return nil, ErrRefreshInvalid
	}

	hash := auth.HashRefreshToken(rawToken)
	record, err := s.repo.GetRefreshTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRefreshInvalid
		}
		return nil, err
	}

	if record.Revogado || time.Now().UTC().After(record.Expiracao) {
		return nil, ErrRefreshInvalid
	}

	redisKey := auth.RefreshRedisKey(record.Tipo, hash)
	status, err := s.sessions.Get(ctx, redisKey)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrRefreshInvalid
		}
		return nil, err
	}
	if status != "active" {
		return nil, ErrRefreshInvalid
	}

	usuario, err := s.repo.GetUsuario(ctx, record.Subject)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRefreshInvalid
		}
		return nil, err
	}

	result, err := s.abrirSessao(ctx, usuario)
	if err != nil {
		return nil, err
	}

	// Revoga token anterior (repositório + sessão)
	if err := s.repo.RevokeRefreshToken(ctx, hash); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	if err := s.sessions.Del(ctx, redisKey); err != nil {
		return nil, err
	}

	return result, nil
}

// Logout revoga refresh token atual.
func (s *AuthService) Logout(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}
	hash := auth.HashRefreshToken(rawToken)

	record, err := s.repo.GetRefreshTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		return err
	}

	if err := s.repo.RevokeRefreshToken(ctx, hash); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return err
	}
	return s.sessions.Del(ctx, auth.RefreshRedisKey(record.Tipo, hash))
}

// GetMe retorna o usuário autenticado.
func (s *AuthService) GetMe(ctx context.Context, subject uuid.UUID) (repo.Usuario, error) {
	return s.repo.GetUsuario(ctx, subject)
}

func (s *AuthService) persistRefresh(ctx context.Context, subject uuid.UUID, tipo, hash string, expires time.Time) error {
	_, err := s.repo.InsertRefreshToken(ctx, repo.InsertRefreshTokenParams{
		ID:        uuid.New(),
		Subject:   subject,
		Tipo:      tipo,
		TokenHash: hash,
		Expiracao: expires,
		CriadoEm:  time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	if err := s.repo.InvalidateOtherRefreshTokens(ctx, subject, tipo, hash); err != nil {
		return err
	}

	return s.sessions.Set(ctx, auth.RefreshRedisKey(tipo, hash), "active", time.Until(expires))
}
