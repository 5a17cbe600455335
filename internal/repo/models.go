package repo

import (
	"time"

	"github.com/google/uuid"
)

const (
	TipoCidadao   = "cidadao"
	TipoAtendente = "atendente"

	InstituicaoPM        = "pm"
	InstituicaoBombeiros = "bombeiros"
)

// InstituicaoValida indica se o valor corresponde a uma instituição conhecida.
func InstituicaoValida(instituicao string) bool {
	return instituicao == InstituicaoPM || instituicao == InstituicaoBombeiros
}

// PerfilCidadao reúne os atributos exclusivos de cidadãos.
type PerfilCidadao struct {
	CPF      string
	Telefone string
}

// PerfilAtendente reúne os atributos exclusivos de atendentes.
type PerfilAtendente struct {
	Matricula   string
	Instituicao string
	Telefone    string
}

// Usuario representa cidadão ou atendente. Exatamente um dos perfis é
// preenchido, conforme o Tipo; combinações inválidas não são representáveis
// pelos construtores abaixo.
type Usuario struct {
	ID        uuid.UUID
	Tipo      string
	Nome      string
	Email     string
	SenhaHash string
	Cidadao   *PerfilCidadao
	Atendente *PerfilAtendente
	CriadoEm  time.Time
}

// NovoCidadao monta um usuário do tipo cidadão.
func NovoCidadao(nome, email, senhaHash, cpf, telefone string) Usuario {
	return Usuario{
		Tipo:      TipoCidadao,
		Nome:      nome,
		Email:     email,
		SenhaHash: senhaHash,
		Cidadao:   &PerfilCidadao{CPF: cpf, Telefone: telefone},
	}
}

// NovoAtendente monta um usuário do tipo atendente.
func NovoAtendente(nome, email, senhaHash, matricula, instituicao, telefone string) Usuario {
	return Usuario{
		Tipo:      TipoAtendente,
		Nome:      nome,
		Email:     email,
		SenhaHash: senhaHash,
		Atendente: &PerfilAtendente{Matricula: matricula, Instituicao: instituicao, Telefone: telefone},
	}
}

// Instituicao devolve a instituição do atendente ou vazio para cidadãos.
func (u Usuario) Instituicao() string {
	if u.Atendente != nil {
		return u.Atendente.Instituicao
	}
	return ""
}

// Telefone devolve o telefone do perfil ativo.
func (u Usuario) Telefone() string {
	switch {
	case u.Cidadao != nil:
		return u.Cidadao.Telefone
	case u.Atendente != nil:
		return u.Atendente.Telefone
	}
	return ""
}

// TokenRefresh modela a tabela de refresh tokens.
type TokenRefresh struct {
	ID        uuid.UUID
	Subject   uuid.UUID
	Tipo      string
	TokenHash string
	Expiracao time.Time
	CriadoEm  time.Time
	Revogado  bool
}

// InsertRefreshTokenParams agrupa os campos de criação de refresh token.
type InsertRefreshTokenParams struct {
	ID        uuid.UUID
	Subject   uuid.UUID
	Tipo      string
	TokenHash string
	Expiracao time.Time
	CriadoEm  time.Time
}
