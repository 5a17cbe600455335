package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	httpmiddleware "github.com/bomilitar/plataforma/internal/http/middleware"
	"github.com/bomilitar/plataforma/internal/repo"
	"github.com/bomilitar/plataforma/internal/service"
	"github.com/bomilitar/plataforma/internal/util"
)

type usuarioView struct {
	ID          string    `json:"id"`
	Tipo        string    `json:"type"`
	Nome        string    `json:"nome"`
	Email       string    `json:"email"`
	CPF         string    `json:"cpf,omitempty"`
	Telefone    string    `json:"telefone,omitempty"`
	Matricula   string    `json:"matricula,omitempty"`
	Instituicao string    `json:"instituicao,omitempty"`
	CriadoEm    time.Time `json:"createdAt"`
}

func novoUsuarioView(u repo.Usuario) usuarioView {
	view := usuarioView{
		ID:       u.ID.String(),
		Tipo:     u.Tipo,
		Nome:     u.Nome,
		Email:    u.Email,
		CriadoEm: u.CriadoEm,
	}
	if u.Cidadao != nil {
		view.CPF = u.Cidadao.CPF
		view.Telefone = u.Cidadao.Telefone
	}
	if u.Atendente != nil {
		view.Matricula = u.Atendente.Matricula
		view.Instituicao = u.Atendente.Instituicao
		view.Telefone = u.Atendente.Telefone
	}
	return view
}

// RegisterCidadao cadastra um cidadão e devolve sessão aberta.
func (h *Handler) RegisterCidadao(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Nome     string `json:"nome"`
		CPF      string `json:"cpf"`
		Telefone string `json:"telefone"`
		Email    string `json:"email"`
		Senha    string `json:"senha"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	if err := validarCadastroCidadao(payload.Nome, payload.CPF, payload.Telefone, payload.Email, payload.Senha); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}

	result, err := h.authService.RegisterCidadao(r.Context(), service.RegisterCidadaoInput{
		Nome:     payload.Nome,
		CPF:      payload.CPF,
		Telefone: payload.Telefone,
		Email:    payload.Email,
		Senha:    payload.Senha,
	})
	if err != nil {
		h.handleRegisterError(w, err)
		return
	}

	h.writeLoginSuccess(w, http.StatusCreated, result)
}

// RegisterAtendente cadastra um atendente de pm ou bombeiros.
func (h *Handler) RegisterAtendente(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Nome        string `json:"nome"`
		Instituicao string `json:"instituicao"`
		Matricula   string `json:"matricula"`
		Telefone    string `json:"telefone"`
		Email       string `json:"email"`
		Senha       string `json:"senha"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	if err := validarCadastroAtendente(payload.Nome, payload.Instituicao, payload.Matricula, payload.Email, payload.Senha); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}

	result, err := h.authService.RegisterAtendente(r.Context(), service.RegisterAtendenteInput{
		Nome:        payload.Nome,
		Instituicao: payload.Instituicao,
		Matricula:   payload.Matricula,
		Telefone:    payload.Telefone,
		Email:       payload.Email,
		Senha:       payload.Senha,
	})
	if err != nil {
		h.handleRegisterError(w, err)
		return
	}

	h.writeLoginSuccess(w, http.StatusCreated, result)
}

// LoginCidadao autentica cidadão por email e senha.
func (h *Handler) LoginCidadao(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
		Senha string `json:"senha"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	if strings.TrimSpace(payload.Email) == "" || strings.TrimSpace(payload.Senha) == "" {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "email e senha são obrigatórios", nil)
		return
	}

	result, err := h.authService.LoginCidadao(r.Context(), payload.Email, payload.Senha)
	if err != nil {
		h.handleAuthError(w, err)
		return
	}

	h.writeLoginSuccess(w, http.StatusOK, result)
}

// LoginAtendente autentica atendente por instituição e matrícula.
func (h *Handler) LoginAtendente(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Instituicao string `json:"instituicao"`
		Matricula   string `json:"matricula"`
		Senha       string `json:"senha"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	if !repo.InstituicaoValida(payload.Instituicao) {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "instituicao deve ser pm ou bombeiros", nil)
		return
	}
	if strings.TrimSpace(payload.Matricula) == "" || strings.TrimSpace(payload.Senha) == "" {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "matricula e senha são obrigatórios", nil)
		return
	}

	result, err := h.authService.LoginAtendente(r.Context(), payload.Instituicao, payload.Matricula, payload.Senha)
	if err != nil {
		h.handleAuthError(w, err)
		return
	}

	h.writeLoginSuccess(w, http.StatusOK, result)
}

// Refresh troca o refresh token por nova sessão.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		RefreshToken string `json:"refresh_token"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || strings.TrimSpace(payload.RefreshToken) == "" {
		WriteError(w, http.StatusUnauthorized, "AUTH", "refresh ausente", nil)
		return
	}

	result, err := h.authService.Refresh(r.Context(), payload.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrRefreshInvalid) {
			WriteError(w, http.StatusUnauthorized, "AUTH", "refresh inválido", nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro ao renovar sessão", nil)
		return
	}

	h.writeLoginSuccess(w, http.StatusOK, result)
}

// Logout revoga o refresh token atual.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		RefreshToken string `json:"refresh_token"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err == nil && strings.TrimSpace(payload.RefreshToken) != "" {
		_ = h.authService.Logout(r.Context(), payload.RefreshToken)
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Me retorna o usuário autenticado.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	subject, err := h.subjectUUID(r)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "AUTH", "subject inválido", nil)
		return
	}

	usuario, err := h.authService.GetMe(r.Context(), subject)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			WriteError(w, http.StatusUnauthorized, "AUTH", "usuário não encontrado", nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível carregar perfil", nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"user": novoUsuarioView(usuario)})
}

func (h *Handler) handleRegisterError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrEmailEmUso), errors.Is(err, service.ErrMatriculaEmUso):
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	default:
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro ao cadastrar", nil)
	}
}

func (h *Handler) handleAuthError(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrInvalidCredentials) {
		WriteError(w, http.StatusUnauthorized, "AUTH", err.Error(), nil)
		return
	}
	WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro ao autenticar", nil)
}

func (h *Handler) writeLoginSuccess(w http.ResponseWriter, status int, result *service.LoginResult) {
	WriteJSON(w, status, map[string]any{
		"user":          novoUsuarioView(result.Usuario),
		"token":         result.AccessToken,
		"refresh_token": result.RefreshToken,
	})
}

func (h *Handler) subjectUUID(r *http.Request) (uuid.UUID, error) {
	subjectStr := httpmiddleware.GetSubject(r.Context())
	if strings.TrimSpace(subjectStr) == "" {
		return uuid.Nil, errors.New("subject ausente")
	}
	return uuid.Parse(subjectStr)
}

func validarCadastroCidadao(nome, cpf, telefone, email, senha string) error {
	if err := util.RequireString(nome, "nome"); err != nil {
		return err
	}
	if err := util.ValidateCPF(cpf); err != nil {
		return err
	}
	if err := util.ValidateTelefone(telefone); err != nil {
		return err
	}
	if err := util.ValidateEmail(email); err != nil {
		return err
	}
	return util.ValidatePassword(senha)
}

func validarCadastroAtendente(nome, instituicao, matricula, email, senha string) error {
	if err := util.RequireString(nome, "nome"); err != nil {
		return err
	}
	if !repo.InstituicaoValida(instituicao) {
		return errors.New("instituicao deve ser pm ou bombeiros")
	}
	if err := util.RequireString(matricula, "matricula"); err != nil {
		return err
	}
	if err := util.ValidateEmail(email); err != nil {
		return err
	}
	return util.ValidatePassword(senha)
}
