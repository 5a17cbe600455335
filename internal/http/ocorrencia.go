package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	httpmiddleware "github.com/bomilitar/plataforma/internal/http/middleware"
	"github.com/bomilitar/plataforma/internal/ocorrencia"
	"github.com/bomilitar/plataforma/internal/repo"
)

// CriarOcorrencia registra nova ocorrência para o cidadão autenticado.
func (h *Handler) CriarOcorrencia(w http.ResponseWriter, r *http.Request) {
	cidadaoID, err := h.subjectUUID(r)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}

	var payload struct {
		TipoEmergencia string  `json:"tipoEmergencia"`
		TipoOcorrencia string  `json:"tipoOcorrencia"`
		Descricao      string  `json:"descricao"`
		Endereco       string  `json:"endereco"`
		Latitude       float64 `json:"latitude"`
		Longitude      float64 `json:"longitude"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	oc, err := h.ocorrencias.Criar(r.Context(), cidadaoID, ocorrencia.CriarInput{
		TipoEmergencia: payload.TipoEmergencia,
		TipoOcorrencia: payload.TipoOcorrencia,
		Descricao:      payload.Descricao,
		Endereco:       payload.Endereco,
		Latitude:       payload.Latitude,
		Longitude:      payload.Longitude,
	})
	if err != nil {
		h.handleOcorrenciaError(w, err, true)
		return
	}

	WriteJSON(w, http.StatusCreated, oc)
}

// ListarOcorrencias devolve as ocorrências visíveis ao usuário autenticado.
func (h *Handler) ListarOcorrencias(w http.ResponseWriter, r *http.Request) {
	ator, err := h.atorFromRequest(r)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}

	lista, err := h.ocorrencias.Listar(r.Context(), ator)
	if err != nil {
		h.handleOcorrenciaError(w, err, false)
		return
	}

	WriteJSON(w, http.StatusOK, lista)
}

// DetalharOcorrencia devolve a visão completa de uma ocorrência.
func (h *Handler) DetalharOcorrencia(w http.ResponseWriter, r *http.Request) {
	ator, err := h.atorFromRequest(r)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	detalhe, err := h.ocorrencias.Detalhar(r.Context(), id, ator)
	if err != nil {
		h.handleOcorrenciaError(w, err, false)
		return
	}

	WriteJSON(w, http.StatusOK, detalhe)
}

// AtualizarStatus aplica nova situação à ocorrência.
func (h *Handler) AtualizarStatus(w http.ResponseWriter, r *http.Request) {
	ator, err := h.atorFromRequest(r)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	var payload struct {
		Status     string  `json:"status"`
		Observacao *string `json:"observacao"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	oc, err := h.ocorrencias.AtualizarStatus(r.Context(), id, ator, payload.Status, payload.Observacao)
	if err != nil {
		h.handleOcorrenciaError(w, err, false)
		return
	}

	WriteJSON(w, http.StatusOK, oc)
}

// ListarMensagens devolve o chat da ocorrência em ordem cronológica.
func (h *Handler) ListarMensagens(w http.ResponseWriter, r *http.Request) {
	ator, err := h.atorFromRequest(r)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	mensagens, err := h.ocorrencias.ListarMensagens(r.Context(), id, ator)
	if err != nil {
		h.handleOcorrenciaError(w, err, false)
		return
	}

	WriteJSON(w, http.StatusOK, mensagens)
}

// EnviarMensagem adiciona mensagem ao chat da ocorrência.
func (h *Handler) EnviarMensagem(w http.ResponseWriter, r *http.Request) {
	ator, err := h.atorFromRequest(r)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	var payload struct {
		Content string `json:"content"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	msg, err := h.ocorrencias.EnviarMensagem(r.Context(), id, ator, payload.Content)
	if err != nil {
		h.handleOcorrenciaError(w, err, false)
		return
	}

	WriteJSON(w, http.StatusCreated, msg)
}

// Estatisticas agrega contagens da instituição do atendente.
func (h *Handler) Estatisticas(w http.ResponseWriter, r *http.Request) {
	ator, err := h.atorFromRequest(r)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}

	stats, err := h.ocorrencias.Estatisticas(r.Context(), ator)
	if err != nil {
		h.handleOcorrenciaError(w, err, false)
		return
	}

	WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) atorFromRequest(r *http.Request) (ocorrencia.Ator, error) {
	subject, err := h.subjectUUID(r)
	if err != nil {
		return ocorrencia.Ator{}, err
	}

	tipo := httpmiddleware.GetTipo(r.Context())
	switch tipo {
	case repo.TipoCidadao:
		return ocorrencia.NovoAtorCidadao(subject), nil
	case repo.TipoAtendente:
		instituicao := httpmiddleware.GetInstituicao(r.Context())
		if strings.TrimSpace(instituicao) == "" {
			return ocorrencia.Ator{}, errors.New("instituição ausente no token")
		}
		return ocorrencia.NovoAtorAtendente(subject, instituicao), nil
	default:
		return ocorrencia.Ator{}, errors.New("tipo de usuário desconhecido")
	}
}

func (h *Handler) handleOcorrenciaError(w http.ResponseWriter, err error, criacao bool) {
	switch {
	case errors.Is(err, ocorrencia.ErrNotFound):
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "ocorrência não encontrada", nil)
	case errors.Is(err, ocorrencia.ErrAcessoNegado):
		WriteError(w, http.StatusForbidden, "FORBIDDEN", "acesso negado", nil)
	case errors.Is(err, ocorrencia.ErrStatusInvalido),
		errors.Is(err, ocorrencia.ErrTransicaoInvalida),
		errors.Is(err, ocorrencia.ErrMensagemVazia),
		errors.Is(err, ocorrencia.ErrTipoArquivo),
		errors.Is(err, ocorrencia.ErrArquivoGrande),
		errors.Is(err, ocorrencia.ErrMuitosArquivos):
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	case criacao:
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	default:
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
	}
}
