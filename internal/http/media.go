package http

import (
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bomilitar/plataforma/internal/ocorrencia"
)

// AnexarMedia recebe multipart "files" e anexa os arquivos à ocorrência.
func (h *Handler) AnexarMedia(w http.ResponseWriter, r *http.Request) {
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

	limite := h.cfg.MaxUploadBytes * int64(h.cfg.MaxUploadFiles)
	r.Body = http.MaxBytesReader(w, r.Body, limite)

	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "upload excede o limite", nil)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "nenhum arquivo enviado", nil)
		return
	}

	uploads := make([]ocorrencia.Upload, 0, len(files))
	for _, header := range files {
		file, err := header.Open()
		if err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "arquivo ilegível", nil)
			return
		}

		conteudo, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "arquivo ilegível", nil)
			return
		}

		uploads = append(uploads, ocorrencia.Upload{
			NomeOriginal: header.Filename,
			MimeType:     header.Header.Get("Content-Type"),
			Tamanho:      int64(len(conteudo)),
			Conteudo:     conteudo,
		})
	}

	medias, err := h.ocorrencias.AnexarMedia(r.Context(), id, ator, uploads)
	if err != nil {
		h.handleOcorrenciaError(w, err, false)
		return
	}

	WriteJSON(w, http.StatusCreated, medias)
}

// ServirUpload entrega um arquivo salvo em disco.
func (h *Handler) ServirUpload(w http.ResponseWriter, r *http.Request) {
	if h.uploads == nil {
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "arquivo não encontrado", nil)
		return
	}

	caminho, err := h.uploads.Path(chi.URLParam(r, "filename"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "nome de arquivo inválido", nil)
		return
	}

	if _, err := os.Stat(caminho); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			WriteError(w, http.StatusNotFound, "NOT_FOUND", "arquivo não encontrado", nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro ao acessar arquivo", nil)
		return
	}

	http.ServeFile(w, r, caminho)
}
