package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/bomilitar/plataforma/internal/auth"
	"github.com/bomilitar/plataforma/internal/config"
	"github.com/bomilitar/plataforma/internal/ocorrencia"
	"github.com/bomilitar/plataforma/internal/repo"
	"github.com/bomilitar/plataforma/internal/service"
	"github.com/bomilitar/plataforma/internal/storage"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	cfg := &config.Config{
		Port:            0,
		JWTSecret:       "segredo-de-teste-com-32-caracteres!!",
		JWTAccessTTL:    time.Hour,
		JWTRefreshTTL:   24 * time.Hour,
		MaxUploadBytes:  1024 * 1024,
		MaxUploadFiles:  5,
		Transicoes:      config.TransicoesLivres,
		RateLimitPublic: config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		RateLimitAuth:   config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
	}

	store := repo.NewMemoryStore()
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTTL)
	authService := service.NewAuthService(store, service.NewMemorySessions(), jwtMgr, cfg.JWTRefreshTTL)

	uploads, err := storage.NewDiskUploader(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskUploader: %v", err)
	}

	ocService := ocorrencia.NewService(ocorrencia.NewMemoryRepository(), store, uploads, ocorrencia.Options{
		Transicoes:     cfg.Transicoes,
		MaxUploadBytes: cfg.MaxUploadBytes,
		MaxUploadFiles: cfg.MaxUploadFiles,
	})

	return NewRouter(cfg, Deps{Auth: authService, Ocorrencias: ocService, Uploads: uploads})
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *ErrorBody      `json:"error"`
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, payload any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("resposta não é envelope JSON: %v (%s)", err, rec.Body.String())
	}
	return rec, env
}

func registrarCidadao(t *testing.T, router http.Handler, email string) (token string) {
	t.Helper()

	rec, env := doJSON(t, router, http.MethodPost, "/api/auth/cidadao/register", "", map[string]string{
		"nome":     "Maria Silva",
		"cpf":      "12345678901",
		"telefone": "11999990000",
		"email":    email,
		"senha":    "senha-forte",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register cidadao: status %d (%s)", rec.Code, rec.Body.String())
	}

	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.Token == "" {
		t.Fatalf("register cidadao sem token: %s", rec.Body.String())
	}
	return data.Token
}

func registrarAtendente(t *testing.T, router http.Handler, instituicao, matricula string) (token string) {
	t.Helper()

	rec, env := doJSON(t, router, http.MethodPost, "/api/auth/atendente/register", "", map[string]string{
		"nome":        "Sgt. Souza",
		"instituicao": instituicao,
		"matricula":   matricula,
		"telefone":    "11988887777",
		"email":       matricula + "@" + instituicao + ".example.com",
		"senha":       "senha-forte",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register atendente: status %d (%s)", rec.Code, rec.Body.String())
	}

	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.Token == "" {
		t.Fatalf("register atendente sem token: %s", rec.Body.String())
	}
	return data.Token
}

func criarOcorrencia(t *testing.T, router http.Handler, token string) string {
	t.Helper()

	rec, env := doJSON(t, router, http.MethodPost, "/api/occurrences", token, map[string]any{
		"tipoEmergencia": "pm",
		"tipoOcorrencia": "assalto",
		"descricao":      "Assalto em andamento",
		"endereco":       "Rua das Flores, 100",
		"latitude":       -23.55,
		"longitude":      -46.63,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("criar ocorrência: status %d (%s)", rec.Code, rec.Body.String())
	}

	var oc struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &oc); err != nil || oc.ID == "" {
		t.Fatalf("ocorrência sem id: %s", rec.Body.String())
	}
	return oc.ID
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)

	rec, _ := doJSON(t, router, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestRotasPrivadasExigemToken(t *testing.T) {
	router := newTestRouter(t)

	rec, env := doJSON(t, router, http.MethodGet, "/api/occurrences", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, esperava 401", rec.Code)
	}
	if env.Error == nil || env.Error.Code != "AUTH" {
		t.Fatalf("erro = %+v", env.Error)
	}
}

func TestRegisterELoginCidadao(t *testing.T) {
	router := newTestRouter(t)
	registrarCidadao(t, router, "maria@example.com")

	// Email duplicado cai em VALIDATION 400.
	rec, env := doJSON(t, router, http.MethodPost, "/api/auth/cidadao/register", "", map[string]string{
		"nome":     "Maria Clone",
		"cpf":      "98765432100",
		"telefone": "11999990001",
		"email":    "maria@example.com",
		"senha":    "senha-forte",
	})
	if rec.Code != http.StatusBadRequest || env.Error == nil || env.Error.Code != "VALIDATION" {
		t.Fatalf("duplicado: status %d erro %+v", rec.Code, env.Error)
	}

	rec, env = doJSON(t, router, http.MethodPost, "/api/auth/cidadao/login", "", map[string]string{
		"email": "maria@example.com",
		"senha": "senha-forte",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d (%s)", rec.Code, rec.Body.String())
	}

	var data struct {
		Token string          `json:"token"`
		User  json.RawMessage `json:"user"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.Token == "" {
		t.Fatalf("login sem token: %s", rec.Body.String())
	}

	rec, _ = doJSON(t, router, http.MethodPost, "/api/auth/cidadao/login", "", map[string]string{
		"email": "maria@example.com",
		"senha": "senha-errada",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("senha errada: status %d", rec.Code)
	}
}

func TestMe(t *testing.T) {
	router := newTestRouter(t)
	token := registrarCidadao(t, router, "maria@example.com")

	rec, env := doJSON(t, router, http.MethodGet, "/api/auth/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d (%s)", rec.Code, rec.Body.String())
	}

	var data struct {
		User struct {
			Tipo  string `json:"type"`
			Email string `json:"email"`
			CPF   string `json:"cpf"`
		} `json:"user"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if data.User.Tipo != "cidadao" || data.User.Email != "maria@example.com" || data.User.CPF != "12345678901" {
		t.Fatalf("user = %+v", data.User)
	}
}

func TestFluxoDeOcorrencia(t *testing.T) {
	router := newTestRouter(t)
	tokenCidadao := registrarCidadao(t, router, "maria@example.com")
	tokenPM := registrarAtendente(t, router, "pm", "PM-1234")
	tokenBombeiro := registrarAtendente(t, router, "bombeiros", "BM-9876")

	id := criarOcorrencia(t, router, tokenCidadao)

	// Atendente não cria ocorrência.
	rec, _ := doJSON(t, router, http.MethodPost, "/api/occurrences", tokenPM, map[string]any{
		"tipoEmergencia": "pm", "tipoOcorrencia": "x", "descricao": "x", "endereco": "x",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("atendente criando: status %d", rec.Code)
	}

	// Instituição errada não altera status.
	rec, _ = doJSON(t, router, http.MethodPatch, fmt.Sprintf("/api/occurrences/%s/status", id), tokenBombeiro, map[string]string{"status": "despachado"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("bombeiro alterando ocorrência da pm: status %d", rec.Code)
	}

	// Cidadão não alcança o PATCH de status.
	rec, _ = doJSON(t, router, http.MethodPatch, fmt.Sprintf("/api/occurrences/%s/status", id), tokenCidadao, map[string]string{"status": "despachado"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("cidadão alterando status: status %d", rec.Code)
	}

	rec, env := doJSON(t, router, http.MethodPatch, fmt.Sprintf("/api/occurrences/%s/status", id), tokenPM, map[string]string{"status": "despachado"})
	if rec.Code != http.StatusOK {
		t.Fatalf("pm alterando status: status %d (%s)", rec.Code, rec.Body.String())
	}
	var oc struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(env.Data, &oc); err != nil || oc.Status != "despachado" {
		t.Fatalf("status = %q (%s)", oc.Status, rec.Body.String())
	}

	// Chat: cidadã envia, atendente lê.
	rec, _ = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/occurrences/%s/messages", id), tokenCidadao, map[string]string{"content": "Estão armados"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("enviar mensagem: status %d (%s)", rec.Code, rec.Body.String())
	}

	rec, env = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/occurrences/%s/messages", id), tokenPM, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("listar mensagens: status %d", rec.Code)
	}
	var mensagens []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(env.Data, &mensagens); err != nil {
		t.Fatalf("decode mensagens: %v", err)
	}
	// Registro + transição + chat.
	if len(mensagens) != 3 {
		t.Fatalf("%d mensagens, esperava 3 (%s)", len(mensagens), rec.Body.String())
	}

	// Detalhe inclui histórico em ordem decrescente.
	rec, env = doJSON(t, router, http.MethodGet, "/api/occurrences/"+id, tokenPM, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("detalhe: status %d", rec.Code)
	}
	var detalhe struct {
		StatusHistory []struct {
			NewStatus string `json:"newStatus"`
		} `json:"statusHistory"`
		Cidadao struct {
			Nome string `json:"nome"`
			CPF  string `json:"cpf"`
		} `json:"cidadao"`
	}
	if err := json.Unmarshal(env.Data, &detalhe); err != nil {
		t.Fatalf("decode detalhe: %v", err)
	}
	if len(detalhe.StatusHistory) != 2 || detalhe.StatusHistory[0].NewStatus != "despachado" {
		t.Fatalf("statusHistory = %+v", detalhe.StatusHistory)
	}
	if detalhe.Cidadao.Nome != "Maria Silva" || detalhe.Cidadao.CPF == "" {
		t.Fatalf("cidadao = %+v", detalhe.Cidadao)
	}
}

func TestStats(t *testing.T) {
	router := newTestRouter(t)
	tokenCidadao := registrarCidadao(t, router, "maria@example.com")
	tokenPM := registrarAtendente(t, router, "pm", "PM-1234")

	criarOcorrencia(t, router, tokenCidadao)
	criarOcorrencia(t, router, tokenCidadao)

	// Cidadão não acessa estatísticas.
	rec, _ := doJSON(t, router, http.MethodGet, "/api/stats", tokenCidadao, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("cidadão em /api/stats: status %d", rec.Code)
	}

	rec, env := doJSON(t, router, http.MethodGet, "/api/stats", tokenPM, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d (%s)", rec.Code, rec.Body.String())
	}

	var stats struct {
		Aguardando int `json:"aguardando"`
		Total      int `json:"total"`
	}
	if err := json.Unmarshal(env.Data, &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Aguardando != 2 || stats.Total != 2 {
		t.Fatalf("stats = %+v", stats)
	}
}

func doMultipart(t *testing.T, router http.Handler, path, token string, arquivos map[string][]byte) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for nome, conteudo := range arquivos {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, nome))
		header.Set("Content-Type", "image/jpeg")
		part, err := mw.CreatePart(header)
		if err != nil {
			t.Fatalf("CreatePart: %v", err)
		}
		if _, err := part.Write(conteudo); err != nil {
			t.Fatalf("escrever parte: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("fechar multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("resposta não é envelope JSON: %v (%s)", err, rec.Body.String())
	}
	return rec, env
}

func TestUploadDeMedia(t *testing.T) {
	router := newTestRouter(t)
	cidadao := registrarCidadao(t, router, "maria@example.com")
	id := criarOcorrencia(t, router, cidadao)

	rec, env := doMultipart(t, router, "/api/occurrences/"+id+"/media", cidadao, map[string][]byte{
		"grande.jpg": bytes.Repeat([]byte("a"), 1024*1024+1),
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("arquivo acima do limite: status deveria ser 400, veio %d (%s)", rec.Code, rec.Body.String())
	}
	if env.Error == nil || env.Error.Code != "VALIDATION" {
		t.Fatalf("arquivo acima do limite: esperava VALIDATION, veio %s", rec.Body.String())
	}

	rec, env = doMultipart(t, router, "/api/occurrences/"+id+"/media", cidadao, map[string][]byte{
		"foto.jpg":  []byte("conteudo"),
		"vazio.jpg": nil,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload válido: status %d (%s)", rec.Code, rec.Body.String())
	}

	var medias []struct {
		Filename     string `json:"filename"`
		OriginalName string `json:"originalName"`
		Size         int64  `json:"size"`
	}
	if err := json.Unmarshal(env.Data, &medias); err != nil || len(medias) != 2 {
		t.Fatalf("esperava 2 mídias anexadas: %s", rec.Body.String())
	}

	for _, media := range medias {
		req := httptest.NewRequest(http.MethodGet, "/uploads/"+media.Filename, nil)
		req.Header.Set("Authorization", "Bearer "+cidadao)
		raw := httptest.NewRecorder()
		router.ServeHTTP(raw, req)
		if raw.Code != http.StatusOK {
			t.Fatalf("servir %s: status %d", media.OriginalName, raw.Code)
		}
		if int64(raw.Body.Len()) != media.Size {
			t.Fatalf("servir %s: esperava %d bytes, veio %d", media.OriginalName, media.Size, raw.Body.Len())
		}
	}
}
