package ocorrencia

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bomilitar/plataforma/internal/config"
	"github.com/bomilitar/plataforma/internal/metrics"
	"github.com/bomilitar/plataforma/internal/repo"
	"github.com/bomilitar/plataforma/internal/storage"
	"github.com/bomilitar/plataforma/internal/util"
)

// mimePermitidos é a allow-list de upload de mídia.
var mimePermitidos = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
	"video/mp4":  {},
	"video/webm": {},
}

// UsuarioDiretorio resolve usuários para enriquecer listagens e mensagens.
type UsuarioDiretorio interface {
	GetUsuario(ctx context.Context, id uuid.UUID) (repo.Usuario, error)
}

// Options parametriza o serviço de ocorrências.
type Options struct {
	Transicoes     string
	MaxUploadBytes int64
	MaxUploadFiles int
}

// Service reúne o fluxo de atendimento, as regras de acesso e os efeitos
// colaterais (histórico e mensagens de sistema).
type Service struct {
	repo       Repository
	usuarios   UsuarioDiretorio
	uploader   storage.Uploader
	transicoes string
	maxBytes   int64
	maxFiles   int
}

// NewService cria o serviço de ocorrências.
func NewService(repository Repository, usuarios UsuarioDiretorio, uploader storage.Uploader, opts Options) *Service {
	if opts.Transicoes == "" {
		opts.Transicoes = config.TransicoesLivres
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 50 * 1024 * 1024
	}
	if opts.MaxUploadFiles <= 0 {
		opts.MaxUploadFiles = 5
	}
	return &Service{
		repo:       repository,
		usuarios:   usuarios,
		uploader:   uploader,
		transicoes: opts.Transicoes,
		maxBytes:   opts.MaxUploadBytes,
		maxFiles:   opts.MaxUploadFiles,
	}
}

// CriarInput agrupa os campos do registro de ocorrência.
type CriarInput struct {
	TipoEmergencia string
	TipoOcorrencia string
	Descricao      string
	Endereco       string
	Latitude       float64
	Longitude      float64
}

// ResumoCidadao é a visão reduzida do cidadão anexada às listagens.
type ResumoCidadao struct {
	ID       string `json:"id"`
	Nome     string `json:"nome"`
	Telefone string `json:"telefone"`
	CPF      string `json:"cpf,omitempty"`
}

// ComCidadao é uma ocorrência enriquecida com o resumo do cidadão.
type ComCidadao struct {
	Ocorrencia
	Cidadao *ResumoCidadao `json:"cidadao"`
}

// Detalhe é a visão completa devolvida por GET /api/occurrences/{id}.
type Detalhe struct {
	Ocorrencia
	Cidadao       *ResumoCidadao    `json:"cidadao"`
	Media         []Media           `json:"media"`
	StatusHistory []StatusHistorico `json:"statusHistory"`
}

// MensagemComRemetente anexa o nome de exibição do remetente.
type MensagemComRemetente struct {
	Mensagem
	RemetenteNome string `json:"senderName"`
}

// Estatisticas agrega contagens por situação para a instituição do atendente.
// O balde "atendimento" soma despachado + atendimento, como no painel original.
type Estatisticas struct {
	Aguardando  int `json:"aguardando"`
	Atendimento int `json:"atendimento"`
	Concluidos  int `json:"concluidos"`
	Total       int `json:"total"`
}

// Upload carrega um arquivo recebido no multipart.
type Upload struct {
	NomeOriginal string
	MimeType     string
	Tamanho      int64
	Conteudo     []byte
}

// Criar registra nova ocorrência com status aguardando, grava a entrada
// inicial de histórico (status anterior nulo) e a mensagem de sistema de
// boas-vindas, tudo em uma única operação atômica do repositório.
func (s *Service) Criar(ctx context.Context, cidadaoID uuid.UUID, input CriarInput) (*Ocorrencia, error) {
	if !repo.InstituicaoValida(input.TipoEmergencia) {
		return nil, errors.New("tipoEmergencia inválido")
	}
	if err := util.RequireString(input.TipoOcorrencia, "tipoOcorrencia"); err != nil {
		return nil, err
	}
	if err := util.RequireString(input.Descricao, "descricao"); err != nil {
		return nil, err
	}
	if err := util.RequireString(input.Endereco, "endereco"); err != nil {
		return nil, err
	}

	oc := Ocorrencia{
		Codigo:         GerarCodigo(),
		CidadaoID:      cidadaoID,
		TipoEmergencia: input.TipoEmergencia,
		TipoOcorrencia: strings.TrimSpace(input.TipoOcorrencia),
		Status:         StatusAguardando,
		Descricao:      strings.TrimSpace(input.Descricao),
		Endereco:       strings.TrimSpace(input.Endereco),
		Latitude:       input.Latitude,
		Longitude:      input.Longitude,
	}

	observacao := observacaoRegistro
	historico := StatusHistorico{
		UsuarioID:      &cidadaoID,
		StatusAnterior: nil,
		NovoStatus:     StatusAguardando,
		Observacao:     &observacao,
	}

	msg := Mensagem{
		RemetenteID: nil,
		Papel:       RemetenteSistema,
		Conteudo:    mensagemRegistro,
	}

	criada, err := s.repo.CriarOcorrencia(ctx, oc, historico, msg)
	if err != nil {
		return nil, err
	}

	metrics.OcorrenciaCriada(criada.TipoEmergencia)
	return &criada, nil
}

// AtualizarStatus aplica nova situação à ocorrência. Somente atendentes da
// instituição roteada podem alterar; cada alteração gera exatamente uma
// entrada de histórico e, para despachado/atendimento/concluido, uma mensagem
// de sistema fixa.
func (s *Service) AtualizarStatus(ctx context.Context, id uuid.UUID, ator Ator, novoStatus string, observacao *string) (*Ocorrencia, error) {
	if ator.Tipo != repo.TipoAtendente {
		return nil, ErrAcessoNegado
	}
	if !StatusValido(novoStatus) {
		return nil, ErrStatusInvalido
	}

	oc, err := s.repo.GetOcorrencia(ctx, id)
	if err != nil {
		return nil, err
	}
	if oc.TipoEmergencia != ator.Instituicao {
		return nil, ErrAcessoNegado
	}

	if s.transicoes == config.TransicoesSequenciais && !AvancoValido(oc.Status, novoStatus) {
		return nil, ErrTransicaoInvalida
	}

	anterior := oc.Status
	historico := StatusHistorico{
		UsuarioID:      &ator.ID,
		StatusAnterior: &anterior,
		NovoStatus:     novoStatus,
		Observacao:     normalizarObservacao(observacao),
	}

	var msg *Mensagem
	if conteudo, ok := mensagensDeStatus[novoStatus]; ok {
		msg = &Mensagem{Papel: RemetenteSistema, Conteudo: conteudo}
	}

	atualizada, err := s.repo.AtualizarStatus(ctx, id, novoStatus, historico, msg)
	if err != nil {
		return nil, err
	}

	metrics.StatusAlterado(anterior, novoStatus)
	return &atualizada, nil
}

// Listar devolve as ocorrências visíveis ao ator, mais recentes primeiro,
// enriquecidas com o resumo do cidadão.
func (s *Service) Listar(ctx context.Context, ator Ator) ([]ComCidadao, error) {
	var (
		ocorrencias []Ocorrencia
		err         error
	)

	switch ator.Tipo {
	case repo.TipoCidadao:
		ocorrencias, err = s.repo.ListarPorCidadao(ctx, ator.ID)
	case repo.TipoAtendente:
		ocorrencias, err = s.repo.ListarPorInstituicao(ctx, ator.Instituicao)
	default:
		return nil, ErrAcessoNegado
	}
	if err != nil {
		return nil, err
	}

	resultado := make([]ComCidadao, 0, len(ocorrencias))
	for _, oc := range ocorrencias {
		resultado = append(resultado, ComCidadao{
			Ocorrencia: oc,
			Cidadao:    s.resumoCidadao(ctx, oc.CidadaoID, false),
		})
	}
	return resultado, nil
}

// Detalhar devolve a ocorrência com cidadão, anexos e trilha de status
// (mais recente primeiro). Aplica as regras de visibilidade do ator.
func (s *Service) Detalhar(ctx context.Context, id uuid.UUID, ator Ator) (*Detalhe, error) {
	oc, err := s.repo.GetOcorrencia(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := autorizar(oc, ator); err != nil {
		return nil, err
	}

	medias, err := s.repo.ListarMedia(ctx, id)
	if err != nil {
		return nil, err
	}
	if medias == nil {
		medias = []Media{}
	}

	historico, err := s.repo.ListarHistorico(ctx, id)
	if err != nil {
		return nil, err
	}
	if historico == nil {
		historico = []StatusHistorico{}
	}

	return &Detalhe{
		Ocorrencia:    oc,
		Cidadao:       s.resumoCidadao(ctx, oc.CidadaoID, true),
		Media:         medias,
		StatusHistory: historico,
	}, nil
}

// ListarMensagens devolve o chat em ordem cronológica com nomes de exibição.
func (s *Service) ListarMensagens(ctx context.Context, id uuid.UUID, ator Ator) ([]MensagemComRemetente, error) {
	oc, err := s.repo.GetOcorrencia(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := autorizar(oc, ator); err != nil {
		return nil, err
	}

	mensagens, err := s.repo.ListarMensagens(ctx, id)
	if err != nil {
		return nil, err
	}

	resultado := make([]MensagemComRemetente, 0, len(mensagens))
	for _, msg := range mensagens {
		resultado = append(resultado, MensagemComRemetente{
			Mensagem:      msg,
			RemetenteNome: s.nomeRemetente(ctx, msg.RemetenteID),
		})
	}
	return resultado, nil
}

// EnviarMensagem adiciona mensagem do ator ao chat da ocorrência.
func (s *Service) EnviarMensagem(ctx context.Context, id uuid.UUID, ator Ator, conteudo string) (*MensagemComRemetente, error) {
	if strings.TrimSpace(conteudo) == "" {
		return nil, ErrMensagemVazia
	}

	oc, err := s.repo.GetOcorrencia(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := autorizar(oc, ator); err != nil {
		return nil, err
	}

	remetenteID := ator.ID
	msg, err := s.repo.CriarMensagem(ctx, Mensagem{
		OcorrenciaID: id,
		RemetenteID:  &remetenteID,
		Papel:        ator.Tipo,
		Conteudo:     strings.TrimSpace(conteudo),
	})
	if err != nil {
		return nil, err
	}

	return &MensagemComRemetente{
		Mensagem:      msg,
		RemetenteNome: s.nomeRemetente(ctx, msg.RemetenteID),
	}, nil
}

// AnexarMedia valida, grava e registra os arquivos enviados. Arquivos fora da
// allow-list de MIME ou acima do limite derrubam a requisição inteira antes de
// qualquer gravação.
func (s *Service) AnexarMedia(ctx context.Context, id uuid.UUID, ator Ator, uploads []Upload) ([]Media, error) {
	if len(uploads) > s.maxFiles {
		return nil, ErrMuitosArquivos
	}

	oc, err := s.repo.GetOcorrencia(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := autorizar(oc, ator); err != nil {
		return nil, err
	}

	for _, up := range uploads {
		if _, ok := mimePermitidos[strings.ToLower(up.MimeType)]; !ok {
			return nil, ErrTipoArquivo
		}
		if up.Tamanho > s.maxBytes {
			return nil, ErrArquivoGrande
		}
	}

	medias := make([]Media, 0, len(uploads))
	for _, up := range uploads {
		key := gerarNomeArquivo(up.NomeOriginal)
		if _, err := s.uploader.Upload(ctx, storage.UploadInput{
			Key:         key,
			Body:        up.Conteudo,
			ContentType: up.MimeType,
		}); err != nil {
			return nil, err
		}

		media, err := s.repo.CriarMedia(ctx, Media{
			OcorrenciaID: id,
			Arquivo:      key,
			NomeOriginal: up.NomeOriginal,
			MimeType:     up.MimeType,
			Tamanho:      up.Tamanho,
		})
		if err != nil {
			return nil, err
		}
		medias = append(medias, media)
	}

	return medias, nil
}

// Estatisticas agrega contagens da instituição do atendente.
func (s *Service) Estatisticas(ctx context.Context, ator Ator) (*Estatisticas, error) {
	if ator.Tipo != repo.TipoAtendente {
		return nil, ErrAcessoNegado
	}

	ocorrencias, err := s.repo.ListarPorInstituicao(ctx, ator.Instituicao)
	if err != nil {
		return nil, err
	}

	stats := &Estatisticas{Total: len(ocorrencias)}
	for _, oc := range ocorrencias {
		switch oc.Status {
		case StatusAguardando:
			stats.Aguardando++
		case StatusDespachado, StatusAtendimento:
			stats.Atendimento++
		case StatusConcluido:
			stats.Concluidos++
		}
	}
	return stats, nil
}

func (s *Service) resumoCidadao(ctx context.Context, cidadaoID uuid.UUID, comCPF bool) *ResumoCidadao {
	usuario, err := s.usuarios.GetUsuario(ctx, cidadaoID)
	if err != nil {
		return nil
	}

	resumo := &ResumoCidadao{
		ID:       usuario.ID.String(),
		Nome:     usuario.Nome,
		Telefone: usuario.Telefone(),
	}
	if comCPF && usuario.Cidadao != nil {
		resumo.CPF = usuario.Cidadao.CPF
	}
	return resumo
}

func (s *Service) nomeRemetente(ctx context.Context, remetenteID *uuid.UUID) string {
	if remetenteID == nil {
		return "Sistema"
	}
	usuario, err := s.usuarios.GetUsuario(ctx, *remetenteID)
	if err != nil {
		return "Usuário"
	}
	return usuario.Nome
}

func normalizarObservacao(observacao *string) *string {
	if observacao == nil {
		return nil
	}
	texto := strings.TrimSpace(*observacao)
	if texto == "" {
		return nil
	}
	return &texto
}

// gerarNomeArquivo imita o padrão <timestamp>-<aleatório><ext> dos uploads.
func gerarNomeArquivo(nomeOriginal string) string {
	ext := strings.ToLower(filepath.Ext(nomeOriginal))
	return fmt.Sprintf("%d-%09d%s", time.Now().UnixMilli(), rand.Intn(1_000_000_000), ext)
}
