package ocorrencia

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("ocorrência não encontrada")
	ErrAcessoNegado      = errors.New("acesso negado")
	ErrStatusInvalido    = errors.New("status inválido")
	ErrTransicaoInvalida = errors.New("transição de status não permitida")
	ErrMensagemVazia     = errors.New("mensagem obrigatória")
	ErrTipoArquivo       = errors.New("tipo de arquivo não permitido")
	ErrArquivoGrande     = errors.New("arquivo excede o tamanho máximo")
	ErrMuitosArquivos    = errors.New("quantidade de arquivos excede o limite")
	ErrCodigoDuplicado   = errors.New("código de ocorrência já utilizado")
)

const (
	StatusAguardando  = "aguardando"
	StatusDespachado  = "despachado"
	StatusAtendimento = "atendimento"
	StatusConcluido   = "concluido"

	RemetenteCidadao   = "cidadao"
	RemetenteAtendente = "atendente"
	RemetenteSistema   = "sistema"
)

var ordemStatus = map[string]int{
	StatusAguardando:  0,
	StatusDespachado:  1,
	StatusAtendimento: 2,
	StatusConcluido:   3,
}

// mensagensDeStatus são as mensagens de sistema disparadas pelas transições.
var mensagensDeStatus = map[string]string{
	StatusDespachado:  "Equipe despachada para o local.",
	StatusAtendimento: "Equipe chegou ao local e iniciou atendimento.",
	StatusConcluido:   "Ocorrência concluída.",
}

const (
	mensagemRegistro   = "Ocorrência registrada com sucesso. Aguardando atendimento."
	observacaoRegistro = "Ocorrência registrada pelo cidadão"
)

// StatusValido indica se o valor corresponde a um status do fluxo.
func StatusValido(status string) bool {
	_, ok := ordemStatus[status]
	return ok
}

// AvancoValido indica se a transição segue a ordem do fluxo de atendimento.
// Só é consultada no modo sequencial.
func AvancoValido(de, para string) bool {
	return ordemStatus[para] > ordemStatus[de]
}

// Ocorrencia representa um boletim de emergência registrado por um cidadão.
// A instituição (TipoEmergencia) é imutável após a criação: é a chave de
// roteamento que define quais atendentes enxergam o registro.
type Ocorrencia struct {
	ID             uuid.UUID `json:"id"`
	Codigo         string    `json:"codigo"`
	CidadaoID      uuid.UUID `json:"cidadaoId"`
	TipoEmergencia string    `json:"tipoEmergencia"`
	TipoOcorrencia string    `json:"tipoOcorrencia"`
	Status         string    `json:"status"`
	Descricao      string    `json:"descricao"`
	Endereco       string    `json:"endereco"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	CriadoEm       time.Time `json:"createdAt"`
	AtualizadoEm   time.Time `json:"updatedAt"`
}

// StatusHistorico é o registro imutável de uma transição de status.
// StatusAnterior é nulo apenas na entrada de criação.
type StatusHistorico struct {
	ID             uuid.UUID  `json:"id"`
	OcorrenciaID   uuid.UUID  `json:"occurrenceId"`
	UsuarioID      *uuid.UUID `json:"userId"`
	StatusAnterior *string    `json:"previousStatus"`
	NovoStatus     string     `json:"newStatus"`
	Observacao     *string    `json:"observacao"`
	CriadoEm       time.Time  `json:"createdAt"`
}

// Mensagem é uma entrada do chat da ocorrência. RemetenteID nulo indica
// mensagem gerada pelo sistema.
type Mensagem struct {
	ID           uuid.UUID  `json:"id"`
	OcorrenciaID uuid.UUID  `json:"occurrenceId"`
	RemetenteID  *uuid.UUID `json:"senderId"`
	Papel        string     `json:"role"`
	Conteudo     string     `json:"content"`
	CriadoEm     time.Time  `json:"createdAt"`
}

// Media descreve um arquivo anexado à ocorrência.
type Media struct {
	ID           uuid.UUID `json:"id"`
	OcorrenciaID uuid.UUID `json:"occurrenceId"`
	Arquivo      string    `json:"filename"`
	NomeOriginal string    `json:"originalName"`
	MimeType     string    `json:"mimeType"`
	Tamanho      int64     `json:"size"`
	CriadoEm     time.Time `json:"createdAt"`
}

// GerarCodigo produz um código BO-<ano>-<6 dígitos>. A unicidade não é
// verificada antes da inserção; a constraint única em codigo barra colisões.
func GerarCodigo() string {
	return fmt.Sprintf("BO-%d-%06d", time.Now().Year(), rand.Intn(1000000))
}
