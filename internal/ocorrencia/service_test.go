package ocorrencia

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/google/uuid"

	"github.com/bomilitar/plataforma/internal/config"
	"github.com/bomilitar/plataforma/internal/repo"
	"github.com/bomilitar/plataforma/internal/storage"
)

func newTestService(t *testing.T, opts Options) (*Service, *repo.MemoryStore) {
	t.Helper()

	store := repo.NewMemoryStore()
	svc := NewService(NewMemoryRepository(), store, storage.NoopUploader{}, opts)
	return svc, store
}

func criarCidadao(t *testing.T, store *repo.MemoryStore, nome, email string) repo.Usuario {
	t.Helper()

	usuario, err := store.CreateUsuario(context.Background(), repo.NovoCidadao(nome, email, "hash", "12345678901", "11999990000"))
	if err != nil {
		t.Fatalf("CreateUsuario: %v", err)
	}
	return usuario
}

func criarAtendente(t *testing.T, store *repo.MemoryStore, instituicao string) repo.Usuario {
	t.Helper()

	usuario, err := store.CreateUsuario(context.Background(), repo.NovoAtendente("Atendente", instituicao+"@example.com", "hash", "MAT-1", instituicao, ""))
	if err != nil {
		t.Fatalf("CreateUsuario: %v", err)
	}
	return usuario
}

func entradaPadrao() CriarInput {
	return CriarInput{
		TipoEmergencia: repo.InstituicaoPM,
		TipoOcorrencia: "assalto",
		Descricao:      "Assalto em andamento",
		Endereco:       "Rua das Flores, 100",
		Latitude:       -23.55,
		Longitude:      -46.63,
	}
}

func TestCriarOcorrencia(t *testing.T) {
	svc, store := newTestService(t, Options{})
	ctx := context.Background()
	cidadao := criarCidadao(t, store, "Maria", "maria@example.com")

	oc, err := svc.Criar(ctx, cidadao.ID, entradaPadrao())
	if err != nil {
		t.Fatalf("Criar: %v", err)
	}

	if oc.Status != StatusAguardando {
		t.Fatalf("status = %q, esperava aguardando", oc.Status)
	}
	if matched := regexp.MustCompile(`^BO-\d{4}-\d{6}$`).MatchString(oc.Codigo); !matched {
		t.Fatalf("codigo = %q, não segue BO-<ano>-<6 dígitos>", oc.Codigo)
	}

	ator := NovoAtorCidadao(cidadao.ID)

	detalhe, err := svc.Detalhar(ctx, oc.ID, ator)
	if err != nil {
		t.Fatalf("Detalhar: %v", err)
	}
	if len(detalhe.StatusHistory) != 1 {
		t.Fatalf("histórico com %d entradas, esperava 1", len(detalhe.StatusHistory))
	}
	entrada := detalhe.StatusHistory[0]
	if entrada.StatusAnterior != nil {
		t.Fatalf("previousStatus = %v, esperava nulo", *entrada.StatusAnterior)
	}
	if entrada.NovoStatus != StatusAguardando {
		t.Fatalf("newStatus = %q", entrada.NovoStatus)
	}
	if entrada.UsuarioID == nil || *entrada.UsuarioID != cidadao.ID {
		t.Fatal("entrada inicial deveria registrar o cidadão")
	}
	if detalhe.Cidadao == nil || detalhe.Cidadao.CPF == "" {
		t.Fatal("detalhe deveria incluir cidadão com CPF")
	}

	mensagens, err := svc.ListarMensagens(ctx, oc.ID, ator)
	if err != nil {
		t.Fatalf("ListarMensagens: %v", err)
	}
	if len(mensagens) != 1 {
		t.Fatalf("%d mensagens, esperava 1 de sistema", len(mensagens))
	}
	if mensagens[0].Papel != RemetenteSistema || mensagens[0].RemetenteNome != "Sistema" {
		t.Fatalf("mensagem inicial papel=%q remetente=%q", mensagens[0].Papel, mensagens[0].RemetenteNome)
	}
}

func TestAtualizarStatusPorInstituicao(t *testing.T) {
	svc, store := newTestService(t, Options{})
	ctx := context.Background()
	cidadao := criarCidadao(t, store, "Maria", "maria@example.com")
	pm := criarAtendente(t, store, repo.InstituicaoPM)
	bombeiro := criarAtendente(t, store, repo.InstituicaoBombeiros)

	oc, err := svc.Criar(ctx, cidadao.ID, entradaPadrao())
	if err != nil {
		t.Fatalf("Criar: %v", err)
	}

	// Atendente de outra instituição não altera.
	atorBombeiro := NovoAtorAtendente(bombeiro.ID, repo.InstituicaoBombeiros)
	if _, err := svc.AtualizarStatus(ctx, oc.ID, atorBombeiro, StatusDespachado, nil); !errors.Is(err, ErrAcessoNegado) {
		t.Fatalf("instituição errada: esperava ErrAcessoNegado, veio %v", err)
	}

	// Cidadão não altera status.
	if _, err := svc.AtualizarStatus(ctx, oc.ID, NovoAtorCidadao(cidadao.ID), StatusDespachado, nil); !errors.Is(err, ErrAcessoNegado) {
		t.Fatalf("cidadão: esperava ErrAcessoNegado, veio %v", err)
	}

	atorPM := NovoAtorAtendente(pm.ID, repo.InstituicaoPM)
	atualizada, err := svc.AtualizarStatus(ctx, oc.ID, atorPM, StatusDespachado, nil)
	if err != nil {
		t.Fatalf("AtualizarStatus: %v", err)
	}
	if atualizada.Status != StatusDespachado {
		t.Fatalf("status = %q", atualizada.Status)
	}

	if _, err := svc.AtualizarStatus(ctx, oc.ID, atorPM, "inexistente", nil); !errors.Is(err, ErrStatusInvalido) {
		t.Fatalf("status desconhecido: esperava ErrStatusInvalido, veio %v", err)
	}

	detalhe, err := svc.Detalhar(ctx, oc.ID, atorPM)
	if err != nil {
		t.Fatalf("Detalhar: %v", err)
	}
	if len(detalhe.StatusHistory) != 2 {
		t.Fatalf("histórico com %d entradas, esperava 2", len(detalhe.StatusHistory))
	}
	// Mais recente primeiro.
	if detalhe.StatusHistory[0].NovoStatus != StatusDespachado {
		t.Fatalf("primeira entrada = %q, esperava despachado", detalhe.StatusHistory[0].NovoStatus)
	}
	if detalhe.StatusHistory[0].StatusAnterior == nil || *detalhe.StatusHistory[0].StatusAnterior != StatusAguardando {
		t.Fatal("previousStatus da transição deveria ser aguardando")
	}

	mensagens, err := svc.ListarMensagens(ctx, oc.ID, atorPM)
	if err != nil {
		t.Fatalf("ListarMensagens: %v", err)
	}
	ultima := mensagens[len(mensagens)-1]
	if ultima.Papel != RemetenteSistema || ultima.Conteudo != "Equipe despachada para o local." {
		t.Fatalf("mensagem de sistema inesperada: %q", ultima.Conteudo)
	}
}

func TestAtualizarStatusSequencial(t *testing.T) {
	svc, store := newTestService(t, Options{Transicoes: config.TransicoesSequenciais})
	ctx := context.Background()
	cidadao := criarCidadao(t, store, "Maria", "maria@example.com")
	pm := criarAtendente(t, store, repo.InstituicaoPM)
	ator := NovoAtorAtendente(pm.ID, repo.InstituicaoPM)

	oc, err := svc.Criar(ctx, cidadao.ID, entradaPadrao())
	if err != nil {
		t.Fatalf("Criar: %v", err)
	}

	if _, err := svc.AtualizarStatus(ctx, oc.ID, ator, StatusDespachado, nil); err != nil {
		t.Fatalf("avanço válido: %v", err)
	}

	// Retroceder é rejeitado no modo sequencial.
	if _, err := svc.AtualizarStatus(ctx, oc.ID, ator, StatusAguardando, nil); !errors.Is(err, ErrTransicaoInvalida) {
		t.Fatalf("retrocesso: esperava ErrTransicaoInvalida, veio %v", err)
	}

	// Pular etapas adiante é permitido.
	if _, err := svc.AtualizarStatus(ctx, oc.ID, ator, StatusConcluido, nil); err != nil {
		t.Fatalf("salto adiante: %v", err)
	}
}

func TestVisibilidadePorPapel(t *testing.T) {
	svc, store := newTestService(t, Options{})
	ctx := context.Background()
	maria := criarCidadao(t, store, "Maria", "maria@example.com")
	joao := criarCidadao(t, store, "João", "joao@example.com")
	pm := criarAtendente(t, store, repo.InstituicaoPM)
	bombeiro := criarAtendente(t, store, repo.InstituicaoBombeiros)

	oc, err := svc.Criar(ctx, maria.ID, entradaPadrao())
	if err != nil {
		t.Fatalf("Criar: %v", err)
	}

	if _, err := svc.Detalhar(ctx, oc.ID, NovoAtorCidadao(joao.ID)); !errors.Is(err, ErrAcessoNegado) {
		t.Fatalf("outro cidadão: esperava ErrAcessoNegado, veio %v", err)
	}
	if _, err := svc.Detalhar(ctx, oc.ID, NovoAtorAtendente(bombeiro.ID, repo.InstituicaoBombeiros)); !errors.Is(err, ErrAcessoNegado) {
		t.Fatalf("outra instituição: esperava ErrAcessoNegado, veio %v", err)
	}
	if _, err := svc.Detalhar(ctx, oc.ID, NovoAtorAtendente(pm.ID, repo.InstituicaoPM)); err != nil {
		t.Fatalf("instituição correta: %v", err)
	}

	listaJoao, err := svc.Listar(ctx, NovoAtorCidadao(joao.ID))
	if err != nil {
		t.Fatalf("Listar: %v", err)
	}
	if len(listaJoao) != 0 {
		t.Fatalf("João enxerga %d ocorrências, esperava 0", len(listaJoao))
	}

	listaPM, err := svc.Listar(ctx, NovoAtorAtendente(pm.ID, repo.InstituicaoPM))
	if err != nil {
		t.Fatalf("Listar: %v", err)
	}
	if len(listaPM) != 1 {
		t.Fatalf("PM enxerga %d ocorrências, esperava 1", len(listaPM))
	}
	if listaPM[0].Cidadao == nil || listaPM[0].Cidadao.Nome != "Maria" {
		t.Fatal("listagem deveria incluir resumo do cidadão")
	}
	if listaPM[0].Cidadao.CPF != "" {
		t.Fatal("listagem não deveria expor CPF")
	}
}

func TestListarOrdenadoPorCriacao(t *testing.T) {
	svc, store := newTestService(t, Options{})
	ctx := context.Background()
	cidadao := criarCidadao(t, store, "Maria", "maria@example.com")

	primeira, err := svc.Criar(ctx, cidadao.ID, entradaPadrao())
	if err != nil {
		t.Fatalf("Criar: %v", err)
	}
	segunda, err := svc.Criar(ctx, cidadao.ID, entradaPadrao())
	if err != nil {
		t.Fatalf("Criar: %v", err)
	}

	lista, err := svc.Listar(ctx, NovoAtorCidadao(cidadao.ID))
	if err != nil {
		t.Fatalf("Listar: %v", err)
	}
	if len(lista) != 2 {
		t.Fatalf("%d ocorrências, esperava 2", len(lista))
	}
	if lista[0].ID != segunda.ID || lista[1].ID != primeira.ID {
		t.Fatal("listagem deveria vir da mais recente para a mais antiga")
	}
}

func TestMensagensDoChat(t *testing.T) {
	svc, store := newTestService(t, Options{})
	ctx := context.Background()
	cidadao := criarCidadao(t, store, "Maria", "maria@example.com")
	pm := criarAtendente(t, store, repo.InstituicaoPM)

	oc, err := svc.Criar(ctx, cidadao.ID, entradaPadrao())
	if err != nil {
		t.Fatalf("Criar: %v", err)
	}

	atorCidadao := NovoAtorCidadao(cidadao.ID)
	atorPM := NovoAtorAtendente(pm.ID, repo.InstituicaoPM)

	if _, err := svc.EnviarMensagem(ctx, oc.ID, atorCidadao, "   "); !errors.Is(err, ErrMensagemVazia) {
		t.Fatalf("mensagem em branco: esperava ErrMensagemVazia, veio %v", err)
	}

	if _, err := svc.EnviarMensagem(ctx, oc.ID, atorCidadao, "Estão armados"); err != nil {
		t.Fatalf("EnviarMensagem cidadão: %v", err)
	}
	msg, err := svc.EnviarMensagem(ctx, oc.ID, atorPM, "Viatura a caminho")
	if err != nil {
		t.Fatalf("EnviarMensagem atendente: %v", err)
	}
	if msg.Papel != repo.TipoAtendente || msg.RemetenteNome != "Atendente" {
		t.Fatalf("papel=%q remetente=%q", msg.Papel, msg.RemetenteNome)
	}

	mensagens, err := svc.ListarMensagens(ctx, oc.ID, atorCidadao)
	if err != nil {
		t.Fatalf("ListarMensagens: %v", err)
	}
	if len(mensagens) != 3 {
		t.Fatalf("%d mensagens, esperava 3", len(mensagens))
	}
	// Ordem cronológica: sistema, cidadão, atendente.
	if mensagens[0].Papel != RemetenteSistema || mensagens[1].Papel != repo.TipoCidadao || mensagens[2].Papel != repo.TipoAtendente {
		t.Fatalf("ordem inesperada: %q %q %q", mensagens[0].Papel, mensagens[1].Papel, mensagens[2].Papel)
	}
	if mensagens[1].RemetenteNome != "Maria" {
		t.Fatalf("senderName = %q", mensagens[1].RemetenteNome)
	}
}

func TestAnexarMediaValidacoes(t *testing.T) {
	svc, store := newTestService(t, Options{MaxUploadBytes: 1024, MaxUploadFiles: 2})
	ctx := context.Background()
	cidadao := criarCidadao(t, store, "Maria", "maria@example.com")
	ator := NovoAtorCidadao(cidadao.ID)

	oc, err := svc.Criar(ctx, cidadao.ID, entradaPadrao())
	if err != nil {
		t.Fatalf("Criar: %v", err)
	}

	valido := Upload{NomeOriginal: "foto.jpg", MimeType: "image/jpeg", Tamanho: 10, Conteudo: []byte("0123456789")}

	if _, err := svc.AnexarMedia(ctx, oc.ID, ator, []Upload{valido, valido, valido}); !errors.Is(err, ErrMuitosArquivos) {
		t.Fatalf("acima do limite de arquivos: esperava ErrMuitosArquivos, veio %v", err)
	}

	executavel := valido
	executavel.NomeOriginal = "virus.exe"
	executavel.MimeType = "application/octet-stream"
	if _, err := svc.AnexarMedia(ctx, oc.ID, ator, []Upload{executavel}); !errors.Is(err, ErrTipoArquivo) {
		t.Fatalf("MIME proibido: esperava ErrTipoArquivo, veio %v", err)
	}

	grande := valido
	grande.Tamanho = 2048
	if _, err := svc.AnexarMedia(ctx, oc.ID, ator, []Upload{grande}); !errors.Is(err, ErrArquivoGrande) {
		t.Fatalf("arquivo grande: esperava ErrArquivoGrande, veio %v", err)
	}
}

func TestEstatisticasPorInstituicao(t *testing.T) {
	svc, store := newTestService(t, Options{})
	ctx := context.Background()
	cidadao := criarCidadao(t, store, "Maria", "maria@example.com")
	pm := criarAtendente(t, store, repo.InstituicaoPM)
	atorPM := NovoAtorAtendente(pm.ID, repo.InstituicaoPM)

	abertas := make([]*Ocorrencia, 0, 4)
	for i := 0; i < 4; i++ {
		oc, err := svc.Criar(ctx, cidadao.ID, entradaPadrao())
		if err != nil {
			t.Fatalf("Criar: %v", err)
		}
		abertas = append(abertas, oc)
	}

	// Ocorrência de outra instituição não entra na conta.
	entradaBombeiros := entradaPadrao()
	entradaBombeiros.TipoEmergencia = repo.InstituicaoBombeiros
	if _, err := svc.Criar(ctx, cidadao.ID, entradaBombeiros); err != nil {
		t.Fatalf("Criar: %v", err)
	}

	if _, err := svc.AtualizarStatus(ctx, abertas[0].ID, atorPM, StatusDespachado, nil); err != nil {
		t.Fatalf("AtualizarStatus: %v", err)
	}
	if _, err := svc.AtualizarStatus(ctx, abertas[1].ID, atorPM, StatusAtendimento, nil); err != nil {
		t.Fatalf("AtualizarStatus: %v", err)
	}
	if _, err := svc.AtualizarStatus(ctx, abertas[2].ID, atorPM, StatusConcluido, nil); err != nil {
		t.Fatalf("AtualizarStatus: %v", err)
	}

	stats, err := svc.Estatisticas(ctx, atorPM)
	if err != nil {
		t.Fatalf("Estatisticas: %v", err)
	}
	if stats.Total != 4 {
		t.Fatalf("total = %d, esperava 4", stats.Total)
	}
	if stats.Aguardando != 1 || stats.Atendimento != 2 || stats.Concluidos != 1 {
		t.Fatalf("buckets = %+v", stats)
	}

	if _, err := svc.Estatisticas(ctx, NovoAtorCidadao(cidadao.ID)); !errors.Is(err, ErrAcessoNegado) {
		t.Fatalf("cidadão: esperava ErrAcessoNegado, veio %v", err)
	}
}

func TestCriarOcorrenciaCodigoDuplicado(t *testing.T) {
	repoMem := NewMemoryRepository()
	ctx := context.Background()

	oc := Ocorrencia{
		Codigo:         "BO-2026-000001",
		CidadaoID:      uuid.New(),
		TipoEmergencia: repo.InstituicaoPM,
		Status:         StatusAguardando,
	}

	if _, err := repoMem.CriarOcorrencia(ctx, oc, StatusHistorico{NovoStatus: StatusAguardando}, Mensagem{Papel: RemetenteSistema}); err != nil {
		t.Fatalf("CriarOcorrencia: %v", err)
	}

	if _, err := repoMem.CriarOcorrencia(ctx, oc, StatusHistorico{NovoStatus: StatusAguardando}, Mensagem{Papel: RemetenteSistema}); !errors.Is(err, ErrCodigoDuplicado) {
		t.Fatalf("código repetido: esperava ErrCodigoDuplicado, veio %v", err)
	}
}
