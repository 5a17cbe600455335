package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DiskUploader grava arquivos no diretório local servido em /uploads.
type DiskUploader struct {
	dir string
}

// NewDiskUploader garante a existência do diretório de destino.
func NewDiskUploader(dir string) (*DiskUploader, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("storage: diretório de uploads ausente")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: criar diretório de uploads: %w", err)
	}
	return &DiskUploader{dir: dir}, nil
}

// Upload persiste o corpo em disco. A chave é reduzida ao nome-base para
// impedir escrita fora do diretório configurado.
func (u *DiskUploader) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	if strings.TrimSpace(input.Key) == "" {
		return nil, errors.New("storage: chave do objeto obrigatória")
	}

	nome := filepath.Base(input.Key)
	destino := filepath.Join(u.dir, nome)
	if err := os.WriteFile(destino, input.Body, 0o644); err != nil {
		return nil, fmt.Errorf("storage: gravar arquivo: %w", err)
	}

	return &UploadResult{URL: "/uploads/" + nome}, nil
}

// Path devolve o caminho absoluto de um arquivo salvo, ou erro se o nome
// tentar escapar do diretório.
func (u *DiskUploader) Path(nome string) (string, error) {
	base := filepath.Base(nome)
	if base != nome || base == "." || base == ".." {
		return "", errors.New("storage: nome de arquivo inválido")
	}
	return filepath.Join(u.dir, base), nil
}
