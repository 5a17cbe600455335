package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestDiskUploaderGravaArquivo(t *testing.T) {
	dir := t.TempDir()
	uploader, err := NewDiskUploader(dir)
	if err != nil {
		t.Fatalf("NewDiskUploader: %v", err)
	}

	res, err := uploader.Upload(context.Background(), UploadInput{Key: "foto.jpg", Body: []byte("conteudo"), ContentType: "image/jpeg"})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if res.URL != "/uploads/foto.jpg" {
		t.Fatalf("URL inesperada: %s", res.URL)
	}

	dados, err := os.ReadFile(filepath.Join(dir, "foto.jpg"))
	if err != nil || string(dados) != "conteudo" {
		t.Fatalf("arquivo gravado incorreto: %q (%v)", dados, err)
	}
}

func TestDiskUploaderAceitaCorpoVazio(t *testing.T) {
	dir := t.TempDir()
	uploader, err := NewDiskUploader(dir)
	if err != nil {
		t.Fatalf("NewDiskUploader: %v", err)
	}

	if _, err := uploader.Upload(context.Background(), UploadInput{Key: "vazio.jpg", ContentType: "image/jpeg"}); err != nil {
		t.Fatalf("corpo vazio deveria ser aceito: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "vazio.jpg"))
	if err != nil || info.Size() != 0 {
		t.Fatalf("esperava arquivo de 0 bytes: %v", err)
	}
}

func TestDiskUploaderPathBarraTraversal(t *testing.T) {
	uploader, err := NewDiskUploader(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskUploader: %v", err)
	}

	for _, nome := range []string{"../segredo", "a/b.jpg", "..", "."} {
		if _, err := uploader.Path(nome); err == nil {
			t.Fatalf("nome %q deveria ser rejeitado", nome)
		}
	}

	if _, err := uploader.Path("foto.jpg"); err != nil {
		t.Fatalf("nome válido rejeitado: %v", err)
	}
}
