package auth

import (
	"errors"
	"testing"
	"time"
)

func TestHashEVerify(t *testing.T) {
	hash, err := Hash("senha-forte")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	ok, err := Verify("senha-forte", hash)
	if err != nil || !ok {
		t.Fatalf("Verify correta: ok=%v err=%v", ok, err)
	}

	ok, err = Verify("senha-errada", hash)
	if err != nil || ok {
		t.Fatalf("Verify errada: ok=%v err=%v", ok, err)
	}
}

func TestJWTRoundTrip(t *testing.T) {
	mgr := NewJWTManager("segredo-de-teste-com-32-caracteres!!", time.Hour)

	token, _, err := mgr.GenerateAccessToken("user-1", "atendente", "pm")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	claims, err := mgr.ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if claims.Subject != "user-1" || claims.Tipo != "atendente" || claims.Instituicao != "pm" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestJWTSegredoErrado(t *testing.T) {
	mgr := NewJWTManager("segredo-de-teste-com-32-caracteres!!", time.Hour)
	outro := NewJWTManager("outro-segredo-tambem-com-32-chars!!!", time.Hour)

	token, _, err := mgr.GenerateAccessToken("user-1", "cidadao", "")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	if _, err := outro.ParseAndValidate(token); !errors.Is(err, ErrTokenInvalido) {
		t.Fatalf("esperava ErrTokenInvalido, veio %v", err)
	}
}

func TestRefreshTokenHashDeterministico(t *testing.T) {
	raw, hash, err := GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}
	if raw == "" || hash == "" {
		t.Fatal("token ou hash vazio")
	}
	if HashRefreshToken(raw) != hash {
		t.Fatal("hash não é determinístico")
	}
}
