package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bomilitar/plataforma/internal/db"
)

const schema = `
DO $$ BEGIN
    CREATE TYPE user_type AS ENUM ('cidadao', 'atendente');
EXCEPTION WHEN duplicate_object THEN NULL; END $$;

DO $$ BEGIN
    CREATE TYPE institution AS ENUM ('pm', 'bombeiros');
EXCEPTION WHEN duplicate_object THEN NULL; END $$;

DO $$ BEGIN
    CREATE TYPE occurrence_status AS ENUM ('aguardando', 'despachado', 'atendimento', 'concluido');
EXCEPTION WHEN duplicate_object THEN NULL; END $$;

DO $$ BEGIN
    CREATE TYPE message_role AS ENUM ('cidadao', 'atendente', 'sistema');
EXCEPTION WHEN duplicate_object THEN NULL; END $$;

CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    tipo user_type NOT NULL,
    nome TEXT NOT NULL,
    email TEXT NOT NULL UNIQUE,
    senha_hash TEXT NOT NULL,
    cpf TEXT,
    telefone TEXT,
    matricula TEXT,
    instituicao institution,
    criado_em TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS users_matricula_instituicao_idx
    ON users (instituicao, matricula)
    WHERE matricula IS NOT NULL;

CREATE TABLE IF NOT EXISTS occurrences (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    codigo TEXT NOT NULL UNIQUE,
    cidadao_id UUID NOT NULL REFERENCES users(id),
    tipo_emergencia institution NOT NULL,
    tipo_ocorrencia TEXT NOT NULL,
    status occurrence_status NOT NULL DEFAULT 'aguardando',
    descricao TEXT NOT NULL,
    endereco TEXT NOT NULL,
    latitude DOUBLE PRECISION NOT NULL DEFAULT 0,
    longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
    criado_em TIMESTAMPTZ NOT NULL DEFAULT now(),
    atualizado_em TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS occurrences_cidadao_idx ON occurrences (cidadao_id, criado_em DESC);
CREATE INDEX IF NOT EXISTS occurrences_instituicao_idx ON occurrences (tipo_emergencia, criado_em DESC);

CREATE TABLE IF NOT EXISTS status_history (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    occurrence_id UUID NOT NULL REFERENCES occurrences(id) ON DELETE CASCADE,
    usuario_id UUID REFERENCES users(id),
    status_anterior occurrence_status,
    novo_status occurrence_status NOT NULL,
    observacao TEXT,
    criado_em TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS status_history_occurrence_idx ON status_history (occurrence_id, criado_em);

CREATE TABLE IF NOT EXISTS messages (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    occurrence_id UUID NOT NULL REFERENCES occurrences(id) ON DELETE CASCADE,
    remetente_id UUID REFERENCES users(id),
    papel message_role NOT NULL,
    conteudo TEXT NOT NULL,
    criado_em TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS messages_occurrence_idx ON messages (occurrence_id, criado_em);

CREATE TABLE IF NOT EXISTS occurrence_media (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    occurrence_id UUID NOT NULL REFERENCES occurrences(id) ON DELETE CASCADE,
    arquivo TEXT NOT NULL,
    nome_original TEXT NOT NULL,
    mime_type TEXT NOT NULL,
    tamanho BIGINT NOT NULL,
    criado_em TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS occurrence_media_occurrence_idx ON occurrence_media (occurrence_id);

CREATE TABLE IF NOT EXISTS refresh_tokens (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    subject UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    tipo user_type NOT NULL,
    token_hash TEXT NOT NULL UNIQUE,
    expiracao TIMESTAMPTZ NOT NULL,
    revogado BOOLEAN NOT NULL DEFAULT FALSE,
    criado_em TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS refresh_tokens_subject_idx ON refresh_tokens (subject);
`

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	_ = godotenv.Load()

	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if dsn == "" {
		log.Fatal().Msg("defina DB_DSN ou DATABASE_URL")
	}

	ctx := context.Background()

	pool, err := db.NewPool(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("não foi possível conectar ao banco")
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, schema); err != nil {
		log.Fatal().Err(err).Msg("falha ao aplicar schema")
	}

	log.Info().Msg("schema aplicado")
}
