package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gotd/td/session"
	"github.com/rs/zerolog/log"

	"tg-topic-digest/internal/adapters/mtproto"
	"tg-topic-digest/internal/adapters/repo"
	"tg-topic-digest/internal/infra/config"
	"tg-topic-digest/internal/infra/db"
)

func main() {
	var (
		filePath    string
		sessionName string
	)
	flag.StringVar(&filePath, "file", "", "Path to gotd JSON, Telethon or Pyrogram session")
	flag.StringVar(&sessionName, "name", "", "Name of the MTProto session (default MTPROTO_SESSION_NAME)")
	flag.Parse()

	if filePath == "" {
		log.Fatal().Msg("session-importer: path to session file is required (-file)")
	}

	raw, err := os.ReadFile(filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("session-importer: failed to read session file")
	}
	sessionData, converted, err := mtproto.NormalizeSessionBytes(raw)
	if err != nil {
		log.Fatal().Err(err).Msg("session-importer: unsupported MTProto session format")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("session-importer: config")
	}
	if sessionName == "" {
		sessionName = cfg.MTProto.SessionName
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	target, err := store(ctx, cfg, sessionName, sessionData)
	if err != nil {
		cancel()
		log.Fatal().Err(err).Msg("session-importer: failed to store session")
	}

	if converted {
		fmt.Println("Session was converted to gotd JSON format before storing")
	}
	fmt.Printf("Stored MTProto session %q (%d bytes) in %s\n", sessionName, len(sessionData), target)
}

func store(ctx context.Context, cfg config.AppConfig, name string, data []byte) (string, error) {
	if cfg.PGDSN == "" {
		storage := &session.FileStorage{Path: cfg.MTProto.SessionFile}
		if err := storage.StoreSession(ctx, data); err != nil {
			return "", err
		}
		return cfg.MTProto.SessionFile, nil
	}

	pool, err := db.Connect(ctx, cfg.PGDSN)
	if err != nil {
		return "", err
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)
	if err := repoAdapter.EnsureSchema(ctx); err != nil {
		return "", err
	}
	if err := mtproto.NewSessionDB(repoAdapter, name).StoreSession(ctx, data); err != nil {
		return "", err
	}
	return "database", nil
}
