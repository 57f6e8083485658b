package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/nickyhof/sqlbatch"
	"github.com/nickyhof/sqlbatch/config"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	port := flag.Int("port", 0, "TCP port to listen on (overrides config)")
	workDir := flag.String("workdir", "", "Directory for database files (overrides config)")
	journalDir := flag.String("journal", "", "Enable the batch journal in this directory")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("SQLBatch Server v%s\n", Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *workDir != "" {
		cfg.WorkDir = *workDir
	}
	if *journalDir != "" {
		cfg.Journal.Enabled = true
		cfg.Journal.Dir = *journalDir
	}

	instance, err := sqlbatch.Open(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to open sqlbatch")
	}
	defer instance.Close()

	server := NewServerWithAuth(instance.Plugin(nil), &cfg.Server.Auth)
	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	if cfg.Server.TLS.Enabled() {
		err = server.StartTLS(addr, cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
	} else {
		err = server.Start(addr)
	}
	if err != nil {
		log.WithError(err).Fatal("failed to start server")
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Printf("║   SQLBatch Server v%-18s  ║\n", Version)
	fmt.Println("║   Transactional SQL batch execution   ║")
	fmt.Println("╚═══════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("Listening on port %d (driver %s, auth %v, tls %v)\n",
		cfg.Server.Port, cfg.Driver, cfg.Server.Auth.Enabled, server.TLSEnabled())
	fmt.Println(`Send one {"action": ..., "args": ...} object per line, 'quit' to disconnect`)
	fmt.Println()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down")
	server.Stop()

	if instance.Journal != nil && cfg.Journal.RemoteURL != "" {
		if err := instance.PushJournal(context.Background()); err != nil {
			log.WithError(err).Error("push journal")
		}
	}
	log.Info("server stopped")
}
