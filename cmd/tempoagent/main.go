package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/effective-security/tempoagent/agent"
	"github.com/effective-security/tempoagent/assistants"
	"github.com/effective-security/tempoagent/callbacks"
	"github.com/effective-security/tempoagent/config"
	"github.com/effective-security/tempoagent/jira"
	"github.com/effective-security/tempoagent/pkg/llmfactory"
	"github.com/effective-security/tempoagent/store"
	"github.com/effective-security/tempoagent/tempo"
	"github.com/effective-security/tempoagent/tools/worklog"
	"github.com/effective-security/tempoagent/web"
	"github.com/effective-security/xlog"
	goredis "github.com/redis/go-redis/v9"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/tempoagent", "main")

func main() {
	var (
		cfgFile    = flag.String("cfg", "tempoagent.yaml", "configuration file")
		listenAddr = flag.String("listen", "", "listen address override")
	)
	flag.Parse()

	if err := run(*cfgFile, *listenAddr); err != nil {
		logger.KV(xlog.ERROR, "reason", "run", "err", err.Error())
		os.Exit(1)
	}
}

func run(cfgFile, listenAddr string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.Server.ListenAddr = listenAddr
	}

	jiraClient, err := jira.NewClient(cfg.Jira)
	if err != nil {
		return err
	}
	tempoClient, err := tempo.NewClient(cfg.Tempo)
	if err != nil {
		return err
	}

	history := newStore(cfg)

	model, err := llmfactory.New(&cfg.LLM).DefaultModel()
	if err != nil {
		return err
	}

	prov := worklog.NewProvider(jiraClient, tempoClient)
	assistant := agent.NewAssistant(model, prov,
		assistants.WithStore(history),
		assistants.WithTemperature(0.3),
		assistants.WithCallback(callbacks.NewPackageLogger(logger)),
	)

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           web.NewServer(assistant, history).Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.KV(xlog.INFO, "status", "listening", "addr", cfg.Server.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.KV(xlog.INFO, "status", "shutting_down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func newStore(cfg *config.Config) store.MessageStore {
	if cfg.Redis.Addr == "" {
		return store.NewMemoryStore()
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	logger.KV(xlog.INFO, "status", "using_redis_store", "addr", cfg.Redis.Addr)
	return store.NewRedisStore(client, cfg.Redis.Prefix)
}
