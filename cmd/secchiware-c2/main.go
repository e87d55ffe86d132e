// Command secchiware-c2 runs the Secchiware C2: the central service
// that tracks registered Nodes, persists sessions/executions/reports,
// replicates test packages, and proxies execution requests.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/secchiware/secchiware/config"
	"github.com/secchiware/secchiware/internal/logger"
	"github.com/secchiware/secchiware/pkg/broker"
	brokermem "github.com/secchiware/secchiware/pkg/broker/memory"
	brokerredis "github.com/secchiware/secchiware/pkg/broker/redis"
	"github.com/secchiware/secchiware/pkg/c2"
	"github.com/secchiware/secchiware/pkg/c2/activetable"
	"github.com/secchiware/secchiware/pkg/c2/repository"
	"github.com/secchiware/secchiware/pkg/c2/store"
	storemem "github.com/secchiware/secchiware/pkg/c2/store/memory"
	"github.com/secchiware/secchiware/pkg/c2/store/postgres"
	"github.com/secchiware/secchiware/pkg/c2/sweeper"
	"github.com/secchiware/secchiware/pkg/signing"
)

var rootCmd = &cobra.Command{
	Use:   "secchiware-c2 <config-dir>",
	Short: "Run the Secchiware C2 control service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code := run(args[0])
		if code != 0 {
			os.Exit(code)
		}
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

func run(configDir string) int {
	log := logger.NewDefaultLogger()

	cfg, err := config.LoadC2Config(config.LoaderOptions{ConfigDir: configDir})
	if err != nil {
		log.Error("load config", logger.Error(err))
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		log.Error("initialize store", logger.Error(err))
		return 2
	}
	defer closeStore()

	brk, err := newBroker(cfg)
	if err != nil {
		log.Error("initialize broker", logger.Error(err))
		return 2
	}

	repo, err := repository.New(cfg.RepositoryRoot)
	if err != nil {
		log.Error("initialize repository", logger.Error(err))
		return 2
	}

	keys := signing.NewStaticKeyStore(cfg.Secrets)
	verifier := signing.NewVerifier(keys, brk, cfg.SkewWindow)

	tbl := activetable.New(brk, 0, cfg.LockTimeout)
	svc := c2.New(cfg, st, tbl, repo, brk, verifier, log)

	sw := sweeper.New(tbl, st.Sessions(), cfg.SelfKeyID, []byte(cfg.Secrets[cfg.SelfKeyID]), cfg.LivenessPeriod, log)
	go sw.Run(ctx)

	svc.Start(svc.Router(cfg.CORSAllowedOrigins))

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.NodeTimeout)
	defer cancel()
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error("server shutdown", logger.Error(err))
	}

	return 0
}

func newStore(ctx context.Context, cfg *config.C2Config) (store.Store, func(), error) {
	if cfg.Database.Host == "" {
		st := storemem.New()
		return st, func() {}, nil
	}

	st, err := postgres.NewStore(ctx, &postgres.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return nil, nil, err
	}
	return st, func() { st.Close() }, nil
}

func newBroker(cfg *config.C2Config) (broker.Broker, error) {
	switch cfg.Broker.Type {
	case "redis":
		return brokerredis.NewFromAddr(cfg.Broker.Addr), nil
	case "memory", "":
		return brokermem.New(), nil
	default:
		return nil, fmt.Errorf("unknown broker type %q", cfg.Broker.Type)
	}
}
