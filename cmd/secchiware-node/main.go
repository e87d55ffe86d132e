// Command secchiware-node runs a Secchiware Node: it registers with a
// C2 server, serves test listing/upload/delete/execution over a
// C2-signed HTTP API, and falls back to stand-alone execution when the
// C2 is unreachable at startup.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/secchiware/secchiware/config"
	"github.com/secchiware/secchiware/internal/logger"
	"github.com/secchiware/secchiware/pkg/loader"
	"github.com/secchiware/secchiware/pkg/node"
	"github.com/secchiware/secchiware/pkg/signing"
)

var rootCmd = &cobra.Command{
	Use:   "secchiware-node <config.yaml>",
	Short: "Run a Secchiware Node sandbox agent",
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

func run(configPath string) int {
	log := logger.NewDefaultLogger()

	cfg, err := config.LoadNodeConfig(configPath)
	if err != nil {
		log.Error("load config", logger.Error(err))
		return 2
	}

	keys := signing.NewStaticKeyStore(map[string]string{cfg.C2PublicKeyID: cfg.C2Secret})
	verifier := signing.NewVerifier(keys, nil, 0)

	n, err := node.New(cfg.TestRoot, verifier, log)
	if err != nil {
		log.Error("initialize node", logger.Error(err))
		return 2
	}

	platform := node.DetectPlatform()
	client := node.NewC2Client(fmt.Sprintf("http://%s:%d", cfg.C2Host, cfg.C2Port), cfg.KeyID, []byte(cfg.Secret), cfg.Timeout())

	if err := client.Register(cfg.ListenIP, cfg.ListenPort, platform); err != nil {
		log.Warn("c2 registration failed, running stand-alone", logger.Error(err))
		return runStandAlone(n)
	}

	return serve(n, client, cfg, log)
}

// runStandAlone executes every installed test once and prints the
// report array to standard output, per spec.md §4.3's registration
// fallback contract.
func runStandAlone(n *node.Node) int {
	reports, err := n.Execute(context.Background(), loader.Selector{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "stand-alone execution failed: %v\n", err)
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reports); err != nil {
		fmt.Fprintf(os.Stderr, "encode reports: %v\n", err)
		return 1
	}
	return 0
}

func serve(n *node.Node, client *node.C2Client, cfg *config.NodeConfig, log logger.Logger) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown := make(chan struct{})
	addr := fmt.Sprintf("%s:%d", cfg.ListenIP, cfg.ListenPort)
	server := node.NewServer(n, addr, func() { close(shutdown) })
	startErr := server.Start()

	select {
	case <-ctx.Done():
	case <-shutdown:
	case err, ok := <-startErr:
		if ok {
			log.Warn("node server failed to start, running stand-alone", logger.Error(err))
			if derr := client.Deregister(cfg.ListenIP, cfg.ListenPort); derr != nil {
				log.Warn("c2 deregistration failed", logger.Error(derr))
			}
			return runStandAlone(n)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeout())
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("server shutdown", logger.Error(err))
	}

	if err := client.Deregister(cfg.ListenIP, cfg.ListenPort); err != nil {
		log.Warn("c2 deregistration failed", logger.Error(err))
	}

	return 0
}
