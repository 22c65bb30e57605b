//go:build linux

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/flowforge/cgnat/pkg/config"
	"github.com/flowforge/cgnat/pkg/engine"
	"github.com/flowforge/cgnat/pkg/fabric/afpacket"
	"github.com/flowforge/cgnat/pkg/guard"
	"github.com/flowforge/cgnat/pkg/stats"
	"github.com/flowforge/cgnat/pkg/telemetry"
	"github.com/flowforge/cgnat/pkg/worker"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the NAT dataplane",
	RunE:  runE,
}

func init() {
	config.BindFlags(runCmd, rootViper)
	rootCmd.AddCommand(runCmd)
}

func runE(cmd *cobra.Command, args []string) error {
	runID := uuid.New()

	cfgPath := rootViper.GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if v := rootViper.GetUint32("port_mask"); v != 0 {
		cfg.PortMask = v
	}
	if rootViper.IsSet("queue_count") {
		cfg.QueueCount = rootViper.GetInt("queue_count")
	}
	if rootViper.IsSet("promiscuous") {
		cfg.Promiscuous = rootViper.GetBool("promiscuous")
	}

	publicIPs, err := cfg.ParsedPublicIPs()
	if err != nil {
		return err
	}
	customerPrefix, err := cfg.CustomerPrefix()
	if err != nil {
		return err
	}

	if err := guard.InterfaceExists(cfg.Uplink); err != nil {
		return err
	}

	fmt.Printf("cgnatd starting run=%s queues=%d public_ips=%v\n", runID, cfg.QueueCount, publicIPs)

	g := guard.New(cfg.Uplink, publicIPs)
	if err := g.Setup(); err != nil {
		// advisory hardening per spec.md §4.L: log, don't fail init.
		fmt.Fprintf(os.Stderr, "cgnatd: kernel coexistence guard setup failed: %v\n", err)
	} else {
		defer g.Cleanup()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	eg, egCtx := errgroup.WithContext(ctx)
	blocks := make([]*stats.Block, cfg.QueueCount)

	for i := 0; i < cfg.QueueCount; i++ {
		coreID := i
		sessionBudget := cfg.SessionBudget / cfg.QueueCount
		coreCfg := engine.Config{
			CoreID:         coreID,
			SessionBudget:  sessionBudget,
			PublicIPs:      publicIPs,
			CustomerPrefix: customerPrefix,
		}
		coreCtx := engine.NewContext(coreCfg)
		blocks[coreID] = coreCtx.Counters

		queue, err := afpacket.Open(cfg.Uplink)
		if err != nil {
			cancel()
			return fmt.Errorf("opening queue for core %d: %w", coreID, err)
		}

		loop := worker.New(queue, coreCtx)
		eg.Go(func() error {
			defer queue.Close()
			return loop.Run(egCtx)
		})
	}

	agg := stats.NewAggregator(blocks, 0.001)

	if cfg.Telemetry.PrometheusEnabled {
		startHTTPSink(eg, egCtx, cfg.Telemetry.PrometheusAddr, telemetry.PrometheusHandler(agg))
	}
	if cfg.Telemetry.JSONEnabled {
		startHTTPSink(eg, egCtx, cfg.Telemetry.JSONAddr, http.HandlerFunc(telemetry.JSONHandler(agg)))
	}

	return eg.Wait()
}

// startHTTPSink runs an http.Server under the errgroup, shutting it down
// when ctx is cancelled so a telemetry sink failure or a signal tears
// down the whole process together, per spec.md §5's orchestration model.
func startHTTPSink(eg *errgroup.Group, ctx context.Context, addr string, handler http.Handler) {
	srv := &http.Server{Addr: addr, Handler: handler}
	eg.Go(func() error {
		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()
		select {
		case <-ctx.Done():
			return srv.Close()
		case err := <-errCh:
			if err == http.ErrServerClosed {
				return nil
			}
			return err
		}
	})
}
