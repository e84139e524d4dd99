// Command arbitragedex wires configuration, transport, monitor,
// detector, sink, and metrics server into the running process.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arbitragedex/arbitragedex/configs"
	"github.com/arbitragedex/arbitragedex/monitor"
	"github.com/arbitragedex/arbitragedex/opportunity"
	"github.com/arbitragedex/arbitragedex/sink/mysqlsink"
	"github.com/arbitragedex/arbitragedex/transport"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to config.yml")
	flag.Parse()

	cfg, err := configs.Load(*configPath)
	if err != nil {
		log.Fatalf("arbitragedex: load config: %v", err)
	}

	pools, err := cfg.ToPoolConfigs()
	if err != nil {
		log.Fatalf("arbitragedex: pool config: %v", err)
	}

	t, err := transport.Dial(cfg.RPC)
	if err != nil {
		log.Fatalf("arbitragedex: dial RPC: %v", err)
	}

	m, err := monitor.New(cfg.ToMonitorConfig(), t, pools)
	if err != nil {
		log.Fatalf("arbitragedex: construct monitor: %v", err)
	}

	var opportunitySink opportunity.Sink
	if cfg.Sink.Driver == "mysql" {
		s, err := mysqlsink.New(cfg.Sink.DSN)
		if err != nil {
			log.Fatalf("arbitragedex: construct sink: %v", err)
		}
		defer s.Close()
		opportunitySink = s
	}

	detector := opportunity.New(cfg.ToDetectorConfig(), opportunitySink)
	detector.Attach(m)
	defer detector.Detach()

	if cfg.Metrics.ListenAddr != "" {
		go serveMetrics(cfg.Metrics.ListenAddr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	log.Printf("arbitragedex: running with %d configured pools", len(pools))
	waitForShutdown()
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Printf("arbitragedex: metrics listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("arbitragedex: metrics server stopped: %v", err)
	}
}

func waitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("arbitragedex: shutting down")
}
