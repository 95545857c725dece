// cmd/preflight validates credentials and sink reachability without
// starting the monitor loop. It exits non-zero on the first failure so it
// can gate deployments.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"mssp-monitor/internal/config"
	"mssp-monitor/internal/directory"
	"mssp-monitor/internal/export"
	"mssp-monitor/internal/falcon"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fail("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client, err := falcon.NewClient(cfg.Falcon, &http.Client{Timeout: 30 * time.Second}, logger)
	if err != nil {
		fail("build falcon client: %v", err)
	}

	if err := client.Authenticate(ctx); err != nil {
		fail("crowdstrike authentication: %v", err)
	}
	fmt.Println("crowdstrike authentication: ok")

	parentCID, err := client.ParentCID(ctx)
	if err != nil {
		fail("resolve parent CID: %v", err)
	}
	fmt.Printf("parent CID: %s\n", parentCID)

	dir := directory.New(client, parentCID, cfg.Monitor.ParentDisplayName, cfg.PinnedSet(), logger)
	tenants, err := dir.Discover(ctx)
	if err != nil {
		fail("tenant discovery: %v", err)
	}
	fmt.Printf("discovered tenants: %d (pinned: %d)\n", len(tenants), len(cfg.PinnedSet()))

	influx := export.NewInfluxSink(cfg.InfluxDB, logger)
	defer influx.Close()
	if err := influx.Ping(ctx); err != nil {
		fail("influxdb health: %v", err)
	}
	fmt.Println("influxdb health: ok")

	fmt.Println("preflight passed")
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "preflight failed: "+format+"\n", args...)
	os.Exit(1)
}
