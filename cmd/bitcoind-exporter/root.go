package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/oschwald/geoip2-golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/cirocosta/bitcoind-exporter/pkg/bitcoind"
	"github.com/cirocosta/bitcoind-exporter/pkg/collector"
	"github.com/cirocosta/bitcoind-exporter/pkg/exporter"
)

type command struct{}

func (c *command) Cmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "bitcoind-exporter",
		Short:        "Prometheus exporter for bitcoind metrics",
		RunE:         c.RunE,
		SilenceUsage: true,
	}

	flags := cmd.Flags()

	flags.String("config", "",
		"path to a config file (yaml, json or toml) whose keys are "+
			"named after the flags")
	_ = cmd.MarkFlagFilename("config")

	flags.String("bind-addr", ":9332",
		"address to bind the prometheus server to")

	flags.String("telemetry-path", "/metrics",
		"endpoint at which prometheus metrics are served")

	flags.Duration("scrape-timeout", 0,
		"maximum duration of a single collection (0 means bounded "+
			"only by the scraper)")

	flags.String("rpc-host", "localhost:8332",
		"host:port of the bitcoind instance to collect info from")

	flags.String("rpc-user", "",
		"username for bitcoind's rpc basic authentication")

	flags.String("rpc-password", "",
		"password for bitcoind's rpc basic authentication")

	flags.String("rpc-cookie-file", "",
		"path to bitcoind's .cookie file, used instead of user and "+
			"password when set")
	_ = cmd.MarkFlagFilename("rpc-cookie-file")

	flags.Bool("rpc-tls", false,
		"whether to use https to reach bitcoind's rpc server")

	flags.Duration("wait-for-node", 0,
		"how long to wait for bitcoind to be reachable before "+
			"serving (0 disables the check)")

	flags.String("geoip-filepath", "",
		"filepath of a geoip database file for ip to country "+
			"resolution of banned peers")
	_ = cmd.MarkFlagFilename("geoip-filepath")

	flags.Bool("prune-stale-bans", false,
		"stop reporting ban series for addresses that are not "+
			"banned anymore")

	flags.String("log-level", "info",
		"minimum level of the logs (debug, info, warn, error)")

	flags.String("log-format", "console",
		"format of the logs (console or json)")

	flags.String("log-file", "",
		"file to write logs to, rotated by size (defaults to stderr)")

	return cmd
}

func (c *command) RunE(cmd *cobra.Command, _ []string) error {
	v, err := newViper(cmd.Flags())
	if err != nil {
		return fmt.Errorf("new viper: %w", err)
	}

	cfg, err := loadConfig(v)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, cleanup, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("new logger: %w", err)
	}
	defer cleanup()

	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM,
	)
	defer cancel()

	client, err := bitcoind.NewClient(bitcoind.Config{
		Host:       cfg.RPCHost,
		User:       cfg.RPCUser,
		Password:   cfg.RPCPassword,
		CookieFile: cfg.RPCCookieFile,
		TLS:        cfg.RPCTLS,
	})
	if err != nil {
		return fmt.Errorf("new client '%s': %w", cfg.RPCHost, err)
	}
	defer client.Close()

	if cfg.WaitForNode > 0 {
		err = waitForNode(ctx, client,
			newReadinessBackOff(cfg.WaitForNode),
			log.WithName("readiness"),
		)
		if err != nil {
			return fmt.Errorf("wait for node '%s': %w", cfg.RPCHost, err)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	metrics, err := collector.NewMetrics(registry)
	if err != nil {
		return fmt.Errorf("new metrics: %w", err)
	}

	collectorOpts, closeGeoIP, err := collectorOptions(cfg, log)
	if err != nil {
		return fmt.Errorf("collector options: %w", err)
	}
	defer closeGeoIP()

	bitcoindCollector, err := collector.New(client, metrics, collectorOpts...)
	if err != nil {
		return fmt.Errorf("new collector: %w", err)
	}

	prometheusExporter, err := exporter.New(bitcoindCollector,
		exporter.WithBindAddress(cfg.BindAddr),
		exporter.WithTelemetryPath(cfg.TelemetryPath),
		exporter.WithScrapeTimeout(cfg.ScrapeTimeout),
		exporter.WithGatherer(registry),
		exporter.WithLogger(log.WithName("exporter")),
	)
	if err != nil {
		return fmt.Errorf("new exporter: %w", err)
	}
	defer prometheusExporter.Close()

	err = prometheusExporter.Run(ctx)
	if err != nil {
		return fmt.Errorf("prometheus exporter run: %w", err)
	}

	return nil
}

func collectorOptions(
	cfg *config, log logr.Logger,
) ([]collector.Option, func(), error) {
	opts := []collector.Option{
		collector.WithLogger(log.WithName("collector")),
	}

	if cfg.PruneStaleBans {
		opts = append(opts, collector.WithPruneStaleBans())
	}

	if cfg.GeoIPFilepath == "" {
		return opts, func() {}, nil
	}

	db, err := geoip2.Open(cfg.GeoIPFilepath)
	if err != nil {
		return nil, nil, fmt.Errorf("geoip open: %w", err)
	}

	countryMapper := func(ip net.IP) (string, error) {
		res, err := db.Country(ip)
		if err != nil {
			return "", fmt.Errorf(
				"country '%s': %w", ip, err,
			)
		}

		return res.RegisteredCountry.IsoCode, nil
	}

	opts = append(opts, collector.WithCountryMapper(countryMapper))

	return opts, func() { _ = db.Close() }, nil
}
