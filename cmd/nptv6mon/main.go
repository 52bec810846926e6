// Command nptv6mon is a live operator dashboard over an NPTv6 translation
// domain: its current mapping table and engine counters, with an optional
// passive NDP/MLD sniffer running alongside.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/a2hop/nptv6/lib"
)

func main() {
	var (
		domainName  = flag.String("domain", "default", "Isolation domain name")
		configFile  = flag.String("config", "", "Optional control-plane batch file to load at startup (add/del/drop lines)")
		logLevel    = flag.String("log-level", "info", "debug|info|warn|error")
		refresh     = flag.Duration("refresh", 2*time.Second, "Dashboard refresh interval (e.g. 2s, 500ms)")
		sniff       = flag.Bool("sniff", false, "Also run a passive NDP/MLD sniffer alongside the dashboard (requires CAP_NET_RAW)")
		sniffIface  = flag.String("sniff-iface", "", "Optional interface to restrict the sniffer to")
		sniffWindow = flag.Duration("sniff-window", 15*time.Minute, "Sliding window for the sniffer's per-peer counts (e.g. 15m, 1h)")
		logPath     = flag.String("log-file", "nptv6mon.log", "Log file path (kept out of the TUI's alt screen)")
	)
	flag.Parse()

	level := parseLogLevel(*logLevel)

	logFile, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	handler := slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler).With("component", "nptv6mon")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	hosts := lib.NewStaticInterfaceDirectory()
	transmit := &lib.RecordingTransmitter{}
	domain := lib.NewDomain(*domainName, hosts, transmit, logger.With("domain", *domainName))

	if *configFile != "" {
		data, err := os.ReadFile(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read config file: %v\n", err)
			os.Exit(1)
		}
		result := lib.ApplyBatch(domain.Table, string(data))
		logger.Info("loaded mapping config", "file", *configFile, "processed", result.Processed, "errors", result.Errors)
		for _, msg := range result.Messages {
			logger.Warn("config line rejected", "error", msg)
		}
	}

	// With --sniff, the dashboard gains an observed-peers panel fed by the
	// tracker: each peer the sniffer sees, cross-referenced against the
	// mapping table so uncovered addresses stand out as add candidates.
	source := lib.NewDashboardSource(domain)
	var sniffErrCh chan error
	if *sniff {
		tracker := lib.NewPeerTracker(*sniffWindow)
		sniffer := lib.NewSniffer(lib.SnifferConfig{
			Interface: *sniffIface,
			Logger:    logger.With("component", "sniffer"),
			Stats:     tracker,
		})
		sniffErrCh = make(chan error, 1)
		go func() {
			sniffErrCh <- sniffer.Run(ctx)
		}()
		source = lib.NewSnifferDashboardSource(domain, tracker)
		logger.Info("sniffer started", "iface", *sniffIface, "window", *sniffWindow)
	}

	logger.Info("starting dashboard", "domain", *domainName, "refresh", *refresh)

	if err := lib.RunDashboard(ctx, source, *refresh); err != nil {
		fmt.Fprintf(os.Stderr, "dashboard error: %v\n", err)
		cancel()
		os.Exit(1)
	}

	cancel()
	if sniffErrCh != nil {
		if err := <-sniffErrCh; err != nil && ctx.Err() == nil {
			logger.Error("sniffer error", "err", err)
		}
	}
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
