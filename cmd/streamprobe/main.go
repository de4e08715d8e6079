// Command streamprobe checks streamed chat responses: it waits for the
// token stream to settle, measures time-to-first-token and total
// latency, and scores the answer against an expectation.
//
// Usage:
//
//	streamprobe -demo                          # self-contained demo against a local chat page
//	streamprobe -url https://... -selector X   # watch one element until its stream settles
//	streamprobe -config probe.yaml -mcp        # serve the probe tools over MCP stdio
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/streamprobe/browser"
	"github.com/hazyhaar/streamprobe/probe"
)

func main() {
	configPath := flag.String("config", "", "path to probe.yaml config file")
	pageURL := flag.String("url", "", "watch a single page element until its stream settles")
	selector := flag.String("selector", "", "CSS selector of the streamed element (with -url)")
	expected := flag.String("expected", "", "expected answer for similarity scoring (with -url)")
	minScore := flag.Float64("min-score", probe.DefaultMinScore, "similarity pass threshold (with -expected)")
	demo := flag.Bool("demo", false, "run the built-in streaming chat demo")
	mcpMode := flag.Bool("mcp", false, "serve probe tools over MCP stdio")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *pageURL, *selector, *expected, *minScore, *demo, *mcpMode); err != nil {
		logger.Error("streamprobe: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, pageURL, selector, expected string, minScore float64, demo, mcpMode bool) error {
	cfg := probe.DefaultConfig()
	if configPath != "" {
		loaded, err := probe.LoadConfigFile(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	if demo {
		return runDemo(ctx, logger, cfg)
	}
	if mcpMode {
		return runMCP(ctx, logger, cfg)
	}
	if pageURL != "" {
		if selector == "" {
			return fmt.Errorf("-url needs -selector")
		}
		return runSingle(ctx, logger, cfg, pageURL, selector, expected, minScore)
	}

	fmt.Fprintln(os.Stderr, "usage: streamprobe -demo | -url <url> -selector <css> | -mcp [-config <file>]")
	os.Exit(1)
	return nil
}

func runSingle(ctx context.Context, logger *slog.Logger, cfg *probe.Config, pageURL, selector, expected string, minScore float64) error {
	p, err := probe.New(cfg, probe.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := p.Start(ctx); err != nil {
		return err
	}
	defer p.Stop()

	session, err := p.OpenPage(ctx, pageURL)
	if err != nil {
		return err
	}
	defer session.Close()

	res, err := p.CheckResponse(ctx, session, probe.CheckSpec{
		Response: browser.CSS(selector),
		Expected: expected,
		MinScore: minScore,
	})
	if err != nil {
		return err
	}

	data, _ := json.MarshalIndent(res, "", "  ")
	os.Stdout.Write(data)
	os.Stdout.Write([]byte("\n"))
	return nil
}

func runMCP(ctx context.Context, logger *slog.Logger, cfg *probe.Config) error {
	p, err := probe.New(cfg, probe.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := p.Start(ctx); err != nil {
		return err
	}
	defer p.Stop()

	srv := mcp.NewServer(&mcp.Implementation{Name: "streamprobe", Version: "0.1.0"}, nil)
	probe.RegisterMCP(srv, p)

	logger.Info("streamprobe: serving MCP on stdio")
	return srv.Run(ctx, &mcp.StdioTransport{})
}

func fmtDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000)
}
