package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/doc-images/pkg/mcp"
	"github.com/Sriram-PR/doc-images/pkg/orchestrate"
)

// runMcpServer handles the mcp-server subcommand
func runMcpServer(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("mcp-server", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configFile := fs.String("config", "", "Path to YAML config file (defaults apply when empty)")
	transport := fs.String("transport", "stdio", "Transport type (stdio, sse)")
	port := fs.Int("port", 8080, "HTTP port (for sse transport)")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error)")
	metricsAddr := fs.String("metrics-addr", "", "Serve Prometheus metrics on this address")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: doc-images mcp-server [options]

Start an MCP (Model Context Protocol) server for AI tool integration.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(stderr, `
Examples:
  # Start with stdio transport
  doc-images mcp-server -config config.yaml

  # Start with SSE transport on port 8080
  doc-images mcp-server -config config.yaml -transport sse -port 8080

Available MCP Tools:
  place_images       Place image references into document sections
  inspect_image      Fetch metadata for one image URL
  should_skip_image  Check an image URL and alt text against the skip rules
`)
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}
	return doMcpServer(*configFile, *transport, *port, *logLevel, *metricsAddr, stderr)
}

// doMcpServer is the testable implementation of the MCP server
func doMcpServer(configPath, transport string, port int, logLevel, metricsAddr string, stderr io.Writer) int {
	// MCP protocol uses stdout, logs go to stderr
	log := logrus.New()
	log.SetOutput(stderr)
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		fmt.Fprintf(stderr, "Invalid log level: %s\n", logLevel)
		return 1
	}
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})

	if transport != "stdio" && transport != "sse" {
		fmt.Fprintf(stderr, "Unsupported transport: %s\n", transport)
		return 1
	}

	appCfg, err := loadAndValidateConfig(configPath, nil, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}

	svc, err := orchestrate.New(appCfg, logrus.NewEntry(log))
	if err != nil {
		fmt.Fprintf(stderr, "Error creating service: %v\n", err)
		return 1
	}
	svc.Start()
	startMetrics(metricsAddr, log)

	server, err := mcp.NewServer(&mcp.ServerConfig{
		Service:   svc,
		Transport: transport,
		Port:      port,
		Logger:    log,
	})
	if err != nil {
		svc.Close()
		fmt.Fprintf(stderr, "Error creating MCP server: %v\n", err)
		return 1
	}

	log.Infof("Starting MCP server (transport: %s)", transport)
	runErr := server.Run()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Warnf("Shutdown: %v", err)
	}

	if runErr != nil {
		fmt.Fprintf(stderr, "MCP server error: %v\n", runErr)
		return 1
	}
	return 0
}
