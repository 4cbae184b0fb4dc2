package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/doc-images/pkg/config"
	"github.com/Sriram-PR/doc-images/pkg/metrics"
	"github.com/Sriram-PR/doc-images/pkg/orchestrate"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var code int
	switch os.Args[1] {
	case "place":
		code = runPlace(ctx, os.Args[2:], os.Stdin, os.Stdout, os.Stderr)
	case "inspect":
		code = runInspect(ctx, os.Args[2:], os.Stdout, os.Stderr)
	case "discover":
		code = runDiscover(ctx, os.Args[2:], os.Stdout, os.Stderr)
	case "export":
		code = runExport(ctx, os.Args[2:], os.Stdin, os.Stdout, os.Stderr)
	case "validate":
		code = runValidate(os.Args[2:], os.Stdout, os.Stderr)
	case "mcp-server":
		code = runMcpServer(os.Args[2:], os.Stderr)
	case "version":
		fmt.Printf("doc-images %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		code = 1
	}
	stop()
	os.Exit(code)
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `doc-images - Image ingestion and placement for generated documentation

Usage:
  doc-images <command> [options]

Commands:
  place       Place images into document sections (JSON in, JSON out)
  inspect     Fetch and report metadata for one image URL
  discover    List image references found in HTML pages or files
  export      Limit, fetch and write the images of a placed document
  validate    Validate configuration file
  mcp-server  Start MCP server for AI tool integration
  version     Show version info

Run 'doc-images <command> -h' for command-specific help.`)
}

// loadConfig loads and parses the config file. An empty path yields the defaults.
// The result is not validated yet.
func loadConfig(path string) (*config.AppConfig, error) {
	if path == "" {
		return &config.AppConfig{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg config.AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// setupLogger builds the CLI logger. Logs always go to out so stdout stays clean for results.
func setupLogger(logLevelStr string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	} else {
		log.SetLevel(level)
	}
	return log
}

// loadAndValidateConfig loads the config file, validates it, and logs warnings.
func loadAndValidateConfig(configFile string, override func(*config.AppConfig), log *logrus.Logger) (*config.AppConfig, error) {
	if configFile != "" {
		log.Debugf("Loading configuration from %s", configFile)
	}
	appCfg, err := loadConfig(configFile)
	if err != nil {
		return nil, err
	}
	if override != nil {
		override(appCfg)
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		return nil, err
	}
	return appCfg, nil
}

// startMetrics serves /metrics on addr if addr is non-empty.
func startMetrics(addr string, log *logrus.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	go func() {
		log.Infof("Serving metrics at http://%s/metrics", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Errorf("Metrics server error: %v", err)
		}
	}()
}

// commonFlags are shared by every command that builds a Service
type commonFlags struct {
	configFile  string
	logLevel    string
	metricsAddr string
	override    func(*config.AppConfig) // applied before validation
}

// newService builds and starts a Service from the common flags
func newService(f commonFlags, stderr io.Writer) (*orchestrate.Service, *config.AppConfig, error) {
	log := setupLogger(f.logLevel, stderr)
	appCfg, err := loadAndValidateConfig(f.configFile, f.override, log)
	if err != nil {
		return nil, nil, err
	}
	svc, err := orchestrate.New(appCfg, logrus.NewEntry(log))
	if err != nil {
		return nil, nil, err
	}
	svc.Start()
	startMetrics(f.metricsAddr, log)
	return svc, appCfg, nil
}

// readJSON decodes JSON from path, or from stdin when path is "" or "-"
func readJSON(path string, stdin io.Reader, v interface{}) error {
	r := stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decode input: %w", err)
	}
	return nil
}

// writeJSON writes v as indented JSON to path, or to stdout when path is "" or "-"
func writeJSON(path string, stdout io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "" || path == "-" {
		_, err = stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0644)
}
