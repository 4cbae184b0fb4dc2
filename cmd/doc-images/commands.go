package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/doc-images/pkg/config"
	"github.com/Sriram-PR/doc-images/pkg/models"
	"github.com/Sriram-PR/doc-images/pkg/orchestrate"
	"github.com/Sriram-PR/doc-images/pkg/process"
)

func registerCommon(fs *flag.FlagSet) *commonFlags {
	f := &commonFlags{}
	fs.StringVar(&f.configFile, "config", "", "Path to YAML config file (defaults apply when empty)")
	fs.StringVar(&f.logLevel, "loglevel", "info", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. localhost:9090")
	return f
}

// runPlace handles the place subcommand
func runPlace(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("place", flag.ContinueOnError)
	fs.SetOutput(stderr)
	common := registerCommon(fs)
	input := fs.String("input", "-", "Document JSON ({sections, markdown, images, pages, sitemaps}); '-' reads stdin")
	markdownFile := fs.String("markdown", "", "Markdown file to split into sections when the document has none")
	output := fs.String("output", "-", "Result JSON path; '-' writes stdout")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: doc-images place [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var req orchestrate.PlaceRequest
	if err := readJSON(*input, stdin, &req); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if *markdownFile != "" {
		data, err := os.ReadFile(*markdownFile)
		if err != nil {
			fmt.Fprintf(stderr, "Error: read markdown: %v\n", err)
			return 1
		}
		req.Markdown = string(data)
	}

	svc, _, err := newService(*common, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer svc.Close()

	res, err := svc.Place(ctx, req)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if err := writeJSON(*output, stdout, res); err != nil {
		fmt.Fprintf(stderr, "Error writing result: %v\n", err)
		return 1
	}
	return 0
}

// runInspect handles the inspect subcommand
func runInspect(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	common := registerCommon(fs)
	imgURL := fs.String("url", "", "Image URL (required)")
	alt := fs.String("alt", "", "Alt text")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *imgURL == "" {
		fmt.Fprintln(stderr, "Error: -url is required")
		return 2
	}

	svc, _, err := newService(*common, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer svc.Close()

	res := svc.Inspect(ctx, models.ImageRef{URL: *imgURL, Alt: *alt})
	if err := writeJSON("-", stdout, res); err != nil {
		fmt.Fprintf(stderr, "Error writing result: %v\n", err)
		return 1
	}
	if !res.IsValid {
		return 1
	}
	return 0
}

// runDiscover handles the discover subcommand. Positional arguments are page
// URLs, extended by the pages listed in -sitemap. -file parses a local HTML
// file instead, resolving against -base.
func runDiscover(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("discover", flag.ContinueOnError)
	fs.SetOutput(stderr)
	common := registerCommon(fs)
	file := fs.String("file", "", "Local HTML file to scan instead of fetching pages")
	base := fs.String("base", "", "Base URL for relative image sources in -file")
	sitemaps := fs.String("sitemap", "", "Comma-separated sitemap URLs whose pages are scanned")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: doc-images discover [options] [page-url ...]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *file != "" {
		log := setupLogger(common.logLevel, stderr)
		res, err := discoverFile(*file, *base, logrus.NewEntry(log))
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		if err := writeJSON("-", stdout, res); err != nil {
			fmt.Fprintf(stderr, "Error writing result: %v\n", err)
			return 1
		}
		return 0
	}

	pages := fs.Args()
	sitemapURLs := splitList(*sitemaps)
	if len(pages) == 0 && len(sitemapURLs) == 0 {
		fmt.Fprintln(stderr, "Error: give page URLs, -sitemap or -file")
		return 2
	}
	svc, _, err := newService(*common, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer svc.Close()

	if len(sitemapURLs) > 0 {
		listed, err := svc.ExpandSitemaps(ctx, sitemapURLs)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		pages = append(pages, listed...)
	}

	res := svc.Discover(ctx, pages)
	if err := writeJSON("-", stdout, res); err != nil {
		fmt.Fprintf(stderr, "Error writing result: %v\n", err)
		return 1
	}
	for _, p := range res.Pages {
		if p.Error != "" {
			return 1
		}
	}
	return 0
}

func discoverFile(path, base string, log *logrus.Entry) (*orchestrate.DiscoverResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := process.ParseHTML(f)
	if err != nil {
		return nil, err
	}
	return &orchestrate.DiscoverResult{
		Images:   process.ExtractImageRefs(doc.Selection, base, log),
		Sections: process.SectionsFromHTML(doc, base),
	}, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// flagSet reports whether name was given on the command line
func flagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// runExport handles the export subcommand
func runExport(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(stderr)
	common := registerCommon(fs)
	input := fs.String("input", "-", "Placed document JSON (output of 'place'); '-' reads stdin")
	outDir := fs.String("out", "", "Directory for image files (defaults to export.output_dir)")
	maxImages := fs.Int("max-images", 0, "Override export.max_images (0 exports nothing, negative disables the limit)")
	noProxy := fs.Bool("no-proxy", false, "Bypass the caching proxy")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var doc struct {
		Sections []models.Section `json:"sections"`
	}
	if err := readJSON(*input, stdin, &doc); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	common.override = func(cfg *config.AppConfig) {
		if flagSet(fs, "max-images") {
			cfg.Export.MaxImages = maxImages
		}
		if *noProxy {
			off := false
			cfg.Export.UseProxyCache = &off
		}
	}
	svc, appCfg, err := newService(*common, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer svc.Close()

	dir := *outDir
	if dir == "" {
		dir = appCfg.Export.OutputDir
	}
	res, err := svc.Export(ctx, doc.Sections, dir)
	if res != nil {
		if werr := writeJSON("-", stdout, res); werr != nil {
			fmt.Fprintf(stderr, "Error writing result: %v\n", werr)
			return 1
		}
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// runValidate handles the validate subcommand
func runValidate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	return doValidate(*configFile, stdout, stderr)
}

func doValidate(configPath string, stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	confidence, _, _ := config.GetEffectiveThresholds(appCfg.Placement)
	fmt.Fprintf(stdout, "OK: cache=%s hashing=%s confidence=%.2f bounds=%dx%d..%dx%d\n",
		appCfg.Cache.Backend, appCfg.Hashing.Mode, confidence,
		appCfg.Validation.MinWidth, appCfg.Validation.MinHeight, appCfg.Validation.MaxWidth, appCfg.Validation.MaxHeight)
	if len(appCfg.Validation.DisallowedImageDomains) > 0 || len(appCfg.Validation.AllowedImageDomains) > 0 {
		fmt.Fprintf(stdout, "OK: domain filters allow=[%s] deny=[%s]\n",
			strings.Join(appCfg.Validation.AllowedImageDomains, ","), strings.Join(appCfg.Validation.DisallowedImageDomains, ","))
	}
	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}
