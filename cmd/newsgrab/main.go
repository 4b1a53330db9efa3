// cmd/newsgrab/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/steltix/newsgrab/internal/config"
	"github.com/steltix/newsgrab/internal/output"
	"github.com/steltix/newsgrab/pkg/api"
	"github.com/steltix/newsgrab/pkg/types"
)

// Version information (set by build flags)
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "extract":
		runExtract(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "version":
		fmt.Printf("newsgrab %s (built %s)\n", version, buildTime)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `newsgrab extracts article content from news URLs.

Usage:
  newsgrab extract [flags] URL...
  newsgrab validate -config FILE
  newsgrab version

Extract flags:
  -config FILE   pipeline configuration (YAML)
  -format NAME   output format override (json, csv, excel, sqlite, ...)
  -file PATH     output file override
  -html FILE     extract from a local HTML file instead of fetching
`)
}

func runExtract(args []string) {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	configPath := fs.String("config", "", "pipeline configuration file")
	format := fs.String("format", "", "output format override")
	file := fs.String("file", "", "output file override")
	htmlPath := fs.String("html", "", "local HTML file to extract from")
	fs.Parse(args)

	urls := fs.Args()
	if len(urls) == 0 {
		fmt.Fprintln(os.Stderr, "extract: at least one URL is required")
		os.Exit(2)
	}
	if *htmlPath != "" && len(urls) != 1 {
		fmt.Fprintln(os.Stderr, "extract: -html applies to exactly one URL")
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fatal(err)
	}
	if *format != "" || *file != "" {
		if cfg.Output == nil {
			cfg.Output = &output.Config{}
		}
		if *format != "" {
			cfg.Output.Format = output.Format(*format)
		}
		if *file != "" {
			cfg.Output.File = *file
		}
	}

	client, err := api.NewClient(cfg)
	if err != nil {
		fatal(err)
	}
	defer client.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var results []*types.ArticleResult
	failures := 0
	for _, url := range urls {
		var result *types.ArticleResult
		var err error
		if *htmlPath != "" {
			var html []byte
			html, err = os.ReadFile(*htmlPath)
			if err == nil {
				result, err = client.ExtractHTML(ctx, url, string(html))
			}
		} else {
			result, err = client.Extract(ctx, url)
		}
		if err != nil {
			client.Logger().WithField("url", url).Errorf("extraction failed: %v", err)
			failures++
		}
		if result != nil {
			results = append(results, result)
		}
		if ctx.Err() != nil {
			break
		}
	}

	if cfg.Output != nil {
		if err := client.WriteResults(results); err != nil {
			fatal(err)
		}
	} else {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(results); err != nil {
			fatal(err)
		}
	}

	if failures > 0 {
		os.Exit(1)
	}
}

func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configPath := fs.String("config", "", "pipeline configuration file")
	fs.Parse(args)

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "validate: -config is required")
		os.Exit(2)
	}
	if _, err := config.LoadFromFile(*configPath); err != nil {
		fatal(err)
	}
	fmt.Printf("configuration %s is valid\n", *configPath)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadFromFile(path)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "newsgrab: %v\n", err)
	os.Exit(1)
}
