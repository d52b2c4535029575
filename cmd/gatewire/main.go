// Command gatewire runs the reverse-proxy server assembled from a YAML
// configuration file: one virtual-hosts dispatcher routing to one
// Pipeline per configured host, each built from the headers, compression,
// static or upstream, and commonlog modules (commonlog anonymizes addresses
// through ipanon). The rewrite and auth modules are not wired in.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/nullgate/gatewire"
	"github.com/nullgate/gatewire/modules/commonlog"
	"github.com/nullgate/gatewire/modules/compression"
	"github.com/nullgate/gatewire/modules/headers"
	"github.com/nullgate/gatewire/modules/static"
	"github.com/nullgate/gatewire/modules/upstream"
	"github.com/nullgate/gatewire/modules/vhost"
)

type hostConfig struct {
	Host    string        `yaml:"host"`
	Default bool          `yaml:"default"`
	Static  *staticConfig `yaml:"static"`
	Upstream *upstreamConfig `yaml:"upstream"`
	Headers []headerRule `yaml:"headers"`
	Log     *logConfig   `yaml:"log"`
}

type staticConfig struct {
	Root                string   `yaml:"root"`
	Index               []string `yaml:"index"`
	Precompressed       []string `yaml:"precompressed"`
	Page404             string   `yaml:"page_404"`
	DeclareCharset      string   `yaml:"declare_charset"`
	DeclareCharsetTypes []string `yaml:"declare_charset_types"`
}

type upstreamConfig struct {
	Target       string `yaml:"target"`
	PreserveHost bool   `yaml:"preserve_host"`
}

type headerRule struct {
	Match        string            `yaml:"match"`
	CacheControl []string          `yaml:"cache_control"`
	Set          map[string]string `yaml:"set"`
	Remove       []string          `yaml:"remove"`
}

type logConfig struct {
	Path      string `yaml:"path"`
	Anonymize bool   `yaml:"anonymize"`
}

type rootConfig struct {
	Listen string       `yaml:"listen"`
	Hosts  []hostConfig `yaml:"hosts"`
}

func main() {
	var (
		confPaths  = flag.String("conf", "", "comma-separated configuration file paths")
		listenAddr = flag.String("listen", "", "override the listen address from configuration")
		testOnly   = flag.Bool("test", false, "load and validate configuration, then exit")
		daemon     = flag.Bool("daemon", false, "run under a process supervisor (not backgrounded by this binary)")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *confPaths == "" {
		logger.Error("--conf is required")
		os.Exit(2)
	}
	if *daemon {
		logger.Info("daemon flag set; run this binary under a process supervisor for backgrounding")
	}

	cfg, err := loadConfig(*confPaths)
	if err != nil {
		logger.Error("failed loading configuration", "error", err)
		os.Exit(1)
	}

	if *testOnly {
		logger.Info("configuration OK")
		return
	}

	if *listenAddr != "" {
		cfg.Listen = *listenAddr
	}

	writer := commonlog.NewWriter(logger, 100)
	defer writer.Close()

	hosts := make([]vhost.HostConfig, 0, len(cfg.Hosts))
	for _, h := range cfg.Hosts {
		pipeline, err := buildPipeline(h, writer, logger)
		if err != nil {
			logger.Error("failed building host pipeline", "host", h.Host, "error", err)
			os.Exit(1)
		}
		hosts = append(hosts, vhost.HostConfig{Host: h.Host, Pipeline: pipeline, Default: h.Default})
	}

	dispatcher, err := vhost.New(hosts)
	if err != nil {
		logger.Error("failed building virtual hosts dispatcher", "error", err)
		os.Exit(1)
	}

	app := gatewire.New(dispatcher,
		gatewire.WithLogger(logger),
		gatewire.WithReloadHandler(writer.Reopen),
	)

	if cfg.Listen == "" {
		cfg.Listen = ":8080"
	}
	logger.Info("starting gatewire", "listen", cfg.Listen)
	if err := app.Listen(cfg.Listen); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func loadConfig(confPaths string) (*rootConfig, error) {
	loader := gatewire.NewLoader()
	for _, p := range strings.Split(confPaths, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if err := loader.LoadFile(p); err != nil {
			return nil, err
		}
	}
	var cfg rootConfig
	if err := loader.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}
	if len(cfg.Hosts) == 0 {
		return nil, fmt.Errorf("configuration must define at least one host")
	}
	return &cfg, nil
}

func buildPipeline(h hostConfig, writer *commonlog.Writer, logger *slog.Logger) (*gatewire.Pipeline, error) {
	var stages []gatewire.Stage

	if len(h.Headers) > 0 {
		rules := make([]headers.Rule, 0, len(h.Headers))
		for _, r := range h.Headers {
			rules = append(rules, headers.Rule{
				Match:        r.Match,
				CacheControl: r.CacheControl,
				Set:          r.Set,
				Remove:       r.Remove,
			})
		}
		stages = append(stages, headers.New(rules))
	}

	stages = append(stages, compression.New(compression.Options{}))

	switch {
	case h.Static != nil:
		sh, err := static.New(static.Options{
			Root:                h.Static.Root,
			IndexFiles:          h.Static.Index,
			Precompressed:       h.Static.Precompressed,
			CanonicalizeURI:     true,
			Page404:             h.Static.Page404,
			DeclareCharset:      h.Static.DeclareCharset,
			DeclareCharsetTypes: h.Static.DeclareCharsetTypes,
		})
		if err != nil {
			return nil, fmt.Errorf("host %s: %w", h.Host, err)
		}
		stages = append(stages, sh)
	case h.Upstream != nil:
		up, err := upstream.New(upstream.Options{
			Target:       h.Upstream.Target,
			PreserveHost: h.Upstream.PreserveHost,
		})
		if err != nil {
			return nil, fmt.Errorf("host %s: %w", h.Host, err)
		}
		stages = append(stages, up)
	default:
		return nil, fmt.Errorf("host %s: must configure either static or upstream", h.Host)
	}

	if h.Log != nil {
		// First, so its RequestFilter captures the request before a later
		// stage responds and stops the phase.
		stages = append([]gatewire.Stage{commonlog.New(writer, h.Log.Path, h.Log.Anonymize)}, stages...)
	}

	p := gatewire.NewPipeline(stages...)
	return p, nil
}
