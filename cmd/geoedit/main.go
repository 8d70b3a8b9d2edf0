package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"

	"geoedit/internal/catalog"
	"geoedit/internal/config"
	"geoedit/internal/logger"
	"geoedit/internal/session"
	"geoedit/internal/tui"
)

type Options struct {
	Config     string `short:"c" long:"config" env:"GEOEDIT_CONFIG" description:"Path to the YAML configuration file" default:"geoedit.yaml"`
	CatalogURL string `long:"catalog-url" env:"GEOEDIT_CATALOG_URL" description:"Base URL of the spatial catalog API (overrides config)"`
	ExportDir  string `long:"export-dir" env:"GEOEDIT_EXPORT_DIR" description:"Directory for exported documents (overrides config)"`
	DataDir    string `long:"data-dir" env:"GEOEDIT_DATA_DIR" description:"File explorer starting directory (overrides config)"`

	logger.Logger

	Args struct {
		Files []string `positional-arg-name:"FILE" description:"Geometry files to import on startup"`
	} `positional-args:"yes"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
	opts.Logger.Setup()

	cfg, err := config.Load(opts.Config)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}
	if opts.CatalogURL != "" {
		cfg.CatalogURL = opts.CatalogURL
	}
	if opts.ExportDir != "" {
		cfg.ExportDir = opts.ExportDir
	}
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}

	client := catalog.NewClient(cfg.CatalogURL, log.Logger)
	m := tui.New(tui.Deps{
		Store:        session.New(),
		Persist:      client,
		Files:        client,
		Catalog:      client,
		Config:       cfg,
		Log:          log.Logger,
		InitialPaths: opts.Args.Files,
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseAllMotion())
	if _, err := p.Run(); err != nil {
		log.Fatal().Err(err).Msg("program exited")
	}
}
