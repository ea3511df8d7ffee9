package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/your-org/ci-breakage-dashboard/pkg/client"
	"github.com/your-org/ci-breakage-dashboard/pkg/config"
	"github.com/your-org/ci-breakage-dashboard/pkg/export"
	"github.com/your-org/ci-breakage-dashboard/pkg/generator"
	"github.com/your-org/ci-breakage-dashboard/pkg/logger"
	"github.com/your-org/ci-breakage-dashboard/pkg/renderer"
	"github.com/your-org/ci-breakage-dashboard/pkg/server"
	"github.com/your-org/ci-breakage-dashboard/pkg/themes"
)

var (
	version = "1.0.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "breakage-dashboard",
		Short: "Dashboard for CI build failures on master",
		Long: `CI Breakage Dashboard

Shows annotated and detected master breakages, downstream impact and
log-pattern matches pulled from the build analytics API.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().String("api", "", "Base URL of the analytics API")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-file", "", "Also write logs to this rotating file")

	// Serve command - live dashboard with editing
	var serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the live dashboard server",
		RunE:  runServe,
	}
	serveCmd.Flags().IntP("port", "p", 0, "Port to run server on")
	serveCmd.Flags().StringP("host", "H", "", "Host to bind server to")

	// Generate command - static snapshot
	var generateCmd = &cobra.Command{
		Use:   "generate",
		Short: "Write a read-only HTML snapshot of every page",
		RunE:  runGenerate,
	}
	generateCmd.Flags().StringP("output", "o", "", "Output directory for the snapshot")
	generateCmd.Flags().StringP("theme", "t", "", "Theme to use")

	var showCmd = &cobra.Command{
		Use:   "show [index|code-breakages|pattern-details]",
		Short: "Print one page's panels to the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  runShow,
	}
	showCmd.Flags().String("pattern-id", "", "Pattern id for the pattern-details page")
	showCmd.Flags().StringP("output", "o", "table", "Output format (table, json, yaml)")
	showCmd.Flags().String("save", "", "Write the output to a file in this directory instead of stdout")

	var themeCmd = &cobra.Command{
		Use:   "theme",
		Short: "Manage dashboard themes",
	}
	var listThemesCmd = &cobra.Command{
		Use:   "list",
		Short: "List available themes",
		RunE:  runListThemes,
	}
	themeCmd.AddCommand(listThemesCmd)

	var configCmd = &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	var initConfigCmd = &cobra.Command{
		Use:   "init [path]",
		Short: "Write the effective configuration to a file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runInitConfig,
	}
	initConfigCmd.Flags().BoolP("force", "f", false, "Overwrite an existing file")
	configCmd.AddCommand(initConfigCmd)

	rootCmd.AddCommand(serveCmd, generateCmd, showCmd, themeCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, applies flag overrides and sets up logging
func loadConfig(cmd *cobra.Command) (*config.Config, func() error, error) {
	configFile, _ := cmd.Flags().GetString("config")
	apiURL, _ := cmd.Flags().GetString("api")
	logLevel, _ := cmd.Flags().GetString("log-level")
	logFile, _ := cmd.Flags().GetString("log-file")

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	if configFile != "" {
		if err := cfg.LoadFromFile(configFile); err != nil {
			return nil, nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg.LoadFromEnv()
	}

	if apiURL != "" {
		cfg.APIBaseURL = apiURL
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	closeLog, err := logger.Configure(logger.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return cfg, closeLog, nil
}

func newGenerator(cfg *config.Config) (*generator.Generator, *renderer.Renderer, error) {
	r, err := renderer.NewRenderer()
	if err != nil {
		return nil, nil, err
	}
	gen, err := generator.NewGenerator(cfg, client.New(cfg.APIBaseURL, cfg.RequestTimeout), r)
	if err != nil {
		return nil, nil, err
	}
	return gen, r, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, closeLog, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer closeLog()

	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Port = port
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Host = host
	}

	gen, r, err := newGenerator(cfg)
	if err != nil {
		return err
	}
	srv, err := server.NewServer(cfg, gen, r)
	if err != nil {
		return err
	}

	logger.Infof("Reading from analytics API at %s", cfg.APIBaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Start(ctx)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, closeLog, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer closeLog()

	if outputDir, _ := cmd.Flags().GetString("output"); outputDir != "" {
		cfg.OutputDir = outputDir
	}
	if theme, _ := cmd.Flags().GetString("theme"); theme != "" {
		cfg.Theme = theme
	}

	gen, _, err := newGenerator(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting dashboard snapshot...")
	logger.Infof("API: %s", cfg.APIBaseURL)
	logger.Infof("Output: %s", cfg.OutputDir)

	if err := gen.Generate(ctx, cfg.OutputDir); err != nil {
		return fmt.Errorf("failed to generate dashboard: %w", err)
	}

	logger.Info("✓ Dashboard generated successfully!")
	logger.Infof("View dashboard: file://%s/index.html", cfg.OutputDir)
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, closeLog, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer closeLog()

	output, _ := cmd.Flags().GetString("output")
	format, err := export.ParseFormat(output)
	if err != nil {
		return err
	}
	patternID, _ := cmd.Flags().GetString("pattern-id")

	gen, _, err := newGenerator(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	page, err := gen.Page(ctx, renderer.PageKind(args[0]), patternID)
	if err != nil {
		return err
	}

	exporter := export.NewExporter(format)
	if saveDir, _ := cmd.Flags().GetString("save"); saveDir != "" {
		path, err := exporter.ExportFile(page, saveDir)
		if err != nil {
			return fmt.Errorf("failed to save %s: %w", page.Kind, err)
		}
		logger.Infof("✓ Saved %s", path)
		return nil
	}
	return exporter.Export(cmd.OutOrStdout(), page)
}

func runInitConfig(cmd *cobra.Command, args []string) error {
	path := "breakage-dashboard.yml"
	if len(args) == 1 {
		path = args[0]
	}
	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	cfg, closeLog, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer closeLog()

	if err := cfg.Save(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	logger.Infof("✓ Configuration written to %s", path)
	return nil
}

func runListThemes(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Available themes:")
	for _, name := range themes.Names() {
		marker := " "
		if name == themes.DefaultTheme {
			marker = "*"
		}
		fmt.Fprintf(out, "  %s %s\n", marker, name)
	}
	return nil
}
