package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/reliefwatch/reliefwatch/internal/config"
	"github.com/reliefwatch/reliefwatch/internal/database"
	"github.com/reliefwatch/reliefwatch/internal/pipeline"
	"github.com/reliefwatch/reliefwatch/internal/scheduler"
	"github.com/reliefwatch/reliefwatch/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "reliefwatch",
	Short:   "Disaster headline monitoring and relief effort generation",
	Long:    "ReliefWatch scrapes news headlines, classifies disasters, and generates relief effort templates for operators to review and deploy.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("reliefwatch", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/reliefwatch/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure sources, API keys, and the LLM provider.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println("Headlines:")
		fmt.Printf("  Total stored: %d\n", stats.TotalHeadlines)
		fmt.Printf("  Disaster: %d\n", stats.DisasterHeadlines)
		fmt.Printf("  Awaiting generation: %d\n", stats.Untemplated)
		fmt.Println("\nRelief efforts:")
		fmt.Printf("  Templates generated: %d\n", stats.ReliefTemplates)
		fmt.Printf("  In use: %d\n", stats.UsedTemplates)
		return nil
	},
}

// --- ingest command ---

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Scrape configured sources and store new disaster headlines",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe, err := pipeline.New(cfg, db)
		if err != nil {
			return err
		}

		step := pipe.RunIngest(cmd.Context())
		if step.Err != nil {
			return step.Err
		}
		fmt.Println(step.Summary)
		return nil
	},
}

// --- generate command ---

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate relief effort templates for stored headlines",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe, err := pipeline.New(cfg, db)
		if err != nil {
			return err
		}

		step := pipe.RunGenerate(cmd.Context())
		if step.Err != nil {
			return step.Err
		}
		fmt.Println(step.Summary)
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server without the periodic jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe, err := pipeline.New(cfg, db)
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, pipe.Ranker(), pipe.Ingestor(), port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

// --- run command ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduler and HTTP server until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe, err := pipeline.New(cfg, db)
		if err != nil {
			return err
		}

		sched := scheduler.New()
		jobs := []scheduler.Job{
			{
				Name:         "ingest",
				Every:        time.Duration(cfg.Scheduler.IngestEverySec) * time.Second,
				MaxInstances: cfg.Scheduler.MaxInstances,
				Run: func(ctx context.Context) {
					if step := pipe.RunIngest(ctx); step.Err != nil {
						log.Printf("ingest job: %v", step.Err)
					}
				},
			},
			{
				Name:         "generate",
				Every:        time.Duration(cfg.Scheduler.GenerateEverySec) * time.Second,
				MaxInstances: cfg.Scheduler.MaxInstances,
				Run: func(ctx context.Context) {
					if step := pipe.RunGenerate(ctx); step.Err != nil {
						log.Printf("generate job: %v", step.Err)
					}
				},
			},
		}
		for _, job := range jobs {
			if err := sched.Add(job); err != nil {
				return err
			}
		}

		srv, err := server.New(db, pipe.Ranker(), pipe.Ingestor())
		if err != nil {
			return err
		}
		httpSrv := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: srv.Handler(),
		}

		errCh := make(chan error, 1)
		go func() {
			log.Printf("Server listening on http://127.0.0.1:%d", cfg.Server.Port)
			errCh <- httpSrv.ListenAndServe()
		}()

		sched.Start()
		fmt.Println("Scheduler running. Press Ctrl+C to stop.")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Printf("Received %s, shutting down...", sig)
		case err := <-errCh:
			log.Printf("Server stopped: %v", err)
		}

		sched.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
		return nil
	},
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "reliefwatch.db")
	return database.Open(dbPath)
}
