package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fusae/sentinel/internal/config"
	"github.com/fusae/sentinel/internal/feedback"
	"github.com/fusae/sentinel/internal/llm"
	"github.com/fusae/sentinel/internal/notify"
	"github.com/fusae/sentinel/internal/scheduler"
	"github.com/fusae/sentinel/internal/server"
	"github.com/fusae/sentinel/internal/store"
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
	Use:     "sentinel",
	Short:   "Hospital reputation sentiment monitor",
	Long:    "sentinel polls IMAP mail for vendor alerts, scrapes and classifies linked reports, aggregates recurring events, and notifies on the ones that matter.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

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
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("sentinel", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/sentinel/",
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
		fmt.Println("Edit it to configure the mailbox, LLM provider, and webhooks.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and pipeline status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		mails, err := db.CountProcessedMails()
		if err != nil {
			return fmt.Errorf("counting processed mails: %w", err)
		}
		events, err := db.CountEvents()
		if err != nil {
			return fmt.Errorf("counting events: %w", err)
		}
		pending, err := db.CountPendingFeedback()
		if err != nil {
			return fmt.Errorf("counting pending feedback: %w", err)
		}

		fmt.Println("Mail:")
		fmt.Printf("  Processed: %d\n", mails)
		fmt.Println("\nEvents:")
		fmt.Printf("  Total: %d\n", events)
		fmt.Println("\nFeedback:")
		fmt.Printf("  Pending: %d\n", pending)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		fmt.Println("Database is up to date:", db.DSN())
		return nil
	},
}

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Run one poll tick and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		provider := buildProvider()
		sched := scheduler.New(cfg, db, provider, func() []string { return cfg.Notification.SuppressKeywords })

		result := sched.RunOnce(context.Background())
		fmt.Printf("Mails found: %d\n", result.MailsFound)
		fmt.Printf("Articles extracted: %d\n", result.Articles)
		fmt.Printf("Negative: %d\n", result.Negative)
		fmt.Printf("Duplicates: %d\n", result.Duplicates)
		fmt.Printf("New events: %d\n", result.NewEvents)
		fmt.Printf("Escalations: %d\n", result.Escalations)
		for _, e := range result.Errors {
			fmt.Printf("  error: %v\n", e)
		}
		return nil
	},
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage compiled suppression rules",
}

var rulesCompileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Run the feedback rule compiler once",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		compiler := feedback.NewCompiler(db, cfg.Feedback.RuleThreshold, 0)
		n, err := compiler.Compile()
		if err != nil {
			return fmt.Errorf("compiling rules: %w", err)
		}
		fmt.Printf("Compiled %d new suppression rules\n", n)
		return nil
	},
}

func init() {
	rulesCmd.AddCommand(rulesCompileCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the poll scheduler and HTTP API together until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		provider := buildProvider()
		signer := notify.NewLinkSigner(cfg.Feedback.LinkBaseURL, cfg.Feedback.LinkSecret, 0)

		srv := server.New(db, provider, signer, cfg.Notification.SuppressKeywords, cfg.GetDataDir())
		sched := scheduler.New(cfg, db, provider, srv.SuppressKeywords)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		go sched.Run(ctx)

		if err := srv.ListenAndServe(ctx, cfg.Server.Port); err != nil {
			log.Printf("server: %v", err)
		}

		if err := sched.Shutdown(30 * time.Second); err != nil {
			log.Printf("scheduler: %v", err)
		}

		fmt.Println("shutting down")
		return nil
	},
}

func buildProvider() llm.Provider {
	if cfg.AI.APIKey == "" || cfg.AI.APIURL == "" {
		return nil
	}
	return llm.NewChatProvider(cfg.AI.APIURL, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.Temperature, 30*time.Second, 3)
}

func openDB() (*store.DB, error) {
	db, err := store.Open(cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetPoolSize(cfg.Concurrency.PMail + cfg.Concurrency.PURL + cfg.Concurrency.PAPI)
	return db, nil
}
