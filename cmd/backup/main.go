// Command backup maintains a household points database from the shell:
// export and import interchange JSON, prune old records, show storage
// usage, and recover a snapshot left in the fallback store.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rushbq/Familypoints-Pages/config"
	"github.com/rushbq/Familypoints-Pages/household"
	"github.com/rushbq/Familypoints-Pages/kvstore"
	"github.com/rushbq/Familypoints-Pages/persistence"
	"github.com/rushbq/Familypoints-Pages/state"
	"github.com/rushbq/Familypoints-Pages/store/sqlite"
)

type commonFlags struct {
	config *string
	data   *string
	db     *string
}

func addCommon(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		config: fs.String("config", "", "YAML configuration file"),
		data:   fs.String("data", "", "Data directory (overrides config)"),
		db:     fs.String("db", "", "Database file name (overrides config)"),
	}
}

func main() {
	// Define subcommands
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	pruneCmd := flag.NewFlagSet("prune", flag.ExitOnError)
	infoCmd := flag.NewFlagSet("info", flag.ExitOnError)
	recoverCmd := flag.NewFlagSet("recover", flag.ExitOnError)

	exportCommon := addCommon(exportCmd)
	exportOutput := exportCmd.String("output", "", "Output file path (default: family_points_backup_YYYY-MM-DD.json)")

	importCommon := addCommon(importCmd)
	importInput := importCmd.String("input", "", "Input file path (required)")
	importYes := importCmd.Bool("yes", false, "Skip the confirmation prompt")

	pruneCommon := addCommon(pruneCmd)
	pruneDays := pruneCmd.Int("days", 0, "Delete records older than this many days (default: retention.default_days)")
	pruneYes := pruneCmd.Bool("yes", false, "Skip the confirmation prompt")

	infoCommon := addCommon(infoCmd)

	recoverCommon := addCommon(recoverCmd)
	recoverYes := recoverCmd.Bool("yes", false, "Skip the confirmation prompt")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "export":
		exportCmd.Parse(os.Args[2:])
		err = withEngine(exportCommon, func(ctx context.Context, env *backupEnv) error {
			return handleExport(ctx, env, *exportOutput)
		})

	case "import":
		importCmd.Parse(os.Args[2:])
		if *importInput == "" {
			fmt.Println("Error: -input flag is required")
			importCmd.PrintDefaults()
			os.Exit(1)
		}
		err = withEngine(importCommon, func(ctx context.Context, env *backupEnv) error {
			return handleImport(ctx, env, *importInput, *importYes)
		})

	case "prune":
		pruneCmd.Parse(os.Args[2:])
		err = withEngine(pruneCommon, func(ctx context.Context, env *backupEnv) error {
			return handlePrune(ctx, env, *pruneDays, *pruneYes)
		})

	case "info":
		infoCmd.Parse(os.Args[2:])
		err = withEngine(infoCommon, handleInfo)

	case "recover":
		recoverCmd.Parse(os.Args[2:])
		err = withEngine(recoverCommon, func(ctx context.Context, env *backupEnv) error {
			return handleRecover(ctx, env, *recoverYes)
		})

	default:
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: backup <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  export   Write the database to an interchange JSON file")
	fmt.Println("  import   Replace the database with an interchange JSON file")
	fmt.Println("  prune    Delete records older than N days")
	fmt.Println("  info     Show storage usage and collection sizes")
	fmt.Println("  recover  Restore the snapshot saved in the fallback store")
}

// =============================================================================
// WIRING
// =============================================================================

type backupEnv struct {
	cfg    *config.Config
	engine *persistence.Engine
	facade *state.Facade
}

func withEngine(flags commonFlags, fn func(context.Context, *backupEnv) error) error {
	cfg := config.Default()
	if *flags.config != "" {
		loaded, err := config.Load(*flags.config)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *flags.data != "" {
		cfg.Storage.Dir = *flags.data
	}
	if *flags.db != "" {
		cfg.Storage.Database = *flags.db
	}
	if cfg.InMemory() {
		return fmt.Errorf("backup needs a file database, not %q", cfg.Storage.Database)
	}
	// Command output goes to stdout; keep the log to warnings and errors.
	cfg.Logging = config.LoggingConfig{Level: "warn", Format: "console"}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := sqlite.New(cfg.DatabasePath(),
		sqlite.WithQuota(cfg.Storage.QuotaBytes),
		sqlite.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	fallback, err := kvstore.NewDir(cfg.FallbackDir())
	if err != nil {
		return err
	}

	engine := persistence.New(store, persistence.WithLogger(logger))
	return fn(context.Background(), &backupEnv{
		cfg:    cfg,
		engine: engine,
		facade: state.New(engine, fallback, state.WithLogger(logger)),
	})
}

func confirm(prompt string) bool {
	fmt.Printf("%s Type 'yes' to confirm: ", prompt)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimSpace(line) == "yes"
}

// =============================================================================
// COMMANDS
// =============================================================================

func handleExport(ctx context.Context, env *backupEnv, outputPath string) error {
	if outputPath == "" {
		outputPath = fmt.Sprintf("family_points_backup_%s.json", time.Now().UTC().Format("2006-01-02"))
	}

	dir := filepath.Dir(outputPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	data, err := env.engine.ExportSnapshot(ctx)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outputPath, err)
	}

	fmt.Printf("Exported to %s (%s)\n", outputPath, persistence.FormatBytes(int64(len(data))))
	return nil
}

func handleImport(ctx context.Context, env *backupEnv, inputPath string, yes bool) error {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", inputPath, err)
	}

	// Validate before asking, so a bad file never reaches the prompt.
	backup, err := persistence.DecodeSnapshot(data)
	if err != nil {
		return err
	}
	fmt.Printf("Backup version %s exported at %s: %d users, %d records, %d messages\n",
		backup.Version, backup.ExportedAt, len(backup.Users), len(backup.Records), len(backup.Messages))

	if !yes && !confirm("This replaces ALL existing data.") {
		fmt.Println("Import cancelled")
		return nil
	}

	if err := env.engine.ImportSnapshot(ctx, data); err != nil {
		return err
	}
	fmt.Println("Import complete")
	return nil
}

func handlePrune(ctx context.Context, env *backupEnv, days int, yes bool) error {
	if days == 0 {
		days = env.cfg.Retention.DefaultDays
	}
	if !yes && !confirm(fmt.Sprintf("Delete all records older than %d days?", days)) {
		fmt.Println("Prune cancelled")
		return nil
	}

	deleted, err := env.engine.PruneOlderThan(ctx, days)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d records\n", deleted)
	return nil
}

func handleInfo(ctx context.Context, env *backupEnv) error {
	s, err := env.engine.ReadAll(ctx)
	if err != nil {
		return err
	}
	unread, err := env.engine.UnreadMessageCount(ctx)
	if err != nil {
		return err
	}
	info := env.engine.CapacityInfo(ctx)

	fmt.Printf("Database:  %s\n", env.cfg.DatabasePath())
	fmt.Printf("Storage:   %s / %s (%.2f%%)\n", info.UsedFormatted, info.QuotaFormatted, info.Percentage)
	fmt.Printf("Users:     %d\n", len(s.Users))
	fmt.Printf("Items:     %d score, %d reward\n", len(s.ScoreItems), len(s.RewardItems))
	fmt.Printf("Records:   %d\n", len(s.Records))
	fmt.Printf("Messages:  %d (%d unread)\n", len(s.Messages), unread)
	board := household.NewScoreboard(s.Records)
	for _, child := range s.Children() {
		fmt.Printf("  %-10s %d points\n", child.Name, board.Score(child.ID))
	}
	return nil
}

func handleRecover(ctx context.Context, env *backupEnv, yes bool) error {
	s, ok, err := env.facade.LoadFallback(ctx)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("No fallback snapshot found")
		return nil
	}
	fmt.Printf("Fallback snapshot: %d users, %d records, %d messages\n",
		len(s.Users), len(s.Records), len(s.Messages))

	if !yes && !confirm("This replaces ALL existing data with the fallback snapshot.") {
		fmt.Println("Recover cancelled")
		return nil
	}

	if err := env.engine.ReplaceAll(ctx, s); err != nil {
		return err
	}
	fmt.Println("Recovered")
	return nil
}
