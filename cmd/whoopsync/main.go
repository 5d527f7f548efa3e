package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"whoopsync/auth"
	"whoopsync/db"
	"whoopsync/internal/config"
	"whoopsync/scraper"
	"whoopsync/whoop"
)

const appName = "whoopsync"

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	var exitCode int
	switch os.Args[1] {
	case "auth":
		exitCode = cmdAuth(cfg, os.Args[2:])
	case "scrape":
		exitCode = cmdScrape(cfg, os.Args[2:])
	case "init-db":
		exitCode = cmdInitDB(cfg, os.Args[2:])
	case "test-api":
		exitCode = cmdTestAPI(cfg)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printUsage()
		exitCode = 1
	}
	os.Exit(exitCode)
}

func setupLogging(level string) {
	logLevel, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func printUsage() {
	figure.NewFigure(appName, "cybermedium", true).Print()
	fmt.Println()
	fmt.Println("Scrape Whoop API health metrics and store them in PostgreSQL.")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  auth      OAuth2 authorization (--status, --refresh, --port)")
	fmt.Println("  scrape    Run the scraper (--days, --start-date, --end-date)")
	fmt.Println("  init-db   Initialize database schema (--print-sql)")
	fmt.Println("  test-api  Test API connection with current tokens")
}

func cmdAuth(cfg *config.Config, args []string) int {
	flags := flag.NewFlagSet("auth", flag.ExitOnError)
	status := flags.Bool("status", false, "show current token status")
	refresh := flags.Bool("refresh", false, "force refresh tokens")
	port := flags.Int("port", 8080, "local port for the OAuth callback")
	_ = flags.Parse(args)

	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		log.Error().Msg("WHOOP_CLIENT_ID and WHOOP_CLIENT_SECRET must be set")
		fmt.Println()
		fmt.Println("To get OAuth credentials:")
		fmt.Println("1. Go to https://developer.whoop.com/")
		fmt.Println("2. Create a new application")
		fmt.Println("3. Set redirect URI to: http://localhost:8080/callback")
		fmt.Println("4. Copy Client ID and Client Secret")
		fmt.Println("5. Set environment variables:")
		fmt.Println("   export WHOOP_CLIENT_ID='your-client-id'")
		fmt.Println("   export WHOOP_CLIENT_SECRET='your-client-secret'")
		return 1
	}

	ctx := context.Background()
	store := auth.NewFileStore(cfg)
	manager := auth.NewManager(cfg, store)

	if *status {
		tok, err := store.Load(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Failed to load tokens")
			return 1
		}
		if tok == nil {
			fmt.Println("No tokens stored. Run 'whoopsync auth' to authorize.")
			return 1
		}
		fmt.Printf("Access token: %s...\n", truncate(tok.AccessToken, 20))
		fmt.Printf("Expires at: %s\n", tok.ExpiresAt)
		fmt.Printf("Expired: %v\n", tok.IsExpired())
		return 0
	}

	if *refresh {
		tok, err := manager.RefreshTokens(ctx, "")
		if err != nil {
			log.Error().Err(err).Msg("Failed to refresh tokens")
			return 1
		}
		fmt.Println("Tokens refreshed successfully!")
		fmt.Printf("New access token: %s...\n", truncate(tok.AccessToken, 20))
		fmt.Printf("Expires at: %s\n", tok.ExpiresAt)
		return 0
	}

	fmt.Println("Starting OAuth2 authorization flow...")
	fmt.Printf("Using client ID: %s...\n", truncate(cfg.ClientID, 10))
	fmt.Println()
	fmt.Println("A browser window will open for you to authorize the application.")
	fmt.Println("After authorization, you'll be redirected to localhost.")
	fmt.Println()

	tok, err := manager.AuthorizeInteractive(ctx, *port, true)
	if err != nil {
		log.Error().Err(err).Msg("Authorization failed")
		return 1
	}
	fmt.Println()
	fmt.Println("Authorization successful!")
	fmt.Printf("Access token: %s...\n", truncate(tok.AccessToken, 20))
	fmt.Printf("Tokens saved to: %s\n", store.Path())
	return 0
}

func cmdScrape(cfg *config.Config, args []string) int {
	flags := flag.NewFlagSet("scrape", flag.ExitOnError)
	days := flags.Int("days", 0, "number of days to scrape (default: WHOOP_SCRAPE_DAYS or 7)")
	startDate := flags.String("start-date", "", "start date (YYYY-MM-DD), overrides --days")
	endDate := flags.String("end-date", "", "end date (YYYY-MM-DD), overrides --days")
	_ = flags.Parse(args)

	window, err := resolveWindow(cfg, *days, *startDate, *endDate)
	if err != nil {
		log.Error().Err(err).Msg("Invalid date range")
		return 1
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DatabaseURL())
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to database")
		return 1
	}
	defer pool.Close()

	var cipher *auth.TokenCipher
	if cfg.EncryptionKey != "" {
		if cipher, err = auth.NewTokenCipher(cfg.EncryptionKey); err != nil {
			log.Error().Err(err).Msg("Invalid encryption key")
			return 1
		}
	}

	tokenStore := auth.NewDBStore(pool, cipher, cfg.AccessToken, cfg.RefreshToken)
	manager := auth.NewManager(cfg, tokenStore)
	client := whoop.NewClient(manager)
	results := scraper.New(client, db.NewStore(pool), window).Run(ctx)

	fmt.Printf("\nScrape completed (%s to %s)\n", window.StartDate(), window.EndDate())
	fmt.Println("Results:")
	for _, category := range []string{
		scraper.CategoryUserProfile,
		scraper.CategoryBodyMeasurement,
		scraper.CategoryCycles,
		scraper.CategoryRecovery,
		scraper.CategorySleep,
		scraper.CategoryWorkouts,
	} {
		result := results[category]
		if result.Success {
			fmt.Printf("  %s: %d records\n", category, result.Records)
		} else {
			fmt.Printf("  %s: FAILED - %s\n", category, result.Error)
		}
	}
	fmt.Printf("\nTotal: %d records\n", results.TotalRecords())

	if results.Failed() {
		return 1
	}
	return 0
}

func resolveWindow(cfg *config.Config, days int, startDate, endDate string) (whoop.Window, error) {
	if startDate != "" && endDate != "" {
		return whoop.ParseWindow(startDate, endDate)
	}
	if days == 0 {
		days = cfg.ScrapeDays
	}
	return whoop.WindowFromDays(days), nil
}

func cmdInitDB(cfg *config.Config, args []string) int {
	flags := flag.NewFlagSet("init-db", flag.ExitOnError)
	printSQL := flags.Bool("print-sql", false, "print SQL schema without executing")
	_ = flags.Parse(args)

	if *printSQL {
		fmt.Print(db.SchemaSQL())
		return 0
	}

	ctx := context.Background()
	log.Info().Str("host", cfg.DBHost).Str("database", cfg.DBName).Msg("Connecting to database")
	pool, err := db.Connect(ctx, cfg.DatabaseURL())
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to database")
		return 1
	}
	defer pool.Close()

	if err := db.InitSchema(ctx, pool); err != nil {
		log.Error().Err(err).Msg("Schema initialization failed")
		return 1
	}
	return 0
}

func cmdTestAPI(cfg *config.Config) int {
	ctx := context.Background()
	manager := auth.NewManager(cfg, auth.NewFileStore(cfg))
	client := whoop.NewClient(manager)

	profile, err := client.UserProfile(ctx)
	if err != nil {
		log.Error().Err(err).Msg("API request failed")
		fmt.Println("Run 'whoopsync auth' first to authorize.")
		return 1
	}
	fmt.Println("API connection successful!")
	fmt.Printf("User ID: %d\n", profile.UserID)
	fmt.Printf("Email: %s\n", profile.Email)
	fmt.Printf("First name: %s\n", profile.FirstName)
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
