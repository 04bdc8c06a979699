package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jeremymiller99/lumberjacksim-sub000/internal/config"
	"github.com/jeremymiller99/lumberjacksim-sub000/internal/database"
	"github.com/jeremymiller99/lumberjacksim-sub000/internal/items"
	"github.com/jeremymiller99/lumberjacksim-sub000/internal/logger"
	"github.com/jeremymiller99/lumberjacksim-sub000/internal/quest"
	"github.com/jeremymiller99/lumberjacksim-sub000/internal/server"
)

func main() {
	serverConfigFile := flag.String("config", "data/server.yaml", "Path to server config YAML file")
	loggingConfig := flag.String("logging", "data/logging.yaml", "Path to logging config YAML file")
	questsDir := flag.String("quests", "", "Directory of quest YAML files (overrides config)")
	itemsFile := flag.String("items", "", "Path to items YAML file (overrides config)")
	dbFile := flag.String("db", "", "Path to SQLite quest log database (overrides config)")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	resetPlayer := flag.String("reset-player", "", "Delete a player's stored quest log and exit")
	flag.Parse()

	// Initialize logger first (before any logging)
	logConfig, err := logger.LoadConfig(*loggingConfig)
	if err != nil {
		log.Fatalf("Failed to load logging config: %v", err)
	}
	logCloser, err := logger.Initialize(logConfig)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logCloser.Close()

	serverCfg, err := config.LoadConfig(*serverConfigFile)
	if err != nil {
		log.Fatalf("Failed to load server config: %v", err)
	}
	applyFlags(serverCfg, *questsDir, *itemsFile, *dbFile, *addr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, serverCfg.Database)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	logger.Info("Quest log database initialized", "driver", serverCfg.Database.Driver)

	if *resetPlayer != "" {
		handleResetPlayer(ctx, db, *resetPlayer)
		return
	}

	logger.Info("Starting quest server")

	catalog, err := items.LoadCatalog(serverCfg.Content.ItemsFile)
	if err != nil {
		log.Fatalf("Failed to load items: %v", err)
	}
	logger.Info("Items loaded", "count", catalog.Count())

	registry := quest.NewRegistry()
	if err := registry.LoadFromDirectory(serverCfg.Content.QuestsDir); err != nil {
		log.Fatalf("Failed to load quests: %v", err)
	}
	logger.Info("Quests loaded", "count", registry.Count(), "npcs", len(registry.NPCTypes()))
	checkContentItems(registry, catalog)

	if len(serverCfg.WebSocket.AllowedOrigins) == 0 {
		logger.Info("WebSocket CORS policy", "mode", "same-origin")
	} else if len(serverCfg.WebSocket.AllowedOrigins) == 1 && serverCfg.WebSocket.AllowedOrigins[0] == "*" {
		logger.Warning("WebSocket CORS allows all origins (not recommended for production)")
	} else {
		logger.Info("WebSocket CORS policy", "allowed_origins", serverCfg.WebSocket.AllowedOrigins)
	}

	srv := server.NewServer(serverCfg, registry, catalog, db)
	logger.Info("Press Ctrl+C to shutdown")

	if err := srv.Run(ctx); err != nil {
		logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped")
}

// applyFlags lets command-line flags override the loaded config.
func applyFlags(cfg *config.ServerConfig, questsDir, itemsFile, dbFile, addr string) {
	if questsDir != "" {
		cfg.Content.QuestsDir = questsDir
	}
	if itemsFile != "" {
		cfg.Content.ItemsFile = itemsFile
	}
	if dbFile != "" {
		cfg.Database.Driver = string(database.DialectSQLite)
		cfg.Database.SQLitePath = dbFile
	}
	if addr != "" {
		cfg.Listen.Addr = addr
	}
}

// checkContentItems warns about quests whose rewards or trades name unknown
// items and returns the offending quest/item pairs. Such a quest can never
// be turned in, or its trade never succeeds.
func checkContentItems(registry *quest.Registry, catalog *items.Catalog) []string {
	var missing []string
	for _, q := range registry.AllQuests() {
		for _, item := range q.ItemIDs() {
			if _, ok := catalog.Get(item); !ok {
				logger.Warning("Quest names an unknown item", "quest", q.ID, "item", item)
				missing = append(missing, q.ID+"/"+item)
			}
		}
	}
	return missing
}

// handleResetPlayer deletes one player's quest log and exits
func handleResetPlayer(ctx context.Context, db *database.Database, playerID string) {
	removed, err := db.DeleteQuestLog(ctx, playerID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to reset player: %v\n", err)
		os.Exit(1)
	}
	if !removed {
		fmt.Printf("Player '%s' has no stored quest log.\n", playerID)
		return
	}
	fmt.Printf("Quest log for '%s' has been deleted.\n", playerID)
}
