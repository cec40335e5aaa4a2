package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"incidenbot/backend/internal/analytics"
	"incidenbot/backend/internal/config"
	"incidenbot/backend/internal/incident"
	"incidenbot/backend/internal/localization"
	"incidenbot/backend/internal/models"
	"incidenbot/backend/internal/storage"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const usage = `Usage: admin <command> [args]

Commands:
  list                        list incidents, newest first
  set-status <id> <status>    move an incident to open|in_progress|resolved|canceled
  stats [lang]                print the dashboard analytics as JSON
  history <id>                print the status history of an incident`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	ctx := context.Background()
	rdb, redisErr := connectRedis(ctx, cfg)
	if rdb != nil {
		defer rdb.Close()
	}
	storageSvc := storage.NewStorageService(db, rdb)

	command := os.Args[1]

	switch command {
	case "list":
		if err := listIncidents(ctx, storageSvc); err != nil {
			log.Fatalf("Error listing incidents: %v", err)
		}
	case "set-status":
		if len(os.Args) != 4 {
			fmt.Println("Usage: admin set-status <id> <status>")
			os.Exit(1)
		}
		// без Redis живі дашборди не дізнаються про зміну
		if redisErr != nil {
			log.Fatalf("ERROR: set-status needs Redis to notify live dashboards: %v", redisErr)
		}
		id, status := os.Args[2], models.Status(os.Args[3])
		svc := incident.NewService(nil, storageSvc, nil)
		if err := svc.ChangeStatus(ctx, id, status); err != nil {
			log.Fatalf("Error updating incident: %v", err)
		}
		fmt.Printf("Incident %s is now %s.\n", id, status)
	case "stats":
		lang := cfg.DefaultLanguage
		if len(os.Args) > 2 {
			lang = os.Args[2]
		}
		if err := printStats(ctx, storageSvc, lang); err != nil {
			log.Fatalf("Error computing stats: %v", err)
		}
	case "history":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin history <id>")
			os.Exit(1)
		}
		if err := printHistory(ctx, storageSvc, os.Args[2]); err != nil {
			log.Fatalf("Error reading incident: %v", err)
		}
	default:
		fmt.Println("Unknown command")
		fmt.Println(usage)
		os.Exit(1)
	}
}

// connectRedis returns a nil client and the ping error when Redis is
// unreachable. Read-only commands work without it.
func connectRedis(ctx context.Context, cfg *config.AppConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("WARNING: Redis unavailable: %v", err)
		rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func listIncidents(ctx context.Context, s storage.Storage) error {
	incidents, err := s.ListIncidents(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tSTATUS\tCATEGORY\tURGENCY\tROOM\tSUMMARY")
	for _, inc := range incidents {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			inc.ID, inc.CreatedAt.Local().Format("2006-01-02 15:04"), inc.Status,
			inc.Category, inc.UrgencyLevel, inc.Room, inc.ActionSummary)
	}
	return w.Flush()
}

func printStats(ctx context.Context, s storage.Storage, lang string) error {
	incidents, err := s.ListIncidents(ctx)
	if err != nil {
		return err
	}
	loc, err := localization.NewDefaultLocalizer()
	if err != nil {
		return err
	}
	stats := analytics.ComputeStats(incidents, time.Now(), loc.DayLabeler(lang))
	if stats == nil {
		fmt.Println(loc.GetString(lang, "digest_empty"))
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}

func printHistory(ctx context.Context, s storage.Storage, id string) error {
	inc, err := s.GetIncident(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("%s  %s / %s  created %s\n", inc.ID, inc.TenantName, inc.Room, inc.CreatedAt.Local().Format(time.RFC3339))
	if len(inc.StatusHistory) == 0 {
		fmt.Printf("  %s (no recorded transitions)\n", inc.Status)
		return nil
	}
	for _, entry := range inc.StatusHistory {
		status, at, _ := strings.Cut(entry, "@")
		fmt.Printf("  %-12s %s\n", status, at)
	}
	return nil
}
