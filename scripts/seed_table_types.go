package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"tablequeue/internal/database"
	"tablequeue/internal/domain"
	"tablequeue/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type SeedConfig struct {
	TableTypes []models.TableType `yaml:"table_types"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		seedPath = flag.String("seed", "configs/seed.yaml", "path to seed.yaml")
		dbPath   = flag.String("db", "./data/tablequeue.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*seedPath)
	if err != nil {
		return fmt.Errorf("read seed: %w", err)
	}
	var cfg SeedConfig
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse seed: %w", err)
	}
	if len(cfg.TableTypes) == 0 {
		return fmt.Errorf("no table types in yaml")
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	existing := make(map[string]map[string]bool)
	created := 0
	skipped := 0
	for _, tt := range cfg.TableTypes {
		name := strings.TrimSpace(tt.Type)
		if tt.ShopID == "" || name == "" {
			continue
		}
		if tt.Capacity < 0 {
			return fmt.Errorf("%s/%s: negative capacity", tt.ShopID, name)
		}

		if _, ok := existing[tt.ShopID]; !ok {
			if _, err = db.GetShop(ctx, tt.ShopID); err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					logger.Warn().Str("shop_id", tt.ShopID).Msg("unknown shop, skipping")
					existing[tt.ShopID] = nil
					continue
				}
				return fmt.Errorf("get shop %s: %w", tt.ShopID, err)
			}
			current, err := db.ListTableTypes(ctx, tt.ShopID)
			if err != nil {
				return fmt.Errorf("list table types %s: %w", tt.ShopID, err)
			}
			names := make(map[string]bool, len(current))
			for _, c := range current {
				names[c.Type] = true
			}
			existing[tt.ShopID] = names
		}

		names := existing[tt.ShopID]
		if names == nil || names[name] {
			skipped++
			continue
		}

		if tt.ID == "" {
			tt.ID = uuid.NewString()
		}
		tt.Type = name
		tt.CreatedAt = time.Now()
		if err = db.CreateTableType(ctx, &tt); err != nil {
			return fmt.Errorf("create %s/%s: %w", tt.ShopID, name, err)
		}
		names[name] = true
		created++
	}

	fmt.Printf("done: created=%d skipped=%d\n", created, skipped)
	return nil
}
