package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"epicalib/adapters/db"
	"epicalib/domain/scenario"
)

func main() {
	driver := flag.String("driver", db.DriverSQLite, "result database driver (sqlite or postgres)")
	flag.Parse()

	if flag.NArg() < 2 {
		log.Fatal("Usage: migrate [-driver sqlite|postgres] <database_url> <outcome_dir>")
	}

	databaseURL := flag.Arg(0)
	outcomeDir := flag.Arg(1)

	log.Printf("Importing outcomes from %s into %s database", outcomeDir, *driver)

	ctx := context.Background()
	conn, err := db.Open(ctx, *driver, databaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer conn.Close()

	repo := db.NewResultRepository(conn)

	files, err := findOutcomeFiles(outcomeDir)
	if err != nil {
		log.Fatalf("Failed to find outcome files: %v", err)
	}
	log.Printf("Found %d outcome files to import", len(files))

	migrated := 0
	skipped := 0
	for _, file := range files {
		outcome, err := loadOutcomeFromFile(file)
		if err != nil {
			log.Printf("Failed to load outcome from %s: %v", file, err)
			skipped++
			continue
		}

		// SaveOutcome upserts, so re-importing a directory is harmless
		if err := repo.SaveOutcome(ctx, outcome); err != nil {
			log.Printf("Failed to save outcome %s: %v", outcome.RunID, err)
			skipped++
			continue
		}

		migrated++
		log.Printf("Imported run %s (%s) from %s", outcome.RunID, outcome.Scenario.Name, filepath.Base(file))
	}

	log.Printf("Import complete: %d imported, %d skipped", migrated, skipped)
	if skipped > 0 {
		os.Exit(1)
	}
}

func findOutcomeFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(path, ".json") {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

func loadOutcomeFromFile(filePath string) (*scenario.Outcome, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var outcome scenario.Outcome
	if err := json.Unmarshal(data, &outcome); err != nil {
		return nil, err
	}
	if outcome.RunID == "" || outcome.Scenario.Name == "" {
		return nil, fmt.Errorf("not a calibration outcome: missing run_id or scenario name")
	}

	return &outcome, nil
}
