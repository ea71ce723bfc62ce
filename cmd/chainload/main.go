// Command chainload bulk-loads option-chain CSV snapshots into the
// options_data table that the backtest reads, creating the schema if needed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/eddiefleurent/stamford_straddler/internal/storage"
	"github.com/eddiefleurent/stamford_straddler/internal/storage/sqlite"
)

func main() {
	var (
		dbPath   = flag.String("db-path", "", "SQLite database to load into (required)")
		csvPath  = flag.String("csv", "", "Snapshot CSV file, or a directory of them (required)")
		truncate = flag.Bool("truncate", false, "Delete existing chain rows before loading")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[chainload] ", log.LstdFlags)

	if *dbPath == "" {
		logger.Fatal("--db-path is required")
	}
	if *csvPath == "" {
		logger.Fatal("--csv is required")
	}

	if err := run(context.Background(), logger, *dbPath, *csvPath, *truncate); err != nil {
		logger.Fatalf("Load failed: %v", err)
	}
}

func run(ctx context.Context, logger *log.Logger, dbPath, csvPath string, truncate bool) error {
	files, err := snapshotFiles(csvPath)
	if err != nil {
		return err
	}
	logger.Printf("Loading %d snapshot file(s) into %s", len(files), dbPath)

	db, err := sqlite.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Printf("Warning: closing database: %v", err)
		}
	}()

	chain, err := sqlite.NewChainStore(ctx, db)
	if err != nil {
		return fmt.Errorf("open chain store: %w", err)
	}
	if truncate {
		if err := chain.Truncate(ctx); err != nil {
			return err
		}
		logger.Println("Existing chain rows deleted")
	}

	total := 0
	for _, file := range files {
		n, err := loadFile(ctx, chain, logger, file)
		if err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				return fmt.Errorf("%w (already loaded? rerun with --truncate)", err)
			}
			return err
		}
		total += n
		logger.Printf("%s: %d rows", filepath.Base(file), n)
	}
	logger.Printf("Done: %d rows from %d file(s)", total, len(files))
	return nil
}

func loadFile(ctx context.Context, chain *sqlite.ChainStore, logger *log.Logger, path string) (int, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from the operator's --csv flag
	if err != nil {
		return 0, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	rows, err := parseChainCSV(f, logger, filepath.Base(path))
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		logger.Printf("Warning: %s contains no usable rows", filepath.Base(path))
		return 0, nil
	}
	if err := chain.InsertRows(ctx, rows); err != nil {
		return 0, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return len(rows), nil
}

// snapshotFiles expands the --csv argument: a file is taken as-is, a
// directory contributes every *.csv inside it, sorted so per-day snapshot
// files load in date order.
func snapshotFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", path, err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}
		files = append(files, filepath.Join(path, entry.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .csv files in %s", path)
	}
	sort.Strings(files)
	return files, nil
}
