package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"repomesh/config"
	"repomesh/internal/adapter/cache"
	"repomesh/internal/adapter/memstore"
	"repomesh/internal/domain"
	"repomesh/internal/usecase"
)

func main() {
	dir := flag.String("dir", ".", "workspace directory")
	runs := flag.Int("n", 3, "number of warm runs")
	top := flag.Int("top", 10, "number of unresolved usages to list")
	flag.Parse()

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}
	if *runs < 1 {
		*runs = 1
	}

	// Everything stays in memory so the workspace's own index is untouched.
	ec, err := cache.NewExtractionCache(cfg.Cache.MemoryEntries, memstore.NewMemoryStore())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating cache: %v\n", err)
		os.Exit(1)
	}
	defer ec.Close()

	fmt.Println("SCAN BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Workspace: %s\n", cfg.BaseDir())
	fmt.Printf("Workers:   %d\n\n", cfg.Scan.Workers)

	ctx := context.Background()
	scanUC := usecase.NewScanUseCase(cfg, memstore.NewMemoryStore(), ec)

	start := time.Now()
	cold, err := scanUC.Scan(ctx, usecase.ScanOptions{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Scan error: %v\n", err)
		os.Exit(1)
	}
	coldTime := time.Since(start)

	var warmTotal time.Duration
	for i := 0; i < *runs; i++ {
		start = time.Now()
		if _, err := scanUC.Scan(ctx, usecase.ScanOptions{}); err != nil {
			fmt.Fprintf(os.Stderr, "Scan error: %v\n", err)
			os.Exit(1)
		}
		warmTotal += time.Since(start)
	}
	warm := warmTotal / time.Duration(*runs)
	hits, misses := ec.Stats()

	s := cold.Summary
	fmt.Printf("Repositories: %d\n", s.ReposScanned)
	fmt.Printf("Files:        %d\n", s.FilesScanned)
	fmt.Printf("Endpoints:    %d\n", s.EndpointsFound)
	fmt.Printf("Usages:       %d\n", s.UsagesFound)
	fmt.Printf("Edges:        %d\n", len(cold.Index.Edges))
	fmt.Println(strings.Repeat("-", 70))
	fmt.Printf("Cold scan:    %s\n", coldTime.Round(time.Millisecond))
	fmt.Printf("Warm scan:    %s (avg of %d)\n", warm.Round(time.Millisecond), *runs)
	fmt.Printf("Cache:        %d hits, %d misses, %d records in memory\n", hits, misses, ec.Size())

	unresolved := unresolvedUsages(cold.Index)
	resolved := len(cold.Index.Usages) - len(unresolved)
	rate := 0.0
	if len(cold.Index.Usages) > 0 {
		rate = float64(resolved) / float64(len(cold.Index.Usages))
	}

	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("RESOLUTION:\n")
	fmt.Printf("  Linked usages: %d/%d (%.1f%%)\n", resolved, len(cold.Index.Usages), rate*100)

	if len(unresolved) > 0 && *top > 0 {
		fmt.Printf("\nUnresolved usages:\n")
		for i, u := range unresolved {
			if i == *top {
				fmt.Printf("  ... and %d more\n", len(unresolved)-*top)
				break
			}
			target := u.URL
			if target == "" {
				target = u.EndpointPath
			}
			fmt.Printf("  %s %s:%d %s\n", u.RepoID, shortPath(u.RelFile), u.Line, target)
		}
	}
}

// unresolvedUsages returns usages that no edge references. Usages resolving
// to their own repository count as unresolved here.
func unresolvedUsages(ix *domain.Index) []domain.Usage {
	linked := make(map[string]bool)
	for _, e := range ix.Edges {
		for _, id := range e.UsageIDs {
			linked[id] = true
		}
	}
	var out []domain.Usage
	for id, u := range ix.Usages {
		if !linked[id] {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RepoID != out[j].RepoID {
			return out[i].RepoID < out[j].RepoID
		}
		if out[i].RelFile != out[j].RelFile {
			return out[i].RelFile < out[j].RelFile
		}
		return out[i].Line < out[j].Line
	})
	return out
}

func shortPath(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) > 3 {
		return ".../" + strings.Join(parts[len(parts)-3:], "/")
	}
	return path
}
