// Command statusfix rewrites legacy crate status spellings left behind by
// earlier ingest paths into the canonical lifecycle values, then prints a
// per-mapping summary.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"

	"cratecore/internal/core"
	"cratecore/pkg/domain"
)

// legacyStatusMap translates historical free-text statuses to canonical ones.
var legacyStatusMap = map[string]domain.CrateStatus{
	"in transit":   domain.StatusInTransit,
	"at warehouse": domain.StatusAvailable,
	"availble":     domain.StatusAvailable,
}

var exitFunc = os.Exit

func main() {
	dryRun := flag.Bool("dry-run", false, "report legacy statuses without rewriting them")
	flag.Parse()

	store, err := core.OpenPersistentStoreFromEnv(core.NewDefaultRulesEngine())
	if err != nil {
		log.Printf("open store: %v", err)
		exitFunc(1)
		return
	}
	if err := run(context.Background(), store, *dryRun, os.Stdout); err != nil {
		log.Printf("statusfix: %v", err)
		exitFunc(1)
	}
}

func run(ctx context.Context, store core.PersistentStore, dryRun bool, out io.Writer) error {
	fixed := make(map[string]int)
	for _, crate := range store.ListCrates() {
		target, legacy := legacyStatusMap[string(crate.Status)]
		if !legacy {
			continue
		}
		if !dryRun {
			id := crate.CrateID
			if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
				_, err := tx.UpdateCrate(id, func(c *domain.Crate) error {
					c.Status = target
					return nil
				})
				return err
			}); err != nil {
				return fmt.Errorf("fix crate %s: %w", id, err)
			}
		}
		fixed[string(crate.Status)]++
	}

	if len(fixed) == 0 {
		fmt.Fprintln(out, "no legacy statuses found")
		return nil
	}
	keys := make([]string, 0, len(fixed))
	for k := range fixed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	verb := "fixed"
	if dryRun {
		verb = "found"
	}
	for _, k := range keys {
		fmt.Fprintf(out, "%s %d crate(s): %q -> %s\n", verb, fixed[k], k, legacyStatusMap[k])
	}
	return nil
}
