// Package main provides lootctl, an offline tool for inspecting loot map
// files and spawn audit logs.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/cory-johannsen/loot/internal/audit"
	"github.com/cory-johannsen/loot/internal/game/catalog"
	"github.com/cory-johannsen/loot/internal/game/dice"
	"github.com/cory-johannsen/loot/internal/game/lootmap"
	"github.com/cory-johannsen/loot/internal/host"
)

const usage = `usage:
  lootctl validate [-items <dir>] <lootmap.json>
  lootctl summary [-seed <n>] [-items <dir>] <lootmap.json> <types> <count>
  lootctl audit <spawns-*.jsonl.zst>...`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one subcommand and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage)
		return 2
	}
	var err error
	switch args[0] {
	case "validate":
		err = validate(args[1:], stdout)
	case "summary":
		err = summary(args[1:], stdout)
	case "audit":
		err = auditReport(args[1:], stdout)
	default:
		err = fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// errInvalid signals that validate found problems it already printed.
var errInvalid = errors.New("loot map has problems")

func loadRegistry(dir string) (*host.Registry, error) {
	if dir == "" {
		return nil, nil
	}
	defs, err := host.LoadItems(dir)
	if err != nil {
		return nil, err
	}
	return host.NewRegistry(defs)
}

func decodeFile(path string, reg *host.Registry) (*lootmap.LootMap, []lootmap.Issue, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, nil, err
	}
	var valid lootmap.ResourceValidator
	if reg != nil {
		valid = reg.IsValidResource
	}
	lm, issues, err := lootmap.Decode(data, valid)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return lm, issues, data, nil
}

func validate(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	itemsDir := fs.String("items", "", "item definitions directory used to check resource ids")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New(usage)
	}
	reg, err := loadRegistry(*itemsDir)
	if err != nil {
		return err
	}
	lm, issues, data, err := decodeFile(fs.Arg(0), reg)
	if err != nil {
		return err
	}

	problems := 0
	if err := lootmap.ValidateSchema(data); err != nil {
		fmt.Fprintf(out, "schema: %v\n", err)
		problems++
	}
	for _, is := range issues {
		fmt.Fprintln(out, is.String())
		if is.Kind != lootmap.IssueTunable {
			problems++
		}
	}
	fmt.Fprintf(out, "%d items in %d categories, %d problems\n", lm.Catalog.Len(), len(lm.Catalog.Types()), problems)
	if problems > 0 {
		return errInvalid
	}
	return nil
}

func summary(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	seed := fs.Uint64("seed", 0, "seed for reproducible draws; 0 uses crypto randomness")
	itemsDir := fs.String("items", "", "item definitions directory used for display names")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 3 {
		return errors.New(usage)
	}
	flags, err := catalog.ParseItemType(fs.Arg(1))
	if err != nil {
		return err
	}
	count, err := strconv.Atoi(fs.Arg(2))
	if err != nil || count < 1 {
		return fmt.Errorf("count must be a positive integer, got %q", fs.Arg(2))
	}
	reg, err := loadRegistry(*itemsDir)
	if err != nil {
		return err
	}
	lm, _, _, err := decodeFile(fs.Arg(0), reg)
	if err != nil {
		return err
	}
	lm.Catalog.PruneDisabled()

	var src dice.Source = dice.NewCryptoSource()
	if *seed != 0 {
		src = dice.NewSeededSource(*seed)
	}
	nameOf := func(id string) string { return id }
	if reg != nil {
		nameOf = reg.NameOf
	}
	printCounts(out, lm.Catalog.Summarize(flags, count, src, nameOf))
	return nil
}

func auditReport(args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	total := 0
	reasons := map[string]int{}
	resources := map[string]int{}
	for _, path := range args {
		events, err := audit.ReadFile(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		total += len(events)
		byReason, byResource := audit.Tally(events)
		for r, n := range byReason {
			reasons[string(r)] += n
		}
		for id, n := range byResource {
			resources[id] += n
		}
	}
	fmt.Fprintf(out, "%d events\n\nby reason:\n", total)
	printCounts(out, reasons)
	fmt.Fprintln(out, "\nby resource:")
	printCounts(out, resources)
	return nil
}

// printCounts writes counts in descending order, ties by name.
func printCounts(out io.Writer, counts map[string]int) {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		fmt.Fprintf(out, "%6d  %s\n", counts[name], name)
	}
}
