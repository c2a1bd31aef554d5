// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/openlint/biolint/internal/store"
	"github.com/openlint/biolint/pkg/types"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize persisted lint findings",
	Long: `Stats reads the findings database written by lint --db and prints
per-code and per-severity totals.`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().String("db", "", "SQLite database written by lint --db")
	statsCmd.Flags().String("format", "text", "output format: text, json, or yaml")

	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		dbPath = viper.GetString("store.path")
	}

	db, err := store.Open(types.StoreConfig{Path: dbPath})
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := db.Counts(cmd.Context())
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	case "yaml":
		data, err := yaml.Marshal(stats)
		if err != nil {
			return err
		}
		os.Stdout.Write(data)
		return nil
	case "text", "":
		printStats(stats)
		return nil
	default:
		return fmt.Errorf("unsupported format %q: use text, json, or yaml", format)
	}
}

func printStats(stats *store.Stats) {
	fmt.Printf("%d findings across %d tools\n\n", stats.Messages, stats.Tools)

	codes := make([]string, 0, len(stats.ByCode))
	for code := range stats.ByCode {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		fmt.Printf("%-28s %d\n", code, stats.ByCode[code])
	}

	levels := make([]string, 0, len(stats.ByLevel))
	for level := range stats.ByLevel {
		levels = append(levels, level)
	}
	sort.Strings(levels)
	if len(levels) > 0 {
		fmt.Println()
	}
	for _, level := range levels {
		fmt.Printf("%-28s %d\n", level, stats.ByLevel[level])
	}
}
