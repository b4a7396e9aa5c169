package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/semlite/semlite/pkg/core"
	"github.com/semlite/semlite/pkg/embed"
	"github.com/semlite/semlite/pkg/semlite"
)

var (
	cfgFile    string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "semlite",
	Short: "Embedded semantic text store",
	Long: `semlite stores short texts in a SQLite file and retrieves them by
semantic similarity, optionally filtered by metadata.`,
	SilenceUsage: true,
}

var insertCmd = &cobra.Command{
	Use:   "insert <text>",
	Short: "Insert a text entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		metaPairs, _ := cmd.Flags().GetStringArray("meta")

		metadata, err := parseMetadata(metaPairs)
		if err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		var insertedID string
		if id != "" {
			insertedID, err = db.InsertWithID(ctx, id, args[0], metadata)
		} else {
			insertedID, err = db.Insert(ctx, args[0], metadata)
		}
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(map[string]string{"id": insertedID})
		}
		fmt.Printf("Inserted entry %s\n", insertedID)
		return nil
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch [file]",
	Short: "Insert one entry per line from a file or stdin",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := os.Stdin
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		var texts []string
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			texts = append(texts, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return err
		}
		if len(texts) == 0 {
			return fmt.Errorf("no input lines")
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		result, err := db.BatchInsert(context.Background(), texts, nil, nil)
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(result)
		}
		fmt.Printf("Inserted %d of %d entries\n", len(texts)-len(result.Failed), len(texts))
		for _, f := range result.Failed {
			fmt.Fprintf(os.Stderr, "line %d failed: %v\n", f.Index+1, f.Err)
		}
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get an entry by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		entry, err := db.Get(context.Background(), args[0])
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(entry)
		}
		fmt.Printf("ID:       %s\n", entry.ID)
		fmt.Printf("Text:     %s\n", entry.Text)
		if len(entry.Metadata) > 0 {
			fmt.Printf("Metadata: %s\n", formatMetadata(entry.Metadata))
		}
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update an entry's text and/or metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		metaPairs, _ := cmd.Flags().GetStringArray("meta")

		var upd semlite.EntryUpdate
		if cmd.Flags().Changed("text") {
			upd.Text = &text
		}
		if len(metaPairs) > 0 {
			metadata, err := parseMetadata(metaPairs)
			if err != nil {
				return err
			}
			upd.Metadata = metadata
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		entry, err := db.Update(context.Background(), args[0], upd)
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(entry)
		}
		fmt.Printf("Updated entry %s\n", entry.ID)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an entry by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		existed, err := db.Delete(context.Background(), args[0])
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(map[string]bool{"existed": existed})
		}
		if existed {
			fmt.Printf("Deleted entry %s\n", args[0])
		} else {
			fmt.Printf("No entry %s\n", args[0])
		}
		return nil
	},
}

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Find entries similar to the given text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		topK, _ := cmd.Flags().GetInt("top-k")
		wherePairs, _ := cmd.Flags().GetStringArray("where")

		where, err := parseMetadata(wherePairs)
		if err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		matches, err := db.Query(context.Background(), args[0], semlite.QueryOptions{
			TopK:  topK,
			Where: where,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(matches)
		}
		if len(matches) == 0 {
			fmt.Println("No matches")
			return nil
		}
		for i, m := range matches {
			fmt.Printf("%d. [%.4f] %s\n", i+1, m.Distance, m.Text)
			fmt.Printf("   id: %s\n", m.ID)
			if len(m.Metadata) > 0 {
				fmt.Printf("   metadata: %s\n", formatMetadata(m.Metadata))
			}
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		stats, err := db.Stats(ctx)
		if err != nil {
			return err
		}
		count, err := db.Count(ctx)
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(map[string]any{
				"collection":        db.Collection(),
				"collection_count":  count,
				"total_collections": stats.Collections,
				"total_entries":     stats.Entries,
				"size_bytes":        stats.SizeBytes,
			})
		}
		fmt.Printf("Collection:  %s (%d entries)\n", db.Collection(), count)
		fmt.Printf("Store:       %d entries in %d collections\n", stats.Entries, stats.Collections)
		fmt.Printf("File size:   %d bytes\n", stats.SizeBytes)
		return nil
	},
}

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "List collections in the store file",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := core.Open(context.Background(), core.DefaultConfig(viper.GetString("db")))
		if err != nil {
			return err
		}
		defer store.Close()

		colls, err := store.Collections(context.Background())
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(colls)
		}
		for _, c := range colls {
			fmt.Printf("%s\t(model %s, %d dims)\n", c.Name, c.Model, c.Dimensions)
		}
		return nil
	},
}

// openDB builds the embedder from configuration and opens the configured
// collection.
func openDB() (*semlite.DB, error) {
	var embedder embed.Embedder
	switch viper.GetString("embedder") {
	case "openai":
		e := embed.NewOpenAIEmbedder(
			viper.GetString("api-key"),
			viper.GetString("model"),
			viper.GetInt("dim"))
		if baseURL := viper.GetString("base-url"); baseURL != "" {
			e.BaseURL = baseURL
		}
		embedder = e
	case "hash", "":
		embedder = embed.NewHashEmbedder(viper.GetInt("dim"))
	default:
		return nil, fmt.Errorf("unknown embedder %q (want hash or openai)", viper.GetString("embedder"))
	}

	cfg := semlite.Config{
		Path:           viper.GetString("db"),
		Collection:     viper.GetString("collection"),
		DistanceMetric: viper.GetString("metric"),
	}
	return semlite.Open(cfg, semlite.WithEmbedder(embedder))
}

// parseMetadata turns repeated key=value flags into a metadata map, guessing
// scalar types: bools and numbers parse as such, everything else is a string.
func parseMetadata(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	metadata := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid metadata pair %q (want key=value)", pair)
		}
		switch {
		case value == "true":
			metadata[key] = true
		case value == "false":
			metadata[key] = false
		default:
			if n, err := strconv.ParseFloat(value, 64); err == nil {
				metadata[key] = n
			} else {
				metadata[key] = value
			}
		}
	}
	return metadata, nil
}

func formatMetadata(metadata map[string]any) string {
	data, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Sprintf("%v", metadata)
	}
	return string(data)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("semlite")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix("SEMLITE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// Missing config files are fine; flags and env cover everything.
	_ = viper.ReadInConfig()
}

func main() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default semlite.yaml)")
	rootCmd.PersistentFlags().String("db", "semlite.db", "database file path")
	rootCmd.PersistentFlags().String("collection", "default", "collection name")
	rootCmd.PersistentFlags().String("embedder", "hash", "embedder: hash or openai")
	rootCmd.PersistentFlags().Int("dim", 128, "vector dimensions")
	rootCmd.PersistentFlags().String("metric", "cosine", "distance metric: cosine, euclidean or dot")
	rootCmd.PersistentFlags().String("model", "", "embedding model name (openai embedder)")
	rootCmd.PersistentFlags().String("api-key", "", "API key (openai embedder)")
	rootCmd.PersistentFlags().String("base-url", "", "embeddings endpoint URL (openai embedder)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "machine-readable output")

	for _, name := range []string{"db", "collection", "embedder", "dim", "metric", "model", "api-key", "base-url"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}

	insertCmd.Flags().String("id", "", "explicit entry id")
	insertCmd.Flags().StringArray("meta", nil, "metadata key=value (repeatable)")
	updateCmd.Flags().String("text", "", "new text (re-embeds the entry)")
	updateCmd.Flags().StringArray("meta", nil, "metadata key=value (repeatable)")
	queryCmd.Flags().Int("top-k", 5, "maximum results")
	queryCmd.Flags().StringArray("where", nil, "metadata filter key=value (repeatable)")

	rootCmd.AddCommand(insertCmd, batchCmd, getCmd, updateCmd, deleteCmd, queryCmd, statsCmd, collectionsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
