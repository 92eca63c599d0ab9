package main

import (
	"fmt"
	"log"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"pdfrag/internal/chunker"
	"pdfrag/internal/config"
	"pdfrag/internal/domain"
	"pdfrag/internal/retrieval"
	"pdfrag/internal/tui"
	"pdfrag/internal/vectorstore"
	"pdfrag/internal/vectorstore/memory"
	"pdfrag/internal/vectorstore/weaviate"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	var collection string

	rootCmd := &cobra.Command{
		Use:   "pdfrag",
		Short: "Ingest PDF documents into a vector store and query them",
		Long:  "pdfrag chunks PDF or text documents page by page, loads the chunks into an external vector store that embeds them, and runs similarity and generative queries against it.",
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config file (defaults to config.yaml, then ~/.config/pdfrag/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&collection, "collection", "", "Collection name override")

	rootCmd.AddCommand(createIngestCommand(&cfgPath, &collection))
	rootCmd.AddCommand(createSearchCommand(&cfgPath, &collection))
	rootCmd.AddCommand(createAskCommand(&cfgPath, &collection))
	rootCmd.AddCommand(createTUICommand(&cfgPath, &collection))

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func createIngestCommand(cfgPath, collection *string) *cobra.Command {
	var cleanup bool

	cmd := &cobra.Command{
		Use:   "ingest <dir>",
		Short: "Extract chunks from a directory of documents and load them into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath, *collection)
			if err != nil {
				return err
			}
			ch, err := buildChunker(cfg)
			if err != nil {
				return err
			}
			chunks, err := ch.Chunk(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Extracted %d chunks\n", len(chunks))

			client, err := buildClient(cfg)
			if err != nil {
				return err
			}
			if err := client.Connect(); err != nil {
				return err
			}
			defer client.Close()

			if err := client.CreateCollection(cleanup); err != nil {
				return err
			}
			if err := client.Populate(chunks); err != nil {
				return err
			}
			fmt.Printf("Loaded %d chunks into collection %s\n", len(chunks), cfg.Collection.Name)
			return nil
		},
	}
	cmd.Flags().BoolVar(&cleanup, "cleanup", false, "Delete any existing collection of this name before creating it")
	return cmd
}

func createSearchCommand(cfgPath, collection *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a similarity search against the collection",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath, *collection)
			if err != nil {
				return err
			}
			client, err := buildClient(cfg)
			if err != nil {
				return err
			}
			if err := client.Connect(); err != nil {
				return err
			}
			defer client.Close()

			if err := client.UseCollection(); err != nil {
				return err
			}
			query := strings.Join(args, " ")
			results, err := client.Search(query, pickLimit(limit, cfg))
			if err != nil {
				return err
			}
			fmt.Print(retrieval.FormatResults(query, results))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "Maximum number of matches (defaults to the configured limit)")
	return cmd
}

func createAskCommand(cfgPath, collection *string) *cobra.Command {
	var limit int
	var task string

	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Run a similarity search plus a grouped generative task over the matches",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath, *collection)
			if err != nil {
				return err
			}
			client, err := buildClient(cfg)
			if err != nil {
				return err
			}
			if err := client.Connect(); err != nil {
				return err
			}
			defer client.Close()

			if err := client.UseCollection(); err != nil {
				return err
			}
			query := strings.Join(args, " ")
			results, generated, err := client.SearchAndAnswer(query, task, pickLimit(limit, cfg))
			if err != nil {
				return err
			}
			fmt.Print(retrieval.FormatResults(query, results))
			fmt.Print(retrieval.FormatGeneratedAnswer(query, task, generated))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "Maximum number of matches (defaults to the configured limit)")
	cmd.Flags().StringVarP(&task, "task", "t", "", "Instruction for the generative layer, e.g. \"Summarize these pages\"")
	cmd.MarkFlagRequired("task")
	return cmd
}

func createTUICommand(cfgPath, collection *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tui <dir>",
		Short: "Ingest a directory and search it interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath, *collection)
			if err != nil {
				return err
			}
			ch, err := buildChunker(cfg)
			if err != nil {
				return err
			}
			chunks, err := ch.Chunk(args[0])
			if err != nil {
				return err
			}

			client, err := buildClient(cfg)
			if err != nil {
				return err
			}
			if err := client.Connect(); err != nil {
				return err
			}
			defer client.Close()

			if err := client.CreateCollection(true); err != nil {
				return err
			}
			if err := client.Populate(chunks); err != nil {
				return err
			}

			status := fmt.Sprintf("Loaded %d chunks. Type to search.", len(chunks))
			m := tui.New(client, cfg.Search.Limit, status)
			if _, err := tea.NewProgram(m).Run(); err != nil {
				return err
			}
			return nil
		},
	}
	return cmd
}

func pickLimit(limit int, cfg *config.AppConfig) int {
	if limit > 0 {
		return limit
	}
	return cfg.Search.Limit
}

func loadConfig(path, collection string) (*config.AppConfig, error) {
	var cfg *config.AppConfig
	var err error
	if path == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if collection != "" {
		cfg.Collection.Name = collection
	}
	return cfg, nil
}

func buildClient(cfg *config.AppConfig) (*retrieval.Client, error) {
	st, err := buildStore(cfg)
	if err != nil {
		return nil, err
	}
	return retrieval.NewClient(st, cfg.Collection.Name), nil
}

func buildStore(cfg *config.AppConfig) (vectorstore.Store, error) {
	schema, err := schemaFromName(cfg.Collection.Schema)
	if err != nil {
		return nil, err
	}
	switch cfg.Store.Type {
	case "memory", "":
		return memory.NewStore(), nil
	case "weaviate":
		if cfg.Store.Weaviate == nil {
			return nil, fmt.Errorf("weaviate store config missing")
		}
		return weaviate.NewStore(weaviate.Config{
			URL:       cfg.Store.Weaviate.URL,
			APIKey:    cfg.Store.Weaviate.APIKey,
			APIKeyEnv: cfg.Store.Weaviate.APIKeyEnv,
			Schema:    schema,
			Timeout:   time.Duration(cfg.Store.Weaviate.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.Store.Type)
	}
}

func buildChunker(cfg *config.AppConfig) (domain.Chunker, error) {
	switch cfg.Chunker.Type {
	case "pdf", "":
		return chunker.NewPDF(nil), nil
	case "text":
		return chunker.NewText(cfg.Chunker.SentencesPerChunk, cfg.Chunker.OverlapSentences, nil), nil
	default:
		return nil, fmt.Errorf("unknown chunker: %s", cfg.Chunker.Type)
	}
}

func schemaFromName(name string) (vectorstore.Schema, error) {
	switch name {
	case "paged", "":
		return vectorstore.SchemaPaged, nil
	case "keyed":
		return vectorstore.SchemaKeyed, nil
	default:
		return 0, fmt.Errorf("unknown collection schema: %s", name)
	}
}
