package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/library"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/logger"
)

var (
	cfgFile      string
	libraryRoot  string
	outputFormat string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "booksearch",
	Short: "Index and search a collection of scanned books",
	Long: `booksearch indexes the hOCR markup of a collection of scanned books
and answers keyword queries with page snippets and the word bounding
boxes to highlight on the page images.

Each book lives in <root>/<book>/<book>.hocr.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file")
	rootCmd.PersistentFlags().StringVar(&libraryRoot, "root", "", "collection root (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "json", "output format: json or yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		logger.SetupWriter(os.Stderr, logLevel, "text")
		if outputFormat != "json" && outputFormat != "yaml" {
			return fmt.Errorf("unknown output format %q", outputFormat)
		}
		return nil
	}

	rootCmd.AddCommand(reindexCmd, searchCmd, deleteCmd, booksCmd, bookCmd)
}

// openService loads config and opens the library. The returned close func
// releases the index store.
func openService() (*library.Service, func(), error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if libraryRoot != "" {
		cfg.Library.Root = libraryRoot
	}
	opts, err := library.OptionsFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	svc, err := library.NewService(opts)
	if err != nil {
		opts.Store.Close()
		return nil, nil, err
	}
	return svc, func() { opts.Store.Close() }, nil
}

func printResult(w io.Writer, v any) error {
	if outputFormat == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
