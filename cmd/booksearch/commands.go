package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex [book]",
	Short: "Rebuild the index of one book, or of the whole collection",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openService()
		if err != nil {
			return err
		}
		defer closeFn()
		book := ""
		if len(args) == 1 {
			book = args[0]
		}
		report, err := svc.Reindex(cmd.Context(), book)
		if err != nil {
			return err
		}
		if err := printResult(cmd.OutOrStdout(), report); err != nil {
			return err
		}
		if !report.OK() {
			return fmt.Errorf("%d book(s) failed to index", len(report.Failed))
		}
		return nil
	},
}

var searchBook string

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the index and print hits with highlight regions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openService()
		if err != nil {
			return err
		}
		defer closeFn()
		resp, err := svc.Search(cmd.Context(), args[0], searchBook)
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), resp)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <book>",
	Short: "Remove a book from the index, leaving its markup on disk",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openService()
		if err != nil {
			return err
		}
		defer closeFn()
		if err := svc.DeleteBook(cmd.Context(), args[0]); err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), map[string]string{"book_id": args[0], "status": "deleted"})
	},
}

var booksCmd = &cobra.Command{
	Use:   "books",
	Short: "List books on disk and in the index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openService()
		if err != nil {
			return err
		}
		defer closeFn()
		books, err := svc.Books(cmd.Context())
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), books)
	},
}

var bookCmd = &cobra.Command{
	Use:   "book",
	Short: "Inspect a single book",
}

var bookMetadataCmd = &cobra.Command{
	Use:   "metadata <book>",
	Short: "Print a book's bibliographic metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openService()
		if err != nil {
			return err
		}
		defer closeFn()
		md, err := svc.Metadata(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), md)
	},
}

var bookTOCCmd = &cobra.Command{
	Use:   "toc <book>",
	Short: "Print a book's table of contents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openService()
		if err != nil {
			return err
		}
		defer closeFn()
		toc, err := svc.TOC(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), toc)
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchBook, "book", "", "restrict the search to one book")
	bookCmd.AddCommand(bookMetadataCmd, bookTOCCmd)
}
