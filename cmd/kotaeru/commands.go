package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/kotaeru/internal/cli"
	"github.com/hyperjump/kotaeru/internal/models"
	"github.com/hyperjump/kotaeru/internal/server"
	"github.com/hyperjump/kotaeru/internal/watcher"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "kotaeru",
		Short:         "kotaeru - answer questions from your documents",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "config file path")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newServerCmd(opts),
		newIngestCmd(opts),
		newAskCmd(opts),
		newDocumentsCmd(opts),
		newDeleteCmd(opts),
		newStatusCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "kotaeru version %s\n", version)
		},
	}
}

func newServerCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Start the HTTP server and watch inbox directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, logger, err := setup(ctx, opts, true)
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer c.Close()
			cfg := c.Config

			watchSvc := watcher.NewWatcher(c.Indexer, cfg.Watch.Directories, cfg.Watch.RecursiveOrDefault(),
				watcher.WithLogger(logger))
			if err := watchSvc.Start(ctx); err != nil {
				return fmt.Errorf("failed to start watcher: %w", err)
			}
			defer watchSvc.Stop()
			go watchSvc.Sync(ctx)

			srv := server.NewServer(c.Service, cfg, logger, server.WithWatcher(watchSvc))
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					c.SaveIndex()
					return fmt.Errorf("server failed: %w", err)
				}
			case <-ctx.Done():
			}

			logger.Info("Shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Stop(shutdownCtx)
			watchSvc.Stop()
			c.SaveIndex()
			return nil
		},
	}
}

func newIngestCmd(opts *rootOptions) *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "ingest <file-or-directory>...",
		Short: "Extract, chunk and index files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, logger, err := setup(ctx, opts, false)
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer c.Close()
			defer c.SaveIndex()

			out := cmd.OutOrStdout()
			var errs []error
			for _, path := range args {
				info, err := os.Stat(path)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				if info.IsDir() {
					n, err := c.Indexer.IndexDirectory(ctx, path, recursive)
					fmt.Fprintf(out, "Indexed %d file(s) from %s\n", n, path)
					if err != nil {
						errs = append(errs, err)
					}
					continue
				}
				changed, err := c.Indexer.IndexFile(ctx, path)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", path, err))
					continue
				}
				if changed {
					fmt.Fprintf(out, "Indexed %s\n", path)
				} else {
					fmt.Fprintf(out, "Unchanged %s\n", path)
				}
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", true, "descend into subdirectories")
	return cmd
}

func newAskCmd(opts *rootOptions) *cobra.Command {
	var (
		serverURL string
		format    string
		topK      int
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from every matching document",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := cli.ParseFormat(format)
			if err != nil {
				return err
			}
			req := &models.AskRequest{Question: joinArgs(args), TopK: topK}
			var resp *models.AskResponse
			if serverURL != "" {
				resp, err = newClient(serverURL).Ask(cmd.Context(), req)
			} else {
				resp, err = askLocal(cmd.Context(), opts, req)
			}
			if err != nil {
				return err
			}
			return cli.WriteAnswer(cmd.OutOrStdout(), resp, outFormat)
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "server URL (empty = open the local corpus)")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text or json")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of passages to answer from (0 = configured default)")
	return cmd
}

func askLocal(ctx context.Context, opts *rootOptions, req *models.AskRequest) (*models.AskResponse, error) {
	c, logger, err := setup(ctx, opts, true)
	if err != nil {
		return nil, err
	}
	defer logger.Sync()
	defer c.Close()
	return c.Service.Ask(ctx, req)
}

func newDocumentsCmd(opts *rootOptions) *cobra.Command {
	var (
		serverURL string
		format    string
		query     string
	)
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "List ingested documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := cli.ParseFormat(format)
			if err != nil {
				return err
			}
			var docs []models.DocumentSummary
			if serverURL != "" {
				docs, err = newClient(serverURL).Documents(cmd.Context(), query)
			} else {
				c, logger, serr := setup(cmd.Context(), opts, false)
				if serr != nil {
					return serr
				}
				defer logger.Sync()
				defer c.Close()
				docs, err = c.Service.Documents(cmd.Context(), query)
			}
			if err != nil {
				return err
			}
			return cli.WriteDocuments(cmd.OutOrStdout(), docs, outFormat)
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "server URL (empty = open the local corpus)")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text or json")
	cmd.Flags().StringVarP(&query, "query", "q", "", "keep only documents matching this text")
	return cmd
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <document-id>",
		Short: "Delete a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, logger, err := setup(cmd.Context(), opts, false)
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer c.Close()
			if _, err := c.Service.Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("deletion failed: %w", err)
			}
			c.SaveIndex()
			fmt.Fprintf(cmd.OutOrStdout(), "Document deleted: %s\n", args[0])
			return nil
		},
	}
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var (
		serverURL string
		format    string
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show corpus, index and storage status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := cli.ParseFormat(format)
			if err != nil {
				return err
			}
			var status *statusResponse
			if serverURL != "" {
				status, err = newClient(serverURL).Status(cmd.Context())
				if err != nil {
					return err
				}
			} else {
				c, logger, err := setup(cmd.Context(), opts, false)
				if err != nil {
					return err
				}
				defer logger.Sync()
				defer c.Close()
				status = localStatus(cmd.Context(), c)
			}
			if outFormat == cli.OutputJSON {
				return cli.WriteJSON(cmd.OutOrStdout(), status)
			}
			writeStatusText(cmd.OutOrStdout(), status)
			return nil
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "server URL (empty = open the local corpus)")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text or json")
	return cmd
}

// joinArgs joins positional args so multi-word questions work with or without quotes.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
