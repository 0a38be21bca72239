package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Amund211/uniresolve/internal/adapters/uniprot"
	"github.com/Amund211/uniresolve/internal/logging"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	httpClient uniprot.HttpClient

	restURL   string
	recordURL string
	verbose   bool
}

func (o *rootOptions) newUniProt(timeout time.Duration) (*uniprot.UniProt, error) {
	poll := uniprot.DefaultPollConfig()
	if timeout != 0 {
		poll.MaxElapsedTime = timeout
	}

	u, err := uniprot.NewUniProt(o.httpClient, uniprot.Endpoints{
		RecordBaseURL: o.recordURL,
		RESTBaseURL:   o.restURL,
	}, poll)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize UniProt client: %w", err)
	}
	return u, nil
}

func newRootCmd(httpClient uniprot.HttpClient) *cobra.Command {
	opts := &rootOptions{httpClient: httpClient}

	rootCmd := &cobra.Command{
		Use:   "uniresolve",
		Short: "Look up UniProt accessions and records",
		Long: `uniresolve maps protein identifiers like B3AT_HUMAN to their canonical
UniProt primary accession using the ID mapping service, and fetches UniProt
flat-file records.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			cmd.SetContext(logging.AddToContext(cmd.Context(), logger))
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.restURL, "rest-url", uniprot.DefaultRESTBaseURL, "Base URL of the UniProt REST API")
	rootCmd.PersistentFlags().StringVar(&opts.recordURL, "record-url", uniprot.DefaultRecordBaseURL, "Prefix of flat-file record URLs")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log requests and polling to stderr")

	rootCmd.AddCommand(newAccessionCmd(opts))
	rootCmd.AddCommand(newRecordCmd(opts))

	return rootCmd
}
