package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Amund211/uniresolve/internal/adapters/uniprot"
	"github.com/Amund211/uniresolve/internal/domain"
	"github.com/Amund211/uniresolve/internal/strutils"
	"github.com/spf13/cobra"
)

const defaultIdentifier = "B3AT_HUMAN"

func newAccessionCmd(opts *rootOptions) *cobra.Command {
	var timeout time.Duration
	var dumpPath string

	cmd := &cobra.Command{
		Use:   "accession [identifiers...]",
		Short: "Resolve identifiers to a canonical primary accession",
		Long: `The accession command submits the identifiers as a single ID mapping job and
prints the first primary accession in the results that is not an isoform.

Identifiers may be given as separate arguments or as a comma separated list.
Without arguments, ` + defaultIdentifier + ` is resolved.`,
		Example: `  uniresolve accession
  uniresolve accession B3AT_HUMAN P02730 --timeout 30s
  uniresolve accession B3AT_HUMAN --dump results.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if len(args) == 0 {
				args = []string{defaultIdentifier}
			}
			var rawIdentifiers []string
			for _, arg := range args {
				rawIdentifiers = append(rawIdentifiers, strutils.SplitIdentifiers(arg)...)
			}

			identifiers, err := strutils.NormalizeIdentifiers(rawIdentifiers)
			if err != nil {
				return fmt.Errorf("%w: %w", domain.ErrInvalidIdentifier, err)
			}

			u, err := opts.newUniProt(timeout)
			if err != nil {
				return err
			}

			outcome, err := u.Map(ctx, identifiers)
			if err != nil {
				return fmt.Errorf("failed to map %s: %w", strutils.JoinIdentifiers(identifiers), err)
			}

			if dumpPath != "" {
				if err := dumpToFile(dumpPath, outcome); err != nil {
					return err
				}
			}

			if outcome.Kind != domain.OutcomeFound {
				return fmt.Errorf("%w: %s", domain.ErrNoCanonicalAccession, strutils.JoinIdentifiers(identifiers))
			}

			if len(outcome.FailedIDs) > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "Could not map: %s\n", strings.Join(outcome.FailedIDs, ", "))
			}

			fmt.Fprintln(cmd.OutOrStdout(), outcome.Accession)
			return nil
		},
	}

	cmd.Flags().DurationVarP(&timeout, "timeout", "t", uniprot.DefaultPollConfig().MaxElapsedTime, "How long to wait for the mapping job to finish")
	cmd.Flags().StringVar(&dumpPath, "dump", "", "Write the mapping results to this file as YAML")

	return cmd
}

func dumpToFile(path string, outcome domain.MappingOutcome) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create dump file: %w", err)
	}

	if err := uniprot.DumpResults(file, outcome); err != nil {
		file.Close()
		return err
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close dump file: %w", err)
	}
	return nil
}
