package main

import (
	"encoding/json"
	"fmt"

	"github.com/DRSN-tech/visual-search/internal/index"
	"github.com/spf13/cobra"
)

func NewVerifyIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify-index",
		Short: "Check index artifacts for consistency",
		Long:  `Load index artifacts from a build directory and check that the index, the id map and the manifest agree.`,
		Args:  cobra.NoArgs,
		RunE:  runVerifyIndex,
	}

	cmd.Flags().String("dir", "", "build directory with manifest.json")
	cmd.Flags().Int("search-k", -1, "annoy search_k used for loading")
	_ = cmd.MarkFlagRequired("dir")

	return cmd
}

func runVerifyIndex(cmd *cobra.Command, _ []string) error {
	dir, _ := cmd.Flags().GetString("dir")
	searchK, _ := cmd.Flags().GetInt("search-k")

	idx, ids, manifest, err := index.Load(dir, searchK)
	if err != nil {
		return fmt.Errorf("verify %s: %w", dir, err)
	}

	out, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s\nok: %s index with %d vectors, %d ids\n", out, idx.Kind(), idx.Len(), ids.Len())
	return nil
}
