package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func NewBuildIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build-index",
		Short: "Embed the catalog and build a new index",
		Long:  `Embed new or changed catalog products, build the index, write artifacts to INDEX_DIR and publish them.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reembed, _ := cmd.Flags().GetBool("reembed")

			application, log, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer func() {
				if err := application.Close(); err != nil {
					log.Warnf("%v", err)
				}
			}()

			res, err := application.BuildIndex(cmd.Context(), reembed)
			if err != nil {
				log.Errorf(err, "index build failed")
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"build %s: %s index, %d vectors of dim %d (%s)\nproducts %d, embedded %d, failed %d, pruned %d, published %t, took %s\n",
				res.BuildID, res.Kind, res.Size, res.Dimension, res.ModelVersion,
				res.Catalog.Products, res.Catalog.Embedded, res.Catalog.Failed, res.Catalog.Pruned,
				res.Published, res.Duration.Round(time.Millisecond),
			)
			return nil
		},
	}

	cmd.Flags().Bool("reembed", false, "re-embed every product, not only new or stale ones")

	return cmd
}
