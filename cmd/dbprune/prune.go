package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tberndt/dbprune/pkg/blob"
	"github.com/tberndt/dbprune/pkg/db"
	"github.com/tberndt/dbprune/pkg/models"
	"github.com/tberndt/dbprune/pkg/prune"
)

var (
	pruneAll     bool
	pruneModels  []string
	pruneExcept  []string
	pruneChunk   int
	prunePretend bool
	pruneVacuum  bool
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired records from prunable models",
	Long: `Discover prunable models and delete their expired records in chunks.

By default the models directory is scanned for definition files and
only models declaring a pruning capability are selected. Use --all to
consider every registered model instead, --model to prune an explicit
list, or --except to exclude models from a scan. With --pretend the
command only reports how many records each model would prune.`,
	Run: func(cmd *cobra.Command, args []string) {
		// Initialize the database
		database, err := db.NewDB(config.DBPath)
		if err != nil {
			fmt.Printf("Error connecting to database: %v\n", err)
			os.Exit(1)
		}
		defer database.Close()

		reg, err := buildRegistry(cmd.Context())
		if err != nil {
			fmt.Printf("Error building model registry: %v\n", err)
			os.Exit(1)
		}

		opts := prune.Options{
			Models:  pruneModels,
			Except:  pruneExcept,
			All:     pruneAll,
			Dir:     config.ModelsDir,
			Chunk:   pruneChunk,
			Pretend: prunePretend,
		}

		sink := prune.NewConsoleSink(os.Stdout)
		if err := prune.Run(cmd.Context(), database, reg, opts, sink, prune.Events{}); err != nil {
			fmt.Printf("Error pruning: %v\n", err)
			os.Exit(1)
		}

		if pruneVacuum && !prunePretend {
			fmt.Println("Vacuuming database...")
			if err := database.Vacuum(cmd.Context()); err != nil {
				fmt.Printf("Error vacuuming database: %v\n", err)
				os.Exit(1)
			}
		}
	},
}

// buildRegistry wires up the application's models. The uploads model
// gets an S3 store only when a bucket is configured.
func buildRegistry(ctx context.Context) (*models.Registry, error) {
	var store blob.Deleter
	if config.S3Bucket != "" {
		s3store, err := blob.NewS3Store(ctx, blob.Options{
			Endpoint:  config.S3Endpoint,
			Bucket:    config.S3Bucket,
			Region:    config.S3Region,
			AccessKey: config.S3AccessKey,
			SecretKey: config.S3SecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("initializing blob store: %w", err)
		}
		store = s3store
	}
	return models.DefaultRegistry(config, store)
}

func init() {
	rootCmd.AddCommand(pruneCmd)

	// Add flags to the prune command
	pruneCmd.Flags().BoolVar(&pruneAll, "all", false, "consider every registered model instead of scanning the models directory")
	pruneCmd.Flags().StringSliceVar(&pruneModels, "model", nil, "prune only the named model (repeatable)")
	pruneCmd.Flags().StringSliceVar(&pruneExcept, "except", nil, "exclude the named model from the scan (repeatable)")
	pruneCmd.Flags().IntVar(&pruneChunk, "chunk", prune.DefaultChunk, "number of records deleted per batch")
	pruneCmd.Flags().BoolVar(&prunePretend, "pretend", false, "report what would be pruned without deleting")
	pruneCmd.Flags().BoolVar(&pruneVacuum, "vacuum", false, "run VACUUM after pruning")
}
