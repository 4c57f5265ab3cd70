package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tberndt/dbprune/pkg/db"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the database schema",
	Long:  `Create the model tables and indexes in the SQLite database.`,
	Run: func(cmd *cobra.Command, args []string) {
		// Initialize the database
		database, err := db.NewDB(config.DBPath)
		if err != nil {
			fmt.Printf("Error connecting to database: %v\n", err)
			os.Exit(1)
		}
		defer database.Close()

		if err := database.InitDB(); err != nil {
			fmt.Printf("Error initializing database: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Initialized database at %s\n", config.DBPath)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
