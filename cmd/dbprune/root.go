package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tberndt/dbprune/pkg/models"
)

var (
	cfgFile   string
	config    models.Config
	defaultDB = filepath.Join(os.Getenv("HOME"), ".dbprune.db")
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dbprune",
	Short: "Retention pruning for the application database",
	Long: `A CLI tool to delete expired records from the application's SQLite
database. Models declare how their expired rows are found and removed;
dbprune discovers the prunable ones and deletes their expired records
in chunks, or reports what a run would delete.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.dbprune.yaml)")
	rootCmd.PersistentFlags().StringVar(&config.DBPath, "db", defaultDB, "SQLite database path")
	rootCmd.PersistentFlags().StringVar(&config.ModelsDir, "models-dir", "models", "model definition directory")
	rootCmd.PersistentFlags().IntVar(&config.AuditRetentionDays, "audit-retention-days", 90, "days of audit events to keep")
	rootCmd.PersistentFlags().StringVar(&config.S3Endpoint, "s3-endpoint", "", "S3 endpoint URL for upload blobs")
	rootCmd.PersistentFlags().StringVar(&config.S3Bucket, "s3-bucket", "", "S3 bucket holding upload blobs")
	rootCmd.PersistentFlags().StringVar(&config.S3AccessKey, "s3-access-key", "", "S3 access key")
	rootCmd.PersistentFlags().StringVar(&config.S3SecretKey, "s3-secret-key", "", "S3 secret key")
	rootCmd.PersistentFlags().StringVar(&config.S3Region, "s3-region", "default", "S3 region")
}

// initConfig reads in a config file and environment overrides. Flags
// set explicitly on the command line win over the file; environment
// variables win over both.
func initConfig() {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".dbprune")
		v.SetConfigType("yaml")
		v.AddConfigPath(os.Getenv("HOME"))
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing default config file is fine; an explicit one must
		// be readable.
		if cfgFile != "" {
			fmt.Printf("Error reading config file: %v\n", err)
			os.Exit(1)
		}
	} else {
		var fileCfg models.Config
		if err := v.Unmarshal(&fileCfg); err != nil {
			fmt.Printf("Error parsing config file: %v\n", err)
			os.Exit(1)
		}
		applyFileConfig(fileCfg)
	}

	// Environment variables can override config
	if os.Getenv("DBPRUNE_DB") != "" {
		config.DBPath = os.Getenv("DBPRUNE_DB")
	}
	if os.Getenv("DBPRUNE_MODELS_DIR") != "" {
		config.ModelsDir = os.Getenv("DBPRUNE_MODELS_DIR")
	}
	if os.Getenv("DBPRUNE_S3_ENDPOINT") != "" {
		config.S3Endpoint = os.Getenv("DBPRUNE_S3_ENDPOINT")
	}
	if os.Getenv("DBPRUNE_S3_BUCKET") != "" {
		config.S3Bucket = os.Getenv("DBPRUNE_S3_BUCKET")
	}
	if os.Getenv("DBPRUNE_S3_ACCESS_KEY") != "" {
		config.S3AccessKey = os.Getenv("DBPRUNE_S3_ACCESS_KEY")
	}
	if os.Getenv("DBPRUNE_S3_SECRET_KEY") != "" {
		config.S3SecretKey = os.Getenv("DBPRUNE_S3_SECRET_KEY")
	}
	if os.Getenv("DBPRUNE_S3_REGION") != "" {
		config.S3Region = os.Getenv("DBPRUNE_S3_REGION")
	}
}

// applyFileConfig copies config-file values into fields whose flags
// were left at their defaults.
func applyFileConfig(fileCfg models.Config) {
	flags := rootCmd.PersistentFlags()
	setString := func(flag string, dst *string, val string) {
		if val != "" && !flags.Changed(flag) {
			*dst = val
		}
	}
	setString("db", &config.DBPath, fileCfg.DBPath)
	setString("models-dir", &config.ModelsDir, fileCfg.ModelsDir)
	setString("s3-endpoint", &config.S3Endpoint, fileCfg.S3Endpoint)
	setString("s3-bucket", &config.S3Bucket, fileCfg.S3Bucket)
	setString("s3-access-key", &config.S3AccessKey, fileCfg.S3AccessKey)
	setString("s3-secret-key", &config.S3SecretKey, fileCfg.S3SecretKey)
	setString("s3-region", &config.S3Region, fileCfg.S3Region)
	if fileCfg.AuditRetentionDays > 0 && !flags.Changed("audit-retention-days") {
		config.AuditRetentionDays = fileCfg.AuditRetentionDays
	}
}
