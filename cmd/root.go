// Package cmd implements the command line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "dicom-scp-server",
	Short: "DICOM storage provider with asynchronous metadata ingest",
	Long: `A DICOM service class provider accepting image transfers from
modalities. Received objects are persisted to disk immediately and their
patient, study, series and instance metadata is recorded to PostgreSQL
in batches by a background writer.`,
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
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
	}

	// scp
	viper.SetDefault("port", "localhost:11112")
	viper.SetDefault("ae_title", "DICOM_SCP")
	viper.SetDefault("storage_root", "./data")
	viper.SetDefault("ae_filter_enabled", false)
	viper.SetDefault("allowed_ae_titles", []string{})

	// ingest
	viper.SetDefault("batch_size", 50)
	viper.SetDefault("min_wait", "2s")
	viper.SetDefault("max_wait", "30s")

	// database
	viper.SetDefault("db_addr", "localhost:5432")
	viper.SetDefault("db_user", "postgres")
	viper.SetDefault("db_password", "postgres")
	viper.SetDefault("db_database", "dicom_scp")

	// http api
	viper.SetDefault("api_port", "localhost:3000")
	viper.SetDefault("enable_cors", false)

	// logging
	viper.SetDefault("log_level", "debug")
	viper.SetDefault("log_textlogging", false)

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		logrus.WithField("file", viper.ConfigFileUsed()).Info("using config file")
	}
}
