package cmd

import (
	"github.com/go-pg/migrations"
	"github.com/spf13/cobra"

	"dicom-scp-server/database"
	_ "dicom-scp-server/database/migrate"
	"dicom-scp-server/logging"
)

// migrateCmd applies database migrations. Arguments pass through to
// go-pg/migrations: up, down, version, set_version.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "apply database migrations",
	Run: func(cmd *cobra.Command, args []string) {
		logger := logging.NewLogger()

		db, err := database.DBConn()
		if err != nil {
			logger.WithField("module", "database").Fatal(err)
		}

		if _, _, err := migrations.Run(db, "init"); err != nil {
			logger.WithField("module", "migrate").Fatal(err)
		}

		oldVersion, newVersion, err := migrations.Run(db, args...)
		if err != nil {
			logger.WithField("module", "migrate").Fatal(err)
		}
		if newVersion != oldVersion {
			logger.Infof("migrated from version %d to %d", oldVersion, newVersion)
		} else {
			logger.Infof("version is %d", oldVersion)
		}
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
