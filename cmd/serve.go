package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"dicom-scp-server/api"
	"dicom-scp-server/database"
	"dicom-scp-server/fs"
	"dicom-scp-server/ingest"
	"dicom-scp-server/logging"
	"dicom-scp-server/scp"
)

// serveCmd starts the DICOM listener, the batch writer and the admin
// http server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "start the DICOM storage provider",
	Run: func(cmd *cobra.Command, args []string) {
		logger := logging.NewLogger()

		db, err := database.DBConn()
		if err != nil {
			logger.WithField("module", "database").Fatal(err)
		}

		objectStore := fs.NewObjectStore(viper.GetString("storage_root"))

		batchSize := viper.GetInt("batch_size")
		hintAt := batchSize * 8 / 10
		if hintAt < 1 {
			hintAt = 1
		}
		queue := ingest.NewQueue(hintAt)

		writer := ingest.NewBatchWriter(queue, database.NewMetadataStore(db), ingest.WriterOptions{
			BatchSize: batchSize,
			MinWait:   viper.GetDuration("min_wait"),
			MaxWait:   viper.GetDuration("max_wait"),
		}, logger, nil)
		writer.Start()

		scpServer := scp.NewServer(scp.Config{
			AETitle:           viper.GetString("ae_title"),
			EnforceAEFilter:   viper.GetBool("ae_filter_enabled"),
			AllowedCallingAEs: viper.GetStringSlice("allowed_ae_titles"),
		}, objectStore, queue, logger)

		mux, err := api.New(db, objectStore, writer, viper.GetBool("enable_cors"))
		if err != nil {
			logger.WithField("module", "api").Fatal(err)
		}
		httpServer := &http.Server{Addr: viper.GetString("api_port"), Handler: mux}

		ctx, cancel := context.WithCancel(context.Background())
		scpDone := make(chan error, 1)
		go func() {
			scpDone <- scpServer.ListenAndServe(ctx, viper.GetString("port"))
		}()
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.WithField("module", "api").Error(err)
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

		select {
		case <-quit:
			logger.Info("shutting down")
		case err := <-scpDone:
			logger.WithField("module", "scp").Error(err)
		}

		// Stop accepting associations first, then the admin api, then
		// drain the queue so every stored object's metadata is flushed
		// before the database connection goes away.
		cancel()

		shutdownCtx, release := context.WithTimeout(context.Background(), 30*time.Second)
		defer release()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.WithField("module", "api").Error(err)
		}

		writer.Close()

		if err := db.Close(); err != nil {
			logger.WithField("module", "database").Error(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
