package cli

import (
	"github.com/spf13/cobra"

	"github.com/leica1994/dubverse/internal/httpserver"
	"github.com/leica1994/dubverse/internal/observability"
)

var (
	flagServeAddr string
	flagLogFile   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local control-plane HTTP server (spec §6)",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := observability.InitLogger(flagLogFile)
		if err != nil {
			return err
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		srv := httpserver.New(a, logger, flagServeAddr)
		return srv.ListenAndServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagServeAddr, "addr", ":8099", "Listen address")
	serveCmd.Flags().StringVar(&flagLogFile, "log-file", "", "Optional log file (in addition to stderr)")
}
