package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vicluzy/pst-extract/config"
	imapsource "github.com/vicluzy/pst-extract/imap"
	"github.com/vicluzy/pst-extract/mailbox"
	"github.com/vicluzy/pst-extract/runner"
)

var (
	imapHost               string
	imapPort               int
	imapUser               string
	imapPass               string
	imapUseTLS             bool
	imapInsecureSkipVerify bool
	imapName               string
)

var imapCmd = &cobra.Command{
	Use:   "imap",
	Short: "Extract a live IMAP account instead of an archived container",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(cmd)
		if err != nil {
			return err
		}

		if imapPass == "" {
			imapPass = os.Getenv("IMAP_PASS")
		}
		if imapPass == "" {
			return fmt.Errorf("IMAP password must be provided via --imap-pass or IMAP_PASS env var")
		}

		logger, cleanup, err := setupLogger(cfg)
		if err != nil {
			return err
		}
		defer func() {
			_ = cleanup()
		}()

		slog.SetDefault(logger)
		logger.Info("starting imap extraction", "host", imapHost, "user", imapUser, "out", cfg.OutDir, "zip", cfg.ZipPath)

		opts := imapsource.Options{
			Host:               imapHost,
			Port:               imapPort,
			Username:           imapUser,
			Password:           imapPass,
			UseTLS:             imapUseTLS,
			InsecureSkipVerify: imapInsecureSkipVerify,
			Name:               imapName,
		}

		name := imapName
		if name == "" {
			name = imapUser
		}
		source := runner.Source{
			Name: name,
			Open: func() (mailbox.Container, error) {
				return imapsource.Dial(opts, logger)
			},
		}

		return run(cfg, logger, []runner.Source{source})
	},
}

func init() {
	flags := imapCmd.Flags()
	flags.StringVar(&imapHost, "imap-host", "", "IMAP server hostname")
	flags.IntVar(&imapPort, "imap-port", 993, "IMAP server port")
	flags.StringVar(&imapUser, "imap-user", "", "IMAP username")
	flags.StringVar(&imapPass, "imap-pass", "", "IMAP password (falls back to IMAP_PASS env var)")
	flags.BoolVar(&imapUseTLS, "use-tls", true, "Use TLS for the IMAP connection")
	flags.BoolVar(&imapInsecureSkipVerify, "insecure-skip-verify", false, "Skip TLS certificate verification (not recommended)")
	flags.StringVar(&imapName, "name", "", "Container name for the output layout (defaults to the username)")

	cobra.CheckErr(imapCmd.MarkFlagRequired("imap-host"))
	cobra.CheckErr(imapCmd.MarkFlagRequired("imap-user"))

	rootCmd.AddCommand(imapCmd)
}
