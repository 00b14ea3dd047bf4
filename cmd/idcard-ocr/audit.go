package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/idcard-ocr/internal/cli"
	"github.com/fpang/idcard-ocr/internal/config"
	"github.com/fpang/idcard-ocr/internal/filehandler"
	"github.com/fpang/idcard-ocr/internal/logging"
	"github.com/fpang/idcard-ocr/internal/report"
)

var (
	pdfDirFlag   string
	imageDirFlag string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Compare source PDFs against extracted front/back images",
	Long: `audit lists every source PDF whose extracted card images are missing or
incomplete, and every extracted image set with no matching PDF.

Examples:
  idcard-ocr audit --pdf-dir ./pdfs --image-dir ./outputs`,
	Run: runAudit,
}

func init() {
	auditCmd.Flags().StringVar(&pdfDirFlag, "pdf-dir", "", "Directory containing source PDFs (required)")
	auditCmd.Flags().StringVar(&imageDirFlag, "image-dir", config.DefaultInputDir, "Directory containing extracted images")
	_ = auditCmd.MarkFlagRequired("pdf-dir")
}

func runAudit(cmd *cobra.Command, args []string) {
	logging.Init(logLevelFlag)

	pdfDir := cli.ValidateAndResolveDirectory(pdfDirFlag)
	imageDir := cli.ValidateAndResolveDirectory(imageDirFlag)

	r, err := filehandler.Audit(pdfDir, imageDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Audit failed")
	}
	report.PrintAudit(os.Stdout, r)
}
