package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/deeds-tracker/internal/chunk"
	"github.com/joseph-ayodele/deeds-tracker/internal/common"
	"github.com/joseph-ayodele/deeds-tracker/internal/ocr"
)

var (
	chunkSize    int
	chunkOverlap int
	showText     bool
	noFallback   bool
	verbose      bool
	timeout      time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "pdftext [file.pdf]",
	Short: "Print the extracted text and chunk layout of a PDF",
	Long: `Reads a local PDF the same way the upload pipeline does, then prints page
count, extraction method and how the text would be split into chunks.`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runPDFText,
}

func init() {
	rootCmd.Flags().IntVar(&chunkSize, "chunk-size", 8000, "Chunk size in characters")
	rootCmd.Flags().IntVar(&chunkOverlap, "overlap", 500, "Overlap between chunks in characters")
	rootCmd.Flags().BoolVar(&showText, "text", false, "Print the full extracted text")
	rootCmd.Flags().BoolVar(&noFallback, "no-fallback", false, "Do not fall back to pdftotext")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Extraction timeout")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runPDFText(cmd *cobra.Command, args []string) error {
	level := "info"
	if verbose {
		level = "debug"
	}
	logger, err := common.NewLogger("local", level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ex := ocr.NewExtractor(ocr.Config{DisableFallback: noFallback}, logger)
	res, err := ex.Extract(ctx, data)
	if err != nil {
		logger.Error("pdftext.extract.failed", zap.String("file", args[0]), zap.Strings("warnings", res.Warnings), zap.Error(err))
		return err
	}

	chunks, err := chunk.Split(res.Text, chunkSize, chunkOverlap)
	if err != nil {
		return err
	}
	printReport(cmd.OutOrStdout(), args[0], res, chunks)
	return nil
}

func printReport(w io.Writer, path string, res ocr.ExtractionResult, chunks []chunk.Chunk) {
	runes := len([]rune(res.Text))
	fmt.Fprintf(w, "file:     %s\n", path)
	fmt.Fprintf(w, "method:   %s\n", res.Method)
	fmt.Fprintf(w, "pages:    %d\n", res.Pages)
	fmt.Fprintf(w, "chars:    %d\n", runes)
	fmt.Fprintf(w, "elapsed:  %s\n", res.Duration.Round(time.Millisecond))
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "warning:  %s\n", warn)
	}
	fmt.Fprintf(w, "chunks:   %d (size %d, overlap %d)\n", len(chunks), chunkSize, chunkOverlap)
	rejoin := "ok"
	if chunk.Join(chunks) != res.Text {
		rejoin = "MISMATCH"
	}
	fmt.Fprintf(w, "rejoin:   %s\n", rejoin)
	for _, c := range chunks {
		fmt.Fprintf(w, "  #%-3d %6d chars  overlap %-4d %q\n", c.Index, len([]rune(c.Text)), c.Overlap, preview(c.Text, 48))
	}
	if showText {
		fmt.Fprintf(w, "\n%s\n", res.Text)
	}
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
