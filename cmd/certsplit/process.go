package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Lllllllleong/certsplit/internal/gcp"
	"github.com/Lllllllleong/certsplit/internal/models"
	"github.com/Lllllllleong/certsplit/internal/services"
)

var (
	processOutput       string
	processClean        bool
	processNoOrganize   bool
	processNoOCR        bool
	processNoForceOCR   bool
	processOptimize     bool
	processPatterns     string
	processUploadBucket string
)

var processCmd = &cobra.Command{
	Use:   "process <input.pdf>",
	Short: "OCR, split and name every certificate in a scanned batch",
	Args:  cobra.ExactArgs(1),
	RunE:  runProcess,
}

func init() {
	f := processCmd.Flags()
	f.StringVarP(&processOutput, "output", "o", "", "output directory (default: <input dir>/<input name>_processed)")
	f.BoolVar(&processClean, "clean", false, "empty a non-empty --output directory before writing")
	f.BoolVar(&processNoOrganize, "no-organize", false, "leave named files flat instead of grouping them by tag")
	f.BoolVar(&processNoOCR, "no-ocr", false, "skip OCR and use the input's existing text layer")
	f.BoolVar(&processNoForceOCR, "no-force-ocr", false, "only OCR pages without a text layer")
	f.BoolVar(&processOptimize, "optimize", false, "optimize the OCR output before splitting")
	f.StringVar(&processPatterns, "patterns", "", "YAML file overriding field patterns and certificate types")
	f.StringVar(&processUploadBucket, "upload-bucket", "", "GCS bucket to publish the results to")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.Pipeline.OutputDir = processOutput
	}
	if flags.Changed("clean") {
		cfg.Pipeline.Clean = processClean
	}
	if flags.Changed("no-organize") {
		cfg.Pipeline.AutoOrganize = !processNoOrganize
	}
	if flags.Changed("no-ocr") {
		cfg.OCR.Disabled = processNoOCR
	}
	if flags.Changed("no-force-ocr") {
		cfg.OCR.Force = !processNoForceOCR
	}
	if flags.Changed("optimize") {
		cfg.Pipeline.Optimize = processOptimize
	}
	if flags.Changed("patterns") {
		cfg.Pipeline.PatternsFile = processPatterns
	}

	processor, err := services.NewProcessorFromConfig(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	progress := newProgressView()
	processor.OnProgress(progress.Update)
	result, err := processor.Process(ctx, args[0])
	progress.Finish()
	if err != nil {
		return err
	}

	printResult(result)

	if processUploadBucket != "" {
		objects, err := gcp.NewObjectStore(ctx)
		if err != nil {
			return err
		}
		defer objects.Close()
		publisher := services.NewResultPublisher(objects, services.PublisherConfig{Concurrency: cfg.Cloud.UploadConcurrency}, logger)
		uploaded, err := publisher.Publish(ctx, result.OutputDirectory, processUploadBucket, result.RunID)
		if err != nil {
			return err
		}
		color.Green("Published %d files to gs://%s/%s/", len(uploaded), processUploadBucket, result.RunID)
	}
	return nil
}

// progressView prints stage messages and renders chunk progress as a bar.
type progressView struct {
	bar *progressbar.ProgressBar
}

func newProgressView() *progressView {
	return &progressView{}
}

func (v *progressView) Update(p services.Progress) {
	if p.Stage != services.ProgressChunk {
		v.Finish()
		color.Cyan("%s", p.Message)
		return
	}
	if v.bar == nil {
		v.bar = progressbar.NewOptions(p.Total,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("Naming certificates"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprint(os.Stderr, "\n")
			}),
		)
	}
	_ = v.bar.Set(p.Current)
}

func (v *progressView) Finish() {
	if v.bar != nil {
		_ = v.bar.Finish()
		v.bar = nil
	}
}

func printResult(r *models.ProcessingResult) {
	fmt.Println()
	color.New(color.Bold).Println("Processing Results")
	fmt.Printf("  Total certificates: %d\n", r.Total)
	color.Green("  Successfully processed: %d", r.Successful)
	if r.Failed > 0 {
		color.Red("  Failed: %d", r.Failed)
	} else {
		fmt.Printf("  Failed: %d\n", r.Failed)
	}
	fmt.Printf("  Output directory: %s\n", r.OutputDirectory)

	if len(r.Failures) == 0 {
		return
	}
	fmt.Println()
	color.New(color.Bold, color.FgRed).Println("Failed certificates")
	for _, f := range r.Failures {
		fmt.Printf("  pages %d-%d: %s", f.StartPage+1, f.EndPage, f.Message)
		if f.PreservedAs != "" {
			fmt.Printf(" (kept as %s)", f.PreservedAs)
		}
		fmt.Println()
	}
}
