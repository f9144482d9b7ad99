package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Lllllllleong/certsplit/internal/services"
)

var (
	inspectPatterns string
	inspectShowText bool
)

// inspect helps triage a preserved failed chunk: it shows what each field
// lookup found and the filename the certificate would get.
var inspectCmd = &cobra.Command{
	Use:   "inspect <chunk.pdf>",
	Short: "Show the metadata and filename extracted from one certificate PDF",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectPatterns, "patterns", "", "YAML file overriding field patterns and certificate types")
	inspectCmd.Flags().BoolVar(&inspectShowText, "text", false, "print the corrected text")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("patterns") {
		cfg.Pipeline.PatternsFile = inspectPatterns
	}
	patterns, err := services.LoadPatternConfig(cfg.Pipeline.PatternsFile)
	if err != nil {
		return err
	}

	text, err := services.DocumentText(services.NewPDFTools(), args[0])
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return services.ErrNoText
	}
	corrector := services.NewTextCorrector()
	text = corrector.Correct(text)
	extractor := services.NewMetadataExtractor(patterns, corrector)

	if inspectShowText {
		fmt.Println(text)
		fmt.Println()
	}

	color.New(color.Bold).Println("Fields")
	for _, f := range services.AllFields {
		printField(f.String(), extractor.ExtractField(f, text).Value)
	}

	fmt.Println()
	color.New(color.Bold).Println("Resolved")
	due, err := extractor.ExtractDueDate(text)
	printResolved("due date", due, err)
	certType, err := extractor.ExtractCertificateType(text)
	printResolved("certificate type", certType, err)

	meta, err := extractor.Extract(text)
	if err != nil {
		return nil
	}
	name, err := services.NewFilenameGenerator().Generate(meta, false)
	if err != nil {
		printResolved("filename", "", err)
		return nil
	}
	fmt.Println()
	color.Green("Filename: %s", name)
	return nil
}

func printResolved(label, value string, err error) {
	if err != nil {
		value = color.RedString("%v", err)
	}
	printField(label, value)
}
