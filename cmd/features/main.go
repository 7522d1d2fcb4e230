package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/apksift/apksift/internal/align"
	"github.com/apksift/apksift/internal/classifier"
	"github.com/apksift/apksift/internal/export"
	"github.com/apksift/apksift/internal/flatten"
	"github.com/apksift/apksift/internal/intel"
	"github.com/apksift/apksift/internal/scanner"
	"github.com/apksift/apksift/pkg/models"
)

func main() {
	var (
		modelPath  = flag.String("model", "model.json", "Trained model artifact, source of the feature schema")
		exclusions = flag.String("exclusions", "", "Excluded-column list, one name per line (optional)")
		outputFile = flag.String("output", "", "Output CSV file (optional, defaults to stdout)")
		help       = flag.Bool("help", false, "Show help")
	)

	flag.Parse()

	reportPaths := flag.Args()
	if *help || len(reportPaths) == 0 {
		printUsage()
		os.Exit(0)
	}

	model, err := classifier.Load(*modelPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	excluded, err := intel.LoadExcludedColumns(*exclusions)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	startTime := time.Now()
	fmt.Fprintf(os.Stderr, "Processing %d reports...\n", len(reportPaths))

	records := make([]*models.FlatRecord, 0, len(reportPaths))
	for _, path := range reportPaths {
		report, err := scanner.LoadReport(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		records = append(records, flatten.Flatten(report))
	}

	schema := model.ExpectedFeatures()
	rows, err := align.Batch(records, excluded, schema)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	duration := time.Since(startTime)
	fmt.Fprintf(os.Stderr, "Completed in %v\n", duration)

	// Write output
	if *outputFile != "" {
		if err := export.WriteFeaturesFile(*outputFile, schema, rows); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Output written to: %s\n", *outputFile)
	} else {
		if err := export.WriteFeaturesCSV(os.Stdout, schema, rows); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
			os.Exit(1)
		}
	}
}

func printUsage() {
	fmt.Println("Usage: features [options] <report.json> [more reports...]")
	fmt.Println()
	fmt.Println("Flatten scanner reports and align them to the trained model's feature")
	fmt.Println("schema, emitting the feature matrix as CSV (no prediction).")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -model string       Trained model artifact (default: model.json)")
	fmt.Println("  -exclusions string  Excluded-column list, one name per line (optional)")
	fmt.Println("  -output string      Output CSV file (optional, defaults to stdout)")
	fmt.Println("  -help               Show this help message")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  features -model model.json report.json")
	fmt.Println("  features -model model.json -exclusions excluded.txt -output features.csv report1.json report2.json")
}
