package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/apksift/apksift/internal/classifier"
	"github.com/apksift/apksift/internal/export"
	"github.com/apksift/apksift/internal/intel"
	"github.com/apksift/apksift/internal/pipeline"
	"github.com/apksift/apksift/internal/scanner"
	"github.com/apksift/apksift/internal/triage"
	"github.com/apksift/apksift/pkg/models"
)

func main() {
	// Check for subcommands
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	subcommand := os.Args[1]

	switch subcommand {
	case "classify":
		runClassifyCommand(os.Args[2:])
	case "scan":
		runScanCommand(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("apksift - APK malware classification from static-analysis reports")
	fmt.Println("")
	fmt.Println("Usage:")
	fmt.Println("  apksift classify [options]   Classify an existing scanner report")
	fmt.Println("  apksift scan [options]       Run the containerized scanner on APKs, then classify")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  classify                Flatten a report, align it to the trained model's schema, predict")
	fmt.Println("  scan                    Invoke the scanner image on one or more APKs and classify the reports")
	fmt.Println("")
	fmt.Println("Run 'apksift <command> --help' for more information on a command.")
}

// pipelineFlags are the flags shared by both subcommands
type pipelineFlags struct {
	modelPath   *string
	exclusions  *string
	knownHashes *string
	featuresCSV *string
	summaryOut  *string
	apiKey      *string
}

func addPipelineFlags(fs *flag.FlagSet) *pipelineFlags {
	return &pipelineFlags{
		modelPath:   fs.String("model", "model.json", "Path to the trained model artifact"),
		exclusions:  fs.String("exclusions", "", "Path to excluded-column list (one name per line, optional)"),
		knownHashes: fs.String("known-hashes", "", "Path to known-malware hash list (one hash per line, optional)"),
		featuresCSV: fs.String("features-csv", "", "Write the aligned feature matrix to this CSV file (optional)"),
		summaryOut:  fs.String("output", "", "Write the summary batch to this JSON file (optional)"),
		apiKey:      fs.String("api-key", os.Getenv("OPENAI_API_KEY"), "OpenAI API key for LLM triage (optional)"),
	}
}

// buildPipeline loads the model and auxiliary lists and wires the pipeline
func buildPipeline(f *pipelineFlags) (*pipeline.Pipeline, error) {
	model, err := classifier.Load(*f.modelPath)
	if err != nil {
		return nil, err
	}

	excluded, err := intel.LoadExcludedColumns(*f.exclusions)
	if err != nil {
		return nil, err
	}

	knownHashes, err := intel.LoadKnownHashes(*f.knownHashes)
	if err != nil {
		return nil, err
	}

	return pipeline.New(model, excluded, knownHashes), nil
}

func runClassifyCommand(args []string) {
	classifyFlags := flag.NewFlagSet("classify", flag.ExitOnError)
	f := addPipelineFlags(classifyFlags)
	classifyFlags.Parse(args)

	reportPaths := classifyFlags.Args()
	if len(reportPaths) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: apksift classify [options] <report.json> [more reports...]")
		os.Exit(1)
	}

	p, err := buildPipeline(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	reports := make([]*models.AnalysisReport, 0, len(reportPaths))
	for _, path := range reportPaths {
		report, err := scanner.LoadReport(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", path, err)
			os.Exit(1)
		}
		reports = append(reports, report)
	}

	classifyAndPresent(p, reports, f)
}

func runScanCommand(args []string) {
	scanFlags := flag.NewFlagSet("scan", flag.ExitOnError)
	f := addPipelineFlags(scanFlags)
	var (
		image       = scanFlags.String("image", "apksift/scanner:latest", "Scanner docker image")
		timeout     = scanFlags.Duration("timeout", 10*time.Minute, "Per-APK scanner timeout")
		concurrency = scanFlags.Int("concurrency", 2, "Max concurrent scans")
	)
	scanFlags.Parse(args)

	apkPaths := scanFlags.Args()
	if len(apkPaths) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: apksift scan [options] <app.apk> [more APKs...]")
		os.Exit(1)
	}

	p, err := buildPipeline(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	workDir, err := scanner.TempWorkDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer os.RemoveAll(workDir)

	fmt.Printf("🔍 Scanning %d APKs with %s...\n", len(apkPaths), *image)

	s := scanner.NewScanner(*image, *timeout)
	results, err := s.ScanAll(context.Background(), apkPaths, workDir, *concurrency)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var reports []*models.AnalysisReport
	for _, result := range results {
		if result.Error != nil {
			fmt.Fprintf(os.Stderr, "   ⚠️  %s: %v\n", result.APKPath, result.Error)
			continue
		}
		reports = append(reports, result.Report)
	}

	if len(reports) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no APK produced a usable report")
		os.Exit(1)
	}

	classifyAndPresent(p, reports, f)
}

// classifyAndPresent runs the batch through the pipeline and renders the
// verdicts, optionally writing the feature matrix and summary files.
func classifyAndPresent(p *pipeline.Pipeline, reports []*models.AnalysisReport, f *pipelineFlags) {
	results, err := p.RunBatch(reports)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	summaries := make([]*models.Summary, len(results))
	rows := make([][]float64, len(results))
	for i, result := range results {
		summaries[i] = result.Summary
		rows[i] = result.Row
	}

	fmt.Printf("\n📊 Classification results (%d artifacts):\n", len(summaries))
	for _, summary := range summaries {
		marker := "✅"
		if summary.Prediction == models.LabelMalware {
			marker = "🚨"
		}
		fmt.Printf("\n%s %s\n", marker, summary.Hash)
		fmt.Printf("   Package:  %s\n", summary.PackageName)
		fmt.Printf("   Verdict:  %s\n", summary.Verdict)
		if summary.KnownMalware {
			fmt.Printf("   Note:     hash matches the known-malware list\n")
		}
		if len(summary.DangerousPermissions) > 0 {
			fmt.Printf("   Dangerous permissions (%d):\n", len(summary.DangerousPermissions))
			for _, perm := range summary.DangerousPermissions {
				fmt.Printf("     - %s\n", perm)
			}
		}
	}

	if *f.featuresCSV != "" {
		if err := export.WriteFeaturesFile(*f.featuresCSV, p.Schema(), rows); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing feature CSV: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\n💾 Feature matrix saved to: %s\n", *f.featuresCSV)
	}

	if *f.summaryOut != "" {
		if err := export.WriteSummaries(*f.summaryOut, summaries); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing summaries: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("💾 Summaries saved to: %s\n", *f.summaryOut)
	}

	if *f.apiKey != "" {
		runTriage(*f.apiKey, reports, summaries)
	}
}

// runTriage asks the LLM reviewer for a second opinion on each verdict
func runTriage(apiKey string, reports []*models.AnalysisReport, summaries []*models.Summary) {
	reviewer, err := triage.NewReviewer(apiKey, 3)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: LLM triage unavailable: %v\n", err)
		return
	}

	items := make([]triage.Item, len(summaries))
	for i := range summaries {
		items[i] = triage.Item{
			Summary:  summaries[i],
			Opcodes:  reports[i].Opcodes,
			APICalls: reports[i].APICalls,
		}
	}

	fmt.Println("\n🤖 Requesting LLM second opinions...")
	assessments, err := reviewer.ReviewAll(context.Background(), items)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: LLM triage failed: %v\n", err)
	}

	for i, assessment := range assessments {
		if assessment == nil {
			continue
		}
		agreement := "disagrees with"
		if assessment.AgreesWithVerdict {
			agreement = "agrees with"
		}
		fmt.Printf("\n   %s — reviewer %s the verdict (confidence %.2f)\n", summaries[i].Hash, agreement, assessment.Confidence)
		fmt.Printf("   %s\n", assessment.Justification)
	}
}
