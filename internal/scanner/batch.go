package scanner

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/apksift/apksift/pkg/models"
)

// ScanResult holds the outcome of scanning a single APK
type ScanResult struct {
	APKPath string
	Report  *models.AnalysisReport
	Error   error
}

// ScanAll scans a set of APKs with a bounded worker pool. Each APK's scan
// is independent; only the scanner configuration is shared. Failures are
// per-item: one APK failing does not abort the others.
func (s *Scanner) ScanAll(ctx context.Context, apkPaths []string, workDir string, concurrency int) ([]ScanResult, error) {
	if len(apkPaths) == 0 {
		return nil, fmt.Errorf("no APKs to scan")
	}
	if concurrency < 1 {
		concurrency = 1
	}

	log.Printf("Scanning %d APKs (max %d concurrent)", len(apkPaths), concurrency)

	workChan := make(chan string, len(apkPaths))
	resultChan := make(chan ScanResult, len(apkPaths))

	for _, path := range apkPaths {
		workChan <- path
	}
	close(workChan)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for apkPath := range workChan {
				select {
				case <-ctx.Done():
					resultChan <- ScanResult{APKPath: apkPath, Error: ctx.Err()}
					continue
				default:
				}

				outputDir := filepath.Join(workDir, sanitizeName(apkPath))
				report, err := s.Scan(ctx, apkPath, outputDir)
				resultChan <- ScanResult{APKPath: apkPath, Report: report, Error: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make([]ScanResult, 0, len(apkPaths))
	failed := 0
	for result := range resultChan {
		if result.Error != nil {
			failed++
			log.Printf("  scan failed for %s: %v", result.APKPath, result.Error)
		}
		results = append(results, result)
	}

	log.Printf("Completed scanning: %d/%d APKs successful", len(apkPaths)-failed, len(apkPaths))
	return results, nil
}

// sanitizeName derives a directory name from an APK path
func sanitizeName(apkPath string) string {
	base := filepath.Base(apkPath)
	ext := filepath.Ext(base)
	if ext != "" {
		base = base[:len(base)-len(ext)]
	}
	if base == "" {
		base = "apk"
	}
	return base
}

// TempWorkDir creates a scratch directory for a batch of scans
func TempWorkDir() (string, error) {
	dir, err := os.MkdirTemp("", "apksift-scan-*")
	if err != nil {
		return "", fmt.Errorf("failed to create work directory: %w", err)
	}
	return dir, nil
}
