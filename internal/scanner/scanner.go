// Package scanner invokes the external containerized static scanner on an
// APK and decodes the report it produces. The scanner's internals are not
// specified here; only the report file it drops is a contract.
package scanner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/apksift/apksift/pkg/models"
)

// Scanner runs the containerized static-analysis image
type Scanner struct {
	image   string
	timeout time.Duration
}

// NewScanner creates a scanner around a docker image
func NewScanner(image string, timeout time.Duration) *Scanner {
	return &Scanner{image: image, timeout: timeout}
}

// Scan analyzes one APK: the container gets the APK mounted read-only and
// an output directory to drop its report into. The report is then located,
// parsed, and returned.
func (s *Scanner) Scan(ctx context.Context, apkPath, outputDir string) (*models.AnalysisReport, error) {
	apkAbs, err := filepath.Abs(apkPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve APK path: %w", err)
	}
	if _, err := os.Stat(apkAbs); err != nil {
		return nil, fmt.Errorf("APK not found at %s: %w", apkAbs, err)
	}

	outAbs, err := filepath.Abs(outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory: %w", err)
	}
	if err := os.MkdirAll(outAbs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "docker", "run", "--rm",
		"-v", apkAbs+":/sample.apk:ro",
		"-v", outAbs+":/output",
		s.image,
		"/sample.apk", "/output")

	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("scanner timed out after %v", s.timeout)
		}
		return nil, fmt.Errorf("scanner failed: %w\n%s", err, string(output))
	}

	reportPath, err := FindReport(outAbs)
	if err != nil {
		return nil, fmt.Errorf("scanner produced no report: %w", err)
	}

	return LoadReport(reportPath)
}
