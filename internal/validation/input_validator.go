package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	apperrors "cryptorecs/internal/errors"
)

// importable lists the extensions the importer can decode
var importable = map[string]bool{
	".csv":  true,
	".txt":  true,
	".xlsx": true,
	".xlsm": true,
}

// InputValidator checks the import source before a run is launched
type InputValidator struct {
	logger *slog.Logger
}

// NewInputValidator creates a new input validator
func NewInputValidator(logger *slog.Logger) *InputValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &InputValidator{
		logger: logger.With(slog.String("component", "input_validator")),
	}
}

// Report summarizes a validated source directory
type Report struct {
	Directory string   `json:"directory"`
	Pattern   string   `json:"pattern"`
	Files     []string `json:"files"`
	Skipped   []string `json:"skipped,omitempty"`
}

// ValidateSourceDir checks that dir is a readable directory and lists the
// importable files matching pattern. No matching files is not an error.
func (v *InputValidator) ValidateSourceDir(dir, pattern string) (Report, error) {
	report := Report{Directory: dir, Pattern: pattern, Files: []string{}}

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		v.logger.Error("source_dir_missing", slog.String("directory", dir))
		return report, apperrors.NewNotFoundError(fmt.Sprintf("input directory %s", dir))
	}
	if err != nil {
		return report, fmt.Errorf("failed to stat directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		v.logger.Error("source_dir_not_directory", slog.String("path", dir))
		return report, apperrors.NewAppValidationError(fmt.Sprintf("%s is not a directory", dir))
	}

	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return report, apperrors.NewAppValidationError(fmt.Sprintf("invalid pattern %q: %v", pattern, err))
	}

	for _, match := range matches {
		if err := v.ValidateFile(match); err != nil {
			report.Skipped = append(report.Skipped, match)
			continue
		}
		report.Files = append(report.Files, match)
	}

	if len(report.Files) == 0 {
		v.logger.Warn("no_input_files",
			slog.String("directory", dir),
			slog.String("pattern", pattern))
		return report, nil
	}

	v.logger.Info("source_dir_validated",
		slog.String("directory", dir),
		slog.Int("files_found", len(report.Files)),
		slog.Int("files_skipped", len(report.Skipped)))
	return report, nil
}

// ValidateFile checks that path is a readable regular file the importer can
// decode. Spreadsheet lock files are rejected.
func (v *InputValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return apperrors.NewNotFoundError(fmt.Sprintf("file %s", path))
	}
	if err != nil {
		return fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		return apperrors.NewAppValidationError(fmt.Sprintf("%s is a directory, not a file", path))
	}

	base := filepath.Base(path)
	if strings.HasPrefix(base, "~$") {
		v.logger.Debug("lock_file_skipped", slog.String("file", path))
		return apperrors.NewAppValidationError(fmt.Sprintf("%s is a spreadsheet lock file", path))
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !importable[ext] {
		v.logger.Debug("unsupported_extension",
			slog.String("file", path),
			slog.String("extension", ext))
		return apperrors.NewAppValidationError(fmt.Sprintf("%s has unsupported extension %q", path, ext))
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("file %s is not readable: %w", path, err)
	}
	file.Close()
	return nil
}
