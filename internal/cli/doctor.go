// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// doctor.go - Doctor command implementation for brainchat.
//
// Command: doctor
// Short:   Run health checks and diagnostics
// Aliases: diag
//
// Examples:
//   brainchat doctor             Run all health checks
//   brainchat doctor --json      Results as JSON
//   brainchat doctor --fix       Pull catalog models that are missing
//
// Health Checks Performed:
//   1. Config Valid       - Config file parses and validates
//   2. Ollama Running     - Ollama server is responding
//   3. Catalog Models     - Lite and pro models are downloaded
//   4. Data Writable      - Session directory is writable
//   5. Sessions Readable  - Stored sessions decode
//
// Exit Codes:
//   0   No check failed
//   1   One or more checks failed

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/brainchat/internal/config"
	"github.com/jeranaias/brainchat/internal/ollama"
	"github.com/jeranaias/brainchat/internal/storage"
)

var (
	doctorJSONFlag bool
	doctorFixFlag  bool
)

var doctorCmd = &cobra.Command{
	Use:     "doctor",
	Aliases: []string{"diag"},
	Short:   "Run health checks and diagnostics",
	Args:    cobra.NoArgs,
	RunE:    runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorJSONFlag, "json", false, "Output in JSON format")
	doctorCmd.Flags().BoolVar(&doctorFixFlag, "fix", false, "Pull missing catalog models")
	rootCmd.AddCommand(doctorCmd)
}

// =============================================================================
// HEALTH CHECK TYPES
// =============================================================================

// CheckStatus represents the status of a health check.
type CheckStatus int

const (
	CheckPass CheckStatus = iota
	CheckWarn
	CheckFail
)

// String returns the lowercase status name used in JSON output.
func (s CheckStatus) String() string {
	switch s {
	case CheckPass:
		return "pass"
	case CheckWarn:
		return "warn"
	case CheckFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Symbol returns the rendered status marker.
func (s CheckStatus) Symbol() string {
	switch s {
	case CheckPass:
		return SuccessStyle.Render("[OK]")
	case CheckWarn:
		return WarningStyle.Render("[!!]")
	case CheckFail:
		return ErrorStyle.Render("[FAIL]")
	default:
		return "?"
	}
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // Suggested fix command or instruction

	// missing lists catalog models a fix can pull
	missing []string
}

// Render returns a formatted string representation of the health check.
func (c *HealthCheck) Render() string {
	result := fmt.Sprintf("%s %s", c.Status.Symbol(), ValueStyle.Render(c.Message))
	if c.Status != CheckPass && c.Fix != "" {
		result += "\n" + DimStyle.Render("    -> "+c.Fix)
	}
	return result
}

// ollamaChecker is the part of the Ollama client the checks use.
type ollamaChecker interface {
	CheckRunning(ctx context.Context) error
	ListModels(ctx context.Context) ([]ollama.ModelInfo, error)
}

// =============================================================================
// DOCTOR HANDLER
// =============================================================================

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, cfgErr := loadConfig()
	if cfg == nil {
		cfg = config.Default()
	}
	client := newOllamaClient(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	checks := runAllChecks(ctx, cfg, cfgErr, client)

	out := cmd.OutOrStdout()
	summary := summarizeChecks(checks)
	if doctorJSONFlag {
		if err := writeDoctorJSON(out, checks, summary); err != nil {
			return err
		}
	} else {
		writeDoctorReport(out, checks, summary)
	}

	if doctorFixFlag {
		for _, c := range checks {
			for _, id := range c.missing {
				fmt.Fprintf(out, "Pulling %s\n", id)
				if err := client.Pull(context.Background(), id, nil); err != nil {
					fmt.Fprintf(out, "  %s could not pull %s: %v\n", WarningStyle.Render("[!!]"), id, err)
					continue
				}
				fmt.Fprintf(out, "  %s pulled %s\n", SuccessStyle.Render("[OK]"), id)
			}
		}
	}

	if summary.Failed > 0 {
		return fmt.Errorf("%d health check(s) failed", summary.Failed)
	}
	return nil
}

func summarizeChecks(checks []*HealthCheck) DoctorSummary {
	var s DoctorSummary
	for _, c := range checks {
		switch c.Status {
		case CheckPass:
			s.Passed++
		case CheckWarn:
			s.Warned++
		case CheckFail:
			s.Failed++
		}
	}
	s.Healthy = s.Failed == 0
	return s
}

func writeDoctorReport(w io.Writer, checks []*HealthCheck, summary DoctorSummary) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, TitleStyle.Render("brainchat doctor"))
	fmt.Fprintln(w, RenderSeparator(41))
	for _, c := range checks {
		fmt.Fprintln(w, c.Render())
	}
	fmt.Fprintln(w, RenderSeparator(41))

	parts := []string{fmt.Sprintf("%d passed", summary.Passed)}
	if summary.Warned > 0 {
		parts = append(parts, WarningStyle.Render(fmt.Sprintf("%d warning", summary.Warned)))
	}
	if summary.Failed > 0 {
		parts = append(parts, ErrorStyle.Render(fmt.Sprintf("%d failed", summary.Failed)))
	}
	fmt.Fprintln(w, strings.Join(parts, ", "))
}

func writeDoctorJSON(w io.Writer, checks []*HealthCheck, summary DoctorSummary) error {
	data := DoctorData{Checks: make([]DoctorCheck, 0, len(checks)), Summary: summary}
	for _, c := range checks {
		data.Checks = append(data.Checks, DoctorCheck{
			Name:    c.Name,
			Status:  c.Status.String(),
			Message: c.Message,
			Fix:     c.Fix,
		})
	}
	resp := NewJSONResponse("doctor", data)
	if summary.Failed > 0 {
		resp.Fail(fmt.Sprintf("%d health check(s) failed", summary.Failed))
	}
	return resp.Print(w)
}

// =============================================================================
// HEALTH CHECK FUNCTIONS
// =============================================================================

// runAllChecks runs every check in order.
func runAllChecks(ctx context.Context, cfg *config.Config, cfgErr error, checker ollamaChecker) []*HealthCheck {
	running := checkOllamaRunning(ctx, cfg, checker)
	checks := []*HealthCheck{
		checkConfigValid(cfgErr),
		running,
	}
	if running.Status == CheckPass {
		checks = append(checks, checkCatalogModels(ctx, cfg, checker))
	}
	return append(checks,
		checkDataWritable(cfg),
		checkSessionsReadable(ctx, cfg),
	)
}

func checkConfigValid(cfgErr error) *HealthCheck {
	check := &HealthCheck{Name: "Config Valid"}
	if cfgErr != nil {
		check.Status = CheckFail
		check.Message = fmt.Sprintf("Config invalid: %v", cfgErr)
		check.Fix = "Run: brainchat config show, then fix the reported key"
		return check
	}
	check.Status = CheckPass
	check.Message = "Config valid"
	return check
}

func checkOllamaRunning(ctx context.Context, cfg *config.Config, checker ollamaChecker) *HealthCheck {
	check := &HealthCheck{Name: "Ollama Running"}
	if err := checker.CheckRunning(ctx); err != nil {
		check.Status = CheckFail
		check.Message = fmt.Sprintf("Ollama not reachable at %s", cfg.Backend.OllamaURL)
		check.Fix = "Run: ollama serve"
		return check
	}
	check.Status = CheckPass
	check.Message = fmt.Sprintf("Ollama running at %s", cfg.Backend.OllamaURL)
	return check
}

func checkCatalogModels(ctx context.Context, cfg *config.Config, checker ollamaChecker) *HealthCheck {
	check := &HealthCheck{Name: "Catalog Models"}
	models, err := checker.ListModels(ctx)
	if err != nil {
		check.Status = CheckWarn
		check.Message = fmt.Sprintf("Could not list models: %v", err)
		return check
	}

	installed := make(map[string]bool, len(models))
	for _, m := range models {
		installed[m.Name] = true
	}
	for _, m := range cfg.Catalog().Models() {
		if !installed[m.ID] {
			check.missing = append(check.missing, m.ID)
		}
	}

	if len(check.missing) > 0 {
		check.Status = CheckWarn
		check.Message = "Models not downloaded: " + strings.Join(check.missing, ", ")
		check.Fix = "Run: brainchat doctor --fix (or ollama pull " + check.missing[0] + ")"
		return check
	}
	check.Status = CheckPass
	check.Message = "Lite and pro models downloaded"
	return check
}

func checkDataWritable(cfg *config.Config) *HealthCheck {
	check := &HealthCheck{Name: "Data Writable"}
	dir, err := cfg.DataDir()
	if err == nil {
		err = os.MkdirAll(dir, 0700)
	}
	if err == nil {
		marker := filepath.Join(dir, ".write_test")
		if err = os.WriteFile(marker, []byte("ok"), 0600); err == nil {
			_ = os.Remove(marker)
		}
	}
	if err != nil {
		check.Status = CheckFail
		check.Message = fmt.Sprintf("Data directory not writable: %v", err)
		check.Fix = "Set storage.dir to a writable directory"
		return check
	}
	check.Status = CheckPass
	check.Message = fmt.Sprintf("Data directory writable: %s", dir)
	return check
}

func checkSessionsReadable(ctx context.Context, cfg *config.Config) *HealthCheck {
	check := &HealthCheck{Name: "Sessions Readable"}
	adapter, err := openAdapter(cfg, zap.NewNop())
	if err != nil {
		check.Status = CheckFail
		check.Message = fmt.Sprintf("Could not open %s storage: %v", cfg.Storage.Driver, err)
		return check
	}
	defer adapter.Close()

	sessions, found, err := adapter.Load(ctx)
	var perr *storage.ParseError
	switch {
	case errors.As(err, &perr):
		check.Status = CheckWarn
		check.Message = "Stored sessions are corrupt and will be replaced on next start"
		check.Fix = "Back up the data directory before chatting"
	case err != nil:
		check.Status = CheckFail
		check.Message = fmt.Sprintf("Could not read sessions: %v", err)
	case !found:
		check.Status = CheckPass
		check.Message = "No saved sessions yet"
	default:
		check.Status = CheckPass
		check.Message = fmt.Sprintf("%d saved session(s) (%s)", len(sessions), cfg.Storage.Driver)
	}
	return check
}
