package cli

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/openarc/strata/internal/schema"
)

// ValidationError is one schema problem found during validation.
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Types  []string          `json:"types,omitempty"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <schema-dir>",
		Short: "Validate CUE resource definitions",
		Long: `Validate the CUE resource definitions without starting the server.

Compiles the definitions and builds the resource type registry, reporting
the position of the first problem found. Useful as a pre-deploy check.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	reg, err := schema.LoadDir(dir)
	if err != nil {
		return outputValidationFailure(formatter, err)
	}

	types := make([]string, 0)
	for _, typ := range reg.Types() {
		types = append(types, typ.PublicName)
		formatter.VerboseLog("validated resource type: %s", typ.PublicName)
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Types: types})
	}
	fmt.Fprintf(formatter.Writer, "✓ %d resource type(s) valid\n", len(types))
	return nil
}

func outputValidationFailure(formatter *OutputFormatter, err error) error {
	verr := ValidationError{Message: err.Error()}

	var cerr *schema.CompileError
	if errors.As(err, &cerr) {
		verr.Field = cerr.Field
		verr.Message = cerr.Message
		if cerr.Pos.IsValid() {
			verr.Line = cerr.Pos.Line()
		}
	}

	if formatter.Format == "json" {
		result := ValidationResult{Valid: false, Errors: []ValidationError{verr}}
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: "INVALID_SCHEMA", Message: verr.Message},
		}
		if encodeErr := json.NewEncoder(formatter.Writer).Encode(response); encodeErr != nil {
			return encodeErr
		}
		return NewExitError(ExitFailure, "validation failed")
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	if verr.Line > 0 {
		fmt.Fprintf(formatter.Writer, "line %d\n", verr.Line)
	}
	if verr.Field != "" {
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", verr.Field, verr.Message)
	} else {
		fmt.Fprintf(formatter.Writer, "  %s\n", verr.Message)
	}
	return NewExitError(ExitFailure, "validation failed")
}
