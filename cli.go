package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/snoble/slvsx/pkg/compile"
	"github.com/snoble/slvsx/pkg/engine"
	"github.com/snoble/slvsx/pkg/export/dxf"
	"github.com/snoble/slvsx/pkg/export/stl"
	"github.com/snoble/slvsx/pkg/generate"
	"github.com/snoble/slvsx/pkg/sketch"
	"github.com/snoble/slvsx/pkg/solver"
	"github.com/snoble/slvsx/pkg/solver/gaussnewton"
	"github.com/snoble/slvsx/pkg/solver/slvs"
)

// Exit codes per failure class, so scripts can branch on what went wrong.
const (
	exitOK              = 0
	exitGeneral         = 1
	exitValidation      = 2
	exitConvergence     = 3
	exitInconsistent    = 4
	exitTooManyUnknowns = 5
)

// exitError carries a process exit code alongside the cause.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func fail(code int, err error) error {
	return &exitError{code: code, err: err}
}

// statusExitCode maps a terminal solve status to its exit code.
func statusExitCode(status string) int {
	switch status {
	case solver.StatusOK.String(), solver.StatusRedundantOK.String():
		return exitOK
	case solver.StatusDidNotConverge.String():
		return exitConvergence
	case solver.StatusInconsistent.String():
		return exitInconsistent
	case solver.StatusTooManyUnknowns.String():
		return exitTooManyUnknowns
	}
	return exitGeneral
}

// --- Global Command Variables ---
var (
	backendName   string
	tolerance     float64
	maxIterations int
	maxUnknowns   int
	outputPath    string

	exportFormat    string
	exportThickness float64
	exportBore      float64

	genSunTeeth    int
	genPlanetTeeth int
	genRingTeeth   int
	genPlanets     int
	genModule      float64
	genPanels      int
	genSpan        float64
	genHeight      float64

	rootCmd = &cobra.Command{
		Use:   "slvsx",
		Short: "Solve declarative geometric constraint documents",
		Long: `slvsx compiles JSON or YAML constraint documents into solver
primitives, runs a numeric solve, and reports the resolved geometry.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	solveCmd = &cobra.Command{
		Use:   "solve [file]",
		Short: "Solve a constraint document and print the resolved geometry",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSolve,
	}

	validateCmd = &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a document's structure and references without solving",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runValidate,
	}

	exportCmd = &cobra.Command{
		Use:   "export [file]",
		Short: "Solve a document and export the geometry as DXF or STL",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runExport,
	}

	evalCmd = &cobra.Command{
		Use:   "eval [script]",
		Short: "Evaluate a Lisp script and print the document it builds",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runEval,
	}

	generateCmd = &cobra.Command{
		Use:   "generate",
		Short: "Generate example constraint documents",
	}

	generatePlanetaryCmd = &cobra.Command{
		Use:   "planetary",
		Short: "Generate a planetary gear train document",
		RunE:  runGeneratePlanetary,
	}

	generateTrussCmd = &cobra.Command{
		Use:   "truss",
		Short: "Generate a planar truss document with pin and roller supports",
		RunE:  runGenerateTruss,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputPath, "output", "o", "", "write output to file instead of stdout")

	for _, cmd := range []*cobra.Command{solveCmd, exportCmd} {
		cmd.Flags().StringVar(&backendName, "backend", "gauss-newton", "solver backend (gauss-newton or slvs)")
		cmd.Flags().Float64Var(&tolerance, "tolerance", 0, "convergence tolerance (0 = default)")
		cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "iteration cap (0 = default)")
		cmd.Flags().IntVar(&maxUnknowns, "max-unknowns", 0, "unknown-parameter cap (0 = default)")
	}

	exportCmd.Flags().StringVar(&exportFormat, "format", "dxf", "export format (dxf or stl)")
	exportCmd.Flags().Float64Var(&exportThickness, "thickness", 0, "stl: extrusion thickness (0 = default)")
	exportCmd.Flags().Float64Var(&exportBore, "bore", 0, "stl: center bore radius")

	generatePlanetaryCmd.Flags().IntVar(&genSunTeeth, "sun", 20, "sun gear tooth count")
	generatePlanetaryCmd.Flags().IntVar(&genPlanetTeeth, "planet", 10, "planet gear tooth count")
	generatePlanetaryCmd.Flags().IntVar(&genRingTeeth, "ring", 40, "ring gear tooth count")
	generatePlanetaryCmd.Flags().IntVar(&genPlanets, "planets", 3, "number of planets")
	generatePlanetaryCmd.Flags().Float64Var(&genModule, "module", 2, "gear module")

	generateTrussCmd.Flags().IntVar(&genPanels, "panels", 4, "number of panels")
	generateTrussCmd.Flags().Float64Var(&genSpan, "span", 400, "truss span")
	generateTrussCmd.Flags().Float64Var(&genHeight, "height", 80, "truss height")

	generateCmd.AddCommand(generatePlanetaryCmd, generateTrussCmd)
	rootCmd.AddCommand(solveCmd, validateCmd, exportCmd, evalCmd, generateCmd)
}

// ---------------------------------------------------------------------------
// Input handling
// ---------------------------------------------------------------------------

// readInput reads the named file, or stdin when path is empty or "-".
func readInput(args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(args[0])
}

// loadDocument parses JSON or YAML input into a validated document. YAML is
// converted to JSON at the boundary so everything downstream sees one wire
// form.
func loadDocument(data []byte) (*sketch.Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty input")
	}
	if trimmed[0] != '{' {
		var v interface{}
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		converted, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("convert yaml: %w", err)
		}
		data = converted
	}
	return sketch.Parse(data)
}

// newBackend resolves the --backend flag.
func newBackend() (solver.Backend, error) {
	switch backendName {
	case "gauss-newton", "":
		return gaussnewton.New(), nil
	case "slvs":
		return slvs.New()
	}
	return nil, fmt.Errorf("unknown backend %q", backendName)
}

func solveOptions() solver.Options {
	return solver.Options{
		Tolerance:     tolerance,
		MaxIterations: maxIterations,
		MaxUnknowns:   maxUnknowns,
	}
}

// writeOutput sends data to --output or stdout.
func writeOutput(data []byte) error {
	if outputPath == "" || outputPath == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(outputPath, data, 0o644)
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeOutput(append(data, '\n'))
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

func runSolve(cmd *cobra.Command, args []string) error {
	out, err := solveInput(args)
	if err != nil {
		return err
	}
	if err := printJSON(out); err != nil {
		return err
	}
	if code := statusExitCode(out.Status); code != exitOK {
		return fail(code, fmt.Errorf("solve finished with status %s", out.Status))
	}
	return nil
}

// solveInput runs the full pipeline for solve and export.
func solveInput(args []string) (*compile.Output, error) {
	data, err := readInput(args)
	if err != nil {
		return nil, err
	}
	doc, err := loadDocument(data)
	if err != nil {
		return nil, fail(exitValidation, err)
	}
	backend, err := newBackend()
	if err != nil {
		return nil, err
	}
	out, err := compile.Run(context.Background(), doc, backend, solveOptions())
	if err != nil {
		var se *sketch.Error
		if errors.As(err, &se) {
			return nil, fail(exitValidation, err)
		}
		return nil, err
	}
	return out, nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	data, err := readInput(args)
	if err != nil {
		return err
	}
	if _, err := loadDocument(data); err != nil {
		return fail(exitValidation, err)
	}
	fmt.Fprintln(os.Stderr, "ok")
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	if outputPath == "" {
		return fmt.Errorf("export requires --output")
	}
	out, err := solveInput(args)
	if err != nil {
		return err
	}
	if !out.OK() {
		return fail(statusExitCode(out.Status), fmt.Errorf("refusing to export %s geometry", out.Status))
	}

	switch strings.ToLower(exportFormat) {
	case "dxf":
		return dxf.Export(out, outputPath)
	case "stl":
		opts := stl.Options{BoreRadius: exportBore}
		if exportThickness > 0 {
			opts.Thickness = exportThickness
		}
		return stl.ExportGears(out, outputPath, opts)
	}
	return fmt.Errorf("unknown export format %q", exportFormat)
}

func runEval(cmd *cobra.Command, args []string) error {
	src, err := readInput(args)
	if err != nil {
		return err
	}
	doc, evalErrs, err := engine.NewEngine().Evaluate(string(src))
	if err != nil {
		return err
	}
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			fmt.Fprintln(os.Stderr, e.Error())
		}
		return fail(exitValidation, fmt.Errorf("script evaluation failed"))
	}
	if err := sketch.Validate(doc); err != nil {
		return fail(exitValidation, err)
	}
	return printJSON(doc)
}

func runGeneratePlanetary(cmd *cobra.Command, args []string) error {
	doc, err := generate.Planetary(generate.PlanetaryConfig{
		SunTeeth:    genSunTeeth,
		PlanetTeeth: genPlanetTeeth,
		RingTeeth:   genRingTeeth,
		Planets:     genPlanets,
		Module:      genModule,
	})
	if err != nil {
		return fail(exitValidation, err)
	}
	return printJSON(doc)
}

func runGenerateTruss(cmd *cobra.Command, args []string) error {
	doc, err := generate.Truss(generate.TrussConfig{
		Panels: genPanels,
		Span:   genSpan,
		Height: genHeight,
	})
	if err != nil {
		return fail(exitValidation, err)
	}
	return printJSON(doc)
}
