// gtest runs MiniC sources through every pipeline mode in-process and checks
// the products against golden .json files kept next to the sources.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AfzalSurti/Mini-C-Compiler/pkg/config"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/pipeline"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/util"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/vm"
	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/segmentio/encoding/json"
	"go.uber.org/multierr"
)

type Execution struct {
	Output   string        `json:"output"`
	Phase    string        `json:"phase,omitempty"`
	Error    string        `json:"error,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
	Duration time.Duration `json:"duration"`
}

type TestRun struct {
	Name   string    `json:"name"`
	Result Execution `json:"result"`
}

type TargetResult struct {
	Hash string    `json:"hash"`
	Runs []TestRun `json:"runs"`
}

type FileTestResult struct {
	File      string        `json:"file"`
	Status    string        `json:"status"` // PASS, FAIL, SKIP, ERROR
	Message   string        `json:"message,omitempty"`
	Diff      string        `json:"diff,omitempty"`
	Reference *TargetResult `json:"reference,omitempty"`
	Target    *TargetResult `json:"target,omitempty"`
}

type TestSuiteResults map[string]*FileTestResult

var (
	generateGolden = flag.Bool("generate-golden", false, "Write golden .json files for every matched source instead of testing.")
	testFiles      = flag.String("test-files", "testdata/*.mc", "Glob pattern(s) for files to test (space-separated).")
	skipFiles      = flag.String("skip-files", "", "Files to skip (space-separated).")
	modes          = flag.String("modes", "irvm asm llvm native", "Pipeline modes to run for each file (space-separated).")
	configPath     = flag.String("config", "", "TOML configuration applied to every run.")
	qbeTarget      = flag.String("target", "amd64_sysv", "QBE target for the native mode, fixed so goldens are portable.")
	outputJSON     = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	jobs           = flag.Int("j", 4, "Number of parallel test jobs.")
	verbose        = flag.Bool("v", false, "Enable verbose logging.")
	jsonDir        = flag.String("dir", "", "Directory to store/read golden JSON files (defaults to source file dir).")
)

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cCyan   = "\x1b[96m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	cfg := config.NewConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("%s[ERROR]%s %v\n", cRed, cNone, err)
		}
		cfg = loaded
	}
	cfg.SetTarget("", "", *qbeTarget)

	selected, err := parseModes(*modes)
	if err != nil {
		log.Fatalf("%s[ERROR]%s %v\n", cRed, cNone, err)
	}

	files, err := expandGlobPatterns(*testFiles)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Invalid glob pattern(s): %v\n", cRed, cNone, err)
	}
	if len(files) == 0 {
		log.Println("No test files found matching the pattern(s).")
		return
	}

	if *generateGolden {
		var errs error
		for _, file := range files {
			errs = multierr.Append(errs, writeGolden(file, cfg, selected))
		}
		for _, e := range multierr.Errors(errs) {
			log.Printf("%s[ERROR]%s %v\n", cRed, cNone, e)
		}
		if errs != nil {
			os.Exit(1)
		}
		return
	}

	results := runTestSuite(files, cfg, selected)
	printSummary(results)
	if hasFailures(writeJSONReport(results)) {
		os.Exit(1)
	}
}

func parseModes(s string) ([]config.Mode, error) {
	var out []config.Mode
	var errs error
	for _, name := range strings.Fields(s) {
		m, err := config.ParseMode(name)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		out = append(out, m)
	}
	return out, errs
}

func getJSONPath(sourceFile string) string {
	jsonFileName := "." + filepath.Base(sourceFile) + ".json"
	if *jsonDir != "" {
		return filepath.Join(*jsonDir, jsonFileName)
	}
	return filepath.Join(filepath.Dir(sourceFile), jsonFileName)
}

// hashFile computes the xxhash of a file's content
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

// compileAndRun feeds one source file through the pipeline once per mode.
func compileAndRun(file string, cfg *config.Config, selected []config.Mode) (*TargetResult, error) {
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	hash, err := hashFile(file)
	if err != nil {
		return nil, err
	}

	result := &TargetResult{Hash: hash}
	for _, mode := range selected {
		start := time.Now()
		res, err := pipeline.Run(string(content), mode, cfg)
		exec := Execution{Output: artifact(res), Duration: time.Since(start)}
		for _, w := range res.Warnings {
			exec.Warnings = append(exec.Warnings, w.String())
		}
		if err != nil {
			exec.Error = err.Error()
			if ue, ok := err.(*util.Error); ok {
				exec.Phase = string(ue.Phase)
			}
		}
		result.Runs = append(result.Runs, TestRun{Name: string(mode), Result: exec})
	}
	return result, nil
}

func artifact(res *pipeline.Result) string {
	switch res.Mode {
	case config.ModeAsm:
		return strings.Join(res.Asm, "\n")
	case config.ModeLLVM:
		return res.LLVM
	case config.ModeNative:
		return res.Native
	}
	return res.Output
}

func writeGolden(sourceFile string, cfg *config.Config, selected []config.Mode) error {
	log.Printf("Generating golden file for %s...\n", sourceFile)
	result, err := compileAndRun(sourceFile, cfg, selected)
	if err != nil {
		return fmt.Errorf("%s: %w", sourceFile, err)
	}
	jsonData, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("%s: failed to marshal golden data: %w", sourceFile, err)
	}
	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0755); err != nil {
			return err
		}
	}
	goldenFileName := getJSONPath(sourceFile)
	if err := os.WriteFile(goldenFileName, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write golden file %s: %w", goldenFileName, err)
	}
	log.Printf("%s[SUCCESS]%s Golden file created at %s\n", cGreen, cNone, goldenFileName)
	return nil
}

func runTestSuite(files []string, cfg *config.Config, selected []config.Mode) []*FileTestResult {
	skipList := make(map[string]bool)
	for _, f := range strings.Fields(*skipFiles) {
		skipList[f] = true
	}

	tasks := make(chan string, len(files))
	resultsChan := make(chan *FileTestResult, len(files))
	var wg sync.WaitGroup

	if *jobs < 1 {
		*jobs = 1
	}
	for i := 0; i < *jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range tasks {
				resultsChan <- testFile(file, cfg, selected)
			}
		}()
	}

	// Skip files whose content was already queued under another name
	seenHashes := make(map[string]string)
	for _, file := range files {
		if skipList[file] || skipList[filepath.Base(file)] {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: "Explicitly skipped"}
			continue
		}
		fileHash, err := hashFile(file)
		if err != nil {
			resultsChan <- &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to read file for hashing: %v", err)}
			continue
		}
		if originalFile, seen := seenHashes[fileHash]; seen {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: fmt.Sprintf("Content is identical to %s", originalFile)}
			continue
		}
		seenHashes[fileHash] = file
		tasks <- file
	}
	close(tasks)

	wg.Wait()
	close(resultsChan)

	var allResults []*FileTestResult
	for result := range resultsChan {
		allResults = append(allResults, result)
	}
	sort.Slice(allResults, func(i, j int) bool {
		return allResults[i].File < allResults[j].File
	})
	return allResults
}

func testFile(file string, cfg *config.Config, selected []config.Mode) *FileTestResult {
	target, err := compileAndRun(file, cfg, selected)
	if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: err.Error()}
	}

	var diffs strings.Builder
	if d := checkFolding(file, cfg); d != "" {
		diffs.WriteString(d)
	}

	goldenFile := getJSONPath(file)
	goldenData, err := os.ReadFile(goldenFile)
	if err != nil {
		if diffs.Len() > 0 {
			return &FileTestResult{File: file, Status: "FAIL", Message: "Folded and unfolded IR disagree", Diff: diffs.String(), Target: target}
		}
		return &FileTestResult{File: file, Status: "SKIP", Message: "Cannot test without a corresponding .json golden file", Target: target}
	}
	var golden TargetResult
	if err := json.Unmarshal(goldenData, &golden); err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Could not parse golden file %s: %v", goldenFile, err)}
	}

	if golden.Hash != "" && golden.Hash != target.Hash {
		log.Printf("%s[WARN]%s %s changed since its golden file was written\n", cYellow, cNone, file)
	}
	diffs.WriteString(compareRuns(&golden, target))

	if diffs.Len() > 0 {
		return &FileTestResult{
			File:      file,
			Status:    "FAIL",
			Message:   "Output mismatch",
			Diff:      diffs.String(),
			Reference: &golden,
			Target:    target,
		}
	}
	return &FileTestResult{File: file, Status: "PASS", Message: "All modes match", Reference: &golden, Target: target}
}

// checkFolding runs the unoptimized IR through the interpreter and compares
// it with the optimized run. Folding must never change what a program prints.
func checkFolding(file string, cfg *config.Config) string {
	content, err := os.ReadFile(file)
	if err != nil {
		return ""
	}
	res, err := pipeline.Run(string(content), config.ModeIRVM, cfg)
	if res.IR == nil || res.OptimizedIR == nil {
		return ""
	}
	var raw bytes.Buffer
	rawErr := vm.New(&raw).Run(res.IR)
	if (err == nil) != (rawErr == nil) || raw.String() != res.Output {
		return fmt.Sprintf("Folding changed behaviour:\n%s", cmp.Diff(raw.String(), res.Output))
	}
	return ""
}

func compareRuns(ref, target *TargetResult) string {
	var diffs strings.Builder
	targetRuns := make(map[string]TestRun)
	for _, run := range target.Runs {
		targetRuns[run.Name] = run
	}
	ignoreTiming := cmpopts.IgnoreFields(Execution{}, "Duration")
	for _, refRun := range ref.Runs {
		targetRun, ok := targetRuns[refRun.Name]
		if !ok {
			continue
		}
		if d := cmp.Diff(refRun.Result, targetRun.Result, ignoreTiming, cmpopts.EquateEmpty()); d != "" {
			fmt.Fprintf(&diffs, "Mode '%s' mismatch (-golden +got):\n%s", refRun.Name, d)
		}
	}
	return diffs.String()
}

func printSummary(results []*FileTestResult) {
	var passed, failed, skipped, errored int
	var total time.Duration

	for _, result := range results {
		fmt.Println("----------------------------------------------------------------------")
		fmt.Printf("Testing %s%s%s...\n", cCyan, result.File, cNone)

		switch result.Status {
		case "PASS":
			passed++
			fmt.Printf("  [%sPASS%s] %s\n", cGreen, cNone, result.Message)
		case "FAIL":
			failed++
			fmt.Printf("  [%sFAIL%s] %s\n", cRed, cNone, result.Message)
			fmt.Println(formatDiff(result.Diff))
		case "SKIP":
			skipped++
			fmt.Printf("  [%sSKIP%s] %s\n", cYellow, cNone, result.Message)
		case "ERROR":
			errored++
			fmt.Printf("  [%sERROR%s] %s\n", cRed, cNone, result.Message)
		}

		if result.Target == nil {
			continue
		}
		for _, run := range result.Target.Runs {
			total += run.Result.Duration
			if *verbose {
				fmt.Printf("    %-7s %s\n", run.Name, formatDuration(run.Result.Duration))
			}
		}
	}

	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("%sTest Summary:%s %s%d Passed%s, %s%d Failed%s, %s%d Skipped%s, %s%d Errored%s, %d Total\n",
		cBold, cNone, cGreen, passed, cNone, cRed, failed, cNone, cYellow, skipped, cNone, cRed, errored, cNone, len(results))
	if len(results) > 0 {
		fmt.Printf("Compiled %d file(s) in %s.\n", len(results), formatDuration(total))
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	return fmt.Sprintf("%.2fms", float64(d.Microseconds())/1000)
}

func formatDiff(diff string) string {
	if diff == "" {
		return ""
	}
	var builder strings.Builder
	builder.WriteString("    --- Diff ---\n")
	for _, line := range strings.Split(diff, "\n") {
		trimmedLine := strings.TrimSpace(line)
		if strings.HasPrefix(trimmedLine, "-") {
			builder.WriteString(cRed)
		} else if strings.HasPrefix(trimmedLine, "+") {
			builder.WriteString(cGreen)
		}
		builder.WriteString("    " + line)
		builder.WriteString(cNone)
		builder.WriteString("\n")
	}
	return builder.String()
}

func writeJSONReport(results []*FileTestResult) TestSuiteResults {
	resultsMap := make(TestSuiteResults, len(results))
	for _, r := range results {
		resultsMap[r.File] = r
	}

	jsonData, err := json.MarshalIndent(resultsMap, "", "  ")
	if err != nil {
		log.Printf("%s[ERROR]%s Failed to marshal results to JSON: %v\n", cRed, cNone, err)
		return resultsMap
	}

	outputFile := *outputJSON
	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0755); err != nil {
			log.Printf("%s[ERROR]%s Failed to create dir %s: %v\n", cRed, cNone, *jsonDir, err)
		}
		outputFile = filepath.Join(*jsonDir, *outputJSON)
	}

	if err := os.WriteFile(outputFile, jsonData, 0644); err != nil {
		log.Printf("%s[ERROR]%s Failed to write JSON report to %s: %v\n", cRed, cNone, outputFile, err)
	} else {
		fmt.Printf("Full test report saved to %s\n", outputFile)
	}
	return resultsMap
}

func hasFailures(results TestSuiteResults) bool {
	for _, result := range results {
		if result.Status == "FAIL" || result.Status == "ERROR" {
			return true
		}
	}
	return false
}

func expandGlobPatterns(patterns string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		files, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %s: %w", pattern, err)
		}
		for _, file := range files {
			absFile, err := filepath.Abs(file)
			if err != nil {
				continue
			}
			if !seen[absFile] {
				if info, err := os.Stat(absFile); err == nil && info.Mode().IsRegular() {
					allFiles = append(allFiles, absFile)
					seen[absFile] = true
				}
			}
		}
	}
	return allFiles, nil
}
