package testcase

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// TestCase pairs one input file with its expected output file. The output
// file may not exist yet: generate mode creates it, and check mode reports
// the case as an io error without touching other cases.
type TestCase struct {
	Name       string
	InputPath  string
	OutputPath string
}

// Enumerate scans inDir for files named <stem><inExt> and pairs each with
// <outDir>/<stem><outExt>. The result is sorted by case name so dispatch
// order is stable between runs.
func Enumerate(inDir, inExt, outDir, outExt string) ([]TestCase, error) {
	entries, err := os.ReadDir(inDir)
	if err != nil {
		return nil, fmt.Errorf("cannot open input directory %s: %w", inDir, err)
	}

	var cases []TestCase
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, inExt) {
			continue
		}
		stem := strings.TrimSuffix(name, inExt)
		if stem == "" {
			continue
		}
		cases = append(cases, TestCase{
			Name:       stem,
			InputPath:  filepath.Join(inDir, name),
			OutputPath: filepath.Join(outDir, stem+outExt),
		})
	}

	if len(cases) == 0 {
		return nil, fmt.Errorf("no files with extension %s in %s", inExt, inDir)
	}

	sort.Slice(cases, func(i, j int) bool { return cases[i].Name < cases[j].Name })
	return cases, nil
}
