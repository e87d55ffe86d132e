// Package testpkg implements the recursive test-package content model
// of spec.md §3: Package/Module/TestSet/Test, their canonical dotted
// names, deterministic enumeration, and TestReport evidence records.
package testpkg

import "time"

// Package is a named node in the test tree. Canonical name is the
// dotted path from whichever root it's enumerated under.
type Package struct {
	Name     string
	Packages []*Package
	Modules  []*Module
}

// Module groups TestSets under a Package.
type Module struct {
	Name     string
	TestSets []*TestSet
}

// TestSet is a family of Tests sharing setup/teardown semantics.
type TestSet struct {
	Name        string
	Description string
	Tests       []*Test
}

// Test is a leaf executable unit.
type Test struct {
	Name        string
	Description string
}

// Report is the evidence record a Test run yields (spec.md §3).
// ResultCode > 0 is pass, == 0 is inconclusive, < 0 is fail.
type Report struct {
	TestName        string                 `json:"test_name"`
	TestDescription string                 `json:"test_description"`
	ResultCode      int                    `json:"result_code"`
	TimestampStart  time.Time              `json:"timestamp_start"`
	TimestampEnd    time.Time              `json:"timestamp_end"`
	AdditionalInfo  map[string]interface{} `json:"additional_info,omitempty"`
}
