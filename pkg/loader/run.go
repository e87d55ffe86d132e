package loader

import (
	"context"
	"sort"
	"time"

	"github.com/secchiware/secchiware/internal/metrics"
	"github.com/secchiware/secchiware/pkg/testpkg"
)

// Run sorts names into canonical (lexical) order, executes them
// sequentially, and returns their TestReports in that order. Tests sharing a TestSet are, by construction of the
// canonical ordering, contiguous: the set's setup runs once before the
// first of its tests in this run and its teardown once after the last.
// A setup failure marks every remaining test in that set inconclusive
// (code 0) with additional_info.error instead of calling the test body.
func (r *Registry) Run(ctx context.Context, names []string) []testpkg.Report {
	snap := r.current.Load()
	ordered := append([]string(nil), names...)
	sort.Strings(ordered)

	reports := make([]testpkg.Report, 0, len(ordered))

	var currentSet string
	var setupErr error

	for i, name := range ordered {
		anc := snap.ancestry[name]
		enteringSet := i == 0 || anc.testSet != currentSet
		if enteringSet {
			if currentSet != "" {
				runTeardown(ctx, snap, currentSet)
			}
			currentSet = anc.testSet
			setupErr = runSetup(ctx, snap, currentSet)
		}

		test := findTest(snap.roots, name)
		start := time.Now().UTC()

		var report testpkg.Report
		if setupErr != nil {
			report = testpkg.Report{
				TestName:       testName(test, name),
				ResultCode:     0,
				TimestampStart: start,
				TimestampEnd:   start,
				AdditionalInfo: map[string]interface{}{"error": "test set setup failed: " + setupErr.Error()},
			}
		} else {
			fn := snap.manifest.Tests[name]
			outcome := fn(Context{Done: ctx.Done()})
			end := time.Now().UTC()
			report = testpkg.Report{
				TestName:       testName(test, name),
				ResultCode:     outcome.ResultCode,
				TimestampStart: start,
				TimestampEnd:   end,
				AdditionalInfo: outcome.AdditionalInfo,
			}
		}
		if test != nil {
			report.TestDescription = test.Description
		}
		reports = append(reports, report)
		metrics.TestsExecuted.WithLabelValues(resultLabel(report.ResultCode)).Inc()
	}

	if currentSet != "" {
		runTeardown(ctx, snap, currentSet)
	}

	return reports
}

func runSetup(ctx context.Context, snap *registrySnapshot, testSet string) error {
	fn, ok := snap.manifest.Setups[testSet]
	if !ok {
		return nil
	}
	return fn(Context{Done: ctx.Done()})
}

func runTeardown(ctx context.Context, snap *registrySnapshot, testSet string) {
	fn, ok := snap.manifest.Teardowns[testSet]
	if !ok {
		return
	}
	// Reports for this set are already built and appended; a teardown
	// failure has nothing left to attach to, so it's discarded here.
	_ = fn(Context{Done: ctx.Done()})
}

// resultLabel maps a Report's result_code to the metric label per
// pkg/testpkg's pass/inconclusive/fail convention (> 0, == 0, < 0).
func resultLabel(code int) string {
	switch {
	case code > 0:
		return "pass"
	case code < 0:
		return "fail"
	default:
		return "inconclusive"
	}
}

func testName(t *testpkg.Test, canonical string) string {
	if t != nil {
		return t.Name
	}
	// fall back to the leaf segment of the canonical name
	for i := len(canonical) - 1; i >= 0; i-- {
		if canonical[i] == '.' {
			return canonical[i+1:]
		}
	}
	return canonical
}

func findTest(roots []*testpkg.Package, canonical string) *testpkg.Test {
	var found *testpkg.Test
	testpkg.Walk(roots, func(e testpkg.Entry) {
		if e.Kind == testpkg.KindTest && e.Name == canonical {
			found = e.Test
		}
	})
	return found
}
