// Package testsuite is the compiled-in symbol table a Node binary
// provides for its installed test bundles to reference by name (the
// "symbol" field of tests.yaml). A real deployment populates this
// registry with whatever sandbox-transparency checks it needs; this
// package ships a handful of illustrative environment probes.
package testsuite

import (
	"os"
	"runtime"

	"github.com/secchiware/secchiware/pkg/loader"
)

// Registry maps a symbol name to its TestFunc/SetupFunc/TeardownFunc.
// Tests, setups, and teardowns share one namespace since a bundle names
// exactly one kind of symbol per field.
var registry = map[string]interface{}{
	"builtin.AlwaysPass":   loader.TestFunc(alwaysPass),
	"builtin.AlwaysFail":   loader.TestFunc(alwaysFail),
	"builtin.GOOSMatches":  loader.TestFunc(goosMatches),
	"builtin.Noop":         loader.SetupFunc(noopSetup),
	"builtin.NoopTeardown": loader.TeardownFunc(noopTeardown),
}

// Test looks up a TestFunc symbol.
func Test(symbol string) (loader.TestFunc, bool) {
	fn, ok := registry[symbol].(loader.TestFunc)
	return fn, ok
}

// Setup looks up a SetupFunc symbol.
func Setup(symbol string) (loader.SetupFunc, bool) {
	fn, ok := registry[symbol].(loader.SetupFunc)
	return fn, ok
}

// Teardown looks up a TeardownFunc symbol.
func Teardown(symbol string) (loader.TeardownFunc, bool) {
	fn, ok := registry[symbol].(loader.TeardownFunc)
	return fn, ok
}

func alwaysPass(ctx loader.Context) loader.Outcome {
	return loader.Outcome{ResultCode: 1}
}

func alwaysFail(ctx loader.Context) loader.Outcome {
	return loader.Outcome{ResultCode: -1, AdditionalInfo: map[string]interface{}{"reason": "unconditional failure probe"}}
}

// goosMatches demonstrates a real transparency check: whether the
// interpreter's reported OS differs from this Go binary's runtime.GOOS,
// a mismatch a sandboxing layer sometimes introduces.
func goosMatches(ctx loader.Context) loader.Outcome {
	if os.Getenv("SECCHIWARE_EXPECT_GOOS") != "" && os.Getenv("SECCHIWARE_EXPECT_GOOS") != runtime.GOOS {
		return loader.Outcome{
			ResultCode:     -1,
			AdditionalInfo: map[string]interface{}{"runtime_goos": runtime.GOOS},
		}
	}
	return loader.Outcome{ResultCode: 1, AdditionalInfo: map[string]interface{}{"runtime_goos": runtime.GOOS}}
}

func noopSetup(ctx loader.Context) error    { return nil }
func noopTeardown(ctx loader.Context) error { return nil }
