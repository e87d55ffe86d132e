package node

import (
	"runtime"

	"github.com/secchiware/secchiware/pkg/node/api"
)

// DetectPlatform gathers the fingerprint a Node reports at registration:
// OS identity plus the Go toolchain that built this binary, standing in
// for the interpreter build/compiler/implementation/version fields a
// non-Go node would report about itself.
func DetectPlatform() api.PlatformInfo {
	return api.PlatformInfo{
		OSSystem:  runtime.GOOS,
		OSRelease: runtime.GOARCH,
		OSVersion: runtime.Version(),
		Machine:   runtime.GOARCH,
		Processor: runtime.GOARCH,

		InterpreterBuild:          runtime.Version(),
		InterpreterCompiler:       "gc",
		InterpreterImplementation: "go",
		InterpreterVersion:        runtime.Version(),
	}
}
