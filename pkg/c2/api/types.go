// Package api holds the C2's wire types, kept deliberately separate
// from pkg/node/api per SPEC_FULL.md's resolution of spec.md §9's
// OpenAPI-divergence Open Question: the two surfaces evolve
// independently even though most fields overlap today.
package api

import "time"

// PlatformInfo mirrors pkg/node/api.PlatformInfo for the environment
// fingerprint a node reports at registration.
type PlatformInfo struct {
	OSSystem  string `json:"os_system"`
	OSRelease string `json:"os_release"`
	OSVersion string `json:"os_version"`
	Machine   string `json:"machine"`
	Processor string `json:"processor"`

	InterpreterBuild          string `json:"interpreter_build"`
	InterpreterCompiler       string `json:"interpreter_compiler"`
	InterpreterImplementation string `json:"interpreter_implementation"`
	InterpreterVersion        string `json:"interpreter_version"`
}

// RegisterRequest is the body of a node's signed POST /environments.
type RegisterRequest struct {
	IP       string       `json:"ip"`
	Port     int          `json:"port"`
	Platform PlatformInfo `json:"platform"`
}

// Environment is one row of GET /environments: an active node plus its
// session bookkeeping.
type Environment struct {
	IP           string       `json:"ip"`
	Port         int          `json:"port"`
	SessionID    string       `json:"session_id"`
	SessionStart time.Time    `json:"session_start"`
	Platform     PlatformInfo `json:"platform"`
}

// Session is one row of GET /sessions or GET /sessions/{id}.
type Session struct {
	ID           string       `json:"id"`
	SessionStart time.Time    `json:"session_start"`
	SessionEnd   *time.Time   `json:"session_end,omitempty"`
	EnvIP        string       `json:"env_ip"`
	EnvPort      int          `json:"env_port"`
	Platform     PlatformInfo `json:"platform"`
}

// Execution is one row of GET /executions.
type Execution struct {
	ID                  string    `json:"id"`
	SessionID           string    `json:"session_id"`
	TimestampRegistered time.Time `json:"timestamp_registered"`
}

// TestReport mirrors the wire shape a node emits from GET /reports.
type TestReport struct {
	TestName        string                 `json:"test_name"`
	TestDescription string                 `json:"test_description"`
	ResultCode      int                    `json:"result_code"`
	TimestampStart  time.Time              `json:"timestamp_start"`
	TimestampEnd    time.Time              `json:"timestamp_end"`
	AdditionalInfo  map[string]interface{} `json:"additional_info,omitempty"`
}

// InstallRequest is the body of PATCH /environments/{ip}/{port}/installed:
// the root-package names to replicate. (PATCH /test_sets takes a
// multipart bundle instead.)
type InstallRequest []string
