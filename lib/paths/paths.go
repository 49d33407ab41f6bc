// Package paths provides centralized path construction for the nasattach data directory.
//
// Layout:
//
//	<dataDir>/
//	  runs/
//	    <run-id>/
//	      result.yaml
//	      hosts/
//	        <host>.log
package paths

import (
	"path/filepath"
	"strings"
)

// Paths provides typed path construction for the nasattach data directory.
type Paths struct {
	dataDir string
}

// New creates a new Paths instance for the given data directory.
func New(dataDir string) *Paths {
	return &Paths{dataDir: dataDir}
}

// DataDir returns the root data directory.
func (p *Paths) DataDir() string {
	return p.dataDir
}

// RunsDir returns the directory holding every run.
func (p *Paths) RunsDir() string {
	return filepath.Join(p.dataDir, "runs")
}

// RunDir returns the directory for a run.
func (p *Paths) RunDir(runID string) string {
	return filepath.Join(p.RunsDir(), runID)
}

// RunResult returns the path to a run's result file.
func (p *Paths) RunResult(runID string) string {
	return filepath.Join(p.RunDir(runID), "result.yaml")
}

// RunHostsDir returns the per-host log directory of a run.
func (p *Paths) RunHostsDir(runID string) string {
	return filepath.Join(p.RunDir(runID), "hosts")
}

// RunHostLog returns the log file for one host of a run.
func (p *Paths) RunHostLog(runID, host string) string {
	return filepath.Join(p.RunHostsDir(runID), sanitize(host)+".log")
}

// sanitize keeps host names usable as file names.
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, name)
}
