// Package paths provides the standardized on-disk layout for daemon data.
//
// All persistent artifacts live under a single configurable data root so
// operators can relocate or mount it as one unit.
//
// # Directory Structure
//
//	<data root>/               (default /var/lib/termstream)
//	  ├── transcripts/         (per-session output logs)
//	  │   ├── sess_<ULID>.log
//	  │   └── sess_<ULID>.1.log.gz  (rotated, compressed)
//	  └── profiles.yaml        (default profile file location)
//
// # Usage
//
//	import "github.com/GriffinCanCode/TermStream/internal/shared/paths"
//
//	layout := paths.NewLayout(cfg.Terminal.DataDir)
//
//	// Resolve per-session artifacts
//	logPath := layout.Transcript(sessionID.String())
//
//	// Validate IDs before path construction
//	if err := paths.ValidateSessionFilename(id); err != nil {
//	    return err
//	}
package paths
