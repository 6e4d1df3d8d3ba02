package platform

// Package platform contains filesystem and formatting helpers shared by the
// fetch pipeline: unique temp-file naming, cleanup of stale downloads,
// filename sanitization, human-readable sizes, and source-site detection.
