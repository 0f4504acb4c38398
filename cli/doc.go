// Package cli implements the pyparam command-line interface.
//
// Two commands cover the workflow: extract scans an annotated entry file
// into an editable YAML configuration, and compile re-emits the entry with
// configured values substituted for every marker.
package cli
