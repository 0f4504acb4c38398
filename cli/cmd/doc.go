// Package cmd implements the subcommands of the pyparam CLI.
package cmd
