// Package cmd implements the command-line interface of dSeg. It provides a hierarchical
// command structure with operations for running the server and working with the
// profiles as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Starts and configures a server node
//   - populate: Bulk-creates random user profiles
//   - update: Walks through the update and query operations on one profile
//   - trim: Shows the stale segments of a profile and trims the whole set in the background
//   - seg: Ad-hoc commands for the segments of one profile (get, put, size, ...)
//   - job: Commands for background jobs (status, cancel, list)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Exit codes: 0 on success, 1 if the help was displayed or a command failed, 2 if the
// server could not be reached or rejected the credentials, 3 if the server speaks an
// incompatible protocol version.
//
// See dseg --help for a list of all commands.
package cmd
