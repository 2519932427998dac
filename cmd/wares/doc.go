// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the wares command line.
//
// The sync command drives pkg/wares for one project tree. With --backend it
// prints a single JSON document on stdout so build systems can run wares as
// a subprocess and read back the install directory of every dependency.
package cmd
