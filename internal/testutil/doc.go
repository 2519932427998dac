// SPDX-License-Identifier: MPL-2.0

// Package testutil holds helpers shared by the wares test suites: a
// controllable clock for registry timestamps, project file fixtures with
// explicit modification times, and environment isolation.
package testutil
