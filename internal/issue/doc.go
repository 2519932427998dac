// SPDX-License-Identifier: MPL-2.0

// Package issue turns sync failures into user-facing help: actionable errors
// with suggestions, Markdown issue pages rendered with glamour, and JSON
// reports for backend mode.
package issue
