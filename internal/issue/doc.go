// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable errors and a catalog of Markdown guides.
//
// An ActionableError carries the failed operation, the resource involved and
// suggestions for the user. Each error kind the loader can report has an
// Issue in the catalog; `svcload explain <slug>` renders it with glamour.
package issue
