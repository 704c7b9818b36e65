// SPDX-License-Identifier: MPL-2.0

// Package registry answers which implementations a context declares for a
// service contract.
//
// Named contexts declare providers in module metadata (MODULE origin) and may
// also carry descriptor files (DESCRIPTOR origin). The unnamed context only
// has descriptor files, one per storage root. Declarations are produced
// lazily: a context's descriptor files are not opened until iteration reaches
// that context, and in the unnamed context each root is read only when the
// previous one is exhausted.
package registry
