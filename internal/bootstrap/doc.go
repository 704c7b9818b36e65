// SPDX-License-Identifier: MPL-2.0

// Package bootstrap turns a loaded configuration into the pieces the loader
// needs: the boot graph over the module path, the unnamed context's
// classpath roots, the declaration registry and the named scopes.
package bootstrap
