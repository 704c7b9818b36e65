// SPDX-License-Identifier: MPL-2.0

// Package cueutil provides the shared CUE parsing flow used by module
// metadata (svcmod.cue) and the configuration file:
//
//  1. Compile the embedded schema
//  2. Compile user data and unify with the schema definition
//  3. Validate and decode to a Go struct
//
// # Usage
//
//	//go:embed svcmod_schema.cue
//	var schema string
//
//	result, err := cueutil.ParseAndDecodeString[Metadata](
//	    schema,
//	    data,
//	    "#Svcmod",
//	    cueutil.WithFilename("org.banana.svcmod/svcmod.cue"),
//	)
//	if err != nil {
//	    return nil, err // includes the CUE path of the offending field
//	}
//	return result.Value, nil
package cueutil
