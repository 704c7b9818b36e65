// SPDX-License-Identifier: MPL-2.0

// Package svcmod loads module artifacts and locates them through finders.
//
// A module artifact is a directory named <module>.svcmod containing a
// svcmod.cue metadata file and, optionally, a services/ directory of provider
// descriptors:
//
//	com.example.pear.svcmod/
//	├── svcmod.cue
//	└── services/
//	    └── javax.script.ScriptEngineFactory
//
// svcmod.cue declares the module identity, its requirements and the services
// it provides:
//
//	module:  "com.example.pear"
//	version: "1.2.0"
//	requires: [{module: "com.example.base", version: "^1.0.0"}]
//	provides: [{
//		service: "javax.script.ScriptEngineFactory"
//		with: ["com.example.pear.PearEngineFactory"]
//		factories: {"com.example.pear.PearEngineFactory": "provider"}
//	}]
//
// A Finder answers "which artifact carries module X" for the resolver. Finders
// never instantiate anything; they only read metadata.
package svcmod
