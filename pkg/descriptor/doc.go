// SPDX-License-Identifier: MPL-2.0

// Package descriptor parses provider descriptor files.
//
// A descriptor file lives at services/<contract> inside a storage root and
// lists one fully qualified implementation name per line:
//
//	# Pear script engine
//	org.pear.PearScriptEngineFactory   # inline comments are allowed
//
// Blank lines are ignored, '#' starts a comment that runs to the end of the
// line, and surrounding whitespace is trimmed. Every remaining token must be a
// valid qualified name; anything else fails the whole file with a
// MalformedError naming the line. Repeated names are coalesced and the order
// of first mention is kept.
package descriptor
