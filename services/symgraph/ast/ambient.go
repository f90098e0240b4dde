// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

// ambientNames are runtime globals and module-system names. They are never
// emitted as declarations and never resolved as references.
var ambientNames = map[string]struct{}{
	// module system
	"module":     {},
	"exports":    {},
	"require":    {},
	"__dirname":  {},
	"__filename": {},

	// host objects
	"console":    {},
	"process":    {},
	"window":     {},
	"document":   {},
	"global":     {},
	"globalThis": {},
	"Buffer":     {},

	// built-in constructors and namespaces
	"Object":   {},
	"Function": {},
	"Array":    {},
	"String":   {},
	"Number":   {},
	"Boolean":  {},
	"Symbol":   {},
	"BigInt":   {},
	"Promise":  {},
	"Map":      {},
	"Set":      {},
	"WeakMap":  {},
	"WeakSet":  {},
	"Date":     {},
	"RegExp":   {},
	"Error":    {},
	"JSON":     {},
	"Math":     {},
	"Reflect":  {},
	"Proxy":    {},
	"Intl":     {},

	// built-in functions and values
	"undefined":      {},
	"NaN":            {},
	"Infinity":       {},
	"arguments":      {},
	"setTimeout":     {},
	"setInterval":    {},
	"clearTimeout":   {},
	"clearInterval":  {},
	"setImmediate":   {},
	"queueMicrotask": {},
	"fetch":          {},
	"parseInt":       {},
	"parseFloat":     {},
	"isNaN":          {},
	"isFinite":       {},
}

// IsAmbientName reports whether name is on the fixed exclusion list.
func IsAmbientName(name string) bool {
	_, ok := ambientNames[name]
	return ok
}
