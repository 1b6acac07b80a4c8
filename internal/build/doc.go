// Package build turns a Venice source tree into a program table: the scanner
// discovers source modules and derives their dotted names, the builder
// compiles stale modules with mpy-cross, and the table packager serializes
// the artifacts plus metadata into the binary container the device loads.
package build
