// Package schema defines the resource type registry and the CUE-based
// resource definition compiler.
//
// Resource types are declared in CUE files and compiled once at startup
// into a Registry. The registry answers every metadata question the
// pipeline has: type lookup by public name, attribute and relationship
// lookup, ID assignment strategy. There is no runtime reflection anywhere;
// the registry is the single source of truth for resource shape.
package schema
