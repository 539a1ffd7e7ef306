package csg

import "reflect"

// ImportPath is the path generated programs use to import the kernel
const ImportPath = "csg"

// Symbols is the interpreter symbol table for the kernel, keyed the way
// yaegi expects ("import/path/pkgname")
var Symbols = map[string]map[string]reflect.Value{
	ImportPath + "/csg": {
		"Shape": reflect.ValueOf((*Shape)(nil)),

		"Empty":    reflect.ValueOf(Empty),
		"Cube":     reflect.ValueOf(Cube),
		"Box":      reflect.ValueOf(Box),
		"Sphere":   reflect.ValueOf(Sphere),
		"Cylinder": reflect.ValueOf(Cylinder),
		"Cone":     reflect.ValueOf(Cone),
		"Compose":  reflect.ValueOf(Compose),
	},
}
