// Package factory provides named test-data factories: templates that produce
// attribute mappings for a logical model.
//
// # Overview
//
// A Factory owns an attribute table and a set of sequence counters. Attributes
// are literals, generators evaluated on every build, or sequenced values that
// advance a per-attribute counter before each evaluation. Factories are kept in
// a Registry keyed by name.
//
//	reg := factory.NewRegistry()
//	reg.Define("user").
//	    Attr("id", 0, factory.AutoIncrement(true)).
//	    Attr("email", "user-%d@example.com", factory.AutoIncrement(true)).
//	    Attr("active", true)
//
//	reg.Define("admin").
//	    Parent("user").
//	    Attr("role", "admin")
//
//	attrs, err := reg.Build("admin", factory.Attrs{"active": false})
//
// # Inheritance
//
// Parent is a one-shot merge of data: the child copies every attribute it does
// not define itself, and links the parent's sequence counters by reference.
// Building the parent or any descendant advances the same counter.
//
// Precedence, lowest to highest: parent attributes, own attributes, call-time
// overrides. An override replaces a generator or sequenced attribute entirely,
// so an overridden sequence does not advance for that call.
//
// # Persistence
//
// Create evaluates the attributes like Build and hands them to a ModelStore
// bound to the factory's model id. The core never inspects the model schema.
//
// # Default Registry
//
// Define, Build, Create, SetStore and Reset operate on a process-wide registry
// created on first use. Tests that share it should call Reset between runs.
package factory
