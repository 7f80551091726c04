// Package policy checks built factory attributes against Rego policies.
//
// A policy is a Rego module that defines a deny set. Each element is either
// a message string or an object with msg and an optional severity:
//
//	package factory.users
//
//	deny contains msg if {
//		input.model == "user"
//		not endswith(input.attrs.email, "@example.com")
//		msg := sprintf("%s: email must use example.com", [input.factory])
//	}
//
// The input document has the fields factory, model and attrs. Violations
// with severity error fail a check; warnings and info are reported only.
//
// Policy files use the .rego extension. Leading comment lines become the
// description and a "# severity: <level>" line sets the default severity.
package policy
