// Package loader registers factories from definition files.
//
// Load reads the regular files directly inside a directory (by default
// test/factories). Names starting with a dot are skipped, and each remaining
// file is dispatched on its extension:
//
//	.star        Starlark script calling define()
//	.cue         CUE document with a top-level "factories" field
//	.yaml, .yml  YAML document with the same shape as CUE
//	.hcl         HCL file with one factory block per factory
//
// A factory defined without a model name uses the file's base name as its
// default model, so definitions in user.star bind to the "user" model unless
// they say otherwise or inherit a model from a parent.
//
// # Starlark
//
//	define("user").attr("id", None, auto_increment=True).attr("name", "ada")
//	define("admin").parent("user").attr("role", lambda: "admin")
//
// A callable attribute value becomes a generator that runs on every build.
//
// # Documents
//
//	factories:
//	  post:
//	    model: BlogPost
//	    parent: base
//	    attrs:
//	      title: "post-%d"
//	    sequences:
//	      title: 1
//	      id: 1
//
// HCL files express the same fields as blocks:
//
//	factory "post" {
//	  model     = "BlogPost"
//	  attrs     = { title = "post-%d" }
//	  sequences = { title = 1, id = 1 }
//	}
//
// A sequence for an attribute that has no value counts from nil, yielding
// 1, 2, 3 for a step of 1.
//
// # Parents
//
// Parent links are applied after every file has been read, parents before
// children, so neither file order nor definition order matters. Links to
// undefined factories and cycles fail the load.
package loader
