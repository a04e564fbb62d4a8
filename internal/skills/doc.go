// Package skills is the catalog of named capabilities offered to the agent.
// Document skills are markdown files under skills/ and skills/_meta/ whose
// content is handed to the model as instructions. Code skills are Go types
// whose operations are exposed as typed sub-tools, declared in an embedded
// JSONC manifest.
package skills
