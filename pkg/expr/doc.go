// Package expr implements the sandboxed condition/input expression grammar.
//
// Expressions use HCL expression syntax evaluated against a single variable,
// ctx, which exposes the execution context as an object:
//
//	ctx.completed_chapters >= ctx.num_chapters
//	len(ctx.chapters) * 2
//	ctx.file_type == "pdf" || ctx.force_convert
//
// Programs are compiled (parsed) once and are side-effect free: evaluation
// cannot mutate the context, and only a fixed table of pure functions is
// available. Parsing without evaluating gives the static syntax check used
// by the validator.
package expr
