// Package compiler turns CUE domain definitions into schema documents.
//
// Authors write schemas in CUE for its constraints and composition;
// the compiler evaluates the CUE, decodes each declared schema into a
// plain document, stamps the canonical content hash, and hands the
// result to the validator. The engine itself never sees CUE: it
// consumes only the compiled DomainSchema.
package compiler
