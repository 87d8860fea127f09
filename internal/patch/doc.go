// Package patch applies path-scoped mutations to a data tree.
//
// The input tree is never modified: Apply copies the containers along
// each patch path and shares everything else, returning a new tree.
// Patches apply in list order, so later patches observe the effects of
// earlier ones.
package patch
