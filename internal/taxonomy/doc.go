// Package taxonomy loads the marketplace classification tree and flattens it
// into an ordered list of leaves that the matchers rank against.
//
// The tree may arrive as a single root object, a list holding exactly one
// root, or the marketplace API envelope {"result": [...]}. Traversal is
// iterative with an explicit stack, so arbitrarily deep trees are safe.
//
// Each leaf inherits description_category_id from its nearest ancestor that
// defines one; a leaf's own value wins.
package taxonomy
