// Package fixtures provides a fluent builder for taxonomy trees and a few
// canned trees and offers shared by tests across packages.
//
// Example usage:
//
//	root := fixtures.NewTree().
//		Category("Крепёж", 10).
//		Leaf("Гайка", 1).
//		Leaf("Болт", 2).
//		End().
//		Build()
package fixtures
