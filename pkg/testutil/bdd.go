package testutil

import "testing"

// Given, When, and Then name the steps of scenario-style tests. Thin wrappers
// over subtests, so a flag lifecycle reads as a behavior rather than setup.
// Steps run in declaration order.
func Given(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Given "+desc, fn)
}

func When(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("When "+desc, fn)
}

func Then(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Then "+desc, fn)
}
