package main

import (
	"testing"

	_ "github.com/odyssey-school/odyssey-school/testing"
)

func TestMainSkipsStartupInTestMode(t *testing.T) {
	// Returns immediately instead of dialing Postgres.
	main()
}
