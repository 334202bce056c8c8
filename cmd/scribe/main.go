// Package main is the entry point for the scribe content service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	scribe "github.com/kart-io/scribe-x/internal/scribe"
)

func main() {
	scribe.NewApp().Run()
}
