// Package main is the entry point for the retrieval-x service.
package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/kart-io/retrieval-x/internal/retrieval"
)

func main() {
	retrieval.NewApp().Run()
}
