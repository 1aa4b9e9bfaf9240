package main

import (
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is the normal case outside development.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		exitOnError(err)
	}
}
