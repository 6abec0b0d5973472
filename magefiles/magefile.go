//go:build mage

// Package main provides build targets for Mistfall using Mage.
//
// Usage:
//
//	mage build    Compile the mistfall binary to bin/
//	mage test     Run all tests
//	mage testUnit Run unit tests only, excluding tests/
//	mage lint     Run golangci-lint
//	mage clean    Remove build artifacts
//	mage install  Install mistfall to GOPATH/bin
//	mage stats    Print Go LOC and documentation word counts
package main

const (
	binGo      = "go"
	binaryName = "mistfall"
	binaryDir  = "bin"
	cmdDir     = "./cmd/mistfall"
)
