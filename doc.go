// Package main provides the go-ipaslice CLI, which splits a universal
// iOS application archive into per-architecture, per-scale archives.
//
// For the library API, see the slicing subpackage:
//
//	import "github.com/aluedeke/go-ipaslice/pkg/slicing"
//
// # Installation
//
// Install the CLI:
//
//	go install github.com/aluedeke/go-ipaslice@latest
package main
