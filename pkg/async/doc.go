// Package async offers small generic helpers for concurrent work.
//
// Async starts a single computation and returns a Future. AllSettled fans a
// function out over a slice with bounded concurrency and collects every
// outcome, successful or not, so one failing or panicking item never hides
// the results of its siblings.
package async
