// Package toolchain turns a submitted strategy into something the sandbox can
// launch: a compiled binary for C and C++, or an interpreter invocation of a
// small harness for Python.
//
// Prepared artifacts live in a content-addressed cache keyed by the
// strategy digest and the toolchain that built it, so a strategy is compiled
// at most once no matter how many matches it plays.
package toolchain
