// Package shared holds helpers used by more than one package.
//
// The testutil subpackage provides a log-capturing slog handler and
// FakeHub, an in-process Central Hub for client, handler and application
// tests.
package shared
