// Package parade holds the domain model shared by the allocation engine and
// the formation renderer: groups, contingents, allocations and the error
// taxonomy used across the application.
package parade
