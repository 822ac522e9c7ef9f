// Package gateway holds the tool catalog shared by every transport.
//
// The package is split by concern:
//   - result: the tagged handler result (backend value or failure)
//   - tasks, appointments: one handler per tool, shaping input for the backend
//   - summary: count aggregations over live list fetches
//   - registry: the immutable name-to-handler dispatch table and argument checks
//   - catalog: the tool definitions and their parameter contracts
//
// Handlers never return Go errors for domain or upstream problems; those are
// Result values. Only calling-convention problems (unknown tool, bad
// arguments) surface as errors, so a transport needs no error translation
// beyond mapping those to its own status codes.
package gateway
