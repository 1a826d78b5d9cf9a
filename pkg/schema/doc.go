// Package schema defines the canonical request/response types that every
// other component of the gateway manipulates: messages, content blocks,
// tools, usage accounting, streaming frames, and provenance lineage.
//
// The schema is the contract with callers and with every provider adapter.
// Provider-specific structures never cross this boundary: adapters translate
// to and from their upstream's native wire format, and the rest of the
// gateway only ever sees these types.
//
// All types marshal to the stable wire shapes documented on each struct.
// Round-tripping a value through JSON preserves it exactly.
package schema
