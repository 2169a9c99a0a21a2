// Package ipc correlates requests and replies exchanged with worker processes.
package ipc

// Request asks a worker for its runtime sample. Controller -> worker.
type Request struct {
	ID uint64 `cbor:"id"`
}

// MemoryUsage is the worker runtime's memory breakdown, in bytes
type MemoryUsage struct {
	HeapUsed   uint64 `cbor:"heapUsed" json:"heapUsed"`
	HeapTotal  uint64 `cbor:"heapTotal" json:"heapTotal"`
	Sys        uint64 `cbor:"sys" json:"sys"`
	StackInuse uint64 `cbor:"stackInuse" json:"stackInuse"`
}

// Reply carries one measurement window of a worker. Worker -> controller.
type Reply struct {
	ID           uint64      `cbor:"id"`
	TimeFromLast float64     `cbor:"timeFromLast"` // ms since the previous request, 0 for the first
	Ticks        []float64   `cbor:"ticks"`        // ms between consecutive sampler ticks
	Mem          MemoryUsage `cbor:"mem"`
	Conns        int64       `cbor:"conns"`
	Packets      int64       `cbor:"packets"`
}
