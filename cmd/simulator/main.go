// Command simulator runs batches of assembled programs through the
// multicore OS simulator: a pipelined CPU core per scheduling slice, a
// paged/cached/swapped memory manager, and a blocking I/O service,
// orchestrated across a configurable number of concurrent cores.
package main

func main() {
	Execute()
}
