// Package pipe provides bounded FIFO pipes for connecting asynchronous
// dataflow stages.
//
// A Pipe is a bounded buffer with an explicit lifecycle. Producers put
// items while the pipe is active; stopping the pipe enqueues a single
// terminal marker (the sentinel) behind the buffered items so consumers
// drain everything that was accepted and then observe exactly one
// end-of-stream signal.
//
// # Architecture
//
//   - Item: tagged value-or-sentinel wrapper returned by Get
//   - Pipe: bounded FIFO with stop/start lifecycle and join accounting
//   - Iterator: pull-based consumption that ends at the sentinel
//   - Sentinelize: normalizes item slices to end with exactly one sentinel
//
// # Usage
//
//	p := pipe.New[int](64, pipe.WithName[int]("orders"))
//	go func() {
//	    for i := 0; i < 10; i++ {
//	        _ = p.Put(ctx, i)
//	    }
//	    _, _ = p.Stop(ctx)
//	}()
//	for {
//	    it, err := p.Get(ctx)
//	    if err != nil || it.IsEnd() {
//	        break
//	    }
//	    process(it.Value())
//	    p.TaskDone()
//	}
package pipe
