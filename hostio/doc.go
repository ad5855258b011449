// Package hostio provides host transport adapters implementing the
// io.Reader/io.Writer pair a zenoh.Session expects from its host: Update
// reads one batch, SendPending and Session.Tx's written batches go out
// through Write. These are host collaborators, outside the sans-I/O core,
// demonstrating that the core's read/write contract runs over a real,
// widely varying transport rather than only an in-process pipe.
package hostio
