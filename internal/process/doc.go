// Package process starts external programs and manages the handles used to
// observe and control them.
//
// Four spawn variants are provided. Start redirects the child's standard
// streams to existing stream handles, StartPipe connects all three to fresh
// pipes, Pipe2 pipes only stdin and stdout, and Pty attaches the child to a
// pseudo terminal where the OS has one (it falls back to Pipe2 elsewhere).
//
// A Handle is reference counted. Spawning returns a handle holding one
// reference; Create, Assign and Release adjust the count and the handle
// frees its owned streams and OS resources when it reaches zero. The nil
// *Handle is the null process.
//
// Liveness is tracked lazily: IsAlive polls the OS without blocking and
// WaitFor blocks until the child exits. Once termination has been observed
// the exit value is cached and later queries never touch the OS again.
package process
