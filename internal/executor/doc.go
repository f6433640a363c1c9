// Package executor provides the Command Executor.
//
// Every invocation moves strictly through validate, dispatch, confirm and
// result:
//
//   - validate: the device must declare the command's capability and the
//     arguments must satisfy the command's schema. Nothing is sent otherwise.
//   - dispatch: the command is mapped through the backend's capability
//     registry and sent with bounded exponential backoff. Only network,
//     timeout, rate-limit and unreachable failures are retried.
//   - confirm: the device state is re-read at a fixed interval until the
//     command's declared effects are visible or the timeout elapses.
//   - result: exactly one device.CommandResult.
package executor
