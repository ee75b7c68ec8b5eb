// Package control implements the inner control loop of a quadrotor:
//
//   - [Allocation]: rotor speeds <-> body wrench via the X-configuration
//     mixing matrix and its pseudo-inverse
//   - [Motor]: first-order rotor speed dynamics with slew-rate limits
//   - [RateController]: body-rate feedback with gyroscopic feedforward
//   - [Pipeline]: normalized commands -> realized body wrench, wiring the
//     three together per control mode
//
// # Usage
//
//	alloc, _ := control.NewAllocation(n, 0.035, 2.25e-7, 1.5e-9)
//	wrench, _ := alloc.Wrench(omega) // (n,4) rotor speeds -> (n,4) wrench
//
// Every component operates on a batch of n independent vehicle instances per
// call; rows of a batch.Grid never interact.
package control
