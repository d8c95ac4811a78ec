//go:build !linux

// Package system implements boot-time safety checks for the environment the
// enclave runtime is running in.
package system

import "log"

// HasSecureRNG always returns false on non-Linux platforms: the hardware RNG
// probe below is Linux-specific, and the enclave only ever runs on Linux in
// production. This stub exists so developers can build and test on macOS.
func HasSecureRNG() bool {
	log.Print("Secure RNG check is only implemented on Linux.")
	return false
}

// HasSecureKernelVersion always returns false on non-Linux platforms; see
// HasSecureRNG.
func HasSecureKernelVersion() bool {
	log.Print("Secure kernel version check is only implemented on Linux.")
	return false
}
