package attest

import "bytes"

// emptyPCR is the all-zero SHA384 digest AWS Nitro Enclaves write into
// PCR0-2 when the enclave image was booted in debug mode.
var emptyPCR = make([]byte, 48)

// PCR represents the enclave's platform configuration register (PCR)
// values, keyed by register index.
type PCR map[uint][]byte

// Equal returns true if (and only if) the two given PCR maps are identical.
func (ours PCR) Equal(theirs PCR) bool {
	// PCR4 contains a hash over the parent's instance ID.  Our enclaves run
	// on different parent instances, so PCR4 will therefore always differ:
	// https://docs.aws.amazon.com/enclaves/latest/user/set-up-attestation.html
	delete(ours, 4)
	delete(theirs, 4)

	if len(ours) != len(theirs) {
		return false
	}

	for i, ourValue := range ours {
		theirValue, exists := theirs[i]
		if !exists {
			return false
		}
		if !bytes.Equal(ourValue, theirValue) {
			return false
		}
	}
	return true
}

// FromDebugMode reports whether these PCRs were produced by an enclave
// image booted with --debug-mode: in that case PCR0, PCR1, and PCR2 are all
// zeroed out instead of measuring the actual boot image, kernel, and
// application. A signing enclave must never accept attestation evidence
// produced in debug mode: debug mode disables the memory isolation that
// otherwise protects the signing key.
func (p PCR) FromDebugMode() bool {
	for _, i := range []uint{0, 1, 2} {
		v, ok := p[i]
		if !ok || !bytes.Equal(v, emptyPCR) {
			return false
		}
	}
	return true
}
