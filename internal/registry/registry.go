// Package registry emulates the on-chain object model an attested signing
// service registers against: a shared EnclaveConfig naming the PCR triple
// a valid instance must measure, admin-gated mutation through a
// non-forgeable capability, and EnclaveInstance objects whose signatures
// are only trusted while their pinned config_version matches the config's
// current version. Every mutation here mirrors the abort conditions a Move
// module would enforce on-chain; this package exists so those
// state-machine semantics can be run and tested without a live chain.
package registry

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/nautilus-tee/enclave-signer/internal/attest"
	"github.com/nautilus-tee/enclave-signer/internal/errs"
	"github.com/nautilus-tee/enclave-signer/internal/signer"
)

// EnclaveConfig is a shared, readable-by-everyone object naming the
// measurements a registered instance must match.
type EnclaveConfig struct {
	ID           string
	Name         string
	PCRs         attest.PCR
	CapabilityID string
	Version      uint64
}

// Cap is a non-forgeable admin capability, minted once per config and
// required by every config mutation.
type Cap struct {
	ID       string
	ConfigID string
}

// EnclaveInstance is created by RegisterEnclave once an attestation
// document's measurements match its config.
type EnclaveInstance struct {
	ID            string
	PK            []byte
	ConfigVersion uint64
	Owner         string
}

// Registry holds every config, capability, and instance created during a
// process's lifetime, guarded by a single RWMutex: every mutation holds the
// write lock, and VerifySignature holds the read lock, so it waits for (and
// blocks) writers.
type Registry struct {
	mu                sync.RWMutex
	configs           map[string]*EnclaveConfig
	caps              map[string]*Cap
	instances         map[string]*EnclaveInstance
	instanceConfigIDs map[string]string
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		configs:           make(map[string]*EnclaveConfig),
		caps:              make(map[string]*Cap),
		instances:         make(map[string]*EnclaveInstance),
		instanceConfigIDs: make(map[string]string),
	}
}

func newID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// CreateEnclaveConfig mints a config at version 0 plus the single Cap
// authorized to mutate it, returning both ids.
func (r *Registry) CreateEnclaveConfig(name string, pcr0, pcr1, pcr2 []byte) (configID, capID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	configID = newID()
	capID = newID()

	r.configs[configID] = &EnclaveConfig{
		ID:           configID,
		Name:         name,
		PCRs:         attest.PCR{0: pcr0, 1: pcr1, 2: pcr2},
		CapabilityID: capID,
		Version:      0,
	}
	r.caps[capID] = &Cap{ID: capID, ConfigID: configID}
	return configID, capID
}

func (r *Registry) requireCap(configID, capID string) (*EnclaveConfig, error) {
	config, ok := r.configs[configID]
	if !ok {
		return nil, fmt.Errorf("%w: config %q", errs.NotFound, configID)
	}
	capability, ok := r.caps[capID]
	if !ok || capability.ConfigID != configID || config.CapabilityID != capID {
		return nil, errs.InvalidCap
	}
	return config, nil
}

// UpdatePCRs replaces a config's measurement triple and bumps its version,
// invalidating every previously registered instance's pinned version.
func (r *Registry) UpdatePCRs(configID, capID string, pcr0, pcr1, pcr2 []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	config, err := r.requireCap(configID, capID)
	if err != nil {
		return err
	}
	config.PCRs = attest.PCR{0: pcr0, 1: pcr1, 2: pcr2}
	config.Version++
	return nil
}

// UpdateName renames a config without affecting its version.
func (r *Registry) UpdateName(configID, capID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	config, err := r.requireCap(configID, capID)
	if err != nil {
		return err
	}
	config.Name = name
	return nil
}

// RegisterEnclave validates that doc's PCR0-2 match config, then creates an
// EnclaveInstance holding doc's embedded public key, pinned to config's
// current version. The public key itself is not checked.
func (r *Registry) RegisterEnclave(configID string, doc *attest.Document, owner string) (*EnclaveInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	config, ok := r.configs[configID]
	if !ok {
		return nil, fmt.Errorf("%w: config %q", errs.NotFound, configID)
	}

	if !docMatchesPCRs(doc.PCRs, config.PCRs) {
		return nil, errs.InvalidPCRs
	}

	instance := &EnclaveInstance{
		ID:            newID(),
		PK:            doc.AuxInfo.PublicKey,
		ConfigVersion: config.Version,
		Owner:         owner,
	}
	r.instances[instance.ID] = instance
	r.instanceConfigIDs[instance.ID] = config.ID
	return instance, nil
}

// docMatchesPCRs compares only PCR0-2, the measurements registration
// gates on; PCR4 (if present) varies per parent instance and is never
// part of the comparison.
func docMatchesPCRs(doc, config attest.PCR) bool {
	for _, idx := range []uint{0, 1, 2} {
		a, aok := doc[idx]
		b, bok := config[idx]
		if aok != bok {
			return false
		}
		if aok && string(a) != string(b) {
			return false
		}
	}
	return true
}

// VerifySignature reports whether sig is a valid signature by instance's
// pinned public key over the intent message, and whether that instance's
// pinned config_version still matches its config's current version. It
// never aborts: any mismatch (unknown instance, stale version, bad
// signature) simply returns false.
func (r *Registry) VerifySignature(instanceID string, intent byte, tsMs uint64, payload, sig []byte) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instance, ok := r.instances[instanceID]
	if !ok {
		return false
	}
	config, ok := r.configFor(instanceID)
	if !ok || instance.ConfigVersion != config.Version {
		return false
	}
	return signer.Verify(instance.PK, intent, tsMs, payload, sig)
}

// configFor looks up the config an instance was registered against.
func (r *Registry) configFor(instanceID string) (*EnclaveConfig, bool) {
	configID, ok := r.instanceConfigIDs[instanceID]
	if !ok {
		return nil, false
	}
	config, ok := r.configs[configID]
	return config, ok
}

// DestroyOldEnclave removes instance if its pinned config_version is
// strictly older than config's current version. Permissionless: anyone
// may call it, since a stale instance is a liability to everyone.
func (r *Registry) DestroyOldEnclave(instanceID, configID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	instance, ok := r.instances[instanceID]
	if !ok {
		return fmt.Errorf("%w: instance %q", errs.NotFound, instanceID)
	}
	config, ok := r.configs[configID]
	if !ok {
		return fmt.Errorf("%w: config %q", errs.NotFound, configID)
	}
	if instance.ConfigVersion >= config.Version {
		return errs.ErrNotStale
	}
	delete(r.instances, instanceID)
	return nil
}

// DeployOldEnclaveByOwner removes instance regardless of its version, but
// only when sender is the instance's recorded owner.
func (r *Registry) DeployOldEnclaveByOwner(instanceID, sender string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	instance, ok := r.instances[instanceID]
	if !ok {
		return fmt.Errorf("%w: instance %q", errs.NotFound, instanceID)
	}
	if instance.Owner != sender {
		return errs.InvalidOwner
	}
	delete(r.instances, instanceID)
	return nil
}
