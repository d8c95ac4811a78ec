package registry

import (
	"testing"

	"github.com/nautilus-tee/enclave-signer/internal/attest"
	"github.com/nautilus-tee/enclave-signer/internal/errs"
	"github.com/nautilus-tee/enclave-signer/internal/signer"
	"github.com/stretchr/testify/require"
)

func pcrs(seed byte) attest.PCR {
	mk := func(tag byte) []byte {
		b := make([]byte, 48)
		for i := range b {
			b[i] = seed + tag
		}
		return b
	}
	return attest.PCR{0: mk(0), 1: mk(1), 2: mk(2)}
}

func docWithPCRs(t *testing.T, pk []byte, p attest.PCR) *attest.Document {
	t.Helper()
	return &attest.Document{
		PCRs:    p,
		AuxInfo: attest.AuxInfo{PublicKey: pk},
	}
}

func TestCreateEnclaveConfigStartsAtVersionZero(t *testing.T) {
	r := New()
	configID, capID := r.CreateEnclaveConfig("weather-app", pcrs(1)[0], pcrs(1)[1], pcrs(1)[2])
	require.NotEmpty(t, configID)
	require.NotEmpty(t, capID)
	require.Equal(t, uint64(0), r.configs[configID].Version)
}

func TestUpdatePCRsBumpsVersionAndRequiresCap(t *testing.T) {
	r := New()
	configID, capID := r.CreateEnclaveConfig("weather-app", pcrs(1)[0], pcrs(1)[1], pcrs(1)[2])

	err := r.UpdatePCRs(configID, "wrong-cap", pcrs(2)[0], pcrs(2)[1], pcrs(2)[2])
	require.ErrorIs(t, err, errs.InvalidCap)

	err = r.UpdatePCRs(configID, capID, pcrs(2)[0], pcrs(2)[1], pcrs(2)[2])
	require.NoError(t, err)
	require.Equal(t, uint64(1), r.configs[configID].Version)
}

func TestUpdateNameDoesNotBumpVersion(t *testing.T) {
	r := New()
	configID, capID := r.CreateEnclaveConfig("weather-app", pcrs(1)[0], pcrs(1)[1], pcrs(1)[2])

	require.NoError(t, r.UpdateName(configID, capID, "renamed-app"))
	require.Equal(t, uint64(0), r.configs[configID].Version)
	require.Equal(t, "renamed-app", r.configs[configID].Name)
}

func TestRegisterEnclaveRejectsMismatchedPCRs(t *testing.T) {
	r := New()
	configID, _ := r.CreateEnclaveConfig("weather-app", pcrs(1)[0], pcrs(1)[1], pcrs(1)[2])

	kp, err := signer.Generate()
	require.NoError(t, err)

	doc := docWithPCRs(t, kp.Public, pcrs(9)) // different measurements
	_, err = r.RegisterEnclave(configID, doc, "owner-1")
	require.ErrorIs(t, err, errs.InvalidPCRs)
}

func TestRegisterEnclaveAndVerifySignature(t *testing.T) {
	r := New()
	p := pcrs(1)
	configID, _ := r.CreateEnclaveConfig("weather-app", p[0], p[1], p[2])

	kp, err := signer.Generate()
	require.NoError(t, err)

	doc := docWithPCRs(t, kp.Public, p)
	instance, err := r.RegisterEnclave(configID, doc, "owner-1")
	require.NoError(t, err)
	require.Equal(t, uint64(0), instance.ConfigVersion)

	payload := []byte("payload")
	_, sig := kp.Sign(5, 1000, payload)

	require.True(t, r.VerifySignature(instance.ID, 5, 1000, payload, sig))
	require.False(t, r.VerifySignature(instance.ID, 6, 1000, payload, sig))
}

func TestVerifySignatureFailsAfterConfigVersionBumps(t *testing.T) {
	r := New()
	p := pcrs(1)
	configID, capID := r.CreateEnclaveConfig("weather-app", p[0], p[1], p[2])

	kp, err := signer.Generate()
	require.NoError(t, err)

	doc := docWithPCRs(t, kp.Public, p)
	instance, err := r.RegisterEnclave(configID, doc, "owner-1")
	require.NoError(t, err)

	payload := []byte("payload")
	_, sig := kp.Sign(5, 1000, payload)
	require.True(t, r.VerifySignature(instance.ID, 5, 1000, payload, sig))

	p2 := pcrs(2)
	require.NoError(t, r.UpdatePCRs(configID, capID, p2[0], p2[1], p2[2]))

	require.False(t, r.VerifySignature(instance.ID, 5, 1000, payload, sig))
}

func TestDestroyOldEnclaveRequiresStaleness(t *testing.T) {
	r := New()
	p := pcrs(1)
	configID, capID := r.CreateEnclaveConfig("weather-app", p[0], p[1], p[2])

	kp, err := signer.Generate()
	require.NoError(t, err)
	doc := docWithPCRs(t, kp.Public, p)
	instance, err := r.RegisterEnclave(configID, doc, "owner-1")
	require.NoError(t, err)

	err = r.DestroyOldEnclave(instance.ID, configID)
	require.ErrorIs(t, err, errs.ErrNotStale)

	p2 := pcrs(2)
	require.NoError(t, r.UpdatePCRs(configID, capID, p2[0], p2[1], p2[2]))

	require.NoError(t, r.DestroyOldEnclave(instance.ID, configID))
	_, stillThere := r.instances[instance.ID]
	require.False(t, stillThere)
}

func TestDeployOldEnclaveByOwnerRequiresOwner(t *testing.T) {
	r := New()
	p := pcrs(1)
	configID, _ := r.CreateEnclaveConfig("weather-app", p[0], p[1], p[2])

	kp, err := signer.Generate()
	require.NoError(t, err)
	doc := docWithPCRs(t, kp.Public, p)
	instance, err := r.RegisterEnclave(configID, doc, "owner-1")
	require.NoError(t, err)

	err = r.DeployOldEnclaveByOwner(instance.ID, "not-the-owner")
	require.ErrorIs(t, err, errs.InvalidOwner)

	require.NoError(t, r.DeployOldEnclaveByOwner(instance.ID, "owner-1"))
	_, stillThere := r.instances[instance.ID]
	require.False(t, stillThere)
}
