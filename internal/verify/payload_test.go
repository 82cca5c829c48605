package verify_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "secureid/pkg/domain-errors"

	"secureid/internal/hashing"
	"secureid/internal/verify"
)

func testHashes(t *testing.T) (addr, code hashing.Hash) {
	t.Helper()
	addr, err := hashing.AddressFingerprint("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	require.NoError(t, err)
	code, err = hashing.CodeBinding("123456", "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	require.NoError(t, err)
	return addr, code
}

func TestParsePayloadRoundTrip(t *testing.T) {
	addr, code := testHashes(t)
	original := verify.Payload{
		Type:        verify.PayloadTypeIdentity,
		ProofID:     "proof1",
		AddressHash: addr,
		CodeHash:    code,
		HasCodeHash: true,
	}

	encoded, err := original.Encode()
	require.NoError(t, err)

	parsed, err := verify.ParsePayload(encoded)
	require.NoError(t, err)
	assert.Equal(t, original, parsed)
}

func TestParsePayloadAcceptsUnprefixedHex(t *testing.T) {
	addr, code := testHashes(t)
	raw, err := json.Marshal(map[string]string{
		"type":        "age",
		"proofId":     "proof1",
		"addressHash": addr.Hex()[2:],
		"codeHash":    code.Hex()[2:],
	})
	require.NoError(t, err)

	parsed, err := verify.ParsePayload(raw)
	require.NoError(t, err)
	assert.Equal(t, verify.PayloadTypeAge, parsed.Type)
	assert.True(t, parsed.AddressHash.Equal(addr))
	assert.True(t, parsed.CodeHash.Equal(code))
}

func TestParsePayloadWithoutCodeHash(t *testing.T) {
	addr, _ := testHashes(t)
	raw, err := json.Marshal(map[string]string{
		"type":        "identity",
		"proofId":     "proof1",
		"addressHash": addr.Hex(),
	})
	require.NoError(t, err)

	parsed, err := verify.ParsePayload(raw)
	require.NoError(t, err)
	assert.False(t, parsed.HasCodeHash)

	encoded, err := parsed.Encode()
	require.NoError(t, err)
	assert.NotContains(t, string(encoded), "codeHash")
}

func TestParsePayloadMalformed(t *testing.T) {
	addr, _ := testHashes(t)

	cases := map[string]string{
		"not json":            `{"type":`,
		"missing type":        `{"proofId":"p","addressHash":"` + addr.Hex() + `"}`,
		"unknown type":        `{"type":"passport","proofId":"p","addressHash":"` + addr.Hex() + `"}`,
		"missing proofId":     `{"type":"identity","addressHash":"` + addr.Hex() + `"}`,
		"missing addressHash": `{"type":"identity","proofId":"p"}`,
		"bad addressHash":     `{"type":"identity","proofId":"p","addressHash":"0xzz"}`,
		"bad codeHash":        `{"type":"identity","proofId":"p","addressHash":"` + addr.Hex() + `","codeHash":"nope"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := verify.ParsePayload([]byte(raw))
			require.Error(t, err)
			assert.Equal(t, dErrors.CodeMalformedPayload, dErrors.CodeOf(err))
		})
	}
}
