package hashing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secureid/internal/domain"
)

const testHolder = domain.Address("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

func TestFingerprintDeterminism(t *testing.T) {
	first, err := Fingerprint("DOC123", TagString)
	require.NoError(t, err)
	second, err := Fingerprint("DOC123", TagString)
	require.NoError(t, err)
	assert.True(t, first.Equal(second))

	other, err := Fingerprint("DOC124", TagString)
	require.NoError(t, err)
	assert.False(t, first.Equal(other))
}

func TestFingerprintKnownVector(t *testing.T) {
	// keccak-256("abc")
	h, err := Fingerprint("abc", TagString)
	require.NoError(t, err)
	assert.Equal(t, "0x4e03657aea45a94fc7d47ba826c8d667c0d1e6e33a64a036ec44f58fa12d6c45", h.Hex())
}

func TestAddressEncodingDiffersFromString(t *testing.T) {
	// The address tag hashes 20 raw bytes; the string tag hashes the hex
	// text. Same logical value, different fingerprints.
	asAddr, err := Fingerprint(testHolder.String(), TagAddress)
	require.NoError(t, err)
	asString, err := Fingerprint(testHolder.String(), TagString)
	require.NoError(t, err)
	assert.False(t, asAddr.Equal(asString))
}

func TestAddressFingerprintNormalizes(t *testing.T) {
	lower, err := Fingerprint("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", TagAddress)
	require.NoError(t, err)
	upper, err := Fingerprint("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", TagAddress)
	require.NoError(t, err)
	bare, err := Fingerprint("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", TagAddress)
	require.NoError(t, err)
	assert.True(t, lower.Equal(upper))
	assert.True(t, lower.Equal(bare))
}

func TestFingerprintRejectsMalformedInput(t *testing.T) {
	_, err := Fingerprint("", TagString)
	assert.Error(t, err)

	_, err = Fingerprint("0x1234", TagAddress)
	assert.Error(t, err)

	_, err = Fingerprint("not-an-address", TagAddress)
	assert.Error(t, err)

	_, err = Fingerprint("value", Tag("unknown"))
	assert.Error(t, err)
}

func TestCodeBindingOrderIsFixed(t *testing.T) {
	bound, err := CodeBinding("123456", testHolder)
	require.NoError(t, err)

	again, err := CodeBinding("123456", testHolder)
	require.NoError(t, err)
	assert.True(t, bound.Equal(again))

	differentCode, err := CodeBinding("654321", testHolder)
	require.NoError(t, err)
	assert.False(t, bound.Equal(differentCode))

	otherHolder := domain.Address("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	differentHolder, err := CodeBinding("123456", otherHolder)
	require.NoError(t, err)
	assert.False(t, bound.Equal(differentHolder))
}

func TestParseHexAcceptsBothPrefixForms(t *testing.T) {
	h, err := Fingerprint("DOC123", TagString)
	require.NoError(t, err)

	withPrefix, err := ParseHex(h.Hex())
	require.NoError(t, err)
	withoutPrefix, err := ParseHex(h.Hex()[2:])
	require.NoError(t, err)

	assert.True(t, h.Equal(withPrefix))
	assert.True(t, h.Equal(withoutPrefix))

	_, err = ParseHex("0x1234")
	assert.Error(t, err)
	_, err = ParseHex("zz")
	assert.Error(t, err)
}
