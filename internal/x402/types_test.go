package x402

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func challengeBody(t *testing.T, accepts []PaymentRequirements) []byte {
	t.Helper()
	body, err := json.Marshal(PaymentChallenge{X402Version: X402Version, Accepts: accepts})
	require.NoError(t, err)
	return body
}

func validRequirement() PaymentRequirements {
	return PaymentRequirements{
		Scheme:            SchemeExact,
		Network:           "base-sepolia",
		MaxAmountRequired: "1000000",
		PayTo:             "0x1111111111111111111111111111111111111111",
		Asset:             "0x2222222222222222222222222222222222222222",
	}
}

func TestParseChallengeSelectsFirstMatch(t *testing.T) {
	first := validRequirement()
	second := validRequirement()
	second.Network = "polygon"
	second.MaxAmountRequired = "1" // cheaper, must still lose to the first

	quote, err := ParseChallenge(challengeBody(t, []PaymentRequirements{first, second}))
	require.NoError(t, err)
	assert.Equal(t, "base-sepolia", quote.Network)
	assert.Equal(t, "1000000", quote.MaxAmountRequired)
	assert.Equal(t, int64(84532), quote.ChainID)
}

func TestParseChallengeSkipsUnknownNetworks(t *testing.T) {
	unknown := validRequirement()
	unknown.Network = "unobtainium"
	usable := validRequirement()
	usable.Network = "polygon"

	quote, err := ParseChallenge(challengeBody(t, []PaymentRequirements{unknown, usable}))
	require.NoError(t, err)
	assert.Equal(t, "polygon", quote.Network)
	assert.Equal(t, int64(137), quote.ChainID)
}

func TestParseChallengeSkipsOtherSchemes(t *testing.T) {
	streaming := validRequirement()
	streaming.Scheme = "upto"
	usable := validRequirement()

	quote, err := ParseChallenge(challengeBody(t, []PaymentRequirements{streaming, usable}))
	require.NoError(t, err)
	assert.Equal(t, SchemeExact, quote.Requirement().Scheme)
}

func TestParseChallengeNoUsableRequirement(t *testing.T) {
	_, err := ParseChallenge(challengeBody(t, nil))
	assert.Error(t, err)

	missing := validRequirement()
	missing.PayTo = ""
	_, err = ParseChallenge(challengeBody(t, []PaymentRequirements{missing}))
	assert.Error(t, err)

	_, err = ParseChallenge([]byte("not json"))
	assert.Error(t, err)
}

func TestQuoteFromRequirement(t *testing.T) {
	req := validRequirement()
	req.Extra = map[string]interface{}{"method": "POST"}

	quote, err := QuoteFromRequirement(req)
	require.NoError(t, err)
	assert.Equal(t, "POST", quote.Method)
	assert.Equal(t, req.PayTo, quote.PayTo)
	assert.Equal(t, req.Asset, quote.TokenAddress)

	bad := validRequirement()
	bad.MaxAmountRequired = "1.5"
	_, err = QuoteFromRequirement(bad)
	assert.Error(t, err)

	bad = validRequirement()
	bad.Network = "unknown-net"
	_, err = QuoteFromRequirement(bad)
	assert.Error(t, err)
}

func TestChainIDReservesZeroForNonEVM(t *testing.T) {
	id, ok := ChainID("solana")
	require.True(t, ok)
	assert.Equal(t, int64(0), id)

	id, ok = ChainID("base")
	require.True(t, ok)
	assert.Equal(t, int64(8453), id)

	_, ok = ChainID("bitcoin")
	assert.False(t, ok)
}

func TestIsIntegerString(t *testing.T) {
	assert.True(t, IsIntegerString("0"))
	assert.True(t, IsIntegerString("1000000"))
	assert.False(t, IsIntegerString(""))
	assert.False(t, IsIntegerString("-1"))
	assert.False(t, IsIntegerString("1.5"))
	assert.False(t, IsIntegerString("1e6"))
}
