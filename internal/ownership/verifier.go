package ownership

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// Verifier checks that a service-ownership claim was signed by the claimed
// wallet's key using the standard personal_sign scheme.
type Verifier struct{}

func NewVerifier() *Verifier {
	return &Verifier{}
}

// ClaimMessage builds the canonical message an owner signs to claim a
// service. Binding the service ID into the message stops a signature from
// being replayed against a different catalog entry.
func ClaimMessage(serviceID, address string) string {
	return fmt.Sprintf("paygrid ownership claim\nservice: %s\naddress: %s", serviceID, strings.ToLower(address))
}

// Verify reports whether signature over message was produced by address's
// key. Address comparison is checksum-normalized, so casing never matters.
func (v *Verifier) Verify(address, message, signature string) (bool, error) {
	if !common.IsHexAddress(address) {
		return false, errors.Errorf("address %q is not a valid hex address", address)
	}

	recovered, err := recoverAddress(accounts.TextHash([]byte(message)), signature)
	if err != nil {
		return false, err
	}

	return recovered == common.HexToAddress(address), nil
}

func recoverAddress(hash []byte, signature string) (common.Address, error) {
	signature = strings.TrimPrefix(signature, "0x")

	sigBytes, err := hex.DecodeString(signature)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "failed to decode signature")
	}
	if len(sigBytes) != 65 {
		return common.Address{}, errors.Errorf("signature must be 65 bytes, got %d", len(sigBytes))
	}

	// Adjust the recovery ID for Ethereum
	if sigBytes[64] >= 27 {
		sigBytes[64] -= 27
	}

	pubKey, err := crypto.SigToPub(hash, sigBytes)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "failed to recover public key")
	}

	return crypto.PubkeyToAddress(*pubKey), nil
}
