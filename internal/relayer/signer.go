package relayer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/metaswap-labs/swap-aggregator/pkg/model"
	"github.com/metaswap-labs/swap-aggregator/pkg/secrets"
)

// Signer co-signs gasless forwarder requests with the relayer's key. The
// forwarder contract recovers this signature on chain and refuses requests
// not blessed by the relayer.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewSigner builds a signer from a hex-encoded private key.
func NewSigner(hexKey string) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse relayer key: %w", err)
	}
	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// NewSignerFromSecrets resolves the key from a secret store entry holding a
// "privateKey" field.
func NewSignerFromSecrets(ctx context.Context, provider secrets.Provider, secretName string) (*Signer, error) {
	values, err := provider.GetSecret(ctx, secretName)
	if err != nil {
		return nil, fmt.Errorf("fetch relayer key secret: %w", err)
	}
	hexKey, ok := values["privateKey"]
	if !ok {
		return nil, fmt.Errorf("secret %q has no privateKey field", secretName)
	}
	return NewSigner(hexKey)
}

// Address returns the relayer's signing address.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignForwarderRequest signs the tight-packed forwarder tuple under the
// EIP-191 personal-message scheme and returns the 65-byte signature hex
// encoded, with the recovery byte in its on-chain 27/28 form.
func (s *Signer) SignForwarderRequest(chainID int64, from, forwarder string, req *model.ForwarderRequest) (string, error) {
	paymentFees, ok := new(big.Int).SetString(req.PaymentFees, 10)
	if !ok {
		return "", model.NewRequestError(http.StatusBadRequest, "invalid payment fees %q", req.PaymentFees)
	}
	tokenGasPrice, ok := new(big.Int).SetString(req.TokenGasPrice, 10)
	if !ok {
		return "", model.NewRequestError(http.StatusBadRequest, "invalid token gas price %q", req.TokenGasPrice)
	}

	packed := packTight(
		uint256(big.NewInt(chainID)),
		addressBytes(from),
		addressBytes(forwarder),
		addressBytes(req.Signer),
		addressBytes(req.PaymentToken),
		uint256(paymentFees),
		uint256(tokenGasPrice),
		uint256(big.NewInt(req.ValidTo)),
		uint256(big.NewInt(req.Nonce)),
		addressBytes(req.Metaswap),
		common.FromHex(req.Calldata),
	)

	digest := personalHash(crypto.Keccak256(packed))
	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return "", model.NewRequestError(http.StatusInternalServerError, "relayer signing failed: %s", err.Error())
	}
	sig[64] += 27
	return hexutil.Encode(sig), nil
}

func packTight(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func uint256(v *big.Int) []byte {
	var buf [32]byte
	v.FillBytes(buf[:])
	return buf[:]
}

func addressBytes(addr string) []byte {
	return common.HexToAddress(addr).Bytes()
}

// personalHash applies the EIP-191 personal-message prefix to a 32-byte hash.
func personalHash(hash []byte) []byte {
	return crypto.Keccak256([]byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(hash))), hash)
}
