package chain

import (
	"context"
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/fabric/gateway/internal/reputation"
)

const zeroAddress = "0x0000000000000000000000000000000000000000"

// RegistryWriter submits batched reputation updates to the registry
// contract via the node's operator account (eth_sendTransaction; the
// node holds the key). Satisfies reputation.ChainWriter.
type RegistryWriter struct {
	rpc             *rpcClient
	registryAddress string
	operatorAddress string
}

// NewRegistryWriter creates a writer. It reports not-configured rather
// than erroring when the registry contract is not deployed, so the
// batcher can run off-chain only.
func NewRegistryWriter(rpcURL, registryAddress, operatorAddress string, timeout time.Duration) *RegistryWriter {
	return &RegistryWriter{
		rpc:             newRPCClient(rpcURL, timeout),
		registryAddress: registryAddress,
		operatorAddress: operatorAddress,
	}
}

// Configured reports whether the registry contract and operator account
// are both set.
func (w *RegistryWriter) Configured() bool {
	return w.registryAddress != "" && w.registryAddress != zeroAddress &&
		w.operatorAddress != "" && w.operatorAddress != zeroAddress
}

// BatchUpdateReputation submits one batched
// batchUpdateReputation(uint256[],uint256[],uint256[]) call covering
// all updates and returns the transaction hash. Scores are stored
// on-chain scaled by 10000 (4.5 → 45000).
func (w *RegistryWriter) BatchUpdateReputation(ctx context.Context, updates []reputation.ChainUpdate) (string, error) {
	if !w.Configured() {
		return "", fmt.Errorf("registry writer not configured")
	}
	if len(updates) == 0 {
		return "", nil
	}

	ids := make([]*big.Int, len(updates))
	scores := make([]*big.Int, len(updates))
	interactions := make([]*big.Int, len(updates))
	for i, u := range updates {
		ids[i] = big.NewInt(u.OnChainID)
		scores[i] = big.NewInt(int64(math.Round(u.Score * 10000)))
		interactions[i] = big.NewInt(int64(u.Interactions))
	}

	data := encodeBatchUpdate(ids, scores, interactions)

	var txHash string
	err := w.rpc.call(ctx, "eth_sendTransaction", &txHash, map[string]string{
		"from": w.operatorAddress,
		"to":   w.registryAddress,
		"data": "0x" + hex.EncodeToString(data),
	})
	if err != nil {
		return "", fmt.Errorf("batchUpdateReputation: %w", err)
	}
	return txHash, nil
}

// encodeBatchUpdate ABI-encodes the call data for
// batchUpdateReputation(uint256[],uint256[],uint256[]): the 4-byte
// selector, three head words holding the tail offsets, then each array
// as length word + element words.
func encodeBatchUpdate(ids, scores, interactions []*big.Int) []byte {
	selector := methodSelector("batchUpdateReputation(uint256[],uint256[],uint256[])")

	arrays := [][]*big.Int{ids, scores, interactions}
	head := make([]byte, 0, 3*32)
	tail := make([]byte, 0)

	offset := int64(3 * 32) // tails start after the three head words
	for _, arr := range arrays {
		head = append(head, word(big.NewInt(offset))...)
		encoded := encodeUint256Array(arr)
		tail = append(tail, encoded...)
		offset += int64(len(encoded))
	}

	out := make([]byte, 0, 4+len(head)+len(tail))
	out = append(out, selector...)
	out = append(out, head...)
	out = append(out, tail...)
	return out
}

func encodeUint256Array(values []*big.Int) []byte {
	out := word(big.NewInt(int64(len(values))))
	for _, v := range values {
		out = append(out, word(v)...)
	}
	return out
}

// word left-pads a big.Int to one 32-byte ABI word.
func word(v *big.Int) []byte {
	w := make([]byte, 32)
	v.FillBytes(w)
	return w
}

// methodSelector returns the first 4 bytes of keccak256(signature).
func methodSelector(signature string) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	return h.Sum(nil)[:4]
}
