package consensus

import (
	"math/big"

	"github.com/tolelom/sequencer/chain"
	"github.com/tolelom/sequencer/crypto"
)

// EvaluateCommitment is the pure, deterministic leader-derivation function:
// decode the receipt's journal as an unsigned big-endian integer R and
// select ValidatorSet[R mod N].
func EvaluateCommitment(c chain.RandomnessCommitment, params Params) crypto.PubKey {
	n := params.N()
	if n == 0 {
		return nil
	}
	r := new(big.Int).SetBytes(c.Receipt.RandomBigEndian())
	idx := new(big.Int).Mod(r, big.NewInt(int64(n))).Int64()
	return params.Validators[idx]
}
