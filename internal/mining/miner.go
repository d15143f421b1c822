// Package mining performs cooperative, cancellable proof-of-work over a
// chain.Block: unlike Block.Mine, it checks in with a context.Context
// periodically so a caller can time it out or cancel it without killing
// the goroutine outright.
package mining

import (
	"context"
	"strings"
	"time"

	"github.com/nac-codes/Block-Bard/internal/chain"
)

// yieldEvery is how many nonce attempts pass between scheduler yields.
const yieldEvery = 1000

// yieldDuration is how long Mine sleeps every yieldEvery attempts so
// co-resident goroutines (network handlers, the save loop) get a chance
// to run on the same scheduler.
const yieldDuration = 1 * time.Millisecond

// Mine increments block's nonce until its hash satisfies its difficulty
// target, or ctx is done. It returns the mined block on success, or
// ctx.Err() if cancelled or timed out first. block is mutated in place
// either way.
func Mine(ctx context.Context, block *chain.Block) (*chain.Block, error) {
	target := strings.Repeat("0", int(block.Difficulty))

	for !strings.HasPrefix(block.Hash, target) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		block.Nonce++
		block.Hash = block.CalculateHash()

		if block.Nonce%yieldEvery == 0 {
			time.Sleep(yieldDuration)
		}
	}

	return block, nil
}
