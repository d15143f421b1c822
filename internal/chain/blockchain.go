package chain

import (
	"strings"
)

const (
	// DefaultDifficultyAdjustmentInterval is how many blocks pass between
	// retargets.
	DefaultDifficultyAdjustmentInterval = 10
	// DefaultTargetBlockTimeSeconds is the desired spacing between blocks
	// within a retargeting window.
	DefaultTargetBlockTimeSeconds = 30
)

// Blockchain is the ordered, append-only sequence of blocks plus the
// secondary branch index and difficulty state derived from it. Callers
// are responsible for serializing access (see internal/node and
// internal/p2p, which hold a single mutex around the shared instance).
type Blockchain struct {
	Blocks                       []*Block            `json:"blocks"`
	Branches                     map[string][]uint64 `json:"branches"`
	CurrentDifficulty            uint64               `json:"current_difficulty"`
	DifficultyAdjustmentInterval uint64               `json:"difficulty_adjustment_interval"`
	TargetBlockTimeSeconds       uint64               `json:"target_block_time_seconds"`
}

// New returns a fresh chain containing only the genesis block.
func New() *Blockchain {
	return &Blockchain{
		Blocks:                       []*Block{Genesis()},
		Branches:                     map[string][]uint64{"main": {0}},
		CurrentDifficulty:            1,
		DifficultyAdjustmentInterval: DefaultDifficultyAdjustmentInterval,
		TargetBlockTimeSeconds:       DefaultTargetBlockTimeSeconds,
	}
}

// GetLatestBlock returns the chain tail.
func (bc *Blockchain) GetLatestBlock() *Block {
	return bc.Blocks[len(bc.Blocks)-1]
}

// CreateBlock returns a candidate block extending the tail on branchID. It
// does not append the block or mine it.
func (bc *Blockchain) CreateBlock(content, author, branchID string) *Block {
	tail := bc.GetLatestBlock()
	data := BlockData{
		Content:  content,
		Author:   author,
		BranchID: branchID,
	}
	return NewBlock(tail.Index+1, tail.Hash, data, bc.CurrentDifficulty)
}

// CreateBranchBlock returns a candidate block that originates a new branch
// named branchName, rooted at parentBlockIndex. It does not append the
// block or mine it. Branch-origin blocks mine at current difficulty + 1;
// that bump is a per-block fact and is never folded back into
// CurrentDifficulty.
func (bc *Blockchain) CreateBranchBlock(content, author, branchName, branchDescription string, parentBlockIndex uint64) (*Block, error) {
	if parentBlockIndex >= uint64(len(bc.Blocks)) {
		return nil, &InvalidBlockError{Reason: "parent block index does not exist"}
	}

	tail := bc.GetLatestBlock()
	branchID := "branch_" + strings.ReplaceAll(strings.ToLower(branchName), " ", "_")

	data := BlockData{
		Content:  content,
		Author:   author,
		BranchID: branchID,
		BranchMetadata: &BranchMetadata{
			Name:             branchName,
			Description:      branchDescription,
			ParentBlockIndex: parentBlockIndex,
		},
	}
	return NewBlock(tail.Index+1, tail.Hash, data, bc.CurrentDifficulty+1), nil
}

// AddBlock validates and appends block, updating the branch index and, at
// interval boundaries, the difficulty.
func (bc *Blockchain) AddBlock(block *Block) error {
	tail := bc.GetLatestBlock()

	if block.Index != tail.Index+1 {
		return &IndexOutOfSequenceError{Expected: tail.Index + 1, Got: block.Index}
	}
	if block.PreviousHash != tail.Hash {
		return ErrHashMismatch
	}
	if !block.IsValid() {
		return &InvalidBlockError{Reason: "Block hash is invalid"}
	}

	if _, ok := bc.Branches[block.Data.BranchID]; ok {
		bc.Branches[block.Data.BranchID] = append(bc.Branches[block.Data.BranchID], block.Index)
	} else if block.Data.BranchMetadata != nil {
		bc.Branches[block.Data.BranchID] = []uint64{block.Index}
	} else {
		return &BranchNotFoundError{BranchID: block.Data.BranchID}
	}

	bc.Blocks = append(bc.Blocks, block)

	if uint64(len(bc.Blocks))%bc.DifficultyAdjustmentInterval == 0 {
		bc.adjustDifficulty()
	}

	return nil
}

// adjustDifficulty retargets CurrentDifficulty based on how long the last
// DifficultyAdjustmentInterval blocks actually took versus the target.
func (bc *Blockchain) adjustDifficulty() {
	window := bc.DifficultyAdjustmentInterval
	if uint64(len(bc.Blocks)) < window {
		return
	}

	startBlock := bc.Blocks[uint64(len(bc.Blocks))-window]
	endBlock := bc.GetLatestBlock()

	duration := uint64(endBlock.Timestamp.Sub(startBlock.Timestamp).Seconds())
	expected := bc.TargetBlockTimeSeconds * window

	switch {
	case duration < expected/2:
		bc.CurrentDifficulty++
	case duration > expected*2:
		if bc.CurrentDifficulty > 1 {
			bc.CurrentDifficulty--
		}
	}
}

// GetBlocksByBranch returns the blocks belonging to branchID, or nil if
// the branch is unknown.
func (bc *Blockchain) GetBlocksByBranch(branchID string) []*Block {
	indices, ok := bc.Branches[branchID]
	if !ok {
		return nil
	}
	blocks := make([]*Block, 0, len(indices))
	for _, idx := range indices {
		blocks = append(blocks, bc.Blocks[idx])
	}
	return blocks
}

// GetBlockByIndex returns the block at index, or nil if out of range.
func (bc *Blockchain) GetBlockByIndex(index uint64) *Block {
	if index >= uint64(len(bc.Blocks)) {
		return nil
	}
	return bc.Blocks[index]
}

// IsValidChain checks linkage, per-block validity, and index monotonicity
// across the whole chain.
func (bc *Blockchain) IsValidChain() bool {
	for i := 1; i < len(bc.Blocks); i++ {
		current := bc.Blocks[i]
		previous := bc.Blocks[i-1]

		if current.PreviousHash != previous.Hash {
			return false
		}
		if !current.IsValid() {
			return false
		}
		if current.Index != previous.Index+1 {
			return false
		}
	}
	return true
}

// RebuildBranches clears and reconstructs Branches by scanning Blocks in
// order. Idempotent: applying it twice yields the same map.
func (bc *Blockchain) RebuildBranches() {
	bc.Branches = make(map[string][]uint64)
	for _, block := range bc.Blocks {
		bc.Branches[block.Data.BranchID] = append(bc.Branches[block.Data.BranchID], block.Index)
	}
}

// ReplaceBlocks swaps in a new block list wholesale (used when a strictly
// longer valid chain is accepted from a peer), preserving the local
// difficulty parameters, then rebuilds the branch index. Whether keeping
// the local difficulty rather than recomputing it from the incoming chain
// is desirable is left open by the spec; this implementation keeps it, as
// does the reference implementation.
func (bc *Blockchain) ReplaceBlocks(blocks []*Block) {
	bc.Blocks = blocks
	bc.RebuildBranches()
}

// Clone returns a deep-enough copy of bc for callers that must release the
// chain lock before a long-running operation (snapshotting to disk,
// broadcasting): the returned value shares no mutable state with bc, so it
// is safe to read after the lock is released. Blocks themselves are never
// mutated once added, so copying the slice header plus a fresh Branches
// map is sufficient.
func (bc *Blockchain) Clone() *Blockchain {
	blocks := make([]*Block, len(bc.Blocks))
	copy(blocks, bc.Blocks)

	branches := make(map[string][]uint64, len(bc.Branches))
	for id, indices := range bc.Branches {
		copied := make([]uint64, len(indices))
		copy(copied, indices)
		branches[id] = copied
	}

	return &Blockchain{
		Blocks:                       blocks,
		Branches:                     branches,
		CurrentDifficulty:            bc.CurrentDifficulty,
		DifficultyAdjustmentInterval: bc.DifficultyAdjustmentInterval,
		TargetBlockTimeSeconds:       bc.TargetBlockTimeSeconds,
	}
}
