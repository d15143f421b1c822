package chain

import (
	"errors"
	"fmt"
)

// ErrHashMismatch is returned by AddBlock when a candidate's PreviousHash
// does not match the current tail's Hash.
var ErrHashMismatch = errors.New("previous block hash doesn't match")

// IndexOutOfSequenceError is returned by AddBlock when a candidate's Index
// is not exactly one past the current tail.
type IndexOutOfSequenceError struct {
	Expected, Got uint64
}

func (e *IndexOutOfSequenceError) Error() string {
	return fmt.Sprintf("block index out of sequence: expected %d, got %d", e.Expected, e.Got)
}

// InvalidBlockError covers any block that fails IsValid, or a branch
// request naming a parent block index that does not exist.
type InvalidBlockError struct {
	Reason string
}

func (e *InvalidBlockError) Error() string {
	return "invalid block: " + e.Reason
}

// BranchNotFoundError is returned by AddBlock when a block names a
// branch_id that isn't known and carries no BranchMetadata to create one.
type BranchNotFoundError struct {
	BranchID string
}

func (e *BranchNotFoundError) Error() string {
	return "branch not found: " + e.BranchID
}

// BlockExistsError mirrors the reference implementation's error enum for
// API parity. The current AddBlock rules never produce it: the index
// check always rejects a duplicate index before this case could be
// reached, so it is kept as a documented dead branch rather than removed.
type BlockExistsError struct {
	Index uint64
}

func (e *BlockExistsError) Error() string {
	return fmt.Sprintf("block already exists at index %d", e.Index)
}
