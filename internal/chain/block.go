package chain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// genesisTimestamp is fixed so every node derives the identical genesis hash.
var genesisTimestamp = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

// BranchMetadata marks a block as the origin of a new branch.
type BranchMetadata struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	ParentBlockIndex uint64 `json:"parent_block_index"`
}

// BlockData is the authored payload carried by a block.
type BlockData struct {
	Content        string          `json:"content"`
	Author         string          `json:"author"`
	BranchID       string          `json:"branch_id"`
	BranchMetadata *BranchMetadata `json:"branch_metadata"`
}

// Block is one entry in the chain: linkage, proof-of-work witness, and
// authored content. It is immutable once Mine has found a valid nonce.
type Block struct {
	Index        uint64    `json:"index"`
	Timestamp    time.Time `json:"timestamp"`
	PreviousHash Hash      `json:"previous_hash"`
	Hash         Hash      `json:"hash"`
	Data         BlockData `json:"data"`
	Nonce        uint64    `json:"nonce"`
	Difficulty   uint64    `json:"difficulty"`
}

// hashInput is the canonical, key-ordered encoding hashed to produce a
// block's self-hash. Field order is fixed (index, timestamp, previous_hash,
// data, nonce, difficulty) so hashes stay identical across nodes; Go's
// encoding/json does not reorder struct fields, so this mirrors the struct
// declaration order deliberately.
type hashInput struct {
	Index        uint64    `json:"index"`
	Timestamp    string    `json:"timestamp"`
	PreviousHash Hash      `json:"previous_hash"`
	Data         BlockData `json:"data"`
	Nonce        uint64    `json:"nonce"`
	Difficulty   uint64    `json:"difficulty"`
}

// NewBlock constructs a candidate block at index, chained onto previousHash,
// carrying data, targeting difficulty. The result satisfies proof-of-work
// only when difficulty is 0; otherwise it still needs Mine (or the
// cooperative miner in package mining).
func NewBlock(index uint64, previousHash Hash, data BlockData, difficulty uint64) *Block {
	b := &Block{
		Index:        index,
		Timestamp:    time.Now().UTC(),
		PreviousHash: previousHash,
		Data:         data,
		Nonce:        0,
		Difficulty:   difficulty,
	}
	b.Hash = b.CalculateHash()
	return b
}

// Genesis returns the canonical, deterministic genesis block.
func Genesis() *Block {
	b := &Block{
		Index:        0,
		Timestamp:    genesisTimestamp,
		PreviousHash: ZeroHash,
		Data: BlockData{
			Content:  "Once upon a time in the land of BlockBard, a new story began...",
			Author:   "Genesis",
			BranchID: "main",
		},
		Nonce:      0,
		Difficulty: 1,
	}
	b.Hash = b.CalculateHash()
	return b
}

// CalculateHash returns the hash of b's fields, excluding the Hash field
// itself. It does not mutate b.
func (b *Block) CalculateHash() Hash {
	payload := hashInput{
		Index:        b.Index,
		Timestamp:    b.Timestamp.Format(time.RFC3339),
		PreviousHash: b.PreviousHash,
		Data:         b.Data,
		Nonce:        b.Nonce,
		Difficulty:   b.Difficulty,
	}
	// encoding/json always emits struct fields in declaration order, so this
	// is stable across nodes as long as hashInput's field order never changes.
	encoded, _ := json.Marshal(payload)
	return CalculateHash(string(encoded))
}

// Mine blocks the calling goroutine, incrementing Nonce until Hash begins
// with Difficulty hex '0' characters. Callers that must remain responsive
// to cancellation or a deadline should use the cooperative miner in
// package mining instead.
func (b *Block) Mine() {
	target := strings.Repeat("0", int(b.Difficulty))
	for !strings.HasPrefix(b.Hash, target) {
		b.Nonce++
		b.Hash = b.CalculateHash()
	}
}

// IsValid reports whether b's hash matches its content and, for all but
// genesis, satisfies the leading-zero proof-of-work target.
func (b *Block) IsValid() bool {
	if b.Index == 0 {
		return b.Hash == b.CalculateHash()
	}
	target := strings.Repeat("0", int(b.Difficulty))
	return b.Hash == b.CalculateHash() && strings.HasPrefix(b.Hash, target)
}

func (b *Block) String() string {
	return fmt.Sprintf("Block #%d [%s]\nContent: %s\nAuthor: %s\nBranch: %s\nHash: %s\nPrev: %s",
		b.Index, b.Timestamp.Format(time.RFC3339), b.Data.Content, b.Data.Author,
		b.Data.BranchID, b.Hash, b.PreviousHash)
}
