package torrent

import (
	"bytes"
	"crypto/sha1"
)

// --------------------------------------------------------------------------------------------- //

/*
Block is a sub-chunk of a piece, the unit of request/response on the wire.
Length is BlockSize except possibly the last block of the last piece, which
may be shorter.
*/
type Block struct {
	PieceIndex int
	Begin      int
	Length     int
	Complete   bool
	Data       []byte
}

// --------------------------------------------------------------------------------------------- //

/*
Piece is a fixed-size chunk of the torrent content (except the last) and the
unit of hash verification. Its block layout never changes once created; its
byte buffer is assembled in place as blocks arrive.
*/
type Piece struct {
	Index        int
	ExpectedHash [20]byte
	Length       int64
	Blocks       []*Block
}

// --------------------------------------------------------------------------------------------- //

/*
NewPieces splits a torrent's content into Piece and Block records up-front
from its metainfo, per §3: every piece except possibly the last is
PieceLength bytes, and every block except possibly the last block of the
last piece is BlockSize bytes.
*/
func NewPieces(meta *MetaInfo) []*Piece {
	pieces := make([]*Piece, meta.PieceCount())

	for i := range pieces {
		length := meta.PieceLengthAt(i)
		pieces[i] = &Piece{
			Index:        i,
			ExpectedHash: meta.PieceHash(i),
			Length:       length,
			Blocks:       blocksForPiece(i, length),
		}
	}

	return pieces
}

func blocksForPiece(index int, length int64) []*Block {
	blocks := make([]*Block, 0, (length+BlockSize-1)/BlockSize)

	for begin := int64(0); begin < length; begin += BlockSize {
		blockLen := int64(BlockSize)
		if remaining := length - begin; remaining < blockLen {
			blockLen = remaining
		}

		blocks = append(blocks, &Block{
			PieceIndex: index,
			Begin:      int(begin),
			Length:     int(blockLen),
		})
	}

	return blocks
}

// --------------------------------------------------------------------------------------------- //

// blockAt returns the block starting at byte offset begin, or nil if none matches.
func (p *Piece) blockAt(begin int) *Block {
	for _, b := range p.Blocks {
		if b.Begin == begin {
			return b
		}
	}

	return nil
}

// allBlocksComplete reports whether every block of the piece has been received.
func (p *Piece) allBlocksComplete() bool {
	for _, b := range p.Blocks {
		if !b.Complete {
			return false
		}
	}

	return true
}

// --------------------------------------------------------------------------------------------- //

// assemble concatenates the piece's block data in order, assuming all blocks are complete.
func (p *Piece) assemble() []byte {
	buf := make([]byte, 0, p.Length)
	for _, b := range p.Blocks {
		buf = append(buf, b.Data...)
	}

	return buf
}

/*
Verify hashes the concatenation of a piece's blocks and compares it against
the expected SHA-1. It returns the assembled bytes on success; callers use
the ok return to decide whether to hand the bytes to the writer or reset the
piece for re-download.
*/
func (p *Piece) Verify() (data []byte, ok bool) {
	data = p.assemble()
	sum := sha1.Sum(data)

	return data, bytes.Equal(sum[:], p.ExpectedHash[:])
}

// Reset clears every block's completion flag and data, so the scheduler
// will reissue requests for the piece after a failed verification.
func (p *Piece) Reset() {
	for _, b := range p.Blocks {
		b.Complete = false
		b.Data = nil
	}
}

// --------------------------------------------------------------------------------------------- //
