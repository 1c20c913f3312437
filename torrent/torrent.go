package torrent

import "fmt"

// TorrentFile represents a root dictionary of .torrent file
type TorrentFile struct {
	Announce     string                 `bencode:"announce"`
	AnnounceList [][]string             `bencode:"announce-list"`
	Comment      string                 `bencode:"comment"`
	CreatedBy    string                 `bencode:"created by"`
	CreationDate int64                  `bencode:"creation date"`
	Encoding     string                 `bencode:"encoding"`
	Info         TorrentInfo            `bencode:"info"`
	Nodes        [][]interface{}        `bencode:"nodes"`
	URLList      []string               `bencode:"url-list"`
	HTTPSeeds    []string               `bencode:"httpseeds"`
	Publisher    string                 `bencode:"publisher"`
	PublisherURL string                 `bencode:"publisher-url"`
	Source       string                 `bencode:"source"`
	Signature    string                 `bencode:"signature"`
	Custom       map[string]interface{} `bencode:"-"`
}

// TorrentInfo represents an `info` dictionary in .torrent file
type TorrentInfo struct {
	PieceLength int64                  `bencode:"piece length"`
	Pieces      string                 `bencode:"pieces"`
	Name        string                 `bencode:"name"`
	Length      int64                  `bencode:"length"`
	Files       []TorrentFileEntry     `bencode:"files"`
	MD5Sum      string                 `bencode:"md5sum"`
	Private     int                    `bencode:"private"`
	Source      string                 `bencode:"source"`
	MetaVersion int                    `bencode:"meta version"`
	FileTree    map[string]interface{} `bencode:"file tree"`
	PieceLayers map[string]string      `bencode:"piece layers"`
	PiecesRoot  string                 `bencode:"pieces root"`
	Custom      map[string]interface{} `bencode:"-"`

	// InfoHash is not part of the bencoded dictionary; it is computed by
	// Parse from the raw bytes of the "info" dictionary and cached here.
	InfoHash [20]byte `bencode:"-"`
}

// TorrentFileEntry represents information about a file in a multi-file torrent
type TorrentFileEntry struct {
	Length     int64                  `bencode:"length"`
	Path       []string               `bencode:"path"`
	MD5Sum     string                 `bencode:"md5sum"`
	PiecesRoot string                 `bencode:"pieces root"`
	Custom     map[string]interface{} `bencode:"-"`
}

// --------------------------------------------------------------------------------------------- //

// FileEntry describes one on-disk file and the byte range of the overall
// torrent content it occupies.
type FileEntry struct {
	Path   string
	Length int64
	Offset int64
}

// MetaInfo is the interface the core (wire codec, scheduler, sessions)
// consumes from the metainfo parser, per the external interfaces this
// package's bencode-decoding types are kept out of the core's way.
type MetaInfo struct {
	AnnounceURL  string
	AnnounceList [][]string
	InfoHash     [20]byte
	Name         string
	TotalLength  int64
	PieceLength  int64
	PieceHashes  [][20]byte
	Files        []FileEntry
}

// PieceCount returns the number of pieces described by the metainfo.
func (m *MetaInfo) PieceCount() int {
	return len(m.PieceHashes)
}

// PieceHash returns the expected SHA-1 hash of piece i.
func (m *MetaInfo) PieceHash(i int) [20]byte {
	return m.PieceHashes[i]
}

// PieceLengthAt returns the length in bytes of piece i, accounting for the
// final, possibly-shorter piece.
func (m *MetaInfo) PieceLengthAt(i int) int64 {
	if i != m.PieceCount()-1 {
		return m.PieceLength
	}

	length := m.TotalLength % m.PieceLength
	if length == 0 {
		length = m.PieceLength
	}

	return length
}

// --------------------------------------------------------------------------------------------- //

/*
ToMetaInfo converts a parsed TorrentFile into the flat MetaInfo shape the
core package operates on, splitting the raw "pieces" string into one hash
per piece and the single-file/multi-file info dictionary into FileEntry
ranges relative to the start of the torrent's content.
*/
func (t *TorrentFile) ToMetaInfo() (*MetaInfo, error) {
	pieces := t.Info.Pieces
	if len(pieces)%20 != 0 {
		return nil, fmt.Errorf("torrent: invalid pieces length %d, not a multiple of 20", len(pieces))
	}

	numPieces := len(pieces) / 20
	hashes := make([][20]byte, numPieces)
	for i := 0; i < numPieces; i++ {
		copy(hashes[i][:], pieces[i*20:(i+1)*20])
	}

	total, files := filesFromInfo(&t.Info)

	return &MetaInfo{
		AnnounceURL:  t.Announce,
		AnnounceList: t.AnnounceList,
		InfoHash:     t.Info.InfoHash,
		Name:         t.Info.Name,
		TotalLength:  total,
		PieceLength:  t.Info.PieceLength,
		PieceHashes:  hashes,
		Files:        files,
	}, nil
}

// filesFromInfo lays out FileEntry ranges for single-file and multi-file
// torrents alike; a single-file torrent is modeled as one entry spanning
// the whole content, rooted at Info.Name.
func filesFromInfo(info *TorrentInfo) (int64, []FileEntry) {
	if len(info.Files) == 0 {
		return info.Length, []FileEntry{{
			Path:   info.Name,
			Length: info.Length,
			Offset: 0,
		}}
	}

	var offset int64
	entries := make([]FileEntry, 0, len(info.Files))

	for _, f := range info.Files {
		parts := append([]string{info.Name}, f.Path...)
		entries = append(entries, FileEntry{
			Path:   joinPath(parts),
			Length: f.Length,
			Offset: offset,
		})
		offset += f.Length
	}

	return offset, entries
}
