package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

// SnapshotV1 holds the mutable part of a world: chunks that differ from
// worldgen output and agents. Everything else is regenerated from Seed.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed          int64  `json:"seed"`
	BoundaryR     int    `json:"boundary_r"`
	MinY          int    `json:"min_y"`
	MaxY          int    `json:"max_y"`
	PaletteDigest string `json:"palette_digest"`

	NextAgentNum int    `json:"next_agent_num"`
	BlocksBroken uint64 `json:"blocks_broken"`

	Chunks []ChunkV1 `json:"chunks"`
	Agents []AgentV1 `json:"agents"`
}

type ChunkV1 struct {
	Key [3]int `json:"key"`
	// RLE is encoding.EncodeRLE of the chunk's palette ids.
	RLE []byte `json:"rle"`
}

type AgentV1 struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Pos        [3]int         `json:"pos"`
	Inventory  map[string]int `json:"inventory"`
	MainHand   string         `json:"main_hand,omitempty"`
	Durability int            `json:"durability,omitempty"`
	// Stowed maps stowed tool items to their durability.
	Stowed  map[string]int `json:"stowed,omitempty"`
	Effects map[string]int `json:"effects,omitempty"`
}

// FileName is the name snapshots are written under in a snapshot dir.
func FileName(tick uint64) string { return strconv.FormatUint(tick, 10) + ".snap.zst" }

// WriteSnapshot writes a JSON header line followed by the gob-encoded body,
// zstd compressed. The file is written to a temp name and renamed into place.
func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := encode(f, snap); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func encode(f *os.File, snap SnapshotV1) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, err := json.Marshal(snap.Header)
	if err != nil {
		return err
	}
	if _, err := bw.Write(append(hb, '\n')); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return enc.Close()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return snap, fmt.Errorf("decode header: %w", err)
	}
	if h.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", h.Version)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// Latest returns the highest-tick snapshot in dir, or "" when there is none.
func Latest(dir string) (string, error) {
	ents, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			best, bestTick = filepath.Join(dir, name), tick
		}
	}
	return best, nil
}
