package persist

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/hyperjump/chunkstore/internal/models"
)

// entries.bin layout, little-endian:
//
//	magic[4] "CSE1" | version u16 | dimensions u32 | count u64
//	per entry: id str | sequence u32 | text str | pairs u32 | (key str, value str)* | vector f32*dimensions
//
// str is a u32 byte length followed by UTF-8 bytes.
var entriesMagic = [4]byte{'C', 'S', 'E', '1'}

const codecVersion uint16 = 1

func encodeEntries(w io.Writer, dimensions int, entries []*models.Entry) error {
	bw := bufio.NewWriter(w)
	le := binary.LittleEndian
	var scratch [8]byte

	putU16 := func(v uint16) { le.PutUint16(scratch[:2], v); _, _ = bw.Write(scratch[:2]) }
	putU32 := func(v uint32) { le.PutUint32(scratch[:4], v); _, _ = bw.Write(scratch[:4]) }
	putU64 := func(v uint64) { le.PutUint64(scratch[:8], v); _, _ = bw.Write(scratch[:8]) }
	putStr := func(s string) { putU32(uint32(len(s))); _, _ = bw.WriteString(s) }

	_, _ = bw.Write(entriesMagic[:])
	putU16(codecVersion)
	putU32(uint32(dimensions))
	putU64(uint64(len(entries)))

	for _, e := range entries {
		if len(e.Vector) != dimensions {
			return fmt.Errorf("%w: entry %s has %d dimensions, want %d", models.ErrDimensionMismatch, e.ID, len(e.Vector), dimensions)
		}
		putStr(e.ID)
		putU32(uint32(e.SequenceIndex))
		putStr(e.Text)
		keys := make([]string, 0, len(e.Metadata))
		for k := range e.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		putU32(uint32(len(keys)))
		for _, k := range keys {
			putStr(k)
			putStr(e.Metadata[k])
		}
		for _, v := range e.Vector {
			putU32(math.Float32bits(v))
		}
	}
	return bw.Flush()
}

type decoder struct {
	r   *bytes.Reader
	buf [8]byte
}

func (d *decoder) read(n int) ([]byte, error) {
	if _, err := io.ReadFull(d.r, d.buf[:n]); err != nil {
		return nil, err
	}
	return d.buf[:n], nil
}

func (d *decoder) u16() (uint16, error) {
	b, err := d.read(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (d *decoder) u32() (uint32, error) {
	b, err := d.read(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *decoder) u64() (uint64, error) {
	b, err := d.read(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (d *decoder) str() (string, error) {
	n, err := d.u32()
	if err != nil {
		return "", err
	}
	if int64(n) > int64(d.r.Len()) {
		return "", io.ErrUnexpectedEOF
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(d.r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeEntries parses an entries.bin payload. Any structural problem is reported as ErrCorruptIndex.
func decodeEntries(data []byte, dimensions int) ([]*models.Entry, error) {
	entries, err := decodeEntriesRaw(data, dimensions)
	if err != nil {
		return nil, fmt.Errorf("%w: entries: %v", models.ErrCorruptIndex, err)
	}
	return entries, nil
}

func decodeEntriesRaw(data []byte, dimensions int) ([]*models.Entry, error) {
	d := &decoder{r: bytes.NewReader(data)}

	var magic [4]byte
	if _, err := io.ReadFull(d.r, magic[:]); err != nil {
		return nil, err
	}
	if magic != entriesMagic {
		return nil, fmt.Errorf("bad magic %q", magic[:])
	}
	version, err := d.u16()
	if err != nil {
		return nil, err
	}
	if version != codecVersion {
		return nil, fmt.Errorf("unsupported version %d", version)
	}
	dims, err := d.u32()
	if err != nil {
		return nil, err
	}
	if int(dims) != dimensions {
		return nil, fmt.Errorf("payload has %d dimensions, manifest has %d", dims, dimensions)
	}
	count, err := d.u64()
	if err != nil {
		return nil, err
	}
	// every entry needs at least its fixed-size fields
	minEntry := uint64(4+4+4+4) + uint64(dimensions)*4
	if count > uint64(d.r.Len())/minEntry {
		return nil, fmt.Errorf("count %d exceeds payload size", count)
	}

	entries := make([]*models.Entry, 0, count)
	for i := uint64(0); i < count; i++ {
		e := &models.Entry{}
		if e.ID, err = d.str(); err != nil {
			return nil, fmt.Errorf("entry %d id: %w", i, err)
		}
		seq, err := d.u32()
		if err != nil {
			return nil, fmt.Errorf("entry %d sequence: %w", i, err)
		}
		e.SequenceIndex = int(seq)
		if e.Text, err = d.str(); err != nil {
			return nil, fmt.Errorf("entry %d text: %w", i, err)
		}
		pairs, err := d.u32()
		if err != nil {
			return nil, fmt.Errorf("entry %d metadata: %w", i, err)
		}
		if int64(pairs)*8 > int64(d.r.Len()) {
			return nil, fmt.Errorf("entry %d metadata: %w", i, io.ErrUnexpectedEOF)
		}
		if pairs > 0 {
			e.Metadata = make(map[string]string, pairs)
		}
		for p := uint32(0); p < pairs; p++ {
			k, err := d.str()
			if err != nil {
				return nil, fmt.Errorf("entry %d metadata key: %w", i, err)
			}
			v, err := d.str()
			if err != nil {
				return nil, fmt.Errorf("entry %d metadata value: %w", i, err)
			}
			e.Metadata[k] = v
		}
		e.Vector = make([]float32, dimensions)
		for j := range e.Vector {
			bits, err := d.u32()
			if err != nil {
				return nil, fmt.Errorf("entry %d vector: %w", i, err)
			}
			e.Vector[j] = math.Float32frombits(bits)
		}
		entries = append(entries, e)
	}
	if d.r.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes", d.r.Len())
	}
	return entries, nil
}
