// Package container persists named table collections in a columnar
// SQLite container. The container natively stores only fixed-width
// numeric arrays: numeric columns are written as little-endian float64
// blobs, text columns are remapped through an explicit value-to-integer
// dictionary (first-seen order) whose JSON serialization is stored as a
// "<column>_mapping" attribute beside the integer-coded data. Loading
// inverts the mapping so string columns round-trip exactly.
//
// Layout of a container file:
//
//	container_meta(key, value)           format version, writer id
//	datasets(grp, name, ord, dtype, rows, codec, checksum, data)
//	attrs(grp, name, value)              per-column side metadata
//
// One writer per destination; readers must only open a fully written
// container. Save therefore writes to a temp file and renames into place.
package container

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spaolacci/murmur3"

	"github.com/oculab/edfparse/internal/errors"
	"github.com/oculab/edfparse/internal/table"
)

// FormatVersion identifies the container layout.
const FormatVersion = "1"

const (
	dtypeFloat64 = "float64"
	dtypeInt64   = "int64"
	dtypeUTF8    = "utf8"

	codecSnappy = "snappy"
	codecRaw    = "raw"

	mappingSuffix = "_mapping"
)

// Options control how Save encodes columns.
type Options struct {
	// Raw selects the generic uncompressed-per-column format: no snappy,
	// and text columns stored directly as JSON string arrays instead of
	// being remapped. The default (false) is the space-efficient remapped
	// format.
	Raw bool
}

// Save writes the table collection to path. The write is all-or-nothing:
// the container appears under its final name only after every column has
// been written and the file is closed.
func Save(path string, tables map[string]*table.Table, opts Options) error {
	tmp := path + ".tmp"
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return errors.NewContainerError(errors.CodeUnexpected, "clearing temp container", err)
	}

	db, err := sql.Open("sqlite3", tmp)
	if err != nil {
		return errors.NewContainerError(errors.CodeUnexpected, "creating container", err)
	}

	if err := save(db, tables, opts); err != nil {
		db.Close()
		os.Remove(tmp)
		return err
	}
	if err := db.Close(); err != nil {
		os.Remove(tmp)
		return errors.NewContainerError(errors.CodeUnexpected, "finalizing container", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.NewContainerError(errors.CodeUnexpected, "publishing container", err)
	}
	return nil
}

func save(db *sql.DB, tables map[string]*table.Table, opts Options) error {
	schema := []string{
		`CREATE TABLE container_meta (key TEXT PRIMARY KEY, value TEXT) WITHOUT ROWID`,
		`CREATE TABLE datasets (
			grp TEXT NOT NULL,
			name TEXT NOT NULL,
			ord INTEGER NOT NULL,
			dtype TEXT NOT NULL,
			rows INTEGER NOT NULL,
			codec TEXT NOT NULL,
			checksum TEXT NOT NULL,
			data BLOB NOT NULL,
			PRIMARY KEY (grp, name)
		) WITHOUT ROWID`,
		`CREATE TABLE attrs (grp TEXT NOT NULL, name TEXT NOT NULL, value TEXT NOT NULL,
			PRIMARY KEY (grp, name)) WITHOUT ROWID`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return errors.NewContainerError(errors.CodeUnexpected, "creating container schema", err)
		}
	}

	meta := map[string]string{
		"format_version": FormatVersion,
		"writer_id":      uuid.New().String(),
		"created_at":     time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range meta {
		if _, err := db.Exec(`INSERT INTO container_meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return errors.NewContainerError(errors.CodeUnexpected, "writing container metadata", err)
		}
	}

	insertDataset, err := db.Prepare(
		`INSERT INTO datasets (grp, name, ord, dtype, rows, codec, checksum, data) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.NewContainerError(errors.CodeUnexpected, "preparing dataset insert", err)
	}
	defer insertDataset.Close()
	insertAttr, err := db.Prepare(`INSERT INTO attrs (grp, name, value) VALUES (?, ?, ?)`)
	if err != nil {
		return errors.NewContainerError(errors.CodeUnexpected, "preparing attr insert", err)
	}
	defer insertAttr.Close()

	groups := make([]string, 0, len(tables))
	for name := range tables {
		groups = append(groups, name)
	}
	sort.Strings(groups)

	for _, grp := range groups {
		tbl := tables[grp]
		for ord, name := range tbl.Names() {
			col, _ := tbl.Column(name)
			if err := saveColumn(insertDataset, insertAttr, grp, name, ord, col, opts); err != nil {
				return err
			}
		}
	}
	return nil
}

func saveColumn(insertDataset, insertAttr *sql.Stmt, grp, name string, ord int, col *table.Column, opts Options) error {
	var (
		dtype string
		raw   []byte
	)

	switch col.Kind {
	case table.KindNumeric:
		dtype = dtypeFloat64
		raw = encodeFloat64s(col.Nums)

	case table.KindText:
		if opts.Raw {
			dtype = dtypeUTF8
			encoded, err := json.Marshal(col.Text)
			if err != nil {
				return errors.NewContainerError(errors.CodeUnsupportedColumnType,
					fmt.Sprintf("column %s/%s is not representable as text", grp, name), err)
			}
			raw = encoded
			break
		}

		// Remap distinct values to integers in first-seen order and keep
		// the dictionary as a column attribute.
		dtype = dtypeInt64
		mapping := make(map[string]int64)
		codes := make([]int64, len(col.Text))
		for i, v := range col.Text {
			code, seen := mapping[v]
			if !seen {
				code = int64(len(mapping))
				mapping[v] = code
			}
			codes[i] = code
		}
		raw = encodeInt64s(codes)

		dict, err := json.Marshal(mapping)
		if err != nil {
			return errors.NewContainerError(errors.CodeUnexpected,
				fmt.Sprintf("serializing mapping for %s/%s", grp, name), err)
		}
		if _, err := insertAttr.Exec(grp, name+mappingSuffix, string(dict)); err != nil {
			return errors.NewContainerError(errors.CodeUnexpected,
				fmt.Sprintf("writing mapping for %s/%s", grp, name), err)
		}

	default:
		return errors.NewContainerError(errors.CodeUnsupportedColumnType,
			fmt.Sprintf("column %s/%s has unsupported kind %d", grp, name, col.Kind), nil)
	}

	codec := codecSnappy
	data := snappy.Encode(nil, raw)
	if opts.Raw {
		codec = codecRaw
		data = raw
	}
	checksum := fmt.Sprintf("%016x", murmur3.Sum64(raw))

	if _, err := insertDataset.Exec(grp, name, ord, dtype, col.Len(), codec, checksum, data); err != nil {
		return errors.NewContainerError(errors.CodeUnexpected,
			fmt.Sprintf("writing dataset %s/%s", grp, name), err)
	}
	return nil
}

// Load reads a container written by Save and reconstructs the table
// collection, inverting any stored string mappings.
func Load(path string) (map[string]*table.Table, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, errors.NewFileNotFoundError(path)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.NewContainerError(errors.CodeUnexpected, "opening container", err)
	}
	defer db.Close()

	var version string
	err = db.QueryRow(`SELECT value FROM container_meta WHERE key = 'format_version'`).Scan(&version)
	if err != nil {
		return nil, errors.NewContainerError(errors.CodeCorruptDataset, "reading container version", err)
	}
	if version != FormatVersion {
		return nil, errors.NewContainerError(errors.CodeCorruptDataset,
			fmt.Sprintf("unsupported container version %q", version), nil)
	}

	attrs, err := loadAttrs(db)
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(`SELECT grp, name, dtype, rows, codec, checksum, data FROM datasets ORDER BY grp, ord`)
	if err != nil {
		return nil, errors.NewContainerError(errors.CodeCorruptDataset, "reading datasets", err)
	}
	defer rows.Close()

	tables := make(map[string]*table.Table)
	for rows.Next() {
		var (
			grp, name, dtype, codec, checksum string
			rowCount                          int
			data                              []byte
		)
		if err := rows.Scan(&grp, &name, &dtype, &rowCount, &codec, &checksum, &data); err != nil {
			return nil, errors.NewContainerError(errors.CodeCorruptDataset, "scanning dataset row", err)
		}

		raw, err := decodeBlob(grp, name, codec, checksum, data)
		if err != nil {
			return nil, err
		}

		tbl := tables[grp]
		if tbl == nil {
			tbl = table.New()
			tables[grp] = tbl
		}
		if err := loadColumn(tbl, attrs, grp, name, dtype, rowCount, raw); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewContainerError(errors.CodeCorruptDataset, "iterating datasets", err)
	}
	return tables, nil
}

func loadAttrs(db *sql.DB) (map[string]map[string]string, error) {
	rows, err := db.Query(`SELECT grp, name, value FROM attrs`)
	if err != nil {
		return nil, errors.NewContainerError(errors.CodeCorruptDataset, "reading attrs", err)
	}
	defer rows.Close()

	attrs := make(map[string]map[string]string)
	for rows.Next() {
		var grp, name, value string
		if err := rows.Scan(&grp, &name, &value); err != nil {
			return nil, errors.NewContainerError(errors.CodeCorruptDataset, "scanning attr row", err)
		}
		if attrs[grp] == nil {
			attrs[grp] = make(map[string]string)
		}
		attrs[grp][name] = value
	}
	return attrs, rows.Err()
}

func decodeBlob(grp, name, codec, checksum string, data []byte) ([]byte, error) {
	var raw []byte
	switch codec {
	case codecSnappy:
		decoded, err := snappy.Decode(nil, data)
		if err != nil {
			return nil, errors.NewContainerError(errors.CodeCorruptDataset,
				fmt.Sprintf("decompressing %s/%s", grp, name), err)
		}
		raw = decoded
	case codecRaw:
		raw = data
	default:
		return nil, errors.NewContainerError(errors.CodeUnsupportedColumnType,
			fmt.Sprintf("dataset %s/%s uses unknown codec %q", grp, name, codec), nil)
	}

	if got := fmt.Sprintf("%016x", murmur3.Sum64(raw)); got != checksum {
		return nil, errors.NewContainerError(errors.CodeCorruptDataset,
			fmt.Sprintf("checksum mismatch for %s/%s", grp, name), nil)
	}
	return raw, nil
}

func loadColumn(tbl *table.Table, attrs map[string]map[string]string, grp, name, dtype string, rowCount int, raw []byte) error {
	switch dtype {
	case dtypeFloat64:
		nums, err := decodeFloat64s(raw, rowCount)
		if err != nil {
			return errors.NewContainerError(errors.CodeCorruptDataset,
				fmt.Sprintf("decoding %s/%s", grp, name), err)
		}
		if err := tbl.AddNumeric(name, nums); err != nil {
			return errors.NewContainerError(errors.CodeCorruptDataset,
				fmt.Sprintf("adding %s/%s", grp, name), err)
		}

	case dtypeInt64:
		codes, err := decodeInt64s(raw, rowCount)
		if err != nil {
			return errors.NewContainerError(errors.CodeCorruptDataset,
				fmt.Sprintf("decoding %s/%s", grp, name), err)
		}
		dict, ok := attrs[grp][name+mappingSuffix]
		if !ok {
			return errors.NewContainerError(errors.CodeCorruptMapping,
				fmt.Sprintf("dataset %s/%s has no mapping attribute", grp, name), nil)
		}
		var mapping map[string]int64
		if err := json.Unmarshal([]byte(dict), &mapping); err != nil {
			return errors.NewContainerError(errors.CodeCorruptMapping,
				fmt.Sprintf("parsing mapping for %s/%s", grp, name), err)
		}
		inverse := make(map[int64]string, len(mapping))
		for value, code := range mapping {
			inverse[code] = value
		}
		text := make([]string, len(codes))
		for i, code := range codes {
			value, found := inverse[code]
			if !found {
				return errors.NewContainerError(errors.CodeCorruptMapping,
					fmt.Sprintf("code %d in %s/%s has no mapping entry", code, grp, name), nil)
			}
			text[i] = value
		}
		if err := tbl.AddText(name, text); err != nil {
			return errors.NewContainerError(errors.CodeCorruptDataset,
				fmt.Sprintf("adding %s/%s", grp, name), err)
		}

	case dtypeUTF8:
		var text []string
		if err := json.Unmarshal(raw, &text); err != nil {
			return errors.NewContainerError(errors.CodeCorruptDataset,
				fmt.Sprintf("decoding %s/%s", grp, name), err)
		}
		if text == nil {
			text = []string{}
		}
		if len(text) != rowCount {
			return errors.NewContainerError(errors.CodeCorruptDataset,
				fmt.Sprintf("dataset %s/%s has %d values, expected %d", grp, name, len(text), rowCount), nil)
		}
		if err := tbl.AddText(name, text); err != nil {
			return errors.NewContainerError(errors.CodeCorruptDataset,
				fmt.Sprintf("adding %s/%s", grp, name), err)
		}

	default:
		return errors.NewContainerError(errors.CodeUnsupportedColumnType,
			fmt.Sprintf("dataset %s/%s has unknown dtype %q", grp, name, dtype), nil)
	}
	return nil
}

func encodeFloat64s(vals []float64) []byte {
	buf := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return buf
}

func decodeFloat64s(raw []byte, rowCount int) ([]float64, error) {
	if len(raw) != 8*rowCount {
		return nil, fmt.Errorf("blob is %d bytes, expected %d", len(raw), 8*rowCount)
	}
	vals := make([]float64, rowCount)
	for i := range vals {
		vals[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[8*i:]))
	}
	return vals, nil
}

func encodeInt64s(vals []int64) []byte {
	buf := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(buf[8*i:], uint64(v))
	}
	return buf
}

func decodeInt64s(raw []byte, rowCount int) ([]int64, error) {
	if len(raw) != 8*rowCount {
		return nil, fmt.Errorf("blob is %d bytes, expected %d", len(raw), 8*rowCount)
	}
	vals := make([]int64, rowCount)
	for i := range vals {
		vals[i] = int64(binary.LittleEndian.Uint64(raw[8*i:]))
	}
	return vals, nil
}
