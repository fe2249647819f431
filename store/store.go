// Package store implements the wallet's durable, single-writer,
// per-wallet document: address frontier, script->index map, transactions,
// confirmation heights, unblinded output data, and chain tip. It is
// backed by a single bbolt database file per wallet_id; bbolt's own
// file-level advisory lock gives the single-writer exclusive-handle
// guarantee without any additional locking layer.
package store

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btclog"
	"github.com/vulpemventures/go-elements/transaction"
	bolt "go.etcd.io/bbolt"
)

// CurrentVersion is written to the meta bucket on first open and checked
// on every subsequent open.
const CurrentVersion byte = 1

var (
	bucketMeta      = []byte("meta")
	bucketPaths     = []byte("paths")
	bucketTxs       = []byte("txs")
	bucketHeights   = []byte("heights")
	bucketUnblinded = []byte("unblinded")

	keyVersion      = []byte("version")
	keyDescriptorFP = []byte("descriptor_fp")
	keyTipHeight    = []byte("tip_height")
	keyTipHash      = []byte("tip_hash")
	keyLastIndex    = []byte("last_index")
)

// log is the package-scoped logger; embedders call UseLogger to wire in
// their own btclog backend, as every btcsuite-style package in this
// codebase does.
var log btclog.Logger = btclog.Disabled

// UseLogger sets the package-wide logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// Store is a durable, single-writer, per-wallet document backed by bbolt.
type Store struct {
	db             *bolt.DB
	descriptorFP   [32]byte
	path           string
}

// lockTimeout bounds how long Open blocks waiting for bbolt's file lock
// before surfacing ErrStoreLocked; a second handle to the same wallet_id
// fails fast rather than hanging forever.
const lockTimeout = 2 * time.Second

// Open opens (initializing on first use) the store for the given
// wallet_id under dataRoot, verifying that an existing store's descriptor
// fingerprint matches descriptorFingerprint.
func Open(dataRoot, walletID string, descriptorFingerprint [32]byte) (*Store, error) {
	dir := filepath.Join(dataRoot, walletID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("store: creating wallet directory: %w", err)
	}
	dbPath := filepath.Join(dir, "wallet.db")

	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: lockTimeout})
	if err != nil {
		if err == bolt.ErrTimeout {
			return nil, ErrStoreLocked
		}
		return nil, fmt.Errorf("store: opening %s: %w", dbPath, err)
	}

	s := &Store{db: db, descriptorFP: descriptorFingerprint, path: dbPath}
	if err := s.initOrVerify(); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Infof("store: opened %s", dbPath)
	return s, nil
}

func (s *Store) initOrVerify() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketMeta, bucketPaths, bucketTxs, bucketHeights, bucketUnblinded} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("store: creating bucket %s: %w", name, err)
			}
		}
		meta := tx.Bucket(bucketMeta)

		if v := meta.Get(keyVersion); v == nil {
			if err := meta.Put(keyVersion, []byte{CurrentVersion}); err != nil {
				return err
			}
			if err := meta.Put(keyDescriptorFP, s.descriptorFP[:]); err != nil {
				return err
			}
			if err := meta.Put(keyLastIndex, encodeUint32(0)); err != nil {
				return err
			}
			return nil
		} else if len(v) != 1 || v[0] != CurrentVersion {
			return fmt.Errorf("%w: unknown store version %v", ErrStoreCorrupt, v)
		}

		fp := meta.Get(keyDescriptorFP)
		if !bytes.Equal(fp, s.descriptorFP[:]) {
			return fmt.Errorf("%w: descriptor fingerprint mismatch", ErrStoreCorrupt)
		}
		return nil
	})
}

// Close releases the underlying file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// Apply commits a Mutations value as one atomic bbolt transaction; either
// every field is applied or none are, and fsync happens on commit (bbolt's
// default durability mode).
func (s *Store) Apply(m Mutations) error {
	if m.IsEmpty() {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		paths := tx.Bucket(bucketPaths)
		txsBkt := tx.Bucket(bucketTxs)
		heights := tx.Bucket(bucketHeights)
		unblinded := tx.Bucket(bucketUnblinded)

		if m.Tip != nil {
			if err := meta.Put(keyTipHeight, encodeUint32(m.Tip.Height)); err != nil {
				return err
			}
			if err := meta.Put(keyTipHash, m.Tip.BlockHash[:]); err != nil {
				return err
			}
		}
		if m.LastIndex != nil {
			cur := decodeUint32(meta.Get(keyLastIndex))
			if *m.LastIndex < cur {
				return fmt.Errorf("store: refusing non-monotonic last_index update (%d < %d)", *m.LastIndex, cur)
			}
			if err := meta.Put(keyLastIndex, encodeUint32(*m.LastIndex)); err != nil {
				return err
			}
		}
		for scriptHex, idx := range m.NewPaths {
			if err := paths.Put([]byte(scriptHex), encodeUint32(idx)); err != nil {
				return err
			}
		}
		for txidHex, raw := range m.NewTxs {
			if err := txsBkt.Put([]byte(txidHex), raw); err != nil {
				return err
			}
		}
		for txidHex, h := range m.HeightUpdates {
			if err := heights.Put([]byte(txidHex), encodeHeight(h)); err != nil {
				return err
			}
		}
		for key, u := range m.UnblindedUpserts {
			if err := unblinded.Put([]byte(key), encodeUnblinded(u)); err != nil {
				return err
			}
		}
		for _, key := range m.UnblindedRemovals {
			if err := unblinded.Delete([]byte(key)); err != nil {
				return err
			}
		}
		for _, txidHex := range m.HeightRemovals {
			if err := heights.Delete([]byte(txidHex)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Tip returns the last-synced chain tip, or (Tip{}, false) if never set.
func (s *Store) Tip() (Tip, bool) {
	var t Tip
	found := false
	_ = s.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		hb := meta.Get(keyTipHeight)
		if hb == nil {
			return nil
		}
		found = true
		t.Height = decodeUint32(hb)
		copy(t.BlockHash[:], meta.Get(keyTipHash))
		return nil
	})
	return t, found
}

// LastIndex returns the highest derived external address index.
func (s *Store) LastIndex() uint32 {
	var idx uint32
	_ = s.db.View(func(tx *bolt.Tx) error {
		idx = decodeUint32(tx.Bucket(bucketMeta).Get(keyLastIndex))
		return nil
	})
	return idx
}

// PathFor reverse-looks-up the child index for a given script pubkey.
func (s *Store) PathFor(scriptHex string) (uint32, bool) {
	var idx uint32
	found := false
	_ = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketPaths).Get([]byte(scriptHex))
		if v == nil {
			return nil
		}
		found = true
		idx = decodeUint32(v)
		return nil
	})
	return idx, found
}

// GetTx returns the raw transaction bytes for a txid (hex), if present.
func (s *Store) GetTx(txidHex string) ([]byte, bool) {
	var raw []byte
	_ = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketTxs).Get([]byte(txidHex))
		if v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	return raw, raw != nil
}

// HeightOf returns the stored height for a txid; the returned bool is
// false only if the txid is not part of the wallet's history at all (nil
// *uint32 with true means "known, unconfirmed").
func (s *Store) HeightOf(txidHex string) (*uint32, bool) {
	var h *uint32
	found := false
	_ = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketHeights).Get([]byte(txidHex))
		if v == nil {
			return nil
		}
		found = true
		h = decodeHeight(v)
		return nil
	})
	return h, found
}

// UnblindedFor returns the opened commitment for an outpoint.
func (s *Store) UnblindedFor(op OutPoint) (Unblinded, bool) {
	var u Unblinded
	found := false
	_ = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketUnblinded).Get([]byte(op.Key()))
		if v == nil {
			return nil
		}
		found = true
		u = decodeUnblinded(v)
		return nil
	})
	return u, found
}

// IterUnblinded calls fn for every stored unblinded outpoint; fn returning
// false stops iteration early.
func (s *Store) IterUnblinded(fn func(op OutPoint, u Unblinded) bool) {
	_ = s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketUnblinded).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			op, err := ParseOutPointKey(string(k))
			if err != nil {
				log.Warnf("store: skipping malformed outpoint key %q: %v", k, err)
				continue
			}
			if !fn(op, decodeUnblinded(v)) {
				break
			}
		}
		return nil
	})
}

// IterHeights calls fn for every (txid, height) pair in the wallet's
// history; fn returning false stops iteration early.
func (s *Store) IterHeights(fn func(txidHex string, height *uint32) bool) {
	_ = s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketHeights).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if !fn(string(k), decodeHeight(v)) {
				break
			}
		}
		return nil
	})
}

// SpentOutpoints returns every outpoint referenced by input.previous_output
// across all stored transactions; this is the basis for UTXO computation.
func (s *Store) SpentOutpoints() (map[string]struct{}, error) {
	spent := map[string]struct{}{}
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketTxs).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			t, err := transaction.NewTxFromHex(hex.EncodeToString(v))
			if err != nil {
				return fmt.Errorf("%w: tx %s: %v", ErrStoreCorrupt, k, err)
			}
			for _, in := range t.Inputs {
				var txid [32]byte
				copy(txid[:], in.Hash)
				op := OutPoint{Txid: txid, Vout: in.Index}
				spent[op.Key()] = struct{}{}
			}
		}
		return nil
	})
	return spent, err
}

func encodeUnblinded(u Unblinded) []byte {
	buf := make([]byte, 0, 32+8+32+32)
	buf = append(buf, u.Asset[:]...)
	valBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(valBuf, u.Value)
	buf = append(buf, valBuf...)
	buf = append(buf, u.ABF[:]...)
	buf = append(buf, u.VBF[:]...)
	return buf
}

func decodeUnblinded(b []byte) Unblinded {
	var u Unblinded
	if len(b) < 104 {
		return u
	}
	copy(u.Asset[:], b[0:32])
	u.Value = binary.BigEndian.Uint64(b[32:40])
	copy(u.ABF[:], b[40:72])
	copy(u.VBF[:], b[72:104])
	return u
}

// Fingerprint computes the SHA-256 fingerprint a caller should pass to
// Open: H(descriptor_string || network_config_fingerprint).
func Fingerprint(descriptorString, networkFingerprint string) [32]byte {
	return sha256.Sum256([]byte(descriptorString + networkFingerprint))
}

// WalletID derives the on-disk directory name for a descriptor and
// network fingerprint: hex(SHA-256(descriptor_string || network_fp)).
func WalletID(descriptorString, networkFingerprint string) string {
	fp := Fingerprint(descriptorString, networkFingerprint)
	return hex.EncodeToString(fp[:])
}
