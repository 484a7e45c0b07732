package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/chunkcpd/blobstore"
	"github.com/hupe1980/chunkcpd/codec"
	"github.com/hupe1980/chunkcpd/evaluate"
	"github.com/hupe1980/chunkcpd/resource"
)

var (
	// ErrNotFound is returned for an unknown run id.
	ErrNotFound = errors.New("archive: run not found")

	// ErrInvalidID is returned for ids that are not UUIDs.
	ErrInvalidID = errors.New("archive: invalid run id")

	// ErrCorrupt is returned when a stored run cannot be decoded.
	ErrCorrupt = errors.New("archive: corrupt run")

	// ErrUnknownCompression is returned for an unsupported compression name.
	ErrUnknownCompression = errors.New("archive: unknown compression")
)

const (
	// DefaultPrefix is the blob name prefix of archived runs.
	DefaultPrefix = "runs"

	// DefaultBlockSize is the uncompressed size of one block.
	DefaultBlockSize = 256 * 1024

	fileExt = ".cpd"
	magic   = "CPDA"
	version = 1
)

// Record is one archived segmentation run.
type Record struct {
	ID           string            `json:"id"`
	CreatedAt    time.Time         `json:"created_at"`
	Source       string            `json:"source,omitempty"`
	Detector     string            `json:"detector"`
	Samples      int               `json:"samples"`
	Chunks       int               `json:"chunks"`
	Duration     time.Duration     `json:"duration"`
	ChangePoints []int             `json:"change_points"`
	Labels       []int             `json:"labels,omitempty"`
	Metrics      *evaluate.Summary `json:"metrics,omitempty"`
}

// Option configures an Archive.
type Option func(*Archive)

// WithCodec sets the record encoding. Defaults to codec.Default.
func WithCodec(c codec.Codec) Option {
	return func(a *Archive) { a.codec = c }
}

// WithCompression sets the block compression. Defaults to zstd.
func WithCompression(c Compression) Option {
	return func(a *Archive) { a.compression = c }
}

// WithBlockSize sets the uncompressed block size.
func WithBlockSize(n int) Option {
	return func(a *Archive) {
		if n > 0 {
			a.blockSize = n
		}
	}
}

// WithPrefix sets the blob name prefix.
func WithPrefix(p string) Option {
	return func(a *Archive) { a.prefix = strings.Trim(p, "/") }
}

// WithController throttles reads and writes with the controller's IO limit.
func WithController(rc *resource.Controller) Option {
	return func(a *Archive) { a.controller = rc }
}

// WithCache keeps up to capacity bytes of decoded runs in memory. Cached
// bytes count against the memory limit of the controller set with
// WithController.
func WithCache(capacity int64) Option {
	return func(a *Archive) { a.cacheSize = capacity }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Archive) {
		if l != nil {
			a.logger = l
		}
	}
}

// Archive persists segmentation runs in a blob store.
//
// A stored run is a small header naming the codec and compression, followed
// by compressed blocks of the encoded Record.
type Archive struct {
	store       blobstore.BlobStore
	codec       codec.Codec
	compression Compression
	blockSize   int
	prefix      string
	controller  *resource.Controller
	cacheSize   int64
	cache       *payloadCache
	logger      *slog.Logger
}

// New returns an archive backed by store.
func New(store blobstore.BlobStore, optFns ...Option) *Archive {
	a := &Archive{
		store:       store,
		codec:       codec.Default,
		compression: CompressionZstd,
		blockSize:   DefaultBlockSize,
		prefix:      DefaultPrefix,
		logger:      slog.New(slog.DiscardHandler),
	}

	for _, fn := range optFns {
		fn(a)
	}

	if a.cacheSize > 0 {
		a.cache = newPayloadCache(a.cacheSize, a.controller)
	}

	return a
}

// CacheStats returns the payload cache usage. It is zero without WithCache.
func (a *Archive) CacheStats() CacheStats {
	if a.cache == nil {
		return CacheStats{}
	}

	return a.cache.stats()
}

func (a *Archive) name(id string) string {
	return path.Join(a.prefix, id+fileExt)
}

// Save stores rec and returns its id. A missing id is generated and a zero
// creation time is set to now.
func (a *Archive) Save(ctx context.Context, rec *Record) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	} else if _, err := uuid.Parse(rec.ID); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, rec.ID)
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	payload, err := a.codec.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("archive: encode: %w", err)
	}

	if a.cache != nil {
		a.cache.remove(rec.ID)
	}

	blob, err := a.store.Create(ctx, a.name(rec.ID))
	if err != nil {
		return "", err
	}

	if err := a.write(ctx, blob, payload); err != nil {
		_ = blob.Abort()
		return "", err
	}

	if err := blob.Close(); err != nil {
		return "", err
	}

	a.logger.InfoContext(ctx, "run archived",
		slog.String("id", rec.ID),
		slog.Int("bytes", len(payload)),
		slog.String("compression", a.compression.String()),
	)

	return rec.ID, nil
}

func (a *Archive) write(ctx context.Context, blob blobstore.WritableBlob, payload []byte) error {
	w := resource.NewRateLimitedWriter(ctx, blob, a.controller)

	header := make([]byte, 0, len(magic)+3+len(a.codec.Name()))
	header = append(header, magic...)
	header = append(header, version, byte(a.compression), byte(len(a.codec.Name())))
	header = append(header, a.codec.Name()...)

	if _, err := w.Write(header); err != nil {
		return err
	}

	bw := newBlockWriter(w, a.compression, a.blockSize)
	if _, err := bw.Write(payload); err != nil {
		return err
	}

	return bw.Flush()
}

// Load reads the run with the given id.
func (a *Archive) Load(ctx context.Context, id string) (*Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	if a.cache != nil {
		if payload, ok := a.cache.get(id); ok {
			return decodeRecord(a.codec, payload)
		}
	}

	data, err := a.read(ctx, a.name(id))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}

		return nil, err
	}

	c, comp, body, err := parseHeader(data)
	if err != nil {
		return nil, err
	}

	payload, err := decodeBlocks(body, comp)
	if err != nil {
		return nil, err
	}

	rec, err := decodeRecord(c, payload)
	if err != nil {
		return nil, err
	}

	// Cached payloads are decoded with the archive codec.
	if a.cache != nil && c.Name() == a.codec.Name() {
		a.cache.set(id, payload)
	}

	return rec, nil
}

func decodeRecord(c codec.Codec, payload []byte) (*Record, error) {
	var rec Record
	if err := c.Unmarshal(payload, &rec); err != nil {
		return nil, errors.Join(ErrCorrupt, err)
	}

	return &rec, nil
}

func (a *Archive) read(ctx context.Context, name string) ([]byte, error) {
	blob, err := a.store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = blob.Close() }()

	var buf bytes.Buffer
	buf.Grow(int(blob.Size()))

	if _, err := io.Copy(&buf, resource.NewRateLimitedReader(ctx, blob, a.controller)); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func parseHeader(data []byte) (codec.Codec, Compression, []byte, error) {
	if len(data) < len(magic)+3 || string(data[:len(magic)]) != magic {
		return nil, 0, nil, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}

	data = data[len(magic):]
	if data[0] != version {
		return nil, 0, nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, data[0])
	}

	comp := Compression(data[1])
	if comp > CompressionZstd {
		return nil, 0, nil, fmt.Errorf("%w: %s", ErrUnknownCompression, comp)
	}

	n := int(data[2])
	data = data[3:]

	if len(data) < n {
		return nil, 0, nil, fmt.Errorf("%w: truncated codec name", ErrCorrupt)
	}

	c, err := codec.Lookup(string(data[:n]))
	if err != nil {
		return nil, 0, nil, errors.Join(ErrCorrupt, err)
	}

	return c, comp, data[n:], nil
}

// List returns the ids of all archived runs in ascending order.
func (a *Archive) List(ctx context.Context) ([]string, error) {
	prefix := ""
	if a.prefix != "" {
		prefix = a.prefix + "/"
	}

	names, err := a.store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(names))

	for _, name := range names {
		id, ok := strings.CutSuffix(path.Base(name), fileExt)
		if !ok || path.Dir(name) != path.Clean(a.prefix) {
			continue
		}

		ids = append(ids, id)
	}

	return ids, nil
}

// Delete removes a run. Deleting an unknown run is not an error.
func (a *Archive) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	if a.cache != nil {
		a.cache.remove(id)
	}

	return a.store.Delete(ctx, a.name(id))
}
