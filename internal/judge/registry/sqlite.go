package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strconv"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"arbiter/internal/common/storage"
	"arbiter/internal/judge/model"
	appErr "arbiter/pkg/errors"
)

const (
	bucketSize = 1000

	metaObject   = "meta.json"
	sourceObject = "source.zst"
	resultObject = "result.json"
)

// Config holds registry settings.
type Config struct {
	DBPath string `yaml:"dbPath"`
	Bucket string `yaml:"bucket"`
}

// DefaultConfig returns registry defaults for a local deployment.
func DefaultConfig() Config {
	return Config{
		DBPath: "data/registry.db",
		Bucket: "submissions",
	}
}

// SQLiteRegistry implements Registry with a SQLite index for ids and
// metadata, and object storage for source and result blobs.
type SQLiteRegistry struct {
	db     *sql.DB
	store  storage.ObjectStorage
	bucket string

	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewSQLiteRegistry opens (or creates) the registry database.
func NewSQLiteRegistry(cfg Config, store storage.ObjectStorage) (*SQLiteRegistry, error) {
	if cfg.DBPath == "" {
		return nil, appErr.Newf(appErr.RegistryError, "registry dbPath is required")
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "submissions"
	}
	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.RegistryError, "open registry db %s", cfg.DBPath)
	}
	// modernc sqlite serializes writes itself; a single connection avoids
	// SQLITE_BUSY under concurrent workers.
	db.SetMaxOpenConns(1)

	const schema = `
CREATE TABLE IF NOT EXISTS submissions (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	problem_id TEXT NOT NULL DEFAULT '',
	language   TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, appErr.Wrapf(err, appErr.RegistryError, "init registry schema")
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, appErr.Wrapf(err, appErr.RegistryError, "init zstd encoder")
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, appErr.Wrapf(err, appErr.RegistryError, "init zstd decoder")
	}

	return &SQLiteRegistry{
		db:     db,
		store:  store,
		bucket: cfg.Bucket,
		enc:    enc,
		dec:    dec,
	}, nil
}

// NextSubmissionID allocates the next id from the AUTOINCREMENT sequence.
// AUTOINCREMENT guarantees ids are never reused even after deletes.
func (r *SQLiteRegistry) NextSubmissionID(ctx context.Context) (string, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO submissions (created_at) VALUES (strftime('%s','now'))`)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.RegistryError, "allocate submission id")
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return "", appErr.Wrapf(err, appErr.RegistryError, "read allocated submission id")
	}
	return strconv.FormatInt(seq, 10), nil
}

// SubmissionPaths groups submissions into buckets of bucketSize by id.
// Non-numeric ids fall into bucket zero.
func (r *SQLiteRegistry) SubmissionPaths(id string) Paths {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n < 0 {
		n = 0
	}
	return Paths{
		BucketDir: fmt.Sprintf("%04d", n/bucketSize),
		SubDir:    id,
	}
}

func (r *SQLiteRegistry) objectKey(id, name string) string {
	p := r.SubmissionPaths(id)
	return path.Join(p.BucketDir, p.SubDir, name)
}

// SaveMeta updates the index row and writes the metadata object.
func (r *SQLiteRegistry) SaveMeta(ctx context.Context, meta model.SubmissionMeta) error {
	seq, err := strconv.ParseInt(meta.SubmissionID, 10, 64)
	if err != nil {
		return appErr.Newf(appErr.RegistryError, "invalid submission id %q", meta.SubmissionID)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE submissions SET problem_id = ?, language = ? WHERE seq = ?`,
		meta.ProblemID, meta.Language, seq)
	if err != nil {
		return appErr.Wrapf(err, appErr.RegistryError, "index metadata for submission %s", meta.SubmissionID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appErr.Newf(appErr.SubmissionNotFound, "submission %s not allocated", meta.SubmissionID)
	}

	raw, err := json.Marshal(meta)
	if err != nil {
		return appErr.Wrapf(err, appErr.RegistryError, "encode metadata for submission %s", meta.SubmissionID)
	}
	key := r.objectKey(meta.SubmissionID, metaObject)
	if err := r.store.PutObject(ctx, r.bucket, key, raw, "application/json"); err != nil {
		return appErr.Wrapf(err, appErr.StorageError, "store metadata for submission %s", meta.SubmissionID)
	}
	return nil
}

// LoadMeta reads the admission metadata object.
func (r *SQLiteRegistry) LoadMeta(ctx context.Context, id string) (model.SubmissionMeta, error) {
	key := r.objectKey(id, metaObject)
	raw, err := r.store.GetObject(ctx, r.bucket, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return model.SubmissionMeta{}, appErr.Newf(appErr.SubmissionNotFound, "submission %s not found", id)
		}
		return model.SubmissionMeta{}, appErr.Wrapf(err, appErr.StorageError, "load metadata for submission %s", id)
	}
	var meta model.SubmissionMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return model.SubmissionMeta{}, appErr.Wrapf(err, appErr.RegistryError, "decode metadata for submission %s", id)
	}
	return meta, nil
}

// SaveSource archives source code as a zstd-compressed object.
func (r *SQLiteRegistry) SaveSource(ctx context.Context, id string, code []byte) error {
	compressed := r.enc.EncodeAll(code, nil)
	key := r.objectKey(id, sourceObject)
	if err := r.store.PutObject(ctx, r.bucket, key, compressed, "application/zstd"); err != nil {
		return appErr.Wrapf(err, appErr.StorageError, "store source for submission %s", id)
	}
	return nil
}

// LoadSource restores archived source code.
func (r *SQLiteRegistry) LoadSource(ctx context.Context, id string) ([]byte, error) {
	key := r.objectKey(id, sourceObject)
	compressed, err := r.store.GetObject(ctx, r.bucket, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, appErr.Newf(appErr.SubmissionNotFound, "source for submission %s not found", id)
		}
		return nil, appErr.Wrapf(err, appErr.StorageError, "load source for submission %s", id)
	}
	code, err := r.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.StorageError, "decompress source for submission %s", id)
	}
	return code, nil
}

// SaveResult persists a terminal judge result as JSON.
func (r *SQLiteRegistry) SaveResult(ctx context.Context, res model.JudgeResult) error {
	if !res.Status.Terminal() {
		return appErr.Newf(appErr.RegistryError, "refusing to persist non-terminal result for submission %s", res.SubmissionID)
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return appErr.Wrapf(err, appErr.RegistryError, "encode result for submission %s", res.SubmissionID)
	}
	key := r.objectKey(res.SubmissionID, resultObject)
	if err := r.store.PutObject(ctx, r.bucket, key, raw, "application/json"); err != nil {
		return appErr.Wrapf(err, appErr.StorageError, "store result for submission %s", res.SubmissionID)
	}
	return nil
}

// LoadResult reads a persisted terminal result.
func (r *SQLiteRegistry) LoadResult(ctx context.Context, id string) (model.JudgeResult, error) {
	key := r.objectKey(id, resultObject)
	raw, err := r.store.GetObject(ctx, r.bucket, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return model.JudgeResult{}, appErr.Newf(appErr.SubmissionNotFound, "result for submission %s not found", id)
		}
		return model.JudgeResult{}, appErr.Wrapf(err, appErr.StorageError, "load result for submission %s", id)
	}
	var res model.JudgeResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return model.JudgeResult{}, appErr.Wrapf(err, appErr.RegistryError, "decode result for submission %s", id)
	}
	return res, nil
}

// Close releases the database and codec resources.
func (r *SQLiteRegistry) Close() error {
	r.enc.Close()
	r.dec.Close()
	return r.db.Close()
}
