// Package fileserver serves files out of Azure Blob Storage containers.
// Each container is mapped to an environment, base unless configured
// otherwise. Lookups go to the storage service every time and the first
// container holding a path wins, in configuration order.
package fileserver

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"

	"github.com/thand-io/azurerm/internal/azure"
	"github.com/thand-io/azurerm/internal/models"
)

const (
	DefaultSaltenv    = "base"
	DefaultBufferSize = 262144
	DefaultHashType   = "sha256"
)

var ErrNotFound = errors.New("file not found")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Found is the result of FindFile.
type Found struct {
	// Path is the URL of the blob.
	Path  string `json:"path" yaml:"path"`
	Rel   string `json:"rel" yaml:"rel"`
	Size  int64  `json:"size" yaml:"size"`
	Mtime int64  `json:"mtime" yaml:"mtime"`

	store BlobStore
}

// ServeLoad asks for the chunk of a file starting at Loc. A Gzip level
// between 1 and 9 compresses the chunk.
type ServeLoad struct {
	Path    string `mapstructure:"path" json:"path"`
	Loc     int64  `mapstructure:"loc" json:"loc"`
	Saltenv string `mapstructure:"saltenv" json:"saltenv"`
	Gzip    int    `mapstructure:"gzip" json:"gzip,omitempty"`
}

type Chunk struct {
	Data []byte `json:"data" yaml:"data"`
	Dest string `json:"dest" yaml:"dest"`
	Gzip int    `json:"gzip,omitempty" yaml:"gzip,omitempty"`
}

type HashLoad struct {
	Path     string `mapstructure:"path" json:"path"`
	Saltenv  string `mapstructure:"saltenv" json:"saltenv"`
	HashType string `mapstructure:"hash_type" json:"hash_type,omitempty"`
}

type Hash struct {
	HashType string `json:"hash_type" yaml:"hash_type"`
	Hsum     string `json:"hsum" yaml:"hsum"`
}

type source struct {
	cfg   models.FileserverContainer
	store BlobStore
}

func (s *source) saltenv() string {
	if len(s.cfg.Saltenv) == 0 {
		return DefaultSaltenv
	}
	return s.cfg.Saltenv
}

// Backend is a read-only filesystem over blob containers.
type Backend struct {
	sources    []*source
	bufferSize int
	hashType   string
	ignore     *ignoreRules
}

type options struct {
	factory StoreFactory
	env     *azure.Environment
}

type Option func(*options)

// WithStoreFactory replaces the way containers are opened.
func WithStoreFactory(factory StoreFactory) Option {
	return func(o *options) { o.factory = factory }
}

// WithEnvironment selects the Azure cloud whose storage endpoints are used.
func WithEnvironment(env *azure.Environment) Option {
	return func(o *options) { o.env = env }
}

// ValidateContainers checks raw fileserver container configuration: a list
// of mappings, each naming account_name and container_name.
func ValidateContainers(raw any) error {
	items, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("fileserver containers are not formed as a list")
	}
	for i, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			return fmt.Errorf("fileserver container %d is not formed as a mapping", i)
		}
		cfg := models.BasicConfig(entry)
		if !cfg.Has("account_name") || !cfg.Has("container_name") {
			return fmt.Errorf("fileserver container %d is missing either an account_name or a container_name", i)
		}
	}
	return nil
}

// New opens every configured container.
func New(cfg models.FileserverConfig, opts ...Option) (*Backend, error) {
	o := &options{factory: NewBlobStore, env: azure.PublicCloud()}
	for _, opt := range opts {
		opt(o)
	}

	rules, err := newIgnoreRules(cfg.FileIgnoreRegex, cfg.FileIgnoreGlob)
	if err != nil {
		return nil, err
	}

	b := &Backend{
		bufferSize: cfg.FileBufferSize,
		hashType:   strings.ToLower(cfg.HashType),
		ignore:     rules,
	}
	if b.bufferSize <= 0 {
		b.bufferSize = DefaultBufferSize
	}
	if len(b.hashType) == 0 {
		b.hashType = DefaultHashType
	}

	for i, container := range cfg.Containers {
		if err := validate.Struct(container); err != nil {
			return nil, fmt.Errorf("fileserver container %d: %w", i, err)
		}
		store, err := o.factory(container, o.env)
		if err != nil {
			return nil, err
		}
		b.sources = append(b.sources, &source{cfg: container, store: store})
	}
	return b, nil
}

// cleanPath turns a requested path into a blob name, or "" when it would
// leave the container.
func cleanPath(p string) string {
	p = strings.TrimPrefix(path.Clean("/"+strings.TrimSpace(p)), "/")
	if p == "." {
		return ""
	}
	return p
}

func defaultSaltenv(saltenv string) string {
	if len(saltenv) == 0 {
		return DefaultSaltenv
	}
	return saltenv
}

// Envs returns the environments served, without duplicates.
func (b *Backend) Envs() []string {
	var envs []string
	for _, s := range b.sources {
		if !slices.Contains(envs, s.saltenv()) {
			envs = append(envs, s.saltenv())
		}
	}
	slices.Sort(envs)
	return envs
}

// FindFile looks up rel in the containers of saltenv.
func (b *Backend) FindFile(ctx context.Context, rel, saltenv string) (Found, error) {
	saltenv = defaultSaltenv(saltenv)
	name := cleanPath(rel)
	if len(name) == 0 || b.ignore.ignored(name) {
		return Found{}, fmt.Errorf("%s: %w", rel, ErrNotFound)
	}

	for _, s := range b.sources {
		if s.saltenv() != saltenv {
			continue
		}
		info, err := s.store.Properties(ctx, name)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return Found{}, fmt.Errorf("failed to look up %s in %s: %w", name, s.store.URL(), err)
		}
		return Found{
			Path:  s.store.URL() + "/" + name,
			Rel:   name,
			Size:  info.Size,
			Mtime: info.LastModified.Unix(),
			store: s.store,
		}, nil
	}
	return Found{}, fmt.Errorf("%s: %w", rel, ErrNotFound)
}

// ServeFile returns the chunk of fnd starting at load.Loc. A load without
// a path or environment gets an empty chunk.
func (b *Backend) ServeFile(ctx context.Context, load ServeLoad, fnd Found) (Chunk, error) {
	if len(load.Path) == 0 || len(load.Saltenv) == 0 {
		logrus.WithField("load", load).Debug("Incomplete serve_file request")
		return Chunk{}, nil
	}
	if fnd.store == nil || len(fnd.Path) == 0 {
		return Chunk{}, nil
	}
	if load.Loc < 0 {
		return Chunk{}, fmt.Errorf("invalid offset %d", load.Loc)
	}

	chunk := Chunk{Dest: fnd.Rel}
	if load.Loc >= fnd.Size {
		return chunk, nil
	}
	count := min(int64(b.bufferSize), fnd.Size-load.Loc)

	body, err := fnd.store.Read(ctx, fnd.Rel, load.Loc, count)
	if err != nil {
		return Chunk{}, fmt.Errorf("failed to read %s: %w", fnd.Path, err)
	}
	defer body.Close()
	data, err := io.ReadAll(io.LimitReader(body, count))
	if err != nil {
		return Chunk{}, fmt.Errorf("failed to read %s: %w", fnd.Path, err)
	}

	if load.Gzip > 0 && len(data) > 0 {
		data, err = compress(data, load.Gzip)
		if err != nil {
			return Chunk{}, err
		}
		chunk.Gzip = load.Gzip
	}
	chunk.Data = data
	return chunk, nil
}

func compress(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("invalid gzip level %d: %w", level, err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func newHash(hashType string) (hash.Hash, error) {
	switch hashType {
	case "md5":
		return md5.New(), nil
	case "sha1":
		return sha1.New(), nil
	case "sha256":
		return sha256.New(), nil
	case "sha512":
		return sha512.New(), nil
	}
	return nil, fmt.Errorf("unsupported hash type %q", hashType)
}

// FileHash hashes the content of fnd with the configured hash type, or the
// one named in the load.
func (b *Backend) FileHash(ctx context.Context, load HashLoad, fnd Found) (Hash, error) {
	if len(load.Path) == 0 || len(load.Saltenv) == 0 || fnd.store == nil {
		return Hash{}, nil
	}
	hashType := b.hashType
	if len(load.HashType) > 0 {
		hashType = strings.ToLower(load.HashType)
	}
	h, err := newHash(hashType)
	if err != nil {
		return Hash{}, err
	}
	if fnd.Size > 0 {
		body, err := fnd.store.Read(ctx, fnd.Rel, 0, fnd.Size)
		if err != nil {
			return Hash{}, fmt.Errorf("failed to read %s: %w", fnd.Path, err)
		}
		defer body.Close()
		if _, err := io.Copy(h, body); err != nil {
			return Hash{}, fmt.Errorf("failed to read %s: %w", fnd.Path, err)
		}
	}
	return Hash{HashType: hashType, Hsum: hex.EncodeToString(h.Sum(nil))}, nil
}

// FileList returns every visible file of saltenv.
func (b *Backend) FileList(ctx context.Context, saltenv string) ([]string, error) {
	saltenv = defaultSaltenv(saltenv)
	seen := map[string]bool{}
	var files []string
	for _, s := range b.sources {
		if s.saltenv() != saltenv {
			continue
		}
		blobs, err := s.store.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, blob := range blobs {
			name := cleanPath(blob.Name)
			// Blobs whose names do not clean to themselves cannot be found.
			if name != blob.Name || seen[name] || b.ignore.ignored(name) {
				continue
			}
			seen[name] = true
			files = append(files, name)
		}
	}
	slices.Sort(files)
	return files, nil
}

// DirList returns every directory holding a visible file of saltenv.
func (b *Backend) DirList(ctx context.Context, saltenv string) ([]string, error) {
	files, err := b.FileList(ctx, saltenv)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, file := range files {
		for dir := path.Dir(file); dir != "." && dir != "/"; dir = path.Dir(dir) {
			if !slices.Contains(dirs, dir) {
				dirs = append(dirs, dir)
			}
		}
	}
	slices.Sort(dirs)
	return dirs, nil
}
