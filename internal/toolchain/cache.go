package toolchain

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gauntlet/internal/game"
	"gauntlet/internal/sandbox"
)

// Artifact is a prepared, launchable strategy.
type Artifact struct {
	// Key is the cache key the artifact was stored under.
	Key string `json:"key"`

	// Digest is the strategy digest it was built from.
	Digest string `json:"digest"`

	Language game.Language `json:"language"`

	// Entry is the launch target relative to Dir: the binary for compiled
	// languages, the source file for interpreted ones.
	Entry string `json:"entry"`

	// Harness, when set, is the interpreter harness relative to Dir.
	Harness string `json:"harness,omitempty"`

	// Dir is the absolute cache directory holding the artifact.
	Dir string `json:"-"`

	// Interpreter is the resolved interpreter path for this host. It is not
	// cached; Prepare fills it on every call.
	Interpreter     string   `json:"-"`
	InterpreterArgs []string `json:"-"`
}

// Command returns the sandbox command for one turn. input is appended as
// argv[1] when non-nil. The artifact directory is the only extra path the
// command reads.
func (a *Artifact) Command(round game.RoundNumber, input *string) sandbox.Command {
	var args []string
	path := filepath.Join(a.Dir, a.Entry)
	if a.Interpreter != "" {
		args = append(args, a.InterpreterArgs...)
		if a.Harness != "" {
			args = append(args, filepath.Join(a.Dir, a.Harness), strconv.Itoa(int(round)))
		}
		args = append(args, path)
		path = a.Interpreter
	}
	if input != nil {
		args = append(args, *input)
	}
	return sandbox.Command{Path: path, Args: args, ReadOnly: []string{a.Dir}}
}

// Cache stores prepared artifacts on disk.
//
// Structure:
//
//	{dir}/
//	  {key[0:2]}/
//	    {key}/
//	      artifact.json
//	      <entry files>
type Cache struct {
	dir string
}

// NewCache creates a cache rooted at dir.
func NewCache(dir string) (*Cache, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("cache dir is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving cache dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	return &Cache{dir: abs}, nil
}

// Dir returns the cache root.
func (c *Cache) Dir() string { return c.dir }

// Lookup returns the artifact stored under key, if any.
func (c *Cache) Lookup(key string) (*Artifact, bool, error) {
	entryDir := c.entryPath(key)
	data, err := os.ReadFile(filepath.Join(entryDir, "artifact.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading artifact metadata: %w", err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, false, fmt.Errorf("parsing artifact metadata: %w", err)
	}
	if a.Key != key {
		return nil, false, fmt.Errorf("artifact metadata key mismatch: %q != %q", a.Key, key)
	}
	a.Dir = entryDir
	return &a, true, nil
}

// Build populates a fresh directory with fill and commits it under key.
//
// The entry is assembled in a temporary sibling directory and renamed into
// place, so a crash never leaves a half-built artifact at the canonical path.
// If another builder commits the same key first, its artifact wins.
func (c *Cache) Build(key string, fill func(dir string) (*Artifact, error)) (*Artifact, error) {
	entryDir := c.entryPath(key)
	parentDir := filepath.Dir(entryDir)
	if err := os.MkdirAll(parentDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	tmpDir, err := os.MkdirTemp(parentDir, "tmp-"+key+"-")
	if err != nil {
		return nil, fmt.Errorf("creating temp artifact dir: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(tmpDir)
		}
	}()

	a, err := fill(tmpDir)
	if err != nil {
		return nil, err
	}
	a.Key = key

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling artifact metadata: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(tmpDir, "artifact.json"), data, 0o644); err != nil {
		return nil, fmt.Errorf("writing artifact metadata: %w", err)
	}

	if err := os.Rename(tmpDir, entryDir); err != nil {
		if existing, ok, lerr := c.Lookup(key); lerr == nil && ok {
			return existing, nil
		}
		return nil, fmt.Errorf("committing artifact: %w", err)
	}
	committed = true
	a.Dir = entryDir
	return a, nil
}

func (c *Cache) entryPath(key string) string {
	if len(key) < 2 {
		return filepath.Join(c.dir, key)
	}
	return filepath.Join(c.dir, key[:2], key)
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	_ = tmp.Sync()
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
