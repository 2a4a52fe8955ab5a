package registry

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/zeebo/blake3"

	"github.com/roach88/pluma/internal/compiler"
)

// contentDomainKey keys the BLAKE3 hash of plugin directory contents. The
// bytes are the ASCII domain name, zero-padded to 32.
var contentDomainKey = [32]byte{
	'p', 'l', 'u', 'm', 'a', '.', 'p', 'l', 'u', 'g', 'i', 'n', '.',
	'c', 'o', 'n', 't', 'e', 'n', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// ContentHash returns a hex BLAKE3 keyed hash over every regular file in
// dir, in path order. Each file contributes its slash-separated relative
// path. The manifest and *.cue files, which describe the plugin, also
// contribute their bytes; any other file, such as the executable,
// contributes its size and modification time instead.
// Hidden entries (names starting with ".") are skipped.
func ContentHash(dir string) (string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != dir && d.Name()[0] == '.' {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("hash plugin %s: %w", dir, err)
	}
	sort.Strings(files)

	hasher, err := blake3.NewKeyed(contentDomainKey[:])
	if err != nil {
		panic("registry: BLAKE3 keyed hash initialization failed: " + err.Error())
	}

	var size [8]byte
	for _, rel := range files {
		binary.BigEndian.PutUint64(size[:], uint64(len(rel)))
		hasher.Write(size[:])
		hasher.Write([]byte(rel))

		file := filepath.Join(dir, filepath.FromSlash(rel))
		if describesPlugin(rel) {
			err = hashFile(hasher, file)
		} else {
			err = hashStat(hasher, file)
		}
		if err != nil {
			return "", fmt.Errorf("hash plugin %s: %w", dir, err)
		}
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// describesPlugin reports whether the file at rel is read when loading the
// plugin's descriptor.
func describesPlugin(rel string) bool {
	return rel == compiler.ManifestFile || path.Ext(rel) == ".cue"
}

const (
	tagContent byte = 'c'
	tagStat    byte = 's'
)

// hashFile writes a tag, the file's length and its bytes. The length prefix
// keeps path/content boundaries unambiguous.
func hashFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	var size [8]byte
	binary.BigEndian.PutUint64(size[:], uint64(info.Size()))
	w.Write([]byte{tagContent})
	w.Write(size[:])
	_, err = io.Copy(w, f)
	return err
}

// hashStat writes a tag, the file's length and its modification time.
func hashStat(w io.Writer, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	var buf [17]byte
	buf[0] = tagStat
	binary.BigEndian.PutUint64(buf[1:9], uint64(info.Size()))
	binary.BigEndian.PutUint64(buf[9:], uint64(info.ModTime().UnixNano()))
	_, err = w.Write(buf[:])
	return err
}
