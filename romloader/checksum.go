package romloader

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"os"
	"strings"
)

// FileMD5 returns the lowercase hex MD5 of the file at path. It matches the
// checksums cores declare for file settings.
func FileMD5(path string) (string, error) {
	return fileHash(path, md5.New())
}

// FileCRC32 returns the uppercase hex CRC32 of the file at path, the form
// used by game databases.
func FileCRC32(path string) (string, error) {
	sum, err := fileHash(path, crc32.NewIEEE())
	return strings.ToUpper(sum), err
}

// MD5 returns the lowercase hex MD5 of the game image.
func (g *Game) MD5() string {
	sum := md5.Sum(g.Data)
	return hex.EncodeToString(sum[:])
}

// CRC32 returns the uppercase hex CRC32 of the game image.
func (g *Game) CRC32() string {
	return fmt.Sprintf("%08X", crc32.ChecksumIEEE(g.Data))
}

func fileHash(path string, h hash.Hash) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
