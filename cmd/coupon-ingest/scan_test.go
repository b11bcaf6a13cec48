package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/bookclub-orders/internal/domain/coupon"
)

func writeGz(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	var buf bytes.Buffer
	gz := pgzip.NewWriter(&buf)
	_, err := gz.Write([]byte(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func testConfig(minFiles int) scanConfig {
	return scanConfig{
		Capacity:          1000,
		FalsePositiveRate: 0.001,
		MinFiles:          minFiles,
		MinLen:            8,
		MaxLen:            10,
	}
}

func TestScanner_SharedCodes(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeGz(t, dir, "a.gz", "SPRING24X", "ONLYINA1", "SHORT", "BOOKWORM1", "TOOLONGCODE1"),
		writeGz(t, dir, "b.gz", "BOOKWORM1", "ONLYINB1", "TOOLONGCODE1"),
		writeGz(t, dir, "c.gz", "SPRING24X", "BOOKWORM1", "SHORT"),
	}

	s, err := newScanner(zap.NewNop(), testConfig(2), files)
	require.NoError(t, err)
	codes, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BOOKWORM1", "SPRING24X"}, codes)

	s, err = newScanner(zap.NewNop(), testConfig(3), files)
	require.NoError(t, err)
	codes, err = s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BOOKWORM1"}, codes)
}

func TestScanner_Errors(t *testing.T) {
	dir := t.TempDir()
	a := writeGz(t, dir, "a.gz", "CODE0001")

	_, err := newScanner(zap.NewNop(), testConfig(2), []string{a})
	assert.Error(t, err)

	_, err = newScanner(zap.NewNop(), testConfig(3), []string{a, a})
	assert.Error(t, err)

	plain := filepath.Join(dir, "plain.gz")
	require.NoError(t, os.WriteFile(plain, []byte("not gzip"), 0o600))
	s, err := newScanner(zap.NewNop(), testConfig(2), []string{a, plain})
	require.NoError(t, err)
	_, err = s.Run(context.Background())
	assert.Error(t, err)
}

type memCoupons struct {
	stored []coupon.Stored
}

func (m *memCoupons) Coupons(context.Context) ([]coupon.Stored, error) {
	return m.stored, nil
}

func (m *memCoupons) Create(_ context.Context, encrypted string) (int64, error) {
	id := int64(len(m.stored) + 1)
	m.stored = append(m.stored, coupon.Stored{ID: id, EncryptedCode: encrypted})
	return id, nil
}

func TestStore_SkipsKnownCodes(t *testing.T) {
	cipher, err := coupon.NewCipher(bytes.Repeat([]byte{7}, coupon.KeySize))
	require.NoError(t, err)

	sealed, err := cipher.Seal("BOOKWORM1")
	require.NoError(t, err)
	w := &memCoupons{stored: []coupon.Stored{{ID: 1, EncryptedCode: sealed}, {ID: 2, EncryptedCode: "garbage"}}}

	require.NoError(t, store(context.Background(), zap.NewNop(), w, cipher, []string{"BOOKWORM1", "SPRING24X", "SPRING24X"}))
	require.Len(t, w.stored, 3)

	code, err := cipher.Open(w.stored[2].EncryptedCode)
	require.NoError(t, err)
	assert.Equal(t, "SPRING24X", code)
}
