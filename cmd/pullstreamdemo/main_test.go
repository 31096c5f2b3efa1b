package main

import (
	"bufio"
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

// captureStdout redirects os.Stdout for the duration of fn, returning every
// line it wrote.
func captureStdout(t *testing.T, fn func()) []string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)

	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()
	require.NoError(t, w.Close())

	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestRun_defaultConfig(t *testing.T) {
	lines := captureStdout(t, func() {
		require.NoError(t, run(""))
	})

	cfg := defaultConfig()
	require.Len(t, lines, cfg.Range.Count)

	seen := make(map[int]bool, len(lines))
	for _, line := range lines {
		n, err := strconv.Atoi(line)
		require.NoError(t, err)
		seen[n] = true
	}
	for i := cfg.Range.Start; i < cfg.Range.Start+cfg.Range.Count; i++ {
		require.Truef(t, seen[i*i], "expected %d*%d=%d among the results", i, i, i*i)
	}
}

func TestLoadConfig_file(t *testing.T) {
	path := writeTempConfig(t, `
[range]
start = 5
count = 6

[buffer]
size = 2

[merge]
concurrency = 1
`)

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 5, cfg.Range.Start)
	require.Equal(t, 6, cfg.Range.Count)
	require.Equal(t, 2, cfg.Buffer.Size)
	require.Equal(t, 1, cfg.Merge.Concurrency)
}

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "pullstreamdemo-*.toml")
	require.NoError(t, err)
	_, err = f.WriteString(contents)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}
