package chatlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fixedClock(t *time.Time) Clock {
	return func() time.Time { return *t }
}

func Test_Lines_are_timestamped_and_flushed(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.Local)

	log, err := OpenWithClock("devel.log", dir, fixedClock(&at))
	req.NoError(err)
	defer log.Close()

	req.NoError(log.Message("alice", "hello wörld"))
	req.NoError(log.Action("bob", "waves"))
	req.NoError(log.Event("carol has joined devel"))

	content, err := os.ReadFile(filepath.Join(dir, "devel.log"))
	req.NoError(err)

	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	req.Len(lines, 4)
	req.True(strings.HasPrefix(lines[0], "--- Log opened: "))
	req.Equal("09:26 <alice> hello wörld", lines[1])
	req.Equal("09:26  * bob waves", lines[2])
	req.Equal("09:26 -!- carol has joined devel", lines[3])
}

func Test_Midnight_rollover_splits_days(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	at := time.Date(2026, 3, 14, 23, 59, 0, 0, time.Local)

	log, err := OpenWithClock("devel.log", dir, fixedClock(&at))
	req.NoError(err)
	defer log.Close()

	req.NoError(log.Message("alice", "before midnight"))

	at = time.Date(2026, 3, 15, 0, 1, 0, 0, time.Local)
	req.NoError(log.Message("alice", "after midnight"))

	rotated, err := os.ReadFile(filepath.Join(dir, "devel.log.2026_03_14"))
	req.NoError(err)
	req.Contains(string(rotated), "23:59 <alice> before midnight")
	req.NotContains(string(rotated), "after midnight")

	current, err := os.ReadFile(filepath.Join(dir, "devel.log"))
	req.NoError(err)
	req.Contains(string(current), "00:01 <alice> after midnight")
	req.NotContains(string(current), "before midnight")
}

func Test_Stale_base_file_is_rotated_on_open(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	base := filepath.Join(dir, "devel.log")

	req.NoError(os.WriteFile(base, []byte("10:00 <alice> old day\n"), 0o644))
	yesterday := time.Now().AddDate(0, 0, -1)
	req.NoError(os.Chtimes(base, yesterday, yesterday))

	log, err := Open("devel.log", dir)
	req.NoError(err)
	defer log.Close()

	rotated := base + "." + yesterday.Format(SuffixLayout)
	content, err := os.ReadFile(rotated)
	req.NoError(err)
	req.Contains(string(content), "old day")

	current, err := os.ReadFile(base)
	req.NoError(err)
	req.NotContains(string(current), "old day")
}

func Test_FileFor_resolves_offsets(t *testing.T) {
	req := require.New(t)
	today := time.Date(2026, 3, 14, 12, 0, 0, 0, time.Local)

	req.Equal(filepath.Join("logs", "devel.log"), FileFor("logs", "devel.log", 0, today))
	req.Equal(filepath.Join("logs", "devel.log.2026_03_13"), FileFor("logs", "devel.log", 1, today))
	req.Equal(filepath.Join("logs", "devel.log.2026_02_12"), FileFor("logs", "devel.log", 30, today))
}
