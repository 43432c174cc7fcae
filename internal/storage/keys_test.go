package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimestampKey(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		keepFolder bool
		expected   string
	}{
		{name: "drop folder", key: "origin/a_file.csv", keepFolder: false, expected: "a_file-2021-03-27.csv"},
		{name: "keep folder", key: "origin/a_file.csv", keepFolder: true, expected: "origin/a_file-2021-03-27.csv"},
		{name: "root key keep folder", key: "junk.csv", keepFolder: true, expected: "junk-2021-03-27.csv"},
		{name: "no extension", key: "a/b/report", keepFolder: true, expected: "a/b/report-2021-03-27"},
		{name: "double extension", key: "dump.tar.gz", keepFolder: false, expected: "dump.tar-2021-03-27.gz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TimestampKey(tt.key, "2021-03-27", tt.keepFolder))
		})
	}
}

func TestTimestampKey_DefaultsToToday(t *testing.T) {
	expected := "a_file-" + ISODate(time.Now()) + ".csv"

	assert.Equal(t, expected, TimestampKey("origin/a_file.csv", "", false))
}

func TestFilenameFromKey(t *testing.T) {
	assert.Equal(t, "a_file.csv", FilenameFromKey("origin/a_file.csv"))
	assert.Equal(t, "another_file.csv", FilenameFromKey("another_file.csv"))
	assert.Equal(t, "file.csv", FilenameFromKey("a/b/c/file.csv"))
}

func TestPrefixFromKey(t *testing.T) {
	assert.Equal(t, "origin", PrefixFromKey("origin/a_file.csv"))
	assert.Equal(t, "a/b/c", PrefixFromKey("a/b/c/file.csv"))
	assert.Equal(t, "", PrefixFromKey("file.csv"))
}

func TestTimestampFolder(t *testing.T) {
	dt := time.Date(2021, time.March, 27, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "2021/03/27", TimestampFolder(dt))
	assert.Equal(t, "2021-03-27", ISODate(dt))
}
