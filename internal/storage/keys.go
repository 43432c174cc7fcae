package storage

import (
	"path"
	"strings"
	"time"
)

const isoDateLayout = "2006-01-02"

// ISODate formats t as YYYY-MM-DD, the stamp used in archived object keys.
func ISODate(t time.Time) string {
	return t.Format(isoDateLayout)
}

// TimestampFolder returns a YYYY/MM/DD folder for t.
func TimestampFolder(t time.Time) string {
	return t.Format("2006/01/02")
}

// TimestampKey inserts timestamp before the extension of the key's filename.
// An empty timestamp means today's ISO date.
//
//	TimestampKey("origin/a_file.csv", "2021-03-27", false) == "a_file-2021-03-27.csv"
//	TimestampKey("origin/a_file.csv", "2021-03-27", true)  == "origin/a_file-2021-03-27.csv"
func TimestampKey(key, timestamp string, keepFolder bool) string {
	if timestamp == "" {
		timestamp = ISODate(time.Now())
	}

	filename := FilenameFromKey(key)
	ext := path.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	stamped := stem + "-" + timestamp + ext

	if !keepFolder {
		return stamped
	}
	return path.Join(PrefixFromKey(key), stamped)
}

// FilenameFromKey returns the last path element of an object key.
func FilenameFromKey(key string) string {
	return path.Base(key)
}

// PrefixFromKey returns everything before the filename, without a trailing slash.
// Keys at the bucket root have an empty prefix.
func PrefixFromKey(key string) string {
	dir := path.Dir(key)
	if dir == "." {
		return ""
	}
	return dir
}
