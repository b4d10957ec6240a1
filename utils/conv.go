package utils

import (
	"bytes"

	"github.com/pkg/errors"
	"golang.org/x/text/transform"

	"github.com/mogaika/dark_db_browser/config"
)

// BytesToString decodes a zero-terminated string stored in a fixed buffer
// (chunk names, file name tags) using the configured charmap.
func BytesToString(bs []byte) string {
	s, _, err := transform.Bytes(config.GetEncoding().NewDecoder(), bs[:BytesStringLength(bs)])
	if err != nil {
		panic(err)
	}
	return string(s)
}

func BytesStringLength(bs []byte) int {
	if l := bytes.IndexByte(bs, 0); l == -1 {
		return len(bs)
	} else {
		return l
	}
}

// StringToBytesBuffer encodes s into a zero padded buffer of bufSize bytes.
// The last byte is kept for the terminator when nilTerminate is set.
func StringToBytesBuffer(s string, bufSize int, nilTerminate bool) ([]byte, error) {
	bs, err := StringToBytes(s, nilTerminate)
	if err != nil {
		return nil, err
	}
	if len(bs) > bufSize {
		return nil, errors.Errorf("String %q does not fit into %d bytes", s, bufSize)
	}
	r := make([]byte, bufSize)
	copy(r, bs)
	return r, nil
}

func StringToBytes(s string, nilTerminate bool) ([]byte, error) {
	bs, _, err := transform.Bytes(config.GetEncoding().NewEncoder(), []byte(s))
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to encode %q as %v", s, config.GetEncoding())
	}
	if nilTerminate {
		bs = append(bs, 0)
	}
	return bs, nil
}
