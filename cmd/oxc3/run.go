package main

import (
	"encoding/hex"
	"os"

	"github.com/google/renameio"

	"github.com/oxc3-go/core3/aesgcm"
	"github.com/oxc3-go/core3/oxerr"
)

const opRun = "oxc3.run"

// run dispatches on opts.input's kind: a directory is packed into an oiCA
// archive; a file with -entry/-start/-length set is treated as an existing
// container and has one entry extracted from it; a file with --split-by
// set is packed into an oiDL; anything else is an error asking the caller
// to pick one of those modes.
func run(opts *options) error {
	if opts.input == "" || opts.output == "" {
		return oxerr.InvalidParameter(opRun, "input/output", "-input and -output are required")
	}

	key, err := parseKey(opts.aesHex)
	if err != nil {
		return err
	}

	info, err := os.Stat(opts.input)
	if err != nil {
		return err
	}

	switch {
	case info.IsDir():
		return packDirectory(opts, key)
	case opts.entry != "" || opts.start != 0 || opts.length != 0:
		return extractEntry(opts, key)
	case opts.splitBy != "":
		return packSplitFile(opts, key)
	default:
		return oxerr.InvalidParameter(opRun, "mode", "ambiguous request: pass -entry to extract, --split-by to pack a file into oiDL, or point -input at a directory to pack an oiCA")
	}
}

// parseKey decodes a 64 hex-character AES-256 key, or returns nil if none
// was supplied.
func parseKey(aesHex string) ([]byte, error) {
	if aesHex == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(aesHex)
	if err != nil {
		return nil, oxerr.InvalidParameter(opRun, "aes", "not valid hex")
	}
	if len(key) != aesgcm.KeySize {
		return nil, oxerr.InvalidParameter(opRun, "aes", "must decode to 32 bytes")
	}
	return key, nil
}

func writeOutput(path string, data []byte) error {
	return renameio.WriteFile(path, data, 0o644)
}
