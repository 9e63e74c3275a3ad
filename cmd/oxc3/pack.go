package main

import (
	"bytes"
	"os"

	"github.com/oxc3-go/core3/archive"
	"github.com/oxc3-go/core3/format/oica"
	"github.com/oxc3-go/core3/format/oidl"
)

func packDirectory(opts *options, key []byte) error {
	arc, err := archive.FromFS(os.DirFS(opts.input))
	if err != nil {
		return err
	}

	settings := oica.Settings{
		IncludeDate:     opts.date,
		IncludeFullDate: opts.fullDate,
		UseSHA256:       opts.sha256,
	}
	if key != nil {
		settings.Encryption = oidl.EncryptionAES256GCM
		settings.EncryptionKey = key
	}

	buf, err := oica.Write(arc, settings)
	if err != nil {
		return err
	}
	return writeOutput(opts.output, buf)
}

func packSplitFile(opts *options, key []byte) error {
	raw, err := os.ReadFile(opts.input)
	if err != nil {
		return err
	}

	dataKind := oidl.Data
	switch {
	case opts.utf8:
		dataKind = oidl.UTF8
	case opts.ascii:
		dataKind = oidl.ASCII
	}

	f := &oidl.DLFile{Settings: oidl.Settings{DataKind: dataKind, UseSHA256: opts.sha256}}
	for _, part := range bytes.Split(raw, []byte(opts.splitBy)) {
		f.Entries = append(f.Entries, part)
	}
	if key != nil {
		f.Settings.Encryption = oidl.EncryptionAES256GCM
		f.Settings.EncryptionKey = key
	}

	buf, err := oidl.Write(f)
	if err != nil {
		return err
	}
	return writeOutput(opts.output, buf)
}
