// Command oxc3 drives the oiDL/oiCA container codecs from the command
// line: packing a directory into an oiCA archive, splitting a file into an
// oiDL, or extracting a single entry's bytes from an existing container.
// It does not unpack a whole archive back to disk.
package main

import (
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

var log = logrus.New()

// options mirrors spec §6's CLI surface verbatim.
type options struct {
	aesHex   string
	sha256   bool
	date     bool
	fullDate bool
	ascii    bool
	utf8     bool
	splitBy  string
	input    string
	output   string
	entry    string
	start    uint64
	length   uint64
}

func parseFlags(args []string) (*options, error) {
	fs := pflag.NewFlagSet("oxc3", pflag.ContinueOnError)
	opts := &options{}

	fs.StringVar(&opts.aesHex, "aes", "", "64 hex-character AES-256 key")
	fs.BoolVar(&opts.sha256, "sha256", false, "use SHA-256 instead of CRC32C")
	fs.BoolVar(&opts.date, "date", false, "include per-file DOS dates (oiCA)")
	fs.BoolVar(&opts.fullDate, "full-date", false, "include per-file nanosecond dates (oiCA)")
	fs.BoolVar(&opts.ascii, "ascii", false, "treat split entries as ASCII")
	fs.BoolVar(&opts.utf8, "utf8", false, "treat split entries as UTF-8")
	fs.StringVar(&opts.splitBy, "split-by", "", "separator to split -input into oiDL entries")
	fs.StringVar(&opts.input, "input", "", "input path")
	fs.StringVar(&opts.output, "output", "", "output path")
	fs.StringVar(&opts.entry, "entry", "", "entry name or index to extract")
	fs.Uint64Var(&opts.start, "start", 0, "byte offset into the extracted entry")
	fs.Uint64Var(&opts.length, "length", 0, "byte length to extract (0 means to end)")

	if err := fs.Parse(normalizeArgs(args)); err != nil {
		return nil, err
	}
	return opts, nil
}

// normalizeArgs rewrites spec §6's single-dash long flags (-input,
// -output, -entry, -start, -length) to the double-dash form pflag
// requires for multi-character names, leaving --aes-style flags and
// single-character shorthand untouched.
func normalizeArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if strings.HasPrefix(a, "-") && !strings.HasPrefix(a, "--") {
			name, _, _ := strings.Cut(strings.TrimPrefix(a, "-"), "=")
			if len(name) > 1 {
				a = "-" + a
			}
		}
		out[i] = a
	}
	return out
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		log.WithError(err).Error("oxc3: argument parsing failed")
		os.Exit(1)
	}

	runLog := log.WithFields(logrus.Fields{
		"run_id": uuid.NewString(),
		"input":  opts.input,
		"output": opts.output,
	})
	runLog.Info("oxc3: starting")
	if err := run(opts); err != nil {
		runLog.WithError(err).Error("oxc3: failed")
		os.Exit(1)
	}
	runLog.Info("oxc3: done")
}
