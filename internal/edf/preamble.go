package edf

import (
	"bufio"
	"io"
	"strings"

	"github.com/oculab/edfparse/internal/errors"
)

// preamblePrefix marks every line of the leading ASCII metadata block.
const preamblePrefix = "**"

// ReadPreamble consumes the ASCII preamble from the front of an EDF byte
// stream and returns its key/value pairs. Every preamble line starts with
// "**"; the block ends at the first byte that does not. Lines of the form
// "** KEY: value" produce an entry keyed by KEY; bare comment lines are
// skipped. The reader is left positioned at the first record byte.
func ReadPreamble(r *bufio.Reader) (map[string]string, error) {
	head, err := r.Peek(len(preamblePrefix))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCategoryFormat, errors.CodeBadPreamble,
			"stream shorter than minimum preamble", err)
	}
	if string(head) != preamblePrefix {
		return nil, errors.NewFormatError(errors.CodeBadPreamble,
			"missing preamble marker at start of stream")
	}

	meta := make(map[string]string)
	for {
		head, err := r.Peek(len(preamblePrefix))
		if err != nil || string(head) != preamblePrefix {
			// End of the preamble block; record decoding starts here.
			// A clean EOF right after the preamble is the caller's concern.
			return meta, nil
		}

		line, err := r.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, errors.Wrap(errors.ErrCategoryFormat, errors.CodeBadPreamble,
				"reading preamble line", err)
		}

		body := strings.TrimSpace(strings.TrimPrefix(line, preamblePrefix))
		if key, value, found := strings.Cut(body, ":"); found {
			meta[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}

		if err == io.EOF {
			return meta, nil
		}
	}
}
