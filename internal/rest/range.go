package rest

import (
	"errors"
	"strconv"
	"strings"
)

// byteRange is a half-open [first, last) interval of a payload.
type byteRange struct {
	first int64
	last  int64
}

func (b byteRange) length() int64 {
	return b.last - b.first
}

var errRangeSyntax = errors.New("malformed range spec")

// parseRange interprets a Range header against a payload of nbytes.
//
// The outcome is one of:
//   - (nil, nil): serve the whole payload with 200. This covers the
//     absent header, any syntactically invalid header (per RFC 7233 a
//     server may ignore Range entirely), and a single range that spans
//     the whole payload.
//   - (span, nil): serve the clamped interval with 206.
//   - (nil, err): fail. Non-byte units and multiple surviving ranges are
//     not implemented; a well-formed set where no range intersects the
//     payload is not satisfiable.
//
// Syntax checks run over the whole set first: one malformed spec disables
// the header even when other specs are valid, whereas unsatisfiable and
// multi-range outcomes only apply to fully well-formed headers.
func parseRange(header string, nbytes int64) (*byteRange, error) {
	if header == "" {
		return nil, nil
	}

	units, set, found := strings.Cut(header, "=")
	if !found {
		return nil, nil
	}
	if !strings.EqualFold(strings.TrimSpace(units), "bytes") {
		return nil, errNotImplemented("range units not implemented")
	}

	var spans []byteRange
	for _, spec := range strings.Split(set, ",") {
		span, err := parseRangeSpec(strings.TrimSpace(spec), nbytes)
		if err != nil {
			return nil, nil
		}
		if span.first >= nbytes || span.first >= span.last {
			continue
		}
		if span.last > nbytes {
			span.last = nbytes
		}
		spans = append(spans, span)
	}

	if len(spans) == 0 {
		return nil, errBadRange(nbytes)
	}
	if len(spans) > 1 {
		return nil, errNotImplemented("multiple ranges not implemented")
	}
	if spans[0].first == 0 && spans[0].last == nbytes {
		return nil, nil
	}
	return &spans[0], nil
}

// parseRangeSpec parses one range spec. Three forms exist:
//
//	"-N"   the final N bytes; N must be positive
//	"M-"   from offset M to the end
//	"M-N"  offsets M through N inclusive; N must not precede M
//
// The result may extend past the payload; the caller clamps or discards.
func parseRangeSpec(spec string, nbytes int64) (byteRange, error) {
	firstStr, lastStr, found := strings.Cut(spec, "-")
	if !found {
		return byteRange{}, errRangeSyntax
	}

	if firstStr == "" {
		n, err := strconv.ParseInt(lastStr, 10, 64)
		if err != nil || n <= 0 {
			return byteRange{}, errRangeSyntax
		}
		first := nbytes - n
		if first < 0 {
			first = 0
		}
		return byteRange{first: first, last: nbytes}, nil
	}

	first, err := strconv.ParseInt(firstStr, 10, 64)
	if err != nil || first < 0 {
		return byteRange{}, errRangeSyntax
	}

	if lastStr == "" {
		return byteRange{first: first, last: nbytes}, nil
	}

	last, err := strconv.ParseInt(lastStr, 10, 64)
	if err != nil || last < first {
		return byteRange{}, errRangeSyntax
	}
	return byteRange{first: first, last: last + 1}, nil
}
