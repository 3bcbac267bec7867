package types

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// DecodeDataPoints reads either a JSON array of series or a single series
// object from r and validates every series.
func DecodeDataPoints(r io.Reader) ([]DataPoint, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err != nil {
		return nil, err
	}

	var series []DataPoint
	dec := json.NewDecoder(br)
	if first == '[' {
		err = dec.Decode(&series)
	} else {
		var one DataPoint
		err = dec.Decode(&one)
		series = []DataPoint{one}
	}
	if err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}

	for _, s := range series {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	return series, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, errors.New("empty body")
			}
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}
