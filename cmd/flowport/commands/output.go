package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// timeRound is the precision used when printing durations.
const timeRound = 10 * time.Millisecond

func printJSON(out io.Writer, v interface{}) error {
	data, err := jsonMarshalIndent(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func jsonMarshalIndent(v interface{}) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode output: %w", err)
	}
	return data, nil
}
