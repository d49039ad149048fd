package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/zjrosen/statesync/internal/client"
)

// maxStdinBytes bounds data read from stdin. The server rejects anything
// larger than server.max_body_bytes anyway.
const maxStdinBytes = 1 << 20

func newClient() *client.Client {
	return client.New(serverURL)
}

// readData returns args[idx] when present, otherwise everything on in.
func readData(args []string, idx int, in io.Reader) ([]byte, error) {
	if len(args) > idx {
		return []byte(args[idx]), nil
	}
	data, err := io.ReadAll(io.LimitReader(in, maxStdinBytes))
	if err != nil {
		return nil, fmt.Errorf("reading data from stdin: %w", err)
	}
	return data, nil
}

func printResource(w io.Writer, res client.Resource) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// stdin is swapped out by tests.
var stdin io.Reader = os.Stdin

func trimNewline(s string) string {
	return strings.TrimSuffix(s, "\n")
}
