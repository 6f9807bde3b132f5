// Command casedb filters cases from the remote case API.
// Build with: go build -o bin/casedb ./cmd/casedb
package main

import (
	"os"
)

func main() {
	if err := NewCLI().Execute(); err != nil {
		os.Exit(1)
	}
}
