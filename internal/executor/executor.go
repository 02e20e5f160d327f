// Package executor provides the execution collaborator invoked after a
// command is admitted. This implementation simulates execution with canned
// outputs; no process is ever spawned. The engine treats the result as
// opaque data either way.
package executor

import (
	"context"
	"fmt"
	"strings"

	"cmdgate/internal/admission/models"
)

type Simulated struct{}

func NewSimulated() *Simulated {
	return &Simulated{}
}

// Run produces a deterministic mock result for common shell commands and a
// generic echo-back for everything else.
func (e *Simulated) Run(_ context.Context, commandText string) (*models.ExecutionResult, error) {
	text := strings.TrimSpace(commandText)
	lower := strings.ToLower(text)
	fields := strings.Fields(text)

	switch {
	case lower == "ls" || strings.HasPrefix(lower, "ls "):
		return &models.ExecutionResult{Stdout: "file1.txt\nfile2.txt\nfile3.txt\n"}, nil

	case strings.HasPrefix(lower, "cat "):
		filename := "file.txt"
		if len(fields) > 1 {
			filename = fields[1]
		}
		return &models.ExecutionResult{
			Stdout: fmt.Sprintf("Contents of %s\nLine 1\nLine 2\nLine 3\n", filename),
		}, nil

	case lower == "pwd":
		return &models.ExecutionResult{Stdout: "/home/user\n"}, nil

	case strings.HasPrefix(lower, "echo "):
		return &models.ExecutionResult{Stdout: strings.TrimSpace(text[4:]) + "\n"}, nil

	default:
		return &models.ExecutionResult{Stdout: fmt.Sprintf("Mock execution of: %s\n", text)}, nil
	}
}
