package cmd

import (
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/rohitp30/ArasakaBot-P/arasaka"
	"github.com/stretchr/testify/assert"
)

func TestVersionCommand(t *testing.T) {
	originalVersion := arasaka.Version
	originalCommitSHA := arasaka.CommitSHA
	originalBuildTime := arasaka.BuildTime

	t.Cleanup(
		func() {
			arasaka.Version = originalVersion
			arasaka.CommitSHA = originalCommitSHA
			arasaka.BuildTime = originalBuildTime
		},
	)

	arasaka.Version = "1.0.0"
	arasaka.CommitSHA = "abc123"
	arasaka.BuildTime = "2024-10-01T12:00:00Z"

	orig := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w
	t.Cleanup(
		func() {
			os.Stdout = orig
		},
	)

	versionCmd.Run(nil, nil)
	_ = w.Close()

	out, _ := io.ReadAll(r)
	expected := fmt.Sprintf(
		"version=%s commit=%s built: %s",
		arasaka.Version,
		arasaka.CommitSHA,
		arasaka.BuildTime,
	)
	assert.Equal(t, expected, string(out))
}
