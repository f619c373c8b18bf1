package ledgerocr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Tesseract recognizes text by piping the image through the tesseract command line tool.
type Tesseract struct {
	path      string
	languages string
	timeout   time.Duration
}

// NewTesseract returns a recognizer that runs the binary at path with the given "+"-joined
// language list. A non-positive timeout means no limit beyond the caller's context.
func NewTesseract(path, languages string, timeout time.Duration) *Tesseract {
	return &Tesseract{path: path, languages: languages, timeout: timeout}
}

// Recognize returns the raw text tesseract reads from image.
func (t *Tesseract) Recognize(ctx context.Context, image []byte) (string, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	args := []string{"stdin", "stdout"}
	if t.languages != "" {
		args = append(args, "-l", t.languages)
	}
	cmd := exec.CommandContext(ctx, t.path, args...)
	cmd.Stdin = bytes.NewReader(image)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("tesseract failed: %w: %s", err, msg)
		}
		return "", fmt.Errorf("tesseract failed: %w", err)
	}
	return stdout.String(), nil
}
