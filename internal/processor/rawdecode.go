package processor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// rawDecoderPath names the external RAW-to-JPEG decoder. dcraw-compatible
// tools (dcraw, dcraw_emu, or a distribution's libraw-based equivalent)
// all support `-c` (write to stdout) and `-e` (extract the embedded
// preview JPEG, which is what the processor wants: fast, already
// color-corrected, no demosaic cost for a face-detection pass).
var rawDecoderPath = envOr("ENGINE_RAW_DECODER_PATH", "dcraw_emu")

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// decodeRaw shells out to the configured RAW decoder and returns the
// embedded preview JPEG's bytes.
func decodeRaw(ctx context.Context, input string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, rawDecoderPath, "-e", "-c", input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("running %s on %s: %w: %s", rawDecoderPath, input, err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("%s produced no output for %s", rawDecoderPath, input)
	}
	return stdout.Bytes(), nil
}
