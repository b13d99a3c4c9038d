package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// Fetch downloads the four tier artifacts from baseURL into dir, skipping
// files that already exist locally. Used when the model artifacts are
// published by a registry service instead of shipped with the image.
func Fetch(baseURL, dir string, timeout time.Duration) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}

	client := resty.New()
	if timeout > 0 {
		client.SetTimeout(timeout)
	} else {
		client.SetTimeout(30 * time.Second)
	}
	base := strings.TrimRight(baseURL, "/")

	files := []string{SmallModelFile, SmallSchemaFile, LargeModelFile, LargeSchemaFile}
	for _, name := range files {
		dest := filepath.Join(dir, name)
		if _, err := os.Stat(dest); err == nil {
			log.Debug().Str("file", name).Msg("artifact already present, skipping download")
			continue
		}

		resp, err := client.R().
			SetOutput(dest).
			Get(base + "/" + name)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", name, err)
		}
		if resp.StatusCode() != 200 {
			os.Remove(dest)
			return fmt.Errorf("fetch %s: unexpected status %d", name, resp.StatusCode())
		}
		log.Info().Str("file", name).Str("url", base+"/"+name).Msg("artifact downloaded")
	}
	return nil
}
