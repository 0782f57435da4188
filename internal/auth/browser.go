package auth

import (
	"fmt"
	"time"

	"github.com/pkg/browser"
)

// OpenBrowser opens the URL in the system's default browser. Some desktop
// environments fail transiently right after session start, so a few quick
// retries are attempted before giving up.
func OpenBrowser(url string) error {
	var err error
	for i := 0; i < 3; i++ {
		if err = browser.OpenURL(url); err == nil {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("failed to open browser: %w", err)
}
