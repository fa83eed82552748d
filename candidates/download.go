// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package candidates

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// DownloadWordlist fetches the wordlist at url and streams it into the file
// at dest, creating missing parent directories. The download first goes into a
// temporary file next to dest which is renamed only after a successful
// download, so dest never contains a partial wordlist.
func DownloadWordlist(ctx context.Context, client *http.Client, url string, dest string) error {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("cannot download wordlist: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("cannot download wordlist: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cannot download wordlist: unexpected status %s", resp.Status)
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot download wordlist: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".wordlist-*")
	if err != nil {
		return fmt.Errorf("cannot download wordlist: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after successful rename
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("cannot download wordlist: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cannot download wordlist: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("cannot download wordlist: %w", err)
	}
	return nil
}
