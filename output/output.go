// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package output

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/siemens/subdig/types"
)

// Format of a results file.
type Format string

// The supported results file formats.
const (
	JSON Format = "json" // indented JSON array of {"name", "ips"} objects.
	Text Format = "txt"  // one name per line.
	CSV  Format = "csv"  // "name,ips" rows, with the IPs comma-joined in a single cell.
)

var (
	// ErrUnknownFormat signals an unsupported results file format.
	ErrUnknownFormat = errors.New("unknown output format")
	// ErrOutsideWorkdir signals an output path outside the working directory.
	ErrOutsideWorkdir = errors.New("output path outside working directory")
)

// getwd returns the working directory output paths must stay within.
var getwd = os.Getwd

// ParseFormat returns the Format for the specified format name.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json":
		return JSON, nil
	case "txt", "text":
		return Text, nil
	case "csv":
		return CSV, nil
	}
	return "", fmt.Errorf("%w %q, must be json, txt, or csv", ErrUnknownFormat, name)
}

// FormatFromPath returns the Format implied by the extension of the specified
// file path: JSON for “.json”, CSV for “.csv”, and text for anything else.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return JSON
	case ".csv":
		return CSV
	}
	return Text
}

// SafePath returns the absolute form of the specified path, as long as it is
// located inside the current working directory. Otherwise, it returns an
// error wrapping [ErrOutsideWorkdir].
func SafePath(path string) (string, error) {
	wd, err := getwd()
	if err != nil {
		return "", fmt.Errorf("cannot determine working directory: %w", err)
	}
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(wd, abs)
	}
	abs = filepath.Clean(abs)
	rel, err := filepath.Rel(wd, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideWorkdir, path)
	}
	if rel == "." {
		return "", fmt.Errorf("output path %s is the working directory itself", path)
	}
	return abs, nil
}

// Write the subdomains in the specified format.
func Write(w io.Writer, format Format, subdomains []types.Subdomain) error {
	switch format {
	case JSON:
		return writeJSON(w, subdomains)
	case Text:
		return writeText(w, subdomains)
	case CSV:
		return writeCSV(w, subdomains)
	}
	return fmt.Errorf("%w %q", ErrUnknownFormat, string(format))
}

// WriteFile writes the subdomains in the specified format to the file at
// path, which must be located inside the working directory. An existing file
// gets replaced.
func WriteFile(path string, format Format, subdomains []types.Subdomain) (err error) {
	path, err = SafePath(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create output file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("cannot write output file: %w", cerr)
		}
	}()
	bw := bufio.NewWriter(f)
	if err := Write(bw, format, subdomains); err != nil {
		return fmt.Errorf("cannot write output file: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("cannot write output file: %w", err)
	}
	return nil
}

func writeJSON(w io.Writer, subdomains []types.Subdomain) error {
	items := make([]types.Subdomain, 0, len(subdomains))
	for _, sub := range subdomains {
		if sub.IPs == nil {
			sub.IPs = []string{}
		}
		items = append(items, sub)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(items)
}

func writeText(w io.Writer, subdomains []types.Subdomain) error {
	for _, sub := range subdomains {
		if _, err := io.WriteString(w, sub.Name+"\n"); err != nil {
			return err
		}
	}
	return nil
}

func writeCSV(w io.Writer, subdomains []types.Subdomain) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"name", "ips"}); err != nil {
		return err
	}
	for _, sub := range subdomains {
		if err := cw.Write([]string{sub.Name, strings.Join(sub.IPs, ",")}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
