package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/david/proposaland/internal/ingest"
	"gopkg.in/yaml.v3"
)

type listingsFile struct {
	Opportunities []ingest.RawOpportunity `json:"opportunities" yaml:"opportunities"`
}

// readListings loads raw listings from path ("-" reads stdin). The file may
// hold a bare list or an object with an "opportunities" list, as JSON or YAML.
func readListings(path string, stdin io.Reader) ([]ingest.RawOpportunity, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read listings: %w", err)
	}
	raws, err := decodeListings(data, strings.EqualFold(filepath.Ext(path), ".json"))
	if err != nil {
		return nil, fmt.Errorf("decode listings %s: %w", path, err)
	}
	return raws, nil
}

func decodeListings(data []byte, isJSON bool) ([]ingest.RawOpportunity, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if isJSON {
		if trimmed[0] == '[' {
			var list []ingest.RawOpportunity
			err := json.Unmarshal(trimmed, &list)
			return list, err
		}
		var doc listingsFile
		err := json.Unmarshal(trimmed, &doc)
		return doc.Opportunities, err
	}

	var list []ingest.RawOpportunity
	if err := yaml.Unmarshal(trimmed, &list); err == nil {
		return list, nil
	}
	var doc listingsFile
	if err := yaml.Unmarshal(trimmed, &doc); err != nil {
		return nil, err
	}
	return doc.Opportunities, nil
}

// readDocumentText returns the plain text of a notice file. PDFs are
// extracted page by page; anything else is treated as text or HTML.
func readDocumentText(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		return ingest.ReadPDFText(f)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return ingest.HTMLToText(string(data)), nil
}
