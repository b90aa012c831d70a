// internal/filenet/extract.go
//
// Content-address extraction from relay upload responses.
//
// Context
// -------
// Relay versions disagree on where the content address lives in the upload
// response.  Instead of probing arbitrary properties, extraction walks a
// small ordered rule list and stops at the first match.  The order is part
// of the contract: directory uploads put the address in directoryCid, most
// single-file relays in cid, older ones nest it under file.

package filenet

import (
	"encoding/json"
	"fmt"
)

// addressRules is the priority-ordered list of response fields that may
// carry the content address.  First match wins.
var addressRules = []struct {
	name    string
	extract func(r uploadResponse) string
}{
	{"directoryCid", func(r uploadResponse) string { return r.DirectoryCid }},
	{"cid", func(r uploadResponse) string { return r.Cid }},
	{"file.hash", func(r uploadResponse) string { return r.File.Hash }},
	{"file.cid", func(r uploadResponse) string { return r.File.Cid }},
	{"hash", func(r uploadResponse) string { return r.Hash }},
}

// uploadResponse covers every known relay response shape.
type uploadResponse struct {
	Success      *bool   `json:"success"`
	Error        string  `json:"error"`
	DirectoryCid string  `json:"directoryCid"`
	Cid          string  `json:"cid"`
	Hash         string  `json:"hash"`
	File         struct {
		Hash string `json:"hash"`
		Cid  string `json:"cid"`
	} `json:"file"`
	Files []Entry `json:"files"`
}

// ExtractAddress pulls the content address and optional file listing out of
// a relay upload response body.
func ExtractAddress(raw []byte) (string, []Entry, error) {
	var r uploadResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return "", nil, fmt.Errorf("%w: unparsable response: %v", ErrUploadFailed, err)
	}
	if r.Success != nil && !*r.Success {
		msg := r.Error
		if msg == "" {
			msg = "relay reported failure"
		}
		return "", nil, fmt.Errorf("%w: %s", ErrUploadFailed, msg)
	}

	for _, rule := range addressRules {
		if addr := rule.extract(r); addr != "" {
			return addr, r.Files, nil
		}
	}
	return "", nil, fmt.Errorf("%w: no content address in response", ErrUploadFailed)
}
