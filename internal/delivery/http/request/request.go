package request

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

// FixLinkRequest replaces one link at one property.
type FixLinkRequest struct {
	Path           string `json:"path"`
	PropertyName   string `json:"propertyName"`
	CurrentLink    string `json:"currentLink"`
	NewLink        string `json:"newLink"`
	SkipValidation bool   `json:"skipValidation"`
}

// ReplaceByPatternRequest rewrites every reported link matching Pattern.
type ReplaceByPatternRequest struct {
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement"`
	DryRun      bool   `json:"dryRun"`
	OutputAsCSV bool   `json:"outputAsCsv"`
}

// DecodeFixLink reads a fix request from a JSON body or from form values.
func DecodeFixLink(r *http.Request) (FixLinkRequest, error) {
	var req FixLinkRequest
	if isJSON(r) {
		err := json.NewDecoder(r.Body).Decode(&req)
		return req, err
	}
	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.Path = r.Form.Get("path")
	req.PropertyName = r.Form.Get("propertyName")
	req.CurrentLink = r.Form.Get("currentLink")
	req.NewLink = r.Form.Get("newLink")
	req.SkipValidation = formBool(r, "skipValidation")
	return req, nil
}

// DecodeReplaceByPattern reads a replacement request from a JSON body or from form values.
func DecodeReplaceByPattern(r *http.Request) (ReplaceByPatternRequest, error) {
	var req ReplaceByPatternRequest
	if isJSON(r) {
		err := json.NewDecoder(r.Body).Decode(&req)
		return req, err
	}
	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.Pattern = r.Form.Get("pattern")
	req.Replacement = r.Form.Get("replacement")
	req.DryRun = formBool(r, "dryRun")
	req.OutputAsCSV = formBool(r, "outputAsCsv")
	return req, nil
}

// IntParam returns the query parameter name as an int, or def when it is
// absent or malformed.
func IntParam(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	return v
}

func isJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

func formBool(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.Form.Get(name))
	return b
}
