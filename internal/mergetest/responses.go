package mergetest

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

// Messages the real endpoint answers with.
const (
	MsgNoFiles             = "⚠️ No files uploaded!"
	MsgInvalidDownloadType = "Invalid download type"
)

// Metadata mirrors the X-Metadata header document.
type Metadata struct {
	Files     []string `json:"files"`
	Rows      []int64  `json:"rows"`
	TotalRows int64    `json:"total_rows"`
	TotalCols int64    `json:"total_cols"`
}

// Header encodes m as an X-Metadata value.
func (m *Metadata) Header() string {
	data, err := json.Marshal(m)
	if err != nil {
		panic(fmt.Sprintf("mergetest: encode metadata: %v", err))
	}
	return string(data)
}

// Fail is a non-2xx answer with a plain text body.
func Fail(status int, message string) *Response {
	return &Response{Status: status, Body: []byte(message)}
}

// OK is a 200 answer carrying body and, when meta is non-nil, an X-Metadata header.
func OK(body []byte, meta *Metadata) *Response {
	resp := &Response{Status: http.StatusOK, Body: body, ContentType: MimeCSV}
	if meta != nil {
		resp.Metadata = meta.Header()
	}
	return resp
}

// ConcatCSV answers the way the endpoint contract reads: no files and unknown
// download types are 400s, otherwise the data rows of every upload are appended
// under the first file's header row.
func ConcatCSV(u *Upload) *Response {
	if len(u.Files) == 0 {
		return Fail(http.StatusBadRequest, MsgNoFiles)
	}
	if u.DownloadType != "csv" && u.DownloadType != "excel" {
		return Fail(http.StatusBadRequest, MsgInvalidDownloadType)
	}

	var (
		out    bytes.Buffer
		meta   = &Metadata{}
		header string
	)

	for _, f := range u.Files {
		lines := nonEmptyLines(string(f.Content))
		if len(lines) == 0 {
			return Fail(http.StatusInternalServerError, fmt.Sprintf("Error processing %s: empty file", f.Name))
		}
		if header == "" {
			header = lines[0]
			out.WriteString(header + "\n")
			meta.TotalCols = int64(len(strings.Split(header, ",")))
		}
		for _, line := range lines[1:] {
			out.WriteString(line + "\n")
		}
		meta.Files = append(meta.Files, f.Name)
		meta.Rows = append(meta.Rows, int64(len(lines)-1))
		meta.TotalRows += int64(len(lines) - 1)
	}

	resp := OK(out.Bytes(), meta)
	if u.DownloadType == "excel" {
		resp.ContentType = MimeXLSX
	}
	return resp
}

func nonEmptyLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
