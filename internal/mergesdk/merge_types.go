package mergesdk

// DownloadType selects the format of the merged file. The server only knows
// csv and excel; anything else is sent as-is and rejected there.
type DownloadType string

const (
	DownloadCSV   DownloadType = "csv"
	DownloadExcel DownloadType = "excel"
)

func (d DownloadType) String() string { return string(d) }

// Extension is the file extension of the merged file for this download type.
func (d DownloadType) Extension() string {
	if d == DownloadExcel {
		return "xlsx"
	}
	return "csv"
}

// UploadCallback reports real upload bytes for one file.
type UploadCallback func(fileName string, uploaded int64, total int64)

// MergeParams is one submission of the upload form.
type MergeParams struct {
	Files        []string          // paths sent as "files" parts, in order
	Fields       map[string]string // any extra form fields
	DownloadType DownloadType
	OnUpload     UploadCallback
}

// Metadata is the JSON summary carried in the X-Metadata header.
// Files and Rows are parallel; this is not checked.
type Metadata struct {
	Files     []string `json:"files"`
	Rows      []int64  `json:"rows"`
	TotalRows int64    `json:"total_rows"`
	TotalCols int64    `json:"total_cols"`
}

// MergeResult is a successful response from the merge endpoint.
type MergeResult struct {
	RequestID   string
	ContentType string
	Body        []byte
	Metadata    *Metadata // nil when the header is absent
}
