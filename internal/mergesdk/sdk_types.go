package mergesdk

const (
	HeaderUserAgent = "User-Agent"
	HeaderMetadata  = "X-Metadata"
	HeaderRequestID = "X-Request-Id"
)

const (
	pathMerge = "/merge"

	fieldFiles        = "files"
	fieldDownloadType = "download_type"
)
