// Package mergetest hosts a scripted stand-in for the POST /merge endpoint.
// It records every upload it receives and answers with whatever the test
// asked for, or with a naive CSV concatenation when nothing was scripted.
package mergetest

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	HeaderMetadata  = "X-Metadata"
	HeaderRequestID = "X-Request-Id"

	MimeCSV  = "text/csv"
	MimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	maxMultipartMemory = 8 << 20 // 8 MiB
)

// Response is one scripted answer.
type Response struct {
	Status      int
	Body        []byte
	ContentType string
	Metadata    string        // raw X-Metadata value, omitted when empty
	Delay       time.Duration // held before answering, cut short if the client goes away
}

// File is one uploaded "files" part.
type File struct {
	Name    string
	Content []byte
}

// Upload is what the server saw for one request.
type Upload struct {
	RequestID    string
	UserAgent    string
	DownloadType string
	Fields       map[string]string
	Files        []File
}

type Responder func(*Upload) *Response

type Server struct {
	mu        sync.Mutex
	responder Responder
	uploads   []*Upload
	router    *gin.Engine
}

func New() *Server {
	s := &Server{responder: ConcatCSV}

	r := gin.New()
	r.MaxMultipartMemory = maxMultipartMemory

	r.Use(loggerMiddleware())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())
	r.Use(gzipMiddleware())

	r.GET("/healthz", func(ctx *gin.Context) {
		ctx.PureJSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/merge", s.handleMerge)

	s.router = r
	return s
}

// Reply makes every following request get resp.
func (s *Server) Reply(resp *Response) {
	s.ReplyFunc(func(*Upload) *Response { return resp })
}

func (s *Server) ReplyFunc(fn Responder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responder = fn
}

// Uploads returns the recorded uploads, oldest first.
func (s *Server) Uploads() []*Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Upload, len(s.uploads))
	copy(out, s.uploads)
	return out
}

func (s *Server) Handler() http.Handler {
	return s.router.Handler()
}

// Start serves the stand-in on a local port until the test ends and returns its base url.
func (s *Server) Start(t testing.TB) string {
	t.Helper()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func (s *Server) handleMerge(ctx *gin.Context) {
	upload, err := readUpload(ctx)
	if err != nil {
		ctx.String(http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	s.uploads = append(s.uploads, upload)
	responder := s.responder
	s.mu.Unlock()

	resp := responder(upload)

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-ctx.Request.Context().Done():
			return
		}
	}

	if resp.Metadata != "" {
		ctx.Header(HeaderMetadata, resp.Metadata)
	}

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	contentType := resp.ContentType
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}
	ctx.Data(status, contentType, resp.Body)
}

func readUpload(ctx *gin.Context) (*Upload, error) {
	upload := &Upload{
		RequestID: ctx.GetHeader(HeaderRequestID),
		UserAgent: ctx.GetHeader("User-Agent"),
		Fields:    map[string]string{},
	}

	// urlencoded bodies (no files at all) still carry download_type
	if err := ctx.Request.ParseMultipartForm(maxMultipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, err
	}

	for key, values := range ctx.Request.PostForm {
		if len(values) == 0 {
			continue
		}
		if key == "download_type" {
			upload.DownloadType = values[0]
			continue
		}
		upload.Fields[key] = values[0]
	}

	if ctx.Request.MultipartForm == nil {
		return upload, nil
	}

	for _, fh := range ctx.Request.MultipartForm.File["files"] {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		upload.Files = append(upload.Files, File{Name: fh.Filename, Content: content})
	}

	return upload, nil
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
