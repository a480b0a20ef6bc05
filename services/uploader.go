package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strings"
	"sync"
	"time"

	"wavscribe/progress"
	"wavscribe/types"
)

// MediaFieldName is the multipart field the audio file is sent under
const MediaFieldName = "media"

// maxResponseBytes bounds how much of an endpoint response is read
const maxResponseBytes = 1 << 20

// Result is the decoded success response of the upload endpoint
type Result struct {
	StatusCode int      `json:"statusCode"`
	URLs       []string `json:"urls"`
	Text       string   `json:"text,omitempty"`
}

// Observer receives the notifications of one upload: zero or more progress
// estimates in order, then exactly one of OnSuccess or OnFailure.
type Observer interface {
	OnProgress(est progress.Estimate)
	OnSuccess(result *Result)
	OnFailure(err error)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Progress func(progress.Estimate)
	Success  func(*Result)
	Failure  func(error)
}

func (o ObserverFuncs) OnProgress(est progress.Estimate) {
	if o.Progress != nil {
		o.Progress(est)
	}
}

func (o ObserverFuncs) OnSuccess(result *Result) {
	if o.Success != nil {
		o.Success(result)
	}
}

func (o ObserverFuncs) OnFailure(err error) {
	if o.Failure != nil {
		o.Failure(err)
	}
}

// terminalGuard forwards to an Observer and drops everything after the
// first terminal notification.
type terminalGuard struct {
	mu   sync.Mutex
	done bool
	next Observer
}

func newTerminalGuard(next Observer) *terminalGuard {
	if next == nil {
		next = ObserverFuncs{}
	}
	return &terminalGuard{next: next}
}

func (g *terminalGuard) OnProgress(est progress.Estimate) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return
	}
	g.next.OnProgress(est)
}

func (g *terminalGuard) OnSuccess(result *Result) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return
	}
	g.done = true
	g.next.OnSuccess(result)
}

func (g *terminalGuard) OnFailure(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return
	}
	g.done = true
	g.next.OnFailure(err)
}

// Uploader sends a selected file to the upload endpoint
type Uploader interface {
	Upload(ctx context.Context, file types.SelectedFile, obs Observer) (*Result, error)
}

// UploaderOption configures an Uploader
type UploaderOption func(*httpUploader)

// WithHTTPClient sets the client used for the upload request
func WithHTTPClient(client *http.Client) UploaderOption {
	return func(u *httpUploader) {
		u.client = client
	}
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) UploaderOption {
	return func(u *httpUploader) {
		u.now = now
	}
}

// WithEstimatorOptions configures the progress estimator of each upload
func WithEstimatorOptions(opts ...progress.Option) UploaderOption {
	return func(u *httpUploader) {
		u.estimatorOpts = append(u.estimatorOpts, opts...)
	}
}

type httpUploader struct {
	endpoint      string
	client        *http.Client
	now           func() time.Time
	estimatorOpts []progress.Option
}

// NewUploader creates an uploader posting to endpoint. The default client
// has no timeout; cancel ctx to give up on an upload.
func NewUploader(endpoint string, opts ...UploaderOption) Uploader {
	u := &httpUploader{
		endpoint: endpoint,
		client:   &http.Client{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Upload posts file as a multipart form and reports progress to obs. The
// returned error is also delivered to obs.OnFailure.
func (u *httpUploader) Upload(ctx context.Context, file types.SelectedFile, obs Observer) (*Result, error) {
	guard := newTerminalGuard(obs)

	result, err := u.upload(ctx, file, guard)
	if err != nil {
		guard.OnFailure(err)
		return nil, err
	}
	guard.OnSuccess(result)
	return result, nil
}

func (u *httpUploader) upload(ctx context.Context, file types.SelectedFile, obs Observer) (*Result, error) {
	f, err := os.Open(file.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", file.Name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", file.Name, err)
	}

	body, err := newMultipartBody(f, info.Size(), file.Name, file.Type)
	if err != nil {
		return nil, err
	}

	session := progress.NewSession(u.now(), body.size, u.estimatorOpts...)
	reader := &countingReader{
		r: body.reader,
		onRead: func(loaded int64) {
			est, err := session.Observe(loaded, u.now())
			if err != nil {
				return
			}
			obs.OnProgress(est)
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.ContentLength = body.size
	req.Header.Set("Content-Type", body.contentType)
	req.Header.Set("Accept", "application/json")

	slog.Debug("uploading file", "file", file.Name, "endpoint", u.endpoint, "bytes", body.size)

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", file.Name, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp)
}

type multipartBody struct {
	reader      io.Reader
	size        int64
	contentType string
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// newMultipartBody frames r as the single file part of a multipart form
// without buffering the file, so the request length is known up front.
func newMultipartBody(r io.Reader, size int64, filename, contentType string) (*multipartBody, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		MediaFieldName, quoteEscaper.Replace(filename)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)

	if _, err := mw.CreatePart(h); err != nil {
		return nil, fmt.Errorf("build multipart header: %w", err)
	}
	head := append([]byte(nil), buf.Bytes()...)

	buf.Reset()
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build multipart trailer: %w", err)
	}
	tail := append([]byte(nil), buf.Bytes()...)

	return &multipartBody{
		reader:      io.MultiReader(bytes.NewReader(head), io.LimitReader(r, size), bytes.NewReader(tail)),
		size:        int64(len(head)) + size + int64(len(tail)),
		contentType: mw.FormDataContentType(),
	}, nil
}

// countingReader reports the cumulative bytes read after every read that
// moved data.
type countingReader struct {
	r      io.Reader
	loaded int64
	onRead func(loaded int64)
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.loaded += int64(n)
		c.onRead(c.loaded)
	}
	return n, err
}

// URLList decodes a JSON string or array of strings
type URLList []string

func (l *URLList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = nil
		return nil
	}

	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*l = URLList{one}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("url must be a string or an array of strings: %w", err)
	}
	*l = many
	return nil
}

type uploadResponse struct {
	Data *struct {
		URL  URLList `json:"url"`
		Text string  `json:"text"`
	} `json:"data"`
	Error string `json:"error"`
}

func decodeResponse(resp *http.Response) (*Result, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read upload response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload uploadResponse
		if json.Unmarshal(raw, &payload) != nil {
			payload.Error = ""
		}
		return nil, &EndpointError{StatusCode: resp.StatusCode, Message: payload.Error}
	}

	var payload uploadResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}

	result := &Result{StatusCode: resp.StatusCode}
	if payload.Data != nil {
		result.URLs = payload.Data.URL
		result.Text = payload.Data.Text
	}
	return result, nil
}

// IsCanceled reports whether err came from a canceled or expired context
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
