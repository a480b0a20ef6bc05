package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"wavscribe/cmd"
	"wavscribe/types"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const testTranscript = "hello from the endpoint"

// TestHelper runs the page server against a fake upload endpoint
type TestHelper struct {
	Server      *httptest.Server
	Endpoint    *httptest.Server
	TestDataDir string
	Services    *cmd.Services
	Router      *gin.Engine
	Clipboard   *fakeClipboard

	endpointMu sync.Mutex
	received   []receivedUpload
	failWith   int

	cancel context.CancelFunc
}

type receivedUpload struct {
	Field       string
	FileName    string
	ContentType string
	Size        int
}

// NewTestHelper creates a new test helper with a temporary test environment
func NewTestHelper(t *testing.T) *TestHelper {
	gin.SetMode(gin.TestMode)

	helper := &TestHelper{
		TestDataDir: t.TempDir(),
		Clipboard:   &fakeClipboard{},
	}
	helper.Endpoint = httptest.NewServer(http.HandlerFunc(helper.serveUpload))

	t.Setenv("WAVSCRIBE_UPLOAD_ENDPOINT", helper.Endpoint.URL+"/api/upload")
	t.Setenv("WAVSCRIBE_SETTINGS_FILE", filepath.Join(helper.TestDataDir, "settings.json"))

	ctx, cancel := context.WithCancel(context.Background())
	helper.cancel = cancel
	helper.Services = cmd.NewServices(ctx, helper.Clipboard)
	helper.Router = cmd.NewRouter(helper.Services, slog.New(slog.NewTextHandler(io.Discard, nil)))
	helper.Server = httptest.NewServer(helper.Router)

	return helper
}

// Cleanup cleans up test resources
func (h *TestHelper) Cleanup(t *testing.T) {
	if h.Server != nil {
		h.Server.Close()
	}
	if h.Endpoint != nil {
		h.Endpoint.Close()
	}
	h.cancel()
}

// FailUploads makes the fake endpoint answer every upload with status
func (h *TestHelper) FailUploads(status int) {
	h.endpointMu.Lock()
	defer h.endpointMu.Unlock()
	h.failWith = status
}

func (h *TestHelper) Received() []receivedUpload {
	h.endpointMu.Lock()
	defer h.endpointMu.Unlock()
	return append([]receivedUpload(nil), h.received...)
}

// serveUpload mimics the remote upload endpoint
func (h *TestHelper) serveUpload(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	h.endpointMu.Lock()
	failWith := h.failWith
	h.endpointMu.Unlock()

	if failWith != 0 {
		w.WriteHeader(failWith)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "transcription backend unavailable"})
		return
	}

	reader, err := r.MultipartReader()
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	part, err := reader.NextPart()
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	body, _ := io.ReadAll(part)

	h.endpointMu.Lock()
	h.received = append(h.received, receivedUpload{
		Field:       part.FormName(),
		FileName:    part.FileName(),
		ContentType: part.Header.Get("Content-Type"),
		Size:        len(body),
	})
	h.endpointMu.Unlock()

	_ = json.NewEncoder(w).Encode(map[string]any{
		"data": map[string]any{
			"url":  "https://files.example.com/" + part.FileName(),
			"text": testTranscript,
		},
	})
}

// CreateWAVFile writes a PCM WAV file with dataSize bytes of silence
func (h *TestHelper) CreateWAVFile(t *testing.T, relativePath string, dataSize int) string {
	header := make([]byte, 44)
	copy(header[0:], "RIFF")
	binary.LittleEndian.PutUint32(header[4:], uint32(36+dataSize))
	copy(header[8:], "WAVE")
	copy(header[12:], "fmt ")
	binary.LittleEndian.PutUint32(header[16:], 16)
	binary.LittleEndian.PutUint16(header[20:], 1)
	binary.LittleEndian.PutUint16(header[22:], 1)
	binary.LittleEndian.PutUint32(header[24:], 16000)
	binary.LittleEndian.PutUint32(header[28:], 32000)
	binary.LittleEndian.PutUint16(header[32:], 2)
	binary.LittleEndian.PutUint16(header[34:], 16)
	copy(header[36:], "data")
	binary.LittleEndian.PutUint32(header[40:], uint32(dataSize))

	return h.CreateTestFile(t, relativePath, append(header, make([]byte, dataSize)...))
}

// CreateTestFile creates a test file with specified content
func (h *TestHelper) CreateTestFile(t *testing.T, relativePath string, content []byte) string {
	fullPath := filepath.Join(h.TestDataDir, relativePath)
	require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0755))
	require.NoError(t, os.WriteFile(fullPath, content, 0644))
	return fullPath
}

// MakeRequest makes an HTTP request to the test server
func (h *TestHelper) MakeRequest(t *testing.T, method, path string, body interface{}) *http.Response {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, h.Server.URL+path, reqBody)
	require.NoError(t, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	return resp
}

// DoJSON makes a request and unmarshals the JSON response into target
func (h *TestHelper) DoJSON(t *testing.T, method, path string, requestBody, target interface{}) *http.Response {
	resp := h.MakeRequest(t, method, path, requestBody)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	if target != nil {
		require.NoError(t, json.Unmarshal(body, target), "body: %s", body)
	}
	return resp
}

// GetJSON makes a GET request and unmarshals JSON response
func (h *TestHelper) GetJSON(t *testing.T, path string, target interface{}) *http.Response {
	return h.DoJSON(t, http.MethodGet, path, nil, target)
}

// PostJSON makes a POST request with JSON body and unmarshals JSON response
func (h *TestHelper) PostJSON(t *testing.T, path string, requestBody, target interface{}) *http.Response {
	return h.DoJSON(t, http.MethodPost, path, requestBody, target)
}

// SelectFile selects path on the page and fails the test on rejection
func (h *TestHelper) SelectFile(t *testing.T, path string) {
	resp := h.PostJSON(t, "/api/selection", map[string]any{
		"files": []types.FileRef{{Path: path}},
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

// StartUpload starts an upload of the selected file and returns its ID
func (h *TestHelper) StartUpload(t *testing.T) string {
	var response struct {
		Upload *types.UploadRecord `json:"upload"`
	}
	resp := h.PostJSON(t, "/api/uploads", nil, &response)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.NotNil(t, response.Upload)
	require.NotEmpty(t, response.Upload.ID)
	return response.Upload.ID
}

// WaitForUploadCompletion waits for an upload to settle or timeout
func (h *TestHelper) WaitForUploadCompletion(t *testing.T, uploadID string, timeout time.Duration) *types.UploadRecord {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		var response struct {
			Upload *types.UploadRecord `json:"upload"`
		}

		resp := h.GetJSON(t, "/api/uploads/"+uploadID, &response)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		if response.Upload.Done() {
			return response.Upload
		}

		time.Sleep(20 * time.Millisecond)
	}

	t.Fatalf("Upload %s did not complete within timeout", uploadID)
	return nil
}

// ConnectWebSocket connects to a WebSocket endpoint
func (h *TestHelper) ConnectWebSocket(t *testing.T, path string) *websocket.Conn {
	wsURL := "ws" + strings.TrimPrefix(h.Server.URL, "http") + path

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	return conn
}

// WaitForSubscribers waits until n clients follow uploadID
func (h *TestHelper) WaitForSubscribers(t *testing.T, uploadID string, n int) {
	require.Eventually(t, func() bool {
		return h.Services.Hub.ClientCount(uploadID) >= n
	}, 2*time.Second, 10*time.Millisecond, fmt.Sprintf("no subscriber for %s", uploadID))
}

// ReadUntilTerminal reads progress messages until a complete or error message
func ReadUntilTerminal(t *testing.T, conn *websocket.Conn, uploadID string) []types.ProgressMessage {
	var messages []types.ProgressMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	for {
		var msg types.ProgressMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.UploadID != uploadID {
			continue
		}
		messages = append(messages, msg)
		if msg.Type == types.MessageTypeComplete || msg.Type == types.MessageTypeError {
			return messages
		}
	}
}

type fakeClipboard struct {
	mu   sync.Mutex
	text string
}

func (f *fakeClipboard) WriteText(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.text = text
	return nil
}

func (f *fakeClipboard) Text() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text
}
