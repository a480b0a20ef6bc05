package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"wavscribe/progress"
	"wavscribe/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu        sync.Mutex
	estimates []progress.Estimate
	results   []*Result
	failures  []error
}

func (r *recordingObserver) OnProgress(est progress.Estimate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.estimates = append(r.estimates, est)
}

func (r *recordingObserver) OnSuccess(result *Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

func (r *recordingObserver) OnFailure(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, err)
}

// steppingClock advances by step on every call
func steppingClock(step time.Duration) func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(step)
		return now
	}
}

func newEndpoint(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func selectedWAV(t *testing.T, dataSize int) types.SelectedFile {
	t.Helper()
	path := writeWAV(t, t.TempDir(), "speech.wav", dataSize)
	file, err := SelectFiles(NewFileService(), []types.FileRef{{Path: path}})
	require.NoError(t, err)
	return *file
}

func TestUploadSendsMultipartFile(t *testing.T) {
	file := selectedWAV(t, 256*1024)

	var gotField, gotName, gotPartType string
	var gotSize int64
	var gotContentLength int64
	var gotContentType string

	server := newEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotContentLength = r.ContentLength

		reader, err := r.MultipartReader()
		require.NoError(t, err)
		part, err := reader.NextPart()
		require.NoError(t, err)
		gotField = part.FormName()
		gotName = part.FileName()
		gotPartType = part.Header.Get("Content-Type")
		gotSize, _ = io.Copy(io.Discard, part)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"url":"https://cdn.example.com/speech.wav"}}`))
	})

	obs := &recordingObserver{}
	result, err := NewUploader(server.URL, WithClock(steppingClock(100*time.Millisecond))).
		Upload(context.Background(), file, obs)
	require.NoError(t, err)

	assert.Equal(t, MediaFieldName, gotField)
	assert.Equal(t, "speech.wav", gotName)
	assert.Equal(t, "audio/wav", gotPartType)
	assert.Equal(t, file.Size, gotSize)
	assert.True(t, strings.HasPrefix(gotContentType, "multipart/form-data; boundary="))
	assert.Greater(t, gotContentLength, file.Size)

	assert.Equal(t, []string{"https://cdn.example.com/speech.wav"}, result.URLs)
	assert.Equal(t, http.StatusOK, result.StatusCode)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.NotEmpty(t, obs.estimates)
	require.Len(t, obs.results, 1)
	assert.Empty(t, obs.failures)

	last := obs.estimates[len(obs.estimates)-1]
	assert.Equal(t, 100.0, last.Percentage)
	assert.Equal(t, gotContentLength, last.Total)
	assert.True(t, last.RemainingKnown)
	assert.Equal(t, time.Duration(0), last.Remaining)

	for i := 1; i < len(obs.estimates); i++ {
		assert.GreaterOrEqual(t, obs.estimates[i].Loaded, obs.estimates[i-1].Loaded)
		assert.Equal(t, last.Total, obs.estimates[i].Total)
	}
}

func TestUploadDecodesURLListAndText(t *testing.T) {
	file := selectedWAV(t, 64)
	server := newEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"url":  []string{"https://a.example.com/1", "https://a.example.com/2"},
				"text": "hello world",
			},
		})
	})

	result, err := NewUploader(server.URL).Upload(context.Background(), file, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example.com/1", "https://a.example.com/2"}, result.URLs)
	assert.Equal(t, "hello world", result.Text)
}

func TestUploadEndpointErrorMessage(t *testing.T) {
	file := selectedWAV(t, 64)
	server := newEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":"Audio file is too short"}`))
	})

	obs := &recordingObserver{}
	_, err := NewUploader(server.URL).Upload(context.Background(), file, obs)
	require.Error(t, err)

	var endpointErr *EndpointError
	require.True(t, errors.As(err, &endpointErr))
	assert.Equal(t, http.StatusUnprocessableEntity, endpointErr.StatusCode)
	assert.Equal(t, "Audio file is too short", UserMessage(err))

	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.Len(t, obs.failures, 1)
	assert.Empty(t, obs.results)
}

func TestUploadGenericFailure(t *testing.T) {
	file := selectedWAV(t, 64)

	t.Run("non json error body", func(t *testing.T) {
		server := newEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
			io.Copy(io.Discard, r.Body)
			http.Error(w, "bad gateway", http.StatusBadGateway)
		})
		_, err := NewUploader(server.URL).Upload(context.Background(), file, nil)
		require.Error(t, err)
		assert.Equal(t, GenericFailureMessage, UserMessage(err))
	})

	t.Run("transport failure", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		obs := &recordingObserver{}
		_, err := NewUploader(url).Upload(context.Background(), file, obs)
		require.Error(t, err)
		assert.Equal(t, GenericFailureMessage, UserMessage(err))
		assert.Len(t, obs.failures, 1)
	})

	t.Run("invalid success body", func(t *testing.T) {
		server := newEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
			io.Copy(io.Discard, r.Body)
			w.Write([]byte(`not json`))
		})
		_, err := NewUploader(server.URL).Upload(context.Background(), file, nil)
		require.Error(t, err)
		assert.Equal(t, GenericFailureMessage, UserMessage(err))
	})

	t.Run("missing file", func(t *testing.T) {
		missing := file
		missing.Path = missing.Path + ".gone"
		_, err := NewUploader("http://127.0.0.1:1").Upload(context.Background(), missing, nil)
		assert.Error(t, err)
	})
}

func TestUploadCanceled(t *testing.T) {
	file := selectedWAV(t, 64)
	release := make(chan struct{})
	server := newEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		<-release
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	obs := &recordingObserver{}
	done := make(chan error, 1)
	go func() {
		_, err := NewUploader(server.URL).Upload(ctx, file, obs)
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		assert.True(t, IsCanceled(err))
	case <-time.After(5 * time.Second):
		t.Fatal("upload did not return after cancel")
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Len(t, obs.failures, 1)
}

func TestTerminalGuardDropsLateNotifications(t *testing.T) {
	obs := &recordingObserver{}
	g := newTerminalGuard(obs)

	g.OnProgress(progress.Estimate{Percentage: 50})
	g.OnSuccess(&Result{})
	g.OnProgress(progress.Estimate{Percentage: 100})
	g.OnFailure(errors.New("late"))
	g.OnSuccess(&Result{})

	assert.Len(t, obs.estimates, 1)
	assert.Len(t, obs.results, 1)
	assert.Empty(t, obs.failures)
}

func TestURLListUnmarshal(t *testing.T) {
	var l URLList
	require.NoError(t, json.Unmarshal([]byte(`"https://x"`), &l))
	assert.Equal(t, URLList{"https://x"}, l)

	require.NoError(t, json.Unmarshal([]byte(`["a","b"]`), &l))
	assert.Equal(t, URLList{"a", "b"}, l)

	require.NoError(t, json.Unmarshal([]byte(`null`), &l))
	assert.Nil(t, l)

	assert.Error(t, json.Unmarshal([]byte(`42`), &l))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, "No file was chosen", UserMessage(ErrNoFileChosen))
	assert.Equal(t, "Files list is empty", UserMessage(ErrEmptyFileList))
	assert.Equal(t, "Please select a valid audio file.", UserMessage(ValidateAudioType("audio/mpeg")))
	assert.Equal(t, "There is no text to copy.", UserMessage(ErrNothingToCopy))
	assert.Equal(t, GenericFailureMessage, UserMessage(&EndpointError{StatusCode: 500}))
	assert.Equal(t, GenericFailureMessage, UserMessage(errors.New("boom")))
}
