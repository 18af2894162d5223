package deepgram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const diarizedResponse = `{
  "results": {
    "channels": [{
      "alternatives": [{
        "transcript": "hello there general kenobi",
        "paragraphs": {
          "paragraphs": [
            {"speaker": 0, "start": 0.08, "end": 1.5, "sentences": [{"text": "Hello there."}]},
            {"speaker": 1, "start": 1.75, "end": 3.2, "sentences": [{"text": "General"}, {"text": "Kenobi."}]}
          ]
        }
      }]
    }]
  }
}`

func TestTranscribe_FormatsParagraphs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/listen", r.URL.Path)
		assert.Equal(t, "Token secret", r.Header.Get("Authorization"))
		assert.Equal(t, "audio/wav", r.Header.Get("Content-Type"))
		q := r.URL.Query()
		assert.Equal(t, "nova-2", q.Get("model"))
		assert.Equal(t, "ru", q.Get("language"))
		assert.Equal(t, "true", q.Get("diarize"))
		assert.Equal(t, "true", q.Get("paragraphs"))

		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "RIFF", string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(diarizedResponse))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "secret", BaseURL: srv.URL, Language: "ru"}, nil)
	text, err := c.Transcribe(context.Background(), []byte("RIFF"), "audio/wav")
	require.NoError(t, err)

	want := "[0.08s→1.50s] Speaker 0: Hello there.\n[1.75s→3.20s] Speaker 1: General Kenobi."
	assert.Equal(t, want, text)
}

func TestTranscribe_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"err_msg":"Invalid credentials."}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "bad", BaseURL: srv.URL}, nil)
	_, err := c.Transcribe(context.Background(), []byte("x"), "audio/mpeg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestFormat_FallsBackToTranscript(t *testing.T) {
	var resp Response
	require.NoError(t, json.Unmarshal([]byte(`{"results":{"channels":[{"alternatives":[{"transcript":" plain words "}]}]}}`), &resp))

	text, err := Format(&resp)
	require.NoError(t, err)
	assert.Equal(t, "plain words", text)
}

func TestFormat_EmptyResponse(t *testing.T) {
	_, err := Format(&Response{})
	require.Error(t, err)
}
