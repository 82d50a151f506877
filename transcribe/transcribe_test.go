package transcribe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/meshbot/model"
)

func TestWhisper_Transcribe(t *testing.T) {
	var gotModel, gotFile string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotModel = r.FormValue("model")

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		gotFile = hdr.Filename + ":" + string(data)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"  hello there \n"}`))
	}))
	defer srv.Close()

	w := NewWhisper(func(o *WhisperOptions) {
		o.BaseURL = srv.URL + "/"
		o.APIKey = "test"
	})

	text, err := w.Transcribe(context.Background(), "note.ogg", []byte("OggS"))
	require.NoError(t, err)
	assert.Equal(t, "hello there", text)
	assert.Equal(t, DefaultModel, gotModel)
	assert.Equal(t, "note.ogg:OggS", gotFile)
}

func TestWhisper_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"unavailable"}}`))
	}))
	defer srv.Close()

	w := NewWhisper(func(o *WhisperOptions) {
		o.BaseURL = srv.URL + "/"
		o.APIKey = "test"
	})

	_, err := w.Transcribe(context.Background(), "", []byte("x"))
	var me *model.Error
	require.ErrorAs(t, err, &me)
	assert.Equal(t, model.KindTransient, me.Kind)

	_, err = w.Transcribe(context.Background(), "a.ogg", nil)
	assert.True(t, errors.Is(err, ErrEmptyAudio))
}
