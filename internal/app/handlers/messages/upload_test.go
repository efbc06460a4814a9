package messages

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingUploader struct {
	key         string
	contentType string
	body        string
	err         error
}

func (u *recordingUploader) Upload(_ context.Context, key string, reader io.Reader, contentType string) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	u.key, u.contentType, u.body = key, contentType, string(data)
	return "https://cdn.example.com/" + key, nil
}

func TestUploadImage(t *testing.T) {
	up := &recordingUploader{}
	h := &UploadImageHandler{Uploader: up, MaxBytes: 16}
	cmd := UploadImageCommand{CallerID: "u/alice", Filename: "cat.PNG", ContentType: "image/png", Size: 4, Reader: strings.NewReader("meow")}
	require.NoError(t, cmd.Validate())
	assert.True(t, cmd.TxOptions().Bypass)

	res, err := h.Handle(context.Background(), cmd)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(up.key, "uploads/u_alice/"))
	assert.True(t, strings.HasSuffix(up.key, ".png"))
	assert.Equal(t, "meow", up.body)
	assert.Equal(t, "https://cdn.example.com/"+up.key, res.URL)
}

func TestUploadImage_Rejections(t *testing.T) {
	assert.ErrorIs(t, UploadImageCommand{ContentType: "image/png"}.Validate(), ErrFileRequired)
	assert.ErrorIs(t, UploadImageCommand{ContentType: "text/plain", Size: 1, Reader: strings.NewReader("x")}.Validate(), ErrUnsupportedImage)

	h := &UploadImageHandler{Uploader: &recordingUploader{}, MaxBytes: 2}
	_, err := h.Handle(context.Background(), UploadImageCommand{ContentType: "image/png", Size: 3, Reader: strings.NewReader("abc")})
	assert.ErrorIs(t, err, ErrFileTooLarge)

	failing := &UploadImageHandler{Uploader: &recordingUploader{err: errors.New("bucket down")}}
	_, err = failing.Handle(context.Background(), UploadImageCommand{ContentType: "image/png", Size: 1, Reader: strings.NewReader("a")})
	assert.ErrorContains(t, err, "bucket down")
}
