package storage

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// With a fixed region the client signs locally and never contacts the endpoint.
func newOfflineStore(t *testing.T) *MinioStore {
	t.Helper()
	client, err := minio.New("blob.invalid:9000", &minio.Options{
		Creds:  credentials.NewStaticV4("access", "secret", ""),
		Region: "us-east-1",
	})
	require.NoError(t, err)
	return NewMinioStore(client, "sharelink")
}

func TestPresignedGetObjectForcesAttachment(t *testing.T) {
	s := newOfflineStore(t)

	raw, err := s.PresignedGetObject(context.Background(), "uploads/abc123/0/report.pdf", 5*time.Minute, "report\r\n\".pdf")
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "/sharelink/uploads/abc123/0/report.pdf", u.Path)
	assert.Equal(t, "300", u.Query().Get("X-Amz-Expires"))
	assert.Equal(t, `attachment; filename="report.pdf"`, u.Query().Get("response-content-disposition"))
}

func TestPresignedGetObjectWithoutName(t *testing.T) {
	raw, err := newOfflineStore(t).PresignedGetObject(context.Background(), "k", time.Minute, "")
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "attachment", u.Query().Get("response-content-disposition"))
}
