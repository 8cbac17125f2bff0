package endpoint_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/orbit-sync/transferd/internal/endpoint"
	"github.com/orbit-sync/transferd/internal/core/model"
)

func TestBuildURL_Local(t *testing.T) {
	ep := model.Endpoint{Name: "local1", Kind: model.EndpointKindLocal, Config: model.EndpointConfig{BasePath: "/data"}}

	assert.Equal(t, "/data/incoming", endpoint.BuildURL(ep, "incoming"))
	assert.Equal(t, "/abs/path", endpoint.BuildURL(ep, "/abs/path"), "absolute path bypasses base path")
}

func TestBuildURL_Local_NoBasePath(t *testing.T) {
	ep := model.Endpoint{Name: "local1", Kind: model.EndpointKindLocal}
	assert.Equal(t, "incoming", endpoint.BuildURL(ep, "incoming"))
}

func TestBuildURL_S3(t *testing.T) {
	ep := model.Endpoint{Name: "s3remote", Kind: model.EndpointKindS3, Config: model.EndpointConfig{Bucket: "mybucket"}}
	assert.Equal(t, "s3remote:mybucket/key/path", endpoint.BuildURL(ep, "/key/path"))
}

func TestBuildURL_SMB(t *testing.T) {
	ep := model.Endpoint{Name: "smbremote", Kind: model.EndpointKindSMB, Config: model.EndpointConfig{Share: "myshare"}}
	assert.Equal(t, "smbremote:myshare/dir/file.txt", endpoint.BuildURL(ep, "/dir/file.txt"))
}

func TestBuildURL_SFTP_Absolute(t *testing.T) {
	ep := model.Endpoint{Name: "sftpremote", Kind: model.EndpointKindSFTP}
	assert.Equal(t, "sftpremote:/abs/dir", endpoint.BuildURL(ep, "/abs/dir"))
}

func TestBuildURL_SFTP_Relative(t *testing.T) {
	ep := model.Endpoint{Name: "sftpremote", Kind: model.EndpointKindSFTP}
	assert.Equal(t, "sftpremote:rel/dir", endpoint.BuildURL(ep, "rel/dir"))
}

func TestBuildURL_Other(t *testing.T) {
	ep := model.Endpoint{Name: "custom", Kind: model.EndpointKindOther}
	assert.Equal(t, "custom:some/path", endpoint.BuildURL(ep, "some/path"))
}
