package endpoint_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbit-sync/transferd/internal/core/model"
	"github.com/orbit-sync/transferd/internal/endpoint"
)

const sampleRcloneConf = `
[local-archive]
type = local

[backup-bucket]
type = s3
bucket = my-backups
region = us-east-1
access_key_id = AKIA_EXAMPLE
secret_access_key = secret
endpoint =

[share-drive]
type = smb
host = fileserver.example.com
share = backups
user = svc-backup
pass = hunter2
`

func TestImportRcloneConf_ParsesEachSection(t *testing.T) {
	endpoints, err := endpoint.ImportRcloneConf(sampleRcloneConf)
	require.NoError(t, err)
	require.Len(t, endpoints, 3)

	byName := map[string]*model.Endpoint{}
	for _, ep := range endpoints {
		byName[ep.Name] = ep
	}

	local := byName["local-archive"]
	require.NotNil(t, local)
	assert.Equal(t, model.EndpointKindLocal, local.Kind)

	s3ep := byName["backup-bucket"]
	require.NotNil(t, s3ep)
	assert.Equal(t, model.EndpointKindS3, s3ep.Kind)
	assert.Equal(t, "my-backups", s3ep.Config.Bucket)
	assert.Equal(t, "us-east-1", s3ep.Config.Region)

	smbEp := byName["share-drive"]
	require.NotNil(t, smbEp)
	assert.Equal(t, model.EndpointKindSMB, smbEp.Kind)
	assert.Equal(t, "fileserver.example.com", smbEp.Config.Host)
	assert.Equal(t, "backups", smbEp.Config.Share)
}

func TestImportRcloneConf_EmptyContent_ReturnsNil(t *testing.T) {
	endpoints, err := endpoint.ImportRcloneConf("   ")
	require.NoError(t, err)
	assert.Nil(t, endpoints)
}

func TestImportRcloneConf_MissingType_Errors(t *testing.T) {
	_, err := endpoint.ImportRcloneConf("[bad]\nfoo = bar\n")
	assert.Error(t, err)
}
