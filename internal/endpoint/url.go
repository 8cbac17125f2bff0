package endpoint

import (
	"path"
	"strings"

	"github.com/orbit-sync/transferd/internal/core/model"
)

// BuildURL constructs the engine-facing path/URL for requestedPath against
// ep, following the per-kind rules: LOCAL joins against the endpoint's own
// base path unless requestedPath is already absolute; remote kinds are
// addressed through the configured section name.
func BuildURL(ep model.Endpoint, requestedPath string) string {
	switch ep.Kind {
	case model.EndpointKindLocal:
		if path.IsAbs(requestedPath) {
			return requestedPath
		}
		if ep.Config.BasePath == "" {
			return requestedPath
		}
		return path.Join(ep.Config.BasePath, requestedPath)

	case model.EndpointKindS3:
		clean := strings.TrimPrefix(requestedPath, "/")
		if ep.Config.Bucket == "" {
			return ep.Name + ":" + clean
		}
		return ep.Name + ":" + path.Join(ep.Config.Bucket, clean)

	case model.EndpointKindSMB:
		clean := strings.TrimPrefix(requestedPath, "/")
		if ep.Config.Share == "" {
			return ep.Name + ":" + clean
		}
		return ep.Name + ":" + path.Join(ep.Config.Share, clean)

	case model.EndpointKindSFTP:
		if path.IsAbs(requestedPath) {
			return ep.Name + ":" + requestedPath
		}
		return ep.Name + ":" + requestedPath

	default:
		return ep.Name + ":" + requestedPath
	}
}
