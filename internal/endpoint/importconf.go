package endpoint

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/unknwon/goconfig"

	"github.com/orbit-sync/transferd/internal/core/model"
)

// ImportRcloneConf parses an existing rclone.conf file's sections into
// Endpoint records, one per section, so a deployment already using the
// copy engine directly can bulk-import its configured remotes instead of
// re-entering them by hand.
func ImportRcloneConf(content string) ([]*model.Endpoint, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil
	}

	cfg, err := goconfig.LoadFromReader(bytes.NewReader([]byte(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse rclone.conf format: %w", err)
	}

	var endpoints []*model.Endpoint
	for _, section := range cfg.GetSectionList() {
		if section == "" || section == "DEFAULT" {
			continue
		}

		raw := make(map[string]string)
		for _, key := range cfg.GetKeyList(section) {
			if value, err := cfg.GetValue(section, key); err == nil {
				raw[key] = value
			}
		}

		ep, err := endpointFromSection(section, raw)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints, nil
}

func endpointFromSection(name string, raw map[string]string) (*model.Endpoint, error) {
	remoteType := raw["type"]
	if remoteType == "" {
		return nil, fmt.Errorf("remote %q missing required field 'type'", name) //nolint:err113
	}

	ep := &model.Endpoint{Name: name}
	switch remoteType {
	case "local":
		ep.Kind = model.EndpointKindLocal
	case "s3":
		ep.Kind = model.EndpointKindS3
		ep.Config.Bucket = raw["bucket"]
		ep.Config.Region = raw["region"]
		ep.Config.AccessKey = raw["access_key_id"]
		ep.Config.SecretKey = raw["secret_access_key"]
		ep.Config.Endpoint = raw["endpoint"]
	case "smb":
		ep.Kind = model.EndpointKindSMB
		ep.Config.Host = raw["host"]
		ep.Config.Share = raw["share"]
		ep.Config.Domain = raw["domain"]
		ep.Config.User = raw["user"]
		ep.Config.Password = raw["pass"]
	case "sftp":
		ep.Kind = model.EndpointKindSFTP
		ep.Config.Host = raw["host"]
		ep.Config.User = raw["user"]
		ep.Config.KeyFile = raw["key_file"]
		ep.Config.KnownHostsFile = raw["known_hosts_file"]
		if port, err := strconv.Atoi(raw["port"]); err == nil {
			ep.Config.Port = port
		}
	default:
		ep.Kind = model.EndpointKindOther
	}
	return ep, nil
}
