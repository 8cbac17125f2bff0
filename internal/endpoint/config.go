package endpoint

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rclone/rclone/fs/config/obscure"
	"go.uber.org/zap"

	"github.com/orbit-sync/transferd/internal/core/model"
)

// buildConfigSection renders the engine-facing INI section for ep. LOCAL
// endpoints need no section at all: the base path lives entirely in the
// adapter's own URL construction, never in the engine's config file.
func buildConfigSection(ep model.Endpoint, binaryPath string, log *zap.Logger) string {
	var b strings.Builder

	switch ep.Kind {
	case model.EndpointKindLocal:
		return ""

	case model.EndpointKindS3:
		fmt.Fprintf(&b, "[%s]\n", ep.Name)
		b.WriteString("type = s3\n")
		b.WriteString("provider = AWS\n")
		fmt.Fprintf(&b, "access_key_id = %s\n", ep.Config.AccessKey)
		fmt.Fprintf(&b, "secret_access_key = %s\n", ep.Config.SecretKey)
		fmt.Fprintf(&b, "region = %s\n", ep.Config.Region)
		if ep.Config.Endpoint != "" {
			fmt.Fprintf(&b, "endpoint = %s\n", ep.Config.Endpoint)
		}
		// Bucket deliberately omitted: it goes into the path, not the config.

	case model.EndpointKindSMB:
		fmt.Fprintf(&b, "[%s]\n", ep.Name)
		b.WriteString("type = smb\n")
		fmt.Fprintf(&b, "host = %s\n", ep.Config.Host)
		fmt.Fprintf(&b, "user = %s\n", ep.Config.User)
		fmt.Fprintf(&b, "pass = %s\n", obscurePassword(ep.Config.Password, binaryPath, log))
		domain := ep.Config.Domain
		if domain == "" {
			domain = "WORKGROUP"
		}
		fmt.Fprintf(&b, "domain = %s\n", domain)
		// Share deliberately omitted: it goes into the path, not the config.

	case model.EndpointKindSFTP:
		fmt.Fprintf(&b, "[%s]\n", ep.Name)
		b.WriteString("type = sftp\n")
		fmt.Fprintf(&b, "host = %s\n", ep.Config.Host)
		fmt.Fprintf(&b, "user = %s\n", ep.Config.User)
		port := ep.Config.Port
		if port == 0 {
			port = 22
		}
		fmt.Fprintf(&b, "port = %d\n", port)
		if ep.Config.KeyFile != "" {
			fmt.Fprintf(&b, "key_file = %s\n", ep.Config.KeyFile)
		} else {
			fmt.Fprintf(&b, "pass = %s\n", obscurePassword(ep.Config.Password, binaryPath, log))
		}
		if ep.Config.KnownHostsFile != "" {
			fmt.Fprintf(&b, "known_hosts_file = %s\n", ep.Config.KnownHostsFile)
		}

	default:
		return ""
	}

	b.WriteString("\n")
	return b.String()
}

// obscurePassword encodes password the way the engine expects its config
// file passwords to look, preferring the engine's own obscure routine and
// falling back to a subprocess call against binaryPath, and finally to the
// plaintext password with a logged warning if both fail.
func obscurePassword(password, binaryPath string, log *zap.Logger) string {
	if password == "" {
		return ""
	}

	if obscured, err := obscure.Obscure(password); err == nil {
		return obscured
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, binaryPath, "obscure", password)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		log.Warn("failed to obscure password, falling back to plaintext",
			zap.Error(err), zap.String("stderr", stderr.String()))
		return password
	}

	return strings.TrimSpace(stdout.String())
}
