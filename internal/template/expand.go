// Package template expands destination path templates against a source
// file path and the time the expansion happens at.
package template

import (
	"path"
	"strconv"
	"strings"
	"time"
)

// Expand substitutes the path template tokens in tmpl using sourcePath's
// basename/extension and at as the wall-clock reference. Tokens:
// {year} {month} {day} {hour} {minute} {timestamp} {filename}
// {original_filename} (alias of {filename}) {name}/{basename}
// {ext}/{extension}.
func Expand(tmpl string, sourcePath string, at time.Time) string {
	filename := path.Base(sourcePath)
	ext := path.Ext(filename)
	name := strings.TrimSuffix(filename, ext)
	if ext != "" {
		ext = strings.TrimPrefix(ext, ".")
	}

	replacer := strings.NewReplacer(
		"{year}", at.Format("2006"),
		"{month}", at.Format("01"),
		"{day}", at.Format("02"),
		"{hour}", at.Format("15"),
		"{minute}", at.Format("04"),
		"{timestamp}", strconv.FormatInt(at.Unix(), 10),
		"{filename}", filename,
		"{original_filename}", filename,
		"{name}", name,
		"{basename}", name,
		"{ext}", ext,
		"{extension}", ext,
	)
	return replacer.Replace(tmpl)
}
