/*
	Package versioninfo encodes the small metadata file shipped beside
	source_code.zip in an update package.  It tells the installer which
	version the package upgrades from and to.

	The default format is a PHP file returning an array, which the Laravel
	installer can simply `include`.  A JSON format is available for
	installers that are not PHP.
*/
package versioninfo

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/polydawn/refmt"
	"github.com/polydawn/refmt/json"
	"github.com/polydawn/refmt/obj/atlas"
	. "github.com/warpfork/go-errcat"

	"github.com/Maheshkerai/update-generator"
)

type Format string

const (
	Format_PHP  = Format("php")
	Format_JSON = Format("json")
)

type VersionInfo struct {
	CurrentVersion string
	UpdateVersion  string
}

var Atlas = atlas.MustBuild(
	atlas.BuildEntry(VersionInfo{}).StructMap().
		AddField("CurrentVersion", atlas.StructMapEntry{SerialName: "current_version"}).
		AddField("UpdateVersion", atlas.StructMapEntry{SerialName: "update_version"}).
		Complete(),
)

// EntryName is the file name the metadata travels under for a format.
func EntryName(format Format) string {
	switch format {
	case Format_JSON:
		return "version_info.json"
	default:
		return "version_info.php"
	}
}

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", Format_PHP:
		return Format_PHP, nil
	case Format_JSON:
		return Format_JSON, nil
	default:
		return "", Errorf(updategen.ErrValidation, "unknown metadata format %q (want php or json)", s)
	}
}

func Encode(info VersionInfo, format Format) ([]byte, error) {
	switch format {
	case Format_PHP, "":
		return []byte(fmt.Sprintf("<?php\nreturn array('current_version' => '%s','update_version' => '%s');",
			phpQuote(info.CurrentVersion), phpQuote(info.UpdateVersion))), nil
	case Format_JSON:
		var buf bytes.Buffer
		if err := refmt.NewMarshallerAtlased(json.EncodeOptions{}, &buf, Atlas).Marshal(info); err != nil {
			return nil, Errorf(updategen.ErrIO, "cannot encode version info: %s", err)
		}
		buf.WriteByte('\n')
		return buf.Bytes(), nil
	default:
		return nil, Errorf(updategen.ErrValidation, "unknown metadata format %q", format)
	}
}

// Write encodes info to path, replacing whatever was there.
func Write(path string, info VersionInfo, format Format) error {
	body, err := Encode(info, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, body, 0644); err != nil {
		return Errorf(updategen.ErrIO, "cannot write version info %s: %s", path, err)
	}
	return nil
}

var phpPair = regexp.MustCompile(`'(current_version|update_version)'\s*=>\s*'((?:[^'\\]|\\.)*)'`)

// Decode accepts either format, sniffing which one it was handed.
func Decode(body []byte) (VersionInfo, error) {
	var info VersionInfo
	trimmed := bytes.TrimSpace(body)
	if bytes.HasPrefix(trimmed, []byte("{")) {
		if err := refmt.UnmarshalAtlased(json.DecodeOptions{}, trimmed, &info, Atlas); err != nil {
			return VersionInfo{}, Errorf(updategen.ErrValidation, "malformed version info: %s", err)
		}
		return info, nil
	}
	matches := phpPair.FindAllSubmatch(trimmed, -1)
	for _, m := range matches {
		v := phpUnquote(string(m[2]))
		switch string(m[1]) {
		case "current_version":
			info.CurrentVersion = v
		case "update_version":
			info.UpdateVersion = v
		}
	}
	if info.CurrentVersion == "" || info.UpdateVersion == "" {
		return VersionInfo{}, Errorf(updategen.ErrValidation, "malformed version info: missing current_version or update_version")
	}
	return info, nil
}

func phpQuote(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

func phpUnquote(s string) string {
	return strings.NewReplacer(`\\`, `\`, `\'`, `'`).Replace(s)
}
