package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/polydawn/refmt"
	"github.com/polydawn/refmt/json"
	"github.com/polydawn/refmt/obj/atlas"
	"github.com/warpfork/go-errcat"

	"github.com/Maheshkerai/update-generator"
	"github.com/Maheshkerai/update-generator/bundle"
	"github.com/Maheshkerai/update-generator/versioninfo"
)

// Result is the json form of a command's outcome.
type Result struct {
	Artifacts []updategen.Artifact
	OutputDir string
	Entries   []string
	Version   *versioninfo.VersionInfo
	Error     *ErrorResult
}

type ErrorResult struct {
	Category string
	Message  string
	Details  map[string]string
}

func (r *Result) SetError(err error) {
	if err == nil {
		return
	}
	r.Error = &ErrorResult{
		Category: fmt.Sprint(errcat.Category(err)),
		Message:  err.Error(),
	}
	if e, ok := err.(errcat.Error); ok {
		r.Error.Details = e.Details()
	}
}

var resultAtlas = atlas.MustBuild(
	atlas.BuildEntry(Result{}).StructMap().
		AddField("Artifacts", atlas.StructMapEntry{SerialName: "artifacts", OmitEmpty: true}).
		AddField("OutputDir", atlas.StructMapEntry{SerialName: "output_dir", OmitEmpty: true}).
		AddField("Entries", atlas.StructMapEntry{SerialName: "entries", OmitEmpty: true}).
		AddField("Version", atlas.StructMapEntry{SerialName: "version_info", OmitEmpty: true}).
		AddField("Error", atlas.StructMapEntry{SerialName: "error", OmitEmpty: true}).
		Complete(),
	atlas.BuildEntry(updategen.Artifact{}).StructMap().
		AddField("Type", atlas.StructMapEntry{SerialName: "type"}).
		AddField("Path", atlas.StructMapEntry{SerialName: "path"}).
		Complete(),
	atlas.BuildEntry(ErrorResult{}).StructMap().
		AddField("Category", atlas.StructMapEntry{SerialName: "category"}).
		AddField("Message", atlas.StructMapEntry{SerialName: "message"}).
		AddField("Details", atlas.StructMapEntry{SerialName: "details", OmitEmpty: true}).
		Complete(),
	atlas.BuildEntry(versioninfo.VersionInfo{}).StructMap().
		AddField("CurrentVersion", atlas.StructMapEntry{SerialName: "current_version"}).
		AddField("UpdateVersion", atlas.StructMapEntry{SerialName: "update_version"}).
		Complete(),
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

func errorLabel(err error) string {
	switch errcat.Category(err) {
	case updategen.ErrRepository:
		return "Git Error"
	case updategen.ErrValidation, updategen.ErrDate:
		return "Update Generator Error"
	case updategen.ErrBusy:
		return "Busy"
	case updategen.ErrConfig:
		return "Config Error"
	default:
		return "Error"
	}
}

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...).
		String()
}

func writeJSON(stdout io.Writer, result *Result) {
	marshaller := refmt.NewMarshallerAtlased(json.EncodeOptions{Line: []byte("\n"), Indent: []byte("\t")}, stdout, resultAtlas)
	if err := marshaller.Marshal(result); err != nil {
		panic(err)
	}
	fmt.Fprintln(stdout)
}

func SerializeGenerateResult(format string, artifacts []updategen.Artifact, outputDir string, resultErr error, stdout, stderr io.Writer) {
	switch format {
	case FmtJson:
		result := &Result{Artifacts: artifacts, OutputDir: outputDir}
		result.SetError(resultErr)
		writeJSON(stdout, result)
	case FmtTable:
		if resultErr != nil {
			fmt.Fprintln(stderr, errorStyle.Render(errorLabel(resultErr)+":"), resultErr)
			return
		}
		rows := make([][]string, len(artifacts))
		for i, a := range artifacts {
			rows[i] = []string{string(a.Type), filepath.Base(a.Path)}
		}
		fmt.Fprintln(stdout, "Package generation completed successfully!")
		fmt.Fprintln(stdout, renderTable([]string{"Type", "Generated File"}, rows))
		fmt.Fprintln(stdout, "Files saved to:", outputDir)
	default:
		panic(fmt.Errorf("update-generator: invalid format %s", format))
	}
}

type inspection struct {
	entries []string
	version *versioninfo.VersionInfo
}

// executeInspect lists an archive and, if it is a nested update archive,
// decodes the version info inside it.
func executeInspect(path string) (inspection, error) {
	entries, err := bundle.List(path)
	if err != nil {
		return inspection{}, err
	}
	result := inspection{entries: entries}
	for _, name := range []string{versioninfo.EntryName(versioninfo.Format_PHP), versioninfo.EntryName(versioninfo.Format_JSON)} {
		body, err := bundle.ReadEntry(path, name)
		if err != nil {
			continue
		}
		info, err := versioninfo.Decode(body)
		if err != nil {
			return result, err
		}
		result.version = &info
		break
	}
	return result, nil
}

func SerializeInspectResult(format string, in inspection, resultErr error, stdout, stderr io.Writer) {
	switch format {
	case FmtJson:
		result := &Result{Entries: in.entries, Version: in.version}
		result.SetError(resultErr)
		writeJSON(stdout, result)
	case FmtTable:
		if resultErr != nil {
			fmt.Fprintln(stderr, errorStyle.Render(errorLabel(resultErr)+":"), resultErr)
			return
		}
		rows := make([][]string, len(in.entries))
		for i, name := range in.entries {
			rows[i] = []string{name}
		}
		fmt.Fprintln(stdout, renderTable([]string{"Entry"}, rows))
		if in.version != nil {
			fmt.Fprintln(stdout, renderTable(
				[]string{"Current Version", "Update Version"},
				[][]string{{in.version.CurrentVersion, in.version.UpdateVersion}},
			))
		}
	default:
		panic(fmt.Errorf("update-generator: invalid format %s", format))
	}
}
