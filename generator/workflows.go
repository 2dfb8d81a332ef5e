package generator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	. "github.com/warpfork/go-errcat"

	"github.com/Maheshkerai/update-generator"
	"github.com/Maheshkerai/update-generator/bundle"
	"github.com/Maheshkerai/update-generator/revision"
	"github.com/Maheshkerai/update-generator/stage"
	"github.com/Maheshkerai/update-generator/versioninfo"
)

func UpdateArchiveName(current, update string) string {
	return fmt.Sprintf("Update %s-to-%s.zip", current, update)
}

func InstallationArchiveName(version string) string {
	return fmt.Sprintf("New_Installation_V%s.zip", version)
}

/*
	GenerateUpdate packages the files changed between startDate and endDate
	as an update from currentVersion to updateVersion.

	The result is a nested archive in the output directory holding the
	changed files as `source_code.zip` and a version_info file.  The
	change set goes through the update exclusions; the always-include list
	and the manifest files are added regardless.
*/
func (g *Generator) GenerateUpdate(ctx context.Context, startDate, endDate, currentVersion, updateVersion string) (_ []updategen.Artifact, err error) {
	defer RequireErrorHasCategory(&err, updategen.ErrorCategory(""))

	// Nothing below this block may run for bad input.
	if err := ValidateVersion(currentVersion); err != nil {
		return nil, err
	}
	if err := ValidateVersion(updateVersion); err != nil {
		return nil, err
	}
	if currentVersion == updateVersion {
		return nil, Errorf(updategen.ErrValidation, "current and update versions are both %q", currentVersion)
	}
	if _, err := revision.ParseWindow(startDate, endDate); err != nil {
		return nil, err
	}
	format, err := versioninfo.ParseFormat(g.cfg.MetadataFormat)
	if err != nil {
		return nil, err
	}

	release, err := g.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	defer g.observe(updategen.PackageType_Update, time.Now(), &err)
	logger := g.log.With("workflow", updategen.PackageType_Update)
	logger.Info("generating update package", "from", currentVersion, "to", updateVersion, "start", startDate, "end", endDate)

	files, err := g.provider.ChangedFiles(ctx, startDate, endDate)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, Errorf(updategen.ErrValidation, "no files found for the specified date range")
	}
	logger.Info("change set resolved", "files", len(files))

	if err := os.MkdirAll(g.outputDir, 0755); err != nil {
		return nil, Errorf(updategen.ErrIO, "cannot create output directory %s: %s", g.outputDir, err)
	}
	id := g.newID()
	janitors := &stage.Janitors{}
	defer janitors.Teardown(logger)
	stagingDir := filepath.Join(g.outputDir, ".update_temp-"+id)
	metadataPath := filepath.Join(g.outputDir, ".version_info-"+id+filepath.Ext(versioninfo.EntryName(format)))
	innerPath := filepath.Join(g.outputDir, ".source_code-"+id+".zip")
	janitors.Remove(stagingDir)
	janitors.Remove(metadataPath)
	janitors.Remove(innerPath)

	copied, err := g.copier(g.cfg.AddUpdateFile).CopySelected(files, stagingDir, g.cfg.ExcludeUpdate)
	if err != nil {
		return nil, err
	}
	if copied == 0 {
		return nil, Errorf(updategen.ErrValidation, "no files were copied after applying exclusions")
	}
	if len(g.cfg.ManifestFiles) > 0 {
		n, err := g.copier(nil).CopySelected(g.cfg.ManifestFiles, stagingDir, nil)
		if err != nil {
			return nil, err
		}
		copied += n
	}
	g.metrics.AddFilesStaged(updategen.PackageType_Update, copied)

	info := versioninfo.VersionInfo{CurrentVersion: currentVersion, UpdateVersion: updateVersion}
	if err := versioninfo.Write(metadataPath, info, format); err != nil {
		return nil, err
	}
	if _, err := g.builder.Build(ctx, stagingDir, innerPath); err != nil {
		return nil, err
	}
	outerPath := filepath.Join(g.outputDir, UpdateArchiveName(currentVersion, updateVersion))
	if err := g.builder.BuildNested(innerPath, metadataPath, outerPath, bundle.Entries{
		Inner:    bundle.DefaultInnerEntry,
		Metadata: versioninfo.EntryName(format),
	}); err != nil {
		return nil, err
	}
	logger.Info("update package generated", "archive", outerPath, "files", copied)
	return []updategen.Artifact{{Type: updategen.PackageType_Update, Path: outerPath}}, nil
}

/*
	GenerateNewInstallation packages the project's installation layout,
	less the installation exclusions, as a plain archive in the output
	directory.

	Staging happens under the temp directory, which must lie outside the
	project tree.
*/
func (g *Generator) GenerateNewInstallation(ctx context.Context, version string) (_ []updategen.Artifact, err error) {
	defer RequireErrorHasCategory(&err, updategen.ErrorCategory(""))

	if err := ValidateVersion(version); err != nil {
		return nil, err
	}

	release, err := g.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	defer g.observe(updategen.PackageType_Installation, time.Now(), &err)
	logger := g.log.With("workflow", updategen.PackageType_Installation)
	logger.Info("generating installation package", "version", version)

	if err := os.MkdirAll(g.outputDir, 0755); err != nil {
		return nil, Errorf(updategen.ErrIO, "cannot create output directory %s: %s", g.outputDir, err)
	}
	janitors := &stage.Janitors{}
	defer janitors.Teardown(logger)
	stagingDir := filepath.Join(g.cfg.TempPath(), "laravel_installation_"+g.newID())
	janitors.Remove(stagingDir)

	copied, err := g.copier(nil).CopyAll(g.projectRoot, stagingDir, g.cfg.ExcludeNew)
	if err != nil {
		return nil, err
	}
	if copied == 0 {
		return nil, Errorf(updategen.ErrValidation, "no files were copied after applying exclusions")
	}
	g.metrics.AddFilesStaged(updategen.PackageType_Installation, copied)

	archivePath := filepath.Join(g.outputDir, InstallationArchiveName(version))
	if _, err := g.builder.Build(ctx, stagingDir, archivePath); err != nil {
		return nil, err
	}
	logger.Info("installation package generated", "archive", archivePath, "files", copied)
	return []updategen.Artifact{{Type: updategen.PackageType_Installation, Path: archivePath}}, nil
}

// GenerateBoth runs GenerateUpdate, then GenerateNewInstallation for
// updateVersion.  Either failing fails the whole; an update archive
// already written stays in place.
func (g *Generator) GenerateBoth(ctx context.Context, startDate, endDate, currentVersion, updateVersion string) ([]updategen.Artifact, error) {
	update, err := g.GenerateUpdate(ctx, startDate, endDate, currentVersion, updateVersion)
	if err != nil {
		return nil, err
	}
	install, err := g.GenerateNewInstallation(ctx, updateVersion)
	if err != nil {
		return nil, err
	}
	return append(update, install...), nil
}

// Generate dispatches on package type.
func (g *Generator) Generate(ctx context.Context, kind updategen.PackageType, startDate, endDate, currentVersion, updateVersion string) ([]updategen.Artifact, error) {
	switch kind {
	case updategen.PackageType_Update:
		return g.GenerateUpdate(ctx, startDate, endDate, currentVersion, updateVersion)
	case updategen.PackageType_Installation:
		return g.GenerateNewInstallation(ctx, updateVersion)
	case updategen.PackageType_Both:
		return g.GenerateBoth(ctx, startDate, endDate, currentVersion, updateVersion)
	default:
		return nil, Errorf(updategen.ErrValidation, "invalid type %q: must be update, new, or both", kind)
	}
}
