// Package scanner inventories the AAX plugin bundles installed in a directory.
package scanner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"howett.net/plist"

	"pluginsync/pkg/models"
	"pluginsync/pkg/worker"
)

// BundleSuffix marks a plugin bundle directory.
const BundleSuffix = ".aaxplugin"

// ErrPermissionDenied is returned when the plugins directory exists but
// cannot be listed.
var ErrPermissionDenied = errors.New("permission denied reading plug-ins folder")

// Options tune a scan.
type Options struct {
	HashBinaries bool
	Workers      int
}

// infoPlist holds the Info.plist keys a scan records.
type infoPlist struct {
	BundleIdentifier string `plist:"CFBundleIdentifier"`
	ShortVersion     string `plist:"CFBundleShortVersionString"`
	BundleVersion    string `plist:"CFBundleVersion"`
}

type inspection struct {
	record models.PluginRecord
	err    error
}

// Scan lists the plugin bundles directly under root. A missing root yields
// no plugins. Version fields absent from a bundle are left empty. The
// result is sorted by lowercased bundle name.
func Scan(ctx context.Context, root string, opts Options) ([]models.PluginRecord, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		if err != nil && os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, root)
		}
		return []models.PluginRecord{}, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, root)
		}
		return nil, fmt.Errorf("failed to list %s: %w", root, err)
	}

	var bundles []string
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), BundleSuffix) {
			continue
		}
		path := filepath.Join(root, entry.Name())
		// Follow symlinked bundles the way a directory listing would.
		if stat, err := os.Stat(path); err != nil || !stat.IsDir() {
			continue
		}
		bundles = append(bundles, path)
	}

	results, err := worker.Map(ctx, opts.Workers, "Scanner", bundles, func(_ context.Context, path string) inspection {
		record, err := inspectBundle(path, opts.HashBinaries)
		return inspection{record: record, err: err}
	})
	if err != nil {
		return nil, fmt.Errorf("scan of %s interrupted: %w", root, err)
	}

	plugins := make([]models.PluginRecord, 0, len(results))
	for _, result := range results {
		if result.err != nil {
			slog.Warn("Skipping unreadable plugin bundle", "component", "Scanner", "error", result.err)
			continue
		}
		plugins = append(plugins, result.record)
	}
	sort.Slice(plugins, func(i, j int) bool {
		a, b := strings.ToLower(plugins[i].BundleName), strings.ToLower(plugins[j].BundleName)
		if a != b {
			return a < b
		}
		return plugins[i].BundleName < plugins[j].BundleName
	})

	slog.Debug("Scan complete", "component", "Scanner", "root", root, "plugins", len(plugins))
	return plugins, nil
}

func inspectBundle(path string, hashBinaries bool) (models.PluginRecord, error) {
	info := readInfoPlist(path)
	record := models.PluginRecord{
		BundleName:    filepath.Base(path),
		BundleID:      info.BundleIdentifier,
		ShortVersion:  info.ShortVersion,
		BundleVersion: info.BundleVersion,
	}
	if stat, err := os.Stat(path); err == nil {
		record.Mtime = float64(stat.ModTime().UnixNano()) / 1e9
	}
	if hashBinaries {
		hash, err := HashBinaries(path)
		if err != nil {
			return models.PluginRecord{}, err
		}
		record.BinaryHash = hash
	}
	return record, nil
}

// readInfoPlist returns the bundle's Info.plist keys, or zero values when
// the file is missing or unparsable.
func readInfoPlist(bundlePath string) infoPlist {
	var info infoPlist
	handle, err := os.Open(filepath.Join(bundlePath, "Contents", "Info.plist"))
	if err != nil {
		return info
	}
	defer handle.Close()

	if err := plist.NewDecoder(handle).Decode(&info); err != nil {
		slog.Debug("Unreadable Info.plist", "component", "Scanner", "bundle", bundlePath, "error", err)
		return infoPlist{}
	}
	info.BundleIdentifier = strings.TrimSpace(info.BundleIdentifier)
	info.ShortVersion = strings.TrimSpace(info.ShortVersion)
	info.BundleVersion = strings.TrimSpace(info.BundleVersion)
	return info
}

// HashBinaries digests the regular files in Contents/MacOS in name order,
// feeding each file's name and then its bytes. It returns "" when there is
// nothing to hash.
func HashBinaries(bundlePath string) (string, error) {
	dir := filepath.Join(bundlePath, "Contents", "MacOS")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to list %s: %w", dir, err)
	}

	hasher := sha256.New()
	hashed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if err := hashFile(hasher, dir, entry.Name()); err != nil {
			return "", err
		}
		hashed++
	}
	if hashed == 0 {
		return "", nil
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func hashFile(w io.Writer, dir, name string) error {
	handle, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer handle.Close()

	if _, err := io.WriteString(w, name); err != nil {
		return err
	}
	if _, err := io.Copy(w, handle); err != nil {
		return fmt.Errorf("failed to hash %s: %w", name, err)
	}
	return nil
}
